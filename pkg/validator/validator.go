package validator

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/multierr"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct validates a struct using its `validate` tags. Field
// failures are combined into a single error via multierr so callers can
// report every problem at once.
func ValidateStruct(s any) error {
	err := getValidator().Struct(s)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var combined error
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			combined = multierr.Append(combined, fmt.Errorf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			combined = multierr.Append(combined, fmt.Errorf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return combined
}

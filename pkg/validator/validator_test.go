package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type samplePayload struct {
	Name    string   `validate:"required"`
	Workers int      `validate:"gte=1"`
	Tags    []string `validate:"min=1"`
}

func TestValidateStructSuccess(t *testing.T) {
	err := ValidateStruct(samplePayload{Name: "worker", Workers: 4, Tags: []string{"like"}})
	require.NoError(t, err)
}

func TestValidateStructCollectsAllFailures(t *testing.T) {
	err := ValidateStruct(samplePayload{})
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 3)
	require.Contains(t, err.Error(), "Workers failed on gte=1")
}

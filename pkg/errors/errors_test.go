package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorMessage(t *testing.T) {
	err := New("TEST", "something broke")
	require.Equal(t, "something broke", err.Error())

	wrapped := err.WithInternal(errors.New("disk on fire"))
	require.Equal(t, "something broke: disk on fire", wrapped.Error())
	// the original is untouched
	require.Nil(t, err.Internal)
}

func TestWrapPreservesInternal(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(cause, "query failed")
	require.ErrorIs(t, err, cause)
	require.Equal(t, ErrInternal.Code, err.Code)
}

func TestFromError(t *testing.T) {
	require.Nil(t, FromError(nil))

	appErr := FromError(ErrNotFound)
	require.Equal(t, ErrNotFound, appErr)

	generic := FromError(errors.New("boom"))
	require.Equal(t, ErrInternal.Code, generic.Code)
	require.EqualError(t, generic.Internal, "boom")
}

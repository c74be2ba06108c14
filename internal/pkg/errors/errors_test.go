package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorUnwrapsToInvalid(t *testing.T) {
	err := fmt.Errorf("check id: %w", Invalid("This path is reserved"))
	require.True(t, IsInvalid(err))
	require.True(t, errors.Is(err, ErrInvalid))
	require.False(t, IsConflict(err))
	require.Equal(t, "This path is reserved", Message(err))
}

func TestMessageFallsBackToErrorString(t *testing.T) {
	require.Equal(t, "conflict", Message(ErrConflict))
	require.Equal(t, "", Message(nil))
}

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_CodeSurvivesWrapping(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("failed to unstake: %w", Conflict("stake %d is still locked", 7))

	assert.Equal(t, CodeStateConflict, CodeOf(err))
	assert.True(t, errors.Is(err, ErrStateConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "stake 7 is still locked")
}

func TestCodeOf_NonDomainError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("connection reset")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("bcrypt mismatch")
	err := &Error{Code: CodeValidation, Message: "invalid security password", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "validation: invalid security password: bcrypt mismatch", err.Error())
}

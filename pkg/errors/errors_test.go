package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	typed := Describe(ErrNotFound, "Student not found", "No student found with the provided ID")
	wrapped := fmt.Errorf("get: %w", typed)

	got := FromError(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, http.StatusNotFound, got.Status)
	assert.Equal(t, "Student not found", got.Message)
	assert.Equal(t, "No student found with the provided ID", got.Description)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	raw := errors.New("connection reset")
	got := FromError(raw)
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, raw)
	assert.Nil(t, FromError(nil))
}

func TestDescribeDoesNotMutatePredefined(t *testing.T) {
	_ = Describe(ErrValidation, "All fields are required", "Please provide all required fields")
	assert.Equal(t, "validation failed", ErrValidation.Message)
	assert.Empty(t, ErrValidation.Description)
}

func TestWrapInternal(t *testing.T) {
	raw := errors.New("deadlock")
	got := WrapInternal(raw, "Error updating student", "Student details could not be updated")
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "Error updating student: deadlock", got.Error())
	assert.ErrorIs(t, got, raw)
}

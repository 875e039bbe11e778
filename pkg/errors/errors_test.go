package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrForbidden, "submission already graded")
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, "submission already graded", err.Message)
	assert.Equal(t, http.StatusForbidden, err.Status)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)

	wrapped := fmt.Errorf("dispatch: %w", Clone(ErrNotFound, "course not found"))
	assert.Equal(t, ErrNotFound.Code, FromError(wrapped).Code)
	assert.Nil(t, FromError(nil))
}

func TestStoreKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Store(cause, "failed to load course")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.Contains(t, err.Error(), "connection reset")
}

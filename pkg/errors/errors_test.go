package vahub_errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("BAD", "bad input"), http.StatusBadRequest},
		{ErrNotParticipant, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrAlreadyExists, http.StatusConflict},
		{Transient("DB_DOWN", "database unavailable", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "error %v", tt.err)
	}
}

func TestHTTPStatusSeesThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading conversation: %w", ErrNotFound)
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "NOT_FOUND", CodeOf(wrapped))
}

func TestWrapPreservesKindAndCode(t *testing.T) {
	cause := errors.New("duplicate key value violates unique constraint")
	err := ErrAlreadyExists.Wrap(cause)

	assert.True(t, IsConflict(err))
	assert.Equal(t, "ALREADY_EXISTS", CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestCodeOfUnknownError(t *testing.T) {
	assert.Equal(t, "INTERNAL_ERROR", CodeOf(errors.New("boom")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Transient("TRY_AGAIN", "busy", nil).Retryable())
	assert.False(t, ErrNotFound.Retryable())
}

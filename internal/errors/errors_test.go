// internal/errors/errors_test.go
package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   string
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest, "VALIDATION_ERROR"},
		{NewNotFoundError("missing", nil), http.StatusNotFound, "NOT_FOUND"},
		{NewUnauthorizedError("who", nil), http.StatusUnauthorized, "UNAUTHORIZED"},
		{NewForbiddenError("no", nil), http.StatusForbidden, "FORBIDDEN"},
		{NewConflictError("dup", nil), http.StatusConflict, "CONFLICT"},
		{NewTimeoutError("slow", nil), http.StatusGatewayTimeout, "TIMEOUT"},
		{NewProcessingError("boom", nil), http.StatusInternalServerError, "PROCESSING_ERROR"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.HTTPStatus(), tc.err.Message)
		assert.Equal(t, tc.code, tc.err.Code)
	}
}

func TestWrapErrorKeepsType(t *testing.T) {
	base := NewNotFoundError("drawing not found", nil)
	wrapped := WrapError(fmt.Errorf("outer: %w", base), "load drawing", ErrorTypeError)

	assert.True(t, IsNotFoundError(wrapped))
	assert.Contains(t, wrapped.Error(), "load drawing: drawing not found")

	plain := WrapError(io.EOF, "read body", ErrorTypeValidation)
	assert.True(t, IsValidationError(plain))
	assert.ErrorIs(t, plain, io.EOF)

	assert.Nil(t, WrapError(nil, "noop", ErrorTypeError))
}

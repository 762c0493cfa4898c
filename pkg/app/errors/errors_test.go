package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceError_StatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{BadRequestError(nil, "bad"), http.StatusBadRequest},
		{UnAuthorizedError(nil, "no token"), http.StatusUnauthorized},
		{ForbiddenError(nil, "nope"), http.StatusForbidden},
		{ResourceNotFoundError(nil, "missing"), http.StatusNotFound},
		{ConflictError(nil, "busy"), http.StatusConflict},
		{DependencyError(nil, "ledger down"), http.StatusBadGateway},
		{UnavailableError(nil, "disabled"), http.StatusServiceUnavailable},
		{GeneralError(nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		var svcErr *ServiceError
		require.True(t, errors.As(tt.err, &svcErr))
		assert.Equal(t, tt.want, svcErr.StatusCode(), svcErr.Category.String())
	}
}

func TestServiceError_Wrapping(t *testing.T) {
	cause := errors.New("root cause")
	err := fmt.Errorf("handler: %w", ConflictError(cause, "command already running"))

	assert.True(t, Is(err, CategoryDataConflict))
	assert.False(t, Is(err, CategoryDataError))
	assert.ErrorIs(t, err, cause)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, "command already running", svcErr.Message)
	assert.Equal(t, "root cause", svcErr.Error())
}

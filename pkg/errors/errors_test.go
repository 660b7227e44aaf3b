package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDenialErrorsStayGeneric(t *testing.T) {
	// Denials must not leak which policy clause fired.
	assert.Equal(t, "access denied", AccessDenied().Message)
	assert.Equal(t, "operation not permitted", Forbidden().Message)
	assert.Equal(t, http.StatusForbidden, AccessDenied().HTTPStatus)
	assert.Equal(t, http.StatusForbidden, Forbidden().HTTPStatus)

	pnf := PolicyNotFound("capability")
	assert.Equal(t, "access denied", pnf.Message)
	assert.NotContains(t, pnf.Message, "capability", "the missing policy kind stays server-side")
}

func TestValidationFailedWithFields(t *testing.T) {
	err := ValidationFailedWithFields(map[string]string{"action": "action is required"})
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, "action is required", err.FieldErrors["action"])
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType(AccessDenied(), ErrorTypeAccessDenied))
	assert.False(t, IsType(AccessDenied(), ErrorTypeValidation))
	assert.True(t, IsType(fmt.Errorf("wrapped: %w", Forbidden()), ErrorTypeForbidden))
	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeForbidden))
}

func TestAsAPIError(t *testing.T) {
	apiErr := AsAPIError(NotFound("session"))
	assert.Equal(t, http.StatusNotFound, apiErr.HTTPStatus)

	wrapped := AsAPIError(fmt.Errorf("something unexpected"))
	assert.Equal(t, ErrorTypeInternal, wrapped.Type)
	assert.Equal(t, http.StatusInternalServerError, wrapped.HTTPStatus)
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Database("save policy", cause)
	assert.ErrorIs(t, err, cause)
}

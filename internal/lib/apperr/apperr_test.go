package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Status(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusUnprocessableEntity},
		{KindBadRequest, http.StatusBadRequest},
		{KindNotFound, http.StatusNotFound},
		{KindConflict, http.StatusConflict},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindForbidden, http.StatusForbidden},
		{KindUpstream, http.StatusBadGateway},
		{KindPersistence, http.StatusFailedDependency},
		{KindExpired, http.StatusGone},
		{KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.kind.Status())
	}
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("auth.Login: %w", Forbidden("User account is inactive"))

	e := As(wrapped)
	assert.Equal(t, KindForbidden, e.Kind)
	assert.Equal(t, "User account is inactive", e.Message)

	plain := As(errors.New("db down"))
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "Internal server error", plain.Message)
	assert.EqualError(t, plain.Unwrap(), "db down")

	assert.Nil(t, As(nil))
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Expired("Reset token expired"))
	assert.True(t, IsKind(err, KindExpired))
	assert.False(t, IsKind(err, KindBadRequest))
	assert.False(t, IsKind(errors.New("x"), KindInternal))
}

func TestError_MessageHidesCauseOnlyInMessage(t *testing.T) {
	cause := errors.New("pq: duplicate key")
	e := Persistence("Failed to create user", cause)

	assert.Equal(t, "Failed to create user", e.Message)
	assert.Contains(t, e.Error(), "duplicate key")
	assert.ErrorIs(t, e, cause)
}

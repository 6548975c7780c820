package auth_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	auth "github.com/placesapp/go-auth"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", auth.ErrUserNotFound, 404},
		{"conflict", auth.ErrEmailAlreadyRegistered, 409},
		{"credentials", auth.ErrInvalidCredentials, 401},
		{"forbidden", auth.ErrForbidden, 403},
		{"rate limited", auth.ErrTooManyRequests, 429},
		{"plain error", errors.New("boom"), 500},
		{"wrapped rich error", fmt.Errorf("outer: %w", auth.ErrGuestOnly), 403},
		{"category without code", goerrors.New("bad", goerrors.CategoryValidation), 400},
		{"cancelled", goerrors.New("gone", goerrors.CategoryOperation), 408},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.StatusCode(tt.err))
		})
	}
}

func TestTextCodeHelpers(t *testing.T) {
	assert.Equal(t, "", auth.TextCode(nil))
	assert.Equal(t, "", auth.TextCode(errors.New("plain")))
	assert.Equal(t, auth.TextCodeConsumedCode, auth.TextCode(fmt.Errorf("ctx: %w", auth.ErrConsumedResetCode)))

	assert.True(t, auth.HasTextCode(auth.ErrSignatureInvalid, auth.TextCodeSignatureInvalid))
	assert.False(t, auth.HasTextCode(nil, auth.TextCodeSignatureInvalid))
	assert.True(t, auth.IsSignatureInvalid(auth.ErrSignatureInvalid))

	assert.True(t, auth.IsAuthenticationError(auth.ErrUnauthenticated))
	assert.False(t, auth.IsAuthenticationError(auth.ErrForbidden))
	assert.True(t, auth.IsAuthorizationError(auth.ErrRoleEscalation))
}

func TestRefreshTokenFailureReason(t *testing.T) {
	assert.Equal(t, auth.ReasonExpired, auth.RefreshTokenFailureReason(auth.ErrRefreshTokenExpired))
	assert.Equal(t, auth.ReasonDisabled, auth.RefreshTokenFailureReason(auth.ErrRefreshTokenDisabled))
	assert.Empty(t, auth.RefreshTokenFailureReason(auth.ErrUserNotFound))
	assert.Empty(t, auth.RefreshTokenFailureReason(nil))
}

package auth

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeUserNotFound           = "USER_NOT_FOUND"
	TextCodeRefreshTokenNotFound   = "REFRESH_TOKEN_NOT_FOUND"
	TextCodeMemberCodeNotFound     = "MEMBER_CODE_NOT_FOUND"
	TextCodeInvalidCode            = "INVALID_CODE"
	TextCodeExpiredCode            = "EXPIRED_CODE"
	TextCodeConsumedCode           = "CONSUMED_CODE"
	TextCodeAlreadyMember          = "ALREADY_MEMBER"
	TextCodeInvalidMemberCode      = "INVALID_MEMBER_CODE"
	TextCodeEmailAlreadyRegistered = "EMAIL_ALREADY_REGISTERED"
	TextCodeInvalidCredentials     = goerrors.TextCodeInvalidCredentials
	TextCodeNoPassword             = "NO_PASSWORD"
	TextCodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	TextCodeSignatureInvalid       = "SIGNATURE_INVALID"
	TextCodeTokenExpired           = goerrors.TextCodeTokenExpired
	TextCodeTokenNotValidYet       = "TOKEN_NOT_VALID_YET"
	TextCodeTokenInvalidAudience   = "TOKEN_INVALID_AUDIENCE"
	TextCodeTokenMalformed         = goerrors.TextCodeTokenMalformed
	TextCodeTokenInvalid           = "TOKEN_INVALID"
	TextCodeUnauthenticated        = "UNAUTHENTICATED"
	TextCodeForbidden              = "FORBIDDEN"
	TextCodeGuestOnly              = "GUEST_ONLY"
	TextCodeRoleEscalation         = "ROLE_ESCALATION"
	TextCodeTooManyRequests        = goerrors.TextCodeResetRateLimit
)

// Refresh token failure reasons, set under the "reason" metadata key
const (
	ReasonExpired  = "expired"
	ReasonDisabled = "disabled"
)

// Error templates. Always return them through newError so callers get
// their own copy to decorate.
var (
	ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeUserNotFound)

	ErrRefreshTokenNotFound = goerrors.New("refresh token not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeRefreshTokenNotFound)

	ErrMemberCodeNotFound = goerrors.New("member code not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound).
		WithTextCode(TextCodeMemberCodeNotFound)

	ErrInvalidResetCode = goerrors.New("invalid password reset code", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeInvalidCode)

	ErrExpiredResetCode = goerrors.New("password reset code has expired", goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeExpiredCode)

	ErrConsumedResetCode = goerrors.New("password reset code was already used", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeConsumedCode)

	ErrAlreadyMember = goerrors.New("user is already a member", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeAlreadyMember)

	ErrInvalidMemberCode = goerrors.New("member code was already used", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeInvalidMemberCode)

	ErrEmailAlreadyRegistered = goerrors.New("email address is already registered", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict).
		WithTextCode(TextCodeEmailAlreadyRegistered)

	ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidCredentials)

	ErrNoPassword = goerrors.New("account has no password set", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeNoPassword)

	ErrRefreshTokenExpired = goerrors.New("refresh token has expired", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidRefreshToken).
		WithMetadata(map[string]any{"reason": ReasonExpired})

	ErrRefreshTokenDisabled = goerrors.New("refresh token is disabled", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeInvalidRefreshToken).
		WithMetadata(map[string]any{"reason": ReasonDisabled})

	ErrSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeSignatureInvalid)

	ErrUnauthenticated = goerrors.New("missing or invalid credentials", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeUnauthenticated)

	ErrInvalidAccessToken = goerrors.New("invalid access token", goerrors.CategoryAuth).
		WithCode(goerrors.CodeUnauthorized).
		WithTextCode(TextCodeTokenInvalid)

	ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeForbidden)

	ErrGuestOnly = goerrors.New("route is only available to anonymous clients", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeGuestOnly)

	ErrRoleEscalation = goerrors.New("cannot grant a privilege above your own", goerrors.CategoryAuthz).
		WithCode(goerrors.CodeForbidden).
		WithTextCode(TextCodeRoleEscalation)

	ErrTooManyRequests = goerrors.New("too many requests, try again later", goerrors.CategoryRateLimit).
		WithCode(goerrors.CodeTooManyRequests).
		WithTextCode(TextCodeTooManyRequests)

	// ErrRecordNotFound is returned by stores when a lookup yields no row
	ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
		WithCode(goerrors.CodeNotFound)

	// ErrRecordConflict is returned by stores on unique constraint violations
	ErrRecordConflict = goerrors.New("record already exists", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict)

	// ErrAlreadyConsumed is returned by stores when a conditional consume
	// finds the row was consumed by someone else
	ErrAlreadyConsumed = goerrors.New("record was already consumed", goerrors.CategoryConflict).
		WithCode(goerrors.CodeConflict)
)

func newError(template *goerrors.Error, metadata ...map[string]any) *goerrors.Error {
	err := template.Clone()
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata...)
	}
	return err
}

func tokenError(textCode, message string, cause error) *goerrors.Error {
	err := goerrors.New(message, goerrors.CategoryInternal).
		WithTextCode(textCode).
		WithCode(goerrors.CodeUnauthorized)
	err.Source = cause
	return err
}

// TextCode returns the text code of the first rich error in the chain
func TextCode(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return rich.TextCode
	}
	return ""
}

// HasTextCode reports whether err carries the given text code
func HasTextCode(err error, code string) bool {
	return err != nil && TextCode(err) == code
}

// IsSignatureInvalid checks for token signature failures
func IsSignatureInvalid(err error) bool {
	return HasTextCode(err, TextCodeSignatureInvalid)
}

// IsTokenError checks for token failures other than signature mismatch
func IsTokenError(err error) bool {
	switch TextCode(err) {
	case TextCodeTokenExpired, TextCodeTokenNotValidYet, TextCodeTokenInvalidAudience, TextCodeTokenMalformed:
		return true
	}
	return false
}

// IsAuthenticationError reports errors that should make a client log in again
func IsAuthenticationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuth)
}

// IsAuthorizationError reports errors caused by missing permissions
func IsAuthorizationError(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuthz)
}

// RefreshTokenFailureReason returns ReasonExpired or ReasonDisabled
func RefreshTokenFailureReason(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != TextCodeInvalidRefreshToken {
		return ""
	}
	reason, _ := rich.Metadata["reason"].(string)
	return reason
}

// StatusCode maps an error to the HTTP status it should be reported with
func StatusCode(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}
	if rich.Code != 0 {
		return rich.Code
	}
	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

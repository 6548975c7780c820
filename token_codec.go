package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// SignOptions sets the validity window of a signed token
type SignOptions struct {
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// VerifyOptions restricts which tokens Verify accepts
type VerifyOptions struct {
	// Audience, when set, must be present in the token aud claim
	Audience string
}

// SignedToken is a compact JWT plus the window it was signed with
type SignedToken struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens. It holds no mutable state
// and can be shared between goroutines.
type TokenCodec struct {
	secret []byte
	clock  Clock
}

// NewTokenCodec creates a codec for secret. A nil clock uses time.Now.
func NewTokenCodec(secret []byte, clock Clock) *TokenCodec {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenCodec{secret: key, clock: clock}
}

// Sign sets iat, nbf and exp on a copy of claims and signs it.
// JWT dates have second precision, sub-second parts are dropped.
func (c *TokenCodec) Sign(claims *AccessClaims, opts SignOptions) (SignedToken, error) {
	if claims == nil {
		return SignedToken{}, goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}
	if !opts.ExpiresAt.After(opts.IssuedAt) {
		return SignedToken{}, goerrors.New("token must expire after it is issued", goerrors.CategoryInternal)
	}

	signed := claims.clone()
	signed.IssuedAt = jwt.NewNumericDate(opts.IssuedAt)
	signed.NotBefore = jwt.NewNumericDate(opts.IssuedAt)
	signed.ExpiresAt = jwt.NewNumericDate(opts.ExpiresAt)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, signed).SignedString(c.secret)
	if err != nil {
		return SignedToken{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return SignedToken{
		Token:     token,
		IssuedAt:  opts.IssuedAt,
		ExpiresAt: opts.ExpiresAt,
	}, nil
}

// Verify checks signature, nbf, exp and optionally aud.
// A signature mismatch fails with SIGNATURE_INVALID; every other failure
// is a token error carrying the parser error as its source.
func (c *TokenCodec) Verify(tokenString string, opts VerifyOptions) (*AccessClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if opts.Audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(opts.Audience))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return c.secret, nil
	}, parserOptions...)

	if err != nil {
		return nil, classifyTokenError(err)
	}

	if !token.Valid {
		return nil, tokenError(TextCodeTokenMalformed, "token is not valid", nil)
	}

	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		sigErr := newError(ErrSignatureInvalid)
		sigErr.Source = err
		return sigErr
	case errors.Is(err, jwt.ErrTokenExpired):
		return tokenError(TextCodeTokenExpired, "token has expired", err)
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return tokenError(TextCodeTokenNotValidYet, "token is not valid yet", err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return tokenError(TextCodeTokenInvalidAudience, "token audience mismatch", err)
	default:
		return tokenError(TextCodeTokenMalformed, "token is malformed", err)
	}
}

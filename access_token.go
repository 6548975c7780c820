package auth

import (
	"time"
)

const (
	// DefaultAudience is the aud claim of every access token
	DefaultAudience = "api"
	// DefaultAccessTokenTTL is how long an access token stays valid
	DefaultAccessTokenTTL = time.Hour
)

// AccessToken is a signed, unpersisted credential
type AccessToken struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccessTokenIssuer mints access tokens from a user snapshot
type AccessTokenIssuer struct {
	codec    *TokenCodec
	clock    Clock
	ids      IDGenerator
	ttl      time.Duration
	audience string
}

// NewAccessTokenIssuer creates an issuer with the default lifetime and audience
func NewAccessTokenIssuer(codec *TokenCodec, clock Clock) *AccessTokenIssuer {
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	return &AccessTokenIssuer{
		codec:    codec,
		clock:    clock,
		ids:      UUIDGenerator{},
		ttl:      DefaultAccessTokenTTL,
		audience: DefaultAudience,
	}
}

// WithTTL overrides the token lifetime
func (i *AccessTokenIssuer) WithTTL(ttl time.Duration) *AccessTokenIssuer {
	if ttl > 0 {
		i.ttl = ttl
	}
	return i
}

// WithIDGenerator overrides the source of jti values
func (i *AccessTokenIssuer) WithIDGenerator(ids IDGenerator) *AccessTokenIssuer {
	if ids != nil {
		i.ids = ids
	}
	return i
}

// WithAudience overrides the aud claim
func (i *AccessTokenIssuer) WithAudience(audience string) *AccessTokenIssuer {
	if audience != "" {
		i.audience = audience
	}
	return i
}

// Audience returns the aud claim minted tokens carry
func (i *AccessTokenIssuer) Audience() string {
	return i.audience
}

// Create signs a fresh access token for user. Every token gets its own
// jti so two tokens minted within the same second still differ.
func (i *AccessTokenIssuer) Create(user *User) (*AccessToken, error) {
	now := i.clock.Now()
	claims := NewAccessClaims(user, i.audience)
	claims.ID = i.ids.NewID()
	signed, err := i.codec.Sign(claims, SignOptions{
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	})
	if err != nil {
		return nil, err
	}
	return &AccessToken{
		Token:     signed.Token,
		IssuedAt:  signed.IssuedAt,
		ExpiresAt: signed.ExpiresAt,
	}, nil
}

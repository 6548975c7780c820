package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the claim set carried by access tokens
type AccessClaims struct {
	jwt.RegisteredClaims
	EmailAddress string `json:"emailAddress"`
	Role         Role   `json:"role"`
	Rank         Rank   `json:"rank"`
	LastName     string `json:"lastName"`
}

// NewAccessClaims builds the domain claims for user. Time based claims
// are set when the token is signed.
func NewAccessClaims(user *User, audience string) *AccessClaims {
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
		},
		EmailAddress: user.EmailAddress,
		Role:         user.Role,
		Rank:         user.Rank,
		LastName:     user.LastName,
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return claims
}

// UserID returns the subject claim
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// Expires returns the expiration time, zero if unset
func (c *AccessClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time, zero if unset
func (c *AccessClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// AuthContext builds the request scoped identity from the claims
func (c *AccessClaims) AuthContext() *AuthContext {
	return &AuthContext{
		UserID:       c.Subject,
		Role:         c.Role,
		Rank:         c.Rank,
		EmailAddress: c.EmailAddress,
		LastName:     c.LastName,
	}
}

func (c *AccessClaims) clone() *AccessClaims {
	out := *c
	if c.Audience != nil {
		out.Audience = append(jwt.ClaimStrings(nil), c.Audience...)
	}
	return &out
}

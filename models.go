package auth

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                string     `bun:"id,pk,type:uuid" json:"id"`
	EmailAddress      string     `bun:"email_address,notnull,unique" json:"email_address"`
	PasswordHash      *string    `bun:"password_hash" json:"-"`
	Role              Role       `bun:"role,notnull" json:"role"`
	Rank              Rank       `bun:"rank,notnull" json:"rank"`
	FirstName         string     `bun:"first_name,notnull" json:"first_name"`
	LastName          string     `bun:"last_name,notnull" json:"last_name"`
	LastAccess        *time.Time `bun:"last_access,nullzero" json:"last_access,omitempty"`
	LastDeviceOS      string     `bun:"last_device_os" json:"last_device_os,omitempty"`
	LastDeviceVersion string     `bun:"last_device_version" json:"last_device_version,omitempty"`
	CreatedAt         time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// HasPassword reports whether the user can log in with credentials.
// Some legacy accounts were imported without one.
func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// SetPassword stores an already hashed password
func (u *User) SetPassword(hash string) {
	u.PasswordHash = &hash
}

// Touch records an access at now and the device used, if any.
// It returns true when a device field changed.
func (u *User) Touch(now time.Time, device DeviceInfo) bool {
	u.LastAccess = &now
	changed := false
	if device.OS != "" && device.OS != u.LastDeviceOS {
		u.LastDeviceOS = device.OS
		changed = true
	}
	if device.Version != "" && device.Version != u.LastDeviceVersion {
		u.LastDeviceVersion = device.Version
		changed = true
	}
	return changed
}

// Snapshot returns the public view of the user
func (u *User) Snapshot() UserSnapshot {
	return UserSnapshot{
		ID:           u.ID,
		EmailAddress: u.EmailAddress,
		Role:         u.Role,
		Rank:         u.Rank,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		LastAccess:   u.LastAccess,
	}
}

// UserSnapshot is the user representation handed out with a session
type UserSnapshot struct {
	ID           string     `json:"id"`
	EmailAddress string     `json:"email_address"`
	Role         Role       `json:"role"`
	Rank         Rank       `json:"rank"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	LastAccess   *time.Time `json:"last_access,omitempty"`
}

// DeviceInfo is the client device reported on login
type DeviceInfo struct {
	OS      string `json:"os,omitempty"`
	Version string `json:"version,omitempty"`
}

// RefreshToken is a long lived opaque credential
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            string    `bun:"id,pk,type:uuid" json:"id"`
	UserID        string    `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Value         string    `bun:"value,notnull,unique" json:"value"`
	Disabled      bool      `bun:"disabled,notnull" json:"disabled"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// IsExpired reports whether the token is past its expiration at now
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsUsable reports whether the token can be exchanged at now
func (t *RefreshToken) IsUsable(now time.Time) bool {
	return !t.Disabled && !t.IsExpired(now)
}

// PasswordReset is a single use password reset code
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            string    `bun:"id,pk,type:uuid" json:"id"`
	UserID        string    `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Code          string    `bun:"code,notnull" json:"code"`
	IsConsumed    bool      `bun:"is_consumed,notnull" json:"is_consumed"`
	CreatedAt     time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// IsExpired reports whether the reset is past its expiration at now
func (r *PasswordReset) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsUsable reports whether the reset can still be consumed at now
func (r *PasswordReset) IsUsable(now time.Time) bool {
	return !r.IsConsumed && !r.IsExpired(now)
}

// MemberCode is an invitation code that upgrades a guest to member
type MemberCode struct {
	bun.BaseModel `bun:"table:member_codes,alias:mbc"`
	ID            string     `bun:"id,pk,type:uuid" json:"id"`
	Code          string     `bun:"code,notnull,unique" json:"code"`
	IsConsumed    bool       `bun:"is_consumed,notnull" json:"is_consumed"`
	UserID        *string    `bun:"user_id,unique,type:uuid" json:"user_id,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
}

// IsConsumable reports whether the code was never used
func (c *MemberCode) IsConsumable() bool {
	return !c.IsConsumed
}

// NormalizeEmail trims and lower cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package auth

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured
const DefaultBcryptCost = 12

// ErrEmptyPassword is returned when hashing an empty password
var ErrEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(goerrors.TextCodeEmptyPassword)

// BcryptStrategy implements PasswordStrategy with bcrypt
type BcryptStrategy struct {
	cost int
}

// NewBcryptStrategy creates a strategy with cost, clamped to bcrypt's bounds
func NewBcryptStrategy(cost int) *BcryptStrategy {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &BcryptStrategy{cost: cost}
}

// Hash will generate a password hash
func (s *BcryptStrategy) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", newError(ErrEmptyPassword)
	}

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(h), nil
}

// Equals will validate the given cleartext password matches the hashed
// password. A mismatch is not an error.
func (s *BcryptStrategy) Equals(plaintext, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
}

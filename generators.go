package auth

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// CodeAlphabet avoids characters that are easy to confuse when typed
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultResetCodeLength  = 8
	DefaultMemberCodeLength = 10
	refreshTokenBytes       = 32
)

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// UUIDGenerator produces random v4 UUIDs
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// ShortCodeGenerator produces upper case codes from CodeAlphabet
type ShortCodeGenerator struct {
	Length int
}

// NewShortCodeGenerator creates a generator of codes with length characters
func NewShortCodeGenerator(length int) ShortCodeGenerator {
	return ShortCodeGenerator{Length: length}
}

// NewCode keeps the tail of a shortuuid encoding, which holds the low
// random bits of the underlying uuid.
func (g ShortCodeGenerator) NewCode() string {
	n := g.Length
	if n <= 0 {
		n = DefaultResetCodeLength
	}
	id := shortuuid.NewWithAlphabet(CodeAlphabet)
	if n >= len(id) {
		return id
	}
	return id[len(id)-n:]
}

// CryptoRandom reads refresh token values from crypto/rand
type CryptoRandom struct{}

func (CryptoRandom) RandomString() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read random bytes")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

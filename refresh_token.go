package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultRefreshTokenTTL is how long a refresh token stays valid
const DefaultRefreshTokenTTL = 30 * 24 * time.Hour

// RefreshTokenLedger creates and checks long lived refresh tokens.
// Tokens are never rotated; the same value stays valid until it expires
// or gets disabled.
type RefreshTokenLedger struct {
	repo   RepositoryManager
	ids    IDGenerator
	random RandomSource
	clock  Clock
	ttl    time.Duration
}

// NewRefreshTokenLedger creates a ledger with the default lifetime
func NewRefreshTokenLedger(repo RepositoryManager, ids IDGenerator, random RandomSource, clock Clock) *RefreshTokenLedger {
	if ids == nil {
		ids = UUIDGenerator{}
	}
	if random == nil {
		random = CryptoRandom{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RefreshTokenLedger{
		repo:   repo,
		ids:    ids,
		random: random,
		clock:  clock,
		ttl:    DefaultRefreshTokenTTL,
	}
}

// WithTTL overrides the token lifetime
func (l *RefreshTokenLedger) WithTTL(ttl time.Duration) *RefreshTokenLedger {
	if ttl > 0 {
		l.ttl = ttl
	}
	return l
}

// Create issues and persists a new token for user
func (l *RefreshTokenLedger) Create(ctx context.Context, user *User) (*RefreshToken, error) {
	return l.CreateTx(ctx, l.repo, user)
}

// CreateTx issues a new token for user using the repositories of tx
func (l *RefreshTokenLedger) CreateTx(ctx context.Context, tx RepositoryManager, user *User) (*RefreshToken, error) {
	value, err := l.random.RandomString()
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	token := &RefreshToken{
		ID:        l.ids.NewID(),
		UserID:    user.ID,
		Value:     value,
		Disabled:  false,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}

	if _, err := tx.RefreshTokens().Create(ctx, token); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist refresh token")
	}

	return token, nil
}

// FindUsable looks up a token by value and checks it can still be used.
// Expired and disabled tokens fail with distinct messages.
func (l *RefreshTokenLedger) FindUsable(ctx context.Context, value string) (*RefreshToken, error) {
	token, err := l.repo.RefreshTokens().GetByValue(ctx, value)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, newError(ErrRefreshTokenNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve refresh token")
	}

	if token.Disabled {
		return nil, newError(ErrRefreshTokenDisabled)
	}

	if token.IsExpired(l.clock.Now()) {
		return nil, newError(ErrRefreshTokenExpired, map[string]any{
			"expired_at": token.ExpiresAt,
		})
	}

	return token, nil
}

// Disable marks the token unusable
func (l *RefreshTokenLedger) Disable(ctx context.Context, value string) error {
	if err := l.repo.RefreshTokens().Disable(ctx, value); err != nil {
		if goerrors.IsNotFound(err) {
			return newError(ErrRefreshTokenNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "could not disable refresh token")
	}
	return nil
}

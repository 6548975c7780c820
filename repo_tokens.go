package auth

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// RefreshTokens stores refresh tokens
type RefreshTokens interface {
	GetByValue(ctx context.Context, value string) (*RefreshToken, error)
	Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	// Disable flags the token as unusable, returns ErrRecordNotFound for
	// unknown values
	Disable(ctx context.Context, value string) error
}

// PasswordResets stores password reset codes
type PasswordResets interface {
	// GetByCode returns the newest reset issued with code
	GetByCode(ctx context.Context, code string) (*PasswordReset, error)
	Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error)
	// Consume flips is_consumed only if it was still false, otherwise it
	// returns ErrAlreadyConsumed
	Consume(ctx context.Context, id string) error
}

// MemberCodes stores invitation codes
type MemberCodes interface {
	GetByCode(ctx context.Context, code string) (*MemberCode, error)
	Create(ctx context.Context, records ...*MemberCode) error
	// Consume binds the code to userID only if it was still unconsumed,
	// otherwise it returns ErrAlreadyConsumed
	Consume(ctx context.Context, id, userID string, at time.Time) error
}

type refreshTokens struct {
	db bun.IDB
}

// NewRefreshTokensRepository creates a bun backed RefreshTokens store
func NewRefreshTokensRepository(db bun.IDB) RefreshTokens {
	return &refreshTokens{db: db}
}

func (r *refreshTokens) GetByValue(ctx context.Context, value string) (*RefreshToken, error) {
	record := &RefreshToken{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.value = ?", value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get refresh token")
	}
	return record, nil
}

func (r *refreshTokens) Create(ctx context.Context, record *RefreshToken) (*RefreshToken, error) {
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, storeError(err, "failed to create refresh token")
	}
	return record, nil
}

func (r *refreshTokens) Disable(ctx context.Context, value string) error {
	res, err := r.db.NewUpdate().
		Model((*RefreshToken)(nil)).
		Set("disabled = TRUE").
		Where("value = ?", value).
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to disable refresh token")
	}
	ok, err := affectedOne(res)
	if err != nil {
		return storeError(err, "failed to disable refresh token")
	}
	if !ok {
		return newError(ErrRecordNotFound)
	}
	return nil
}

type passwordResets struct {
	db bun.IDB
}

// NewPasswordResetsRepository creates a bun backed PasswordResets store
func NewPasswordResetsRepository(db bun.IDB) PasswordResets {
	return &passwordResets{db: db}
}

func (r *passwordResets) GetByCode(ctx context.Context, code string) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get password reset")
	}
	return record, nil
}

func (r *passwordResets) Create(ctx context.Context, record *PasswordReset) (*PasswordReset, error) {
	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, storeError(err, "failed to create password reset")
	}
	return record, nil
}

func (r *passwordResets) Consume(ctx context.Context, id string) error {
	res, err := r.db.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("is_consumed = TRUE").
		Where("id = ?", id).
		Where("is_consumed = FALSE").
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to consume password reset")
	}
	ok, err := affectedOne(res)
	if err != nil {
		return storeError(err, "failed to consume password reset")
	}
	if !ok {
		return newError(ErrAlreadyConsumed)
	}
	return nil
}

type memberCodes struct {
	db bun.IDB
}

// NewMemberCodesRepository creates a bun backed MemberCodes store
func NewMemberCodesRepository(db bun.IDB) MemberCodes {
	return &memberCodes{db: db}
}

func (r *memberCodes) GetByCode(ctx context.Context, code string) (*MemberCode, error) {
	record := &MemberCode{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get member code")
	}
	return record, nil
}

func (r *memberCodes) Create(ctx context.Context, records ...*MemberCode) error {
	if len(records) == 0 {
		return nil
	}
	if _, err := r.db.NewInsert().Model(&records).Exec(ctx); err != nil {
		return storeError(err, "failed to create member codes")
	}
	return nil
}

func (r *memberCodes) Consume(ctx context.Context, id, userID string, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*MemberCode)(nil)).
		Set("is_consumed = TRUE").
		Set("user_id = ?", userID).
		Set("consumed_at = ?", at).
		Where("id = ?", id).
		Where("is_consumed = FALSE").
		Exec(ctx)
	if err != nil {
		return storeError(err, "failed to consume member code")
	}
	ok, err := affectedOne(res)
	if err != nil {
		return storeError(err, "failed to consume member code")
	}
	if !ok {
		return newError(ErrAlreadyConsumed)
	}
	return nil
}

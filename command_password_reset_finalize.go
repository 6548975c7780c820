package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Code     string `json:"code" example:"7KQ2MZ4A" doc:"Code received by email"`
	Password string `json:"password" example:"some_secret_word" doc:"New password"`
}

func (m FinalizePasswordResetMessage) Type() string { return "user.password_reset.end" }

func (m FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Code, validation.Required),
		validation.Field(&m.Password, validation.Required, validation.Length(8, 72)),
	)
}

// End redeems a reset code and sets the new password.
// Consuming the code and writing the password share one transaction, and
// the consume only succeeds for the first of two concurrent requests.
func (f *PasswordResetFlow) End(ctx context.Context, msg FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return f.end(ctx, msg)
	}
}

func (f *PasswordResetFlow) end(ctx context.Context, msg FinalizePasswordResetMessage) error {
	msg.Code = strings.TrimSpace(msg.Code)
	if err := msg.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid password reset confirmation")
	}

	var reset *PasswordReset

	err := f.repo.RunInTx(ctx, func(ctx context.Context, tx RepositoryManager) error {
		var err error
		reset, err = tx.PasswordResets().GetByCode(ctx, msg.Code)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return newError(ErrInvalidResetCode)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}

		if reset.IsExpired(f.clock.Now()) {
			return newError(ErrExpiredResetCode, map[string]any{"expired_at": reset.ExpiresAt})
		}

		if reset.IsConsumed {
			return newError(ErrConsumedResetCode)
		}

		user, err := tx.Users().GetByID(ctx, reset.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return newError(ErrUserNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user for password reset")
		}

		hash, err := f.passwords.Hash(msg.Password)
		if err != nil {
			return err
		}

		if err := tx.PasswordResets().Consume(ctx, reset.ID); err != nil {
			if goerrors.IsCategory(err, goerrors.CategoryConflict) {
				return newError(ErrConsumedResetCode)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password reset status")
		}

		user.SetPassword(hash)
		user.UpdatedAt = f.clock.Now()
		if _, err := tx.Users().Update(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password in database")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	f.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		ActorID:    reset.UserID,
		UserID:     reset.UserID,
		Metadata:   map[string]any{"password_reset_id": reset.ID},
		OccurredAt: f.clock.Now(),
	})

	return nil
}

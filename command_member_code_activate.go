package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type ActivateMemberCodeMessage struct {
	UserID string `json:"user_id"`
	Code   string `json:"code" example:"CODE123" doc:"Member code"`
}

func (m ActivateMemberCodeMessage) Type() string { return "user.member_code.activate" }

func (m ActivateMemberCodeMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.Code, validation.Required),
	)
}

// MemberCodeActivation validates and consumes invitation codes that
// upgrade a user to member rank
type MemberCodeActivation struct {
	activityRecorder
	repo  RepositoryManager
	ids   IDGenerator
	codes CodeGenerator
	clock Clock
}

// NewMemberCodeActivation creates an activation component with sane defaults.
func NewMemberCodeActivation(repo RepositoryManager) *MemberCodeActivation {
	return &MemberCodeActivation{
		activityRecorder: newActivityRecorder(),
		repo:             repo,
		ids:              UUIDGenerator{},
		codes:            NewShortCodeGenerator(DefaultMemberCodeLength),
		clock:            SystemClock{},
	}
}

func (a *MemberCodeActivation) WithActivitySink(sink ActivitySink) *MemberCodeActivation {
	a.activity = normalizeActivitySink(sink)
	return a
}

func (a *MemberCodeActivation) WithLogger(logger Logger) *MemberCodeActivation {
	if logger != nil {
		a.logger = logger
	}
	return a
}

func (a *MemberCodeActivation) WithClock(clock Clock) *MemberCodeActivation {
	if clock != nil {
		a.clock = clock
	}
	return a
}

func (a *MemberCodeActivation) WithIDGenerator(ids IDGenerator) *MemberCodeActivation {
	if ids != nil {
		a.ids = ids
	}
	return a
}

func (a *MemberCodeActivation) WithCodeGenerator(codes CodeGenerator) *MemberCodeActivation {
	if codes != nil {
		a.codes = codes
	}
	return a
}

// ValidateForRegistration checks code can be redeemed by a user that is
// about to be created
func (a *MemberCodeActivation) ValidateForRegistration(ctx context.Context, tx RepositoryManager, code string) (*MemberCode, error) {
	mc, err := a.lookup(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if !mc.IsConsumable() {
		return nil, newError(ErrInvalidMemberCode)
	}
	return mc, nil
}

// ConsumeTx binds mc to userID. It fails with INVALID_MEMBER_CODE if the
// code was consumed in the meantime.
func (a *MemberCodeActivation) ConsumeTx(ctx context.Context, tx RepositoryManager, mc *MemberCode, userID string) error {
	now := a.clock.Now()
	if err := tx.MemberCodes().Consume(ctx, mc.ID, userID, now); err != nil {
		if goerrors.IsCategory(err, goerrors.CategoryConflict) {
			return newError(ErrInvalidMemberCode)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume member code")
	}
	mc.IsConsumed = true
	mc.UserID = &userID
	mc.ConsumedAt = &now
	return nil
}

// Activate upgrades an existing guest to member with code
func (a *MemberCodeActivation) Activate(ctx context.Context, msg ActivateMemberCodeMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during member code activation",
		)
	default:
		return a.activate(ctx, msg)
	}
}

func (a *MemberCodeActivation) activate(ctx context.Context, msg ActivateMemberCodeMessage) (*User, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid member code activation")
	}

	var user *User
	var mc *MemberCode

	err := a.repo.RunInTx(ctx, func(ctx context.Context, tx RepositoryManager) error {
		var err error
		user, err = tx.Users().GetByID(ctx, msg.UserID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return newError(ErrUserNotFound)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user")
		}

		mc, err = a.lookup(ctx, tx, msg.Code)
		if err != nil {
			return err
		}

		if user.Rank == RankMember {
			return newError(ErrAlreadyMember)
		}

		if !mc.IsConsumable() {
			return newError(ErrInvalidMemberCode)
		}

		if err := a.ConsumeTx(ctx, tx, mc, user.ID); err != nil {
			return err
		}

		user.Rank = RankMember
		user.UpdatedAt = a.clock.Now()
		if user, err = tx.Users().Update(ctx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to upgrade user rank")
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate member code")
	}

	a.record(ctx, ActivityEvent{
		EventType:  ActivityEventMemberActivated,
		ActorID:    user.ID,
		UserID:     user.ID,
		Metadata:   map[string]any{"member_code_id": mc.ID},
		OccurredAt: a.clock.Now(),
	})

	return user, nil
}

// Issue creates n fresh, unconsumed member codes
func (a *MemberCodeActivation) Issue(ctx context.Context, actor *AuthContext, n int) ([]*MemberCode, error) {
	if actor == nil || !actor.IsAdmin() {
		return nil, newError(ErrForbidden)
	}
	if err := validation.Validate(n, validation.Required, validation.Min(1), validation.Max(500)); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid member code count").
			WithCode(goerrors.CodeBadRequest)
	}

	now := a.clock.Now()
	records := make([]*MemberCode, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, &MemberCode{
			ID:        a.ids.NewID(),
			Code:      a.codes.NewCode(),
			CreatedAt: now,
		})
	}

	if err := a.repo.MemberCodes().Create(ctx, records...); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create member codes")
	}

	a.record(ctx, ActivityEvent{
		EventType:  ActivityEventMemberCodesIssued,
		ActorID:    actor.UserID,
		Metadata:   map[string]any{"count": n},
		OccurredAt: now,
	})

	return records, nil
}

func (a *MemberCodeActivation) lookup(ctx context.Context, tx RepositoryManager, code string) (*MemberCode, error) {
	mc, err := tx.MemberCodes().GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, newError(ErrMemberCodeNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve member code")
	}
	return mc, nil
}

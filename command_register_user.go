package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

type RegisterUserMessage struct {
	EmailAddress string     `json:"email_address" example:"johndoe@gmail.com"`
	Password     string     `json:"password" example:"some_secret_word"`
	FirstName    string     `json:"first_name" example:"John"`
	LastName     string     `json:"last_name" example:"Doe"`
	MemberCode   string     `json:"member_code,omitempty" example:"CODE123" doc:"Optional invitation code"`
	Device       DeviceInfo `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.EmailAddress, validation.Required, is.EmailFormat, validation.Length(3, 254)),
		validation.Field(&e.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&e.FirstName, validation.Length(0, 100)),
		validation.Field(&e.LastName, validation.Length(0, 100)),
		validation.Field(&e.MemberCode, validation.Length(0, 64)),
	)
}

// Register creates a guest account, or a member account when a valid
// member code is supplied, and signs it in
func (s *SessionOrchestrator) Register(ctx context.Context, msg RegisterUserMessage) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return s.register(ctx, msg)
	}
}

func (s *SessionOrchestrator) register(ctx context.Context, msg RegisterUserMessage) (*Session, error) {
	msg.EmailAddress = NormalizeEmail(msg.EmailAddress)
	if err := msg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid registration request")
	}

	code := strings.TrimSpace(msg.MemberCode)
	email := msg.EmailAddress

	var user *User
	var refresh *RefreshToken

	err := s.repo.RunInTx(ctx, func(ctx context.Context, tx RepositoryManager) error {
		var mc *MemberCode
		var err error

		if code != "" {
			if mc, err = s.memberCodes.ValidateForRegistration(ctx, tx, code); err != nil {
				return err
			}
		}

		exists, err := tx.Users().ExistsByEmail(ctx, email)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not check email address")
		}
		if exists {
			return newError(ErrEmailAlreadyRegistered)
		}

		hash, err := s.passwords.Hash(msg.Password)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		user = &User{
			ID:           s.ids.NewID(),
			EmailAddress: email,
			Role:         RoleUser,
			Rank:         RankGuest,
			FirstName:    strings.TrimSpace(msg.FirstName),
			LastName:     strings.TrimSpace(msg.LastName),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		user.SetPassword(hash)
		user.Touch(now, msg.Device)
		if mc != nil {
			user.Rank = RankMember
		}

		if user, err = tx.Users().Create(ctx, user); err != nil {
			if goerrors.IsCategory(err, goerrors.CategoryConflict) {
				return newError(ErrEmailAlreadyRegistered)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create user")
		}

		if mc != nil {
			if err := s.memberCodes.ConsumeTx(ctx, tx, mc, user.ID); err != nil {
				return err
			}
		}

		refresh, err = s.ledger.CreateTx(ctx, tx, user)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	session, err := s.session(user, refresh)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventRegister,
		ActorID:    user.ID,
		UserID:     user.ID,
		Metadata:   map[string]any{"rank": user.Rank, "member_code": code != ""},
		OccurredAt: s.clock.Now(),
	})

	return session, nil
}

package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// Session is the result of every successful sign in
type Session struct {
	User         UserSnapshot  `json:"user"`
	AccessToken  *AccessToken  `json:"access_token"`
	RefreshToken *RefreshToken `json:"refresh_token"`
}

type LoginMessage struct {
	EmailAddress string     `json:"email_address" example:"johndoe@gmail.com"`
	Password     string     `json:"password" example:"some_secret_word"`
	Device       DeviceInfo `json:"-"`
}

func (m LoginMessage) Type() string { return "user.login" }

func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.EmailAddress, validation.Required, is.EmailFormat),
		validation.Field(&m.Password, validation.Required),
	)
}

type RefreshSessionMessage struct {
	RefreshToken string     `json:"refresh_token"`
	Device       DeviceInfo `json:"-"`
}

func (m RefreshSessionMessage) Type() string { return "user.session.refresh" }

func (m RefreshSessionMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.RefreshToken, validation.Required),
	)
}

// SessionOrchestrator runs the register, login and refresh flows and
// mints the tokens for each of them
type SessionOrchestrator struct {
	activityRecorder
	repo        RepositoryManager
	passwords   PasswordStrategy
	issuer      *AccessTokenIssuer
	ledger      *RefreshTokenLedger
	memberCodes *MemberCodeActivation
	ids         IDGenerator
	clock       Clock
}

// NewSessionOrchestrator creates an orchestrator with sane defaults.
func NewSessionOrchestrator(
	repo RepositoryManager,
	passwords PasswordStrategy,
	issuer *AccessTokenIssuer,
	ledger *RefreshTokenLedger,
	memberCodes *MemberCodeActivation,
) *SessionOrchestrator {
	if memberCodes == nil {
		memberCodes = NewMemberCodeActivation(repo)
	}
	return &SessionOrchestrator{
		activityRecorder: newActivityRecorder(),
		repo:             repo,
		passwords:        passwords,
		issuer:           issuer,
		ledger:           ledger,
		memberCodes:      memberCodes,
		ids:              UUIDGenerator{},
		clock:            SystemClock{},
	}
}

func (s *SessionOrchestrator) WithActivitySink(sink ActivitySink) *SessionOrchestrator {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *SessionOrchestrator) WithLogger(logger Logger) *SessionOrchestrator {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *SessionOrchestrator) WithClock(clock Clock) *SessionOrchestrator {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *SessionOrchestrator) WithIDGenerator(ids IDGenerator) *SessionOrchestrator {
	if ids != nil {
		s.ids = ids
	}
	return s
}

// Login signs a user in with email and password and always issues a
// brand new refresh token
func (s *SessionOrchestrator) Login(ctx context.Context, msg LoginMessage) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
		return s.login(ctx, msg)
	}
}

func (s *SessionOrchestrator) login(ctx context.Context, msg LoginMessage) (*Session, error) {
	msg.EmailAddress = NormalizeEmail(msg.EmailAddress)
	if err := msg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid login request")
	}

	user, err := s.repo.Users().GetByEmail(ctx, msg.EmailAddress)
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.loginFailed(ctx, "", TextCodeUserNotFound)
			return nil, newError(ErrUserNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user")
	}

	if !user.HasPassword() {
		s.logger.Warn("login attempt for account %s without password", user.ID)
		s.loginFailed(ctx, user.ID, TextCodeNoPassword)
		return nil, newError(ErrNoPassword)
	}

	ok, err := s.passwords.Equals(msg.Password, *user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.loginFailed(ctx, user.ID, TextCodeInvalidCredentials)
		return nil, newError(ErrInvalidCredentials)
	}

	if user, err = s.touch(ctx, user, msg.Device); err != nil {
		return nil, err
	}

	refresh, err := s.ledger.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.session(user, refresh)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginSuccess,
		ActorID:    user.ID,
		UserID:     user.ID,
		Metadata:   map[string]any{"device_os": msg.Device.OS, "device_version": msg.Device.Version},
		OccurredAt: s.clock.Now(),
	})

	return session, nil
}

// LoginWithRefreshToken exchanges a refresh token for a new access token.
// The refresh token itself is handed back unchanged.
func (s *SessionOrchestrator) LoginWithRefreshToken(ctx context.Context, msg RefreshSessionMessage) (*Session, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during token refresh")
	default:
		return s.loginWithRefreshToken(ctx, msg)
	}
}

func (s *SessionOrchestrator) loginWithRefreshToken(ctx context.Context, msg RefreshSessionMessage) (*Session, error) {
	if err := msg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid refresh request")
	}

	refresh, err := s.ledger.FindUsable(ctx, msg.RefreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.Users().GetByID(ctx, refresh.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			s.logger.Warn("refresh token %s belongs to missing user %s", refresh.ID, refresh.UserID)
			return nil, newError(ErrUserNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user")
	}

	if user, err = s.touch(ctx, user, msg.Device); err != nil {
		return nil, err
	}

	session, err := s.session(user, refresh)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventTokenRefresh,
		ActorID:    user.ID,
		UserID:     user.ID,
		Metadata:   map[string]any{"refresh_token_id": refresh.ID},
		OccurredAt: s.clock.Now(),
	})

	return session, nil
}

// Logout disables the refresh token presented by the caller
func (s *SessionOrchestrator) Logout(ctx context.Context, actor *AuthContext, refreshToken string) error {
	refresh, err := s.ledger.FindUsable(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := actor.RequireOwnerOrAdmin(refresh.UserID); err != nil {
		return err
	}
	if err := s.ledger.Disable(ctx, refreshToken); err != nil {
		return err
	}

	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLogout,
		ActorID:    actor.UserID,
		UserID:     refresh.UserID,
		Metadata:   map[string]any{"refresh_token_id": refresh.ID},
		OccurredAt: s.clock.Now(),
	})
	return nil
}

// touch stores the access time and device in a single write
func (s *SessionOrchestrator) touch(ctx context.Context, user *User, device DeviceInfo) (*User, error) {
	now := s.clock.Now()
	if user.Touch(now, device) {
		s.logger.Debug("user %s signed in from a new device %s %s", user.ID, device.OS, device.Version)
	}
	user.UpdatedAt = now

	updated, err := s.repo.Users().Update(ctx, user)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record user access")
	}
	return updated, nil
}

func (s *SessionOrchestrator) session(user *User, refresh *RefreshToken) (*Session, error) {
	access, err := s.issuer.Create(user)
	if err != nil {
		return nil, err
	}
	return &Session{
		User:         user.Snapshot(),
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (s *SessionOrchestrator) loginFailed(ctx context.Context, userID, reason string) {
	s.record(ctx, ActivityEvent{
		EventType:  ActivityEventLoginFailure,
		UserID:     userID,
		Metadata:   map[string]any{"reason": reason},
		OccurredAt: s.clock.Now(),
	})
}

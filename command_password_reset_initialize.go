package auth

import (
	"bytes"
	"context"
	"html/template"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultPasswordResetTTL is how long a reset code can be redeemed
	DefaultPasswordResetTTL = 2 * time.Hour
	// PasswordResetCodeHeader carries the reset code for automated clients
	PasswordResetCodeHeader = "X-Password-Reset-Code"

	resetCodeAttempts = 3
)

var passwordResetTemplate = template.Must(template.New("password_reset").Parse(
	`<p>Hi {{.FirstName}},</p>
<p>Use the following code to choose a new password:</p>
<p><strong>{{.Code}}</strong></p>
<p>The code expires at {{.ExpiresAt.Format "15:04 MST"}}. If you did not ask for a new password you can ignore this email.</p>`,
))

type InitializePasswordResetMessage struct {
	EmailAddress string `json:"email_address" example:"johndoe@gmail.com" doc:"Account email"`
}

func (m InitializePasswordResetMessage) Type() string { return "user.password_reset.begin" }

func (m InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.EmailAddress, validation.Required, is.EmailFormat),
	)
}

// PasswordResetFlow issues and redeems single use password reset codes
type PasswordResetFlow struct {
	activityRecorder
	repo      RepositoryManager
	mailer    Mailer
	passwords PasswordStrategy
	ids       IDGenerator
	codes     CodeGenerator
	clock     Clock
	ttl       time.Duration
	from      string
	subject   string
}

// NewPasswordResetFlow creates a flow with sane defaults.
func NewPasswordResetFlow(repo RepositoryManager, mailer Mailer, passwords PasswordStrategy) *PasswordResetFlow {
	return &PasswordResetFlow{
		activityRecorder: newActivityRecorder(),
		repo:             repo,
		mailer:           mailer,
		passwords:        passwords,
		ids:              UUIDGenerator{},
		codes:            NewShortCodeGenerator(DefaultResetCodeLength),
		clock:            SystemClock{},
		ttl:              DefaultPasswordResetTTL,
		from:             "no-reply@localhost",
		subject:          "Reset your password",
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (f *PasswordResetFlow) WithActivitySink(sink ActivitySink) *PasswordResetFlow {
	f.activity = normalizeActivitySink(sink)
	return f
}

// WithLogger overrides the logger used by the flow.
func (f *PasswordResetFlow) WithLogger(logger Logger) *PasswordResetFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

func (f *PasswordResetFlow) WithClock(clock Clock) *PasswordResetFlow {
	if clock != nil {
		f.clock = clock
	}
	return f
}

func (f *PasswordResetFlow) WithIDGenerator(ids IDGenerator) *PasswordResetFlow {
	if ids != nil {
		f.ids = ids
	}
	return f
}

func (f *PasswordResetFlow) WithCodeGenerator(codes CodeGenerator) *PasswordResetFlow {
	if codes != nil {
		f.codes = codes
	}
	return f
}

func (f *PasswordResetFlow) WithTTL(ttl time.Duration) *PasswordResetFlow {
	if ttl > 0 {
		f.ttl = ttl
	}
	return f
}

// WithSender sets the From address of reset emails
func (f *PasswordResetFlow) WithSender(from string) *PasswordResetFlow {
	if from != "" {
		f.from = from
	}
	return f
}

// Begin issues a reset code for the account and emails it
func (f *PasswordResetFlow) Begin(ctx context.Context, msg InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return f.begin(ctx, msg)
	}
}

func (f *PasswordResetFlow) begin(ctx context.Context, msg InitializePasswordResetMessage) error {
	msg.EmailAddress = NormalizeEmail(msg.EmailAddress)
	if err := msg.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid password reset request")
	}

	user, err := f.repo.Users().GetByEmail(ctx, msg.EmailAddress)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return newError(ErrUserNotFound)
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	now := f.clock.Now()
	reset, err := f.createReset(ctx, user, now)
	if err != nil {
		return err
	}

	mail, err := f.resetMail(user, reset)
	if err != nil {
		return err
	}

	if err := f.mailer.Send(ctx, mail); err != nil {
		f.logger.Error("password reset email to %s failed: %v", user.EmailAddress, err)
		return goerrors.Wrap(err, goerrors.CategoryExternal, "failed to send password reset email")
	}

	f.record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequest,
		ActorID:    user.ID,
		UserID:     user.ID,
		Metadata:   map[string]any{"password_reset_id": reset.ID},
		OccurredAt: now,
	})

	return nil
}

// createReset stores a reset under a fresh code. Codes are unique across
// all users, so a collision draws a new one.
func (f *PasswordResetFlow) createReset(ctx context.Context, user *User, now time.Time) (*PasswordReset, error) {
	var err error
	for attempt := 0; attempt < resetCodeAttempts; attempt++ {
		reset := &PasswordReset{
			ID:         f.ids.NewID(),
			UserID:     user.ID,
			Code:       f.codes.NewCode(),
			IsConsumed: false,
			CreatedAt:  now,
			ExpiresAt:  now.Add(f.ttl),
		}

		if _, err = f.repo.PasswordResets().Create(ctx, reset); err == nil {
			return reset, nil
		}
		if !goerrors.IsCategory(err, goerrors.CategoryConflict) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}
		f.logger.Warn("password reset code collision, drawing a new code (attempt %d)", attempt+1)
	}

	exhausted := goerrors.New("could not allocate a unique password reset code", goerrors.CategoryInternal).
		WithCode(goerrors.CodeInternal)
	exhausted.Source = err
	return nil, exhausted
}

func (f *PasswordResetFlow) resetMail(user *User, reset *PasswordReset) (Mail, error) {
	var body bytes.Buffer
	err := passwordResetTemplate.Execute(&body, map[string]any{
		"FirstName": user.FirstName,
		"Code":      reset.Code,
		"ExpiresAt": reset.ExpiresAt,
	})
	if err != nil {
		return Mail{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render password reset email")
	}

	return Mail{
		From:    f.from,
		To:      []string{user.EmailAddress},
		Subject: f.subject,
		HTML:    body.String(),
		Headers: map[string]string{PasswordResetCodeHeader: reset.Code},
	}, nil
}

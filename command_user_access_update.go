package auth

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

type UpdateUserAccessMessage struct {
	UserID string `json:"-"`
	Role   *Role  `json:"role,omitempty" example:"admin"`
	Rank   *Rank  `json:"rank,omitempty" example:"member"`
}

func (m UpdateUserAccessMessage) Type() string { return "user.access.update" }

func (m UpdateUserAccessMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.UserID, validation.Required),
		validation.Field(&m.Role, validation.NilOrNotEmpty, validation.In(RoleUser, RoleAdmin)),
		validation.Field(&m.Rank, validation.NilOrNotEmpty, validation.In(RankGuest, RankMember)),
	)
}

// UserAccessUpdater changes role and rank of accounts. Nobody can hand
// out more privilege than they hold themselves.
type UserAccessUpdater struct {
	activityRecorder
	repo  RepositoryManager
	clock Clock
}

// NewUserAccessUpdater creates an updater with sane defaults.
func NewUserAccessUpdater(repo RepositoryManager) *UserAccessUpdater {
	return &UserAccessUpdater{
		activityRecorder: newActivityRecorder(),
		repo:             repo,
		clock:            SystemClock{},
	}
}

func (u *UserAccessUpdater) WithActivitySink(sink ActivitySink) *UserAccessUpdater {
	u.activity = normalizeActivitySink(sink)
	return u
}

func (u *UserAccessUpdater) WithLogger(logger Logger) *UserAccessUpdater {
	if logger != nil {
		u.logger = logger
	}
	return u
}

func (u *UserAccessUpdater) WithClock(clock Clock) *UserAccessUpdater {
	if clock != nil {
		u.clock = clock
	}
	return u
}

// Execute applies the requested role and rank to the target user
func (u *UserAccessUpdater) Execute(ctx context.Context, actor *AuthContext, msg UpdateUserAccessMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during user access update")
	default:
		return u.execute(ctx, actor, msg)
	}
}

func (u *UserAccessUpdater) execute(ctx context.Context, actor *AuthContext, msg UpdateUserAccessMessage) (*User, error) {
	if actor == nil {
		return nil, newError(ErrUnauthenticated)
	}

	if err := msg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid user access update")
	}

	if err := actor.RequireOwnerOrAdmin(msg.UserID); err != nil {
		return nil, err
	}

	if err := CheckEscalation(actor, msg.Role, msg.Rank); err != nil {
		u.logger.Warn("user %s tried to grant %v/%v to %s", actor.UserID, msg.Role, msg.Rank, msg.UserID)
		return nil, err
	}

	user, err := u.repo.Users().GetByID(ctx, msg.UserID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, newError(ErrUserNotFound)
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve user")
	}

	from := map[string]any{"role": user.Role, "rank": user.Rank}
	if msg.Role != nil {
		user.Role = *msg.Role
	}
	if msg.Rank != nil {
		user.Rank = *msg.Rank
	}
	user.UpdatedAt = u.clock.Now()

	if user, err = u.repo.Users().Update(ctx, user); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user access")
	}

	u.record(ctx, ActivityEvent{
		EventType: ActivityEventUserAccessChanged,
		ActorID:   actor.UserID,
		UserID:    user.ID,
		Metadata: map[string]any{
			"from": from,
			"to":   map[string]any{"role": user.Role, "rank": user.Rank},
		},
		OccurredAt: u.clock.Now(),
	})

	return user, nil
}

// CheckEscalation fails when actor asks for a role or rank above its own
func CheckEscalation(actor *AuthContext, role *Role, rank *Rank) error {
	if actor == nil {
		return newError(ErrUnauthenticated)
	}
	if role != nil && !CanGrantRole(actor.Role, *role) {
		return newError(ErrRoleEscalation, map[string]any{
			"actor_role":     actor.Role,
			"requested_role": *role,
		})
	}
	if rank != nil && !CanGrantRank(actor.Rank, *rank) {
		return newError(ErrRoleEscalation, map[string]any{
			"actor_rank":     actor.Rank,
			"requested_rank": *rank,
		})
	}
	return nil
}

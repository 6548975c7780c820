package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegister             ActivityEventType = "auth.register"
	ActivityEventLoginSuccess         ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure         ActivityEventType = "auth.login.failure"
	ActivityEventTokenRefresh         ActivityEventType = "auth.token.refresh"
	ActivityEventLogout               ActivityEventType = "auth.token.logout"
	ActivityEventPasswordResetRequest ActivityEventType = "auth.password.reset.requested"
	ActivityEventPasswordResetSuccess ActivityEventType = "auth.password.reset"
	ActivityEventMemberActivated      ActivityEventType = "auth.member.activated"
	ActivityEventUserAccessChanged    ActivityEventType = "auth.user.access.changed"
	ActivityEventMemberCodesIssued    ActivityEventType = "auth.member.codes.issued"
)

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	ActorID    string
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// MultiActivitySink fans an event out to every sink, returning the first error
type MultiActivitySink []ActivitySink

func (m MultiActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// activityRecorder is embedded by components that emit audit events
type activityRecorder struct {
	activity ActivitySink
	logger   Logger
}

func newActivityRecorder() activityRecorder {
	return activityRecorder{
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (r *activityRecorder) record(ctx context.Context, event ActivityEvent) {
	if err := normalizeActivitySink(r.activity).Record(ctx, event); err != nil {
		normalizeLogger(r.logger).Warn("activity sink error for %s: %v", event.EventType, err)
	}
}

// Package activitymap flattens auth activity events into a shape that
// log pipelines and audit stores can ingest without knowing about auth.
package activitymap

import (
	"context"
	"log/slog"
	"strings"
	"time"

	auth "github.com/placesapp/go-auth"
)

const (
	// MetadataKeyFromRole stores the role a user had before an access change.
	MetadataKeyFromRole = "from_role"
	// MetadataKeyToRole stores the role granted by an access change.
	MetadataKeyToRole = "to_role"
	// MetadataKeyFromRank stores the rank a user had before an access change.
	MetadataKeyFromRank = "from_rank"
	// MetadataKeyToRank stores the rank granted by an access change.
	MetadataKeyToRank = "to_rank"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel       string
	objectType    string
	actorFallback string
	now           func() time.Time
}

// Normalize converts an auth.ActivityEvent into a generic normalized shape.
// Events without an actor are attributed to the affected user.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := firstNonEmpty(
		strings.TrimSpace(event.ActorID),
		strings.TrimSpace(event.UserID),
		options.actorFallback,
	)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: options.objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event.Metadata),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel for normalized records.
func WithChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type for normalized records.
func WithObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithActorFallback sets the actor id used when the event names nobody.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithNow overrides the time stamped on events that carry none.
func WithNow(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// SlogSink writes every event to logger as one normalized record
func SlogSink(logger *slog.Logger, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		n := Normalize(event, opts...)
		attrs := []slog.Attr{
			slog.String("actor_id", n.ActorID),
			slog.String("verb", n.Verb),
			slog.String("object_type", n.ObjectType),
			slog.String("object_id", n.ObjectID),
			slog.String("channel", n.Channel),
			slog.Time("occurred_at", n.OccurredAt),
		}
		if len(n.Metadata) > 0 {
			attrs = append(attrs, slog.Any("metadata", n.Metadata))
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "activity", attrs...)
		return nil
	})
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
		now:           time.Now,
	}
}

// normalizeMetadata copies metadata and lifts the nested from/to maps of
// access changes into flat keys.
func normalizeMetadata(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}

	out := make(map[string]any, len(in))
	for key, value := range in {
		switch key {
		case "from":
			flattenAccess(out, value, MetadataKeyFromRole, MetadataKeyFromRank)
		case "to":
			flattenAccess(out, value, MetadataKeyToRole, MetadataKeyToRank)
		default:
			out[key] = value
		}
	}
	return out
}

func flattenAccess(out map[string]any, value any, roleKey, rankKey string) {
	access, ok := value.(map[string]any)
	if !ok {
		return
	}
	if role, ok := access["role"]; ok {
		out[roleKey] = stringify(role)
	}
	if rank, ok := access["rank"]; ok {
		out[rankKey] = stringify(rank)
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case auth.Role:
		return string(t)
	case auth.Rank:
		return string(t)
	case string:
		return t
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func TestSlogLoggerFormatsMessages(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger := NewSlogLogger(base)

	logger.Warn("user %s tried to grant %s", "u1", RoleAdmin)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "WARN", record["level"])
	require.Equal(t, "user u1 tried to grant admin", record["msg"])
	require.Equal(t, "auth", record["component"])
}

func TestSlogLoggerDefaultsToSlogDefault(t *testing.T) {
	require.NotNil(t, NewSlogLogger(nil))
}

func TestNormalizeLoggerFallback(t *testing.T) {
	require.IsType(t, defLogger{}, normalizeLogger(nil))

	custom := &captureLogger{}
	require.Same(t, custom, normalizeLogger(custom))
}

func TestActivityRecorderLogsSinkFailures(t *testing.T) {
	logger := &captureLogger{}
	recorder := activityRecorder{
		activity: ActivitySinkFunc(func(context.Context, ActivityEvent) error {
			return errors.New("sink offline")
		}),
		logger: logger,
	}

	recorder.record(context.Background(), ActivityEvent{EventType: ActivityEventLogout})

	require.Len(t, logger.calls, 1)
	require.Equal(t, "warn", logger.calls[0].level)
	require.Equal(t, ActivityEventLogout, logger.calls[0].args[0])
}

func TestActivityRecorderWithoutSink(t *testing.T) {
	recorder := activityRecorder{}
	require.NotPanics(t, func() {
		recorder.record(context.Background(), ActivityEvent{EventType: ActivityEventRegister})
	})
}

func TestNewline(t *testing.T) {
	require.Equal(t, "", newline(""))
	require.Equal(t, "a\n", newline("a"))
	require.Equal(t, "a\n", newline("a\n"))
}

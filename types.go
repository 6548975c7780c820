package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Clock provides the current time to every expiry decision
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// IDGenerator produces identifiers for new records
type IDGenerator interface {
	NewID() string
}

// CodeGenerator produces short, human enterable codes
type CodeGenerator interface {
	NewCode() string
}

// RandomSource produces opaque, cryptographically random values
type RandomSource interface {
	RandomString() (string, error)
}

// PasswordStrategy hashes and compares passwords
type PasswordStrategy interface {
	Hash(plaintext string) (string, error)
	Equals(plaintext, hash string) (bool, error)
}

// Mail is a single outbound message
type Mail struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Headers map[string]string
}

// Mailer delivers outbound messages
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetAudience() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetPasswordResetTTL() time.Duration
	GetMailFrom() string
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

// SlogLogger routes printf style logging into a structured slog.Logger
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l, falling back to slog.Default when l is nil
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l.With("component", "auth")}
}

func (s *SlogLogger) Debug(format string, args ...any) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Info(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Warn(format string, args ...any) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s *SlogLogger) Error(format string, args ...any) {
	s.l.Error(fmt.Sprintf(format, args...))
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

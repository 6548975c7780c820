package auth

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/time/rate"
)

const (
	HeaderDeviceOS      = "device-os"
	HeaderDeviceVersion = "device-version"

	localsAuthKey = "auth"
	bearerScheme  = "Bearer"
)

// ParseBearer extracts the token of an "Authorization: Bearer <token>"
// header value. Anything else yields an empty string.
func ParseBearer(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// DeviceFromRequest reads the device headers sent by the mobile clients
func DeviceFromRequest(c *fiber.Ctx) DeviceInfo {
	return DeviceInfo{
		OS:      strings.TrimSpace(c.Get(HeaderDeviceOS)),
		Version: strings.TrimSpace(c.Get(HeaderDeviceVersion)),
	}
}

// GuardMiddleware rejects requests that do not satisfy access. Accepted
// identities are stored in the fiber locals and in the user context.
func GuardMiddleware(guard *Guard, access RouteAccess) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, err := guard.Evaluate(access, ParseBearer(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}

		ctx := WithDeviceContext(c.UserContext(), DeviceFromRequest(c))
		if authCtx != nil {
			c.Locals(localsAuthKey, authCtx)
			ctx = WithAuthContext(ctx, authCtx)
		}
		c.SetUserContext(ctx)

		return c.Next()
	}
}

// LocalsAuthContext returns the identity stored by GuardMiddleware
func LocalsAuthContext(c *fiber.Ctx) (*AuthContext, bool) {
	authCtx, ok := c.Locals(localsAuthKey).(*AuthContext)
	return authCtx, ok && authCtx != nil
}

// ErrorHandler renders every error as {"error": {...}}
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			err = goerrors.New(fiberErr.Message, goerrors.HTTPStatusToCategory(fiberErr.Code)).
				WithCode(fiberErr.Code).
				WithTextCode(goerrors.HTTPStatusToTextCode(fiberErr.Code))
		}

		richErr := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
		status := StatusCode(richErr)
		if status >= fiber.StatusInternalServerError {
			logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
		}

		return c.Status(status).JSON(richErr.ToErrorResponse(false, nil))
	}
}

// ResetThrottle limits requests per client address with a token bucket.
// Addresses idle for a full refill window are dropped.
type ResetThrottle struct {
	mu       sync.Mutex
	entries  map[string]*throttleEntry
	interval time.Duration
	burst    int
	window   time.Duration
	swept    time.Time
	clock    Clock
}

type throttleEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// NewResetThrottle allows perHour requests per address, spread over the hour
func NewResetThrottle(perHour int) *ResetThrottle {
	if perHour <= 0 {
		perHour = 1
	}
	interval := time.Hour / time.Duration(perHour)
	return &ResetThrottle{
		entries:  make(map[string]*throttleEntry),
		interval: interval,
		burst:    perHour,
		window:   interval * time.Duration(perHour),
		clock:    SystemClock{},
	}
}

func (t *ResetThrottle) WithClock(clock Clock) *ResetThrottle {
	if clock != nil {
		t.clock = clock
	}
	return t
}

// Allow consumes one request for key
func (t *ResetThrottle) Allow(key string) bool {
	now := t.clock.Now()

	t.mu.Lock()
	if t.swept.IsZero() {
		t.swept = now
	}
	if now.Sub(t.swept) >= t.window {
		t.sweep(now)
	}
	entry, ok := t.entries[key]
	if !ok {
		entry = &throttleEntry{limiter: rate.NewLimiter(rate.Every(t.interval), t.burst)}
		t.entries[key] = entry
	}
	entry.seen = now
	t.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Tracked reports how many addresses currently hold a limiter
func (t *ResetThrottle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// sweep drops limiters idle for at least a refill window; their buckets
// are full again so a fresh limiter behaves the same. Callers hold mu.
func (t *ResetThrottle) sweep(now time.Time) {
	for key, entry := range t.entries {
		if now.Sub(entry.seen) >= t.window {
			delete(t.entries, key)
		}
	}
	t.swept = now
}

// Middleware rejects callers that ran out of requests
func (t *ResetThrottle) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !t.Allow(c.IP()) {
			return newError(ErrTooManyRequests, map[string]any{"retry_in": t.interval.String()})
		}
		return c.Next()
	}
}

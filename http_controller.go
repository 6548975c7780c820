package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	goerrors "github.com/goliatone/go-errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type AuthControllerRoutes struct {
	Register             string
	Login                string
	Refresh              string
	Logout               string
	PasswordReset        string
	PasswordResetConfirm string
	MemberCode           string
	Me                   string
	UserAccess           string
	AdminMemberCodes     string
	Metrics              string
}

type AuthController struct {
	Logger      Logger
	Guard       *Guard
	Sessions    *SessionOrchestrator
	Resets      *PasswordResetFlow
	MemberCodes *MemberCodeActivation
	Access      *UserAccessUpdater
	Throttle    *ResetThrottle
	Metrics     http.Handler
	Routes      *AuthControllerRoutes
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithControllerThrottle(t *ResetThrottle) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Throttle = t
		return c
	}
}

// WithControllerMetrics exposes the metrics gathered by g
func WithControllerMetrics(g prometheus.Gatherer) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if g != nil {
			c.Metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

// NewAuthController wires the HTTP handlers to the auth components
func NewAuthController(
	guard *Guard,
	sessions *SessionOrchestrator,
	resets *PasswordResetFlow,
	memberCodes *MemberCodeActivation,
	access *UserAccessUpdater,
	opts ...AuthControllerOption,
) *AuthController {
	c := &AuthController{
		Logger:      defLogger{},
		Guard:       guard,
		Sessions:    sessions,
		Resets:      resets,
		MemberCodes: memberCodes,
		Access:      access,
		Throttle:    NewResetThrottle(5),
		Metrics:     promhttp.Handler(),
		Routes: &AuthControllerRoutes{
			Register:             "/auth/register",
			Login:                "/auth/login",
			Refresh:              "/auth/refresh",
			Logout:               "/auth/logout",
			PasswordReset:        "/auth/password-reset",
			PasswordResetConfirm: "/auth/password-reset/confirm",
			MemberCode:           "/auth/member-code",
			Me:                   "/auth/me",
			UserAccess:           "/users/:id/access",
			AdminMemberCodes:     "/admin/member-codes",
			Metrics:              "/metrics",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Guard == nil {
		panic("Missing Guard in auth controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionOrchestrator in auth controller...")
	}

	return c
}

// RegisterAuthRoutes mounts every auth route on app behind the guard
func RegisterAuthRoutes(app fiber.Router, c *AuthController) {
	guestOnly := GuardMiddleware(c.Guard, RouteGuestOnly)
	public := GuardMiddleware(c.Guard, RoutePublic)
	authenticated := GuardMiddleware(c.Guard, RouteAuthenticated)
	adminOnly := GuardMiddleware(c.Guard, RouteAdminOnly)

	app.Post(c.Routes.Register, guestOnly, c.Register)
	app.Post(c.Routes.Login, guestOnly, c.Login)
	app.Post(c.Routes.Refresh, public, c.Refresh)
	app.Post(c.Routes.Logout, authenticated, c.Logout)

	resetBegin := []fiber.Handler{guestOnly}
	if c.Throttle != nil {
		resetBegin = append(resetBegin, c.Throttle.Middleware())
	}
	resetBegin = append(resetBegin, c.PasswordResetBegin)
	app.Post(c.Routes.PasswordReset, resetBegin...)
	app.Post(c.Routes.PasswordResetConfirm, guestOnly, c.PasswordResetConfirm)

	app.Post(c.Routes.MemberCode, authenticated, c.ActivateMemberCode)
	app.Get(c.Routes.Me, authenticated, c.Me)
	app.Patch(c.Routes.UserAccess, authenticated, c.UpdateUserAccess)
	app.Post(c.Routes.AdminMemberCodes, adminOnly, c.IssueMemberCodes)

	if c.Metrics != nil {
		app.Get(c.Routes.Metrics, public, adaptor.HTTPHandler(c.Metrics))
	}
}

func (a *AuthController) Register(c *fiber.Ctx) error {
	payload := new(RegisterUserMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	payload.Device = DeviceFromRequest(c)

	session, err := a.Sessions.Register(c.UserContext(), *payload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

func (a *AuthController) Login(c *fiber.Ctx) error {
	payload := new(LoginMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	payload.Device = DeviceFromRequest(c)

	session, err := a.Sessions.Login(c.UserContext(), *payload)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	payload := new(RefreshSessionMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	payload.Device = DeviceFromRequest(c)

	session, err := a.Sessions.LoginWithRefreshToken(c.UserContext(), *payload)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

func (a *AuthController) Logout(c *fiber.Ctx) error {
	payload := new(RefreshSessionMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	if err := payload.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid logout request")
	}

	actor, _ := LocalsAuthContext(c)
	if err := a.Sessions.Logout(c.UserContext(), actor, payload.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) PasswordResetBegin(c *fiber.Ctx) error {
	payload := new(InitializePasswordResetMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	if err := a.Resets.Begin(c.UserContext(), *payload); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusAccepted)
}

func (a *AuthController) PasswordResetConfirm(c *fiber.Ctx) error {
	payload := new(FinalizePasswordResetMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	if err := a.Resets.End(c.UserContext(), *payload); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (a *AuthController) ActivateMemberCode(c *fiber.Ctx) error {
	payload := new(ActivateMemberCodeMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	actor, _ := LocalsAuthContext(c)
	payload.UserID = actor.UserID

	user, err := a.MemberCodes.Activate(c.UserContext(), *payload)
	if err != nil {
		return err
	}
	return c.JSON(user.Snapshot())
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	actor, _ := LocalsAuthContext(c)
	return c.JSON(actor)
}

func (a *AuthController) UpdateUserAccess(c *fiber.Ctx) error {
	payload := new(UpdateUserAccessMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}
	payload.UserID = c.Params("id")

	actor, _ := LocalsAuthContext(c)
	user, err := a.Access.Execute(c.UserContext(), actor, *payload)
	if err != nil {
		return err
	}
	return c.JSON(user.Snapshot())
}

type issueMemberCodesPayload struct {
	Count int `json:"count"`
}

func (a *AuthController) IssueMemberCodes(c *fiber.Ctx) error {
	payload := new(issueMemberCodesPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	actor, _ := LocalsAuthContext(c)
	records, err := a.MemberCodes.Issue(c.UserContext(), actor, payload.Count)
	if err != nil {
		return err
	}

	codes := make([]string, 0, len(records))
	for _, r := range records {
		codes = append(codes, r.Code)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"codes": codes})
}

func (a *AuthController) bind(c *fiber.Ctx, payload any) error {
	if err := c.BodyParser(payload); err != nil {
		a.Logger.Debug("%s %s: could not parse body: %v", c.Method(), c.Path(), err)
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

package auth

import "strings"

// RouteAccess classifies who may call an operation. The zero value
// requires an authenticated caller.
type RouteAccess uint8

const (
	// RouteAuthenticated requires a valid bearer token
	RouteAuthenticated RouteAccess = 0
	// RoutePublic allows anonymous callers; a bearer token is still verified
	RoutePublic RouteAccess = 1 << iota
	// RouteGuestOnly only allows callers without a bearer token
	RouteGuestOnly
	// RouteAdminOnly requires a bearer token with the admin role
	RouteAdminOnly
)

func (r RouteAccess) Has(flag RouteAccess) bool {
	return flag != 0 && r&flag == flag
}

func (r RouteAccess) String() string {
	if r == RouteAuthenticated {
		return "authenticated"
	}
	var parts []string
	if r.Has(RoutePublic) {
		parts = append(parts, "public")
	}
	if r.Has(RouteGuestOnly) {
		parts = append(parts, "guest-only")
	}
	if r.Has(RouteAdminOnly) {
		parts = append(parts, "admin-only")
	}
	return strings.Join(parts, "|")
}

// Guard applies route access rules using the Authorizer
type Guard struct {
	authorizer *Authorizer
}

// NewGuard creates a guard backed by authorizer
func NewGuard(authorizer *Authorizer) *Guard {
	return &Guard{authorizer: authorizer}
}

// Evaluate decides whether a request may proceed. It returns the caller's
// AuthContext when a bearer token was presented and accepted, nil for
// allowed anonymous calls.
//
//	bearer  public  guest-only  admin-only  outcome
//	no      yes     -           -           allow anonymous
//	no      -       yes         -           allow anonymous
//	no      no      no          -           UNAUTHENTICATED
//	yes     -       yes         -           GUEST_ONLY
//	yes     -       no          yes         FORBIDDEN unless role is admin
//	yes     -       no          no          allow with AuthContext
func (g *Guard) Evaluate(access RouteAccess, bearer string) (*AuthContext, error) {
	if bearer == "" {
		if access.Has(RoutePublic) || access.Has(RouteGuestOnly) {
			return nil, nil
		}
		return nil, newError(ErrUnauthenticated)
	}

	if access.Has(RouteGuestOnly) {
		return nil, newError(ErrGuestOnly)
	}

	authCtx, err := g.authorizer.Check(bearer)
	if err != nil {
		return nil, err
	}

	if access.Has(RouteAdminOnly) && !authCtx.IsAdmin() {
		return nil, newError(ErrForbidden, map[string]any{"required_role": RoleAdmin})
	}

	return authCtx, nil
}

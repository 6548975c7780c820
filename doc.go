// Package auth provides the account and session lifecycle of the places
// API: registration, sign in, refresh tokens, password resets, member codes
// and route access rules.
//
// Tokens:
//   - TokenCodec signs and verifies HS256 access tokens. AccessTokenIssuer
//     mints them from a user and never persists them.
//   - RefreshTokenLedger stores opaque refresh tokens. They are not rotated;
//     the same value keeps working until it expires or is disabled.
//
// Sessions:
//   - SessionOrchestrator runs Register, Login and LoginWithRefreshToken and
//     returns a Session with the user snapshot and both tokens. Login always
//     records the access time and the client device in one write.
//   - Registration, password reset confirmation and member code activation
//     each run in a single transaction; codes are consumed with a
//     conditional update so only one concurrent request wins.
//
// Access:
//   - Authorizer maps a verified token to an AuthContext. The AuthContext
//     comes from the claims only, so role or rank changes are seen once the
//     client refreshes its access token.
//   - Guard applies the RouteAccess flags of a route and GuardMiddleware
//     plugs it into fiber.
//   - UserAccessUpdater changes role and rank and refuses to grant more
//     than the actor holds.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter. Sinks run best-effort
//     (errors are logged) so you can forward to metrics or a queue without
//     blocking authentication.
package auth

// Package middleware adapts the Gateway to net/http.
//
// # Guards
//
//   - [RequireSession] resolves a session id against the session store. This is
//     the authorization path for every end-user route.
//   - [RequireServiceToken] verifies a signed JWT for machine-to-machine routes.
//     A token is never accepted where a session is required.
//   - [RateLimiter] is a per-IP token bucket for the sign-in routes.
//   - [ClientContext] records IP and User-Agent for throttling and audit.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly (delegates to the Gateway).
//   - Access Redis (the Gateway handles I/O).
//   - Treat a store failure as an unauthenticated caller. It is a 503.
package middleware

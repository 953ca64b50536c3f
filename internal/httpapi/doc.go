// Package httpapi is the HTTP surface of the Gateway, routed with chi.
//
// # Route authorization
//
//   - /auth/*: public, per-IP rate limited. Successful sign-ins return a session.
//   - /sessions/{id}, /me, /permissions, /contract-sessions: session auth
//     (bearer session id, X-Session-ID or the session_id cookie). Callers act on
//     their own records; acting on others needs the admin scope on the resource.
//   - POST /sessions and /internal/*: service JWT with a route scope. These are
//     machine-to-machine calls and never accept a session id.
//   - /healthz, /metrics: unauthenticated.
//
// # What this package must NOT do
//
//   - Make authorization decisions from a JWT on an end-user route.
//   - Cache anything used for authorization. The health cache only shields the
//     store from health-check traffic.
package httpapi

// Package audit delivers security-relevant events (sign-ins, session revocations,
// permission changes) to a sink without blocking the request path.
//
// # Components
//
//   - [Sink]: event consumer (slog, channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: audit record with timestamp, type, user, session, provider, reason.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The gateway does that.
//   - Import walletauth or any sibling internal package.
package audit

// Package session provides the session lifecycle store: create, get, extend, validate
// and revoke opaque, time-bounded sessions on top of an expiring [kv.Store].
//
// # Lifecycle
//
//	absent → active (Create) → active (Extend) → absent (Revoke | TTL expiry)
//
// There is no observable "expired" state: an expired session and one that never
// existed both read as a miss. Expiry moves forward only through [Store.Extend];
// reads never slide the deadline.
//
// # Encoding
//
// Records are stored as a versioned JSON envelope. Unknown schema versions are
// rejected instead of being guessed at.
//
// # What this package must NOT do
//
//   - Verify credentials (that belongs to siwe/siwf and the Gateway).
//   - Use RevokeReason for access-control branching; it feeds audit only.
//   - Keep sessions in process memory.
package session

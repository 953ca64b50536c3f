// Package permission stores resource-scoped capability grants.
//
// A grant binds a user to a resource ("global" or "namespace:value", e.g.
// "wallet:0xabc") with a set of scopes. There is exactly one record per
// (user, resource) pair; a new grant replaces the previous one wholesale.
// Grants are independent of sessions: revoking a session leaves grants intact.
//
// # Metadata
//
// Optional metadata is a tagged union ([Meta]) validated when a grant is
// written and again when it is decoded. Unknown kinds and unknown fields are
// rejected.
//
// # Architecture boundaries
//
// Records live in a [kv.Store] without TTL. Expiry is evaluated on read by
// [Registry.HasScope] so an expired grant remains inspectable via [Registry.Get].
//
// # What this package must NOT do
//
//   - Treat a store failure as "no permission". Every backend error is returned.
//   - Merge scopes across grants.
//   - Import walletauth, session, or jwt.
package permission

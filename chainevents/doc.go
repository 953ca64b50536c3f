// Package chainevents mirrors on-chain session and permission events into the
// Gateway's registries.
//
// The delegation contract emits MiniAppSessionGranted and MiniAppSessionRevoked
// when a wallet owner signs a contract session in or out, and PermissionGranted
// and PermissionRevoked for the scopes attached to a wallet. An indexer
// publishes those events as JSON to a Kafka topic; [KafkaSource] consumes the
// topic and hands each event to an [Applier].
//
// Applying is idempotent: a replayed grant returns the stored contract session
// and a replayed revoke keeps the first revocation time. Offsets are committed
// only after an event is applied or found permanently invalid.
//
// # What this package must NOT do
//
//   - Talk to a chain node. Events arrive already decoded.
//   - Commit an offset while the store is unavailable.
package chainevents

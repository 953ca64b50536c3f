// Package kv defines the expiring key-value store that owns every walletauth record
// and provides its Redis implementation.
//
// # Contract
//
// Per-key operations (Get, Set, Del, TTL) are atomic. No multi-key transactions are
// offered: every entity is self-contained in one key, and secondary indexes are plain
// sets that readers reconcile against the primary key.
//
// A miss is never an error. Every backend failure is wrapped in [ErrUnavailable] so
// callers can fail closed without inspecting driver types.
//
// # What this package must NOT do
//
//   - Interpret the values it stores.
//   - Cache values in process memory.
//   - Use the blocking KEYS command (prefix scans go through SCAN).
package kv

// Package internal contains helper utilities that are intentionally private to walletauth,
// chiefly secure random generation for session identifiers and sign-in nonces.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - httpapi: chi router exposing sessions, permissions and contract sessions over HTTP
//   - rate: Redis-backed fixed-window counters for failed verification attempts
//
// # What this package must NOT do
//
//   - Export types that appear in the public walletauth API.
//   - Be imported by any package outside the walletauth module.
package internal

// Package rate throttles repeated failed sign-in verifications with Redis-backed
// counters.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit, one key per
// client IP under "<Prefix>:ip:". An IP with MaxFailures failures in the
// current window is refused until the window expires. A successful sign-in
// does not clear the counter.
//
// # What this package must NOT do
//
//   - Key counters by a claimed, unverified identity.
//   - Decide what counts as a failure. The gateway does.
//   - Be imported outside the walletauth module.
package rate

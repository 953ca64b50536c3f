// Package jwt signs and verifies bearer tokens for the stateless,
// machine-to-machine authentication path.
//
// Tokens are independent of the session store: a valid token proves only that
// the holder was issued it before its expiry. User-facing routes authenticate
// with sessions instead.
//
// # What this package must NOT do
//
//   - Return an error or panic from [Issuer.VerifyToken]. Any failure yields nil.
//   - Accept an algorithm other than the configured one.
package jwt

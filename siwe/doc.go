// Package siwe implements Sign-In With Ethereum (EIP-4361).
//
// [ParseMessage] and [VerifySignature] wrap github.com/spruceid/siwe-go for the
// grammar and the EIP-191 personal_sign check; [Verifier.VerifySiweMessage]
// combines both with the validity window and the caller's domain and nonce
// expectations. [Message.String] renders the canonical text for signing.
//
// # What this package must NOT do
//
//   - Return verification failures as Go errors or panics. They are [Result] values.
//   - Create sessions. The caller decides what a verified address is worth.
package siwe

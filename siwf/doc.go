// Package siwf implements Sign-In With Farcaster.
//
// A client opens a channel on the Farcaster relay ([Service.CreateFarcasterChannel]),
// the user signs in their Farcaster app, and the client polls the channel
// ([Service.GetFarcasterChannelStatus] or the bounded [Service.WaitForCompletion])
// until the signed message arrives. [Service.VerifySiwfMessage] then checks the
// message: it is an EIP-4361 message naming a fid in its resources, and its
// signer must be that fid's custody address.
//
// # Nonce fallback
//
// When neither the caller nor the message provides a nonce, the configured
// [NonceFallback] applies. The default rejects the message.
//
// # What this package must NOT do
//
//   - Return verification or relay failures as Go errors. They are result values.
//   - Poll without a deadline.
package siwf

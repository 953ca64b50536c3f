// Package walletauth grants short-lived, scoped trust to a wallet-automation
// service. A signed proof of control (Sign-In With Farcaster or Sign-In With
// Ethereum) becomes an opaque, revocable, time-bounded session that request
// middleware resolves on every call.
//
// Gateway methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Authorization contract
//
// Session-store lookup ([Gateway.GetSession]) is the canonical path for user
// requests. Service tokens ([Gateway.IssueServiceToken]) are a separate,
// stateless path reserved for machine-to-machine routes. Routes never accept
// both.
//
// # Architecture boundaries
//
// walletauth is the public surface: [Gateway], [Builder], [Config], metrics and
// audit types. Stores live in session, permission and contractsession;
// verifiers in siwe and siwf; the service token issuer in jwt. Throttling and
// audit dispatch live under internal/.
//
// # What this package must NOT do
//
//   - Treat a store outage as "not found". Store failures surface as [ErrUnavailable].
//   - Return verifier failures as anything other than [ErrVerificationFailed].
//   - Import any sub-package that re-imports walletauth (no import cycles).
package walletauth

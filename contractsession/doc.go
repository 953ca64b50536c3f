// Package contractsession keeps the off-chain record of on-chain delegated
// spending grants ("contract sessions"): which wallet delegated to which
// delegate, for which tokens, until when.
//
// The chain is authoritative for fund movement. This registry is authoritative
// for presentation and for local revocation bookkeeping, so it keeps history:
// [Registry.Revoke] marks a record revoked and never deletes it.
//
// # Storage layout
//
//	cs:<id>                one JSON record, no TTL
//	cs_user:<userId>       set of ids
//	cs_wallet:<address>    set of ids, address in EIP-55 form
//
// # What this package must NOT do
//
//   - Talk to the chain. Events arrive through chainevents.
//   - Expire records. Expiry is evaluated by [ContractSession.Active].
package contractsession

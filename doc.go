// Package sealmsg is a client SDK for exchanging confidential text between
// two ledger accounts through a public, append-only ledger. Message bodies
// are encrypted under a per-conversation 256-bit key; the key itself is held
// on the ledger only in confidentially-encrypted form and is released by the
// external confidential-computation oracle to password identities that prove
// authorization.
//
// The SDK is stateless across process restarts: the only state it holds is
// the session-cached password and a time-bounded in-memory key cache, both
// dropped on Logout. All external effects go through the narrow capability
// interfaces in the ledger package.
package sealmsg

// Package ledger defines the on-ledger data model and the narrow capability
// interfaces the SDK consumes: the messaging program binding, the
// confidential-computation oracle, and the wallet signer. The core depends
// only on these interfaces, never on a concrete transport.
package ledger

import (
	"bytes"
	"context"
	"time"
)

// KeyHandle is the opaque ciphertext handle the confidential oracle returns
// for a stored conversation key. The handle, not the key, is what gets
// persisted on the ledger.
type KeyHandle []byte

// IsZero reports whether the handle is absent.
func (h KeyHandle) IsZero() bool { return len(h) == 0 }

// Equal reports whether two handles are byte-identical.
func (h KeyHandle) Equal(other KeyHandle) bool { return bytes.Equal(h, other) }

// Proof is the oracle's attestation accompanying a freshly encrypted secret.
// The SDK treats it as opaque and forwards it with the submission.
type Proof []byte

// TxID identifies an accepted ledger transaction.
type TxID string

// Cursor is an opaque position in an account's append-only message stream.
// The zero cursor is the start of the stream.
type Cursor uint64

// MessageRecord is one append-only encrypted message as stored by the
// ledger. Records are never mutated or deleted.
type MessageRecord struct {
	From       Address
	To         Address
	Ciphertext string
	SentAt     time.Time
}

// Conversation groups the ordered records of one conversation. Append order
// equals read order; the ledger totally orders records within one id.
type Conversation struct {
	ID           ConversationID
	Participants [2]Address
	Messages     []MessageRecord
}

// OutboundMessage is the payload of a single send transaction. KeyHandle and
// Proof are set only on the first message of a pair, when the conversation
// key is anchored in the same transaction.
type OutboundMessage struct {
	To         Address
	Ciphertext string
	KeyHandle  KeyHandle
	Proof      Proof
	Sig        []byte // wallet signature over the transaction payload
}

// LedgerClient is the messaging program interface.
//
// Implementations surface the errs sentinels where noted so the core can
// branch without knowing the transport.
type LedgerClient interface {
	// Register binds account to its password identity address. The binding is
	// write-once: a second attempt fails with errs.ErrAlreadyRegistered.
	// Registration retroactively grants the password address read access to
	// every conversation key the account already participates in.
	Register(ctx context.Context, account, passwordAddr Address, sig []byte) (TxID, error)

	// RegisteredIdentity returns the password address bound to account, or
	// errs.ErrNotRegistered when no binding exists.
	RegisteredIdentity(ctx context.Context, account Address) (Address, error)

	// SubmitMessage appends one encrypted message. When msg carries a key
	// handle the program stores it only if the pair's key slot is still
	// empty; a losing concurrent submission's handle is silently discarded.
	SubmitMessage(ctx context.Context, from Address, msg OutboundMessage) (TxID, error)

	// ConversationKeyHandle returns the canonical stored key handle for id,
	// or errs.ErrConversationNotFound when the pair has no anchored key yet.
	ConversationKeyHandle(ctx context.Context, id ConversationID) (KeyHandle, error)

	// ConversationsFor lists every conversation the account participates in,
	// messages in append order.
	ConversationsFor(ctx context.Context, account Address) ([]Conversation, error)

	// MessagesSince returns the account's message stream after cur, plus the
	// new head cursor. It backs pull-based new-message notification.
	MessagesSince(ctx context.Context, account Address, cur Cursor) ([]MessageRecord, Cursor, error)

	// ComputeConversationID is the program's own pair-to-id derivation. It
	// must match the SDK's derivation bit for bit.
	ComputeConversationID(ctx context.Context, a, b Address) (ConversationID, error)
}

// ConfidentialOracle is the external confidential-computation capability. It
// holds secrets in encrypted form and releases them only to identities that
// prove authorization.
type ConfidentialOracle interface {
	// EncryptSecret confidentially stores value scoped to the given contract
	// scope and owned by owner, returning an opaque handle plus a proof.
	EncryptSecret(ctx context.Context, value []byte, scope string, owner Address) (KeyHandle, Proof, error)

	// AuthorizeAndDecrypt releases the secret behind handle to the identity
	// proven by signedAuth, a time-bounded scope-limited authorization token.
	// Invalid signature, scope, handle or a missing grant fails with
	// errs.ErrDecryptionFailed.
	AuthorizeAndDecrypt(ctx context.Context, handle KeyHandle, scope string, signedAuth string) ([]byte, error)
}

// Wallet is the external signing capability controlling the account
// identity. It signs ledger transactions only; authorization tokens are
// signed by the password identity, never by the wallet.
type Wallet interface {
	AccountIdentity() Address
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

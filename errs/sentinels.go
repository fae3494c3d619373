// Package errs contains sentinel errors used across layers for stable error mapping.
//
// Callers branch on the code (or errors.Is against a sentinel), never on the
// message text.
package errs

import "errors"

// Sentinel is an error carrying a stable machine-readable code alongside
// human-readable text. All package-level sentinels are of this type.
type Sentinel struct {
	code string
	text string
}

func (e *Sentinel) Error() string { return e.text }

// Code returns the stable code for this sentinel.
func (e *Sentinel) Code() string { return e.code }

func newSentinel(code, text string) *Sentinel {
	return &Sentinel{code: code, text: text}
}

// Error taxonomy shared by the SDK and the ledger capabilities.
var (
	// ErrNotRegistered indicates the account has no password identity bound on
	// the ledger.
	ErrNotRegistered = newSentinel("NOT_REGISTERED", "account is not registered")

	// ErrInvalidPassword indicates the password does not reproduce the
	// registered password identity.
	ErrInvalidPassword = newSentinel("INVALID_PASSWORD", "invalid password")

	// ErrDecryptionFailed indicates a ciphertext or a confidential key could
	// not be decrypted (bad key, bad handle, missing grant, corrupt blob).
	ErrDecryptionFailed = newSentinel("DECRYPTION_FAILED", "decryption failed")

	// ErrConversationNotFound indicates no conversation (and hence no stored
	// key) exists for the requested conversation id.
	ErrConversationNotFound = newSentinel("CONVERSATION_NOT_FOUND", "conversation not found")

	// ErrAlreadyRegistered indicates a repeated registration attempt. The
	// account binding is immutable; this is fatal and non-retryable.
	ErrAlreadyRegistered = newSentinel("ALREADY_REGISTERED", "account is already registered")

	// ErrNotInitialized indicates an operation was attempted without an
	// established session.
	ErrNotInitialized = newSentinel("NOT_INITIALIZED", "no active session")

	// ErrTransactionFailed indicates a ledger-level transaction failure.
	ErrTransactionFailed = newSentinel("TRANSACTION_FAILED", "ledger transaction failed")
)

// CodeUnknown is returned by Code for errors outside the taxonomy.
const CodeUnknown = "UNKNOWN"

// Code extracts the stable code from err, unwrapping as needed.
func Code(err error) string {
	var s *Sentinel
	if errors.As(err, &s) {
		return s.code
	}
	return CodeUnknown
}

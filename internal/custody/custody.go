// Package custody manages the confidential lifecycle of conversation keys:
// uniform random generation, storage through the confidential-computation
// oracle, and authorized recovery. The plaintext key exists only transiently
// in process memory; the durable representation is the opaque handle the
// oracle returns, which callers anchor on the ledger.
package custody

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/identity"
	"github.com/sealmsg/sealmsg/internal/msgcrypt"
	"github.com/sealmsg/sealmsg/ledger"
)

// MaxAuthWindow caps the validity of an authorization token at ten days.
const MaxAuthWindow = 10 * 24 * time.Hour

// Custody stores and recovers conversation keys through an oracle, scoped to
// one contract instance.
type Custody struct {
	oracle ledger.ConfidentialOracle
	scope  string
	window time.Duration
	clock  clock.Clock
	log    *zap.Logger
}

// New constructs Custody. The authorization window is clamped into
// (0, MaxAuthWindow]; zero or negative selects the maximum.
func New(oracle ledger.ConfidentialOracle, scope string, window time.Duration, clk clock.Clock, log *zap.Logger) *Custody {
	if window <= 0 || window > MaxAuthWindow {
		window = MaxAuthWindow
	}
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Custody{oracle: oracle, scope: scope, window: window, clock: clk, log: log}
}

// Generate returns a fresh uniformly random conversation key, drawn from an
// ephemeral secp256k1 keypair generator. A generated key is never reused
// across conversations.
func Generate() (*msgcrypt.Key, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate conversation key: %w", err)
	}
	defer priv.Zero()
	return msgcrypt.KeyFromBytes(priv.Serialize())
}

// Store submits the plaintext key to the oracle and returns the opaque
// handle plus proof. Store never touches the ledger itself; anchoring the
// handle is the caller's responsibility, bundled into the message-send
// transaction.
func (c *Custody) Store(ctx context.Context, key *msgcrypt.Key, convID ledger.ConversationID, owner ledger.Address) (ledger.KeyHandle, ledger.Proof, error) {
	handle, proof, err := c.oracle.EncryptSecret(ctx, key.Bytes(), c.scope, owner)
	if err != nil {
		return nil, nil, fmt.Errorf("confidentially store key for %s: %w", convID, err)
	}
	c.log.Debug("conversation key stored",
		zap.Stringer("conversation", convID),
		zap.Int("handle_len", len(handle)),
	)
	return handle, proof, nil
}

// Recover unlocks the key behind handle for ident. It constructs a fresh
// short-lived authorization token, signs it with the password identity, and
// submits it to the oracle. A token that did not complete within its window
// is never replayed; callers retry with a fresh one.
func (c *Custody) Recover(ctx context.Context, handle ledger.KeyHandle, ident *identity.PasswordIdentity) (*msgcrypt.Key, error) {
	if handle.IsZero() {
		return nil, fmt.Errorf("%w: empty key handle", errs.ErrDecryptionFailed)
	}
	token, err := c.signAuthorization(ident)
	if err != nil {
		return nil, fmt.Errorf("sign authorization: %w", err)
	}
	raw, err := c.oracle.AuthorizeAndDecrypt(ctx, handle, c.scope, token)
	if err != nil {
		return nil, fmt.Errorf("recover conversation key: %w", err)
	}
	key, err := msgcrypt.KeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrDecryptionFailed, err)
	}
	return key, nil
}

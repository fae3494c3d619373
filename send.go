package sealmsg

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/convaddr"
	"github.com/sealmsg/sealmsg/internal/custody"
	"github.com/sealmsg/sealmsg/internal/msgcrypt"
	"github.com/sealmsg/sealmsg/ledger"
)

// SendResult reports a confirmed send.
type SendResult struct {
	TxID           ledger.TxID
	ConversationID ledger.ConversationID

	// KeyConflict is set when a concurrent first send anchored a different
	// conversation key than the one this message was encrypted under. The
	// message may be undecryptable under the canonical key; callers should
	// surface this rather than hide it.
	KeyConflict bool
}

// freshKey carries the confidential handle of a newly minted conversation
// key until it is anchored with the first submission.
type freshKey struct {
	handle ledger.KeyHandle
	proof  ledger.Proof
}

// Send encrypts text for the counterparty and submits it to the ledger. The
// send walks ResolveId, ObtainKey, Encrypt, Submit and returns on
// confirmation. On the very first send for a pair the fresh conversation
// key's handle is stored in the same transaction.
func (c *Client) Send(ctx context.Context, to ledger.Address, text string) (SendResult, error) {
	sess, err := c.currentSession()
	if err != nil {
		return SendResult{}, err
	}
	if to.IsZero() {
		return SendResult{}, errors.New("send: zero recipient address")
	}
	if to == sess.account {
		return SendResult{}, errors.New("send: recipient is the sender")
	}
	if text == "" {
		return SendResult{}, errors.New("send: empty message")
	}

	convID := convaddr.ConversationID(sess.account, to)
	key, fresh, err := c.obtainKey(ctx, sess, convID, "", true)
	if err != nil {
		return SendResult{}, err
	}

	blob, err := msgcrypt.Encrypt(text, key)
	if err != nil {
		return SendResult{}, fmt.Errorf("encrypt message: %w", err)
	}

	msg := ledger.OutboundMessage{To: to, Ciphertext: blob}
	if fresh != nil {
		msg.KeyHandle, msg.Proof = fresh.handle, fresh.proof
	}
	sig, err := c.wallet.Sign(ctx, submissionPayload(sess.account, msg))
	if err != nil {
		return SendResult{}, fmt.Errorf("sign submission: %w", err)
	}
	msg.Sig = sig

	txID, err := c.ledger.SubmitMessage(ctx, sess.account, msg)
	if err != nil {
		return SendResult{}, fmt.Errorf("submit message: %w", err)
	}

	res := SendResult{TxID: txID, ConversationID: convID}
	if fresh != nil {
		conflict, err := c.confirmAnchoredKey(ctx, convID, fresh.handle)
		if err != nil {
			// The message is confirmed on the ledger but the canonical key
			// could not be re-read, so the conflict check is inconclusive.
			// The minted key stays uncached; the next obtain recovers
			// whatever was anchored.
			return res, fmt.Errorf("confirm anchored conversation key: %w", err)
		}
		res.KeyConflict = conflict
		if !conflict {
			c.cache.Put(convID, key)
		}
	}
	c.log.Info("message sent",
		zap.Stringer("conversation", convID),
		zap.String("tx", string(txID)),
		zap.Bool("key_conflict", res.KeyConflict),
	)
	return res, nil
}

// confirmAnchoredKey re-reads the canonical key handle after a first-send
// submission. Two concurrent first sends can each mint a key; the program
// keeps only the first-anchored one and silently discards the other, leaving
// the loser's message encrypted under a discarded key. The conflict is
// detected and surfaced, not resolved. A failed re-read is an error, never a
// silent "no conflict".
func (c *Client) confirmAnchoredKey(ctx context.Context, convID ledger.ConversationID, submitted ledger.KeyHandle) (bool, error) {
	canonical, err := c.ledger.ConversationKeyHandle(ctx, convID)
	if err != nil {
		return false, err
	}
	if canonical.Equal(submitted) {
		return false, nil
	}
	c.log.Warn("conversation key conflict: concurrent first send won the key slot",
		zap.Stringer("conversation", convID),
	)
	return true, nil
}

// obtainKey resolves the conversation key: cache first, then recovery of the
// ledger-anchored key, then, on a send path only, first-send generation. A
// non-nil freshKey is returned exactly when a brand-new key was minted; the
// caller must anchor its handle with the next submission. Only recovered
// (already-anchored) keys are cached here, and only after a fully successful
// obtain, so a cancelled or failed call never leaves a partial entry behind.
func (c *Client) obtainKey(ctx context.Context, sess *session, convID ledger.ConversationID, passwordOverride string, generate bool) (*msgcrypt.Key, *freshKey, error) {
	if key := c.cache.Get(convID); key != nil {
		return key, nil, nil
	}

	handle, err := c.ledger.ConversationKeyHandle(ctx, convID)
	switch {
	case err == nil:
		key, err := c.recoverKey(ctx, sess, passwordOverride, handle)
		if err != nil {
			return nil, nil, err
		}
		c.cache.Put(convID, key)
		return key, nil, nil

	case errors.Is(err, errs.ErrConversationNotFound) && generate:
		// First message for this pair: mint the key and prepare its
		// confidential handle for the same transaction. This is the only
		// point a brand-new key is created. The key is NOT cached here: it
		// means nothing until its handle is anchored, and a cached
		// un-anchored key would make every retry of a failed first send
		// submit without one. Send caches it after anchoring is confirmed.
		key, err := custody.Generate()
		if err != nil {
			return nil, nil, err
		}
		handle, proof, err := c.custody.Store(ctx, key, convID, sess.account)
		if err != nil {
			return nil, nil, err
		}
		return key, &freshKey{handle: handle, proof: proof}, nil

	default:
		return nil, nil, fmt.Errorf("conversation key handle: %w", err)
	}
}

// recoverKey runs the authorized recovery of an anchored key. The password
// (session or override) is verified against the on-ledger binding first, so
// errs.ErrInvalidPassword precedes any errs.ErrDecryptionFailed.
func (c *Client) recoverKey(ctx context.Context, sess *session, passwordOverride string, handle ledger.KeyHandle) (*msgcrypt.Key, error) {
	ident, err := c.passwordIdentity(ctx, sess, passwordOverride)
	if err != nil {
		return nil, err
	}
	defer ident.Zero()
	return c.custody.Recover(ctx, handle, ident)
}

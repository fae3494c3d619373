// Package simledger is an in-memory reference implementation of the
// messaging program and the confidential-computation oracle. It mirrors the
// on-ledger semantics the SDK relies on: append-only total order per
// conversation, a write-once per-pair key slot, immutable registration
// bindings with retroactive grants, and authorization-gated secret release.
// It backs the test suite and the demo binary; it is not a transport.
package simledger

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/convaddr"
	"github.com/sealmsg/sealmsg/internal/custody"
	"github.com/sealmsg/sealmsg/ledger"
)

// Option adjusts Ledger construction.
type Option func(*Ledger)

// WithClock injects the clock used for timestamps and authorization
// validation. Tests pass a mock.
func WithClock(clk clock.Clock) Option {
	return func(l *Ledger) { l.clock = clk }
}

// WithLogger sets the structured logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// Ledger implements ledger.LedgerClient and ledger.ConfidentialOracle over
// process memory, guarded by one mutex.
type Ledger struct {
	scope string
	clock clock.Clock
	log   *zap.Logger

	mu        sync.Mutex
	bindings  map[ledger.Address]ledger.Address // account -> password address
	convs     map[ledger.ConversationID]*conversation
	convOrder []ledger.ConversationID
	secrets   map[string]secret // handle hex key
	grants    map[grantKey]struct{}
	feeds     map[ledger.Address][]ledger.MessageRecord
}

type conversation struct {
	participants [2]ledger.Address
	keyHandle    ledger.KeyHandle
	messages     []ledger.MessageRecord
}

type secret struct {
	value []byte
	owner ledger.Address
}

type grantKey struct {
	handle string
	addr   ledger.Address
}

// New creates an empty ledger scoped to one contract instance.
func New(scope string, opts ...Option) *Ledger {
	l := &Ledger{
		scope:    scope,
		clock:    clock.New(),
		log:      zap.NewNop(),
		bindings: make(map[ledger.Address]ledger.Address),
		convs:    make(map[ledger.ConversationID]*conversation),
		secrets:  make(map[string]secret),
		grants:   make(map[grantKey]struct{}),
		feeds:    make(map[ledger.Address][]ledger.MessageRecord),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register binds account to passwordAddr, exactly once, and retroactively
// grants passwordAddr access to every conversation key the account already
// participates in.
func (l *Ledger) Register(ctx context.Context, account, passwordAddr ledger.Address, sig []byte) (ledger.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if account.IsZero() || passwordAddr.IsZero() {
		return "", fmt.Errorf("%w: zero address in registration", errs.ErrTransactionFailed)
	}
	if len(sig) == 0 {
		return "", fmt.Errorf("%w: unsigned registration", errs.ErrTransactionFailed)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.bindings[account]; ok {
		return "", errs.ErrAlreadyRegistered
	}
	l.bindings[account] = passwordAddr

	granted := 0
	for _, conv := range l.convs {
		if conv.keyHandle.IsZero() {
			continue
		}
		if conv.participants[0] != account && conv.participants[1] != account {
			continue
		}
		l.grants[grantKey{handle: handleKey(conv.keyHandle), addr: passwordAddr}] = struct{}{}
		granted++
	}
	l.log.Debug("account registered",
		zap.Stringer("account", account),
		zap.Int("retroactive_grants", granted),
	)
	return l.txID()
}

// RegisteredIdentity returns the password address bound to account.
func (l *Ledger) RegisteredIdentity(ctx context.Context, account ledger.Address) (ledger.Address, error) {
	if err := ctx.Err(); err != nil {
		return ledger.ZeroAddress, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	addr, ok := l.bindings[account]
	if !ok {
		return ledger.ZeroAddress, errs.ErrNotRegistered
	}
	return addr, nil
}

// SubmitMessage appends one encrypted message. A carried key handle is
// stored only while the pair's key slot is empty; a losing concurrent
// submission's handle is silently discarded — the program cannot tell that
// the losing sender encrypted under the discarded key.
func (l *Ledger) SubmitMessage(ctx context.Context, from ledger.Address, msg ledger.OutboundMessage) (ledger.TxID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if from.IsZero() || msg.To.IsZero() || msg.Ciphertext == "" {
		return "", fmt.Errorf("%w: malformed message", errs.ErrTransactionFailed)
	}
	if len(msg.Sig) == 0 {
		return "", fmt.Errorf("%w: unsigned message", errs.ErrTransactionFailed)
	}
	convID := convaddr.ConversationID(from, msg.To)

	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.convs[convID]
	if !ok {
		lo, hi := from, msg.To
		if hi.Cmp(lo) < 0 {
			lo, hi = hi, lo
		}
		conv = &conversation{participants: [2]ledger.Address{lo, hi}}
		l.convs[convID] = conv
		l.convOrder = append(l.convOrder, convID)
	}
	if conv.keyHandle.IsZero() {
		if msg.KeyHandle.IsZero() {
			return "", fmt.Errorf("%w: first message carries no conversation key", errs.ErrTransactionFailed)
		}
		conv.keyHandle = append(ledger.KeyHandle(nil), msg.KeyHandle...)
		l.grantParticipantsLocked(conv)
	}

	rec := ledger.MessageRecord{
		From:       from,
		To:         msg.To,
		Ciphertext: msg.Ciphertext,
		SentAt:     l.clock.Now(),
	}
	conv.messages = append(conv.messages, rec)
	l.feeds[from] = append(l.feeds[from], rec)
	l.feeds[msg.To] = append(l.feeds[msg.To], rec)
	return l.txID()
}

// grantParticipantsLocked grants the freshly anchored key to each
// participant's password identity. Unregistered participants receive no
// grant; registration later re-grants retroactively.
func (l *Ledger) grantParticipantsLocked(conv *conversation) {
	hk := handleKey(conv.keyHandle)
	for _, p := range conv.participants {
		if passwordAddr, ok := l.bindings[p]; ok {
			l.grants[grantKey{handle: hk, addr: passwordAddr}] = struct{}{}
		}
	}
}

// ConversationKeyHandle returns the canonical anchored key handle for id.
func (l *Ledger) ConversationKeyHandle(ctx context.Context, id ledger.ConversationID) (ledger.KeyHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	conv, ok := l.convs[id]
	if !ok || conv.keyHandle.IsZero() {
		return nil, errs.ErrConversationNotFound
	}
	return append(ledger.KeyHandle(nil), conv.keyHandle...), nil
}

// ConversationsFor lists the conversations the account participates in, in
// creation order, each with its full append-ordered message history.
func (l *Ledger) ConversationsFor(ctx context.Context, account ledger.Address) ([]ledger.Conversation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []ledger.Conversation
	for _, id := range l.convOrder {
		conv := l.convs[id]
		if conv.participants[0] != account && conv.participants[1] != account {
			continue
		}
		out = append(out, ledger.Conversation{
			ID:           id,
			Participants: conv.participants,
			Messages:     append([]ledger.MessageRecord(nil), conv.messages...),
		})
	}
	return out, nil
}

// MessagesSince returns the account's stream after cur plus the new head.
func (l *Ledger) MessagesSince(ctx context.Context, account ledger.Address, cur ledger.Cursor) ([]ledger.MessageRecord, ledger.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	feed := l.feeds[account]
	head := ledger.Cursor(len(feed))
	if cur >= head {
		return nil, head, nil
	}
	return append([]ledger.MessageRecord(nil), feed[cur:]...), head, nil
}

// ComputeConversationID runs the program's own pair-to-id derivation, which
// is bit-for-bit the SDK's.
func (l *Ledger) ComputeConversationID(ctx context.Context, a, b ledger.Address) (ledger.ConversationID, error) {
	if err := ctx.Err(); err != nil {
		return ledger.ConversationID{}, err
	}
	return convaddr.ConversationID(a, b), nil
}

// EncryptSecret confidentially stores value under a fresh opaque handle. The
// proof is the oracle's attestation binding handle, scope and owner.
func (l *Ledger) EncryptSecret(ctx context.Context, value []byte, scope string, owner ledger.Address) (ledger.KeyHandle, ledger.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if scope != l.scope {
		return nil, nil, fmt.Errorf("unknown contract scope %q", scope)
	}
	handle := make([]byte, 32)
	if _, err := rand.Read(handle); err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.secrets[handleKey(handle)] = secret{
		value: append([]byte(nil), value...),
		owner: owner,
	}
	return handle, attest(handle, scope, owner), nil
}

// AuthorizeAndDecrypt releases the secret behind handle to the identity
// proven by signedAuth. Signature, scope, validity window and the grant
// table are all checked; any failure is errs.ErrDecryptionFailed.
func (l *Ledger) AuthorizeAndDecrypt(ctx context.Context, handle ledger.KeyHandle, scope string, signedAuth string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr, err := custody.VerifyAuthorization(signedAuth, scope, l.clock.Now)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if scope != l.scope {
		return nil, fmt.Errorf("%w: unknown contract scope", errs.ErrDecryptionFailed)
	}
	sec, ok := l.secrets[handleKey(handle)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key handle", errs.ErrDecryptionFailed)
	}
	if _, granted := l.grants[grantKey{handle: handleKey(handle), addr: addr}]; !granted {
		return nil, fmt.Errorf("%w: identity %s was never granted access", errs.ErrDecryptionFailed, addr)
	}
	return append([]byte(nil), sec.value...), nil
}

func (l *Ledger) txID() (ledger.TxID, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return ledger.TxID(id.String()), nil
}

func handleKey(h ledger.KeyHandle) string { return fmt.Sprintf("%x", []byte(h)) }

func attest(handle []byte, scope string, owner ledger.Address) ledger.Proof {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte("simledger/attest/v1"))
	h.Write(handle)
	h.Write([]byte(scope))
	h.Write(owner[:])
	return h.Sum(nil)
}

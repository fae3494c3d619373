package simledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/convaddr"
	"github.com/sealmsg/sealmsg/ledger"
)

const testScope = "simledger-test"

func addr(t *testing.T, s string) ledger.Address {
	t.Helper()
	a, err := ledger.ParseAddress(s)
	require.NoError(t, err)
	return a
}

func TestRegister_WriteOnce(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	ctx := context.Background()
	account := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	pwAddr := addr(t, "0x1111111111111111111111111111111111111111")

	_, err := l.RegisteredIdentity(ctx, account)
	require.ErrorIs(t, err, errs.ErrNotRegistered)

	_, err = l.Register(ctx, account, pwAddr, []byte("sig"))
	require.NoError(t, err)

	got, err := l.RegisteredIdentity(ctx, account)
	require.NoError(t, err)
	require.Equal(t, pwAddr, got)

	// The binding is immutable; a second attempt is fatal.
	_, err = l.Register(ctx, account, addr(t, "0x2222222222222222222222222222222222222222"), []byte("sig"))
	require.ErrorIs(t, err, errs.ErrAlreadyRegistered)

	got, err = l.RegisteredIdentity(ctx, account)
	require.NoError(t, err)
	require.Equal(t, pwAddr, got, "binding changed by rejected re-registration")
}

func TestSubmitMessage_KeySlotWriteOnce(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	ctx := context.Background()
	alice := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	convID := convaddr.ConversationID(alice, bob)

	// First message must carry a key.
	_, err := l.SubmitMessage(ctx, alice, ledger.OutboundMessage{
		To: bob, Ciphertext: "c1", Sig: []byte("sig"),
	})
	require.ErrorIs(t, err, errs.ErrTransactionFailed)

	_, err = l.SubmitMessage(ctx, alice, ledger.OutboundMessage{
		To: bob, Ciphertext: "c1", KeyHandle: ledger.KeyHandle("winner"), Sig: []byte("sig"),
	})
	require.NoError(t, err)

	// A concurrent first send's competing key is silently discarded.
	_, err = l.SubmitMessage(ctx, bob, ledger.OutboundMessage{
		To: alice, Ciphertext: "c2", KeyHandle: ledger.KeyHandle("loser"), Sig: []byte("sig"),
	})
	require.NoError(t, err)

	h, err := l.ConversationKeyHandle(ctx, convID)
	require.NoError(t, err)
	require.True(t, h.Equal(ledger.KeyHandle("winner")), "key slot was overwritten")

	convs, err := l.ConversationsFor(ctx, alice)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	require.Len(t, convs[0].Messages, 2, "losing submission's message must still be stored")
	require.Equal(t, "c1", convs[0].Messages[0].Ciphertext)
	require.Equal(t, "c2", convs[0].Messages[1].Ciphertext)
}

func TestConversationKeyHandle_Missing(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	var id ledger.ConversationID
	id[0] = 9
	_, err := l.ConversationKeyHandle(context.Background(), id)
	require.ErrorIs(t, err, errs.ErrConversationNotFound)
}

func TestComputeConversationID_MatchesClientDerivation(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	ctx := context.Background()
	a := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	b := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	ab, err := l.ComputeConversationID(ctx, a, b)
	require.NoError(t, err)
	ba, err := l.ComputeConversationID(ctx, b, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
	require.Equal(t, convaddr.ConversationID(a, b), ab, "program and SDK derivations diverge")
}

func TestMessagesSince_CursorAdvances(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	ctx := context.Background()
	alice := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob := addr(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	_, err := l.SubmitMessage(ctx, alice, ledger.OutboundMessage{
		To: bob, Ciphertext: "c1", KeyHandle: ledger.KeyHandle("k"), Sig: []byte("sig"),
	})
	require.NoError(t, err)

	recs, head, err := l.MessagesSince(ctx, bob, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	recs, head2, err := l.MessagesSince(ctx, bob, head)
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Equal(t, head, head2)

	_, err = l.SubmitMessage(ctx, alice, ledger.OutboundMessage{
		To: bob, Ciphertext: "c2", Sig: []byte("sig"),
	})
	require.NoError(t, err)

	recs, _, err = l.MessagesSince(ctx, bob, head)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "c2", recs[0].Ciphertext)
}

func TestOracle_GrantGatesRelease(t *testing.T) {
	t.Parallel()

	l := New(testScope)
	ctx := context.Background()
	owner := addr(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	handle, proof, err := l.EncryptSecret(ctx, []byte("secret"), testScope, owner)
	require.NoError(t, err)
	require.False(t, handle.IsZero())
	require.NotEmpty(t, proof)

	// No grant, garbage authorization: release must fail.
	_, err = l.AuthorizeAndDecrypt(ctx, handle, testScope, "not-a-token")
	require.ErrorIs(t, err, errs.ErrDecryptionFailed)

	_, _, err = l.EncryptSecret(ctx, []byte("x"), "wrong-scope", owner)
	require.Error(t, err)
}

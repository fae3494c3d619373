package sealmsg

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg/errs"
	"github.com/sealmsg/sealmsg/internal/msgcrypt"
	"github.com/sealmsg/sealmsg/ledger"
)

// Message is one decrypted message record.
type Message struct {
	From   ledger.Address
	To     ledger.Address
	Text   string
	SentAt time.Time

	// Undecryptable is set when this record failed to decrypt under the
	// canonical conversation key; Text then holds the sentinel marker. The
	// rest of the conversation still renders.
	Undecryptable bool
}

// ConversationSummary describes one conversation without decrypting it.
type ConversationSummary struct {
	ID           ledger.ConversationID
	Peer         ledger.Address
	MessageCount int
	LastActivity time.Time
}

// Conversations lists the account's conversations in ledger order.
func (c *Client) Conversations(ctx context.Context) ([]ConversationSummary, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	convs, err := c.ledger.ConversationsFor(ctx, sess.account)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		s := ConversationSummary{
			ID:           conv.ID,
			Peer:         peerOf(conv, sess.account),
			MessageCount: len(conv.Messages),
		}
		if n := len(conv.Messages); n > 0 {
			s.LastActivity = conv.Messages[n-1].SentAt
		}
		out = append(out, s)
	}
	return out, nil
}

// Messages returns the ordered, decrypted messages of one conversation.
// When password is empty the session-cached password is used. Decryption is
// recovered at batch granularity: a single undecryptable record degrades to
// the sentinel marker with its metadata preserved.
func (c *Client) Messages(ctx context.Context, convID ledger.ConversationID, password string) ([]Message, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	if password != "" {
		// An explicit password is verified up front, before the cache or any
		// recovery can mask it.
		ident, err := c.passwordIdentity(ctx, sess, password)
		if err != nil {
			return nil, err
		}
		ident.Zero()
	}

	conv, err := c.conversation(ctx, sess.account, convID)
	if err != nil {
		return nil, err
	}

	key, _, err := c.obtainKey(ctx, sess, convID, password, false)
	if err != nil {
		return nil, err
	}

	blobs := make([]string, len(conv.Messages))
	for i, rec := range conv.Messages {
		blobs[i] = rec.Ciphertext
	}
	texts := msgcrypt.DecryptTexts(blobs, key)

	out := make([]Message, len(conv.Messages))
	failed := 0
	for i, rec := range conv.Messages {
		out[i] = Message{
			From:          rec.From,
			To:            rec.To,
			Text:          texts[i],
			SentAt:        rec.SentAt,
			Undecryptable: texts[i] == msgcrypt.Undecryptable,
		}
		if out[i].Undecryptable {
			failed++
		}
	}
	if failed > 0 {
		c.log.Warn("conversation contains undecryptable messages",
			zap.Stringer("conversation", convID),
			zap.Int("failed", failed),
			zap.Int("total", len(out)),
		)
	}
	return out, nil
}

// conversation fetches one conversation by id from the account's listing.
func (c *Client) conversation(ctx context.Context, account ledger.Address, convID ledger.ConversationID) (ledger.Conversation, error) {
	convs, err := c.ledger.ConversationsFor(ctx, account)
	if err != nil {
		return ledger.Conversation{}, fmt.Errorf("list conversations: %w", err)
	}
	for _, conv := range convs {
		if conv.ID == convID {
			return conv, nil
		}
	}
	return ledger.Conversation{}, errs.ErrConversationNotFound
}

func peerOf(conv ledger.Conversation, self ledger.Address) ledger.Address {
	if conv.Participants[0] == self {
		return conv.Participants[1]
	}
	return conv.Participants[0]
}

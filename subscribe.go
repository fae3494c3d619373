package sealmsg

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/sealmsg/sealmsg/ledger"
)

// Subscription delivers newly appended message records for the session
// account until Unsubscribe is called. Records arrive encrypted; use
// Messages to read a conversation decrypted.
type Subscription struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// ID identifies the subscription.
func (s *Subscription) ID() uuid.UUID { return s.id }

// Unsubscribe stops polling and waits for the loop to exit.
func (s *Subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Subscribe starts a pull-based poll of the account's message stream and
// invokes cb for every record appended after the subscription was created.
// The poll interval is the caller-configured policy (WithPollInterval). The
// stream head is snapshotted before Subscribe returns, so the existing
// backlog is never delivered. Cancelling ctx stops the subscription the same
// way Unsubscribe does.
func (c *Client) Subscribe(ctx context.Context, cb func(ledger.MessageRecord)) (*Subscription, error) {
	sess, err := c.currentSession()
	if err != nil {
		return nil, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	_, head, err := c.ledger.MessagesSince(ctx, sess.account, 0)
	if err != nil {
		return nil, err
	}
	pollCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{id: id, cancel: cancel, done: make(chan struct{})}
	go c.pollLoop(pollCtx, sess.account, head, cb, sub.done)
	return sub, nil
}

// pollLoop advances a cursor over the account's stream.
func (c *Client) pollLoop(ctx context.Context, account ledger.Address, cursor ledger.Cursor, cb func(ledger.MessageRecord), done chan<- struct{}) {
	defer close(done)

	ticker := c.clock.Ticker(c.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		records, next, err := c.ledger.MessagesSince(ctx, account, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("poll for new messages failed", zap.Error(err))
			continue
		}
		cursor = next
		for _, rec := range records {
			cb(rec)
		}
	}
}

// Package keycache holds recovered conversation keys in memory for a
// bounded time. It is the only mutable shared state in the core: entries are
// immutable once written, expiry deletes them, and a later obtain
// re-populates fresh. Dropping an entry at any time is always safe because
// the key is re-derivable through authorized recovery.
package keycache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/sealmsg/sealmsg/internal/msgcrypt"
	"github.com/sealmsg/sealmsg/ledger"
)

// DefaultTTL bounds how long a recovered key stays cached.
const DefaultTTL = time.Hour

// Cache maps conversation ids to plaintext conversation keys.
type Cache struct {
	inner *ttlcache.Cache[ledger.ConversationID, *msgcrypt.Key]
}

// New creates a Cache with the given entry TTL (DefaultTTL when ttl <= 0)
// and starts its expiry janitor. Call Stop to release it.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	inner := ttlcache.New(
		ttlcache.WithTTL[ledger.ConversationID, *msgcrypt.Key](ttl),
		ttlcache.WithDisableTouchOnHit[ledger.ConversationID, *msgcrypt.Key](),
	)
	go inner.Start()
	return &Cache{inner: inner}
}

// Get returns the cached key for id, or nil on miss or expiry.
func (c *Cache) Get(id ledger.ConversationID) *msgcrypt.Key {
	item := c.inner.Get(id)
	if item == nil {
		return nil
	}
	return item.Value()
}

// Put stores key under id. Callers insert only after a fully successful
// obtain; a duplicate concurrent population overwrites with the equal
// canonical value.
func (c *Cache) Put(id ledger.ConversationID, key *msgcrypt.Key) {
	c.inner.Set(id, key, ttlcache.DefaultTTL)
}

// Delete drops the entry for id, if any.
func (c *Cache) Delete(id ledger.ConversationID) { c.inner.Delete(id) }

// Clear drops every cached key (logout).
func (c *Cache) Clear() { c.inner.DeleteAll() }

// Stop terminates the expiry janitor.
func (c *Cache) Stop() { c.inner.Stop() }

// Package logincache bridges the panel's asynchronous login check into the
// server's synchronous login gate, and deduplicates repeated checks for
// the same player inside a short window.
package logincache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/modl-gg/minecraft-sub001/modl/panel"
)

const (
	// DefaultResultTTL is how long a completed login check may be reused
	// before the panel must be asked again.
	DefaultResultTTL = 30 * time.Second

	// bridgeTTL bounds how long an unconsumed pre-login result lives. The
	// consuming hook normally arrives within milliseconds; the TTL only
	// reclaims entries for players who vanished between the two stages.
	bridgeTTL = 60 * time.Second

	// sweepInterval drives the periodic garbage sweep. The sweep bounds
	// memory only; reads check expiry themselves and never depend on it.
	sweepInterval = 30 * time.Second
)

// PreLoginResult carries the outcome of the asynchronous login check to
// the synchronous gate: either the panel's verdict or the error that
// prevented one. A missing entry is neither of those; the gate must treat
// it as "not answered yet", never as "no punishment".
type PreLoginResult struct {
	Result *panel.LoginResult
	Err    error
}

type cachedResult struct {
	result  *panel.LoginResult
	expires time.Time
}

type bridgeEntry struct {
	result  PreLoginResult
	expires time.Time
}

// Cache holds the two login-gating maps: a TTL cache of completed login
// checks and the pre-login bridge mailbox. Both are touched from timer,
// async-completion and session-event threads at once.
type Cache struct {
	log *slog.Logger
	ttl time.Duration

	results sync.Map // uuid.UUID -> cachedResult
	bridge  sync.Map // uuid.UUID -> bridgeEntry

	closeOnce sync.Once
	closed    chan struct{}
}

// NewCache creates the cache and starts its sweep goroutine. A zero ttl
// falls back to DefaultResultTTL.
func NewCache(log *slog.Logger, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	c := &Cache{
		log:    log,
		ttl:    ttl,
		closed: make(chan struct{}),
	}
	go c.sweep()
	return c
}

// CacheLoginResult stores a completed login check for reuse within the TTL.
func (c *Cache) CacheLoginResult(id uuid.UUID, result *panel.LoginResult) {
	c.results.Store(id, cachedResult{result: result, expires: time.Now().Add(c.ttl)})
}

// CachedLoginResult returns the cached login check for the player if one
// exists and has not expired. An expired entry is removed and reported
// absent, never returned stale.
func (c *Cache) CachedLoginResult(id uuid.UUID) (*panel.LoginResult, bool) {
	v, ok := c.results.Load(id)
	if !ok {
		return nil, false
	}
	entry := v.(cachedResult)
	if time.Now().After(entry.expires) {
		c.results.Delete(id)
		return nil, false
	}
	return entry.result, true
}

// StorePreLoginResult parks the outcome of an asynchronous login check for
// the synchronous gate to collect.
func (c *Cache) StorePreLoginResult(id uuid.UUID, result PreLoginResult) {
	c.bridge.Store(id, bridgeEntry{result: result, expires: time.Now().Add(bridgeTTL)})
}

// TakePreLoginResult consumes the parked result for the player. The read
// is destructive: a second call returns absence even if the entry had not
// expired.
func (c *Cache) TakePreLoginResult(id uuid.UUID) (PreLoginResult, bool) {
	v, ok := c.bridge.LoadAndDelete(id)
	if !ok {
		return PreLoginResult{}, false
	}
	entry := v.(bridgeEntry)
	if time.Now().After(entry.expires) {
		return PreLoginResult{}, false
	}
	return entry.result, true
}

// sweep drops expired entries from both maps until Stop is called.
func (c *Cache) sweep() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-t.C:
			now := time.Now()
			c.results.Range(func(key, value any) bool {
				if now.After(value.(cachedResult).expires) {
					c.results.Delete(key)
				}
				return true
			})
			c.bridge.Range(func(key, value any) bool {
				if now.After(value.(bridgeEntry).expires) {
					c.bridge.Delete(key)
					c.log.Debug("discarded unconsumed pre-login result", "player", key)
				}
				return true
			})
		}
	}
}

// Stop stops the sweep goroutine.
func (c *Cache) Stop() {
	c.closeOnce.Do(func() { close(c.closed) })
}

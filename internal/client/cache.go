package client

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

// CacheTTL bounds how long a fetched value is served without a network call.
const CacheTTL = 20 * time.Second

// Cache is a per-user single-slot memo. It holds the last known value for
// exactly one user; switching users invalidates it by key mismatch, and
// Clear must be called on logout so the next user never sees the previous
// user's data. Concurrent fetches for the same user are collapsed into one
// network call, and a failed refresh degrades to the stale value when one
// exists.
type Cache[T any] struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu       sync.Mutex
	userID   string
	value    *T
	cachedAt time.Time

	group singleflight.Group
}

func NewCache[T any](clock clockwork.Clock, ttl time.Duration) *Cache[T] {
	return &Cache[T]{clock: clock, ttl: ttl}
}

// Cached returns the slot without a freshness check. It exists for instant
// optimistic rendering on mount; callers wanting fresh data use Fetch.
func (c *Cache[T]) Cached(userID string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	if userID == "" || c.userID != userID || c.value == nil {
		return zero, false
	}
	return *c.value, true
}

// Fetch returns the cached value while fresh, otherwise loads a new one. A
// load already in flight for the same user is joined rather than duplicated.
func (c *Cache[T]) Fetch(ctx context.Context, userID string, force bool, load func(ctx context.Context) (T, error)) (T, error) {
	c.mu.Lock()
	if !force && c.userID == userID && c.value != nil && c.clock.Since(c.cachedAt) < c.ttl {
		value := *c.value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	result, err, _ := c.group.Do(userID, func() (interface{}, error) {
		value, loadErr := load(ctx)
		if loadErr != nil {
			// Serve last-known-good over an error when we have one.
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.userID == userID && c.value != nil {
				return *c.value, nil
			}
			return nil, loadErr
		}

		c.mu.Lock()
		c.userID = userID
		c.value = &value
		c.cachedAt = c.clock.Now()
		c.mu.Unlock()
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// Put overwrites the slot, typically after a successful write whose response
// is the freshest view of the value.
func (c *Cache[T]) Put(userID string, value T) {
	if userID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.value = &value
	c.cachedAt = c.clock.Now()
}

// Clear empties the slot. Called on sign-out.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = ""
	c.value = nil
	c.cachedAt = time.Time{}
}

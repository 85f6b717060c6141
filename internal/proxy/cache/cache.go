// Package cache holds proxied resource content for conditional requests.
//
// Entries are keyed by channel id and resource path and carry the body, mime
// type and etag validator delivered by the host. A not-modified reply from
// the host is served out of this cache; entries expire after a TTL and a
// janitor goroutine sweeps them out.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is how long cached content stays valid without revalidation.
const DefaultTTL = 5 * time.Minute

const sweepInterval = time.Minute

// Entry is one cached resource.
type Entry struct {
	Body     []byte
	Mime     string
	Etag     string
	StoredAt time.Time
}

type record struct {
	entry    Entry
	expireAt time.Time
}

// Cache is a TTL-bounded content cache, safe for concurrent use.
type Cache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	m    map[string]record
	stop chan struct{}
	once sync.Once
}

// New creates a cache with the given TTL; ttl <= 0 uses the default.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		ttl:  ttl,
		m:    make(map[string]record),
		stop: make(chan struct{}),
	}
	go c.janitor()
	return c
}

func key(channel, path string) string {
	return channel + "\x00" + path
}

// Get returns the cached entry for a channel-scoped path.
func (c *Cache) Get(channel, path string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.m[key(channel, path)]
	if !ok || time.Now().After(rec.expireAt) {
		return Entry{}, false
	}
	return rec.entry, true
}

// Put stores resource content delivered by the host.
func (c *Cache) Put(channel, path string, e Entry) {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key(channel, path)] = record{entry: e, expireAt: time.Now().Add(c.ttl)}
}

// Touch extends the lifetime of an entry after the host confirmed it is
// still current. Reports whether the entry existed.
func (c *Cache) Touch(channel, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(channel, path)
	rec, ok := c.m[k]
	if !ok {
		return false
	}
	rec.expireAt = time.Now().Add(c.ttl)
	c.m[k] = rec
	return true
}

// InvalidateChannel drops every entry belonging to a channel, used when its
// host disconnects.
func (c *Cache) InvalidateChannel(channel string) int {
	prefix := channel + "\x00"
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.m {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.m, k)
			n++
		}
	}
	return n
}

// Len returns the number of cached entries, expired included until swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Close stops the janitor.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, rec := range c.m {
				if now.After(rec.expireAt) {
					delete(c.m, k)
				}
			}
			c.mu.Unlock()
		}
	}
}

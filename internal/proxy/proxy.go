package proxy

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy/cache"
	"github.com/mzainuddin51/vscode/internal/proxy/correlate"
	"github.com/mzainuddin51/vscode/internal/shared/types"
	"github.com/mzainuddin51/vscode/internal/shared/utils"
)

var (
	// ErrNotFound covers every way a resource can fail to materialize:
	// the host answered missing, the cache lost a confirmed entry, or no
	// answer arrived before the caller's deadline. The webview sees one
	// generic not-found outcome for all of them.
	ErrNotFound = errors.New("resource not found")

	// ErrNotAllowed marks paths rejected by validation or the allowlist.
	ErrNotAllowed = errors.New("resource path not allowed")

	// ErrNoMapping means the host knows no origin mapping for a localhost
	// authority.
	ErrNoMapping = errors.New("no localhost mapping")
)

// Sender delivers an envelope to the host over the channel transport.
type Sender func(types.Envelope) error

// Options configures a Channel.
type Options struct {
	ResolveTimeout time.Duration
	Allowlist      *utils.Allowlist
	Cache          *cache.Cache
	Hasher         *utils.Hasher
	Logger         *logging.Logger
	Metrics        *monitoring.Metrics
}

// Channel proxies fetches for the webviews of one connected host. It owns
// two pending-request stores, one per round-trip kind, and never shares them
// with other channels.
type Channel struct {
	id        string
	send      Sender
	resources *correlate.Store[ResourceReply]
	origins   *correlate.Store[string]
	allow     *utils.Allowlist
	cache     *cache.Cache
	hasher    *utils.Hasher
	logger    *logging.Logger
	metrics   *monitoring.Metrics
}

// NewChannel creates a channel for one host connection.
func NewChannel(id string, send Sender, opts Options) *Channel {
	if opts.Hasher == nil {
		opts.Hasher = utils.DefaultHasher()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDefault()
	}
	if opts.Allowlist == nil {
		opts.Allowlist, _ = utils.NewAllowlist(nil)
	}

	c := &Channel{
		id:        id,
		send:      send,
		resources: correlate.NewWithTimeout[ResourceReply](opts.ResolveTimeout),
		origins:   correlate.NewWithTimeout[string](opts.ResolveTimeout),
		allow:     opts.Allowlist,
		cache:     opts.Cache,
		hasher:    opts.Hasher,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	c.resources.SetExpiryHook(func(id uint64) { c.expired("resource", id) })
	c.origins.SetExpiryHook(func(id uint64) { c.expired("localhost", id) })
	return c
}

// ID returns the channel id.
func (c *Channel) ID() string {
	return c.id
}

// Pending returns the number of outstanding requests on this channel.
func (c *Channel) Pending() int {
	return c.resources.Len() + c.origins.Len()
}

// Close drops all pending bookkeeping. Waiting callers are left to their own
// deadlines, the same as on resolve timeout.
func (c *Channel) Close() {
	c.resources.Close()
	c.origins.Close()
	if c.cache != nil {
		c.cache.InvalidateChannel(c.id)
	}
}

// FetchResource forwards a resource load to the host and waits for the
// correlated reply or ctx expiry. ifNoneMatch carries the webview's own
// conditional validator; when it is empty and the cache holds a validated
// copy, the cached etag is sent instead so the host can answer not-modified.
func (c *Channel) FetchResource(ctx context.Context, rawPath, query, ifNoneMatch string) (*Resource, error) {
	path, err := utils.NormalizeResourcePath(rawPath)
	if err != nil {
		return nil, ErrNotAllowed
	}
	if !c.allow.Allows(path) {
		c.logger.Warn("Resource path rejected by allowlist",
			zap.String("channel", c.id),
			zap.String("path", path),
		)
		return nil, ErrNotAllowed
	}

	var cached cache.Entry
	var haveCached bool
	if c.cache != nil {
		cached, haveCached = c.cache.Get(c.id, path)
	}
	clientConditional := ifNoneMatch != ""
	if !clientConditional && haveCached && cached.Etag != "" {
		ifNoneMatch = cached.Etag
	}

	id, future := c.resources.Create()
	c.pendingCreated()

	err = c.send(types.Envelope{
		Type:        types.MsgResource,
		ID:          id,
		Channel:     c.id,
		Path:        path,
		Query:       query,
		IfNoneMatch: ifNoneMatch,
	})
	if err != nil {
		// The send failed, so no response will ever arrive; the entry is
		// left to the resolve timeout.
		return nil, ErrNotFound
	}

	select {
	case reply := <-future:
		return c.onResourceReply(path, reply, cached, haveCached, clientConditional)
	case <-ctx.Done():
		return nil, ErrNotFound
	}
}

func (c *Channel) onResourceReply(path string, reply ResourceReply, cached cache.Entry, haveCached, clientConditional bool) (*Resource, error) {
	switch r := reply.(type) {
	case ReplyResponse:
		mime := r.Mime
		if mime == "" {
			mime = mimetype.Detect(r.Body).String()
		}
		etag := r.Etag
		if etag == "" {
			etag = c.hasher.Etag(r.Body)
		}
		if c.cache != nil {
			c.cache.Put(c.id, path, cache.Entry{Body: r.Body, Mime: mime, Etag: etag})
		}
		c.recordCacheLookup(false)
		return &Resource{Body: r.Body, Mime: mime, Etag: etag}, nil

	case ReplyNotModified:
		if clientConditional {
			// The host validated the webview's own copy. Any cached body
			// here may be an older revision, so it must not be served.
			if haveCached {
				if c.cache != nil {
					c.cache.Touch(c.id, path)
				}
				c.recordCacheLookup(true)
			}
			mime := r.Mime
			if mime == "" {
				mime = cached.Mime
			}
			return &Resource{Mime: mime, NotModified: true}, nil
		}
		if !haveCached {
			c.logger.Warn("Not-modified reply without cached content",
				zap.String("channel", c.id),
				zap.String("path", path),
			)
			return nil, ErrNotFound
		}
		if c.cache != nil {
			c.cache.Touch(c.id, path)
		}
		c.recordCacheLookup(true)
		mime := r.Mime
		if mime == "" {
			mime = cached.Mime
		}
		return &Resource{Body: cached.Body, Mime: mime, Etag: cached.Etag, FromCache: true}, nil

	case ReplyMissing:
		return nil, ErrNotFound

	default:
		return nil, ErrNotFound
	}
}

// ResolveLocalhost asks the host for the origin a localhost authority maps
// to. An empty mapped origin means the host knows no mapping.
func (c *Channel) ResolveLocalhost(ctx context.Context, origin string) (string, error) {
	id, future := c.origins.Create()
	c.pendingCreated()

	err := c.send(types.Envelope{
		Type:    types.MsgLocalhost,
		ID:      id,
		Channel: c.id,
		Origin:  origin,
	})
	if err != nil {
		return "", ErrNoMapping
	}

	select {
	case mapped := <-future:
		if mapped == "" {
			return "", ErrNoMapping
		}
		return mapped, nil
	case <-ctx.Done():
		return "", ErrNoMapping
	}
}

// ResolveResource settles a pending resource fetch. Late or unknown ids are
// logged and discarded.
func (c *Channel) ResolveResource(id uint64, reply ResourceReply) bool {
	ok := c.resources.Resolve(id, reply)
	c.resolved("resource", id, ok, outcomeOf(reply))
	return ok
}

// ResolveOrigin settles a pending localhost lookup.
func (c *Channel) ResolveOrigin(id uint64, origin string) bool {
	ok := c.origins.Resolve(id, origin)
	c.resolved("localhost", id, ok, "origin")
	return ok
}

func outcomeOf(reply ResourceReply) string {
	switch reply.(type) {
	case ReplyResponse:
		return "response"
	case ReplyNotModified:
		return "not-modified"
	case ReplyMissing:
		return "missing"
	default:
		return "unknown"
	}
}

func (c *Channel) pendingCreated() {
	if c.metrics != nil {
		c.metrics.IncRequestsPending()
	}
}

func (c *Channel) resolved(kind string, id uint64, ok bool, outcome string) {
	if !ok {
		c.logger.Warn("Response for unknown request id",
			zap.String("channel", c.id),
			zap.String("kind", kind),
			zap.Uint64("id", id),
		)
		if c.metrics != nil {
			c.metrics.RecordUnknownResponse()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.DecRequestsPending()
		c.metrics.RecordResolved(kind, outcome)
	}
}

func (c *Channel) expired(kind string, id uint64) {
	c.logger.Debug("Request dropped without response",
		zap.String("channel", c.id),
		zap.String("kind", kind),
		zap.Uint64("id", id),
	)
	if c.metrics != nil {
		c.metrics.DecRequestsPending()
		c.metrics.RecordExpired()
	}
}

func (c *Channel) recordCacheLookup(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.RecordCacheHit()
	} else {
		c.metrics.RecordCacheMiss()
	}
}

// Registry maps channel ids to live channels. Hosts register their channel
// ids on hello and are removed when the connection drops.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]*Channel)}
}

// Register adds a channel; the previous holder of the id, if any, is closed.
func (r *Registry) Register(c *Channel) {
	r.mu.Lock()
	prev := r.channels[c.id]
	r.channels[c.id] = c
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
}

// Unregister removes a channel if it is still the registered holder.
func (r *Registry) Unregister(c *Channel) {
	r.mu.Lock()
	if cur, ok := r.channels[c.id]; ok && cur == c {
		delete(r.channels, c.id)
	}
	r.mu.Unlock()

	c.Close()
}

// Get looks up a channel by id.
func (r *Registry) Get(id string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.channels[id]
	return c, ok
}

// Len returns the number of registered channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// IDs returns the registered channel ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.channels))
	for id := range r.channels {
		ids = append(ids, id)
	}
	return ids
}

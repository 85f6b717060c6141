package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy"
	"github.com/mzainuddin51/vscode/internal/proxy/probe"
	"github.com/mzainuddin51/vscode/internal/proxy/static"
	"github.com/mzainuddin51/vscode/internal/shared/utils"
)

// DefaultFetchTimeout bounds how long a webview request waits for the host.
// It is deliberately shorter than the correlator's resolve timeout: the
// webview gets its not-found answer first, the bookkeeping is reaped later.
const DefaultFetchTimeout = 10 * time.Second

// Handlers contains the webview-facing HTTP handlers
type Handlers struct {
	registry     *proxy.Registry
	fallback     *static.Store
	prober       *probe.Prober
	metrics      *monitoring.Metrics
	logger       *logging.Logger
	fetchTimeout time.Duration
}

// NewHandlers creates a new handler set
func NewHandlers(
	registry *proxy.Registry,
	fallback *static.Store,
	prober *probe.Prober,
	metrics *monitoring.Metrics,
	logger *logging.Logger,
	fetchTimeout time.Duration,
) *Handlers {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Handlers{
		registry:     registry,
		fallback:     fallback,
		prober:       prober,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: fetchTimeout,
	}
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Webview Content Proxy",
		"version": "0.2.0",
	})
}

// Health handles health checks
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"channels": h.registry.Len(),
	})
}

// Stats reports aggregate counters for dashboards
func (h *Handlers) Stats(c *gin.Context) {
	resp := gin.H{
		"proxy":           h.metrics.GetSnapshot(),
		"channels":        h.registry.IDs(),
		"fallback_assets": h.fallback.Len(),
	}
	if h.prober != nil {
		resp["probe_breaker"] = h.prober.BreakerState()
	}
	c.JSON(http.StatusOK, resp)
}

// Resource serves a proxied webview resource fetch.
//
// The wait is bounded by the request context plus the fetch timeout; if the
// host never answers, the webview gets a plain 404 (the correlation entry is
// cleaned up separately by the resolve timeout).
func (h *Handlers) Resource(c *gin.Context) {
	channelID := c.Param("channel")
	rawPath := strings.TrimPrefix(c.Param("path"), "/")
	ifNoneMatch := c.GetHeader("If-None-Match")

	ch, ok := h.registry.Get(channelID)
	if !ok {
		h.serveFallback(c, rawPath)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.fetchTimeout)
	defer cancel()

	res, err := ch.FetchResource(ctx, rawPath, c.Request.URL.RawQuery, ifNoneMatch)
	if err != nil {
		switch {
		case errors.Is(err, proxy.ErrNotAllowed):
			c.JSON(http.StatusForbidden, gin.H{"error": "resource path not allowed"})
		case errors.Is(err, proxy.ErrNotFound):
			h.serveFallback(c, rawPath)
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "resource fetch failed"})
		}
		return
	}

	// The webview already holds a current copy.
	if res.NotModified || (ifNoneMatch != "" && res.Etag == ifNoneMatch) {
		if res.Mime != "" {
			c.Header("Content-Type", res.Mime)
		}
		c.Status(http.StatusNotModified)
		return
	}

	if res.Etag != "" {
		c.Header("ETag", res.Etag)
	}
	writeBody(c, res.Mime, res.Body)
}

// serveFallback answers from the built-in asset index, or 404.
func (h *Handlers) serveFallback(c *gin.Context, rawPath string) {
	path, err := utils.NormalizeResourcePath(rawPath)
	if err == nil {
		if body, mime, readErr := h.fallback.Read(path); readErr == nil {
			writeBody(c, mime, body)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
}

// Localhost resolves a localhost authority through the owning channel and
// redirects the webview at the mapped origin.
func (h *Handlers) Localhost(c *gin.Context) {
	channelID := c.Query("channel")
	authority := c.Param("authority")
	path := c.Param("path")

	ch, ok := h.registry.Get(channelID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.fetchTimeout)
	defer cancel()

	origin := "http://" + authority
	mapped, err := ch.ResolveLocalhost(ctx, origin)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no mapping for " + authority})
		return
	}

	if h.prober != nil {
		if probeErr := h.prober.Check(ctx, mapped); probeErr != nil {
			// The mapping is authoritative; an unreachable origin is the
			// webview's problem to surface, ours to record.
			h.metrics.RecordProbeFailure()
			h.logger.Warn("Mapped origin failed probe",
				zap.String("origin", mapped),
				zap.Error(probeErr),
			)
		}
	}

	target := strings.TrimSuffix(mapped, "/") + path
	if q := forwardedQuery(c); q != "" {
		target += "?" + q
	}
	c.Redirect(http.StatusFound, target)
}

// forwardedQuery re-encodes the request query without the channel parameter,
// which is proxy routing state the target origin has no use for.
func forwardedQuery(c *gin.Context) string {
	q := c.Request.URL.Query()
	q.Del("channel")
	return q.Encode()
}

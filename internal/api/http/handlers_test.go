package http

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy"
	"github.com/mzainuddin51/vscode/internal/proxy/cache"
	"github.com/mzainuddin51/vscode/internal/proxy/static"
	"github.com/mzainuddin51/vscode/internal/shared/types"
)

// Prometheus collectors register globally, so the suite shares one instance.
var testMetrics = monitoring.NewMetrics()

func nopLogger() *logging.Logger {
	return &logging.Logger{Logger: zap.NewNop()}
}

// hostStub plays the host side of a channel, answering every forwarded
// request with a canned reply.
type hostStub struct {
	channel *proxy.Channel
	reply   func(env types.Envelope)
}

func (h *hostStub) send(env types.Envelope) error {
	if h.reply != nil {
		h.reply(env)
	}
	return nil
}

type fixture struct {
	router   *gin.Engine
	registry *proxy.Registry
	host     *hostStub
	cache    *cache.Cache
}

func newFixture(t *testing.T, fallbackRoot string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	contentCache := cache.New(time.Minute)
	t.Cleanup(contentCache.Close)

	registry := proxy.NewRegistry()
	host := &hostStub{}
	ch := proxy.NewChannel("chan_test", host.send, proxy.Options{
		ResolveTimeout: time.Second,
		Cache:          contentCache,
		Logger:         nopLogger(),
	})
	host.channel = ch
	registry.Register(ch)
	t.Cleanup(func() { registry.Unregister(ch) })

	fallback, err := static.New(fallbackRoot)
	require.NoError(t, err)

	handlers := NewHandlers(registry, fallback, nil, testMetrics, nopLogger(), 200*time.Millisecond)

	router := gin.New()
	router.GET("/health", handlers.Health)
	router.GET("/stats", handlers.Stats)
	router.GET("/vscode-resource/:channel/*path", handlers.Resource)
	router.GET("/localhost/:authority/*path", handlers.Localhost)

	return &fixture{router: router, registry: registry, host: host, cache: contentCache}
}

func (f *fixture) get(path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "")

	w := f.get("/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)
	assert.Contains(t, w.Body.String(), `"channels":1`)
}

func TestStats(t *testing.T) {
	f := newFixture(t, "")

	w := f.get("/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chan_test")
	assert.Contains(t, w.Body.String(), "fallback_assets")
}

func TestResource(t *testing.T) {
	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		assert.Equal(t, types.MsgResource, env.Type)
		assert.Equal(t, "chan_test", env.Channel)
		assert.Equal(t, "app/index.html", env.Path)
		f.host.channel.ResolveResource(env.ID, proxy.ReplyResponse{
			Body: []byte("<html></html>"),
			Mime: "text/html",
			Etag: `W/"v1"`,
		})
	}

	w := f.get("/vscode-resource/chan_test/app/index.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html></html>", w.Body.String())
	assert.Equal(t, "text/html", w.Header().Get("Content-Type"))
	assert.Equal(t, `W/"v1"`, w.Header().Get("ETag"))
}

func TestResourceNotModified(t *testing.T) {
	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		assert.Equal(t, `W/"v1"`, env.IfNoneMatch)
		f.host.channel.ResolveResource(env.ID, proxy.ReplyNotModified{Mime: "text/css"})
	}

	w := f.get("/vscode-resource/chan_test/style.css", map[string]string{
		"If-None-Match": `W/"v1"`,
	})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestResourceNotModifiedWithStaleCache(t *testing.T) {
	f := newFixture(t, "")

	// The proxy cache holds an older revision than the webview's copy; the
	// host confirming the webview's validator must yield 304, not the stale
	// cached body.
	f.cache.Put("chan_test", "app.js", cache.Entry{
		Body: []byte("old-body"),
		Mime: "application/javascript",
		Etag: `W/"v1"`,
	})
	f.host.reply = func(env types.Envelope) {
		f.host.channel.ResolveResource(env.ID, proxy.ReplyNotModified{})
	}

	w := f.get("/vscode-resource/chan_test/app.js", map[string]string{
		"If-None-Match": `W/"v2"`,
	})
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestResourceMissing(t *testing.T) {
	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		f.host.channel.ResolveResource(env.ID, proxy.ReplyMissing{})
	}

	w := f.get("/vscode-resource/chan_test/gone.js", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestResourceHostSilent(t *testing.T) {
	f := newFixture(t, "")
	// No reply: the fetch timeout bounds the wait.

	start := time.Now()
	w := f.get("/vscode-resource/chan_test/slow.js", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestResourceTraversalRejected(t *testing.T) {
	f := newFixture(t, "")

	w := f.get("/vscode-resource/chan_test/..%2f..%2fetc%2fpasswd", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestResourceUnknownChannelFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "offline.html"), []byte("<p>offline</p>"), 0o644))

	f := newFixture(t, dir)

	w := f.get("/vscode-resource/chan_unknown/offline.html", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>offline</p>", w.Body.String())

	w = f.get("/vscode-resource/chan_unknown/nope.html", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestResourceGzip(t *testing.T) {
	big := strings.Repeat("const x = 1;\n", 200)

	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		f.host.channel.ResolveResource(env.ID, proxy.ReplyResponse{
			Body: []byte(big),
			Mime: "application/javascript",
		})
	}

	w := f.get("/vscode-resource/chan_test/bundle.js", map[string]string{
		"Accept-Encoding": "gzip",
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))

	gz, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	decoded, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, big, string(decoded))
}

func TestLocalhostRedirect(t *testing.T) {
	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		assert.Equal(t, types.MsgLocalhost, env.Type)
		assert.Equal(t, "http://localhost:3000", env.Origin)
		f.host.channel.ResolveOrigin(env.ID, "http://127.0.0.1:3000")
	}

	w := f.get("/localhost/localhost:3000/app/main.js?channel=chan_test", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://127.0.0.1:3000/app/main.js", w.Header().Get("Location"))
}

func TestLocalhostNoMapping(t *testing.T) {
	f := newFixture(t, "")
	f.host.reply = func(env types.Envelope) {
		f.host.channel.ResolveOrigin(env.ID, "")
	}

	w := f.get("/localhost/localhost:9999/?channel=chan_test", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLocalhostUnknownChannel(t *testing.T) {
	f := newFixture(t, "")

	w := f.get("/localhost/localhost:3000/?channel=chan_other", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown channel")
}

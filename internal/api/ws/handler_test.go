package ws

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy"
	"github.com/mzainuddin51/vscode/internal/shared/id"
	"github.com/mzainuddin51/vscode/internal/shared/types"
)

// Prometheus collectors register globally, so the suite shares one instance.
var testMetrics = monitoring.NewMetrics()

func nopLogger() *logging.Logger {
	return &logging.Logger{Logger: zap.NewNop()}
}

func newTestServer(t *testing.T) (*httptest.Server, *proxy.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := proxy.NewRegistry()
	handler := NewHandler(Config{
		Registry:       registry,
		ResolveTimeout: time.Second,
		Logger:         nopLogger(),
		Metrics:        testMetrics,
	})

	router := gin.New()
	router.GET("/channel", handler.HandleConnection)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/channel"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) types.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var env types.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHandshake(t *testing.T) {
	srv, registry := newTestServer(t)
	conn := dial(t, srv)

	chanID := id.NewChannelID().String()
	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion,
		Channels: []string{chanID},
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, types.MsgConnected, env.Type)
	assert.NotEmpty(t, env.ConnectionID)

	require.Eventually(t, func() bool {
		_, ok := registry.Get(chanID)
		return ok
	}, time.Second, 10*time.Millisecond)

	// Disconnect tears the registration down.
	conn.Close()
	require.Eventually(t, func() bool {
		return registry.Len() == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHandshakeVersionMismatch(t *testing.T) {
	srv, registry := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion + 1,
		Channels: []string{id.NewChannelID().String()},
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, types.MsgError, env.Type)
	assert.Contains(t, env.Message, "protocol version")
	assert.Equal(t, 0, registry.Len())
}

func TestHandshakeRejectsMalformedChannelID(t *testing.T) {
	srv, registry := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion,
		Channels: []string{"not-a-channel-id"},
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, types.MsgError, env.Type)
	assert.Contains(t, env.Message, "malformed channel id")
	assert.Equal(t, 0, registry.Len())
}

func TestHandshakeRequiresChannels(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:    types.MsgHello,
		Version: types.ProtocolVersion,
	}))

	env := readEnvelope(t, conn)
	assert.Equal(t, types.MsgError, env.Type)
}

func TestResourceRoundTrip(t *testing.T) {
	srv, registry := newTestServer(t)
	conn := dial(t, srv)

	chanID := id.NewChannelID().String()
	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion,
		Channels: []string{chanID},
	}))
	require.Equal(t, types.MsgConnected, readEnvelope(t, conn).Type)

	ch, ok := registry.Get(chanID)
	require.True(t, ok)

	// Play the host: answer the forwarded fetch over the wire.
	go func() {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		assert.Equal(t, types.MsgResource, env.Type)
		assert.Equal(t, chanID, env.Channel)
		assert.Equal(t, "media/icon.svg", env.Path)

		conn.WriteJSON(types.Envelope{
			Type:    types.MsgResourceResponse,
			Channel: env.Channel,
			ID:      env.ID,
			Status:  types.StatusResponse,
			Body:    base64.StdEncoding.EncodeToString([]byte("<svg/>")),
			Mime:    "image/svg+xml",
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res, err := ch.FetchResource(ctx, "media/icon.svg", "", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("<svg/>"), res.Body)
	assert.Equal(t, "image/svg+xml", res.Mime)
}

func TestLocalhostRoundTrip(t *testing.T) {
	srv, registry := newTestServer(t)
	conn := dial(t, srv)

	chanID := id.NewChannelID().String()
	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion,
		Channels: []string{chanID},
	}))
	require.Equal(t, types.MsgConnected, readEnvelope(t, conn).Type)

	ch, ok := registry.Get(chanID)
	require.True(t, ok)

	go func() {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env types.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		assert.Equal(t, types.MsgLocalhost, env.Type)

		conn.WriteJSON(types.Envelope{
			Type:    types.MsgLocalhostResponse,
			Channel: env.Channel,
			ID:      env.ID,
			Origin:  "http://127.0.0.1:8080",
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	mapped, err := ch.ResolveLocalhost(ctx, "http://localhost:8080")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", mapped)
}

func TestUnknownMessageType(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	chanID := id.NewChannelID().String()
	require.NoError(t, conn.WriteJSON(types.Envelope{
		Type:     types.MsgHello,
		Version:  types.ProtocolVersion,
		Channels: []string{chanID},
	}))
	require.Equal(t, types.MsgConnected, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(types.Envelope{Type: "bogus"}))

	env := readEnvelope(t, conn)
	assert.Equal(t, types.MsgError, env.Type)
	assert.Contains(t, env.Message, "unknown message type")
}

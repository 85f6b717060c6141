package ws

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mzainuddin51/vscode/internal/infrastructure/logging"
	"github.com/mzainuddin51/vscode/internal/infrastructure/monitoring"
	"github.com/mzainuddin51/vscode/internal/proxy"
	"github.com/mzainuddin51/vscode/internal/proxy/cache"
	"github.com/mzainuddin51/vscode/internal/shared/id"
	"github.com/mzainuddin51/vscode/internal/shared/types"
	"github.com/mzainuddin51/vscode/internal/shared/utils"
)

const (
	writeTimeout   = 10 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 90 * time.Second
	maxMessageSize = 32 << 20 // resource bodies travel base64-encoded
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin: func(r *http.Request) bool {
		return true // host connections are local; origin enforcement is upstream
	},
}

// Config carries the collaborators a host connection needs.
type Config struct {
	Registry       *proxy.Registry
	Cache          *cache.Cache
	Allowlist      *utils.Allowlist
	ResolveTimeout time.Duration
	Logger         *logging.Logger
	Metrics        *monitoring.Metrics
}

// Handler manages host WebSocket connections
type Handler struct {
	cfg Config
}

// NewHandler creates a new host channel handler
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// hostConn is one connected host with its registered channels.
type hostConn struct {
	id       string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	channels []*proxy.Channel
	logger   *logging.Logger
	metrics  *monitoring.Metrics
}

// HandleConnection upgrades the request and runs the channel protocol.
// The first message must be a hello with a matching protocol version and at
// least one channel id; everything after that is response dispatch.
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.cfg.Logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	hc := &hostConn{
		id:      uuid.NewString(),
		conn:    conn,
		logger:  h.cfg.Logger,
		metrics: h.cfg.Metrics,
	}

	hello, err := hc.readEnvelope()
	if err != nil || hello.Type != types.MsgHello {
		hc.sendError("expected hello")
		return
	}
	if hello.Version != types.ProtocolVersion {
		h.cfg.Logger.Warn("Host protocol version mismatch",
			zap.Int("got", hello.Version),
			zap.Int("want", types.ProtocolVersion),
		)
		hc.sendError("unsupported protocol version")
		return
	}
	if len(hello.Channels) == 0 {
		hc.sendError("hello must name at least one channel")
		return
	}
	for _, chanID := range hello.Channels {
		if !id.ChannelID(chanID).Valid() {
			hc.sendError("malformed channel id: " + chanID)
			return
		}
	}

	for _, chanID := range hello.Channels {
		ch := proxy.NewChannel(chanID, hc.send, proxy.Options{
			ResolveTimeout: h.cfg.ResolveTimeout,
			Allowlist:      h.cfg.Allowlist,
			Cache:          h.cfg.Cache,
			Logger:         h.cfg.Logger,
			Metrics:        h.cfg.Metrics,
		})
		h.cfg.Registry.Register(ch)
		hc.channels = append(hc.channels, ch)
	}
	defer func() {
		for _, ch := range hc.channels {
			h.cfg.Registry.Unregister(ch)
		}
	}()

	h.cfg.Metrics.IncChannelConnections()
	defer h.cfg.Metrics.DecChannelConnections()

	h.cfg.Logger.Info("Host connected",
		zap.String("connection", hc.id),
		zap.Strings("channels", hello.Channels),
	)

	if err := hc.send(types.Envelope{Type: types.MsgConnected, ConnectionID: hc.id}); err != nil {
		return
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go hc.pingLoop(stopPing)

	h.readLoop(hc)

	h.cfg.Logger.Info("Host disconnected", zap.String("connection", hc.id))
}

func (h *Handler) readLoop(hc *hostConn) {
	for {
		env, err := hc.readEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.cfg.Logger.Warn("Host read error", zap.Error(err))
			}
			return
		}

		h.cfg.Metrics.RecordChannelMessage("in", env.Type)

		switch env.Type {
		case types.MsgResourceResponse:
			h.dispatchResource(hc, env)
		case types.MsgLocalhostResponse:
			h.dispatchOrigin(hc, env)
		case types.MsgPong:
			// read deadline already extended by readEnvelope
		default:
			hc.sendError("unknown message type: " + env.Type)
		}
	}
}

func (h *Handler) dispatchResource(hc *hostConn, env types.Envelope) {
	ch, ok := h.cfg.Registry.Get(env.Channel)
	if !ok {
		h.cfg.Logger.Warn("Response for unknown channel",
			zap.String("channel", env.Channel),
			zap.Uint64("id", env.ID),
		)
		return
	}

	reply, err := replyFromEnvelope(env)
	if err != nil {
		h.cfg.Logger.Warn("Malformed resource response",
			zap.String("channel", env.Channel),
			zap.Uint64("id", env.ID),
			zap.Error(err),
		)
		return
	}

	// A false return is a late or spurious response; log-and-discard is
	// done inside the channel.
	ch.ResolveResource(env.ID, reply)
}

func (h *Handler) dispatchOrigin(hc *hostConn, env types.Envelope) {
	ch, ok := h.cfg.Registry.Get(env.Channel)
	if !ok {
		h.cfg.Logger.Warn("Response for unknown channel",
			zap.String("channel", env.Channel),
			zap.Uint64("id", env.ID),
		)
		return
	}
	ch.ResolveOrigin(env.ID, env.Origin)
}

// replyFromEnvelope maps the wire status onto the tagged reply variants.
func replyFromEnvelope(env types.Envelope) (proxy.ResourceReply, error) {
	switch env.Status {
	case types.StatusResponse:
		body, err := base64.StdEncoding.DecodeString(env.Body)
		if err != nil {
			return nil, err
		}
		return proxy.ReplyResponse{Body: body, Mime: env.Mime, Etag: env.Etag}, nil
	case types.StatusNotModified:
		return proxy.ReplyNotModified{Mime: env.Mime}, nil
	case types.StatusMissing, "":
		return proxy.ReplyMissing{}, nil
	default:
		return proxy.ReplyMissing{}, nil
	}
}

func (hc *hostConn) readEnvelope() (types.Envelope, error) {
	hc.conn.SetReadDeadline(time.Now().Add(pongWait))

	var env types.Envelope
	_, data, err := hc.conn.ReadMessage()
	if err != nil {
		return env, err
	}
	if err := sonic.Unmarshal(data, &env); err != nil {
		return env, err
	}
	return env, nil
}

func (hc *hostConn) send(env types.Envelope) error {
	data, err := sonic.Marshal(env)
	if err != nil {
		return err
	}

	hc.writeMu.Lock()
	defer hc.writeMu.Unlock()

	hc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := hc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if hc.metrics != nil {
		hc.metrics.RecordChannelMessage("out", env.Type)
	}
	return nil
}

func (hc *hostConn) sendError(msg string) {
	hc.send(types.Envelope{Type: types.MsgError, Message: msg})
}

func (hc *hostConn) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := hc.send(types.Envelope{Type: types.MsgPing}); err != nil {
				return
			}
		}
	}
}

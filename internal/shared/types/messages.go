package types

// ProtocolVersion is the channel protocol version. The host announces its
// version in the hello message; a mismatch closes the connection.
const ProtocolVersion = 4

// Message types sent by the host.
const (
	MsgHello             = "hello"
	MsgResourceResponse  = "resource-response"
	MsgLocalhostResponse = "localhost-response"
	MsgPong              = "pong"
)

// Message types sent by the service.
const (
	MsgConnected = "connected"
	MsgResource  = "resource"
	MsgLocalhost = "localhost"
	MsgPing      = "ping"
	MsgError     = "error"
)

// Resource response status values.
const (
	StatusResponse    = "response"
	StatusNotModified = "not-modified"
	StatusMissing     = "missing"
)

// Envelope is the outer shape of every channel message; Type selects which
// of the remaining fields are meaningful.
type Envelope struct {
	Type string `json:"type"`

	// hello
	Version  int      `json:"version,omitempty"`
	Channels []string `json:"channels,omitempty"`

	// resource / localhost round-trips
	ID          uint64 `json:"id,omitempty"`
	Channel     string `json:"channel,omitempty"`
	Path        string `json:"path,omitempty"`
	Query       string `json:"query,omitempty"`
	IfNoneMatch string `json:"if_none_match,omitempty"`

	// resource-response
	Status string `json:"status,omitempty"`
	Body   string `json:"body,omitempty"` // base64
	Mime   string `json:"mime,omitempty"`
	Etag   string `json:"etag,omitempty"`

	// localhost / localhost-response
	Origin string `json:"origin,omitempty"`

	// connected / error
	ConnectionID string `json:"connection_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// Package types defines the channel protocol shared between the proxy and
// connected hosts.
//
// Message Types (Host → Service):
//   - hello: version handshake plus the channel ids the host serves
//   - resource-response: answer to a forwarded resource fetch
//   - localhost-response: answer to a localhost origin lookup
//   - pong: keep-alive reply
//
// Message Types (Service → Host):
//   - connected: handshake acknowledgement with the connection id
//   - resource: forwarded resource fetch carrying a request id
//   - localhost: origin lookup carrying a request id
//   - ping: keep-alive probe
//   - error: protocol error before close
//
// Every round-trip message embeds the request id allocated by the
// pending-request store; the host echoes it back unchanged.
package types

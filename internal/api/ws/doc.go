// Package ws runs the host side of the channel protocol.
//
// A host connects once per window, announces the protocol version and the
// webview channels it serves, and then answers the resource and localhost
// messages the proxy forwards to it. Responses echo the request id allocated
// by the pending-request store; ids the store no longer tracks are logged
// and dropped.
//
// Message Types (Host → Service):
//   - hello: version handshake plus channel ids
//   - resource-response: resource bytes, not-modified, or missing
//   - localhost-response: mapped origin or empty
//   - pong: keep-alive reply
//
// Message Types (Service → Host):
//   - connected: handshake acknowledgement
//   - resource, localhost: forwarded requests
//   - ping: keep-alive probe
//   - error: protocol violation before close
//
// Example Usage:
//
//	handler := ws.NewHandler(ws.Config{Registry: registry, ...})
//	router.GET("/channel", handler.HandleConnection)
package ws

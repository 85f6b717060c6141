// Package proxy forwards webview fetches to their owning host and correlates
// the replies.
//
// Each connected host gets one Channel per webview channel id. A Channel
// owns two pending-request stores (resource fetches and localhost origin
// lookups), the per-channel slice of the content cache, and the send side of
// the host connection. The Registry maps channel ids to live channels for
// the HTTP handlers.
//
// Resource flow:
//  1. Webview requests a path; the path is normalized and allowlist-checked
//  2. A request id is allocated and the fetch is forwarded to the host
//  3. The host answers response, not-modified, or missing (tagged variants)
//  4. Content replies are cached with an etag for later revalidation
//  5. No answer before the caller's deadline reads as a generic not-found
//
// Localhost flow mirrors it with an origin string payload and ends in a
// redirect issued by the HTTP layer.
package proxy

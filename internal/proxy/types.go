package proxy

// ResourceReply is the tagged result of a forwarded resource fetch. Hosts
// answer with exactly one of the three cases; dispatch is by type switch,
// never by field sniffing.
type ResourceReply interface {
	isResourceReply()
}

// ReplyResponse carries fresh resource content.
type ReplyResponse struct {
	Body []byte
	Mime string
	Etag string
}

// ReplyNotModified confirms the proxy's cached copy is still current.
type ReplyNotModified struct {
	Mime string
}

// ReplyMissing states the host has no such resource.
type ReplyMissing struct{}

func (ReplyResponse) isResourceReply()    {}
func (ReplyNotModified) isResourceReply() {}
func (ReplyMissing) isResourceReply()     {}

// Resource is the proxy's answer to the webview-facing handler.
type Resource struct {
	Body []byte
	Mime string
	Etag string

	// FromCache is set when the body was served from the content cache
	// after a not-modified confirmation.
	FromCache bool

	// NotModified is set when the host confirmed the webview's own
	// validator; no body is carried and the handler answers 304.
	NotModified bool
}

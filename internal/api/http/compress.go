package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// gzipThreshold skips compression for bodies too small to benefit.
const gzipThreshold = 1 << 10

// compressibleMimes lists prefixes worth compressing; media formats carry
// their own compression.
var compressibleMimes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/xml",
	"image/svg",
	"application/wasm",
}

func compressible(mime string) bool {
	for _, prefix := range compressibleMimes {
		if strings.HasPrefix(mime, prefix) {
			return true
		}
	}
	return false
}

// writeBody sends a resource body, gzip-compressed when the client accepts
// it and the content is worth compressing.
func writeBody(c *gin.Context, mime string, body []byte) {
	if mime == "" {
		mime = "application/octet-stream"
	}

	acceptsGzip := strings.Contains(c.GetHeader("Accept-Encoding"), "gzip")
	if !acceptsGzip || len(body) < gzipThreshold || !compressible(mime) {
		c.Data(http.StatusOK, mime, body)
		return
	}

	c.Header("Content-Encoding", "gzip")
	c.Header("Vary", "Accept-Encoding")
	c.Header("Content-Type", mime)
	c.Status(http.StatusOK)

	gz := gzip.NewWriter(c.Writer)
	if _, err := gz.Write(body); err != nil {
		c.Error(err)
		return
	}
	if err := gz.Close(); err != nil {
		c.Error(err)
	}
}

package middleware

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"

	core "github.com/voltframework/volt"
)

// compressMinSize skips compression for bodies where the gzip header
// overhead outweighs the gain.
const compressMinSize = 512

// Compress returns a post-handler gzip-compressing buffered response
// bodies when the client sent Accept-Encoding: gzip. Stream and
// chunked responses pass through untouched.
//
//	app.UsePost(middleware.Compress(gzip.DefaultCompression))
func Compress(level int) core.RequestHandler {
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return core.HandlerFunc(func(c *core.Context) *core.Response {
		CompressResponse(c, c.Response(), level)
		return nil
	})
}

// CompressResponse compresses one response in place when eligible:
// gzip accepted, buffered content of a known length, large enough,
// not already encoded.
func CompressResponse(c *core.Context, res *core.Response, level int) {
	if res == nil || res.Content == nil || res.Chunked || res.HasHeader("Content-Encoding") {
		return
	}
	if !strings.Contains(c.Header("Accept-Encoding"), "gzip") {
		return
	}

	length := res.ContentLength()
	if length == core.LengthUnknown || length < compressMinSize {
		return
	}

	var raw bytes.Buffer
	if _, err := res.Content.WriteTo(&raw); err != nil {
		return
	}

	rawLen := raw.Len()

	var compressed bytes.Buffer
	zw, err := gzip.NewWriterLevel(&compressed, level)
	if err != nil {
		return
	}
	if _, err := io.Copy(zw, &raw); err != nil {
		zw.Close()
		return
	}
	if err := zw.Close(); err != nil {
		return
	}
	// A grown body is not worth the encoding header.
	if compressed.Len() >= rawLen {
		return
	}

	contentType := res.Header("Content-Type")
	if contentType == "" {
		contentType = res.Content.ContentType()
	}
	res.WithContent(core.BytesContent{Data: compressed.Bytes(), Type: contentType})
	_ = res.AddHeader("Content-Encoding", "gzip")
	_ = res.AddHeader("Vary", "Accept-Encoding")
}

package wire

import (
	"io"
	"net/url"
)

// continueBytes is the interim response written for Expect: 100-continue.
var continueBytes = []byte("HTTP/1.1 100 Continue\r\n\r\n")

// Request represents an HTTP/1.1 request.
// Designed for zero-allocation parsing and pooling.
//
// CRITICAL: All byte slices (methodBytes, pathBytes, queryBytes, protoBytes,
// hostBytes, upgradeBytes) are zero-copy references into the request buffer.
// They are only valid during the request lifetime. Do NOT store these slices
// beyond the handler execution or use them after the request is returned to
// the pool.
//
// For safe string access that persists, use Method(), Path(), etc. which
// return strings (1 allocation each, but safe to store).
type Request struct {
	// Method as numeric ID for O(1) switching
	// Use MethodString() to get the string representation
	MethodID uint8

	// Request-Line components (zero-copy slices into buffer)
	// WARNING: These slices are only valid during request lifetime
	// They reference the internal buffer which is pooled and reused
	methodBytes []byte // e.g., "GET"
	pathBytes   []byte // e.g., "/api/users"
	queryBytes  []byte // e.g., "id=123&name=foo" (without '?')
	protoBytes  []byte // e.g., "HTTP/1.1"

	// Special headers captured during parse (zero-copy slices)
	hostBytes    []byte // Host header value
	upgradeBytes []byte // Upgrade header value, nil when absent

	// Parsed URL (lazy allocation)
	// Only allocated if ParsedURL() is called
	// Use PathBytes() to avoid this allocation
	pathParsed *url.URL

	// Headers (arena-backed; capacity is kept across pooled reuse).
	// Chunked trailer fields are appended here after the final chunk.
	Header Header

	// Body reader
	// nil if no body present
	// Length-bounded for Content-Length, de-framed for chunked.
	// The reader writes a pending 100 Continue lazily on first Read.
	Body io.Reader

	// Protocol information
	Proto      string // Always "HTTP/1.1" for this engine
	ProtoMajor int    // Always 1
	ProtoMinor int    // Always 1

	// Content information
	ContentLength int64 // declared Content-Length; 0 when absent (chunked bodies included)

	// Transfer encoding
	// nil for identity encoding
	// ["chunked"] for chunked encoding
	TransferEncoding []string

	// Connection control
	// true if "Connection: close" header present
	Close bool

	// Expect100 is true when the request carried Expect: 100-continue.
	Expect100 bool

	// RemoteAddr is the network address of the client
	RemoteAddr string

	// chunked is the underlying chunked reader when the body is
	// chunk-framed; used to observe full-drain for keep-alive.
	chunked *ChunkedReader

	// continueW receives the interim 100 Continue line; set by the
	// connection loop before the handler runs.
	continueW    io.Writer
	continueSent bool

	// bodyRead counts payload bytes handed to the application.
	bodyRead int64

	// Internal buffer reference (for zero-copy safety)
	// This buffer is pooled and will be reused after request completes
	// All zero-copy slices reference this buffer
	buf []byte
}

// Method returns the HTTP method as a string.
// Uses pre-compiled constants for zero allocations.
//
// Allocation behavior: 0 allocs/op
func (r *Request) Method() string {
	return MethodString(r.MethodID)
}

// MethodBytes returns the HTTP method as a byte slice.
// This is a zero-copy reference into the request buffer.
// WARNING: Only valid during request lifetime.
func (r *Request) MethodBytes() []byte {
	return r.methodBytes
}

// Path returns the request path as a string.
// For zero-allocation access, use PathBytes().
//
// Allocation behavior: 1 alloc/op
func (r *Request) Path() string {
	return string(r.pathBytes)
}

// PathBytes returns the request path as a byte slice.
// WARNING: Only valid during request lifetime.
func (r *Request) PathBytes() []byte {
	return r.pathBytes
}

// Query returns the query string as a string.
//
// Allocation behavior: 1 alloc/op
func (r *Request) Query() string {
	return string(r.queryBytes)
}

// QueryBytes returns the query string as a byte slice (without the '?').
// WARNING: Only valid during request lifetime.
func (r *Request) QueryBytes() []byte {
	return r.queryBytes
}

// Host returns the Host header value captured during parse.
//
// Allocation behavior: 1 alloc/op
func (r *Request) Host() string {
	return string(r.hostBytes)
}

// HostBytes returns the Host header value as a zero-copy slice.
func (r *Request) HostBytes() []byte {
	return r.hostBytes
}

// IsUpgrade reports whether the request asks for the given protocol
// upgrade (e.g. "websocket"), case-insensitively.
func (r *Request) IsUpgrade(proto []byte) bool {
	return r.upgradeBytes != nil && bytesEqualCaseInsensitive(r.upgradeBytes, proto)
}

// UpgradeBytes returns the raw Upgrade header value, nil when absent.
func (r *Request) UpgradeBytes() []byte {
	return r.upgradeBytes
}

// ParsedURL returns the parsed URL.
// This is lazily allocated only when called.
// The result is cached for subsequent calls.
func (r *Request) ParsedURL() (*url.URL, error) {
	if r.pathParsed == nil {
		var urlStr string
		if len(r.queryBytes) > 0 {
			urlStr = string(r.pathBytes) + "?" + string(r.queryBytes)
		} else {
			urlStr = string(r.pathBytes)
		}

		var err error
		r.pathParsed, err = url.Parse(urlStr)
		if err != nil {
			return nil, err
		}
	}
	return r.pathParsed, nil
}

// GetHeader retrieves a header value by name (case-insensitive).
// Returns nil if not found.
func (r *Request) GetHeader(name []byte) []byte {
	return r.Header.Get(name)
}

// GetHeaderString retrieves a header value as a string (case-insensitive).
// Returns empty string if not found.
func (r *Request) GetHeaderString(name string) string {
	return r.Header.GetString([]byte(name))
}

// HasHeader checks if a header exists (case-insensitive).
func (r *Request) HasHeader(name []byte) bool {
	return r.Header.Has(name)
}

// IsGET returns true if the request method is GET.
func (r *Request) IsGET() bool { return r.MethodID == MethodGET }

// IsPOST returns true if the request method is POST.
func (r *Request) IsPOST() bool { return r.MethodID == MethodPOST }

// IsPUT returns true if the request method is PUT.
func (r *Request) IsPUT() bool { return r.MethodID == MethodPUT }

// IsDELETE returns true if the request method is DELETE.
func (r *Request) IsDELETE() bool { return r.MethodID == MethodDELETE }

// IsPATCH returns true if the request method is PATCH.
func (r *Request) IsPATCH() bool { return r.MethodID == MethodPATCH }

// IsHEAD returns true if the request method is HEAD.
func (r *Request) IsHEAD() bool { return r.MethodID == MethodHEAD }

// IsOPTIONS returns true if the request method is OPTIONS.
func (r *Request) IsOPTIONS() bool { return r.MethodID == MethodOPTIONS }

// HasBody returns true if the request has a body.
// Checks for Content-Length > 0 or Transfer-Encoding: chunked.
func (r *Request) HasBody() bool {
	return r.ContentLength > 0 || len(r.TransferEncoding) > 0
}

// IsChunked returns true if the request uses chunked transfer encoding.
func (r *Request) IsChunked() bool {
	if len(r.TransferEncoding) == 0 {
		return false
	}
	// Check last encoding (per RFC 7230, chunked must be last)
	lastEncoding := r.TransferEncoding[len(r.TransferEncoding)-1]
	return lastEncoding == "chunked"
}

// ShouldClose returns true if the connection should be closed after this request.
func (r *Request) ShouldClose() bool {
	return r.Close
}

// SetContinueWriter arms the lazy Expect: 100-continue response. The
// interim line is written to w by the first Body.Read, never earlier.
// Routes that reject the request before reading the body therefore
// never emit it.
func (r *Request) SetContinueWriter(w io.Writer) {
	r.continueW = w
}

// WriteContinue writes the interim 100 Continue response. Idempotent;
// a no-op when the request did not carry Expect: 100-continue or no
// writer is armed.
func (r *Request) WriteContinue() error {
	if !r.Expect100 || r.continueSent || r.continueW == nil {
		return nil
	}
	r.continueSent = true
	if _, err := r.continueW.Write(continueBytes); err != nil {
		return err
	}
	if f, ok := r.continueW.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// ContinueSent reports whether the interim 100 Continue went out.
func (r *Request) ContinueSent() bool {
	return r.continueSent
}

// wrapBody wraps the framed body reader with the lazy-continue and
// byte-accounting shim.
func (r *Request) wrapBody(inner io.Reader) io.Reader {
	return &bodyReader{req: r, inner: inner}
}

// bodyReader defers the 100 Continue interim response until the
// application actually reads, and counts payload bytes for the
// keep-alive drain decision.
type bodyReader struct {
	req   *Request
	inner io.Reader
}

func (b *bodyReader) Read(p []byte) (int, error) {
	if err := b.req.WriteContinue(); err != nil {
		return 0, err
	}
	n, err := b.inner.Read(p)
	b.req.bodyRead += int64(n)
	return n, err
}

// BodyFullyRead reports whether the request body was consumed to its
// framed end. An empty body is trivially fully read.
func (r *Request) BodyFullyRead() bool {
	switch {
	case r.chunked != nil:
		return r.chunked.Done()
	case r.ContentLength > 0:
		return r.bodyRead >= r.ContentLength
	default:
		return true
	}
}

// BodyBytesRead returns the number of payload bytes the application
// consumed, for access-log accounting.
func (r *Request) BodyBytesRead() int64 {
	return r.bodyRead
}

// Drain consumes and discards the unread remainder of the body, up to
// max bytes (0 = unlimited). Used to keep a length-framed connection
// reusable when the handler returned before reading the body.
//
// An armed 100-continue is sent first: the client is waiting for it
// before transmitting the body we are about to discard.
func (r *Request) Drain(max int64) error {
	if r.Body == nil {
		return nil
	}
	var src io.Reader = r.Body
	if max > 0 {
		src = io.LimitReader(r.Body, max)
	}
	_, err := io.Copy(io.Discard, src)
	if err == nil && max > 0 && !r.BodyFullyRead() {
		return ErrPayloadTooLarge
	}
	return err
}

// Reset clears the request for reuse (when returning to pool).
// All fields are reset to zero values.
//
// Allocation behavior: 0 allocs/op
func (r *Request) Reset() {
	r.MethodID = 0
	r.methodBytes = nil
	r.pathBytes = nil
	r.queryBytes = nil
	r.protoBytes = nil
	r.hostBytes = nil
	r.upgradeBytes = nil
	r.pathParsed = nil
	r.Header.Reset()
	r.Body = nil
	r.Proto = ""
	r.ProtoMajor = 0
	r.ProtoMinor = 0
	r.ContentLength = 0
	r.TransferEncoding = nil
	r.Close = false
	r.Expect100 = false
	r.RemoteAddr = ""
	r.chunked = nil
	r.continueW = nil
	r.continueSent = false
	r.bodyRead = 0
	r.buf = nil
}

// Clone creates a shallow copy of the request.
// This is useful when you need to store the request beyond its lifetime.
//
// IMPORTANT: This performs string conversions for path/query to ensure
// they remain valid after the original buffer is reused.
//
// The Body reader is NOT cloned - the clone will have Body = nil.
// If you need the body, read it before cloning or use io.TeeReader.
func (r *Request) Clone() *Request {
	clone := &Request{
		MethodID:         r.MethodID,
		methodBytes:      []byte(r.Method()),
		pathBytes:        []byte(r.Path()),
		queryBytes:       []byte(r.Query()),
		protoBytes:       []byte(r.Proto),
		hostBytes:        []byte(r.Host()),
		Proto:            r.Proto,
		ProtoMajor:       r.ProtoMajor,
		ProtoMinor:       r.ProtoMinor,
		ContentLength:    r.ContentLength,
		TransferEncoding: r.TransferEncoding,
		Close:            r.Close,
		Expect100:        r.Expect100,
		RemoteAddr:       r.RemoteAddr,
		Body:             nil,
		buf:              nil,
	}
	if r.upgradeBytes != nil {
		clone.upgradeBytes = append([]byte(nil), r.upgradeBytes...)
	}

	r.Header.VisitAll(func(name, value []byte) bool {
		clone.Header.Add(name, value)
		return true
	})

	if r.pathParsed != nil {
		parsed, _ := r.ParsedURL()
		if parsed != nil {
			clone.pathParsed = &url.URL{
				Scheme:   parsed.Scheme,
				Host:     parsed.Host,
				Path:     parsed.Path,
				RawQuery: parsed.RawQuery,
			}
		}
	}

	return clone
}

package volt

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/voltframework/volt/multipart"
)

// LengthUnknown marks content whose byte length cannot be computed
// up front; the serializer switches to chunked framing.
const LengthUnknown int64 = -1

// Content is the response body abstraction. Each variant knows its
// default media type, its byte length (or LengthUnknown) and how to
// serialize itself to a writer.
//
// Implementations MUST NOT return a wrong length; when uncertain,
// return LengthUnknown and accept chunked framing.
type Content interface {
	// ContentType returns the media type used when the response has no
	// explicit Content-Type header.
	ContentType() string

	// Length returns the exact body size in bytes, or LengthUnknown.
	Length() int64

	// WriteTo serializes the body to w.
	WriteTo(w io.Writer) (int64, error)
}

// BytesContent is a raw byte-buffer body.
type BytesContent struct {
	Data []byte
	Type string // optional; default application/octet-stream
}

// ContentType returns the explicit type or application/octet-stream.
func (b BytesContent) ContentType() string {
	if b.Type != "" {
		return b.Type
	}
	return "application/octet-stream"
}

// Length returns the buffer size.
func (b BytesContent) Length() int64 { return int64(len(b.Data)) }

// WriteTo writes the buffer.
func (b BytesContent) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.Data)
	return int64(n), err
}

// TextContent is a string body with a charset-qualified media type.
type TextContent struct {
	Text string
	Type string // optional; default text/plain; charset=utf-8
}

// ContentType returns the explicit type or text/plain; charset=utf-8.
func (t TextContent) ContentType() string {
	if t.Type != "" {
		return t.Type
	}
	return "text/plain; charset=utf-8"
}

// Length returns the encoded byte length.
func (t TextContent) Length() int64 { return int64(len(t.Text)) }

// WriteTo writes the string bytes.
func (t TextContent) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, t.Text)
	return int64(n), err
}

// HTMLContent is an HTML document body.
type HTMLContent struct {
	HTML     string
	Encoding string // optional; default utf-8
}

// ContentType returns text/html with the configured charset.
func (h HTMLContent) ContentType() string {
	enc := h.Encoding
	if enc == "" {
		enc = "utf-8"
	}
	return "text/html; charset=" + enc
}

// Length returns the encoded byte length.
func (h HTMLContent) Length() int64 { return int64(len(h.HTML)) }

// WriteTo writes the document.
func (h HTMLContent) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, h.HTML)
	return int64(n), err
}

// StreamContent is a reader-backed body. Size is the known length or
// LengthUnknown; unknown streams are sent chunked.
type StreamContent struct {
	Reader io.Reader
	Size   int64
	Type   string // optional; default application/octet-stream
}

// ContentType returns the explicit type or application/octet-stream.
func (s StreamContent) ContentType() string {
	if s.Type != "" {
		return s.Type
	}
	return "application/octet-stream"
}

// Length returns the supplied size; negative means LengthUnknown.
func (s StreamContent) Length() int64 {
	if s.Size < 0 {
		return LengthUnknown
	}
	return s.Size
}

// WriteTo copies the reader to w.
func (s StreamContent) WriteTo(w io.Writer) (int64, error) {
	if s.Reader == nil {
		return 0, nil
	}
	return io.Copy(w, s.Reader)
}

// FormField is one name/value pair of a urlencoded form.
type FormField struct {
	Name  string
	Value string
}

// FormContent is an application/x-www-form-urlencoded body preserving
// field order and multiplicity.
type FormContent struct {
	Fields []FormField

	encoded []byte // memoized encoding backing Length + WriteTo
}

// ContentType returns application/x-www-form-urlencoded.
func (f *FormContent) ContentType() string {
	return "application/x-www-form-urlencoded"
}

// Add appends a field, preserving order and duplicates.
func (f *FormContent) Add(name, value string) {
	f.Fields = append(f.Fields, FormField{Name: name, Value: value})
	f.encoded = nil
}

func (f *FormContent) encode() []byte {
	if f.encoded != nil {
		return f.encoded
	}
	var b strings.Builder
	for i, field := range f.Fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(field.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(field.Value))
	}
	f.encoded = []byte(b.String())
	return f.encoded
}

// Length returns the encoded byte length (memoized so the framing
// decision does not double-encode).
func (f *FormContent) Length() int64 { return int64(len(f.encode())) }

// WriteTo writes the memoized encoding.
func (f *FormContent) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.encode())
	return int64(n), err
}

// MultipartContent is a multipart/form-data response body (rare).
type MultipartContent struct {
	Parts    []multipart.Part
	Boundary string

	encoded []byte
}

// ContentType returns multipart/form-data with the boundary parameter.
func (m *MultipartContent) ContentType() string {
	return "multipart/form-data; boundary=" + m.Boundary
}

func (m *MultipartContent) encode() []byte {
	if m.encoded == nil {
		m.encoded = multipart.Serialize(m.Parts, m.Boundary)
	}
	return m.encoded
}

// Length returns the computed encoding size.
func (m *MultipartContent) Length() int64 { return int64(len(m.encode())) }

// WriteTo writes the memoized encoding.
func (m *MultipartContent) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.encode())
	return int64(n), err
}

// headerField preserves response header insertion order; duplicates
// are kept and serialized in the order user code added them.
type headerField struct {
	name  string
	value string
}

// Response is the framework-level response: status + reason, ordered
// headers, optional content and the chunked-framing flag.
//
// Once any byte has been flushed to the wire, status and headers are
// immutable; mutation attempts fail with ErrWriteAfterFlush.
type Response struct {
	Status  int
	Reason  string // optional custom reason phrase
	Content Content

	// Chunked forces Transfer-Encoding: chunked regardless of a known
	// content length.
	Chunked bool

	headers []headerField

	// contentLength memoizes Content.Length() so the framing decision
	// does not recompute (FormContent/MultipartContent encode once).
	contentLength int64
	lengthKnown   bool

	// streamed marks a response whose body already went out through a
	// streaming endpoint; the serializer skips it.
	streamed bool

	flushed bool
}

// NewResponse creates a response with the given status code.
func NewResponse(status int) *Response {
	return &Response{Status: status}
}

// Ok creates an empty 200 response.
func Ok() *Response { return NewResponse(200) }

// WithContent sets the body and returns the response for chaining.
func (r *Response) WithContent(c Content) *Response {
	r.Content = c
	r.lengthKnown = false
	return r
}

// WithHeader appends a header and returns the response for chaining.
func (r *Response) WithHeader(name, value string) *Response {
	_ = r.AddHeader(name, value)
	return r
}

// SetHeader replaces the first header with the given name (adds when
// absent). Fails with ErrWriteAfterFlush once flushed.
func (r *Response) SetHeader(name, value string) error {
	if r.flushed {
		return ErrWriteAfterFlush
	}
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, name) {
			r.headers[i].value = value
			return nil
		}
	}
	r.headers = append(r.headers, headerField{name: name, value: value})
	return nil
}

// AddHeader appends a header, preserving duplicates and order.
// Fails with ErrWriteAfterFlush once flushed.
func (r *Response) AddHeader(name, value string) error {
	if r.flushed {
		return ErrWriteAfterFlush
	}
	r.headers = append(r.headers, headerField{name: name, value: value})
	return nil
}

// Header returns the first value of the named header, "" when absent.
func (r *Response) Header(name string) string {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, name) {
			return r.headers[i].value
		}
	}
	return ""
}

// HasHeader reports whether the named header is present.
func (r *Response) HasHeader(name string) bool {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, name) {
			return true
		}
	}
	return false
}

// VisitHeaders walks the headers in insertion order.
func (r *Response) VisitHeaders(visit func(name, value string) bool) {
	for i := range r.headers {
		if !visit(r.headers[i].name, r.headers[i].value) {
			return
		}
	}
}

// SetStatus changes the status line. Fails with ErrWriteAfterFlush
// once flushed.
func (r *Response) SetStatus(status int, reason string) error {
	if r.flushed {
		return ErrWriteAfterFlush
	}
	r.Status = status
	r.Reason = reason
	return nil
}

// ContentLength returns the memoized body length, LengthUnknown for
// chunk-framed content. A nil body has length 0.
func (r *Response) ContentLength() int64 {
	if r.lengthKnown {
		return r.contentLength
	}
	if r.Content == nil {
		r.contentLength = 0
	} else {
		r.contentLength = r.Content.Length()
	}
	r.lengthKnown = true
	return r.contentLength
}

// markFlushed freezes status and headers. Called by the serializer
// when the first byte goes out.
func (r *Response) markFlushed() {
	r.flushed = true
}

// Flushed reports whether any response byte reached the wire.
func (r *Response) Flushed() bool {
	return r.flushed
}

// CookieAttributes carries the optional Set-Cookie attributes.
type CookieAttributes struct {
	Path     string
	Domain   string
	Expires  time.Time
	MaxAge   int // seconds; 0 omits, negative emits Max-Age=0
	Secure   bool
	HttpOnly bool
	SameSite string // "Strict", "Lax" or "None"
}

// SetCookie appends a Set-Cookie header. May be called multiple
// times; each call yields a separate header line.
func (r *Response) SetCookie(name, value string, attrs CookieAttributes) error {
	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(value))
	if attrs.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(attrs.Path)
	}
	if attrs.Domain != "" {
		b.WriteString("; Domain=")
		b.WriteString(attrs.Domain)
	}
	if !attrs.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(attrs.Expires.UTC().Format(time.RFC1123))
	}
	if attrs.MaxAge > 0 {
		fmt.Fprintf(&b, "; Max-Age=%d", attrs.MaxAge)
	} else if attrs.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	if attrs.Secure {
		b.WriteString("; Secure")
	}
	if attrs.HttpOnly {
		b.WriteString("; HttpOnly")
	}
	if attrs.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(attrs.SameSite)
	}
	return r.AddHeader("Set-Cookie", b.String())
}

// Text builds a text/plain response.
func Text(status int, text string) *Response {
	return NewResponse(status).WithContent(TextContent{Text: text})
}

// HTML builds an HTML response.
func HTML(status int, html string) *Response {
	return NewResponse(status).WithContent(HTMLContent{HTML: html})
}

// Bytes builds a raw-bytes response.
func Bytes(status int, data []byte, contentType string) *Response {
	return NewResponse(status).WithContent(BytesContent{Data: data, Type: contentType})
}

// Stream builds a reader-backed response. size < 0 means unknown and
// selects chunked framing.
func Stream(status int, r io.Reader, size int64, contentType string) *Response {
	if size < 0 {
		size = LengthUnknown
	}
	return NewResponse(status).WithContent(StreamContent{Reader: r, Size: size, Type: contentType})
}

// Redirect builds a 301 response with a Location header.
func Redirect(location string) *Response {
	return NewResponse(301).WithHeader("Location", location)
}

package volt

import (
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/voltframework/volt/multipart"
	"github.com/voltframework/volt/pool/buffers"
	"github.com/voltframework/volt/wire"
)

// Context is the per-request state handed to request-handlers and
// actions. It is single-threaded from the handler's perspective:
// created after successful request framing, destroyed after response
// serialization completes or the connection faults.
//
// The context borrows the server non-owningly for its lifetime only;
// never store a Context beyond the request.
type Context struct {
	// Request metadata, fixed at construction
	method      string
	path        string
	rawQuery    string
	scheme      string
	host        string // authority from the Host header
	remoteAddr  string
	requestTime time.Time
	traceID     string

	req    *wire.Request
	rw     *wire.ResponseWriter
	server *App
	route  *Route

	ctx context.Context // fused server-shutdown + per-request timeout

	// Lazily parsed state
	query        []FormField
	queryParsed  bool
	cookies      []FormField
	cookieParsed bool

	// pathParams is populated by routing; handlers read, never write.
	pathParams map[string]string

	// response is the in-flight response, visible to post-handlers
	// for decoration (compression, header stamping).
	response *Response

	// bag is the user-extensible type-keyed map; not observed by the
	// engine.
	bag map[any]any

	bodyConsumed bool

	// Response accounting for access logging and AfterResponse
	// handlers.
	Status   int
	BytesIn  int64
	BytesOut int64
	Elapsed  time.Duration
}

// newContext builds a context from a parsed wire request.
func newContext(app *App, req *wire.Request, scheme string, ctx context.Context) *Context {
	c := getContext()
	c.server = app
	c.req = req
	c.method = req.Method()
	c.path = req.Path()
	c.rawQuery = req.Query()
	c.scheme = scheme
	c.host = req.Host()
	c.remoteAddr = req.RemoteAddr
	c.requestTime = time.Now()
	c.ctx = ctx
	return c
}

// Reset clears the context for pooling.
func (c *Context) Reset() {
	*c = Context{}
}

// Method returns the request method ("GET").
func (c *Context) Method() string { return c.method }

// Path returns the request path, without the query string.
func (c *Context) Path() string { return c.path }

// RawQuery returns the query string without the leading '?'.
func (c *Context) RawQuery() string { return c.rawQuery }

// URL returns the raw request target (path plus query).
func (c *Context) URL() string {
	if c.rawQuery == "" {
		return c.path
	}
	return c.path + "?" + c.rawQuery
}

// Scheme returns "http" or "https" for the accepting prefix.
func (c *Context) Scheme() string { return c.scheme }

// Host returns the request authority (Host header).
func (c *Context) Host() string { return c.host }

// RemoteAddr returns the peer address, possibly rewritten by the
// configured forwarded-address resolver.
func (c *Context) RemoteAddr() string { return c.remoteAddr }

// RequestTime returns the context creation timestamp.
func (c *Context) RequestTime() time.Time { return c.requestTime }

// TraceID returns the request's trace identifier. Caller-supplied
// X-Request-Id tokens are propagated verbatim; otherwise a UUID v4 is
// minted on first access.
func (c *Context) TraceID() string {
	if c.traceID == "" {
		if hdr := c.Header("X-Request-Id"); hdr != "" {
			c.traceID = hdr
		} else {
			c.traceID = uuid.NewString()
		}
	}
	return c.traceID
}

// Context returns the cancellation context fused from server shutdown
// and the per-request timeout. Long-running handlers must observe it.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Route returns the matched route; nil inside global pre-handlers
// that run before routing completes.
func (c *Context) Route() *Route { return c.route }

// Response returns the in-flight response; non-nil only inside
// post-handlers, after the action produced it.
func (c *Context) Response() *Response { return c.response }

// Header returns the first value of the named request header.
func (c *Context) Header(name string) string {
	return c.req.GetHeaderString(name)
}

// HeaderValues returns every value of the named request header, in
// first-seen order.
func (c *Context) HeaderValues(name string) []string {
	var out []string
	target := []byte(name)
	c.req.Header.VisitAll(func(n, v []byte) bool {
		if equalFoldBytes(n, target) {
			out = append(out, string(v))
		}
		return true
	})
	return out
}

// VisitHeaders walks the raw request headers in first-seen order.
func (c *Context) VisitHeaders(visit func(name, value string) bool) {
	c.req.Header.VisitAll(func(n, v []byte) bool {
		return visit(string(n), string(v))
	})
}

func equalFoldBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 32
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 32
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// parseQuery decodes the query string on first access. Duplicate keys
// are preserved in insertion order.
func (c *Context) parseQuery() {
	if c.queryParsed {
		return
	}
	c.queryParsed = true
	c.query = parsePairs(c.rawQuery, '&')
}

// parsePairs decodes k=v pair lists (query strings and urlencoded
// forms), percent-decoding both sides and preserving order and
// multiplicity. Undecodable tokens keep their raw form.
func parsePairs(s string, sep byte) []FormField {
	if s == "" {
		return nil
	}
	var out []FormField
	for len(s) > 0 {
		var pair string
		if idx := strings.IndexByte(s, sep); idx >= 0 {
			pair = s[:idx]
			s = s[idx+1:]
		} else {
			pair = s
			s = ""
		}
		if pair == "" {
			continue
		}
		var name, value string
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			name = pair[:eq]
			value = pair[eq+1:]
		} else {
			name = pair
		}
		if dec, err := url.QueryUnescape(name); err == nil {
			name = dec
		}
		if dec, err := url.QueryUnescape(value); err == nil {
			value = dec
		}
		out = append(out, FormField{Name: name, Value: value})
	}
	return out
}

// Query returns the first value of the named query parameter.
func (c *Context) Query(name string) string {
	c.parseQuery()
	for i := range c.query {
		if c.query[i].Name == name {
			return c.query[i].Value
		}
	}
	return ""
}

// QueryAll returns every value of the named query parameter in
// insertion order.
func (c *Context) QueryAll(name string) []string {
	c.parseQuery()
	var out []string
	for i := range c.query {
		if c.query[i].Name == name {
			out = append(out, c.query[i].Value)
		}
	}
	return out
}

// QueryFields returns all query parameters in insertion order.
func (c *Context) QueryFields() []FormField {
	c.parseQuery()
	return c.query
}

// parseCookies decodes the Cookie header into order-preserving,
// percent-decoded pairs with case-insensitive lookup.
func (c *Context) parseCookies() {
	if c.cookieParsed {
		return
	}
	c.cookieParsed = true
	raw := c.Header("Cookie")
	if raw == "" {
		return
	}
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value := pair, ""
		if eq := strings.IndexByte(pair, '='); eq >= 0 {
			name = pair[:eq]
			value = pair[eq+1:]
		}
		if dec, err := url.QueryUnescape(value); err == nil {
			value = dec
		}
		c.cookies = append(c.cookies, FormField{Name: name, Value: value})
	}
}

// Cookie returns the named cookie's value (case-insensitive lookup),
// "" when absent.
func (c *Context) Cookie(name string) string {
	c.parseCookies()
	for i := range c.cookies {
		if strings.EqualFold(c.cookies[i].Name, name) {
			return c.cookies[i].Value
		}
	}
	return ""
}

// Cookies returns all cookies in header order.
func (c *Context) Cookies() []FormField {
	c.parseCookies()
	return c.cookies
}

// PathParam returns the named path parameter bound by routing.
func (c *Context) PathParam(name string) string {
	return c.pathParams[name]
}

// PathParams returns the full parameter map. Handlers must not
// mutate it.
func (c *Context) PathParams() map[string]string {
	return c.pathParams
}

// Set stores a value in the request's extensibility bag. Keys follow
// context.Context conventions: use unexported key types to avoid
// collisions.
func (c *Context) Set(key, value any) {
	if c.bag == nil {
		c.bag = make(map[any]any, 4)
	}
	c.bag[key] = value
}

// Get reads a value from the extensibility bag.
func (c *Context) Get(key any) (any, bool) {
	v, ok := c.bag[key]
	return v, ok
}

// ContentLength returns the declared request body length, 0 when
// absent, -1 for chunked bodies of unknown length.
func (c *Context) ContentLength() int64 {
	if c.req.IsChunked() {
		return -1
	}
	return c.req.ContentLength
}

// Body returns the raw body reader and marks the body consumed. The
// body may be read at most once; a second acquisition fails with
// ErrBodyAlreadyConsumed.
func (c *Context) Body() (io.Reader, error) {
	if c.bodyConsumed {
		return nil, ErrBodyAlreadyConsumed
	}
	c.bodyConsumed = true
	if c.req.Body == nil {
		return strings.NewReader(""), nil
	}
	return c.req.Body, nil
}

// ReadBodyBytes reads the whole body, capped at maxLength bytes
// (0 = the server's configured cap). Exceeding the cap fails with
// ErrPayloadTooLarge. Marks the body consumed.
func (c *Context) ReadBodyBytes(maxLength int64) ([]byte, error) {
	if maxLength <= 0 {
		maxLength = c.server.config.MaxContentLength
	}
	body, err := c.Body()
	if err != nil {
		return nil, err
	}
	// Read one byte past the cap: exactly-at-cap is accepted.
	data, err := io.ReadAll(io.LimitReader(body, maxLength+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxLength {
		return nil, ErrPayloadTooLarge
	}
	return data, nil
}

// ReadText reads the body as text. The charset parameter of the
// request Content-Type is honored when it is a known encoding;
// everything else falls back to UTF-8.
func (c *Context) ReadText() (string, error) {
	data, err := c.ReadBodyBytes(0)
	if err != nil {
		return "", err
	}
	// Supported charsets: utf-8 and us-ascii (native) and
	// iso-8859-1/latin1, which is decoded byte-wise.
	cs := contentTypeParam(c.Header("Content-Type"), "charset")
	switch strings.ToLower(cs) {
	case "iso-8859-1", "latin1":
		var b strings.Builder
		b.Grow(len(data))
		for _, ch := range data {
			b.WriteRune(rune(ch))
		}
		return b.String(), nil
	default:
		// utf-8, us-ascii, and unknown charsets decode as UTF-8.
		return string(data), nil
	}
}

// contentTypeParam extracts a media-type parameter ("charset",
// "boundary") from a Content-Type value.
func contentTypeParam(contentType, param string) string {
	for _, seg := range strings.Split(contentType, ";") {
		seg = strings.TrimSpace(seg)
		eq := strings.IndexByte(seg, '=')
		if eq <= 0 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(seg[:eq]), param) {
			return strings.Trim(strings.TrimSpace(seg[eq+1:]), `"`)
		}
	}
	return ""
}

// ReadForm reads an application/x-www-form-urlencoded body into a
// percent-decoded name/value list preserving multiplicity.
func (c *Context) ReadForm() ([]FormField, error) {
	data, err := c.ReadBodyBytes(0)
	if err != nil {
		return nil, err
	}
	return parsePairs(string(data), '&'), nil
}

// ReadMultipart parses a multipart/form-data body into its ordered
// parts. A missing multipart content type or boundary parameter fails
// with ErrBadRequest; framing violations surface multipart.ErrParse.
func (c *Context) ReadMultipart() ([]multipart.Part, error) {
	contentType := c.Header("Content-Type")
	boundary, err := multipart.BoundaryFromContentType(contentType)
	if err != nil {
		return nil, ErrBadRequest
	}
	body, err := c.Body()
	if err != nil {
		return nil, err
	}
	return multipart.ReadAll(body, boundary)
}

// MultipartReader returns a streaming part reader for one-at-a-time
// consumption of large uploads. Marks the body consumed.
func (c *Context) MultipartReader() (*multipart.Reader, error) {
	boundary, err := multipart.BoundaryFromContentType(c.Header("Content-Type"))
	if err != nil {
		return nil, ErrBadRequest
	}
	body, err := c.Body()
	if err != nil {
		return nil, err
	}
	return multipart.NewReader(body, boundary), nil
}

// ReadJSON decodes the body into v using the configured decoder.
func (c *Context) ReadJSON(v any) error {
	data, err := c.ReadBodyBytes(0)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// WireRequest exposes the underlying wire-level request for engine
// integrations (WebSocket upgrade, SSE). Application code should not
// need it.
func (c *Context) WireRequest() *wire.Request {
	return c.req
}

// Server returns the owning application (borrowed; valid for the
// request lifetime only).
func (c *Context) Server() *App {
	return c.server
}

// Parameter returns an application parameter from the configuration
// file's "parameters" section.
func (c *Context) Parameter(name string) string {
	return c.server.config.Parameters[name]
}

// applyForwarded runs the configured forwarded-address resolver.
func (c *Context) applyForwarded() error {
	resolver := c.server.config.Resolver
	if resolver == nil {
		return nil
	}
	remote, host, scheme, err := resolver(c)
	if err != nil {
		return ErrBadRequest
	}
	if remote != "" {
		c.remoteAddr = remote
	}
	if host != "" {
		c.host = host
	}
	if scheme != "" {
		c.scheme = scheme
	}
	return nil
}

// JSON builds a response by encoding v with the configured encoder
// through a pooled buffer. Encoding failures render as 500.
func JSON(status int, v any) *Response {
	buf := buffers.AcquireJSONBuffer(0)
	enc := json.NewEncoder(buf)
	if err := enc.Encode(v); err != nil {
		buffers.ReleaseJSONBuffer(buf)
		return Text(500, "json encoding failed")
	}
	data := make([]byte, buf.Len())
	copy(data, buf.Bytes())
	buffers.ReleaseJSONBuffer(buf)
	// Encode appends a newline the wire does not want.
	if n := len(data); n > 0 && data[n-1] == '\n' {
		data = data[:n-1]
	}
	return NewResponse(status).WithContent(BytesContent{Data: data, Type: "application/json; charset=utf-8"})
}

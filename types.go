// Package volt is an HTTP/1.1 server framework: named routes with
// pattern-matched paths and method sets, an ordered request-handler
// pipeline around route actions, a content-variant response model, and
// streaming endpoints (chunked bodies, SSE, WebSocket upgrades) over
// the zero-allocation wire engine.
package volt

import (
	"errors"
	"strings"
	"time"
)

// MethodSet is a bit set of HTTP methods a route answers.
//
// Bit sets make the per-request method check a single AND; a route's
// set is built once at registration.
type MethodSet uint16

const (
	MethodGet MethodSet = 1 << iota
	MethodPost
	MethodPut
	MethodDelete
	MethodPatch
	MethodHead
	MethodOptions
	MethodConnect
	MethodTrace

	// MethodAny matches every method; any-method routes are
	// considered after method-specific ones of the same pattern.
	MethodAny MethodSet = 1<<9 - 1
)

var methodNames = [...]struct {
	bit  MethodSet
	name string
}{
	{MethodGet, "GET"},
	{MethodPost, "POST"},
	{MethodPut, "PUT"},
	{MethodDelete, "DELETE"},
	{MethodPatch, "PATCH"},
	{MethodHead, "HEAD"},
	{MethodOptions, "OPTIONS"},
	{MethodConnect, "CONNECT"},
	{MethodTrace, "TRACE"},
}

// ParseMethod converts a method name to its bit. The sentinel "ANY"
// (case-insensitive) yields MethodAny. Unknown names yield 0.
func ParseMethod(name string) MethodSet {
	if strings.EqualFold(name, "ANY") {
		return MethodAny
	}
	for _, m := range methodNames {
		if strings.EqualFold(name, m.name) {
			return m.bit
		}
	}
	return 0
}

// methodBit maps a request method name to its MethodSet bit.
func methodBit(method string) MethodSet {
	switch method {
	case "GET":
		return MethodGet
	case "POST":
		return MethodPost
	case "PUT":
		return MethodPut
	case "DELETE":
		return MethodDelete
	case "PATCH":
		return MethodPatch
	case "HEAD":
		return MethodHead
	case "OPTIONS":
		return MethodOptions
	case "CONNECT":
		return MethodConnect
	case "TRACE":
		return MethodTrace
	}
	return 0
}

// Contains reports whether the set includes all bits of m.
func (s MethodSet) Contains(m MethodSet) bool {
	return s&m == m
}

// IsAny reports whether the set is the any-method sentinel.
func (s MethodSet) IsAny() bool {
	return s == MethodAny
}

// String renders the set as a comma-separated method list, the format
// of the Allow header on 405 responses.
func (s MethodSet) String() string {
	if s.IsAny() {
		return "ANY"
	}
	var b strings.Builder
	for _, m := range methodNames {
		if s&m.bit != 0 {
			if b.Len() > 0 {
				b.WriteString(", ")
			}
			b.WriteString(m.name)
		}
	}
	return b.String()
}

// Action produces the primary result for a route. The returned value
// is converted to a *Response through the action-result registry
// (see registry.go); returning *Response directly is the identity
// conversion.
type Action func(c *Context) any

// Phase classifies when a request-handler runs relative to
// short-circuiting.
type Phase uint8

const (
	// PhaseNormal handlers run in registration order and are skipped
	// once an earlier handler short-circuits.
	PhaseNormal Phase = iota

	// PhaseAfterResponse handlers always run, short-circuit or not.
	// Used for access logging and metrics.
	PhaseAfterResponse
)

// RequestHandler is a middleware-style hook in the dispatch pipeline:
//
//	global-pre → route-pre → action → route-post → global-post
//
// Execute returns nil to continue the pipeline or a *Response to
// short-circuit it.
type RequestHandler interface {
	Execute(c *Context) *Response
	Phase() Phase
}

// HandlerFunc adapts a plain function to a PhaseNormal RequestHandler.
type HandlerFunc func(c *Context) *Response

// Execute calls f(c).
func (f HandlerFunc) Execute(c *Context) *Response { return f(c) }

// Phase returns PhaseNormal.
func (f HandlerFunc) Phase() Phase { return PhaseNormal }

type afterResponseHandler struct {
	fn HandlerFunc
}

func (h afterResponseHandler) Execute(c *Context) *Response { return h.fn(c) }
func (h afterResponseHandler) Phase() Phase                 { return PhaseAfterResponse }

// AfterResponse wraps f as a handler that runs even when an earlier
// handler short-circuited the pipeline.
func AfterResponse(f HandlerFunc) RequestHandler {
	return afterResponseHandler{fn: f}
}

// ForwardedResolver overrides the request's remote address, host and
// scheme from proxy headers (X-Forwarded-*, Forwarded). A returned
// error surfaces as 400 Bad Request; proxy headers are never trusted
// silently.
type ForwardedResolver func(c *Context) (remoteAddr, host, scheme string, err error)

// Error kinds of the framework. Engine internals return these;
// dispatch maps them to status codes (see App.errorResponse).
var (
	// ErrRouteNotFound: no registered pattern matched the path. 404.
	ErrRouteNotFound = errors.New("volt: route not found")

	// ErrMethodNotAllowed: a pattern matched but not the method. 405.
	ErrMethodNotAllowed = errors.New("volt: method not allowed")

	// ErrCorsRejected: origin not permitted by the host policy. 403.
	ErrCorsRejected = errors.New("volt: origin rejected by CORS policy")

	// ErrInvalidHost: no listening host matched the authority. 421.
	ErrInvalidHost = errors.New("volt: invalid host")

	// ErrBodyAlreadyConsumed: second read of the single-read body.
	// Programming error, 500.
	ErrBodyAlreadyConsumed = errors.New("volt: request body already consumed")

	// ErrPayloadTooLarge: body exceeded the configured cap. 413.
	ErrPayloadTooLarge = errors.New("volt: payload too large")

	// ErrWriteAfterFlush: response mutation after the first byte went
	// out. Programming error, 500.
	ErrWriteAfterFlush = errors.New("volt: response mutated after flush")

	// ErrRouterFrozen: registration after the server started.
	ErrRouterFrozen = errors.New("volt: router is frozen after server start")

	// ErrUnregisteredActionType: an action returned a value with no
	// converter in the registry. 500.
	ErrUnregisteredActionType = errors.New("volt: unregistered action result type")

	// ErrBadRequest: malformed request content (form, multipart
	// boundary, forwarded headers). 400.
	ErrBadRequest = errors.New("volt: bad request")
)

// Config holds the server-wide configuration.
type Config struct {
	// MaxContentLength is the hard cap on request bodies. Bodies whose
	// declared or observed size exceeds it are rejected with 413.
	MaxContentLength int64

	// MaxRequestLineBytes bounds the request line (method + target + version).
	MaxRequestLineBytes int

	// MaxHeaderBytes bounds the total size of the header block.
	MaxHeaderBytes int

	// MaxHeaderCount bounds the number of headers accepted per request.
	MaxHeaderCount int

	// IncludeRequestIdHeader emits X-Request-Id on every response.
	// Caller-supplied ids are propagated; otherwise a UUID is minted.
	IncludeRequestIdHeader bool

	// ThrowExceptions re-raises handler panics to the host after the
	// connection is aborted; when false (default) a panic renders 500.
	ThrowExceptions bool

	// CaseSensitiveRoutes controls literal path-segment comparison.
	// Default true.
	CaseSensitiveRoutes bool

	// IdleConnectionTimeout closes connections idle between requests.
	IdleConnectionTimeout time.Duration

	// RequestTimeout bounds one request's handling; expiry cancels the
	// context and closes the connection. It does not preempt
	// compute-bound handlers.
	RequestTimeout time.Duration

	// GracePeriod is how long Stop waits for in-flight requests before
	// forcibly closing sockets.
	GracePeriod time.Duration

	// AccessLogFormat is the %-token format string for access-log
	// lines (see logstream.FormatAccessLog).
	AccessLogFormat string

	// ErrorDetailInBody includes a minimal diagnostic in error bodies.
	// Stack traces are never included unless ThrowExceptions is off
	// and this is explicitly enabled by DebugErrors.
	ErrorDetailInBody bool

	// DebugErrors includes exception text in 500 bodies. Never enable
	// in production.
	DebugErrors bool

	// Parameters is the app-visible string map from the configuration
	// file's "parameters" section.
	Parameters map[string]string

	// Resolver optionally rewrites remote address/host/scheme from
	// proxy headers.
	Resolver ForwardedResolver
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		MaxContentLength:      10 << 20, // 10MB
		MaxRequestLineBytes:   8192,
		MaxHeaderBytes:        8192,
		MaxHeaderCount:        64,
		CaseSensitiveRoutes:   true,
		IdleConnectionTimeout: 120 * time.Second,
		GracePeriod:           30 * time.Second,
		AccessLogFormat:       "%dd/%dm/%dy %tH:%ti:%ts %tz %ri %rm %rz%rq -> %sc %sd (%lms ms, %lou)",
	}
}

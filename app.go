package volt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/voltframework/volt/logstream"
	"github.com/voltframework/volt/sse"
	"github.com/voltframework/volt/wire"
	"github.com/voltframework/volt/ws"
	"github.com/voltframework/volt/wserver"
)

// App is the server application: route registration, the dispatch
// pipeline, listening hosts and the engine lifecycle.
//
// App manages:
//   - Route registration (Get, Post, Put, Delete, etc.) and groups
//   - Global pre/post request-handler chains
//   - The action-result registry
//   - Listening hosts with per-host CORS policies
//   - Access and error LogStreams
//   - Startup, graceful shutdown and metrics
type App struct {
	router   *Router
	registry *ResultRegistry
	config   Config

	hosts []*ListeningHost

	globalPre  []RequestHandler
	globalPost []RequestHandler

	// statusHandlers override the default status-code → response
	// mapping for error kinds.
	statusHandlers map[int]func(c *Context) *Response

	accessLog *logstream.LogStream
	errorLog  *logstream.LogStream

	server  *wserver.Server
	metrics *wserver.Metrics
	tlsConf *tls.Config

	started atomic.Bool
}

// New creates an application with the default configuration.
func New() *App {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates an application with an explicit configuration.
func NewWithConfig(config Config) *App {
	app := &App{
		router:         NewRouter(),
		registry:       NewResultRegistry(),
		config:         config,
		statusHandlers: make(map[int]func(c *Context) *Response),
	}
	app.router.SetCaseInsensitive(!config.CaseSensitiveRoutes)

	// Pre-warm the context pool to eliminate cold start allocations.
	defaultContextPool.Warmup(256)
	return app
}

// Config returns the active configuration.
func (a *App) Config() Config {
	return a.config
}

// Router exposes the routing table (read-only once started).
func (a *App) Router() *Router {
	return a.router
}

// Results exposes the action-result registry for custom result types.
func (a *App) Results() *ResultRegistry {
	return a.registry
}

// SetAccessLog attaches the access LogStream.
func (a *App) SetAccessLog(l *logstream.LogStream) { a.accessLog = l }

// SetErrorLog attaches the error LogStream.
func (a *App) SetErrorLog(l *logstream.LogStream) { a.errorLog = l }

// AccessLog returns the access LogStream, nil when unset.
func (a *App) AccessLog() *logstream.LogStream { return a.accessLog }

// ErrorLog returns the error LogStream, nil when unset.
func (a *App) ErrorLog() *logstream.LogStream { return a.errorLog }

// SetTLSConfig supplies the TLS configuration used by https prefixes.
func (a *App) SetTLSConfig(conf *tls.Config) { a.tlsConf = conf }

// AddHost registers a listening host (prefixes + CORS policy).
// Fails once the server started.
func (a *App) AddHost(h *ListeningHost) error {
	if a.started.Load() {
		return ErrRouterFrozen
	}
	a.hosts = append(a.hosts, h)
	return nil
}

// Hosts returns the registered listening hosts.
func (a *App) Hosts() []*ListeningHost {
	return a.hosts
}

// UsePre appends a handler to the global pre chain.
func (a *App) UsePre(h RequestHandler) { a.globalPre = append(a.globalPre, h) }

// UsePost appends a handler to the global post chain.
func (a *App) UsePost(h RequestHandler) { a.globalPost = append(a.globalPost, h) }

// OnStatus overrides the response rendered for an engine-produced
// status code (404, 405, 403, 500, ...).
func (a *App) OnStatus(status int, build func(c *Context) *Response) {
	a.statusHandlers[status] = build
}

// Register adds a fully-specified route.
func (a *App) Register(route *Route) error {
	return a.router.Register(route)
}

func (a *App) register(methods MethodSet, pattern string, action Action) *Route {
	route := &Route{
		Name:    strings.TrimPrefix(pattern, "/"),
		Methods: methods,
		Pattern: pattern,
		Action:  action,
	}
	if err := a.router.Register(route); err != nil {
		panic(err)
	}
	return route
}

// Get registers a GET route.
func (a *App) Get(pattern string, action Action) *Route { return a.register(MethodGet, pattern, action) }

// Post registers a POST route.
func (a *App) Post(pattern string, action Action) *Route {
	return a.register(MethodPost, pattern, action)
}

// Put registers a PUT route.
func (a *App) Put(pattern string, action Action) *Route { return a.register(MethodPut, pattern, action) }

// Delete registers a DELETE route.
func (a *App) Delete(pattern string, action Action) *Route {
	return a.register(MethodDelete, pattern, action)
}

// Patch registers a PATCH route.
func (a *App) Patch(pattern string, action Action) *Route {
	return a.register(MethodPatch, pattern, action)
}

// Options registers an OPTIONS route.
func (a *App) Options(pattern string, action Action) *Route {
	return a.register(MethodOptions, pattern, action)
}

// Any registers a route answering every method; considered after
// method-specific routes of the same pattern.
func (a *App) Any(pattern string, action Action) *Route {
	return a.register(MethodAny, pattern, action)
}

// RedirectToRoute builds a 301 to a named route's pattern. The target
// must be registered for GET and have a literal-only pattern.
func (a *App) RedirectToRoute(name string) (*Response, error) {
	rt := a.router.RouteByName(name)
	if rt == nil {
		return nil, fmt.Errorf("volt: no route named %q", name)
	}
	if !rt.Methods.Contains(MethodGet) {
		return nil, fmt.Errorf("volt: route %q is not registered for GET", name)
	}
	if !rt.literal {
		return nil, fmt.Errorf("volt: route %q has placeholders; redirect needs a literal pattern", name)
	}
	return Redirect(rt.Pattern), nil
}

// Group registers routes under a shared path prefix with shared
// pre/post handlers.
type Group struct {
	app    *App
	prefix string
	pre    []RequestHandler
	post   []RequestHandler
}

// Group creates a route group under prefix.
func (a *App) Group(prefix string) *Group {
	return &Group{app: a, prefix: strings.TrimSuffix(prefix, "/")}
}

// UsePre appends a pre-handler applied to every route in the group.
func (g *Group) UsePre(h RequestHandler) *Group {
	g.pre = append(g.pre, h)
	return g
}

// UsePost appends a post-handler applied to every route in the group.
func (g *Group) UsePost(h RequestHandler) *Group {
	g.post = append(g.post, h)
	return g
}

func (g *Group) register(methods MethodSet, pattern string, action Action) *Route {
	full := g.prefix + pattern
	route := &Route{
		Name:         strings.TrimPrefix(full, "/"),
		Methods:      methods,
		Pattern:      full,
		Action:       action,
		PreHandlers:  append([]RequestHandler(nil), g.pre...),
		PostHandlers: append([]RequestHandler(nil), g.post...),
	}
	if err := g.app.router.Register(route); err != nil {
		panic(err)
	}
	return route
}

// Get registers a GET route in the group.
func (g *Group) Get(pattern string, action Action) *Route {
	return g.register(MethodGet, pattern, action)
}

// Post registers a POST route in the group.
func (g *Group) Post(pattern string, action Action) *Route {
	return g.register(MethodPost, pattern, action)
}

// Put registers a PUT route in the group.
func (g *Group) Put(pattern string, action Action) *Route {
	return g.register(MethodPut, pattern, action)
}

// Delete registers a DELETE route in the group.
func (g *Group) Delete(pattern string, action Action) *Route {
	return g.register(MethodDelete, pattern, action)
}

// Any registers an any-method route in the group.
func (g *Group) Any(pattern string, action Action) *Route {
	return g.register(MethodAny, pattern, action)
}

// ---- Lifecycle (C9) ----

// Bind prepares listeners for every prefix of every registered host.
// With no hosts registered, the port of addr ("[host]:port") becomes a
// single plain-HTTP prefix on every interface; any host part is ignored.
func (a *App) Bind(addr string) error {
	if a.server != nil {
		return fmt.Errorf("volt: already bound")
	}

	if len(a.hosts) == 0 && addr != "" {
		h, err := NewListeningHost("default", "http://+"+normalizeAddrPort(addr)+"/")
		if err != nil {
			return err
		}
		a.hosts = append(a.hosts, h)
	}
	if len(a.hosts) == 0 {
		return fmt.Errorf("volt: no listening hosts")
	}

	a.buildServer()

	for _, h := range a.hosts {
		for _, p := range h.Prefixes {
			if err := a.server.Bind(p.Addr(), p.Scheme == "https"); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildServer assembles the engine server from the configuration.
func (a *App) buildServer() {
	connCfg := wire.DefaultConnectionConfig()
	connCfg.KeepAliveTimeout = a.config.IdleConnectionTimeout
	connCfg.Limits = wire.Limits{
		MaxRequestLineBytes: a.config.MaxRequestLineBytes,
		MaxHeaderBytes:      a.config.MaxHeaderBytes,
		MaxHeaderCount:      a.config.MaxHeaderCount,
		MaxContentLength:    a.config.MaxContentLength,
	}

	var dropped func() float64
	if a.accessLog != nil {
		al := a.accessLog
		dropped = func() float64 { return float64(al.DroppedLines()) }
	}
	a.metrics = wserver.NewMetrics(nil, dropped)

	a.server = wserver.New(wserver.Config{
		Connection:  connCfg,
		GracePeriod: a.config.GracePeriod,
		TLS:         a.tlsConf,
		Metrics:     a.metrics,
	}, a.serveWire)
}

// BindListener adopts an externally created listener (tests, socket
// activation) instead of prefix binding.
func (a *App) BindListener(ln net.Listener) {
	if a.server == nil {
		a.buildServer()
	}
	a.server.BindListener(ln)
}

// Start freezes the router and begins the accept loops.
func (a *App) Start() error {
	if a.server == nil {
		return fmt.Errorf("volt: start before bind")
	}
	if !a.started.CompareAndSwap(false, true) {
		return fmt.Errorf("volt: already started")
	}
	a.router.Freeze()
	return a.server.Start()
}

// Stop shuts down: stop accepting, drain for GracePeriod, force-close
// the rest, then flush the log streams.
func (a *App) Stop() error {
	if a.server == nil {
		return nil
	}
	err := a.server.Stop()
	if a.accessLog != nil {
		a.accessLog.Flush()
	}
	if a.errorLog != nil {
		a.errorLog.Flush()
	}
	return err
}

// Listen is the bind+start convenience for a single plain prefix.
func (a *App) Listen(addr string) error {
	if err := a.Bind(addr); err != nil {
		return err
	}
	return a.Start()
}

// Server exposes the engine server (addresses, shutdown context).
func (a *App) Server() *wserver.Server {
	return a.server
}

func normalizeAddrPort(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if idx := strings.LastIndexByte(addr, ':'); idx >= 0 {
		return addr[idx:]
	}
	return ":" + addr
}

// ---- Dispatch (C2 → C3 → C5) ----

// executionResult labels for the access log's %ls token.
const (
	resultExecuted         = "executed"
	resultNotFound         = "not-found"
	resultMethodNotAllowed = "method-not-allowed"
	resultCorsRejected     = "cors-rejected"
	resultBadRequest       = "bad-request"
	resultInvalidHost      = "invalid-host"
	resultException        = "exception"
)

// serveWire is the wire.Handler: build the context, dispatch, write
// the response, account, log.
func (a *App) serveWire(req *wire.Request, rw *wire.ResponseWriter) error {
	start := time.Now()

	scheme := "http"
	if conn := rw.NetConn(); conn != nil {
		if _, ok := conn.(*tls.Conn); ok {
			scheme = "https"
		}
	}

	// Fuse server shutdown with the per-request timeout.
	baseCtx := context.Background()
	if a.server != nil {
		baseCtx = a.server.ShutdownContext()
	}
	ctx := baseCtx
	var cancel context.CancelFunc
	if a.config.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(baseCtx, a.config.RequestTimeout)
		defer cancel()
	}

	c := newContext(a, req, scheme, ctx)
	defer putContext(c)
	c.rw = rw

	// HEAD keeps the GET-equivalent head; the body never hits the wire.
	if req.IsHEAD() {
		rw.SetSuppressBody(true)
	}

	res, result := a.dispatch(c)

	// An Expect: 100-continue request whose interim response never
	// went out has an unsent body in flight; the connection closes
	// after this response, and the head must say so.
	if req.Expect100 && !req.ContinueSent() && req.HasBody() {
		rw.SetKeepAlive(false)
	}

	// Streaming endpoints (SSE, WebSocket) wrote the wire themselves.
	if res != nil {
		if err := a.writeResponse(c, rw, res); err != nil {
			return err
		}
	}

	c.Elapsed = time.Since(start)
	c.BytesIn += req.BodyBytesRead()
	c.BytesOut = rw.BytesWritten()
	if res != nil {
		c.Status = res.Status
	}

	// AfterResponse-phase handlers always run, short-circuit or not.
	a.runAfterResponse(c)

	a.logAccess(c, result)

	if result == resultException && a.config.ThrowExceptions {
		return fmt.Errorf("volt: handler exception (see error log)")
	}
	return nil
}

// dispatch resolves host and route, runs the pipeline and converts
// the action result. A nil response means the action streamed the
// wire itself.
func (a *App) dispatch(c *Context) (res *Response, result string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("volt: handler panic: %v", r)
			a.logException(err)
			result = resultException
			if a.config.ThrowExceptions {
				res = nil
				return
			}
			res = a.errorResponse(c, 500, err)
		}
	}()

	// Resolve the listening host by authority.
	host := a.matchHost(c.Host())
	if host == nil {
		return a.errorResponse(c, 421, ErrInvalidHost), resultInvalidHost
	}

	// Forwarded-address resolver runs before anything trusts the
	// request metadata.
	if err := c.applyForwarded(); err != nil {
		return a.errorResponse(c, 400, err), resultBadRequest
	}

	// CORS preflights short-circuit without touching user code.
	if host.Cors != nil && isPreflight(c) {
		res := host.Cors.preflightResponse(c)
		if res.Status == 403 {
			a.logException(fmt.Errorf("%w: origin %q", ErrCorsRejected, c.Header("Origin")))
			return res, resultCorsRejected
		}
		return res, resultExecuted
	}

	// Route inside the host's base path.
	routedPath, ok := host.stripBasePath(c.Path())
	if !ok {
		return a.errorResponse(c, 404, ErrRouteNotFound), resultNotFound
	}

	route, params, allow, err := a.router.Match(c.Method(), c.Host(), routedPath)
	switch {
	case errors.Is(err, ErrMethodNotAllowed):
		res := a.errorResponse(c, 405, err)
		_ = res.SetHeader("Allow", allow.String())
		return res, resultMethodNotAllowed
	case errors.Is(err, ErrRouteNotFound):
		return a.errorResponse(c, 404, err), resultNotFound
	}

	c.route = route
	c.pathParams = params

	// Pipeline: global-pre → route-pre → action → route-post →
	// global-post. A handler returning a response short-circuits
	// everything except AfterResponse-phase handlers.
	shortCircuited := false
	res = a.runChain(c, a.globalPre)
	if res == nil {
		res = a.runChain(c, route.PreHandlers)
	}
	shortCircuited = res != nil

	if res == nil {
		value := route.Action(c)
		var convErr error
		res, convErr = a.registry.Convert(value, func(err error) *Response {
			return a.mapError(c, err)
		})
		if convErr != nil {
			a.logException(convErr)
			res = a.errorResponse(c, 500, convErr)
		}
		if res.streamed {
			// Streaming action: the wire is already written.
			return nil, resultExecuted
		}
	}

	// Post-handlers see the in-flight response through the context
	// and may decorate it or replace it outright. A short-circuit
	// skips them; only AfterResponse-phase handlers still run.
	c.response = res
	if !shortCircuited {
		if after := a.runChain(c, route.PostHandlers); after != nil {
			res = after
			c.response = res
		}
		if after := a.runChain(c, a.globalPost); after != nil {
			res = after
			c.response = res
		}
	}

	// CORS response headers land after the action, never overwriting
	// what it set.
	if host.Cors != nil {
		host.Cors.decorate(c, res)
	}

	return res, resultExecuted
}

// runChain executes PhaseNormal handlers in registration order,
// returning the first short-circuit response.
func (a *App) runChain(c *Context, handlers []RequestHandler) *Response {
	for _, h := range handlers {
		if h.Phase() != PhaseNormal {
			continue
		}
		if res := h.Execute(c); res != nil {
			return res
		}
	}
	return nil
}

// runAfterResponse executes every AfterResponse-phase handler of the
// matched route and the global chains.
func (a *App) runAfterResponse(c *Context) {
	run := func(handlers []RequestHandler) {
		for _, h := range handlers {
			if h.Phase() == PhaseAfterResponse {
				_ = h.Execute(c)
			}
		}
	}
	run(a.globalPre)
	if c.route != nil {
		run(c.route.PreHandlers)
		run(c.route.PostHandlers)
	}
	run(a.globalPost)
}

// matchHost resolves the listening host serving an authority. With no
// hosts registered (embedded/test use), a permissive default applies.
func (a *App) matchHost(authority string) *ListeningHost {
	if len(a.hosts) == 0 {
		return &defaultHost
	}
	for _, h := range a.hosts {
		if h.matchesAuthority(authority) {
			return h
		}
	}
	return nil
}

var defaultHost = ListeningHost{Label: "default"}

// mapError converts an error kind to its response per the taxonomy.
func (a *App) mapError(c *Context, err error) *Response {
	status := 500
	switch {
	case errors.Is(err, ErrRouteNotFound):
		status = 404
	case errors.Is(err, ErrMethodNotAllowed):
		status = 405
	case errors.Is(err, ErrCorsRejected):
		status = 403
	case errors.Is(err, ErrInvalidHost):
		status = 421
	case errors.Is(err, ErrPayloadTooLarge), errors.Is(err, wire.ErrPayloadTooLarge):
		status = 413
	case errors.Is(err, ErrBadRequest):
		status = 400
	case errors.Is(err, ErrBodyAlreadyConsumed), errors.Is(err, ErrWriteAfterFlush):
		status = 500
	default:
		if strings.HasPrefix(err.Error(), "multipart:") {
			status = 400
		}
	}
	if status >= 500 {
		a.logException(err)
	}
	return a.errorResponse(c, status, err)
}

// errorResponse renders a status through the overridable status-code
// mapping. Error bodies are minimal diagnostics; stack traces never
// appear unless DebugErrors is explicitly on.
func (a *App) errorResponse(c *Context, status int, err error) *Response {
	if build, ok := a.statusHandlers[status]; ok {
		if res := build(c); res != nil {
			return res
		}
	}
	body := wire.StatusText(status)
	if a.config.ErrorDetailInBody && err != nil && status < 500 {
		body = err.Error()
	}
	if a.config.DebugErrors && err != nil {
		body = err.Error()
	}
	return Text(status, body)
}

// ---- Serialization (C5 → C1) ----

// chunkBodyWriter adapts Content.WriteTo to chunk framing.
type chunkBodyWriter struct {
	rw *wire.ResponseWriter
}

func (w chunkBodyWriter) Write(p []byte) (int, error) {
	if err := w.rw.WriteChunk(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// writeResponse serializes a framework response through the wire
// writer: status line, user headers in order (duplicates preserved),
// default Content-Type, then the framing decision — Content-Length
// when the length is known, chunked otherwise or when forced. HEAD
// responses keep the GET-equivalent headers with the body suppressed.
func (a *App) writeResponse(c *Context, rw *wire.ResponseWriter, res *Response) error {
	if res.streamed {
		return nil
	}
	rw.WriteHeaderWithReason(res.Status, res.Reason)

	if a.config.IncludeRequestIdHeader && !res.HasHeader("X-Request-Id") {
		_ = res.AddHeader("X-Request-Id", c.TraceID())
	}

	var hdrErr error
	res.VisitHeaders(func(name, value string) bool {
		if err := rw.AddHeader([]byte(name), []byte(value)); err != nil {
			hdrErr = err
			return false
		}
		return true
	})
	if hdrErr != nil {
		return hdrErr
	}

	if res.Content != nil && !res.HasHeader("Content-Type") {
		if err := rw.AddHeader([]byte("Content-Type"), []byte(res.Content.ContentType())); err != nil {
			return err
		}
	}

	length := res.ContentLength()
	chunked := res.Chunked || length == LengthUnknown

	res.markFlushed()

	if chunked {
		if res.Content != nil {
			if _, err := res.Content.WriteTo(chunkBodyWriter{rw}); err != nil {
				return err
			}
		}
		return rw.FinishChunked()
	}

	// Status codes defined to have no body carry no Content-Length.
	if res.Status != 204 && res.Status != 304 {
		if err := rw.AddHeader([]byte("Content-Length"), []byte(strconv.FormatInt(length, 10))); err != nil {
			return err
		}
	}

	if res.Content != nil && length > 0 {
		if _, err := res.Content.WriteTo(rw); err != nil {
			return err
		}
		return nil
	}
	// Header-only response: force the head out.
	return rw.Flush()
}

// ---- Streaming endpoints (C7) ----

// EventSource switches the response to a Server-Sent Events stream:
// keep-alive off, text/event-stream, proxy buffering disabled,
// chunked framing. The returned source serializes concurrent sends.
func (c *Context) EventSource() (*sse.EventSource, error) {
	rw := c.rw
	if rw == nil {
		return nil, fmt.Errorf("volt: no live connection for SSE")
	}
	rw.SetKeepAlive(false)
	rw.WriteHeader(200)
	if err := rw.AddHeader([]byte("Content-Type"), []byte("text/event-stream")); err != nil {
		return nil, err
	}
	_ = rw.AddHeader([]byte("Cache-Control"), []byte("no-cache"))
	_ = rw.AddHeader([]byte("X-Accel-Buffering"), []byte("no"))
	_ = rw.AddHeader([]byte("Transfer-Encoding"), []byte("chunked"))
	if err := rw.Flush(); err != nil {
		return nil, err
	}
	return sse.New(rw), nil
}

// UpgradeWebSocket performs the RFC 6455 handshake on an
// Upgrade: websocket request and hands back the framed connection.
// The HTTP connection loop stops; the socket belongs to the returned
// Conn.
func (c *Context) UpgradeWebSocket() (*ws.Conn, error) {
	rw := c.rw
	req := c.req
	if rw == nil || rw.NetConn() == nil {
		return nil, fmt.Errorf("volt: no live connection for websocket upgrade")
	}
	if !req.IsUpgrade([]byte("websocket")) {
		return nil, ws.ErrNotWebSocket
	}
	key := c.Header("Sec-WebSocket-Key")
	if key == "" {
		return nil, ws.ErrBadWebSocketKey
	}

	rw.Hijack()
	netConn := rw.NetConn()

	// 101 with the computed accept key, then the raw duplex stream
	// belongs to the websocket component.
	if err := ws.WriteUpgradeResponse(netConn, key, ""); err != nil {
		return nil, err
	}
	conn := ws.NewServerConn(netConn, 4096, 4096, "")
	if c.server != nil && c.server.config.IdleConnectionTimeout > 0 {
		conn.SetIdleTimeout(c.server.config.IdleConnectionTimeout)
	}
	return conn, nil
}

// Streamed is the action return value for endpoints that wrote the
// wire themselves (SSE, WebSocket): the dispatcher skips response
// serialization.
func Streamed() *Response {
	return &Response{Status: 200, streamed: true}
}

// ---- Logging ----

// logAccess emits the post-response access-log line.
func (a *App) logAccess(c *Context, result string) {
	if a.accessLog == nil {
		return
	}
	host, port := splitAuthority(c.Host())
	record := logstream.AccessRecord{
		Time:              c.RequestTime(),
		RemoteIP:          trimPort(c.RemoteAddr()),
		Method:            c.Method(),
		Scheme:            c.Scheme(),
		Authority:         c.Host(),
		Host:              host,
		Port:              port,
		Path:              c.Path(),
		Query:             c.RawQuery(),
		Status:            c.Status,
		StatusDescription: wire.StatusText(c.Status),
		BytesIn:           c.BytesIn,
		BytesOut:          c.BytesOut,
		ElapsedMs:         c.Elapsed.Milliseconds(),
		ExecutionResult:   result,
		HeaderLookup:      func(name string) string { return c.Header(name) },
	}
	a.accessLog.WriteLine(logstream.FormatAccessLog(a.config.AccessLogFormat, record))
}

// logException appends an exception dump to the error stream.
func (a *App) logException(err error) {
	if a.errorLog != nil {
		a.errorLog.WriteException(err)
	}
}

func splitAuthority(authority string) (host, port string) {
	if idx := strings.LastIndexByte(authority, ':'); idx >= 0 {
		return authority[:idx], authority[idx+1:]
	}
	return authority, ""
}

func trimPort(addr string) string {
	if idx := strings.LastIndexByte(addr, ':'); idx >= 0 {
		return addr[:idx]
	}
	return addr
}

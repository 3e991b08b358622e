// Package wserver runs the accept loops and connection scheduling for
// the wire engine: one cooperative goroutine per accepted connection,
// strictly serial request handling inside each, graceful drain on
// shutdown.
package wserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voltframework/volt/wire"
)

// Config tunes the server's connection handling.
type Config struct {
	// Connection carries per-connection timeouts, buffer sizes and
	// parse limits.
	Connection wire.ConnectionConfig

	// GracePeriod is how long Stop waits for in-flight connections to
	// drain before forcibly closing their sockets.
	GracePeriod time.Duration

	// TLS, when set, wraps bound https listeners.
	TLS *tls.Config

	// Metrics receives connection/request observations; nil disables
	// instrumentation.
	Metrics *Metrics
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Connection:  wire.DefaultConnectionConfig(),
		GracePeriod: 30 * time.Second,
	}
}

// Server owns listeners and their connections. The server owns each
// connection; a connection owns its per-request state.
type Server struct {
	handler wire.Handler
	config  Config

	mu        sync.Mutex
	listeners []net.Listener
	conns     map[*wire.Connection]struct{}

	acceptWG sync.WaitGroup
	connWG   sync.WaitGroup

	baseCtx   context.Context
	cancelCtx context.CancelFunc

	started atomic.Bool
	stopped atomic.Bool
}

// New creates a server dispatching requests to handler.
func New(config Config, handler wire.Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		handler:   handler,
		config:    config,
		conns:     make(map[*wire.Connection]struct{}),
		baseCtx:   ctx,
		cancelCtx: cancel,
	}
}

// ShutdownContext is canceled when Stop begins; request contexts fuse
// it with their per-request timeout.
func (s *Server) ShutdownContext() context.Context {
	return s.baseCtx
}

// Bind opens a plain TCP listener on addr ("host:port"). For https
// prefixes set tlsEnabled; the configured TLS config wraps the
// listener.
func (s *Server) Bind(addr string, tlsEnabled bool) error {
	if s.started.Load() {
		return fmt.Errorf("wserver: bind after start")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	if tlsEnabled {
		if s.config.TLS == nil {
			ln.Close()
			return fmt.Errorf("wserver: https prefix %q without a TLS config", addr)
		}
		ln = tls.NewListener(ln, s.config.TLS)
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
	return nil
}

// BindListener adopts an externally created listener (tests,
// pre-wrapped TLS).
func (s *Server) BindListener(ln net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()
}

// Addrs returns the bound listener addresses.
func (s *Server) Addrs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	addrs := make([]string, 0, len(s.listeners))
	for _, ln := range s.listeners {
		addrs = append(addrs, ln.Addr().String())
	}
	return addrs
}

// Start launches one accept loop per bound listener.
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("wserver: already started")
	}
	s.mu.Lock()
	listeners := make([]net.Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	if len(listeners) == 0 {
		return fmt.Errorf("wserver: no listeners bound")
	}

	for _, ln := range listeners {
		s.acceptWG.Add(1)
		go s.acceptLoop(ln)
	}
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.acceptWG.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			// Listener fault: stop this loop; other prefixes keep
			// accepting.
			return
		}
		s.connWG.Add(1)
		go s.serveConn(conn)
	}
}

// serveConn runs one connection's serial request loop.
func (s *Server) serveConn(netConn net.Conn) {
	defer s.connWG.Done()

	c := wire.NewConnection(netConn, s.config.Connection, s.instrumented())

	s.mu.Lock()
	if s.stopped.Load() {
		s.mu.Unlock()
		c.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	if m := s.config.Metrics; m != nil {
		m.ConnectionOpened()
	}

	_ = c.Serve()
	// An upgraded (hijacked) socket belongs to its new protocol; the
	// HTTP loop must not close it.
	if !c.Hijacked() {
		c.Close()
	}

	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	if m := s.config.Metrics; m != nil {
		m.ConnectionClosed()
	}
}

// instrumented wraps the handler with request metrics.
func (s *Server) instrumented() wire.Handler {
	m := s.config.Metrics
	if m == nil {
		return s.handler
	}
	return func(req *wire.Request, rw *wire.ResponseWriter) error {
		start := time.Now()
		err := s.handler(req, rw)
		m.RequestServed(rw.Status(), req.BodyBytesRead(), rw.BytesWritten(), time.Since(start))
		return err
	}
}

// Stop signals shutdown: accepting stops immediately, the shutdown
// context cancels, in-flight connections get GracePeriod to drain,
// then remaining sockets are forcibly closed.
func (s *Server) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.mu.Unlock()

	s.cancelCtx()

	done := make(chan struct{})
	go func() {
		s.connWG.Wait()
		close(done)
	}()

	grace := s.config.GracePeriod
	if grace <= 0 {
		grace = time.Nanosecond
	}
	select {
	case <-done:
	case <-time.After(grace):
		// Force-close stragglers.
		s.mu.Lock()
		for c := range s.conns {
			c.Close()
		}
		s.mu.Unlock()
		<-done
	}

	s.acceptWG.Wait()
	return nil
}

// ActiveConnections reports the live connection count.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

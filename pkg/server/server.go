// Package server implements the connection-oriented HTTP/1.1 server:
// listener set, per-connection state machine, and routing dispatch (spec
// section 4.H), grounded on cpphttp's CoreServer (one thread per accepted
// connection, routed into a user-supplied handler) and the teacher's
// Transport.hostPools sync.Map-of-live-resources pattern, generalized here
// from "pool of client connections per host" to a set of the server's live
// connections. Shutdown closes the listeners only; it does not close or
// wait for the connections in that set.
package server

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/log"
	"github.com/corewire/httpcore/pkg/metrics"
	"github.com/corewire/httpcore/pkg/reactor"
	"github.com/corewire/httpcore/pkg/router"
	"github.com/corewire/httpcore/pkg/socket"
	"github.com/corewire/httpcore/pkg/wire"
)

// Handler processes one matched request and returns the Response to send.
// Returning an *errors.ErrorResponse sets status and body as described in
// spec section 4.H step 2; any other error becomes a 500.
type Handler func(req *wire.Request, params map[string]string) (*wire.Response, error)

// ListenerConfig describes one bind address (spec section 4.H
// "Configuration").
type ListenerConfig struct {
	Addr string
	Port uint16
	TLS  bool
	Cert *socket.PrivateCert
}

// ErrorPageFunc renders a parser failure into a Response; the default
// implementation is usable as-is, but a caller may override presentation
// (e.g. HTML instead of plain text).
type ErrorPageFunc func(status int, message string) *wire.Response

// Server owns a listener set, a router, and the set of live connections
// (each added on accept and removed when its goroutine ends).
type Server struct {
	listeners []ListenerConfig
	router    *router.Router
	reactor   *reactor.Reactor
	errorPage ErrorPageFunc

	mu    sync.Mutex
	conns map[uint64]*connection
	lns   []net.Listener
}

// New returns a Server bound to listeners, dispatching matched requests
// through rt.
func New(listeners []ListenerConfig, rt *router.Router) *Server {
	return &Server{
		listeners: listeners,
		router:    rt,
		reactor:   reactor.New(),
		errorPage: defaultErrorPage,
		conns:     make(map[uint64]*connection),
	}
}

// Handle registers h for method and pattern (see pkg/router for the
// pattern grammar).
func (s *Server) Handle(method wire.Method, pattern string, h Handler) error {
	return s.router.Add(method, pattern, h)
}

// SetErrorPage overrides the parser-error response renderer.
func (s *Server) SetErrorPage(fn ErrorPageFunc) {
	s.errorPage = fn
}

func defaultErrorPage(status int, message string) *wire.Response {
	h := wire.NewHeaders()
	h.SetContentType("text/plain", "")
	return &wire.Response{
		Status:  wire.Status{Code: status, Msg: wire.DefaultStatusMsg(status)},
		Headers: h,
		Body:    []byte(message),
	}
}

func (s *Server) parserErrorPage(status int, message string) *wire.Response {
	return s.errorPage(status, message)
}

// dispatch resolves req through the router and invokes the matched
// handler, or returns a 404/405 *errors.ErrorResponse when no handler
// matches (spec section 4.I "callers turn 'no match' into 404").
func (s *Server) dispatch(req *wire.Request) (*wire.Response, map[string]string, error) {
	path := "/"
	if req.Url != nil {
		path = req.Url.Path
	}

	h, params, err := s.router.Get(req.Method, path)
	if err != nil {
		return nil, nil, err
	}
	if h == nil {
		return nil, nil, errors.NotFound("no route for " + req.Method.String() + " " + path)
	}
	handler, ok := h.(Handler)
	if !ok {
		return nil, nil, errors.NewValidationError("route handler has the wrong type")
	}
	resp, herr := handler(req, params)
	return resp, params, herr
}

// Run binds every configured listener and blocks, accepting connections
// until ctx is canceled (spec section 4.H "run loop").
func (s *Server) Run(ctx context.Context) error {
	for _, lc := range s.listeners {
		ln, err := net.Listen("tcp", net.JoinHostPort(lc.Addr, strconv.Itoa(int(lc.Port))))
		if err != nil {
			return errors.NewConnectionError(lc.Addr, int(lc.Port), err)
		}
		s.mu.Lock()
		s.lns = append(s.lns, ln)
		s.mu.Unlock()

		go s.acceptLoop(ctx, ln, lc)
	}

	<-ctx.Done()
	s.Shutdown()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, lc ListenerConfig) {
	listenerID := s.reactor.NextListenerID()
	for {
		if ctx.Err() != nil {
			return
		}
		done := make(chan struct{})
		s.reactor.Accept(listenerID, ln, func(conn net.Conn) {
			s.handleAccepted(conn, lc)
			close(done)
		}, func(err error) {
			if !errors.IsAborted(err) {
				log.Warnf("accept on %s failed: %v", ln.Addr(), err)
			}
			close(done)
		})
		<-done
	}
}

func (s *Server) handleAccepted(conn net.Conn, lc ListenerConfig) {
	metrics.ConnectionsAccepted.Inc()
	tcpSock := socket.WrapTCP(conn)

	var sock socket.Socket = tcpSock
	if lc.TLS {
		tlsSock, err := socket.AcceptTLS(tcpSock, lc.Cert)
		if err != nil {
			log.Warnf("TLS handshake failed for %s: %v", tcpSock.PeerAddress(), err)
			tcpSock.Close()
			return
		}
		sock = tlsSock
	}

	c := newConnection(s, sock)
	s.mu.Lock()
	s.conns[sock.ID()] = c
	s.mu.Unlock()

	go func() {
		c.run()
		s.mu.Lock()
		delete(s.conns, sock.ID())
		s.mu.Unlock()
	}()
}

// Shutdown stops accepting new connections, closes every listener, and
// aborts the reactor so in-flight accepts unwind quietly (spec section
// 4.G "Aborted is observed as a quiet shutdown").
func (s *Server) Shutdown() {
	s.mu.Lock()
	lns := s.lns
	s.lns = nil
	s.mu.Unlock()

	for _, ln := range lns {
		ln.Close()
	}
	s.reactor.Exit()
}

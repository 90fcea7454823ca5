package server

import (
	"strconv"
	"strings"

	"github.com/corewire/httpcore/pkg/constants"
	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/log"
	"github.com/corewire/httpcore/pkg/metrics"
	"github.com/corewire/httpcore/pkg/parser"
	"github.com/corewire/httpcore/pkg/socket"
	"github.com/corewire/httpcore/pkg/wire"
	"github.com/corewire/httpcore/pkg/writer"
)

// connState is one stage of a connection's per-request lifecycle (spec
// section 4.H "Connection state machine").
type connState int

const (
	stateReading connState = iota
	stateHandling
	stateWriting
	stateKeepAlive
	stateClosing
)

// connection drives one accepted socket through Reading → Handling →
// Writing → KeepAlive/Closing, looping back to Reading on keep-alive (spec
// section 4.H). Each connection runs on its own goroutine; that goroutine
// IS the per-socket FIFO the reactor's design note calls for, so this type
// calls Socket methods directly rather than routing through
// pkg/reactor — there is never more than one pending operation against the
// same socket at a time.
type connection struct {
	srv             *Server
	sock            socket.Socket
	p               *parser.Parser
	buf             []byte
	bufLen          int
	keepAlive       bool
	pendingResponse *wire.Response
}

func newConnection(srv *Server, sock socket.Socket) *connection {
	return &connection{
		srv:  srv,
		sock: sock,
		p:    parser.NewRequestParser(),
		buf:  make([]byte, constants.LineSize),
	}
}

func (c *connection) run() {
	defer func() {
		c.sock.Disconnect()
		log.Debugf("connection %d closed", c.sock.ID())
	}()

	state := stateReading
	for {
		switch state {
		case stateReading:
			next, err := c.doReading()
			if err != nil {
				c.handleReadError(err)
				return
			}
			state = next
		case stateHandling:
			state = c.doHandling()
		case stateWriting:
			if err := c.doWriting(); err != nil {
				log.Warnf("connection %d: write failed: %v", c.sock.ID(), err)
				return
			}
			state = stateKeepAlive
		case stateKeepAlive:
			if c.keepAlive {
				c.p.ResetRequest()
				state = stateReading
				continue
			}
			state = stateClosing
		case stateClosing:
			return
		}
	}
}

// doReading feeds bytes to the parser until a full request is available,
// compacting the buffer between reads (spec section 4.H step 1).
func (c *connection) doReading() (connState, error) {
	for c.p.State() != parser.StateCompleted {
		if c.bufLen == len(c.buf) {
			return 0, errors.NewParserErrorStatus("request line or headers exceed the line size limit", 414)
		}
		n, err := c.sock.Recv(c.buf[c.bufLen:])
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, errors.Aborted
		}
		c.bufLen += n

		consumed, ferr := c.p.Feed(c.buf[:c.bufLen])
		if ferr != nil {
			return 0, ferr
		}
		remaining := c.bufLen - consumed
		copy(c.buf, c.buf[consumed:c.bufLen])
		c.bufLen = remaining
	}
	return stateHandling, nil
}

func (c *connection) handleReadError(err error) {
	if errors.IsAborted(err) {
		return
	}
	status := 400
	message := err.Error()
	if perr, ok := err.(*errors.ParserError); ok {
		if perr.SuggestedStatus != 0 {
			status = perr.SuggestedStatus
		}
		message = perr.Message
	}
	metrics.ParserErrors.WithLabelValues(statusLabel(status)).Inc()
	resp := c.srv.parserErrorPage(status, message)
	writer.WriteResponse(c.sock, resp, wire.GET)
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}

// doHandling builds the Request, invokes the user handler, and prepares
// the Response slot (spec section 4.H step 2).
func (c *connection) doHandling() connState {
	body, err := c.p.TakeBody().ReadAll()
	if err != nil {
		body = nil
	}
	req := &wire.Request{
		Method:  c.p.Method(),
		RawUrl:  c.p.URI(),
		Headers: c.p.TakeHeaders(),
		Body:    body,
	}
	if u, perr := wire.ParseRequest(c.p.URI()); perr == nil {
		req.Url = u
	}

	c.keepAlive = strings.EqualFold(req.Headers.Get("Connection"), "keep-alive")

	resp, _, err := c.srv.dispatch(req)
	if err != nil {
		c.keepAlive = false
		resp = responseFromError(err)
	}
	c.pendingResponse = resp
	return stateWriting
}

func responseFromError(err error) *wire.Response {
	if er, ok := err.(*errors.ErrorResponse); ok {
		h := wire.NewHeaders()
		h.SetContentType("text/plain", "")
		return &wire.Response{
			Status:  wire.Status{Code: er.StatusCode, Msg: wire.DefaultStatusMsg(er.StatusCode)},
			Headers: h,
			Body:    []byte(er.Message),
		}
	}
	h := wire.NewHeaders()
	h.SetContentType("text/plain", "")
	return &wire.Response{
		Status:  wire.Status{Code: 500, Msg: wire.DefaultStatusMsg(500)},
		Headers: h,
		Body:    []byte(err.Error()),
	}
}

// doWriting renders and sends the pending Response (spec section 4.H step
// 3).
func (c *connection) doWriting() error {
	resp := c.pendingResponse
	if resp.Headers == nil {
		resp.Headers = wire.NewHeaders()
	}
	if c.keepAlive {
		resp.Headers.Set("Connection", "keep-alive")
	} else {
		resp.Headers.Set("Connection", "close")
	}

	metrics.RequestsServed.WithLabelValues(metrics.StatusClass(resp.Status.Code)).Inc()
	return writer.WriteResponse(c.sock, resp, c.p.Method())
}

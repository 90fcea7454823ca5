// Package client implements the sync connection (spec section 4.J) and
// pooled async client (spec section 4.K), a ground-up rewrite of
// WhileEndless-go-rawhttp's pkg/client.Client + pkg/transport.Transport:
// net.Conn+bufio is replaced by the Socket+Parser+Writer stack built for
// this module, and the teacher's blocking one-shot Do is replaced by a
// persistent, reusable Connection plus the FIFO-queued worker pool this
// package adds on top of it.
package client

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/corewire/httpcore/pkg/constants"
	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/parser"
	"github.com/corewire/httpcore/pkg/socket"
	"github.com/corewire/httpcore/pkg/wire"
	"github.com/corewire/httpcore/pkg/writer"
)

// Connection owns a replaceable Socket and sends one request, then
// receives one response, at a time (spec section 4.J).
type Connection struct {
	sock socket.Socket
	buf  []byte
}

// NewConnection wraps sock (which may be nil; SendRequest fails until a
// socket is attached via SetSocket).
func NewConnection(sock socket.Socket) *Connection {
	return &Connection{sock: sock, buf: make([]byte, constants.LineSize)}
}

// SetSocket replaces the owned socket, e.g. after a prior one died.
func (c *Connection) SetSocket(sock socket.Socket) {
	c.sock = sock
}

// Socket returns the currently owned socket, or nil.
func (c *Connection) Socket() socket.Socket {
	return c.sock
}

// IsConnected reports whether the connection has a live socket that has
// not been closed by the peer (spec section 4.J "is_connected").
func (c *Connection) IsConnected() bool {
	if c.sock == nil {
		return false
	}
	disconnected, err := c.sock.CheckRecvDisconnect()
	if err != nil {
		return false
	}
	return !disconnected
}

// SendRequest fills in default framing and writes req to the wire (spec
// section 4.J "send_request").
func (c *Connection) SendRequest(req *wire.Request) error {
	if c.sock == nil {
		return errors.NewValidationError("connection has no socket attached")
	}
	if req.Headers == nil {
		req.Headers = wire.NewHeaders()
	}
	return writer.WriteRequest(c.sock, req)
}

// RecvResponse reads and parses one complete response for a request that
// used method (spec section 4.J "recv_response"): recv into a LINE_SIZE
// buffer, feed to the parser, compact, repeat until COMPLETED; any bytes
// left over after COMPLETED are unexpected pipelined data and are an
// error since this engine never pipelines requests on one connection.
func (c *Connection) RecvResponse(ctx context.Context, method wire.Method) (*wire.Response, error) {
	if c.sock == nil {
		return nil, errors.NewValidationError("connection has no socket attached")
	}

	p := parser.NewResponseParser(method)
	bufLen := 0

	for p.State() != parser.StateCompleted {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if bufLen == len(c.buf) {
			return nil, errors.NewParserErrorStatus("response line or headers exceed the line size limit", 431)
		}

		n, err := c.sock.Recv(c.buf[bufLen:])
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, errors.NewIOError("reading response", errUnexpectedClose)
		}
		bufLen += n

		consumed, ferr := p.Feed(c.buf[:bufLen])
		if ferr != nil {
			return nil, ferr
		}
		if consumed == 0 && bufLen == len(c.buf) {
			return nil, errors.NewParserErrorStatus("parser made no progress on a full buffer", 431)
		}
		remaining := bufLen - consumed
		copy(c.buf, c.buf[consumed:bufLen])
		bufLen = remaining
	}

	if bufLen > 0 {
		return nil, errors.NewProtocolError("unexpected bytes after response completed", nil)
	}

	body, err := p.TakeBody().ReadAll()
	if err != nil {
		body = nil
	}

	return &wire.Response{
		Status:  p.Status(),
		Headers: p.TakeHeaders(),
		Body:    body,
	}, nil
}

// Close releases the owned socket, if any.
func (c *Connection) Close() error {
	if c.sock == nil {
		return nil
	}
	err := c.sock.Close()
	c.sock = nil
	return err
}

var errUnexpectedClose = stderrors.New("connection closed before response completed")

// DialTimeout is the default timeout DefaultFactory and ProxyFactory use
// when a caller does not specify one.
const DialTimeout = 10 * time.Second

package socket

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/corewire/httpcore/pkg/errors"
)

// TCPSocket is the plain-TCP Socket implementation (spec section 4.E).
type TCPSocket struct {
	id   uint64
	conn net.Conn
	br   *bufio.Reader
	peer string
}

// DialTCP resolves host:port and connects, preferring the first address
// the resolver returns (spec section 4.E "Connect": "IPv4 primary, first
// successful address wins" — net.Dialer already tries addresses in the
// resolver's returned order and happy-eyeballs between families).
func DialTCP(ctx context.Context, host string, port uint16, timeout time.Duration) (*TCPSocket, error) {
	dialer := &net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(host, portStr(port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.NewConnectionError(host, int(port), err)
	}
	return WrapTCP(conn), nil
}

// WrapTCP adapts an already-connected net.Conn (e.g. from a listener's
// Accept or a proxy CONNECT tunnel) into a TCPSocket.
func WrapTCP(conn net.Conn) *TCPSocket {
	return &TCPSocket{
		id:   allocID(),
		conn: conn,
		br:   bufio.NewReader(conn),
		peer: conn.RemoteAddr().String(),
	}
}

func portStr(port uint16) string {
	return strconv.Itoa(int(port))
}

func (s *TCPSocket) ID() uint64           { return s.id }
func (s *TCPSocket) PeerAddress() string  { return s.peer }
func (s *TCPSocket) RecvPending() bool    { return s.br.Buffered() > 0 }
func (s *TCPSocket) Conn() net.Conn       { return s.conn }

// Recv reads up to len(buf) bytes.
func (s *TCPSocket) Recv(buf []byte) (int, error) {
	n, err := s.br.Read(buf)
	if err == io.EOF {
		// A clean remote close is reported as (0, nil).
		return n, nil
	}
	if err != nil {
		return n, errors.NewIOError("reading from socket", err)
	}
	return n, nil
}

// Send writes buf once, which may be a short write.
func (s *TCPSocket) Send(buf []byte) (int, error) {
	n, err := s.conn.Write(buf)
	if err != nil {
		return n, errors.NewIOError("writing to socket", err)
	}
	if n == 0 && len(buf) > 0 {
		return 0, errors.NewIOError("writing to socket", io.ErrShortWrite)
	}
	return n, nil
}

// SendAll repeats Send until buf is fully sent (spec section 4.D).
func (s *TCPSocket) SendAll(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.Send(buf[total:])
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// CheckRecvDisconnect peeks one byte under an immediate deadline: a
// timeout means "not readable" (false, nil); EOF means a clean remote
// close (true, nil); any actual byte is unexpected protocol data and is
// an error (spec section 4.E).
func (s *TCPSocket) CheckRecvDisconnect() (bool, error) {
	if err := s.conn.SetReadDeadline(time.Now()); err != nil {
		return false, errors.NewIOError("setting read deadline", err)
	}
	defer s.conn.SetReadDeadline(time.Time{})

	_, err := s.br.Peek(1)
	switch {
	case err == nil:
		return false, errors.NewProtocolError("unexpected data while checking for peer disconnect", nil)
	case err == io.EOF:
		return true, nil
	default:
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return false, errors.NewIOError("checking for peer disconnect", err)
	}
}

// Disconnect half-closes the write side, waits up to ~1s for the peer's
// own FIN, then closes (spec section 4.E).
func (s *TCPSocket) Disconnect() error {
	if tcp, ok := s.conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	deadline := time.Now().Add(1 * time.Second)
	for time.Now().Before(deadline) {
		done, err := s.CheckRecvDisconnect()
		if err != nil || done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return s.Close()
}

func (s *TCPSocket) Close() error {
	return s.conn.Close()
}

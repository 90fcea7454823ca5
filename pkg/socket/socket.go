// Package socket provides the stream socket abstraction shared by the
// server and client: a plain TCP implementation and a TLS implementation
// layered over it, plus proxy dialing adapted from
// WhileEndless-go-rawhttp's pkg/transport connectViaHTTPProxy/
// connectViaSOCKS4Proxy/connectViaSOCKS5Proxy (spec section 4.D/E/F).
//
// The design note in the spec calls for a tagged variant in place of the
// original's virtual dispatch (two concrete sockets behind one
// interface). It also calls for the async methods to live on that same
// type rather than on separate virtual slots; here that's realized by
// reactor.Reactor driving a Socket's blocking Recv/Send/SendAll on
// per-socket dispatcher goroutines rather than by the socket itself
// exposing separate async entry points — Go's net package already
// multiplexes blocking calls onto the OS poller, so a second non-blocking
// code path (the BIO-juggling the spec's 4.F describes for OpenSSL/
// Schannel) would only duplicate what the runtime does for us.
package socket

import "sync/atomic"

// Role fixes whether a TLS socket runs the client or server side of the
// handshake (spec section 4.F "the role is fixed at construction").
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

var nextID uint64

func allocID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

// Socket is the polymorphic stream socket contract (spec section 4.D).
// Ownership is exclusive: closing or dropping the last reference releases
// the OS handle.
type Socket interface {
	// ID is an opaque per-socket handle stable for the socket's lifetime,
	// used by the reactor to refer to a socket without holding a strong
	// reference to it (spec section 9 "arena-owned connections with
	// integer handles").
	ID() uint64

	// PeerAddress returns the remote address for display/logging.
	PeerAddress() string

	// RecvPending reports whether application data is already available
	// without a further read from the OS (spec section 4.F).
	RecvPending() bool

	// Recv blocks until data arrives and reads it into buf, returning the
	// number of bytes read. A clean remote close is reported as (0, nil).
	Recv(buf []byte) (int, error)

	// Send writes buf, returning the number of bytes actually accepted.
	Send(buf []byte) (int, error)

	// SendAll calls Send repeatedly until all of buf is sent or an error
	// occurs; a zero-byte Send result is treated as an error (spec
	// section 4.D).
	SendAll(buf []byte) (int, error)

	// CheckRecvDisconnect is a non-blocking peek that succeeds (true) only
	// on a clean remote close; any application data observed during the
	// peek is an error (spec section 4.E).
	CheckRecvDisconnect() (bool, error)

	// Disconnect shuts the connection down gracefully, then releases the
	// OS handle. TCPSocket half-closes the send side and waits briefly for
	// the peer's own close; TLSSocket sends close-notify and closes
	// without waiting.
	Disconnect() error

	// Close releases the OS handle immediately.
	Close() error
}

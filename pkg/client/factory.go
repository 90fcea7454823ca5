package client

import (
	"context"
	"time"

	"github.com/corewire/httpcore/pkg/socket"
)

// SocketFactory abstracts "how to obtain a connected socket to host:port"
// (spec sections 4.K and 9 "a trait/interface for user-supplied
// SocketFactory"). DefaultFactory dials directly; ProxyFactory tunnels
// through an HTTP-CONNECT/SOCKS4/SOCKS5 proxy.
type SocketFactory interface {
	Dial(ctx context.Context, host string, port uint16, useTLS bool) (socket.Socket, error)
}

// DefaultFactory dials host:port directly, optionally wrapping the
// connection in TLS.
type DefaultFactory struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

func (f *DefaultFactory) Dial(ctx context.Context, host string, port uint16, useTLS bool) (socket.Socket, error) {
	if useTLS {
		return socket.DialTLS(ctx, host, port, f.Timeout, f.InsecureSkipVerify)
	}
	return socket.DialTCP(ctx, host, port, f.Timeout)
}

// ProxyFactory dials through a configured proxy, upgrading the tunneled
// connection to TLS itself when useTLS is set (the proxy only sees the
// CONNECT target, never the inner handshake).
type ProxyFactory struct {
	Dialer             *socket.ProxyDialer
	InsecureSkipVerify bool
}

func (f *ProxyFactory) Dial(ctx context.Context, host string, port uint16, useTLS bool) (socket.Socket, error) {
	tcpSock, err := f.Dialer.Dial(ctx, host, port)
	if err != nil {
		return nil, err
	}
	if !useTLS {
		return tcpSock, nil
	}
	return socket.UpgradeClientTLS(ctx, tcpSock, host, port, f.Dialer.Timeout, f.InsecureSkipVerify)
}

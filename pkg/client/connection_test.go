package client

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/corewire/httpcore/pkg/socket"
	"github.com/corewire/httpcore/pkg/wire"
)

func servePlainTCP(t *testing.T, respond func(conn net.Conn)) (*socket.TCPSocket, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
			respond(conn)
		}
	}()

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientSock, err := socket.DialTCP(ctx, "127.0.0.1", uint16(port), time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	return clientSock, func() {
		clientSock.Close()
		ln.Close()
	}
}

func TestConnectionSendRequestAndRecvResponse(t *testing.T) {
	clientSock, cleanup := servePlainTCP(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil || line == "\r\n" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
	})
	defer cleanup()

	conn := NewConnection(clientSock)
	req := &wire.Request{Method: wire.GET, RawUrl: "/x", Headers: wire.NewHeaders()}
	req.Headers.Set("Host", "example.com")
	if err := conn.SendRequest(req); err != nil {
		t.Fatalf("SendRequest: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := conn.RecvResponse(ctx, wire.GET)
	if err != nil {
		t.Fatalf("RecvResponse: %v", err)
	}
	if resp.Status.Code != 200 {
		t.Fatalf("Status.Code = %d, want 200", resp.Status.Code)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("Body = %q, want %q", resp.Body, "ok")
	}
}

func TestConnectionRecvResponseNoSocketIsError(t *testing.T) {
	conn := NewConnection(nil)
	_, err := conn.RecvResponse(context.Background(), wire.GET)
	if err == nil {
		t.Fatalf("expected an error when no socket is attached")
	}
}

func TestConnectionIsConnectedFalseAfterClose(t *testing.T) {
	clientSock, cleanup := servePlainTCP(t, func(conn net.Conn) {
		conn.Close()
	})
	defer cleanup()

	conn := NewConnection(clientSock)
	time.Sleep(50 * time.Millisecond)
	if conn.IsConnected() {
		t.Fatalf("expected IsConnected to be false once the peer has closed")
	}
}

func TestConnectionCloseReleasesSocket(t *testing.T) {
	clientSock, cleanup := servePlainTCP(t, func(conn net.Conn) {
		conn.Close()
	})
	defer cleanup()

	conn := NewConnection(clientSock)
	if err := conn.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if conn.Socket() != nil {
		t.Fatalf("expected Socket() to be nil after Close")
	}
}

package reactor

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/socket"
)

func listenLoopback(t *testing.T) (net.Listener, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return ln, uint16(port)
}

func dialPair(t *testing.T) (*socket.TCPSocket, *socket.TCPSocket, func()) {
	t.Helper()
	ln, port := listenLoopback(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := socket.DialTCP(ctx, "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	server := socket.WrapTCP(<-accepted)
	cleanup := func() {
		client.Close()
		server.Close()
		ln.Close()
	}
	return client, server, cleanup
}

func TestRecvAndSendRoundTrip(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()

	r := New()
	defer r.Exit()

	sent := make(chan int, 1)
	sendErr := make(chan error, 1)
	r.SendAll(client, []byte("ping"), func(n int) { sent <- n }, func(err error) { sendErr <- err })

	select {
	case n := <-sent:
		if n != 4 {
			t.Fatalf("SendAll n = %d, want 4", n)
		}
	case err := <-sendErr:
		t.Fatalf("SendAll error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("SendAll did not complete")
	}

	buf := make([]byte, 4)
	recvd := make(chan int, 1)
	recvErr := make(chan error, 1)
	r.Recv(server, buf, func(n int) { recvd <- n }, func(err error) { recvErr <- err })

	select {
	case n := <-recvd:
		if string(buf[:n]) != "ping" {
			t.Fatalf("received %q, want %q", buf[:n], "ping")
		}
	case err := <-recvErr:
		t.Fatalf("Recv error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Recv did not complete")
	}
}

func TestOpsOnSameSocketRunInOrder(t *testing.T) {
	client, server, cleanup := dialPair(t)
	defer cleanup()
	_ = server

	r := New()
	defer r.Exit()

	var order []int
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		i := i
		r.SendAll(client, []byte("x"), func(n int) {
			order = append(order, i)
			done <- struct{}{}
		}, func(err error) {
			t.Errorf("SendAll %d: %v", i, err)
			done <- struct{}{}
		})
	}
	for i := 0; i < 3; i++ {
		<-done
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want in-order 0,1,2", order)
		}
	}
}

func TestSubmitAfterExitIsAborted(t *testing.T) {
	client, _, cleanup := dialPair(t)
	defer cleanup()

	r := New()
	errCh := make(chan error, 1)
	r.Exit()
	r.SendAll(client, []byte("x"), func(n int) {
		t.Errorf("handler should not run after Exit")
	}, func(err error) { errCh <- err })

	select {
	case err := <-errCh:
		if !errors.IsAborted(err) {
			t.Fatalf("err = %v, want errors.Aborted", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("onError was never called after Exit")
	}
}

func TestAcceptQueuesOnListenerHandle(t *testing.T) {
	ln, port := listenLoopback(t)
	defer ln.Close()

	r := New()
	defer r.Exit()
	id := r.NextListenerID()

	accepted := make(chan net.Conn, 1)
	acceptErr := make(chan error, 1)
	r.Accept(id, ln, func(conn net.Conn) { accepted <- conn }, func(err error) { acceptErr <- err })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := socket.DialTCP(ctx, "127.0.0.1", port, time.Second)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	defer client.Close()

	select {
	case conn := <-accepted:
		conn.Close()
	case err := <-acceptErr:
		t.Fatalf("Accept error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("Accept did not complete")
	}
}

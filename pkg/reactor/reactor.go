// Package reactor provides the asynchronous I/O dispatcher (spec section
// 4.G), used by pkg/server for its listeners' Accept calls (the server's
// per-connection reads and writes and the async client do not go through
// it), adapted from the reference implementation's AsyncIo: accept/recv/
// send/send_all are queued operations whose completion or failure is
// reported through callbacks, and operations queued against the same
// socket are processed in order.
//
// The reference implementation hand-rolls this with select()/BIO-style
// non-blocking sockets plus a self-pipe to wake the loop. Go's net package
// already parks blocking calls on the runtime's network poller instead of
// a thread, so a Reactor here is just a per-socket FIFO of closures run on
// dispatcher goroutines — the blocking Recv/Send/SendAll calls on
// pkg/socket.Socket ARE the async primitive; no select loop or self-pipe
// is needed to wake one up.
package reactor

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/socket"
)

type AcceptHandler func(conn net.Conn)
type RecvHandler func(n int)
type SendHandler func(n int)
type ErrorHandler func(err error)

// Reactor dispatches queued operations across per-key goroutines. A key is
// usually a Socket's ID; a listener, which has no Socket of its own, is
// given a handle via NextListenerID.
type Reactor struct {
	mu             sync.Mutex
	exiting        int32
	queues         map[uint64]chan func()
	wg             sync.WaitGroup
	nextListenerID uint64
}

// New creates an idle Reactor; call Exit to shut it down.
func New() *Reactor {
	return &Reactor{queues: make(map[uint64]chan func())}
}

func (r *Reactor) isExiting() bool {
	return atomic.LoadInt32(&r.exiting) != 0
}

func (r *Reactor) queueFor(id uint64) (chan func(), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queues == nil {
		return nil, false
	}
	q, ok := r.queues[id]
	if !ok {
		q = make(chan func(), 64)
		r.queues[id] = q
		r.wg.Add(1)
		go r.drain(q)
	}
	return q, true
}

func (r *Reactor) drain(q chan func()) {
	defer r.wg.Done()
	for fn := range q {
		fn()
	}
}

func (r *Reactor) submit(id uint64, op func()) bool {
	q, ok := r.queueFor(id)
	if !ok {
		return false
	}
	q <- op
	return true
}

// Recv queues an asynchronous read of len(buf) bytes at most.
func (r *Reactor) Recv(sock socket.Socket, buf []byte, handler RecvHandler, onError ErrorHandler) {
	ok := r.submit(sock.ID(), func() {
		if r.isExiting() {
			onError(errors.Aborted)
			return
		}
		n, err := sock.Recv(buf)
		if err != nil {
			onError(err)
			return
		}
		handler(n)
	})
	if !ok {
		onError(errors.Aborted)
	}
}

// Send queues a single, possibly short, write.
func (r *Reactor) Send(sock socket.Socket, buf []byte, handler SendHandler, onError ErrorHandler) {
	ok := r.submit(sock.ID(), func() {
		if r.isExiting() {
			onError(errors.Aborted)
			return
		}
		n, err := sock.Send(buf)
		if err != nil {
			onError(err)
			return
		}
		handler(n)
	})
	if !ok {
		onError(errors.Aborted)
	}
}

// SendAll queues a write that retries until every byte of buf is sent.
func (r *Reactor) SendAll(sock socket.Socket, buf []byte, handler SendHandler, onError ErrorHandler) {
	ok := r.submit(sock.ID(), func() {
		if r.isExiting() {
			onError(errors.Aborted)
			return
		}
		n, err := sock.SendAll(buf)
		if err != nil {
			onError(err)
			return
		}
		handler(n)
	})
	if !ok {
		onError(errors.Aborted)
	}
}

// NextListenerID allocates a stable FIFO handle for a listener's Accept
// calls; callers hold it for the listener's lifetime.
func (r *Reactor) NextListenerID() uint64 {
	return atomic.AddUint64(&r.nextListenerID, 1)
}

// Accept queues a single blocking accept on ln under the given handle.
func (r *Reactor) Accept(id uint64, ln net.Listener, handler AcceptHandler, onError ErrorHandler) {
	ok := r.submit(id, func() {
		if r.isExiting() {
			onError(errors.Aborted)
			return
		}
		conn, err := ln.Accept()
		if err != nil {
			onError(errors.NewIOError("accept", err))
			return
		}
		handler(conn)
	})
	if !ok {
		onError(errors.Aborted)
	}
}

// Exit marks the reactor as shutting down: operations already queued run
// their onError callback with errors.Aborted instead of performing I/O,
// new submissions are refused the same way, and Exit blocks until every
// dispatcher goroutine has drained (spec section 4.G "exit drains
// in-flight handlers before returning").
func (r *Reactor) Exit() {
	atomic.StoreInt32(&r.exiting, 1)

	r.mu.Lock()
	queues := r.queues
	r.queues = nil
	r.mu.Unlock()

	for _, q := range queues {
		close(q)
	}
	r.wg.Wait()
}

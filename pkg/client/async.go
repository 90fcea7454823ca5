package client

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/corewire/httpcore/pkg/log"
	"github.com/corewire/httpcore/pkg/metrics"
	"github.com/corewire/httpcore/pkg/timing"
	"github.com/corewire/httpcore/pkg/wire"
)

// Request is one queued call, returned by AsyncClient.Queue. Result blocks
// until the request completes, is aborted, or the client exits (spec
// section 4.K "future<Response*>").
type Request struct {
	Req *wire.Request

	// Timing is populated once the request completes (successfully or
	// not) with the timings of this round trip; it is all-zero for a
	// request that never started (aborted while queued). A new connection
	// is timed around the factory's single Dial call, so TCPConnect and
	// (for TLS) TLSHandshake both hold that whole Dial duration; DNS
	// lookup is not timed, and TTFB spans the whole RecvResponse call.
	Timing timing.Metrics

	mu    sync.Mutex
	bound bool
	done  chan struct{}
	resp  *wire.Response
	err   error
}

// Result blocks for the outcome. A nil Response with a nil error means the
// request was aborted or the client exited before it ran.
func (r *Request) Result() (*wire.Response, error) {
	<-r.done
	return r.resp, r.err
}

func (r *Request) fulfil(resp *wire.Response, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		r.resp, r.err = resp, err
		close(r.done)
	}
}

// Config configures an AsyncClient (spec section 4.K "Configuration").
type Config struct {
	Host           string
	Port           uint16
	TLS            bool
	MaxConnections int
	// RateLimit is requests/second; 0 or negative means unlimited.
	RateLimit      int
	DefaultHeaders *wire.Headers
	Factory        SocketFactory

	// OnCompletion, if set, is invoked after a successful round trip,
	// before the promise is fulfilled. OnException, if set, is invoked on
	// any failure. Panics from either are recovered and logged (spec
	// section 4.K "swallowing any exception from it").
	OnCompletion func(req *wire.Request, resp *wire.Response)
	OnException  func(req *wire.Request)
}

// AsyncClient is a FIFO-queued, bounded worker pool of persistent
// connections to one host:port (spec section 4.K).
type AsyncClient struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Request
	exiting bool
	wg      sync.WaitGroup

	tokens     int64
	refillMu   sync.Mutex
	lastRefill time.Time
}

// Start applies configuration defaults, sets the Host default header if
// the caller didn't, and spins up MaxConnections worker goroutines, each
// owning one persistent Connection (spec section 4.K "start").
func Start(cfg Config) *AsyncClient {
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = 1
	}
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = wire.NewHeaders()
	}
	cfg.DefaultHeaders.SetDefault("Host", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	if cfg.Factory == nil {
		cfg.Factory = &DefaultFactory{Timeout: DialTimeout}
	}

	c := &AsyncClient{cfg: cfg}
	c.cond = sync.NewCond(&c.mu)
	if cfg.RateLimit > 0 {
		c.tokens = int64(cfg.RateLimit)
		c.lastRefill = time.Now()
	}

	for i := 0; i < cfg.MaxConnections; i++ {
		c.wg.Add(1)
		go c.workerLoop()
	}
	return c
}

// Queue binds req to this client, appends it to the FIFO queue, and wakes
// a worker (spec section 4.K "queue").
func (c *AsyncClient) Queue(req *wire.Request) *Request {
	ar := &Request{Req: req, done: make(chan struct{}), bound: true}
	c.mu.Lock()
	c.queue = append(c.queue, ar)
	c.mu.Unlock()
	c.cond.Signal()
	return ar
}

// Abort removes ar from the queue if it is still waiting, fulfilling it
// with (nil, nil) and unbinding it. It returns false if ar had already
// started processing or completed (spec section 4.K "abort").
func (c *AsyncClient) Abort(ar *Request) bool {
	c.mu.Lock()
	for i, q := range c.queue {
		if q == ar {
			c.queue = append(c.queue[:i], c.queue[i+1:]...)
			c.mu.Unlock()
			ar.mu.Lock()
			ar.bound = false
			ar.mu.Unlock()
			ar.fulfil(nil, nil)
			return true
		}
	}
	c.mu.Unlock()
	return false
}

// Exit signals every worker to stop after its current request, waits for
// them to join, then fails every request still queued with (nil, nil) and
// unbinds it (spec section 4.K "exit").
func (c *AsyncClient) Exit() {
	c.mu.Lock()
	c.exiting = true
	remaining := c.queue
	c.queue = nil
	c.mu.Unlock()
	c.cond.Broadcast()

	c.wg.Wait()

	for _, ar := range remaining {
		ar.mu.Lock()
		ar.bound = false
		ar.mu.Unlock()
		ar.fulfil(nil, nil)
	}
}

func (c *AsyncClient) workerLoop() {
	defer c.wg.Done()
	conn := NewConnection(nil)
	defer conn.Close()

	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.exiting {
			c.cond.Wait()
		}
		if len(c.queue) == 0 && c.exiting {
			c.mu.Unlock()
			return
		}
		ar := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.processRequest(conn, ar)
	}
}

// processRequest implements spec section 4.K's numbered steps 1–7.
func (c *AsyncClient) processRequest(conn *Connection, ar *Request) {
	start := time.Now()
	timer := timing.NewTimer()
	if ar.Req.Headers == nil {
		ar.Req.Headers = wire.NewHeaders()
	}
	c.cfg.DefaultHeaders.Each(func(name, value string) {
		ar.Req.Headers.SetDefault(name, value)
	})

	c.acquireToken()

	ctx := context.Background()
	sent := false
	reusedConn := conn.IsConnected()
	if reusedConn {
		if err := conn.SendRequest(ar.Req); err == nil {
			sent = true
			metrics.PoolHits.Inc()
		} else {
			conn.Close()
		}
	}

	if !sent {
		metrics.PoolMisses.Inc()
		timer.StartTCP()
		if c.cfg.TLS {
			timer.StartTLS()
		}
		sock, err := c.cfg.Factory.Dial(ctx, c.cfg.Host, c.cfg.Port, c.cfg.TLS)
		timer.EndTCP()
		if c.cfg.TLS {
			timer.EndTLS()
		}
		if err != nil {
			ar.Timing = timer.GetMetrics()
			c.finishFailed(ar, err)
			return
		}
		conn.SetSocket(sock)
		if err := conn.SendRequest(ar.Req); err != nil {
			conn.Close()
			ar.Timing = timer.GetMetrics()
			c.finishFailed(ar, err)
			return
		}
	}

	timer.StartTTFB()
	resp, err := conn.RecvResponse(ctx, ar.Req.Method)
	timer.EndTTFB()
	if err != nil {
		conn.Close()
		ar.Timing = timer.GetMetrics()
		c.finishFailed(ar, err)
		return
	}

	c.unbind(ar)
	ar.Timing = timer.GetMetrics()
	metrics.ClientRequestDuration.Observe(time.Since(start).Seconds())
	if c.cfg.OnCompletion != nil {
		c.safeCall(func() { c.cfg.OnCompletion(ar.Req, resp) })
	}
	ar.fulfil(resp, nil)
}

func (c *AsyncClient) finishFailed(ar *Request, err error) {
	c.unbind(ar)
	log.Debugf("request to %s:%d failed: %v", c.cfg.Host, c.cfg.Port, err)
	if c.cfg.OnException != nil {
		c.safeCall(func() { c.cfg.OnException(ar.Req) })
	}
	ar.fulfil(nil, err)
}

func (c *AsyncClient) unbind(ar *Request) {
	ar.mu.Lock()
	ar.bound = false
	ar.mu.Unlock()
}

func (c *AsyncClient) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("recovered from callback panic: %v", r)
		}
	}()
	fn()
}

// acquireToken blocks until a rate-limit token is available. One token
// bucket is shared by every worker: each decrements it atomically; a
// worker that drives it negative becomes responsible for sleeping until
// the next whole-second boundary and refilling, while the others simply
// retry the decrement (spec section 4.K step 2).
func (c *AsyncClient) acquireToken() {
	if c.cfg.RateLimit <= 0 {
		return
	}
	for {
		if atomic.AddInt64(&c.tokens, -1) >= 0 {
			return
		}
		c.refillMu.Lock()
		if atomic.LoadInt64(&c.tokens) < 0 {
			next := c.lastRefill.Add(time.Second)
			if wait := time.Until(next); wait > 0 {
				time.Sleep(wait)
			}
			atomic.StoreInt64(&c.tokens, int64(c.cfg.RateLimit))
			c.lastRefill = time.Now()
		}
		c.refillMu.Unlock()
	}
}

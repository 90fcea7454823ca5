// Package timing provides per-request latency breakdowns for the client
// (spec section 6, ConnectionMetadata/PoolStats consumers).
package timing

import (
	"fmt"
	"time"
)

// Metrics captures the timing breakdown of one request/response cycle.
type Metrics struct {
	// DNSLookup is the time spent resolving the host.
	DNSLookup time.Duration `json:"dns_lookup"`

	// TCPConnect is the time spent establishing the TCP connection.
	TCPConnect time.Duration `json:"tcp_connect"`

	// TLSHandshake is the time spent in the TLS handshake (0 for plain HTTP).
	TLSHandshake time.Duration `json:"tls_handshake"`

	// TTFB is the time spent waiting for the first response byte, i.e.
	// server processing time.
	TTFB time.Duration `json:"ttfb"`

	// TotalTime is the total end-to-end request time.
	TotalTime time.Duration `json:"total_time"`
}

// Timer accumulates the start/end marks for one request.
type Timer struct {
	start     time.Time
	dnsStart  time.Time
	dnsEnd    time.Time
	tcpStart  time.Time
	tcpEnd    time.Time
	tlsStart  time.Time
	tlsEnd    time.Time
	ttfbStart time.Time
	ttfbEnd   time.Time
}

// NewTimer starts a timing session anchored at the current time.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// StartDNS marks the beginning of DNS resolution.
func (t *Timer) StartDNS() { t.dnsStart = time.Now() }

// EndDNS marks the end of DNS resolution.
func (t *Timer) EndDNS() { t.dnsEnd = time.Now() }

// StartTCP marks the beginning of the TCP dial.
func (t *Timer) StartTCP() { t.tcpStart = time.Now() }

// EndTCP marks the end of the TCP dial.
func (t *Timer) EndTCP() { t.tcpEnd = time.Now() }

// StartTLS marks the beginning of the TLS handshake.
func (t *Timer) StartTLS() { t.tlsStart = time.Now() }

// EndTLS marks the end of the TLS handshake.
func (t *Timer) EndTLS() { t.tlsEnd = time.Now() }

// StartTTFB marks when the request has been fully sent and the client
// starts waiting for the response.
func (t *Timer) StartTTFB() { t.ttfbStart = time.Now() }

// EndTTFB marks receipt of the first response byte.
func (t *Timer) EndTTFB() { t.ttfbEnd = time.Now() }

// GetMetrics computes the metrics from the marks recorded so far. Any phase
// whose start/end were never marked (e.g. TLS on a plain connection, or a
// pooled connection that skipped DNS/TCP) is left at zero.
func (t *Timer) GetMetrics() Metrics {
	m := Metrics{TotalTime: time.Since(t.start)}

	if !t.dnsStart.IsZero() && !t.dnsEnd.IsZero() {
		m.DNSLookup = t.dnsEnd.Sub(t.dnsStart)
	}
	if !t.tcpStart.IsZero() && !t.tcpEnd.IsZero() {
		m.TCPConnect = t.tcpEnd.Sub(t.tcpStart)
	}
	if !t.tlsStart.IsZero() && !t.tlsEnd.IsZero() {
		m.TLSHandshake = t.tlsEnd.Sub(t.tlsStart)
	}
	if !t.ttfbStart.IsZero() && !t.ttfbEnd.IsZero() {
		m.TTFB = t.ttfbEnd.Sub(t.ttfbStart)
	}
	return m
}

// GetConnectionTime returns the total connection establishment time
// (DNS + TCP + TLS).
func (m Metrics) GetConnectionTime() time.Duration {
	return m.DNSLookup + m.TCPConnect + m.TLSHandshake
}

// GetServerTime returns the server processing time.
func (m Metrics) GetServerTime() time.Duration {
	return m.TTFB
}

// GetNetworkTime returns the total time minus server processing time.
func (m Metrics) GetNetworkTime() time.Duration {
	return m.TotalTime - m.TTFB
}

// String renders a human-readable summary, e.g. for debug logging.
func (m Metrics) String() string {
	return fmt.Sprintf("dns=%v tcp=%v tls=%v ttfb=%v total=%v",
		m.DNSLookup, m.TCPConnect, m.TLSHandshake, m.TTFB, m.TotalTime)
}

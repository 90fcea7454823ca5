// Package metrics exposes the module's Prometheus instrumentation:
// accepted connections, requests served, parser errors, client pool
// hits/misses, and request latency (generalized from nabbar-golib's
// prometheus collector registration pattern to this module's server and
// client).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectionsAccepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "httpcore",
		Subsystem: "server",
		Name:      "connections_accepted_total",
		Help:      "Total TCP/TLS connections accepted by the server.",
	})

	RequestsServed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpcore",
		Subsystem: "server",
		Name:      "requests_served_total",
		Help:      "Total requests completed by the server, by status class.",
	}, []string{"status_class"})

	ParserErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "httpcore",
		Subsystem: "parser",
		Name:      "errors_total",
		Help:      "Total parser failures, by suggested status code.",
	}, []string{"status"})

	RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "httpcore",
		Subsystem: "server",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency as observed by the server.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status_class"})

	PoolHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "httpcore",
		Subsystem: "client",
		Name:      "pool_hits_total",
		Help:      "Requests that reused an idle pooled connection.",
	})

	PoolMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "httpcore",
		Subsystem: "client",
		Name:      "pool_misses_total",
		Help:      "Requests that required a new connection from the factory.",
	})

	ClientRequestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "httpcore",
		Subsystem: "client",
		Name:      "request_duration_seconds",
		Help:      "Round-trip latency for async client requests.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Register adds every collector in this package to reg. Call once at
// process startup with prometheus.DefaultRegisterer, or a test-local
// registry to avoid duplicate-registration panics across package tests.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ConnectionsAccepted,
		RequestsServed,
		ParserErrors,
		RequestDuration,
		PoolHits,
		PoolMisses,
		ClientRequestDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// StatusClass buckets an HTTP status code into its "Nxx" label.
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "1xx"
	}
}

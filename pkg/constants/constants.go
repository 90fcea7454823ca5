// Package constants defines the protocol limits and default values shared
// across the parser, writer, socket, server, and client packages.
package constants

import "time"

// Parser limits (spec section 3 "Parser limits").
const (
	// LineSize is the maximum size of a single protocol line (request/status
	// line, header line, chunk-size line) before a parser error is raised.
	LineSize = 8192

	// MaxHeaderCount is the maximum number of headers (request headers or
	// trailer headers) accepted in one message.
	MaxHeaderCount = 100

	// MaxHeadersSize is the maximum combined size, in bytes, of all header
	// lines in one message (not counting the terminating blank line).
	MaxHeadersSize = 65536

	// MaxChunkLineSize is the maximum size of a chunk-size line's content,
	// not counting the terminating CRLF.
	MaxChunkLineSize = 10
)

// Connection timeouts and limits.
const (
	DefaultIdleTimeout  = 90 * time.Second
	DefaultConnTimeout  = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	CleanupInterval     = 30 * time.Second
	DisconnectDrainWait = 1 * time.Second
)

// DefaultBodyMemLimit is the default in-memory threshold before a body
// buffer spills to disk.
const DefaultBodyMemLimit = 4 * 1024 * 1024

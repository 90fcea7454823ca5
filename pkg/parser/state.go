// Package parser implements the incremental HTTP/1.1 message parser shared
// by the server (parsing requests) and the client (parsing responses),
// grounded on the chunked/fixed/close-framing logic of
// WhileEndless-go-rawhttp's pkg/client readBody/readChunkedBody/readFixedBody,
// restated as a pull-style state machine instead of a bufio.Reader loop so
// that it can be fed arbitrarily split byte ranges (spec section 4.B).
package parser

// State is one stage of the incremental parser (spec section 3
// "ParserState"). The zero value, StateStart, is the initial state;
// StateCompleted is terminal.
type State int

const (
	StateStart State = iota
	StateHeaders
	StateBody
	StateBodyChunkLen
	StateBodyChunk
	StateBodyChunkTerminator
	StateBodyUntilClose
	StateTrailerHeaders
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateHeaders:
		return "HEADERS"
	case StateBody:
		return "BODY"
	case StateBodyChunkLen:
		return "BODY_CHUNK_LEN"
	case StateBodyChunk:
		return "BODY_CHUNK"
	case StateBodyChunkTerminator:
		return "BODY_CHUNK_TERMINATOR"
	case StateBodyUntilClose:
		return "BODY_UNTIL_CLOSE"
	case StateTrailerHeaders:
		return "TRAILER_HEADERS"
	case StateCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

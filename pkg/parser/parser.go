package parser

import (
	"bytes"
	"strings"

	"github.com/corewire/httpcore/pkg/buffer"
	"github.com/corewire/httpcore/pkg/constants"
	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/wire"
)

// Kind distinguishes a request parser (server-side) from a response parser
// (client-side); the response parser additionally needs the originating
// request's method to apply method-dependent body framing rules.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
)

// Parser is the incremental request/response state machine (spec section
// 4.B). The zero value is not usable; construct with NewRequestParser or
// NewResponseParser.
type Parser struct {
	kind    Kind
	state   State
	version wire.Version

	// Request-only.
	method wire.Method
	rawURI string

	// Response-only.
	reqMethod wire.Method
	status    wire.Status

	headers  *wire.Headers
	trailers *wire.Headers
	body     *buffer.Buffer

	lineBuf []byte

	headerCount int
	headersSize int

	hasContentLength bool
	contentLength    int64
	remaining        int64
	chunkRemaining   int64
}

// NewRequestParser returns a parser ready to consume a request starting at
// its first byte.
func NewRequestParser() *Parser {
	return &Parser{
		kind:     KindRequest,
		headers:  wire.NewHeaders(),
		trailers: wire.NewHeaders(),
		body:     buffer.New(constants.DefaultBodyMemLimit),
	}
}

// NewResponseParser returns a parser ready to consume the response to a
// request that used reqMethod.
func NewResponseParser(reqMethod wire.Method) *Parser {
	return &Parser{
		kind:      KindResponse,
		reqMethod: reqMethod,
		headers:   wire.NewHeaders(),
		trailers:  wire.NewHeaders(),
		body:      buffer.New(constants.DefaultBodyMemLimit),
	}
}

// ResetRequest reinitializes the parser to consume the next request on a
// keep-alive connection, releasing any disk-spilled body from the
// previous message.
func (p *Parser) ResetRequest() {
	p.closeBody()
	*p = Parser{
		kind:     KindRequest,
		headers:  wire.NewHeaders(),
		trailers: wire.NewHeaders(),
		body:     buffer.New(constants.DefaultBodyMemLimit),
	}
}

// ResetResponse reinitializes the parser to consume the next response on a
// reused connection.
func (p *Parser) ResetResponse(reqMethod wire.Method) {
	p.closeBody()
	*p = Parser{
		kind:      KindResponse,
		reqMethod: reqMethod,
		headers:   wire.NewHeaders(),
		trailers:  wire.NewHeaders(),
		body:      buffer.New(constants.DefaultBodyMemLimit),
	}
}

func (p *Parser) closeBody() {
	if p.body != nil {
		p.body.Close()
	}
}

// State returns the parser's current stage.
func (p *Parser) State() State { return p.state }

// Version returns the parsed HTTP version, valid once past StateStart.
func (p *Parser) Version() wire.Version { return p.version }

// Headers returns the parsed header set. Valid once past StateHeaders.
func (p *Parser) Headers() *wire.Headers { return p.headers }

// TakeHeaders returns the parsed headers and detaches them from the
// parser, leaving an empty set in their place.
func (p *Parser) TakeHeaders() *wire.Headers {
	h := p.headers
	p.headers = wire.NewHeaders()
	return h
}

// Trailers returns the trailer headers parsed after a chunked body, if
// any.
func (p *Parser) Trailers() *wire.Headers { return p.trailers }

// Body returns the accumulated body buffer. Valid once StateCompleted.
func (p *Parser) Body() *buffer.Buffer { return p.body }

// TakeBody returns the body buffer and detaches it from the parser,
// leaving a fresh empty buffer in its place. The caller owns the returned
// buffer and must Close it.
func (p *Parser) TakeBody() *buffer.Buffer {
	b := p.body
	p.body = buffer.New(constants.DefaultBodyMemLimit)
	return b
}

// HasContentLength reports whether a Content-Length header selected the
// body framing (true from StateBody through StateCompleted along that
// path).
func (p *Parser) HasContentLength() bool { return p.hasContentLength }

// ContentLength returns the declared Content-Length, or 0 if none was
// present.
func (p *Parser) ContentLength() int64 { return p.contentLength }

// Method returns the parsed request method. Valid for request parsers
// once past StateStart.
func (p *Parser) Method() wire.Method { return p.method }

// URI returns the raw, still percent-encoded request-target. Valid for
// request parsers once past StateStart.
func (p *Parser) URI() string { return p.rawURI }

// Status returns the parsed response status. Valid for response parsers
// once past StateStart.
func (p *Parser) Status() wire.Status { return p.status }

// Feed consumes a prefix of data and returns how many bytes it consumed.
// The caller must retain data[n:] and append further bytes to it on the
// next call — the parser never looks behind the bytes it has already
// consumed (spec section 4.B "Input contract"). Feed stops consuming as
// soon as the message reaches StateCompleted, leaving any remaining bytes
// (e.g. the start of a pipelined message) untouched.
func (p *Parser) Feed(data []byte) (int, error) {
	i := 0
	for i < len(data) {
		switch p.state {
		case StateCompleted:
			return i, nil

		case StateStart:
			consumed, line, found, err := p.feedLine(data[i:], constants.LineSize, 414)
			i += consumed
			if err != nil {
				return i, err
			}
			if !found {
				return i, nil
			}
			if err := p.parseFirstLine(line); err != nil {
				return i, err
			}

		case StateHeaders, StateTrailerHeaders:
			consumed, line, found, err := p.feedLine(data[i:], constants.LineSize, 431)
			i += consumed
			if err != nil {
				return i, err
			}
			if !found {
				return i, nil
			}
			if len(line) == 0 {
				if p.state == StateHeaders {
					if err := p.onHeadersComplete(); err != nil {
						return i, err
					}
				} else {
					p.state = StateCompleted
				}
			} else if err := p.addHeaderLine(line); err != nil {
				return i, err
			}

		case StateBodyChunkLen:
			consumed, line, found, err := p.feedLine(data[i:], constants.MaxChunkLineSize, 0)
			i += consumed
			if err != nil {
				return i, err
			}
			if !found {
				return i, nil
			}
			n, err := parseChunkLen(line)
			if err != nil {
				return i, err
			}
			if n == 0 {
				p.state = StateTrailerHeaders
				p.headerCount = 0
				p.headersSize = 0
			} else {
				p.chunkRemaining = n
				p.state = StateBodyChunk
			}

		case StateBodyChunkTerminator:
			for i < len(data) && len(p.lineBuf) < 2 {
				p.lineBuf = append(p.lineBuf, data[i])
				i++
			}
			if len(p.lineBuf) < 2 {
				return i, nil
			}
			ok := p.lineBuf[0] == '\r' && p.lineBuf[1] == '\n'
			p.lineBuf = nil
			if !ok {
				return i, errors.NewParserErrorStatus("chunk data not terminated by CRLF", 400)
			}
			p.state = StateBodyChunkLen

		case StateBody:
			take := int64(len(data) - i)
			if take > p.remaining {
				take = p.remaining
			}
			if _, err := p.body.Write(data[i : i+int(take)]); err != nil {
				return i, errors.NewIOError("writing body", err)
			}
			i += int(take)
			p.remaining -= take
			if p.remaining == 0 {
				p.state = StateCompleted
			}

		case StateBodyChunk:
			take := int64(len(data) - i)
			if take > p.chunkRemaining {
				take = p.chunkRemaining
			}
			if _, err := p.body.Write(data[i : i+int(take)]); err != nil {
				return i, errors.NewIOError("writing body", err)
			}
			i += int(take)
			p.chunkRemaining -= take
			if p.chunkRemaining == 0 {
				p.state = StateBodyChunkTerminator
			}

		case StateBodyUntilClose:
			return i, errors.NewParserErrorStatus("response has no Content-Length or Transfer-Encoding; close-delimited bodies are not supported", 411)
		}
	}
	return i, nil
}

// feedLine accumulates data into the shared line buffer until a CRLF is
// found, returning the line (without the CRLF) with found=true. If the
// line's content (not counting its CRLF) would exceed maxLen bytes, it
// fails with overflowStatus (0 if no specific status applies).
func (p *Parser) feedLine(data []byte, maxLen, overflowStatus int) (consumed int, line []byte, found bool, err error) {
	for consumed < len(data) {
		c := data[consumed]
		consumed++
		if c == '\n' {
			if len(p.lineBuf) == 0 || p.lineBuf[len(p.lineBuf)-1] != '\r' {
				p.lineBuf = nil
				return consumed, nil, false, errors.NewParserErrorStatus("line not terminated by CRLF", 400)
			}
			line = append([]byte(nil), p.lineBuf[:len(p.lineBuf)-1]...)
			p.lineBuf = nil
			return consumed, line, true, nil
		}
		p.lineBuf = append(p.lineBuf, c)
		if len(p.lineBuf) > maxLen+1 || (len(p.lineBuf) == maxLen+1 && c != '\r') {
			p.lineBuf = nil
			return consumed, nil, false, errors.NewParserErrorStatus("line exceeds maximum size", overflowStatus)
		}
	}
	return consumed, nil, false, nil
}

func (p *Parser) parseFirstLine(line []byte) error {
	if p.kind == KindRequest {
		return p.parseRequestLine(line)
	}
	return p.parseStatusLine(line)
}

func (p *Parser) parseRequestLine(line []byte) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return errors.NewParserErrorStatus("malformed request line", 400)
	}
	rest := line[sp1+1:]
	sp2 := bytes.LastIndexByte(rest, ' ')
	if sp2 <= 0 {
		return errors.NewParserErrorStatus("malformed request line", 400)
	}

	method, ok := wire.ParseMethod(string(line[:sp1]))
	if !ok {
		return errors.NewParserErrorStatus("unknown request method", 501)
	}
	version, err := parseVersion(rest[sp2+1:])
	if err != nil {
		return err
	}

	p.method = method
	p.rawURI = string(rest[:sp2])
	p.version = version
	p.state = StateHeaders
	return nil
}

func (p *Parser) parseStatusLine(line []byte) error {
	sp1 := bytes.IndexByte(line, ' ')
	if sp1 <= 0 {
		return errors.NewParserErrorStatus("malformed status line", 400)
	}
	version, err := parseVersion(line[:sp1])
	if err != nil {
		return err
	}

	rest := line[sp1+1:]
	sp2 := bytes.IndexByte(rest, ' ')
	var codeTok, phrase []byte
	if sp2 < 0 {
		codeTok = rest
	} else {
		codeTok = rest[:sp2]
		phrase = rest[sp2+1:]
	}

	code, err := parseStatusCode(codeTok)
	if err != nil {
		return err
	}
	for _, c := range phrase {
		if !isFieldVChar(c) && c != ' ' && c != '\t' {
			return errors.NewParserErrorStatus("invalid character in reason phrase", 400)
		}
	}

	p.version = version
	p.status = wire.Status{Code: code, Msg: string(phrase)}
	p.state = StateHeaders
	return nil
}

func parseVersion(tok []byte) (wire.Version, error) {
	const prefix = "HTTP/"
	if !bytes.HasPrefix(tok, []byte(prefix)) {
		return wire.Version{}, errors.NewParserErrorStatus("malformed HTTP version", 400)
	}
	rest := tok[len(prefix):]
	dot := bytes.IndexByte(rest, '.')
	if dot < 0 {
		return wire.Version{}, errors.NewParserErrorStatus("malformed HTTP version", 400)
	}
	major, ok1 := parseDigits(rest[:dot])
	minor, ok2 := parseDigits(rest[dot+1:])
	if !ok1 || !ok2 {
		return wire.Version{}, errors.NewParserErrorStatus("malformed HTTP version", 400)
	}
	if major != 1 {
		return wire.Version{}, errors.NewParserErrorStatus("unsupported HTTP major version", 505)
	}
	return wire.Version{Major: major, Minor: minor}, nil
}

// parseStatusCode accepts the IIS-style extended "nnn.mm" form, keeping
// only the integer status code.
func parseStatusCode(tok []byte) (int, error) {
	if dot := bytes.IndexByte(tok, '.'); dot >= 0 {
		tok = tok[:dot]
	}
	n, ok := parseDigits(tok)
	if !ok {
		return 0, errors.NewParserErrorStatus("malformed status code", 400)
	}
	return n, nil
}

func parseDigits(b []byte) (int, bool) {
	if len(b) == 0 {
		return 0, false
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func (p *Parser) addHeaderLine(line []byte) error {
	name, value, err := parseHeaderLine(line)
	if err != nil {
		return err
	}
	p.headerCount++
	p.headersSize += len(line) + 2
	if p.headerCount > constants.MaxHeaderCount || p.headersSize > constants.MaxHeadersSize {
		return errors.NewParserErrorStatus("too many or too large header fields", 431)
	}
	if p.state == StateTrailerHeaders {
		p.trailers.Add(name, value)
	} else {
		p.headers.Add(name, value)
	}
	return nil
}

func (p *Parser) onHeadersComplete() error {
	p.headerCount = 0
	p.headersSize = 0

	// A response to HEAD, a 1xx/204/304 response, and a 2xx response to
	// CONNECT never carry a body, whatever framing headers they declare.
	if p.kind == KindResponse && (p.reqMethod == wire.HEAD ||
		p.status.Code/100 == 1 ||
		p.status.Code == wire.StatusNoContent ||
		p.status.Code == wire.StatusNotModified ||
		(p.status.Code/100 == 2 && p.reqMethod == wire.CONNECT)) {
		p.state = StateCompleted
		return nil
	}

	if te := p.headers.Get("Transfer-Encoding"); te != "" {
		if !strings.EqualFold(strings.TrimSpace(te), "chunked") {
			return errors.NewParserErrorStatus("unsupported transfer-encoding", 501)
		}
		p.state = StateBodyChunkLen
		return nil
	}

	if cl := p.headers.Get("Content-Length"); cl != "" {
		n, ok := parseDigits([]byte(cl))
		if !ok {
			return errors.NewParserErrorStatus("malformed Content-Length", 400)
		}
		p.hasContentLength = true
		p.contentLength = int64(n)
		p.remaining = int64(n)
		if n == 0 {
			p.state = StateCompleted
		} else {
			p.state = StateBody
		}
		return nil
	}

	if p.kind == KindRequest {
		p.state = StateCompleted
		return nil
	}

	p.state = StateBodyUntilClose
	return errors.NewParserErrorStatus("response has no Content-Length or Transfer-Encoding; close-delimited bodies are not supported", 411)
}

package parser

import (
	"strings"
	"testing"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/wire"
)

// feedAll drives Feed across chunk boundaries sized by chunkSize, exercising
// the "arbitrary split" contract Feed documents.
func feedAll(t *testing.T, p *Parser, data []byte, chunkSize int) {
	t.Helper()
	for len(data) > 0 {
		n := chunkSize
		if n > len(data) {
			n = len(data)
		}
		consumed, err := p.Feed(data[:n])
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		data = data[consumed:]
		if consumed == 0 {
			// Feed buffers partial lines itself, so it consumes nothing
			// only once the message is complete (checked below); no
			// progress with every remaining byte offered is a failure.
			if n == len(data) {
				t.Fatalf("Feed made no progress with all remaining data available")
			}
		}
		if p.State() == StateCompleted {
			return
		}
	}
}

func TestRequestLineAndHeaders(t *testing.T) {
	raw := "GET /a/b?x=1 HTTP/1.1\r\nHost: example.com\r\nX-Test: one\r\n\r\n"
	p := NewRequestParser()
	feedAll(t, p, []byte(raw), 7)

	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED", p.State())
	}
	if p.Method() != wire.GET {
		t.Fatalf("Method() = %v, want GET", p.Method())
	}
	if p.URI() != "/a/b?x=1" {
		t.Fatalf("URI() = %q", p.URI())
	}
	if p.Version() != (wire.Version{Major: 1, Minor: 1}) {
		t.Fatalf("Version() = %+v", p.Version())
	}
	if got := p.Headers().Get("Host"); got != "example.com" {
		t.Fatalf("Host header = %q", got)
	}
}

func TestFeedByteAtATime(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: h\r\nContent-Length: 3\r\n\r\nabc"
	p := NewRequestParser()
	data := []byte(raw)
	total := 0
	for total < len(data) && p.State() != StateCompleted {
		n, err := p.Feed(data[total : total+1])
		if err != nil {
			t.Fatalf("Feed at byte %d: %v", total, err)
		}
		total += n
	}
	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED after feeding one byte at a time", p.State())
	}
	body, err := p.TakeBody().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "abc" {
		t.Fatalf("body = %q, want %q", body, "abc")
	}
}

func TestContentLengthBody(t *testing.T) {
	raw := "POST /submit HTTP/1.1\r\nHost: h\r\nContent-Length: 5\r\n\r\nhello"
	p := NewRequestParser()
	feedAll(t, p, []byte(raw), 1024)

	if !p.HasContentLength() || p.ContentLength() != 5 {
		t.Fatalf("HasContentLength/ContentLength = %v/%d", p.HasContentLength(), p.ContentLength())
	}
	body, err := p.TakeBody().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q", body)
	}
}

func TestChunkedBodyAndTrailers(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n6\r\n world\r\n0\r\nX-Trailer: done\r\n\r\n"
	p := NewRequestParser()
	feedAll(t, p, []byte(raw), 4)

	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED", p.State())
	}
	body, err := p.TakeBody().ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "hello world" {
		t.Fatalf("body = %q, want %q", body, "hello world")
	}
	if got := p.Trailers().Get("X-Trailer"); got != "done" {
		t.Fatalf("trailer X-Trailer = %q", got)
	}
}

func TestChunkExtensionsRejected(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5;ext=1\r\nhello\r\n0\r\n\r\n"
	p := NewRequestParser()
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for chunk extension")
	}
}

func TestBadChunkTerminator(t *testing.T) {
	raw := "POST /up HTTP/1.1\r\nHost: h\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhelloXX0\r\n\r\n"
	p := NewRequestParser()
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for chunk not terminated by CRLF")
	}
}

func TestUnsupportedMajorVersion(t *testing.T) {
	raw := "GET / HTTP/2.0\r\nHost: h\r\n\r\n"
	p := NewRequestParser()
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for unsupported major version")
	}
	perr, ok := err.(*errors.ParserError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.ParserError", err)
	}
	if perr.SuggestedStatus != 505 {
		t.Fatalf("SuggestedStatus = %d, want 505", perr.SuggestedStatus)
	}
}

func TestLineTooLongSuggestsStatus(t *testing.T) {
	longURI := "/" + strings.Repeat("a", 9000)
	raw := "GET " + longURI + " HTTP/1.1\r\n\r\n"
	p := NewRequestParser()
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for oversized request line")
	}
	perr, ok := err.(*errors.ParserError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.ParserError", err)
	}
	if perr.SuggestedStatus != 414 {
		t.Fatalf("SuggestedStatus = %d, want 414", perr.SuggestedStatus)
	}
}

func TestUnknownMethodRejected(t *testing.T) {
	p := NewRequestParser()
	_, err := p.Feed([]byte("FROB / HTTP/1.1\r\n\r\n"))
	if err == nil {
		t.Fatalf("expected error for unrecognized method")
	}
}

func TestResponseNoFramingHeaderIsError(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nHost: h\r\n\r\nleftover body that should never be read"
	p := NewResponseParser(wire.GET)
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error: response with no Content-Length/Transfer-Encoding must not be read until close")
	}
}

func TestResponseHeadHasNoBody(t *testing.T) {
	raw := "HTTP/1.1 200 OK\r\nHost: h\r\nContent-Length: 100\r\n\r\n"
	p := NewResponseParser(wire.HEAD)
	feedAll(t, p, []byte(raw), 1024)
	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED for a HEAD response regardless of Content-Length", p.State())
	}
}

func TestResponse204HasNoBody(t *testing.T) {
	raw := "HTTP/1.1 204 No Content\r\nHost: h\r\n\r\n"
	p := NewResponseParser(wire.GET)
	feedAll(t, p, []byte(raw), 1024)
	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED for 204", p.State())
	}
}

func TestIISExtendedStatusCode(t *testing.T) {
	raw := "HTTP/1.1 404.5 Not Found\r\nHost: h\r\nContent-Length: 0\r\n\r\n"
	p := NewResponseParser(wire.GET)
	feedAll(t, p, []byte(raw), 1024)
	if p.Status().Code != 404 {
		t.Fatalf("Status().Code = %d, want 404 (IIS extended form truncated)", p.Status().Code)
	}
}

func TestFeedStopsAtCompletedLeavesPipelinedBytesUntouched(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost: h\r\n\r\nGET /second HTTP/1.1\r\n\r\n"
	p := NewRequestParser()
	consumed, err := p.Feed([]byte(raw))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if p.State() != StateCompleted {
		t.Fatalf("state = %v, want COMPLETED", p.State())
	}
	rest := raw[consumed:]
	if !strings.HasPrefix(rest, "GET /second") {
		t.Fatalf("unconsumed remainder = %q, want it to start with the second request", rest)
	}
}

func TestHeaderFieldNameWhitespaceRejected(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nHost : h\r\n\r\n"
	p := NewRequestParser()
	_, err := p.Feed([]byte(raw))
	if err == nil {
		t.Fatalf("expected error for whitespace before colon in a header field name")
	}
}

func TestResetRequestAllowsReuse(t *testing.T) {
	p := NewRequestParser()
	feedAll(t, p, []byte("GET /one HTTP/1.1\r\nHost: h\r\n\r\n"), 1024)
	if p.URI() != "/one" {
		t.Fatalf("URI() = %q", p.URI())
	}
	p.ResetRequest()
	if p.State() != StateStart {
		t.Fatalf("state after ResetRequest = %v, want START", p.State())
	}
	feedAll(t, p, []byte("GET /two HTTP/1.1\r\nHost: h\r\n\r\n"), 1024)
	if p.URI() != "/two" {
		t.Fatalf("URI() after reset = %q, want /two", p.URI())
	}
}

// Package writer renders Request/Response values to wire-format bytes,
// grounded on WhileEndless-go-rawhttp's sendRequest (partial-write loop
// over net.Conn) generalized to emit a full HTTP/1.1 message rather than a
// pre-built byte slice (spec section 4.C).
package writer

import (
	"bytes"
	"fmt"
	"time"

	"github.com/corewire/httpcore/pkg/errors"
	"github.com/corewire/httpcore/pkg/wire"
)

// WriteRequest renders req as an HTTP/1.1 request. It sets Content-Length
// on req.Headers when the body is non-empty, then writes the request line,
// headers in iteration order, a blank line, and the body.
func WriteRequest(w Sink, req *wire.Request) error {
	if req.Headers == nil {
		req.Headers = wire.NewHeaders()
	}
	if len(req.Body) > 0 {
		req.Headers.Set("Content-Length", fmt.Sprintf("%d", len(req.Body)))
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s HTTP/1.1\r\n", req.Method.String(), req.Target())
	writeHeaders(&buf, req.Headers)
	buf.WriteString("\r\n")
	buf.Write(req.Body)

	return sendAll(w, buf.Bytes())
}

// WriteResponse renders resp as an HTTP/1.1 response for a request that
// used method. It enforces the body-forbidding statuses (204/205/304) and
// suppresses the body for HEAD requests while still reporting its true
// Content-Length, sets Date (unless already present) and Content-Length
// (spec section 4.C).
func WriteResponse(w Sink, resp *wire.Response, method wire.Method) error {
	if resp.Headers == nil {
		resp.Headers = wire.NewHeaders()
	}

	bodyForbidden := resp.Status.BodyForbidden()
	if bodyForbidden && len(resp.Body) > 0 {
		return errors.NewValidationError(fmt.Sprintf("status %d must not carry a body", resp.Status.Code))
	}

	resp.Headers.SetDefault("Date", wire.FormatTime(time.Now().Unix()))
	if !bodyForbidden {
		resp.Headers.Set("Content-Length", fmt.Sprintf("%d", len(resp.Body)))
	}

	msg := resp.Status.Msg
	if msg == "" {
		msg = wire.DefaultStatusMsg(resp.Status.Code)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %d %s\r\n", resp.Status.Code, msg)
	writeHeaders(&buf, resp.Headers)
	buf.WriteString("\r\n")

	suppressBody := bodyForbidden || method == wire.HEAD
	if !suppressBody {
		buf.Write(resp.Body)
	}

	return sendAll(w, buf.Bytes())
}

func writeHeaders(buf *bytes.Buffer, headers *wire.Headers) {
	headers.Each(func(name, value string) {
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.WriteString(value)
		buf.WriteString("\r\n")
	})
}

// Sink is the minimal write contract the writer needs — satisfied by
// pkg/socket.Socket's Send/SendAll and, in tests, by any io.Writer wrapped
// with WriterSink.
type Sink interface {
	SendAll(buf []byte) (int, error)
}

func sendAll(w Sink, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	n, err := w.SendAll(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return errors.NewIOError("writing message", fmt.Errorf("short write: %d of %d bytes", n, len(buf)))
	}
	return nil
}

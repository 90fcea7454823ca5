package writer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/corewire/httpcore/pkg/wire"
)

func TestWriteRequestSetsContentLength(t *testing.T) {
	var buf bytes.Buffer
	req := &wire.Request{
		Method: wire.POST,
		RawUrl: "/submit",
		Body:   []byte("hello"),
	}
	if err := WriteRequest(WriterSink{&buf}, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "POST /submit HTTP/1.1\r\n") {
		t.Fatalf("request line = %q", strings.SplitN(out, "\r\n", 2)[0])
	}
	if !strings.Contains(out, "Content-Length: 5\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nhello") {
		t.Fatalf("missing body: %q", out)
	}
}

func TestWriteRequestUsesRawUrlVerbatim(t *testing.T) {
	var buf bytes.Buffer
	req := &wire.Request{Method: wire.GET, RawUrl: "/a%2Fb"}
	if err := WriteRequest(WriterSink{&buf}, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "GET /a%2Fb HTTP/1.1\r\n") {
		t.Fatalf("expected RawUrl to be used verbatim: %q", buf.String())
	}
}

func TestWriteResponseSetsDateAndContentLength(t *testing.T) {
	var buf bytes.Buffer
	resp := &wire.Response{
		Status: wire.Status{Code: 200},
		Body:   []byte("ok"),
	}
	if err := WriteResponse(WriterSink{&buf}, resp, wire.GET); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("status line = %q", strings.SplitN(out, "\r\n", 2)[0])
	}
	if !strings.Contains(out, "Date: ") {
		t.Fatalf("missing Date header: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 2\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nok") {
		t.Fatalf("missing body: %q", out)
	}
}

func TestWriteResponseRejectsBodyOn204(t *testing.T) {
	resp := &wire.Response{Status: wire.Status{Code: 204}, Body: []byte("not allowed")}
	var buf bytes.Buffer
	if err := WriteResponse(WriterSink{&buf}, resp, wire.GET); err == nil {
		t.Fatalf("expected an error for a body on a 204 response")
	}
}

func TestWriteResponseOmitsContentLengthOnBodyForbiddenStatuses(t *testing.T) {
	for _, code := range []int{204, 205, 304} {
		resp := &wire.Response{Status: wire.Status{Code: code}}
		var buf bytes.Buffer
		if err := WriteResponse(WriterSink{&buf}, resp, wire.GET); err != nil {
			t.Fatalf("WriteResponse(%d): %v", code, err)
		}
		out := buf.String()
		if strings.Contains(out, "Content-Length") {
			t.Fatalf("status %d must not carry a Content-Length header: %q", code, out)
		}
	}
}

func TestWriteResponseSuppressesBodyForHead(t *testing.T) {
	resp := &wire.Response{
		Status: wire.Status{Code: 200},
		Body:   []byte("should not appear"),
	}
	var buf bytes.Buffer
	if err := WriteResponse(WriterSink{&buf}, resp, wire.HEAD); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("HEAD response must not include a body: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 17\r\n") {
		t.Fatalf("HEAD response must still report the true Content-Length: %q", out)
	}
}

func TestWriteResponseHeaderOrderPreserved(t *testing.T) {
	resp := &wire.Response{Status: wire.Status{Code: 200}, Headers: wire.NewHeaders()}
	resp.Headers.Set("X-First", "1")
	resp.Headers.Set("X-Second", "2")
	var buf bytes.Buffer
	if err := WriteResponse(WriterSink{&buf}, resp, wire.GET); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	out := buf.String()
	firstIdx := strings.Index(out, "X-First:")
	secondIdx := strings.Index(out, "X-Second:")
	if firstIdx < 0 || secondIdx < 0 || firstIdx > secondIdx {
		t.Fatalf("expected X-First before X-Second: %q", out)
	}
}

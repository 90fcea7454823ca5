package writer

import "io"

// WriterSink adapts a plain io.Writer (e.g. a bytes.Buffer in tests) to
// the Sink interface expected by WriteRequest/WriteResponse.
type WriterSink struct {
	W io.Writer
}

func (s WriterSink) SendAll(buf []byte) (int, error) {
	return s.W.Write(buf)
}

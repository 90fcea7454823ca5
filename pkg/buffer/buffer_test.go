package buffer

import (
	"bytes"
	"testing"
)

func TestInMemoryRoundTrip(t *testing.T) {
	b := New(1024)
	defer b.Close()
	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if b.IsSpilled() {
		t.Fatalf("small payload should not spill to disk")
	}
	got, err := b.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("ReadAll = %q, want %q", got, "hello")
	}
}

func TestSpillsToDiskOverLimit(t *testing.T) {
	b := New(4)
	defer b.Close()
	payload := bytes.Repeat([]byte("x"), 100)
	if _, err := b.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !b.IsSpilled() {
		t.Fatalf("expected payload over the memory limit to spill to disk")
	}
	if got := b.Bytes(); got != nil {
		t.Fatalf("Bytes() after spill = %v, want nil", got)
	}
	got, err := b.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("ReadAll after spill did not return the full payload")
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	b := New(1024)
	b.Close()
	if _, err := b.Write([]byte("x")); err == nil {
		t.Fatalf("expected an error writing to a closed buffer")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(4)
	b.Write(bytes.Repeat([]byte("x"), 100))
	if err := b.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("second Close should be a no-op: %v", err)
	}
}

func TestSizeTracksTotalWritten(t *testing.T) {
	b := New(1024)
	defer b.Close()
	b.Write([]byte("abc"))
	b.Write([]byte("de"))
	if b.Size() != 5 {
		t.Fatalf("Size() = %d, want 5", b.Size())
	}
}

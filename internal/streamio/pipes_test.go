package streamio

import (
	"bytes"
	"io"
	"testing"
)

func TestCountedWriterAccumulatesAndReportsProgress(t *testing.T) {
	var dst bytes.Buffer
	var reports []int64
	w := NewCountedWriter(&dst, func(total int64) { reports = append(reports, total) })

	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := w.Write([]byte(" world")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if w.Total() != 11 {
		t.Fatalf("Total() = %d, want 11", w.Total())
	}
	if len(reports) != 2 || reports[0] != 5 || reports[1] != 11 {
		t.Fatalf("unexpected progress reports: %v", reports)
	}
	if dst.String() != "hello world" {
		t.Fatalf("unexpected dst: %q", dst.String())
	}
}

// TestCancellationLaw: setting the cancel flag causes the reader to fail
// within one call, per spec.md §8's cancellation law.
func TestCancellationLaw(t *testing.T) {
	src := bytes.NewReader([]byte("some bytes to read"))
	var cancel CancelFlag
	r := NewCountedReader(src, nil, &cancel)

	buf := make([]byte, 4)
	if _, err := r.Read(buf); err != nil {
		t.Fatalf("first read should succeed: %v", err)
	}

	cancel.Set()
	if _, err := r.Read(buf); err != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestCountedReaderNoCancelFlag(t *testing.T) {
	src := bytes.NewReader([]byte("abc"))
	r := NewCountedReader(src, nil, nil)
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "abc" {
		t.Fatalf("got %q", data)
	}
	if r.Total() != 3 {
		t.Fatalf("Total() = %d", r.Total())
	}
}

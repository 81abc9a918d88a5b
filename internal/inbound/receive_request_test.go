package inbound

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/LeopoldLabs/InterShareSDK/internal/archive"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

type fakeStream struct {
	*bytes.Buffer
	closed bool
}

func (f *fakeStream) Close() error { f.closed = true; return nil }

func strPtr(s string) *string { return &s }

func TestDeclineIsOneShotAndRespondsForFiles(t *testing.T) {
	stream := &fakeStream{Buffer: &bytes.Buffer{}}
	req := wire.Request{
		Type:   wire.ShareRequest,
		Intent: &wire.Intent{Files: &wire.FileTransferIntent{FileName: strPtr("a.bin"), FileSize: 10, FileCount: 1}},
	}
	rr := New(stream, req, StateObserver{})

	if err := rr.Decline(); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if !stream.closed {
		t.Fatal("expected stream closed after decline")
	}

	var resp wire.TransferRequestResponse
	if err := wire.ReadRecord(stream, &resp); err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if resp.Accepted {
		t.Fatal("expected accepted=false")
	}

	if err := rr.Decline(); err != ErrAlreadyDisposed {
		t.Fatalf("expected ErrAlreadyDisposed on second call, got %v", err)
	}
	if _, err := rr.Accept(t.TempDir()); err != ErrAlreadyDisposed {
		t.Fatalf("expected ErrAlreadyDisposed after decline, got %v", err)
	}
}

func TestAcceptFilesExtractsArchive(t *testing.T) {
	stream := &fakeStream{Buffer: &bytes.Buffer{}}

	srcDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(srcDir, "hello.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	total, err := archive.TotalSize([]string{srcDir})
	if err != nil {
		t.Fatalf("TotalSize: %v", err)
	}
	if err := archive.StreamTar(stream, []string{srcDir}, archive.ProduceOptions{TotalBytes: total}); err != nil {
		t.Fatalf("StreamTar: %v", err)
	}

	req := wire.Request{
		Type:   wire.ShareRequest,
		Intent: &wire.Intent{Files: &wire.FileTransferIntent{FileSize: total, FileCount: 1}},
	}

	var finished bool
	var restoredPaths []string
	rr := New(stream, req, StateObserver{
		OnFinished: func(paths []string) { finished = true; restoredPaths = paths },
	})

	destDir := t.TempDir()
	restored, err := rr.Accept(destDir)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !finished {
		t.Fatal("expected OnFinished to fire")
	}
	if len(restored) == 0 || len(restoredPaths) != len(restored) {
		t.Fatalf("unexpected restored paths: %v", restored)
	}
	if !stream.closed {
		t.Fatal("expected stream closed after accept")
	}
}

func TestAcceptClipboardReturnsEmpty(t *testing.T) {
	stream := &fakeStream{Buffer: &bytes.Buffer{}}
	req := wire.Request{
		Type:   wire.ShareRequest,
		Intent: &wire.Intent{Clipboard: &wire.ClipboardIntent{Content: "hello"}},
	}
	rr := New(stream, req, StateObserver{})

	restored, err := rr.Accept(t.TempDir())
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if len(restored) != 0 {
		t.Fatalf("expected empty restored list, got %v", restored)
	}
	if !stream.closed {
		t.Fatal("expected stream closed")
	}
}

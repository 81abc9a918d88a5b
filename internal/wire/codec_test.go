package wire

import (
	"bytes"
	"io"
	"testing"
)

func TestWriteReadRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	req := Request{Type: ShareRequest, ShareID: strPtr("abc")}

	if err := WriteRecord(&buf, req); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}

	var got Request
	if err := ReadRecord(&buf, &got); err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if got.Type != req.Type || *got.ShareID != *req.ShareID {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, req)
	}
}

// TestReaderConsumesExactlyOneRecord is the "Framing law" from spec.md §8: a
// reader that receives a correctly length-delimited record followed by N raw
// bytes must consume exactly the record and no more.
func TestReaderConsumesExactlyOneRecord(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRecord(&buf, TransferRequestResponse{Accepted: true}); err != nil {
		t.Fatalf("WriteRecord: %v", err)
	}
	trailer := []byte("raw-archive-bytes")
	buf.Write(trailer)

	var resp TransferRequestResponse
	if err := ReadRecord(&buf, &resp); err != nil {
		t.Fatalf("ReadRecord: %v", err)
	}
	if !resp.Accepted {
		t.Fatalf("expected accepted=true")
	}

	rest, err := io.ReadAll(&buf)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(rest, trailer) {
		t.Fatalf("trailing bytes corrupted: got %q want %q", rest, trailer)
	}
}

func TestReadRecordShortRead(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(10) // declares a 10-byte payload
	buf.Write([]byte("short"))

	var resp TransferRequestResponse
	err := ReadRecord(&buf, &resp)
	if err == nil {
		t.Fatal("expected error for truncated record")
	}
}

func strPtr(s string) *string { return &s }

package history

import (
	"path/filepath"
	"testing"
	"time"
)

func TestAppendAndLoadRoundTrip(t *testing.T) {
	SetLogPathOverride(filepath.Join(t.TempDir(), "history.jsonl"))
	defer SetLogPathOverride("")

	if err := Append(Entry{
		Direction: DirectionSent,
		PeerID:    "peer-1",
		PeerName:  "Bob",
		FileName:  "a.bin",
		FileSize:  1024,
		FileCount: 1,
		Status:    StatusFinished,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(Entry{
		Direction:   DirectionReceived,
		PeerID:      "peer-2",
		IsClipboard: true,
		Status:      StatusDeclined,
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ID == "" {
			t.Fatal("expected generated ID")
		}
		if e.Timestamp.After(time.Now()) {
			t.Fatal("timestamp should not be in the future")
		}
	}
}

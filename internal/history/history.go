// Package history is the transfer audit log, adapted from the teacher's
// internal/audit/audit.go (JSONL file, gofrs/flock cross-process locking,
// golang-petname entry IDs) but restructured around outbound ShareSession
// and inbound ReceiveRequest completions instead of the teacher's
// sender/receiver code-based entries.
package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/gofrs/flock"
)

// Direction distinguishes outbound sends from inbound receives.
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// Status is the terminal outcome of one transfer, mirroring the
// ReceiveRequest/ShareSession states that can be reached.
type Status string

const (
	StatusFinished  Status = "finished"
	StatusDeclined  Status = "declined"
	StatusCancelled Status = "cancelled"
)

// Entry is one row of the transfer history.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Direction   Direction `json:"direction"`
	PeerID      string    `json:"peerId"`
	PeerName    string    `json:"peerName"`
	IsClipboard bool      `json:"isClipboard"`
	FileName    string    `json:"fileName,omitempty"`
	FileCount   int       `json:"fileCount,omitempty"`
	FileSize    int64     `json:"fileSize,omitempty"`
	Medium      string    `json:"medium,omitempty"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

const maxEntries = 1000

var logPathOverride string

// SetLogPathOverride points the log at a custom path, for tests.
func SetLogPathOverride(path string) { logPathOverride = path }

// LogPath returns ~/.intershare/history.jsonl.
func LogPath() (string, error) {
	if logPathOverride != "" {
		return logPathOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".intershare")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

func lockPath() (string, error) {
	path, err := LogPath()
	if err != nil {
		return "", err
	}
	return path + ".lock", nil
}

func withLock(action func() error) error {
	lp, err := lockPath()
	if err != nil {
		return err
	}
	fl := flock.New(lp)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("history: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("history: timed out waiting for lock")
	}
	defer fl.Unlock()

	return action()
}

func withReadLock(action func() error) error {
	lp, err := lockPath()
	if err != nil {
		return err
	}
	fl := flock.New(lp)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := fl.TryRLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("history: acquire read lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("history: timed out waiting for read lock")
	}
	defer fl.Unlock()

	return action()
}

// Append records one transfer entry, pruning the oldest entries once the
// log exceeds maxEntries, the same policy the teacher's WriteEntry applies.
func Append(entry Entry) error {
	return withLock(func() error {
		path, err := LogPath()
		if err != nil {
			return err
		}
		if entry.ID == "" {
			entry.ID = petname.Generate(2, "-")
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}

		existing, err := loadInternal(path)
		if err == nil && len(existing) >= maxEntries {
			all := append([]Entry{entry}, existing...)
			sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
			return rewriteInternal(path, all[:maxEntries])
		}
		return appendInternal(path, entry)
	})
}

// Load returns every entry, newest first.
func Load() ([]Entry, error) {
	var entries []Entry
	err := withReadLock(func() error {
		path, err := LogPath()
		if err != nil {
			return err
		}
		var loadErr error
		entries, loadErr = loadInternal(path)
		return loadErr
	})
	return entries, err
}

func loadInternal(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, scanner.Err()
}

func appendInternal(path string, entry Entry) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func rewriteInternal(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := len(entries) - 1; i >= 0; i-- {
		data, err := json.Marshal(entries[i])
		if err != nil {
			continue
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

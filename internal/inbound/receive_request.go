// Package inbound implements the receiver-side connection-request handle,
// spec.md §4.I: a small state machine wrapping one accepted, TLS-wrapped
// stream whose first framed Request has already been read by
// internal/netengine.Listener.
package inbound

import (
	"errors"
	"io"
	"sync"

	"github.com/LeopoldLabs/InterShareSDK/internal/archive"
	"github.com/LeopoldLabs/InterShareSDK/internal/streamio"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// State is the lifecycle of one inbound share, per spec.md §4.I.
type State int

const (
	StateHandshake State = iota
	StateReceiving
	StateExtracting
	StateFinished
	StateCancelled
)

// IntentType distinguishes which payload the sender declared.
type IntentType int

const (
	IntentFiles IntentType = iota
	IntentClipboard
)

// ErrAlreadyDisposed is returned by accept/decline if the request was
// already accepted or declined; Cancel does not dispose of the request, it
// only sets the flag an in-flight Accept polls. Exactly-once disposition is the
// invariant spec.md §4.I requires.
var ErrAlreadyDisposed = errors.New("inbound: request already disposed")

// StateObserver receives lifecycle transitions. Receiving fires with a
// fraction in [0,1].
type StateObserver struct {
	OnHandshake func()
	OnReceiving func(fraction float64)
	OnExtracting func()
	OnFinished   func(restored []string)
	OnCancelled  func()
}

// ReceiveRequest is the receiver-side handle for one inbound Request.
type ReceiveRequest struct {
	stream io.ReadWriteCloser
	req    wire.Request
	cancel streamio.CancelFlag
	obs    StateObserver

	mu       sync.Mutex
	disposed bool
}

// New builds a handle bound to stream for a just-read Request. Callers
// (internal/netengine.Listener's ShareRequestHandler) construct one of
// these per accepted ShareRequest connection.
func New(stream io.ReadWriteCloser, req wire.Request, obs StateObserver) *ReceiveRequest {
	return &ReceiveRequest{stream: stream, req: req, obs: obs}
}

// IntentType reports whether this is a file transfer or a clipboard push.
func (r *ReceiveRequest) IntentType() IntentType {
	if r.req.Intent != nil && r.req.Intent.Clipboard != nil {
		return IntentClipboard
	}
	return IntentFiles
}

// Sender returns the declared sender Device, if the peer included one.
func (r *ReceiveRequest) Sender() *wire.Device { return r.req.Device }

// FileTransferIntent returns the files intent, or nil if this is a
// clipboard push.
func (r *ReceiveRequest) FileTransferIntent() *wire.FileTransferIntent {
	if r.req.Intent == nil {
		return nil
	}
	return r.req.Intent.Files
}

// ClipboardIntent returns the clipboard intent, or nil if this is a files
// push.
func (r *ReceiveRequest) ClipboardIntent() *wire.ClipboardIntent {
	if r.req.Intent == nil {
		return nil
	}
	return r.req.Intent.Clipboard
}

// Cancel sets the cooperative cancel flag; the TAR consumer (if accept() is
// in flight) polls it between entries, per spec.md §5.
func (r *ReceiveRequest) Cancel() { r.cancel.Set() }

func (r *ReceiveRequest) markDisposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return false
	}
	r.disposed = true
	return true
}

// Decline implements spec.md §4.I's decline(): for file intents, answer
// TransferRequestResponse{accepted:false} then close; for clipboard
// intents, just close (the content already arrived in the Request).
func (r *ReceiveRequest) Decline() error {
	if !r.markDisposed() {
		return ErrAlreadyDisposed
	}
	defer r.stream.Close()

	if r.IntentType() == IntentFiles {
		return wire.WriteRecord(r.stream, wire.TransferRequestResponse{Accepted: false})
	}
	return nil
}

// Accept implements spec.md §4.I's accept(). For clipboard intents it
// simply closes and returns an empty list. For file intents it answers
// TransferRequestResponse{accepted:true}, runs the TAR consumer against
// destDir with the shared cancel flag, and reports state transitions via
// the observer.
func (r *ReceiveRequest) Accept(destDir string) ([]string, error) {
	if !r.markDisposed() {
		return nil, ErrAlreadyDisposed
	}
	defer r.stream.Close()

	if r.IntentType() == IntentClipboard {
		return nil, nil
	}

	if r.obs.OnHandshake != nil {
		r.obs.OnHandshake()
	}

	if err := wire.WriteRecord(r.stream, wire.TransferRequestResponse{Accepted: true}); err != nil {
		if r.obs.OnCancelled != nil {
			r.obs.OnCancelled()
		}
		return nil, err
	}

	intent := r.FileTransferIntent()
	var totalBytes int64
	if intent != nil {
		totalBytes = intent.FileSize
	}

	reportProgress := func(fraction float64) {
		if r.obs.OnReceiving != nil {
			r.obs.OnReceiving(fraction)
		}
	}
	if r.obs.OnReceiving != nil {
		r.obs.OnReceiving(0)
	}

	if r.obs.OnExtracting != nil {
		r.obs.OnExtracting()
	}

	restored, err := archive.ExtractTar(r.stream, archive.ConsumeOptions{
		Dest:       destDir,
		TotalBytes: totalBytes,
		OnProgress: reportProgress,
		Cancel:     &r.cancel,
	})
	if err != nil {
		if r.obs.OnCancelled != nil {
			r.obs.OnCancelled()
		}
		return nil, nil
	}

	if r.obs.OnFinished != nil {
		r.obs.OnFinished(restored)
	}
	return restored, nil
}

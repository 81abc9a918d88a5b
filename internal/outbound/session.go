// Package outbound implements the sender-side share session, spec.md §4.J:
// one active ShareSession coordinates a single send_to(receiver, observer)
// transfer at a time, generalizing the teacher's StartSender
// (internal/transport/tcp.go) from a single fixed-address, single-file push
// to the dialer-mediated, Request/TransferRequestResponse-negotiated
// protocol this system speaks.
package outbound

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/LeopoldLabs/InterShareSDK/internal/archive"
	"github.com/LeopoldLabs/InterShareSDK/internal/netengine"
	"github.com/LeopoldLabs/InterShareSDK/internal/secutls"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// SessionState is the sender-side lifecycle from spec.md §4.J.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateRequesting
	StateTransferring
	StateDeclined
	StateFinished
	StateCancelled
)

// SessionObserver receives send_to lifecycle events. Transferring fires
// with a fraction in [0,1].
type SessionObserver struct {
	OnConnecting    func()
	OnRequesting    func()
	OnTransferring  func(fraction float64)
	OnDeclined      func()
	OnFinished      func()
	OnCancelled     func()
	OnMediumUpdate  func(netengine.ConnectionMedium)
}

// ErrDeclined is returned by SendTo when the receiver declines a file
// transfer, per spec.md §7's RequestFailure taxonomy.
var ErrDeclined = errors.New("outbound: receiver declined the transfer")

// FilePayload is a files share: one or more filesystem paths, pre-archived
// by the TAR producer at send time.
type FilePayload struct {
	Paths []string
}

// TextPayload is a clipboard share: a single inline string.
type TextPayload struct {
	Content string
}

// Payload is the tagged union spec.md §4.J's ShareSession holds: exactly
// one of Files or Text is set.
type Payload struct {
	Files *FilePayload
	Text  *TextPayload
}

// ShareSession holds one outbound payload and the request id it is
// addressed by for convenience-link purposes.
type ShareSession struct {
	RequestID string
	Payload   Payload
	Self      wire.Device

	dialer *netengine.Dialer
}

// NewSession mints a fresh request id (23 random bytes as an unpadded
// URL-safe base64 token, 184 bits of entropy) and binds payload to self, the
// device identity advertised to receivers.
func NewSession(dialer *netengine.Dialer, self wire.Device, payload Payload) (*ShareSession, error) {
	id, err := newRequestID()
	if err != nil {
		return nil, fmt.Errorf("outbound: request id: %w", err)
	}
	return &ShareSession{RequestID: id, Payload: payload, Self: self, dialer: dialer}, nil
}

func newRequestID() (string, error) {
	buf := make([]byte, 23)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// SendTo implements spec.md §4.J's send_to algorithm.
func (s *ShareSession) SendTo(ctx context.Context, receiver wire.Device, obs SessionObserver) error {
	if obs.OnConnecting != nil {
		obs.OnConnecting()
	}

	stream, err := s.dialer.Dial(ctx, receiver, func(m netengine.ConnectionMedium) {
		if obs.OnMediumUpdate != nil {
			obs.OnMediumUpdate(m)
		}
	})
	if err != nil {
		return fmt.Errorf("outbound: dial: %w", err)
	}
	defer stream.Close()

	if s.Payload.Text != nil {
		return s.sendText(stream, obs)
	}
	return s.sendFiles(stream, obs)
}

// sendText implements spec.md §4.J step 2: a clipboard push is a single
// Request carrying the content inline; no response is awaited because the
// whole payload already fit in the request.
func (s *ShareSession) sendText(stream *secutls.EncryptedStream, obs SessionObserver) error {
	if obs.OnTransferring != nil {
		obs.OnTransferring(0.0)
	}

	req := wire.Request{
		Type:    wire.ShareRequest,
		Device:  &s.Self,
		ShareID: &s.RequestID,
		Intent:  &wire.Intent{Clipboard: &wire.ClipboardIntent{Content: s.Payload.Text.Content}},
	}
	if err := wire.WriteRecord(stream, req); err != nil {
		if obs.OnCancelled != nil {
			obs.OnCancelled()
		}
		return fmt.Errorf("outbound: send clipboard request: %w", err)
	}

	// The 0.8 fraction here is cosmetic: the whole payload is already on
	// the wire by the time WriteRecord returns (spec.md §9).
	if obs.OnTransferring != nil {
		obs.OnTransferring(0.8)
	}
	if obs.OnFinished != nil {
		obs.OnFinished()
	}
	return nil
}

// sendFiles implements spec.md §4.J step 3: negotiate via
// Request/TransferRequestResponse, then stream a TAR archive of the
// declared paths.
func (s *ShareSession) sendFiles(stream *secutls.EncryptedStream, obs SessionObserver) error {
	if obs.OnRequesting != nil {
		obs.OnRequesting()
	}

	paths := s.Payload.Files.Paths
	var fileName *string
	if len(paths) == 1 {
		name := filepath.Base(paths[0])
		fileName = &name
	}

	total, err := archive.TotalSize(paths)
	if err != nil {
		return fmt.Errorf("outbound: compute total size: %w", err)
	}

	req := wire.Request{
		Type:    wire.ShareRequest,
		Device:  &s.Self,
		ShareID: &s.RequestID,
		Intent: &wire.Intent{Files: &wire.FileTransferIntent{
			FileName:  fileName,
			FileSize:  total,
			FileCount: len(paths),
		}},
	}
	if err := wire.WriteRecord(stream, req); err != nil {
		return fmt.Errorf("outbound: send file request: %w", err)
	}

	var resp wire.TransferRequestResponse
	if err := wire.ReadRecord(stream, &resp); err != nil {
		return fmt.Errorf("outbound: await transfer response: %w", err)
	}
	if !resp.Accepted {
		if obs.OnDeclined != nil {
			obs.OnDeclined()
		}
		return ErrDeclined
	}

	if obs.OnTransferring != nil {
		obs.OnTransferring(0.0)
	}

	err = archive.StreamTar(stream, paths, archive.ProduceOptions{
		TotalBytes: total,
		OnProgress: func(fraction float64) {
			if obs.OnTransferring != nil {
				obs.OnTransferring(fraction)
			}
		},
	})
	if err != nil {
		if obs.OnCancelled != nil {
			obs.OnCancelled()
		}
		return fmt.Errorf("outbound: stream archive: %w", err)
	}

	if obs.OnFinished != nil {
		obs.OnFinished()
	}
	return nil
}

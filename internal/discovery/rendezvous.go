package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// ErrRendezvousTimeout is returned by Rendezvous.Await when no pipe arrives
// within the bound recorded in SPEC_FULL.md §4 (spec.md leaves this
// unbounded; we pick a finite wait per the resolved open question).
var ErrRendezvousTimeout = errors.New("discovery: l2cap rendezvous timed out")

// L2CapDelegate is the polymorphic capability spec.md §9 describes: a
// platform-specific BLE stack that can open an L2CAP channel toward a peer
// and, separately, accept inbound connection requests. Only the dial-side
// capability is modeled here; the inbound side is netengine.Listener's
// concern.
type L2CapDelegate interface {
	// OpenL2CapConnection asks the platform BLE stack to open a channel
	// toward peerUUID on psm. The resulting byte pipe must be delivered to
	// Rendezvous.Deliver(connID, pipe) from wherever the platform callback
	// fires, not returned here — opening is asynchronous on every platform.
	OpenL2CapConnection(connID string, peerUUID string, psm uint16) error
}

// Rendezvous is the process-wide, connection-id-keyed single-shot waiter
// table from spec.md §5: "lookup+remove is atomic; double-deliver is
// impossible because the slot is removed on first delivery."
type Rendezvous struct {
	mu      sync.Mutex
	waiters map[string]chan io.ReadWriteCloser
}

// NewRendezvous constructs an empty table.
func NewRendezvous() *Rendezvous {
	return &Rendezvous{waiters: make(map[string]chan io.ReadWriteCloser)}
}

// NewConnectionID mints a fresh UUID v4 connection id, per spec.md §4.F.
func NewConnectionID() string {
	return uuid.NewString()
}

// register creates the single-shot slot for connID. Called before the
// delegate is invoked so a fast callback can never race ahead of the waiter.
func (r *Rendezvous) register(connID string) chan io.ReadWriteCloser {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan io.ReadWriteCloser, 1)
	r.waiters[connID] = ch
	return ch
}

// Deliver hands the native pipe to the waiter registered under connID, if
// any. The slot is removed atomically with the lookup so a second delivery
// (or a delivery after timeout) is simply dropped.
func (r *Rendezvous) Deliver(connID string, pipe io.ReadWriteCloser) bool {
	r.mu.Lock()
	ch, ok := r.waiters[connID]
	if ok {
		delete(r.waiters, connID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	ch <- pipe
	return true
}

// abandon removes connID's slot without delivering anything, used when
// Await gives up (timeout or context cancellation) so a late Deliver call
// is a harmless no-op rather than a leak.
func (r *Rendezvous) abandon(connID string) {
	r.mu.Lock()
	delete(r.waiters, connID)
	r.mu.Unlock()
}

// Open asks delegate to open an L2CAP channel toward peerUUID/psm and blocks
// until Deliver is called for the minted connection id or ctx is done.
// Callers should derive ctx with a bound (SPEC_FULL.md recommends 15s,
// following spec.md §9's suggestion) since spec.md leaves the await
// unbounded by default.
func (r *Rendezvous) Open(ctx context.Context, delegate L2CapDelegate, peerUUID string, psm uint16) (io.ReadWriteCloser, error) {
	connID := NewConnectionID()
	ch := r.register(connID)

	if err := delegate.OpenL2CapConnection(connID, peerUUID, psm); err != nil {
		r.abandon(connID)
		return nil, fmt.Errorf("discovery: open l2cap: %w", err)
	}

	select {
	case pipe := <-ch:
		return pipe, nil
	case <-ctx.Done():
		r.abandon(connID)
		return nil, ErrRendezvousTimeout
	}
}

package discovery

import (
	"context"
	"io"
	"testing"
	"time"
)

type fakePipe struct{ io.ReadWriteCloser }

type fakeDelegate struct {
	rv   *Rendezvous
	pipe io.ReadWriteCloser
}

func (d *fakeDelegate) OpenL2CapConnection(connID, peerUUID string, psm uint16) error {
	go d.rv.Deliver(connID, d.pipe)
	return nil
}

func TestRendezvousDeliversOnce(t *testing.T) {
	rv := NewRendezvous()
	want := &fakePipe{}
	delegate := &fakeDelegate{rv: rv, pipe: want}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := rv.Open(ctx, delegate, "peer-uuid", 42)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != want {
		t.Fatalf("got different pipe back")
	}
}

func TestRendezvousTimesOut(t *testing.T) {
	rv := NewRendezvous()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	blocking := &blockingDelegate{}
	_, err := rv.Open(ctx, blocking, "peer-uuid", 42)
	if err != ErrRendezvousTimeout {
		t.Fatalf("expected ErrRendezvousTimeout, got %v", err)
	}
}

type blockingDelegate struct{}

func (blockingDelegate) OpenL2CapConnection(connID, peerUUID string, psm uint16) error {
	return nil // never calls Deliver
}

package netengine

import (
	"crypto/tls"
	"fmt"
	"log"
	"net"

	"github.com/LeopoldLabs/InterShareSDK/internal/secutls"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// PreferredPorts is the prioritized TCP bind list from spec.md §4.H / §6.
var PreferredPorts = []int{4251, 80, 8080, 0} // 0 => ephemeral

// ShareRequestHandler is invoked once per accepted connection whose first
// framed Request has type==ShareRequest. Implementations build a
// receiver-side handle (internal/inbound.ReceiveRequest) bound to stream and
// deliver it to the user's delegate; the listener itself stays agnostic of
// that object to avoid a dependency cycle.
type ShareRequestHandler func(stream *secutls.EncryptedStream, req wire.Request)

// Listener binds the first available port from PreferredPorts and runs the
// accept loop described in spec.md §4.H, generalizing the teacher's
// StartReceiver (internal/transport/tcp.go) from a single fixed-port,
// single-connection accept to a multi-connection, TLS-wrapped, framed-
// protocol accept loop.
type Listener struct {
	Cert    tls.Certificate
	OnShare ShareRequestHandler

	ln      net.Listener
	boundAt int
	running bool
}

// Start binds to the first port in PreferredPorts that succeeds and returns
// the bound port.
func (l *Listener) Start() (int, error) {
	var lastErr error
	for _, port := range PreferredPorts {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			lastErr = err
			continue
		}
		l.ln = ln
		l.boundAt = ln.Addr().(*net.TCPAddr).Port
		l.running = true
		return l.boundAt, nil
	}
	return 0, fmt.Errorf("netengine: no port in %v could be bound: %w", PreferredPorts, lastErr)
}

// BoundPort returns the port Start bound to.
func (l *Listener) BoundPort() int { return l.boundAt }

// Serve runs the accept loop until Stop is called or the listener errors.
// Each accepted connection is handled on its own goroutine so one slow
// handshake/transfer doesn't stall the loop, matching spec.md §5's
// "accept loop task" owning the listener exclusively while individual
// transfers run independently.
func (l *Listener) Serve() error {
	for l.running {
		conn, err := l.ln.Accept()
		if err != nil {
			if !l.running {
				return nil
			}
			return fmt.Errorf("netengine: accept: %w", err)
		}
		go l.handle(conn)
	}
	return nil
}

// Stop closes the listener; Serve's in-flight Accept returns an error and
// the loop exits.
func (l *Listener) Stop() error {
	l.running = false
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}

func (l *Listener) handle(raw net.Conn) {
	stream, err := secutls.WrapServer(raw, l.Cert)
	if err != nil {
		log.Printf("netengine: tls handshake failed: %v", err)
		return
	}

	var req wire.Request
	if err := wire.ReadRecord(stream, &req); err != nil {
		log.Printf("netengine: read request: %v", err)
		stream.Close()
		return
	}

	switch req.Type {
	case wire.ShareRequest:
		if l.OnShare != nil {
			l.OnShare(stream, req)
		} else {
			stream.Close()
		}
	case wire.ConvenienceDownloadRequest:
		// No response path is specified for v0 (spec.md §9); log and close.
		log.Printf("netengine: convenience download request for share %v (unhandled in v0)", req.ShareID)
		stream.Close()
	default:
		stream.Close()
	}
}

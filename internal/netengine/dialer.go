// Package netengine implements the dial (spec.md §4.G) and listen (§4.H)
// halves of the connection plane, generalizing the teacher's
// internal/transport/tcp.go StartSender/StartReceiver (plain net.Dial/
// net.Listen plus a hand-rolled header) to a TCP-preferred, BLE-L2CAP-
// fallback dialer wrapped in TLS 1.3.
package netengine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/LeopoldLabs/InterShareSDK/internal/discovery"
	"github.com/LeopoldLabs/InterShareSDK/internal/secutls"
	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// Dial errors, per spec.md §7's DialFailure taxonomy.
var (
	ErrFailedToGetConnectionDetails = errors.New("netengine: failed to get connection details")
	ErrFailedToGetBleDetails        = errors.New("netengine: failed to get ble details")
)

const (
	tcpDialTimeout      = 2 * time.Second
	l2capRendezvousBound = 15 * time.Second
)

// ConnectionMedium identifies which transport a dial ultimately used.
type ConnectionMedium int

const (
	MediumWiFi ConnectionMedium = iota
	MediumBLE
)

// MediumObserver receives a single ConnectionMediumUpdate event once a dial
// succeeds, per spec.md §4.G.
type MediumObserver func(ConnectionMedium)

// Dialer resolves a Device to an encrypted stream, preferring TCP and
// falling back to a rendezvoused BLE L2CAP channel.
type Dialer struct {
	Registry   *discovery.Registry
	Rendezvous *discovery.Rendezvous
	Delegate   discovery.L2CapDelegate
}

// Dial implements spec.md §4.G's algorithm. observer may be nil.
func (d *Dialer) Dial(ctx context.Context, device wire.Device, observer MediumObserver) (*secutls.EncryptedStream, error) {
	info, ok := d.Registry.GetConnectionDetails(device.ID)
	if !ok {
		return nil, ErrFailedToGetConnectionDetails
	}

	if info.TCP != nil {
		stream, err := d.dialTCP(*info.TCP)
		if err == nil {
			if observer != nil {
				observer(MediumWiFi)
			}
			return stream, nil
		}
		// fall through to BLE on TCP failure, per spec.md §4.G step 3.
		if info.BLE == nil {
			return nil, fmt.Errorf("netengine: tcp dial failed and no ble coordinates: %w", err)
		}
	} else if info.BLE == nil {
		return nil, ErrFailedToGetBleDetails
	}

	if info.BLE == nil {
		return nil, ErrFailedToGetBleDetails
	}
	if d.Delegate == nil {
		return nil, fmt.Errorf("netengine: ble fallback requires a delegate: %w", ErrFailedToGetBleDetails)
	}

	rendCtx, cancel := context.WithTimeout(ctx, l2capRendezvousBound)
	defer cancel()

	pipe, err := d.Rendezvous.Open(rendCtx, d.Delegate, info.BLE.UUID, info.BLE.PSM)
	if err != nil {
		return nil, fmt.Errorf("netengine: ble rendezvous: %w", err)
	}

	stream, err := secutls.WrapClientPipe(pipe)
	if err != nil {
		return nil, fmt.Errorf("netengine: tls over ble: %w", err)
	}
	if observer != nil {
		observer(MediumBLE)
	}
	return stream, nil
}

func (d *Dialer) dialTCP(info wire.TCPConnectionInfo) (*secutls.EncryptedStream, error) {
	addr := net.JoinHostPort(info.Hostname, fmt.Sprintf("%d", info.Port))
	raw, err := net.DialTimeout("tcp", addr, tcpDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("netengine: tcp dial %s: %w", addr, err)
	}
	stream, err := secutls.WrapClient(raw)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

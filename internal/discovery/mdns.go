package discovery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"

	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// MDNSServiceType is this system's mDNS service type, replacing the
// teacher's "_jend._udp" with an InterShare-specific name. LAN discovery
// runs alongside the BLE transport in ble.go: both feed the same Registry,
// so a peer on the same subnet is found over mDNS even before a BLE scan
// cycle completes, and a peer with no usable LAN path still shows up via
// BLE.
const MDNSServiceType = "_intershare._tcp"

// encodeTXT packs a DeviceConnectionInfo into the single TXT record entry
// zeroconf.Register accepts, base64-encoding the JSON the same way the
// teacher's advertise.go packs a hash into a "hash=<hex>" TXT entry.
func encodeTXT(info wire.DeviceConnectionInfo) (string, error) {
	payload, err := json.Marshal(info)
	if err != nil {
		return "", err
	}
	return "info=" + base64.StdEncoding.EncodeToString(payload), nil
}

func decodeTXT(entries []string) (wire.DeviceConnectionInfo, bool) {
	for _, txt := range entries {
		encoded, ok := strings.CutPrefix(txt, "info=")
		if !ok {
			continue
		}
		payload, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			continue
		}
		var info wire.DeviceConnectionInfo
		if err := json.Unmarshal(payload, &info); err != nil {
			continue
		}
		return info, true
	}
	return wire.DeviceConnectionInfo{}, false
}

// StartMDNSAdvertising announces info's TCP coordinates on the local
// network, generalizing the teacher's StartAdvertising (which broadcast a
// code hash for a single pending transfer) to broadcasting this peer's
// standing DeviceConnectionInfo for as long as the process runs. The
// returned shutdown func stops advertising.
func StartMDNSAdvertising(info wire.DeviceConnectionInfo) (func(), error) {
	if info.TCP == nil {
		return nil, fmt.Errorf("discovery: mdns advertising requires a TCP coordinate")
	}
	txt, err := encodeTXT(info)
	if err != nil {
		return nil, fmt.Errorf("discovery: encode txt record: %w", err)
	}

	server, err := zeroconf.Register(
		info.Device.ID,
		MDNSServiceType,
		"local.",
		int(info.TCP.Port),
		[]string{txt},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("discovery: mdns register: %w", err)
	}
	return server.Shutdown, nil
}

// BrowseMDNS runs the teacher's resolver.Browse loop (browse.go's
// FindSender) continuously instead of for a single lookup, forwarding every
// decoded DeviceConnectionInfo to registry until ctx is done. It blocks;
// callers run it on its own goroutine the way they run Scanner.Start.
func BrowseMDNS(ctx context.Context, registry *Registry) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("discovery: mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, MDNSServiceType, "local.", entries); err != nil {
		return fmt.Errorf("discovery: mdns browse: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry := <-entries:
			if entry == nil {
				continue
			}
			info, ok := decodeTXT(entry.Text)
			if !ok {
				continue
			}
			registry.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: &info}, "")
		}
	}
}

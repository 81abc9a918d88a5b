package discovery

import (
	"testing"

	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

func TestEncodeDecodeTXTRoundTrip(t *testing.T) {
	version := uint32(1)
	info := wire.DeviceConnectionInfo{
		Device: wire.Device{ID: "peer-1", Name: "Desk", ProtocolVersion: &version},
		TCP:    &wire.TCPConnectionInfo{Hostname: "192.168.1.5", Port: 4251},
	}

	txt, err := encodeTXT(info)
	if err != nil {
		t.Fatalf("encodeTXT: %v", err)
	}

	decoded, ok := decodeTXT([]string{"unrelated=1", txt})
	if !ok {
		t.Fatal("decodeTXT: expected a match")
	}
	if decoded.Device.ID != info.Device.ID || decoded.TCP.Port != info.TCP.Port {
		t.Errorf("decodeTXT round trip mismatch: got %+v", decoded)
	}
}

func TestDecodeTXTNoMatch(t *testing.T) {
	if _, ok := decodeTXT([]string{"hash=deadbeef"}); ok {
		t.Error("decodeTXT: expected no match for unrelated TXT entries")
	}
}

func TestStartMDNSAdvertisingRequiresTCP(t *testing.T) {
	_, err := StartMDNSAdvertising(wire.DeviceConnectionInfo{Device: wire.Device{ID: "x"}})
	if err == nil {
		t.Error("expected an error advertising a device with no TCP coordinate")
	}
}

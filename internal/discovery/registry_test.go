package discovery

import (
	"testing"

	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

func connInfo(id, name string) wire.DeviceConnectionInfo {
	return wire.DeviceConnectionInfo{
		Device: wire.Device{ID: id, Name: name},
		TCP:    &wire.TCPConnectionInfo{Hostname: "10.0.0.1", Port: 4251},
	}
}

func strPtr(s string) *string { return &s }

// TestRegistryAddedFiresOnInsertAndChange covers the "Discovery invariants"
// testable property from spec.md §8: device_added fires for every new id and
// for every id whose stored value differs from the incoming one.
func TestRegistryAddedFiresOnInsertAndChange(t *testing.T) {
	reg := NewRegistry()
	var added []wire.Device
	reg.Subscribe(Observer{DeviceAdded: func(d wire.Device) { added = append(added, d) }})

	msg := wire.DeviceDiscoveryMessage{ConnectionInfo: ptr(connInfo("a", "Alice"))}
	reg.HandleDiscoveryMessage(msg, "")
	if len(added) != 1 {
		t.Fatalf("expected 1 added event, got %d", len(added))
	}

	// Identical re-sighting: no-op.
	reg.HandleDiscoveryMessage(msg, "")
	if len(added) != 1 {
		t.Fatalf("identical re-sighting should not fire again, got %d events", len(added))
	}

	// Changed sighting: fires again.
	changed := connInfo("a", "Alice")
	changed.TCP.Port = 9999
	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: &changed}, "")
	if len(added) != 2 {
		t.Fatalf("changed re-sighting should fire again, got %d events", len(added))
	}
}

func TestRegistryRemovedFiresOncePerPresentID(t *testing.T) {
	reg := NewRegistry()
	var removed []string
	reg.Subscribe(Observer{DeviceRemoved: func(id string) { removed = append(removed, id) }})

	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{OfflineDeviceID: strPtr("ghost")}, "")
	if len(removed) != 0 {
		t.Fatalf("removing an absent id should not fire, got %d", len(removed))
	}

	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: ptr(connInfo("a", "Alice"))}, "")
	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{OfflineDeviceID: strPtr("a")}, "")
	if len(removed) != 1 || removed[0] != "a" {
		t.Fatalf("expected exactly one removal of 'a', got %v", removed)
	}

	if _, ok := reg.GetConnectionDetails("a"); ok {
		t.Fatal("expected device to be gone after removal")
	}
}

func TestRegistryStampsBLEUUID(t *testing.T) {
	reg := NewRegistry()
	info := connInfo("b", "Bob")
	info.TCP = nil
	info.BLE = &wire.BLEConnectionInfo{ServiceUUID: "svc", PSM: 42}

	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: &info}, "peripheral-uuid-123")

	got, ok := reg.GetConnectionDetails("b")
	if !ok {
		t.Fatal("expected device to be present")
	}
	if got.BLE == nil || got.BLE.UUID != "peripheral-uuid-123" {
		t.Fatalf("expected stamped BLE UUID, got %+v", got.BLE)
	}
}

func ptr(info wire.DeviceConnectionInfo) *wire.DeviceConnectionInfo { return &info }

// TestRegistryClearFiresRemovedForEveryDevice covers spec.md §3's lifecycle
// rule: "the discovery registry is created on first scan and cleared at
// each scan start."
func TestRegistryClearFiresRemovedForEveryDevice(t *testing.T) {
	reg := NewRegistry()
	var removed []string
	reg.Subscribe(Observer{DeviceRemoved: func(id string) { removed = append(removed, id) }})

	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: ptr(connInfo("a", "Alice"))}, "")
	reg.HandleDiscoveryMessage(wire.DeviceDiscoveryMessage{ConnectionInfo: ptr(connInfo("b", "Bob"))}, "")

	reg.Clear()

	if len(removed) != 2 {
		t.Fatalf("expected 2 removed events, got %d: %v", len(removed), removed)
	}
	if _, ok := reg.GetConnectionDetails("a"); ok {
		t.Fatal("expected 'a' gone after Clear")
	}
	if _, ok := reg.GetConnectionDetails("b"); ok {
		t.Fatal("expected 'b' gone after Clear")
	}
	if len(reg.Snapshot()) != 0 {
		t.Fatal("expected empty snapshot after Clear")
	}
}

// Package discovery implements the discovery registry (spec.md §4.E) and the
// BLE discovery transport (§4.F), generalizing the teacher's mDNS-based
// discovery (internal/discovery/advertise.go, browse.go, which used
// grandcat/zeroconf to announce and find a JEND sender by code hash) to a
// process-wide device registry fed by BLE GATT reads (ble.go) and, on the
// LAN, by DNS-SD TXT records (mdns.go).
package discovery

import (
	"sync"

	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// ObserverID identifies a registered observer so it can be removed later.
type ObserverID uint64

// Observer receives registry change notifications, the Go equivalent of the
// device_added/device_removed callback pair in spec.md §4.E.
type Observer struct {
	DeviceAdded   func(wire.Device)
	DeviceRemoved func(deviceID string)
}

// Registry is the process-wide device_id -> DeviceConnectionInfo map,
// guarded by a readers-writer lock, per spec.md §4.E. Construct it with
// NewRegistry; the zero value has nil maps and panics on the first insert
// or Subscribe.
type Registry struct {
	mu        sync.RWMutex
	devices   map[string]wire.DeviceConnectionInfo
	observers map[ObserverID]Observer
	nextID    ObserverID
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		devices:   make(map[string]wire.DeviceConnectionInfo),
		observers: make(map[ObserverID]Observer),
	}
}

// Subscribe registers an observer and returns an id usable with Unsubscribe.
func (r *Registry) Subscribe(obs Observer) ObserverID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.observers[id] = obs
	return id
}

// Unsubscribe removes a previously registered observer.
func (r *Registry) Unsubscribe(id ObserverID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.observers, id)
}

// GetConnectionDetails returns the stored info for deviceID, or ok=false if
// absent, per spec.md §4.E's get_connection_details.
func (r *Registry) GetConnectionDetails(deviceID string) (wire.DeviceConnectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.devices[deviceID]
	return info, ok
}

// HandleDiscoveryMessage applies one DeviceDiscoveryMessage to the registry,
// implementing spec.md §4.E's insert/update/no-op/remove decision and firing
// observers under the write lock, matching the "(lookup, update, notify)
// triple runs under the write lock" ordering rule in §5.
//
// If blePeerUUID is non-empty, it is the out-of-band BLE peripheral
// identifier supplied by the transport and is stamped into
// DeviceConnectionInfo.BLE.UUID before the message's own content is
// considered, per §4.E.
func (r *Registry) HandleDiscoveryMessage(msg wire.DeviceDiscoveryMessage, blePeerUUID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.OfflineDeviceID != nil {
		id := *msg.OfflineDeviceID
		if _, present := r.devices[id]; present {
			delete(r.devices, id)
			r.notifyRemoved(id)
		}
		return
	}

	if msg.ConnectionInfo == nil {
		return
	}
	info := *msg.ConnectionInfo
	if blePeerUUID != "" {
		if info.BLE == nil {
			info.BLE = &wire.BLEConnectionInfo{}
		}
		ble := *info.BLE
		ble.UUID = blePeerUUID
		info.BLE = &ble
	}

	id := info.Device.ID
	existing, present := r.devices[id]
	if present && existing.Equal(info) {
		return
	}
	r.devices[id] = info
	r.notifyAdded(info.Device)
}

func (r *Registry) notifyAdded(d wire.Device) {
	for _, obs := range r.observers {
		if obs.DeviceAdded != nil {
			obs.DeviceAdded(d)
		}
	}
}

func (r *Registry) notifyRemoved(id string) {
	for _, obs := range r.observers {
		if obs.DeviceRemoved != nil {
			obs.DeviceRemoved(id)
		}
	}
}

// Clear drops every stored device, firing device_removed for each, per
// spec.md §3's lifecycle rule: "the discovery registry is created on first
// scan and cleared at each scan start." Called by Scanner.Start before its
// duty-cycle loop begins.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.devices))
	for id := range r.devices {
		ids = append(ids, id)
	}
	r.devices = make(map[string]wire.DeviceConnectionInfo)
	for _, id := range ids {
		r.notifyRemoved(id)
	}
}

// Snapshot returns a copy of every currently-stored device, for callers
// (e.g. the CLI's discover subcommand) that want a one-shot listing rather
// than a subscription.
func (r *Registry) Snapshot() []wire.DeviceConnectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]wire.DeviceConnectionInfo, 0, len(r.devices))
	for _, info := range r.devices {
		out = append(out, info)
	}
	return out
}

// Package wire defines the data model exchanged between InterShare peers and the
// length-delimited codec that carries it over an encrypted stream.
package wire

// ProtocolVersion is advertised in every Device record. Bump it when the wire
// messages below change shape in a way older peers can't decode.
const ProtocolVersion = 1

// CompatibilityResult is the outcome of comparing a peer's advertised protocol
// version against our own.
type CompatibilityResult int

const (
	Compatible CompatibilityResult = iota
	OutdatedVersion
	IncompatibleNewVersion
)

// CheckCompatibility implements the receiver compatibility check from spec.md §6:
// equal -> Compatible, lower -> OutdatedVersion, higher -> IncompatibleNewVersion,
// absent (nil) -> OutdatedVersion.
func CheckCompatibility(peerVersion *uint32) CompatibilityResult {
	if peerVersion == nil {
		return OutdatedVersion
	}
	switch {
	case *peerVersion == ProtocolVersion:
		return Compatible
	case *peerVersion < ProtocolVersion:
		return OutdatedVersion
	default:
		return IncompatibleNewVersion
	}
}

// Device identifies a peer installation.
type Device struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	ProtocolVersion *uint32 `json:"protocolVersion,omitempty"`
}

// TCPConnectionInfo is where to dial a peer's TCP listener.
type TCPConnectionInfo struct {
	Hostname string `json:"hostname"`
	Port     uint16 `json:"port"`
}

// BLEConnectionInfo is where to reach a peer over BLE L2CAP for data transfer.
// PSM is assigned dynamically by the peer's GATT server at advertise time.
type BLEConnectionInfo struct {
	ServiceUUID string `json:"serviceUuid"`
	PSM         uint16 `json:"psm"`
	// UUID is the BLE peripheral identifier observed out-of-band by the scanner.
	// It is stamped in by the discovery registry, not carried on the wire by the peer.
	UUID string `json:"uuid,omitempty"`
}

// DeviceConnectionInfo is everything needed to dial a peer: its identity plus
// optional TCP and/or BLE coordinates.
type DeviceConnectionInfo struct {
	Device Device             `json:"device"`
	TCP    *TCPConnectionInfo `json:"tcp,omitempty"`
	BLE    *BLEConnectionInfo `json:"ble,omitempty"`
}

// Equal reports whether two DeviceConnectionInfo values carry the same fields,
// used by the discovery registry to decide whether a re-sighting is a no-op.
func (d DeviceConnectionInfo) Equal(other DeviceConnectionInfo) bool {
	if d.Device.ID != other.Device.ID || d.Device.Name != other.Device.Name {
		return false
	}
	if !equalVersion(d.Device.ProtocolVersion, other.Device.ProtocolVersion) {
		return false
	}
	if !equalTCP(d.TCP, other.TCP) {
		return false
	}
	if !equalBLE(d.BLE, other.BLE) {
		return false
	}
	return true
}

func equalVersion(a, b *uint32) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func equalTCP(a, b *TCPConnectionInfo) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

func equalBLE(a, b *BLEConnectionInfo) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// DeviceDiscoveryMessage is the tagged union broadcast over the BLE discovery
// characteristic: exactly one of ConnectionInfo (peer online) or
// OfflineDeviceID (peer gone) is set.
type DeviceDiscoveryMessage struct {
	ConnectionInfo  *DeviceConnectionInfo `json:"connectionInfo,omitempty"`
	OfflineDeviceID *string               `json:"offlineDeviceId,omitempty"`
}

// RequestType distinguishes a normal share push from an anonymous convenience pull.
type RequestType int

const (
	ShareRequest RequestType = iota
	ConvenienceDownloadRequest
)

// FileTransferIntent describes an incoming file (or directory, pre-archived) push.
type FileTransferIntent struct {
	FileName  *string `json:"fileName,omitempty"`
	FileSize  int64   `json:"fileSize"`
	FileCount int     `json:"fileCount"`
}

// ClipboardIntent carries inline text content; it never touches the TAR layer.
type ClipboardIntent struct {
	Content string `json:"content"`
}

// Intent is the tagged union of what a Request carries: exactly one of Files or
// Clipboard is non-nil, or both are nil for a convenience download.
type Intent struct {
	Files     *FileTransferIntent `json:"files,omitempty"`
	Clipboard *ClipboardIntent    `json:"clipboard,omitempty"`
}

// Request is the first record sent on an encrypted channel after the TLS handshake.
type Request struct {
	Type    RequestType `json:"type"`
	Device  *Device     `json:"device,omitempty"`
	ShareID *string     `json:"shareId,omitempty"`
	Intent  *Intent     `json:"intent,omitempty"`
}

// TransferRequestResponse is the receiver's answer to a file-transfer Request.
type TransferRequestResponse struct {
	Accepted bool `json:"accepted"`
}

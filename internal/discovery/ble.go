package discovery

import (
	"bytes"
	"fmt"
	"log"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/LeopoldLabs/InterShareSDK/internal/wire"
)

// The well-known UUIDs from spec.md §6. ServiceUUID and CharacteristicUUID
// are parsed once at package init, the way arnnvv-bluetalk's bluetooth.go
// declares its own service/characteristic UUIDs as package-level vars.
var (
	ServiceUUID        = mustParseUUID("68D60EB2-8AAA-4D72-8851-BD6D64E169B7")
	CharacteristicUUID = mustParseUUID("0BEBF3FE-9A5E-4ED1-8157-76281B3F0DA5")
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("discovery: invalid UUID literal %q: %v", s, err))
	}
	return u
}

// Tuning constants enumerated in spec.md §6.
const (
	maxConcurrentGATT  = 5
	gattConnectTimeout = 8 * time.Second
	gattRetries        = 2
	gattRetryBackoff   = 200 * time.Millisecond
	scanDutyOn         = 12 * time.Second
	scanDutyOff        = 1 * time.Second
	dedupWindow        = 3 * time.Second
	advertiseRetries   = 3
)

// Server advertises this device's current DeviceConnectionInfo over a GATT
// read-only characteristic, the §4.F "Server (GATT)" half.
type Server struct {
	adapter *bluetooth.Adapter
	mu      sync.RWMutex
	current wire.DeviceConnectionInfo
}

// NewServer wraps the platform's default adapter.
func NewServer(adapter *bluetooth.Adapter) *Server {
	return &Server{adapter: adapter}
}

// SetCurrent sets the DeviceConnectionInfo that Start encodes into the
// discovery characteristic's value. The value is published once, when Start
// adds the service; a SetCurrent call after Start does not change what GATT
// reads return.
func (s *Server) SetCurrent(info wire.DeviceConnectionInfo) {
	s.mu.Lock()
	s.current = info
	s.mu.Unlock()
}

func (s *Server) encodeCurrent() []byte {
	s.mu.RLock()
	info := s.current
	s.mu.RUnlock()

	var buf bytes.Buffer
	msg := wire.DeviceDiscoveryMessage{ConnectionInfo: &info}
	if err := wire.WriteRecord(&buf, msg); err != nil {
		log.Printf("discovery: encode discovery message: %v", err)
		return nil
	}
	return buf.Bytes()
}

// Start publishes the GATT service/characteristic and begins advertising,
// retrying start-advertising failures up to advertiseRetries times with
// exponential backoff (1s, 2s, 3s), per spec.md §4.F.
func (s *Server) Start(localName string) error {
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("discovery: enable adapter: %w", err)
	}

	var readChar bluetooth.Characteristic
	err := s.adapter.AddService(&bluetooth.Service{
		UUID: ServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				Handle: &readChar,
				UUID:   CharacteristicUUID,
				Flags:  bluetooth.CharacteristicReadPermission,
				Value:  s.encodeCurrent(),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("discovery: add service: %w", err)
	}

	adv := s.adapter.DefaultAdvertisement()
	if err := adv.Configure(bluetooth.AdvertisementOptions{
		LocalName:    localName,
		ServiceUUIDs: []bluetooth.UUID{ServiceUUID},
	}); err != nil {
		return fmt.Errorf("discovery: configure advertisement: %w", err)
	}

	var startErr error
	backoff := time.Second
	for attempt := 0; attempt <= advertiseRetries; attempt++ {
		if startErr = adv.Start(); startErr == nil {
			return nil
		}
		if attempt == advertiseRetries {
			break
		}
		time.Sleep(backoff)
		backoff += time.Second
	}
	return fmt.Errorf("discovery: start advertising after %d attempts: %w", advertiseRetries+1, startErr)
}

// Scanner is the §4.F "Scanner (client)" half: watches advertisements
// filtered on ServiceUUID, periodically opens a GATT connection per unique
// advertiser (deduplicated), reads the discovery characteristic, and
// forwards decoded messages to a registry.
type Scanner struct {
	adapter  *bluetooth.Adapter
	registry *Registry

	mu       sync.Mutex
	lastSeen map[string]time.Time
	sem      chan struct{}

	stop chan struct{}
}

// NewScanner wraps adapter and registry.
func NewScanner(adapter *bluetooth.Adapter, registry *Registry) *Scanner {
	return &Scanner{
		adapter:  adapter,
		registry: registry,
		lastSeen: make(map[string]time.Time),
		sem:      make(chan struct{}, maxConcurrentGATT),
		stop:     make(chan struct{}),
	}
}

// Start begins the duty-cycled scan loop (12s on, 1s off) until Stop is
// called. It runs on the caller's goroutine; callers should invoke it with
// `go scanner.Start()`.
func (sc *Scanner) Start() error {
	if err := sc.adapter.Enable(); err != nil {
		return fmt.Errorf("discovery: enable adapter: %w", err)
	}
	sc.registry.Clear()

	for {
		select {
		case <-sc.stop:
			return nil
		default:
		}

		scanDone := make(chan error, 1)
		go func() {
			scanDone <- sc.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
				if !result.HasServiceUUID(ServiceUUID) {
					return
				}
				sc.maybeVisit(a, result)
			})
		}()

		select {
		case <-time.After(scanDutyOn):
			sc.adapter.StopScan()
			<-scanDone
		case err := <-scanDone:
			if err != nil {
				log.Printf("discovery: scan error: %v", err)
			}
		case <-sc.stop:
			sc.adapter.StopScan()
			<-scanDone
			return nil
		}

		select {
		case <-time.After(scanDutyOff):
		case <-sc.stop:
			return nil
		}
	}
}

// Stop ends the scan loop; Start returns once the current cycle unwinds.
func (sc *Scanner) Stop() { close(sc.stop) }

func (sc *Scanner) maybeVisit(a *bluetooth.Adapter, result bluetooth.ScanResult) {
	addr := result.Address.String()

	sc.mu.Lock()
	if last, ok := sc.lastSeen[addr]; ok && time.Since(last) < dedupWindow {
		sc.mu.Unlock()
		return
	}
	sc.lastSeen[addr] = time.Now()
	sc.mu.Unlock()

	select {
	case sc.sem <- struct{}{}:
	default:
		// At the concurrent-connection cap; skip this sighting, it will be
		// retried on the next duty cycle.
		return
	}

	go func() {
		defer func() { <-sc.sem }()
		sc.visitWithRetry(a, result, addr)
	}()
}

func (sc *Scanner) visitWithRetry(a *bluetooth.Adapter, result bluetooth.ScanResult, addr string) {
	var lastErr error
	for attempt := 0; attempt <= gattRetries; attempt++ {
		if err := sc.visit(a, result); err != nil {
			lastErr = err
			if attempt < gattRetries {
				time.Sleep(gattRetryBackoff)
			}
			continue
		}
		return
	}
	log.Printf("discovery: gatt read from %s failed after retries: %v", addr, lastErr)
}

func (sc *Scanner) visit(a *bluetooth.Adapter, result bluetooth.ScanResult) error {
	done := make(chan error, 1)
	var msg wire.DeviceDiscoveryMessage
	var peerUUID string

	go func() {
		device, err := a.Connect(result.Address, bluetooth.ConnectionParams{})
		if err != nil {
			done <- fmt.Errorf("connect: %w", err)
			return
		}
		defer device.Disconnect()

		services, err := device.DiscoverServices([]bluetooth.UUID{ServiceUUID})
		if err != nil || len(services) == 0 {
			done <- fmt.Errorf("discover services: %w", err)
			return
		}

		chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{CharacteristicUUID})
		if err != nil || len(chars) == 0 {
			done <- fmt.Errorf("discover characteristics: %w", err)
			return
		}

		buf := make([]byte, 4096)
		n, err := chars[0].Read(buf)
		if err != nil {
			done <- fmt.Errorf("read characteristic: %w", err)
			return
		}

		if err := wire.ReadRecord(bytes.NewReader(buf[:n]), &msg); err != nil {
			done <- fmt.Errorf("decode discovery message: %w", err)
			return
		}
		peerUUID = result.Address.String()
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return err
		}
		sc.registry.HandleDiscoveryMessage(msg, peerUUID)
		return nil
	case <-time.After(gattConnectTimeout):
		return fmt.Errorf("gatt connection timed out after %s", gattConnectTimeout)
	}
}

package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
)

var (
	ErrNotFound     = errors.New("ble: no matching camera found")
	ErrNotConnected = errors.New("ble: not connected")
	ErrScanBusy     = errors.New("ble: scan already running")
)

// Discoverer finds one camera whose advertised name is accepted and returns
// an unconnected link to it.
type Discoverer interface {
	Discover(ctx context.Context, accept func(name string) bool) (camera.Link, error)
}

// Scanner discovers cameras with the host Bluetooth adapter.
type Scanner struct {
	adapter  *bluetooth.Adapter
	duration time.Duration

	enableOnce sync.Once
	enableErr  error
	scanning   sync.Mutex

	mu    sync.Mutex
	links map[string]*Link // by address, for connect events
}

// NewScanner returns a scanner on the default adapter. Each Discover call
// scans for at most duration.
func NewScanner(duration time.Duration) *Scanner {
	return &Scanner{
		adapter:  bluetooth.DefaultAdapter,
		duration: duration,
		links:    make(map[string]*Link),
	}
}

func (s *Scanner) enable() error {
	s.enableOnce.Do(func() {
		if err := s.adapter.Enable(); err != nil {
			s.enableErr = fmt.Errorf("enable adapter: %w", err)
			return
		}
		s.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
			if connected {
				return
			}
			s.mu.Lock()
			l := s.links[device.Address.String()]
			s.mu.Unlock()
			if l != nil {
				l.lost()
			}
		})
	})
	return s.enableErr
}

// Discover scans until an advertisement with an accepted name is seen, the
// scan duration elapses or ctx is done. Only one scan runs at a time.
func (s *Scanner) Discover(ctx context.Context, accept func(name string) bool) (camera.Link, error) {
	if err := s.enable(); err != nil {
		return nil, err
	}
	if !s.scanning.TryLock() {
		return nil, ErrScanBusy
	}
	defer s.scanning.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.duration)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = s.adapter.StopScan()
	}()

	debug.Info("Scanning for cameras (%v)", s.duration)
	var (
		found   bool
		address bluetooth.Address
		name    string
	)
	err := s.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
		n := result.LocalName()
		if found || n == "" || !accept(n) {
			return
		}
		found, address, name = true, result.Address, n
		debug.Verbose("Found %q at %s (rssi %d)", n, result.Address.String(), result.RSSI)
		cancel()
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if !found {
		if ctx.Err() == context.Canceled {
			return nil, ctx.Err()
		}
		return nil, ErrNotFound
	}
	return newLink(s, address, name), nil
}

func (s *Scanner) track(l *Link) {
	s.mu.Lock()
	s.links[l.address.String()] = l
	s.mu.Unlock()
}

func (s *Scanner) untrack(l *Link) {
	s.mu.Lock()
	if s.links[l.address.String()] == l {
		delete(s.links, l.address.String())
	}
	s.mu.Unlock()
}

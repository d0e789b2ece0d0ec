package ble

import (
	"context"
	"sync"
	"time"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
)

// SimLink is an in-process camera used in mock mode and tests. It records
// every packet written to it and reports paired right after Connect when
// asked to.
type SimLink struct {
	name          string
	pairOnConnect bool

	mu        sync.Mutex
	connected bool
	noControl bool
	writeErr  error
	writes    [][]byte
	ch        chan camera.Notification
}

// NewSimLink returns a disconnected simulated camera.
func NewSimLink(name string, pairOnConnect bool) *SimLink {
	return &SimLink{name: name, pairOnConnect: pairOnConnect}
}

func (l *SimLink) Name() string { return l.name }

func (l *SimLink) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return nil
	}
	l.connected = true
	l.ch = make(chan camera.Notification, notificationBuffer)
	if l.pairOnConnect {
		l.ch <- camera.Notification{Kind: camera.StatusNotification, Data: []byte{camera.PairedFlag}}
	}
	debug.Verbose("Sim camera %q connected", l.name)
	return nil
}

func (l *SimLink) Disconnect() error {
	l.Drop()
	return nil
}

// Drop takes the link down as if the camera went out of range.
func (l *SimLink) Drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return
	}
	l.connected = false
	close(l.ch)
}

func (l *SimLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// SetNoControl simulates a camera whose control characteristic is missing.
func (l *SimLink) SetNoControl(v bool) {
	l.mu.Lock()
	l.noControl = v
	l.mu.Unlock()
}

// FailWrites makes every Write return err (after recording the packet).
func (l *SimLink) FailWrites(err error) {
	l.mu.Lock()
	l.writeErr = err
	l.mu.Unlock()
}

func (l *SimLink) Write(packet []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return ErrNotConnected
	}
	if l.noControl {
		return camera.ErrNoControl
	}
	l.writes = append(l.writes, append([]byte(nil), packet...))
	debug.Packet("sim "+l.name, packet)
	return l.writeErr
}

// Writes returns a copy of every packet written so far.
func (l *SimLink) Writes() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.writes))
	copy(out, l.writes)
	return out
}

// Notify pushes a notification as if the camera sent it. It reports false
// when the link is down or the queue is full.
func (l *SimLink) Notify(kind camera.NotificationKind, data []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return false
	}
	select {
	case l.ch <- camera.Notification{Kind: kind, Data: data}:
		return true
	default:
		return false
	}
}

func (l *SimLink) Notifications() <-chan camera.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

// SimScanner "discovers" one SimLink per call, named after the first
// advertised name the predicate accepts.
type SimScanner struct {
	names []string
	delay time.Duration

	mu    sync.Mutex
	links []*SimLink
}

// NewSimScanner advertises names. Each Discover waits delay first.
func NewSimScanner(names []string, delay time.Duration) *SimScanner {
	return &SimScanner{names: names, delay: delay}
}

func (s *SimScanner) Discover(ctx context.Context, accept func(name string) bool) (camera.Link, error) {
	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.delay):
		}
	}
	for _, n := range s.names {
		if !accept(n) {
			continue
		}
		l := NewSimLink(n, true)
		s.mu.Lock()
		s.links = append(s.links, l)
		s.mu.Unlock()
		debug.Verbose("Sim scanner found %q", n)
		return l, nil
	}
	return nil, ErrNotFound
}

// Links returns every link handed out so far.
func (s *SimScanner) Links() []*SimLink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SimLink(nil), s.links...)
}

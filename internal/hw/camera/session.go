package camera

import (
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cjeanneret/BMFocus/internal/bmd"
	"github.com/cjeanneret/BMFocus/internal/debug"
)

// PairedFlag is set in byte 0 of the status payload once the operator has
// confirmed pairing on the camera.
const PairedFlag = 0x04

// Session is a Camera implementation for a Blackmagic camera reached over
// one BLE link:
// - commands are framed by package bmd and written once, never retried
// - commands are refused until the camera reports itself paired
// - status and incoming control notifications update the session state
//
// Pairing and status fields are atomics: notifications arrive on the link's
// goroutine while the focus loop reads them on its own. A reader may see a
// value one tick old.
type Session struct {
	id   uuid.UUID
	link Link

	paired     atomic.Bool
	recording  atomic.Bool
	battery    atomic.Uint64 // math.Float64bits of percent
	lastUpdate atomic.Int64  // unix milli
	closed     atomic.Bool
}

// NewSession wraps a link. The link is not connected until Open.
func NewSession(link Link) *Session {
	return &Session{
		id:   uuid.New(),
		link: link,
	}
}

// Open connects the link and starts applying its notifications.
// onLost is called once if the link goes down without Close being called.
func (s *Session) Open(onLost func(*Session)) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := s.link.Connect(); err != nil {
		return fmt.Errorf("connect %q: %w", s.link.Name(), err)
	}
	go s.pump(s.link.Notifications(), onLost)
	return nil
}

func (s *Session) pump(ch <-chan Notification, onLost func(*Session)) {
	for n := range ch {
		switch n.Kind {
		case StatusNotification:
			s.HandleStatus(n.Data)
		case ControlNotification:
			s.HandleControl(n.Data)
		}
	}
	s.paired.Store(false)
	if !s.closed.Load() {
		debug.Info("Camera %q: link lost", s.Name())
		if onLost != nil {
			onLost(s)
		}
	}
}

// Close disconnects the link. Commands fail with ErrClosed afterwards.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.paired.Store(false)
	if !s.link.IsConnected() {
		return nil
	}
	return s.link.Disconnect()
}

// HandleStatus applies a status notification.
func (s *Session) HandleStatus(data []byte) {
	if len(data) == 0 {
		return
	}
	paired := data[0]&PairedFlag != 0
	if s.paired.Swap(paired) != paired {
		debug.Live("Camera %q: paired=%v", s.Name(), paired)
	}
	s.touch()
}

// HandleControl applies an incoming camera control packet. Packets other
// than battery and transport mode are ignored.
func (s *Session) HandleControl(data []byte) {
	cmd, err := bmd.Decode(data)
	if err != nil {
		debug.Trace("Camera %q: dropping incoming packet: %v", s.Name(), err)
		return
	}
	if pct, ok := bmd.BatteryPercent(cmd); ok {
		s.battery.Store(math.Float64bits(pct))
	} else if rec, ok := bmd.Recording(cmd); ok {
		if s.recording.Swap(rec) != rec {
			debug.Live("Camera %q: recording=%v", s.Name(), rec)
		}
	}
	s.touch()
}

func (s *Session) touch() {
	s.lastUpdate.Store(time.Now().UnixMilli())
}

// ID returns the session identifier, unique for the process lifetime.
func (s *Session) ID() uuid.UUID { return s.id }

func (s *Session) Name() string { return s.link.Name() }

func (s *Session) IsConnected() bool { return !s.closed.Load() && s.link.IsConnected() }

func (s *Session) IsPaired() bool { return s.paired.Load() }

func (s *Session) IsRecording() bool { return s.recording.Load() }

func (s *Session) BatteryPercent() float64 { return math.Float64frombits(s.battery.Load()) }

// LastUpdate returns when the last notification was applied (zero if none).
func (s *Session) LastUpdate() time.Time {
	ms := s.lastUpdate.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// send frames cmd and writes it once. It fails without writing when the
// session is closed or not paired.
func (s *Session) send(op string, value interface{}, cmd bmd.Command) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.paired.Load() {
		return ErrNotPaired
	}
	pkt := cmd.Encode()
	debug.Packet("tx "+s.Name(), pkt)
	if err := s.link.Write(pkt); err != nil {
		return fmt.Errorf("%s on %q: %w", op, s.Name(), err)
	}
	debug.Command(s.Name(), op, value)
	return nil
}

// SetFocus assigns the focus position (fixed16, 0.0 near to 1.0 far).
func (s *Session) SetFocus(value float64) error {
	return s.send("SetFocus", value, bmd.Focus(value))
}

func (s *Session) SetAutoFocus() error {
	return s.send("SetAutoFocus", nil, bmd.AutoFocus())
}

func (s *Session) SetAperture(value float64) error {
	return s.send("SetAperture", value, bmd.Aperture(value))
}

func (s *Session) SetAutoExposure() error {
	return s.send("SetAutoExposure", nil, bmd.AutoExposure())
}

func (s *Session) SetISO(value int) error {
	return s.send("SetISO", value, bmd.ISO(value))
}

// SetShutter assigns the shutter angle in degrees.
func (s *Session) SetShutter(angle float64) error {
	return s.send("SetShutter", angle, bmd.Shutter(angle))
}

func (s *Session) SetWhiteBalance(kelvin int) error {
	return s.send("SetWhiteBalance", kelvin, bmd.WhiteBalance(kelvin))
}

func (s *Session) SetTint(value int) error {
	return s.send("SetTint", value, bmd.Tint(value))
}

func (s *Session) SetAutoWhiteBalance() error {
	return s.send("SetAutoWhiteBalance", nil, bmd.AutoWhiteBalance())
}

func (s *Session) SetFrameRate(fps float64) error {
	return s.send("SetFrameRate", fps, bmd.FrameRate(fps))
}

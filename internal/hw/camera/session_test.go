package camera

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/BMFocus/internal/bmd"
)

// fakeLink records writes and lets tests push notifications.
type fakeLink struct {
	mu          sync.Mutex
	name        string
	connected   bool
	resolved    bool
	writeErr    error
	writes      [][]byte
	disconnects int
	ch          chan Notification
}

func newFakeLink(name string) *fakeLink {
	return &fakeLink{name: name, resolved: true, ch: make(chan Notification, 8)}
}

func (l *fakeLink) Name() string { return l.name }

func (l *fakeLink) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = true
	return nil
}

func (l *fakeLink) Disconnect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		l.connected = false
		l.disconnects++
		close(l.ch)
	}
	return nil
}

// drop simulates link loss.
func (l *fakeLink) drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.connected = false
	close(l.ch)
}

func (l *fakeLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *fakeLink) Write(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.resolved {
		return ErrNoControl
	}
	l.writes = append(l.writes, append([]byte(nil), p...))
	return l.writeErr
}

func (l *fakeLink) Notifications() <-chan Notification { return l.ch }

func (l *fakeLink) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.writes)
}

func (l *fakeLink) lastWrite() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.writes) == 0 {
		return nil
	}
	return l.writes[len(l.writes)-1]
}

// pairedSession returns an open session already reporting paired.
func pairedSession(t *testing.T, name string) (*Session, *fakeLink) {
	t.Helper()
	link := newFakeLink(name)
	s := NewSession(link)
	if err := s.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.HandleStatus([]byte{PairedFlag})
	return s, link
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSession_ImplementsCamera(t *testing.T) {
	var _ Camera = NewSession(newFakeLink("cam")) // compile-time check
}

func TestSession_PairingFromStatusBit(t *testing.T) {
	s := NewSession(newFakeLink("cam"))
	cases := []struct {
		name   string
		status []byte
		want   bool
	}{
		{"paired_bit", []byte{0x04}, true},
		{"other_bits_only", []byte{0x01 | 0x02 | 0x08}, false},
		{"all_bits", []byte{0xFF}, true},
		{"cleared", []byte{0x00}, false},
		{"paired_with_trailing", []byte{0x07, 0x12, 0x34}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s.HandleStatus(tc.status)
			if got := s.IsPaired(); got != tc.want {
				t.Errorf("IsPaired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSession_EmptyStatusIgnored(t *testing.T) {
	s := NewSession(newFakeLink("cam"))
	s.HandleStatus([]byte{PairedFlag})
	s.HandleStatus(nil)
	if !s.IsPaired() {
		t.Error("empty status payload should not change pairing")
	}
}

func TestSession_RejectsCommandsWhenUnpaired(t *testing.T) {
	link := newFakeLink("cam")
	s := NewSession(link)
	if err := s.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.SetFocus(0.5); !errors.Is(err, ErrNotPaired) {
		t.Errorf("SetFocus error = %v, want ErrNotPaired", err)
	}
	if n := link.writeCount(); n != 0 {
		t.Errorf("writes = %d, want 0 (commands must not be queued)", n)
	}
}

func TestSession_RejectsCommandsWithoutControlCharacteristic(t *testing.T) {
	s, link := pairedSession(t, "cam")
	link.resolved = false

	if err := s.SetISO(800); !errors.Is(err, ErrNoControl) {
		t.Errorf("SetISO error = %v, want ErrNoControl", err)
	}
	if n := link.writeCount(); n != 0 {
		t.Errorf("writes = %d, want 0", n)
	}
}

func TestSession_WriteFailureIsNotRetried(t *testing.T) {
	s, link := pairedSession(t, "cam")
	boom := errors.New("gatt write rejected")
	link.writeErr = boom

	if err := s.SetFocus(0.1); !errors.Is(err, boom) {
		t.Errorf("SetFocus error = %v, want %v", err, boom)
	}
	if n := link.writeCount(); n != 1 {
		t.Errorf("writes = %d, want exactly 1", n)
	}
}

func TestSession_SettersWriteEncodedPackets(t *testing.T) {
	s, link := pairedSession(t, "cam")
	cases := []struct {
		name string
		call func() error
		want []byte
	}{
		{"focus", func() error { return s.SetFocus(0.5) }, bmd.Focus(0.5).Encode()},
		{"auto_focus", s.SetAutoFocus, bmd.AutoFocus().Encode()},
		{"aperture", func() error { return s.SetAperture(0.3) }, bmd.Aperture(0.3).Encode()},
		{"auto_exposure", s.SetAutoExposure, bmd.AutoExposure().Encode()},
		{"iso", func() error { return s.SetISO(400) }, bmd.ISO(400).Encode()},
		{"shutter", func() error { return s.SetShutter(180) }, bmd.Shutter(180).Encode()},
		{"white_balance", func() error { return s.SetWhiteBalance(5600) }, bmd.WhiteBalance(5600).Encode()},
		{"tint", func() error { return s.SetTint(-12) }, bmd.Tint(-12).Encode()},
		{"auto_white_balance", s.SetAutoWhiteBalance, bmd.AutoWhiteBalance().Encode()},
		{"frame_rate", func() error { return s.SetFrameRate(24) }, bmd.FrameRate(24).Encode()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); err != nil {
				t.Fatalf("call: %v", err)
			}
			if got := link.lastWrite(); !bytes.Equal(got, tc.want) {
				t.Errorf("wrote % x, want % x", got, tc.want)
			}
		})
	}
}

func TestSession_NotificationsUpdatePairing(t *testing.T) {
	link := newFakeLink("cam")
	s := NewSession(link)
	if err := s.Open(nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	link.ch <- Notification{Kind: StatusNotification, Data: []byte{PairedFlag}}
	waitFor(t, "paired", s.IsPaired)

	link.ch <- Notification{Kind: StatusNotification, Data: []byte{0x00}}
	waitFor(t, "unpaired", func() bool { return !s.IsPaired() })

	if s.LastUpdate().IsZero() {
		t.Error("LastUpdate should be set after a notification")
	}
}

func TestSession_IncomingControlUpdatesStatus(t *testing.T) {
	s := NewSession(newFakeLink("cam"))

	battery := bmd.Command{
		Category: bmd.CategoryStatus, Parameter: bmd.ParamBattery, DataType: bmd.TypeInt16,
		Payload: []byte{0xE8, 0x1C, 57, 0, 0, 0},
	}
	s.HandleControl(battery.Encode())
	if got := s.BatteryPercent(); got != 57 {
		t.Errorf("BatteryPercent() = %v, want 57", got)
	}

	record := bmd.Command{
		Category: bmd.CategoryMedia, Parameter: bmd.ParamTransportMode, DataType: bmd.TypeInt8,
		Payload: []byte{byte(bmd.TransportRecord), 0, 0, 1, 0},
	}
	s.HandleControl(record.Encode())
	if !s.IsRecording() {
		t.Error("IsRecording() should be true after a record transport packet")
	}

	s.HandleControl([]byte{0x01}) // malformed, ignored
	if !s.IsRecording() || s.BatteryPercent() != 57 {
		t.Error("malformed packet should not change state")
	}
}

func TestSession_LinkLossCallsOnLostOnce(t *testing.T) {
	link := newFakeLink("cam")
	s := NewSession(link)

	var mu sync.Mutex
	lost := 0
	if err := s.Open(func(*Session) {
		mu.Lock()
		lost++
		mu.Unlock()
	}); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.HandleStatus([]byte{PairedFlag})

	link.drop()
	waitFor(t, "onLost", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lost == 1
	})
	if s.IsPaired() {
		t.Error("session should be unpaired after link loss")
	}
	if s.IsConnected() {
		t.Error("session should be disconnected after link loss")
	}
}

func TestSession_CloseDisconnectsWithoutOnLost(t *testing.T) {
	link := newFakeLink("cam")
	s := NewSession(link)
	called := make(chan struct{}, 1)
	if err := s.Open(func(*Session) { called <- struct{}{} }); err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.HandleStatus([]byte{PairedFlag})

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if link.disconnects != 1 {
		t.Errorf("disconnects = %d, want 1", link.disconnects)
	}
	if err := s.SetFocus(0.2); !errors.Is(err, ErrClosed) {
		t.Errorf("SetFocus after Close error = %v, want ErrClosed", err)
	}
	select {
	case <-called:
		t.Error("onLost must not be called on explicit Close")
	case <-time.After(50 * time.Millisecond):
	}
	if err := s.Open(nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Open after Close error = %v, want ErrClosed", err)
	}
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := NewSession(newFakeLink("a"))
	b := NewSession(newFakeLink("b"))
	if a.ID() == b.ID() {
		t.Error("sessions should have distinct IDs")
	}
}

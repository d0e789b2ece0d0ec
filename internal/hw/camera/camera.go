package camera

import "errors"

// Camera is the high-level interface used by the rest of the application.
// It represents one remotely controlled camera, regardless of the link
// carrying its commands.
type Camera interface {
	Name() string
	IsConnected() bool
	IsPaired() bool

	SetFocus(value float64) error
	SetAutoFocus() error
	SetAperture(value float64) error
	SetAutoExposure() error
	SetISO(value int) error
	SetShutter(angle float64) error
	SetWhiteBalance(kelvin int) error
	SetTint(value int) error
	SetAutoWhiteBalance() error
	SetFrameRate(fps float64) error
}

// NotificationKind tells which characteristic a notification came from.
type NotificationKind int

const (
	// StatusNotification carries the camera status bitfield (pairing).
	StatusNotification NotificationKind = iota
	// ControlNotification carries an incoming camera control packet.
	ControlNotification
)

// Notification is one payload received from the camera.
type Notification struct {
	Kind NotificationKind
	Data []byte
}

// Link is the connection to one camera, owned by the BLE stack.
// Notifications are delivered on a channel that is closed when the link
// goes down, whether by Disconnect or by link loss.
type Link interface {
	Name() string
	Connect() error
	Disconnect() error
	IsConnected() bool
	// Write sends one packet to the control characteristic. It returns
	// ErrNoControl without writing when the characteristic is unresolved.
	Write(packet []byte) error
	Notifications() <-chan Notification
}

var (
	ErrNotPaired       = errors.New("camera: not paired")
	ErrNoControl       = errors.New("camera: control characteristic not resolved")
	ErrClosed          = errors.New("camera: session closed")
	ErrRegistryFull    = errors.New("camera: registry full")
	ErrNoActive        = errors.New("camera: no active camera")
	ErrIndexOutOfRange = errors.New("camera: index out of range")
)

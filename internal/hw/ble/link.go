package ble

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
)

// notificationBuffer is how many notifications may queue before new ones
// are dropped.
const notificationBuffer = 16

// Link is a camera.Link over a BLE GATT connection.
type Link struct {
	scanner *Scanner
	address bluetooth.Address
	name    string

	mu        sync.Mutex
	device    bluetooth.Device
	control   *bluetooth.DeviceCharacteristic
	connected bool
	ch        chan camera.Notification
}

func newLink(s *Scanner, address bluetooth.Address, name string) *Link {
	return &Link{scanner: s, address: address, name: name}
}

func (l *Link) Name() string { return l.name }

// Connect connects to the camera, resolves the outgoing control
// characteristic and subscribes to status and incoming control
// notifications. A camera without a control characteristic stays connected
// but every Write fails with camera.ErrNoControl.
func (l *Link) Connect() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		return nil
	}

	device, err := l.scanner.adapter.Connect(l.address, bluetooth.ConnectionParams{})
	if err != nil {
		return err
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil || len(services) == 0 {
		_ = device.Disconnect()
		return fmt.Errorf("camera service not found: %v", err)
	}
	chars, err := services[0].DiscoverCharacteristics(nil)
	if err != nil {
		_ = device.Disconnect()
		return fmt.Errorf("discover characteristics: %w", err)
	}

	l.device = device
	l.control = nil
	l.ch = make(chan camera.Notification, notificationBuffer)
	l.connected = true
	l.scanner.track(l)

	for i := range chars {
		c := chars[i]
		switch c.UUID() {
		case outgoingControlUUID:
			l.control = &c
		case statusUUID:
			l.subscribe(c, camera.StatusNotification)
		case incomingControlUUID:
			l.subscribe(c, camera.ControlNotification)
		}
	}
	if l.control == nil {
		debug.Info("Camera %q: control characteristic not found", l.name)
	}
	debug.Info("Camera %q connected (%s)", l.name, l.address.String())
	return nil
}

func (l *Link) subscribe(c bluetooth.DeviceCharacteristic, kind camera.NotificationKind) {
	err := c.EnableNotifications(func(buf []byte) {
		data := append([]byte(nil), buf...)
		debug.Packet("rx "+l.name, data)
		l.deliver(camera.Notification{Kind: kind, Data: data})
	})
	if err != nil {
		debug.Error(fmt.Errorf("camera %q: enable notifications: %w", l.name, err))
	}
}

func (l *Link) deliver(n camera.Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.connected {
		return
	}
	select {
	case l.ch <- n:
	default:
		debug.Trace("Camera %q: notification dropped", l.name)
	}
}

// Disconnect closes the connection and the notification channel.
func (l *Link) Disconnect() error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return nil
	}
	l.down()
	device := l.device
	l.mu.Unlock()
	return device.Disconnect()
}

// lost is called by the adapter connect handler.
func (l *Link) lost() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.connected {
		l.down()
	}
}

// down must be called with mu held.
func (l *Link) down() {
	l.connected = false
	l.control = nil
	close(l.ch)
	l.scanner.untrack(l)
}

func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Link) Write(packet []byte) error {
	l.mu.Lock()
	control, connected := l.control, l.connected
	l.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if control == nil {
		return camera.ErrNoControl
	}
	_, err := control.WriteWithoutResponse(packet)
	return err
}

func (l *Link) Notifications() <-chan camera.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/ble"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
	"github.com/cjeanneret/BMFocus/internal/logic/focus"
	"github.com/cjeanneret/BMFocus/internal/protocol"
)

var (
	ErrUnknownType  = errors.New("control: unknown message type")
	ErrInvalidValue = errors.New("control: invalid value")
	ErrScanBusy     = errors.New("control: camera scan already running")
)

// Notifier relays events to connected clients.
type Notifier interface {
	Publish(msg *protocol.Message)
}

// State is the controller state sent to clients in settings events.
type State struct {
	focus.SettingsSnapshot
	ActiveIndex int           `json:"active_index"`
	Cameras     []camera.Info `json:"cameras"`
}

// Handler applies control messages to the focus settings and the camera
// registry. It is safe for concurrent use.
type Handler struct {
	cameras  *camera.Registry
	settings *focus.Settings
	scanner  ble.Discoverer
	accept   func(name string) bool
	notify   Notifier

	scanMu   sync.Mutex
	scanning bool
	wg       sync.WaitGroup

	// lifecycle orders registry changes with their connected and
	// disconnected events.
	lifecycle sync.Mutex
}

// NewHandler wires a handler. accept decides which advertised names are
// cameras; notify may be nil.
func NewHandler(cameras *camera.Registry, settings *focus.Settings, scanner ble.Discoverer, accept func(string) bool, notify Notifier) *Handler {
	return &Handler{
		cameras:  cameras,
		settings: settings,
		scanner:  scanner,
		accept:   accept,
		notify:   notify,
	}
}

// Handle applies one message. ctx bounds background work started by the
// message (camera discovery) and should outlive the client connection.
func (h *Handler) Handle(ctx context.Context, msg *protocol.Message) error {
	debug.Verbose("Control message %q %s", msg.Type, msg.Value)

	switch msg.Type {
	case protocol.TypeConnectCamera:
		return h.ConnectCamera(ctx)

	case protocol.TypeDisconnectCamera:
		var idx int
		if err := parse(msg, &idx); err != nil {
			return err
		}
		return h.DisconnectCamera(idx)

	case protocol.TypeSelectCamera:
		var idx int
		if err := parse(msg, &idx); err != nil {
			return err
		}
		if err := h.cameras.SetActive(idx); err != nil {
			return err
		}
		debug.Info("Active camera: %d", idx)
		h.publishState()
		return nil

	case protocol.TypeSetSensitivity:
		var v float64
		if err := parse(msg, &v); err != nil {
			return err
		}
		if err := h.settings.SetSensitivity(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		debug.Info("Sensitivity: %g", v)
		h.publishState()
		return nil

	case protocol.TypeSetEncoderDegrees:
		var v int
		if err := parse(msg, &v); err != nil {
			return err
		}
		if err := h.settings.SetEncoderDegrees(v); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		debug.Info("Encoder degrees: %d", v)
		h.publishState()
		return nil

	case protocol.TypeSetSyncMode:
		var v bool
		if err := parse(msg, &v); err != nil {
			return err
		}
		h.settings.SetSynchronized(v)
		debug.Info("Synchronized: %v", v)
		h.publishState()
		return nil

	case protocol.TypeSetFocus:
		return withFloat(h, msg, (*camera.Session).SetFocus)
	case protocol.TypeSetAperture:
		return withFloat(h, msg, (*camera.Session).SetAperture)
	case protocol.TypeSetShutter:
		return withFloat(h, msg, (*camera.Session).SetShutter)
	case protocol.TypeSetFrameRate:
		return withFloat(h, msg, (*camera.Session).SetFrameRate)
	case protocol.TypeSetISO:
		return withInt(h, msg, (*camera.Session).SetISO)
	case protocol.TypeSetWhiteBalance:
		return withInt(h, msg, (*camera.Session).SetWhiteBalance)
	case protocol.TypeSetTint:
		return withInt(h, msg, (*camera.Session).SetTint)

	case protocol.TypeAutoFocus:
		return h.onActive((*camera.Session).SetAutoFocus)
	case protocol.TypeAutoExposure:
		return h.onActive((*camera.Session).SetAutoExposure)
	case protocol.TypeAutoWhiteBalance:
		return h.onActive((*camera.Session).SetAutoWhiteBalance)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
}

func parse(msg *protocol.Message, v any) error {
	if err := msg.ParseValue(v); err != nil {
		return fmt.Errorf("%w for %s: %v", ErrInvalidValue, msg.Type, err)
	}
	return nil
}

func withFloat(h *Handler, msg *protocol.Message, set func(*camera.Session, float64) error) error {
	var v float64
	if err := parse(msg, &v); err != nil {
		return err
	}
	return h.onActive(func(s *camera.Session) error { return set(s, v) })
}

func withInt(h *Handler, msg *protocol.Message, set func(*camera.Session, int) error) error {
	var v int
	if err := parse(msg, &v); err != nil {
		return err
	}
	return h.onActive(func(s *camera.Session) error { return set(s, v) })
}

// onActive runs a one-shot command on the active camera.
func (h *Handler) onActive(cmd func(*camera.Session) error) error {
	s, ok := h.cameras.Active()
	if !ok {
		return camera.ErrNoActive
	}
	return cmd(s)
}

// ConnectCamera starts discovery in the background and returns at once.
// Nothing is started when the registry is full or a scan is running.
func (h *Handler) ConnectCamera(ctx context.Context) error {
	if h.cameras.Full() {
		return camera.ErrRegistryFull
	}
	h.scanMu.Lock()
	defer h.scanMu.Unlock()
	if h.scanning {
		return ErrScanBusy
	}
	h.scanning = true
	h.wg.Add(1)
	go h.connect(ctx)
	return nil
}

func (h *Handler) connect(ctx context.Context) {
	defer h.wg.Done()
	defer func() {
		h.scanMu.Lock()
		h.scanning = false
		h.scanMu.Unlock()
	}()

	link, err := h.scanner.Discover(ctx, h.accept)
	if err != nil {
		debug.Error(fmt.Errorf("camera discovery: %w", err))
		h.publish(protocol.NewError(protocol.ErrScanFailed, err.Error()))
		return
	}

	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	// Registered before Open so a link lost during Open finds it.
	s := camera.NewSession(link)
	idx, ok := h.cameras.Add(s)
	if !ok {
		_ = s.Close()
		h.publish(protocol.NewError(protocol.ErrRegistryFull, camera.ErrRegistryFull.Error()))
		return
	}
	if err := s.Open(h.lost); err != nil {
		h.cameras.Remove(s)
		debug.Error(err)
		h.publish(protocol.NewError(protocol.ErrScanFailed, err.Error()))
		return
	}

	debug.Camera(idx, s.Name(), "connected")
	h.publishCamera(protocol.TypeCameraConnected, idx, s)
}

// lost is the session link-loss callback.
func (h *Handler) lost(s *camera.Session) {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	idx, ok := h.cameras.Remove(s)
	if !ok {
		return
	}
	debug.Camera(idx, s.Name(), "link lost")
	h.publishCamera(protocol.TypeCameraDisconnected, idx, s)
}

// DisconnectCamera closes the camera at idx and removes it from the registry.
func (h *Handler) DisconnectCamera(idx int) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()
	s, ok := h.cameras.Get(idx)
	if !ok {
		return camera.ErrIndexOutOfRange
	}
	if _, ok := h.cameras.Remove(s); !ok {
		return camera.ErrIndexOutOfRange
	}
	debug.Camera(idx, s.Name(), "disconnected")
	h.publishCamera(protocol.TypeCameraDisconnected, idx, s)
	return nil
}

// Wait blocks until background discoveries have finished.
func (h *Handler) Wait() { h.wg.Wait() }

// State returns the current settings and cameras.
func (h *Handler) State() State {
	return State{
		SettingsSnapshot: h.settings.Snapshot(),
		ActiveIndex:      h.cameras.ActiveIndex(),
		Cameras:          h.cameras.Snapshot(),
	}
}

// StateMessage wraps State in a settings event.
func (h *Handler) StateMessage() *protocol.Message {
	m, err := protocol.NewMessage(protocol.TypeSettings, h.State())
	if err != nil {
		return protocol.NewError(protocol.ErrCommandFailed, err.Error())
	}
	return m
}

func (h *Handler) publishState() {
	h.publish(h.StateMessage())
}

func (h *Handler) publishCamera(kind string, idx int, s *camera.Session) {
	m, err := protocol.NewMessage(kind, protocol.CameraPayload{Index: idx, Name: s.Name(), ID: s.ID().String()})
	if err != nil {
		debug.Error(err)
		return
	}
	h.publish(m)
}

func (h *Handler) publish(m *protocol.Message) {
	if h.notify != nil {
		h.notify.Publish(m)
	}
}

// ErrorCode maps a Handle error to a protocol error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownType):
		return protocol.ErrUnknownType
	case errors.Is(err, ErrInvalidValue):
		return protocol.ErrInvalidValue
	case errors.Is(err, ErrScanBusy):
		return protocol.ErrScanBusy
	case errors.Is(err, camera.ErrRegistryFull):
		return protocol.ErrRegistryFull
	case errors.Is(err, camera.ErrNoActive), errors.Is(err, camera.ErrIndexOutOfRange):
		return protocol.ErrNoCamera
	default:
		return protocol.ErrCommandFailed
	}
}

package protocol

import (
	"encoding/json"
	"errors"
)

// Inbound message types (client -> controller).
const (
	TypeConnectCamera     = "connect_camera"
	TypeDisconnectCamera  = "disconnect_camera"
	TypeSelectCamera      = "select_camera"
	TypeSetFocus          = "set_focus"
	TypeSetSensitivity    = "set_sensitivity"
	TypeSetEncoderDegrees = "set_encoder_degrees"
	TypeSetSyncMode       = "set_sync_mode"
	TypeSetAperture       = "set_aperture"
	TypeSetISO            = "set_iso"
	TypeSetShutter        = "set_shutter"
	TypeSetWhiteBalance   = "set_white_balance"
	TypeSetTint           = "set_tint"
	TypeSetFrameRate      = "set_frame_rate"
	TypeAutoFocus         = "auto_focus"
	TypeAutoExposure      = "auto_exposure"
	TypeAutoWhiteBalance  = "auto_white_balance"
)

// Outbound event types (controller -> clients).
const (
	TypeCameraConnected    = "camera_connected"
	TypeCameraDisconnected = "camera_disconnected"
	TypeSettings           = "settings"
	TypeError              = "error"
)

// Error codes
const (
	ErrInvalidMessage = "INVALID_MESSAGE"
	ErrUnknownType    = "UNKNOWN_TYPE"
	ErrInvalidValue   = "INVALID_VALUE"
	ErrNoCamera       = "NO_CAMERA"
	ErrRegistryFull   = "REGISTRY_FULL"
	ErrScanBusy       = "SCAN_BUSY"
	ErrScanFailed     = "SCAN_FAILED"
	ErrCommandFailed  = "COMMAND_FAILED"
)

// ErrMissingType is returned by Parse for an envelope without a type.
var ErrMissingType = errors.New("protocol: message has no type")

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// CameraPayload identifies one camera in connect/disconnect events.
type CameraPayload struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	ID    string `json:"id"`
}

// ErrorPayload for error messages
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage creates a new message with the given type and value.
// A nil value produces a message without a value field.
func NewMessage(msgType string, value any) (*Message, error) {
	m := &Message{Type: msgType}
	if value == nil {
		return m, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	m.Value = data
	return m, nil
}

// NewError builds an error event.
func NewError(code, message string) *Message {
	m, _ := NewMessage(TypeError, ErrorPayload{Code: code, Message: message})
	return m
}

// Parse decodes one envelope.
func Parse(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Type == "" {
		return nil, ErrMissingType
	}
	return &m, nil
}

// ParseValue unmarshals the value into v.
func (m *Message) ParseValue(v any) error {
	if len(m.Value) == 0 {
		return errors.New("protocol: message has no value")
	}
	return json.Unmarshal(m.Value, v)
}

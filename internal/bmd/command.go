// Package bmd encodes and decodes Blackmagic camera control packets as
// carried over the camera's Bluetooth LE control characteristics.
package bmd

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Categories.
const (
	CategoryLens   uint8 = 0
	CategoryVideo  uint8 = 1
	CategoryStatus uint8 = 9
	CategoryMedia  uint8 = 10
)

// Data types.
const (
	TypeVoid    uint8 = 0
	TypeInt8    uint8 = 1
	TypeInt16   uint8 = 2
	TypeInt32   uint8 = 3
	TypeFixed16 uint8 = 128
)

// OpAssign sets a parameter to the payload value.
const OpAssign uint8 = 0

// Parameters of the lens category.
const (
	ParamFocus            uint8 = 0
	ParamAutoFocus        uint8 = 1
	ParamAperture         uint8 = 3
	ParamAutoApertureOnce uint8 = 5
)

// Parameters of the video category.
const (
	ParamWhiteBalance     uint8 = 2
	ParamAutoWhiteBalance uint8 = 3
	ParamFrameRate        uint8 = 9
	ParamShutterAngle     uint8 = 11
	ParamISO              uint8 = 14
)

// Parameters of the status and media categories (camera -> controller).
const (
	ParamBattery       uint8 = 0
	ParamTransportMode uint8 = 1
)

// Destination is always camera 0: one logical camera per BLE link.
const (
	destination  uint8 = 0
	commandID    uint8 = 0
	headerLen          = 4 // destination, length, command id, reserved
	fixed16Scale       = 2048
)

// Command is one camera control command before framing.
type Command struct {
	Category  uint8
	Parameter uint8
	DataType  uint8
	Operation uint8
	Payload   []byte
}

// Encode frames c as [destination, length, id, reserved, category,
// parameter, type, operation, payload...] zero-padded to a multiple of 4.
// length counts the command header and the payload, not the padding.
func (c Command) Encode() []byte {
	n := headerLen + 4 + len(c.Payload)
	padded := (n + 3) &^ 3
	pkt := make([]byte, padded)
	pkt[0] = destination
	pkt[1] = uint8(len(c.Payload) + 4)
	pkt[2] = commandID
	pkt[3] = 0
	pkt[4] = c.Category
	pkt[5] = c.Parameter
	pkt[6] = c.DataType
	pkt[7] = c.Operation
	copy(pkt[8:], c.Payload)
	return pkt
}

func (c Command) String() string {
	return fmt.Sprintf("%d.%d type=%d op=%d payload=% x", c.Category, c.Parameter, c.DataType, c.Operation, c.Payload)
}

// Focus assigns the lens focus position as fixed16 (0.0 near, 1.0 far).
func Focus(value float64) Command {
	return Command{CategoryLens, ParamFocus, TypeFixed16, OpAssign, fixed16(value)}
}

// AutoFocus triggers a one-shot autofocus.
func AutoFocus() Command {
	return Command{CategoryLens, ParamAutoFocus, TypeVoid, OpAssign, nil}
}

// Aperture assigns the normalised aperture as fixed16.
func Aperture(value float64) Command {
	return Command{CategoryLens, ParamAperture, TypeFixed16, OpAssign, fixed16(value)}
}

// AutoExposure triggers a one-shot auto aperture.
func AutoExposure() Command {
	return Command{CategoryLens, ParamAutoApertureOnce, TypeVoid, OpAssign, nil}
}

// ISO assigns the sensor gain as an ISO value.
func ISO(value int) Command {
	return Command{CategoryVideo, ParamISO, TypeInt32, OpAssign, int32LE(saturate32(float64(value)))}
}

// Shutter assigns the shutter angle in degrees, sent in hundredths.
func Shutter(angle float64) Command {
	return Command{CategoryVideo, ParamShutterAngle, TypeInt32, OpAssign, int32LE(saturate32(angle * 100))}
}

// WhiteBalance assigns the colour temperature in Kelvin.
func WhiteBalance(kelvin int) Command {
	return Command{CategoryVideo, ParamWhiteBalance, TypeInt16, OpAssign, int16LE(saturate16(float64(kelvin)))}
}

// Tint is sent on the white balance parameter, followed by two zero bytes
// in the slot of the paired colour temperature.
func Tint(value int) Command {
	payload := append(int16LE(saturate16(float64(value))), 0, 0)
	return Command{CategoryVideo, ParamWhiteBalance, TypeInt16, OpAssign, payload}
}

// AutoWhiteBalance triggers a one-shot auto white balance.
func AutoWhiteBalance() Command {
	return Command{CategoryVideo, ParamAutoWhiteBalance, TypeVoid, OpAssign, nil}
}

// FrameRate assigns the frame rate in fps, sent in hundredths.
func FrameRate(fps float64) Command {
	return Command{CategoryVideo, ParamFrameRate, TypeInt16, OpAssign, int16LE(saturate16(fps * 100))}
}

func fixed16(v float64) []byte {
	return int16LE(saturate16(v * fixed16Scale))
}

// saturate16 rounds v half away from zero and clamps it to the int16 range.
// NaN encodes as 0.
func saturate16(v float64) int16 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(math.Round(v))
}

// saturate32 is saturate16 for the int32 range.
func saturate32(v float64) int32 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(math.Round(v))
}

func int16LE(v int16) []byte {
	return binary.LittleEndian.AppendUint16(nil, uint16(v))
}

func int32LE(v int32) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(v))
}

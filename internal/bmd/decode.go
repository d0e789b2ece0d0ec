package bmd

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortPacket = errors.New("bmd: packet too short")
	ErrBadLength   = errors.New("bmd: length field exceeds packet")
)

// Decode parses one framed packet back into a Command. Padding bytes are
// dropped; the payload is a copy.
func Decode(pkt []byte) (Command, error) {
	if len(pkt) < headerLen+4 {
		return Command{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(pkt))
	}
	n := int(pkt[1])
	if n < 4 || headerLen+n > len(pkt) {
		return Command{}, fmt.Errorf("%w: length=%d, packet=%d bytes", ErrBadLength, n, len(pkt))
	}
	c := Command{
		Category:  pkt[4],
		Parameter: pkt[5],
		DataType:  pkt[6],
		Operation: pkt[7],
	}
	if n > 4 {
		c.Payload = append([]byte(nil), pkt[8:headerLen+n]...)
	}
	return c, nil
}

// Int16s returns the payload as little-endian int16 values.
func (c Command) Int16s() []int16 {
	out := make([]int16, len(c.Payload)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.Payload[2*i:]))
	}
	return out
}

// Fixed16 returns the first payload value as a fixed16 number.
func (c Command) Fixed16() (float64, bool) {
	if c.DataType != TypeFixed16 || len(c.Payload) < 2 {
		return 0, false
	}
	return float64(int16(binary.LittleEndian.Uint16(c.Payload))) / fixed16Scale, true
}

// Is reports whether c addresses the given category and parameter.
func (c Command) Is(category, parameter uint8) bool {
	return c.Category == category && c.Parameter == parameter
}

// TransportRecord is the transport mode reported while recording.
const TransportRecord int8 = 2

// BatteryPercent extracts the remaining charge from a status/battery packet
// (int16 array: voltage in mV, percent, flags).
func BatteryPercent(c Command) (float64, bool) {
	if !c.Is(CategoryStatus, ParamBattery) || c.DataType != TypeInt16 {
		return 0, false
	}
	v := c.Int16s()
	if len(v) < 2 {
		return 0, false
	}
	return float64(v[1]), true
}

// Recording extracts the record state from a media/transport mode packet
// (int8 array: mode, speed, flags, slot 1 medium, slot 2 medium).
func Recording(c Command) (bool, bool) {
	if !c.Is(CategoryMedia, ParamTransportMode) || c.DataType != TypeInt8 || len(c.Payload) < 1 {
		return false, false
	}
	return int8(c.Payload[0]) == TransportRecord, true
}

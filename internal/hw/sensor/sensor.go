package sensor

import (
	"fmt"

	"github.com/cjeanneret/BMFocus/internal/hw/adc"
)

// EncoderCounts is the resolution of the AS5600 over one turn.
const EncoderCounts = 4096

// Encoder reads an AS5600 magnetic rotary encoder wired in analog output
// mode to one ADC channel. The reading is absolute within a turn; turn
// counting is left to the caller.
type Encoder struct {
	adc     adc.Driver
	channel int
}

// NewEncoder creates an encoder on the given ADC channel.
func NewEncoder(d adc.Driver, channel int) *Encoder {
	return &Encoder{adc: d, channel: channel}
}

// Raw returns the 12-bit angle sample in [0, 4096).
func (e *Encoder) Raw() (uint16, error) {
	v, err := e.adc.Read(e.channel)
	if err != nil {
		return 0, fmt.Errorf("read encoder: %w", err)
	}
	if v >= EncoderCounts {
		v = EncoderCounts - 1
	}
	return v, nil
}

// Angle returns the shaft angle in degrees, in [0, 360).
func (e *Encoder) Angle() (float64, error) {
	raw, err := e.Raw()
	if err != nil {
		return 0, err
	}
	return RawToDegrees(raw), nil
}

// Potentiometer reads a linear potentiometer on one ADC channel.
type Potentiometer struct {
	adc     adc.Driver
	channel int
}

// NewPotentiometer creates a potentiometer on the given ADC channel.
func NewPotentiometer(d adc.Driver, channel int) *Potentiometer {
	return &Potentiometer{adc: d, channel: channel}
}

// Raw returns the 12-bit ADC sample in [0, 4095].
func (p *Potentiometer) Raw() (uint16, error) {
	v, err := p.adc.Read(p.channel)
	if err != nil {
		return 0, fmt.Errorf("read potentiometer: %w", err)
	}
	if v > adc.MaxValue {
		v = adc.MaxValue
	}
	return v, nil
}

// Position returns the wiper position normalised to [0, 1].
func (p *Potentiometer) Position() (float64, error) {
	raw, err := p.Raw()
	if err != nil {
		return 0, err
	}
	return RawToFraction(raw), nil
}

// RawToDegrees converts a 12-bit encoder count to degrees.
func RawToDegrees(raw uint16) float64 {
	return float64(raw) * 360.0 / EncoderCounts
}

// RawToFraction converts a 12-bit ADC sample to [0, 1].
func RawToFraction(raw uint16) float64 {
	return float64(raw) / adc.MaxValue
}

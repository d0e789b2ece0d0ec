package adc

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/BMFocus/internal/debug"
)

// Channels is the number of single-ended inputs on an MCP3208.
const Channels = 8

// MaxValue is the full-scale 12-bit reading.
const MaxValue = 4095

// Driver defines the abstract interface for sampling analog inputs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	Read(channel int) (uint16, error)
	Close() error
}

// MockDriver returns values set with Set. Used for development on PC or testing.
type MockDriver struct {
	mu     sync.Mutex
	values [Channels]uint16
	errs   [Channels]error
}

// NewDriver creates an ADC driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool, chipSelect, speedHz int) (Driver, error) {
	if mock {
		debug.Info("Using MOCK ADC driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiDriver(chipSelect, speedHz)
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= Channels {
		return fmt.Errorf("adc: channel %d out of range 0-%d", channel, Channels-1)
	}
	return nil
}

// Set stores the value returned for channel. Values above MaxValue are clamped.
func (m *MockDriver) Set(channel int, value uint16) {
	if checkChannel(channel) != nil {
		return
	}
	if value > MaxValue {
		value = MaxValue
	}
	m.mu.Lock()
	m.values[channel] = value
	m.mu.Unlock()
}

// Fail makes every read of channel return err until cleared with a nil err.
func (m *MockDriver) Fail(channel int, err error) {
	if checkChannel(channel) != nil {
		return
	}
	m.mu.Lock()
	m.errs[channel] = err
	m.mu.Unlock()
}

func (m *MockDriver) Read(channel int) (uint16, error) {
	if err := checkChannel(channel); err != nil {
		return 0, err
	}
	m.mu.Lock()
	v, err := m.values[channel], m.errs[channel]
	m.mu.Unlock()
	if err != nil {
		return 0, err
	}
	debug.ADC(channel, v)
	return v, nil
}

func (m *MockDriver) Close() error {
	debug.Trace("ADC Close (mock)")
	return nil
}

package focus

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Default settings.
const (
	DefaultEncoderDegrees = 360
	DefaultSensitivity    = 1.0
)

// Settings holds the operator-tunable focus parameters. It is written by
// the control handler and read by the loop every tick. Each field is
// atomic on its own; readers may observe fields from different updates.
type Settings struct {
	encoderDegrees atomic.Int64
	sensitivity    atomic.Uint64 // math.Float64bits
	synchronized   atomic.Bool
}

// SettingsSnapshot is a plain copy of Settings, e.g. for JSON.
type SettingsSnapshot struct {
	EncoderDegrees int     `json:"encoder_degrees"`
	Sensitivity    float64 `json:"sensitivity"`
	Synchronized   bool    `json:"synchronized"`
}

// NewSettings returns settings with the defaults: a full 360° encoder turn
// per focus throw, sensitivity 1, single-camera dispatch.
func NewSettings() *Settings {
	s := &Settings{}
	s.encoderDegrees.Store(DefaultEncoderDegrees)
	s.sensitivity.Store(math.Float64bits(DefaultSensitivity))
	return s
}

// EncoderDegrees is the encoder rotation mapped to a full focus throw.
func (s *Settings) EncoderDegrees() int { return int(s.encoderDegrees.Load()) }

// SetEncoderDegrees rejects values <= 0; the previous value is kept.
func (s *Settings) SetEncoderDegrees(deg int) error {
	if deg <= 0 {
		return fmt.Errorf("encoder degrees must be > 0, got %d", deg)
	}
	s.encoderDegrees.Store(int64(deg))
	return nil
}

// Sensitivity is the multiplier applied to the fused delta.
func (s *Settings) Sensitivity() float64 { return math.Float64frombits(s.sensitivity.Load()) }

// CheckSensitivity accepts finite values >= 0. Zero freezes focus.
func CheckSensitivity(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("sensitivity must be a finite value >= 0, got %g", v)
	}
	return nil
}

// SetSensitivity rejects values CheckSensitivity refuses; the previous
// value is kept.
func (s *Settings) SetSensitivity(v float64) error {
	if err := CheckSensitivity(v); err != nil {
		return err
	}
	s.sensitivity.Store(math.Float64bits(v))
	return nil
}

// Synchronized reports whether focus goes to every paired camera.
func (s *Settings) Synchronized() bool { return s.synchronized.Load() }

func (s *Settings) SetSynchronized(v bool) { s.synchronized.Store(v) }

// Snapshot copies the current values.
func (s *Settings) Snapshot() SettingsSnapshot {
	return SettingsSnapshot{
		EncoderDegrees: s.EncoderDegrees(),
		Sensitivity:    s.Sensitivity(),
		Synchronized:   s.Synchronized(),
	}
}

package focus

import (
	"context"
	"fmt"
	"time"

	"github.com/cjeanneret/BMFocus/internal/debug"
	"github.com/cjeanneret/BMFocus/internal/hw/camera"
	"github.com/cjeanneret/BMFocus/internal/logic/geometry"
)

// DefaultInterval is the minimum time between two ticks (50Hz). It is
// also the shortest interval a Loop accepts.
const DefaultInterval = 20 * time.Millisecond

// pollsPerInterval is how often Run checks the gate per interval, so a
// late tick delays the next one by a fraction of an interval only.
const pollsPerInterval = 4

// AngleSensor is a relative rotary input (the follow-focus encoder).
type AngleSensor interface {
	// Angle returns the shaft angle in degrees.
	Angle() (float64, error)
}

// PositionSensor is an absolute input already normalised to the lens
// throw (the potentiometer).
type PositionSensor interface {
	// Position returns the wiper position in [0, 1].
	Position() (float64, error)
}

// Loop fuses encoder and potentiometer motion into one focus delta per
// tick and sends it to the active camera, or to every camera when the
// settings say synchronized.
//
// Tick is not safe for concurrent use; Run calls it from one goroutine.
type Loop struct {
	encoder  AngleSensor
	poti     PositionSensor
	settings *Settings
	cameras  *camera.Registry
	interval time.Duration

	lastTick  time.Time
	lastAngle float64
	lastPoti  float64
	primed    bool
}

// Result describes one tick.
type Result struct {
	Ran          bool    // false when the tick came before the interval elapsed
	EncoderDelta float64 // degrees, wrap-corrected
	PotiDelta    float64 // fraction of the potentiometer throw
	FocusDelta   float64
	Targets      int // connected and paired cameras addressed
	Sent         int // successful writes
}

// NewLoop creates a fusion loop. Intervals shorter than DefaultInterval,
// including zero, are raised to DefaultInterval.
func NewLoop(enc AngleSensor, poti PositionSensor, settings *Settings, cameras *camera.Registry, interval time.Duration) *Loop {
	if interval < DefaultInterval {
		interval = DefaultInterval
	}
	return &Loop{
		encoder:  enc,
		poti:     poti,
		settings: settings,
		cameras:  cameras,
		interval: interval,
	}
}

// Tick samples both sensors and dispatches the fused delta. Calls less than
// one interval after the previous tick are no-ops. The first tick only
// records the sensor positions. A sensor error skips the tick and leaves
// the recorded positions untouched.
func (l *Loop) Tick(now time.Time) (Result, error) {
	if !l.lastTick.IsZero() && now.Sub(l.lastTick) < l.interval {
		return Result{}, nil
	}
	l.lastTick = now

	angle, err := l.encoder.Angle()
	if err != nil {
		return Result{Ran: true}, fmt.Errorf("focus tick: %w", err)
	}
	pos, err := l.poti.Position()
	if err != nil {
		return Result{Ran: true}, fmt.Errorf("focus tick: %w", err)
	}
	angle = geometry.NormalizeDegrees(angle)

	if !l.primed {
		l.lastAngle, l.lastPoti, l.primed = angle, pos, true
		debug.Verbose("Focus loop primed: encoder=%.3f° poti=%.4f", angle, pos)
		return Result{Ran: true}, nil
	}

	res := Result{Ran: true}
	res.EncoderDelta = geometry.WrapDelta(angle, l.lastAngle)
	res.PotiDelta = pos - l.lastPoti
	l.lastAngle, l.lastPoti = angle, pos

	deg := float64(l.settings.EncoderDegrees())
	res.FocusDelta = (res.EncoderDelta/deg + res.PotiDelta) * l.settings.Sensitivity()
	if res.FocusDelta == 0 {
		return res, nil
	}

	res.Targets, res.Sent = l.dispatch(res.FocusDelta)
	debug.Focus(res.EncoderDelta, res.PotiDelta, res.FocusDelta, res.Targets)
	return res, nil
}

// dispatch sends delta to every eligible camera. A failure on one camera
// does not stop the others.
func (l *Loop) dispatch(delta float64) (targets, sent int) {
	send := func(s *camera.Session) {
		if !s.IsConnected() || !s.IsPaired() {
			return
		}
		targets++
		if err := s.SetFocus(delta); err != nil {
			debug.Verbose("Focus: %v", err)
			return
		}
		sent++
	}

	if l.settings.Synchronized() {
		for _, s := range l.cameras.Sessions() {
			send(s)
		}
	} else if s, ok := l.cameras.Active(); ok {
		send(s)
	}
	return targets, sent
}

// pollInterval is the period at which Run offers ticks to the gate.
func (l *Loop) pollInterval() time.Duration {
	return l.interval / pollsPerInterval
}

// Run polls Tick until ctx is cancelled; the gate in Tick keeps the
// cadence at the loop interval. Tick errors are logged and the loop keeps
// going.
func (l *Loop) Run(ctx context.Context) error {
	debug.Info("Focus loop running every %v", l.interval)
	ticker := time.NewTicker(l.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := l.Tick(now); err != nil {
				debug.Error(err)
			}
		}
	}
}

package geometry

import "math"

// FullTurn is one rotation in degrees.
const FullTurn = 360.0

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(a float64) float64 {
	a = math.Mod(a, FullTurn)
	if a < 0 {
		a += FullTurn
	}
	if a >= FullTurn { // -tiny + 360 rounds up to 360
		a = 0
	}
	return a
}

// WrapDelta returns the signed rotation from last to current, both in
// [0, 360). A naive difference larger than half a turn means the shaft
// crossed 0°, so the shorter path on the other side is returned instead:
// 350° -> 10° is +20°, 10° -> 350° is -20°.
func WrapDelta(current, last float64) float64 {
	d := current - last
	switch {
	case d > FullTurn/2:
		d -= FullTurn
	case d < -FullTurn/2:
		d += FullTurn
	}
	return d
}

// Package governor provides the small stateful control primitives of the boiler:
// thermal inertia, display smoothing, rolling extremes and the PLC auto-regulator.
package governor

import "math"

// SnapThreshold is the distance below which the lag jumps straight to its target
const SnapThreshold = 0.5

// ThermalLag is a first-order lag that models the thermal mass between the fire and the superheater.
// The smoothing coefficient scales with the time acceleration so faster simulated time converges faster.
type ThermalLag struct {
	Value float64
}

// NewThermalLag creates a lag starting at initial
func NewThermalLag(initial float64) ThermalLag {
	return ThermalLag{Value: initial}
}

// Alpha returns the per-tick smoothing coefficient for an acceleration, clamped to (0, 1]
func Alpha(acceleration float64) float64 {
	return min(0.1*max(acceleration, 1), 1.0)
}

// Update moves the value towards target and returns it.
// Within SnapThreshold the value snaps to target to avoid asymptotic creep.
func (l *ThermalLag) Update(target, acceleration float64) float64 {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return l.Value
	}

	delta := target - l.Value
	if math.Abs(delta) < SnapThreshold {
		l.Value = target
		return l.Value
	}

	l.Value += delta * Alpha(acceleration)
	return l.Value
}

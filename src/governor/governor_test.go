package governor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThermalLag_Converges(t *testing.T) {
	lag := NewThermalLag(625)

	for i := 0; i < 100; i++ {
		lag.Update(560, 1)
	}
	assert.Equal(t, 560.0, lag.Value, "snaps once within threshold")
}

func TestThermalLag_Step(t *testing.T) {
	lag := NewThermalLag(600)
	assert.InDelta(t, 610.0, lag.Update(700, 1), 1e-9)

	// acceleration 5 gives alpha 0.5
	lag = NewThermalLag(600)
	assert.InDelta(t, 650.0, lag.Update(700, 5), 1e-9)

	// alpha is capped at 1
	lag = NewThermalLag(600)
	assert.Equal(t, 700.0, lag.Update(700, 60))
}

func TestThermalLag_Snap(t *testing.T) {
	lag := NewThermalLag(600)
	assert.Equal(t, 600.4, lag.Update(600.4, 1))
	assert.Equal(t, 600.0, lag.Update(600.0, 1))
}

func TestThermalLag_IgnoresNonFinite(t *testing.T) {
	lag := NewThermalLag(625)
	lag.Update(math.NaN(), 1)
	lag.Update(math.Inf(1), 1)
	assert.Equal(t, 625.0, lag.Value)
}

func TestAlpha(t *testing.T) {
	assert.InDelta(t, 0.1, Alpha(1), 1e-12)
	assert.InDelta(t, 1.0, Alpha(10), 1e-12)
	assert.Equal(t, 1.0, Alpha(60))
	assert.InDelta(t, 0.1, Alpha(0), 1e-12, "acceleration below 1 behaves as 1")
}

func TestMovingAverage_Window(t *testing.T) {
	m := NewMovingAverage(0)

	assert.Equal(t, 0.0, m.Value())
	assert.Equal(t, 10.0, m.Add(10))
	assert.Equal(t, 15.0, m.Add(20))
	m.Add(30)
	m.Add(40)
	assert.Equal(t, 30.0, m.Add(50))
	assert.Equal(t, 5, m.Len())

	// 10 falls out of the window
	assert.Equal(t, 40.0, m.Add(60))
	assert.Equal(t, 5, m.Len())
}

func TestMovingAverage_Reset(t *testing.T) {
	m := NewMovingAverage(3)
	m.Add(1)
	m.Add(2)
	m.Reset()

	assert.Equal(t, 0, m.Len())
	assert.Equal(t, 0.0, m.Value())
	assert.Equal(t, 9.0, m.Add(9))
}

func TestRegulate_KpBand(t *testing.T) {
	cfg := DefaultRegulatorConfig()

	tests := []struct {
		name     string
		kp       float64
		pusher   float64
		expected float64
	}{
		{"thick bed slows pusher", 120, 50, 49.5},
		{"thick bed floors at zero", 120, 0.2, 0},
		{"thin bed speeds pusher", 75, 50, 50.1},
		{"thin bed caps at 100", 75, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Regulate(RegulatorState{Kp: tt.kp, O2: 6, PusherSpeed: tt.pusher, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
			assert.InDelta(t, tt.expected, s.PusherSpeed, 1e-9)
			assert.Equal(t, 19.0, s.Zone2, "zones untouched outside the trim band")
		})
	}
}

func TestRegulate_O2TrimPusher(t *testing.T) {
	cfg := DefaultRegulatorConfig()

	// O2 too high: 6 - 6.4 = -0.4, pusher += 0.02
	s := Regulate(RegulatorState{Kp: 100, O2: 6.4, PusherSpeed: 50, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
	assert.InDelta(t, 50.02, s.PusherSpeed, 1e-9)
	assert.Equal(t, 19.0, s.Zone2, "below zone band")

	// inside deadband
	s = Regulate(RegulatorState{Kp: 100, O2: 6.1, PusherSpeed: 50, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
	assert.Equal(t, 50.0, s.PusherSpeed)

	// trim is clamped into its range
	s = Regulate(RegulatorState{Kp: 100, O2: 3, PusherSpeed: 5, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
	assert.Equal(t, 10.0, s.PusherSpeed)
}

func TestRegulate_O2ShiftsZones(t *testing.T) {
	cfg := DefaultRegulatorConfig()

	// O2 low: error +2, zone2 gains 0.04 from zone3
	s := Regulate(RegulatorState{Kp: 100, O2: 4, PusherSpeed: 50, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
	assert.InDelta(t, 19.04, s.Zone2, 1e-9)
	assert.InDelta(t, 19.96, s.Zone3, 1e-9)
	assert.Equal(t, 61.0, s.Zone1)
	assert.InDelta(t, 100.0, s.Zone1+s.Zone2+s.Zone3, 1e-9)

	// O2 high moves air back to zone3
	s = Regulate(RegulatorState{Kp: 100, O2: 9, PusherSpeed: 50, Zone1: 61, Zone2: 19, Zone3: 20}, cfg)
	assert.InDelta(t, 18.94, s.Zone2, 1e-9)
	assert.InDelta(t, 20.06, s.Zone3, 1e-9)
}

func TestRegulate_Zone3Floor(t *testing.T) {
	cfg := DefaultRegulatorConfig()

	s := Regulate(RegulatorState{Kp: 100, O2: 1, PusherSpeed: 50, Zone1: 40, Zone2: 54.95, Zone3: 5.05}, cfg)
	assert.Equal(t, 5.0, s.Zone3)
	assert.InDelta(t, 55.0, s.Zone2, 1e-9)
	assert.Equal(t, 40.0, s.Zone1)

	// zone2 cannot absorb the remainder so zone1 gives way
	s = Regulate(RegulatorState{Kp: 100, O2: 1, PusherSpeed: 50, Zone1: 97, Zone2: 0, Zone3: 3}, cfg)
	assert.Equal(t, 5.0, s.Zone3)
	assert.Equal(t, 0.0, s.Zone2)
	assert.InDelta(t, 95.0, s.Zone1, 1e-9)
}

func TestRegulate_PreservesZoneTotal(t *testing.T) {
	cfg := DefaultRegulatorConfig()
	s := RegulatorState{Kp: 100, PusherSpeed: 50, Zone1: 61, Zone2: 19, Zone3: 20}

	for i := 0; i < 3000; i++ {
		s.O2 = 2 + float64(i%9)
		s = Regulate(s, cfg)
		assert.InDelta(t, 100.0, s.Zone1+s.Zone2+s.Zone3, 1e-6)
		assert.GreaterOrEqual(t, s.Zone3, 5.0-1e-9)
	}
}

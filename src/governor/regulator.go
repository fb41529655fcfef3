package governor

import "math"

// RegulatorConfig holds the tunable bands and gains of the automatic mode regulator
type RegulatorConfig struct {
	KpReference    float64 // Kp the pusher loop holds (e.g., 100)
	KpBand         float64 // Kp error beyond which the pusher is moved (e.g., 15)
	KpTrimBand     float64 // Kp error inside which the O2 trim is active (e.g., 20)
	PusherStepDown float64 // Pusher decrease per tick when the bed is too thick (e.g., 0.5)
	PusherStepUp   float64 // Pusher increase per tick when the bed is too thin (e.g., 0.1)

	O2Target       float64 // O2 setpoint in % (e.g., 6.0)
	O2PusherBand   float64 // O2 error beyond which the pusher is trimmed (e.g., 0.2)
	O2PusherGain   float64 // Pusher change per % of O2 error (e.g., 0.05)
	PusherTrimMin  float64 // Trim never drives the pusher below this (e.g., 10)
	PusherTrimMax  float64 // Trim never drives the pusher above this (e.g., 90)
	O2ZoneBand     float64 // O2 error beyond which air moves between zones 2 and 3 (e.g., 0.5)
	O2ZoneGain     float64 // Zone 2 change in points per % of O2 error (e.g., 0.02)
	Zone2Min       float64
	Zone2Max       float64
	Zone3Min       float64
}

// DefaultRegulatorConfig returns the tuning of the plant's PLC
func DefaultRegulatorConfig() RegulatorConfig {
	return RegulatorConfig{
		KpReference:    100,
		KpBand:         15,
		KpTrimBand:     20,
		PusherStepDown: 0.5,
		PusherStepUp:   0.1,
		O2Target:       6.0,
		O2PusherBand:   0.2,
		O2PusherGain:   0.05,
		PusherTrimMin:  10,
		PusherTrimMax:  90,
		O2ZoneBand:     0.5,
		O2ZoneGain:     0.02,
		Zone2Min:       5,
		Zone2Max:       60,
		Zone3Min:       5,
	}
}

// RegulatorState is what the regulator reads and writes each tick
type RegulatorState struct {
	Kp          float64
	O2          float64
	PusherSpeed float64
	Zone1       float64
	Zone2       float64
	Zone3       float64
}

// Regulate runs one pass of the two-stage controller and returns the adjusted state.
// The Kp loop moves the pusher to hold the bed thickness. When Kp is close to its reference, an O2
// trim nudges the pusher and shifts air between zones 2 and 3. Zone 1 is only touched when zone 3
// hits its floor and zone 2 cannot take the remainder. The zone total is preserved.
func Regulate(s RegulatorState, cfg RegulatorConfig) RegulatorState {
	kpErr := s.Kp - cfg.KpReference
	if kpErr > cfg.KpBand {
		s.PusherSpeed = max(0, s.PusherSpeed-cfg.PusherStepDown)
	} else if kpErr < -cfg.KpBand {
		s.PusherSpeed = min(100, s.PusherSpeed+cfg.PusherStepUp)
	}

	if math.Abs(kpErr) >= cfg.KpTrimBand {
		return s
	}

	o2Err := cfg.O2Target - s.O2
	if math.Abs(o2Err) > cfg.O2PusherBand {
		s.PusherSpeed = clamp(s.PusherSpeed-o2Err*cfg.O2PusherGain, cfg.PusherTrimMin, cfg.PusherTrimMax)
	}

	if math.Abs(o2Err) > cfg.O2ZoneBand {
		total := s.Zone1 + s.Zone2 + s.Zone3
		oldZone2 := s.Zone2
		s.Zone2 = clamp(s.Zone2+o2Err*cfg.O2ZoneGain, cfg.Zone2Min, cfg.Zone2Max)
		s.Zone3 -= s.Zone2 - oldZone2

		if s.Zone3 <= cfg.Zone3Min {
			s.Zone3 = cfg.Zone3Min
			s.Zone2 = total - s.Zone1 - s.Zone3
			if s.Zone2 < 0 {
				s.Zone1 += s.Zone2
				s.Zone2 = 0
			}
		}
	}

	return s
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

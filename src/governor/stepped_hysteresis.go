package governor

// SteppedHysteresis converts a rising signal into discrete steps (0 to len(raise)) with
// separate raise and clear thresholds so the step does not chatter at a boundary.
//
//   - Step i+1 is reached once the value is at or above raise[i].
//   - Step i+1 is kept until the value falls below clear[i].
//
// Both threshold lists ascend, and clear[i] should sit below raise[i].
type SteppedHysteresis struct {
	Current int // Current step

	raise []float64
	clear []float64
}

// NewSteppedHysteresis creates a stepped hysteresis over explicit thresholds.
// Extra thresholds in the longer list are ignored.
func NewSteppedHysteresis(raise, clear []float64) *SteppedHysteresis {
	n := min(len(raise), len(clear))
	return &SteppedHysteresis{
		raise: append([]float64(nil), raise[:n]...),
		clear: append([]float64(nil), clear[:n]...),
	}
}

// Steps is the highest step reachable
func (s *SteppedHysteresis) Steps() int {
	return len(s.raise)
}

// Update returns the step for value, holding the previous step inside the hysteresis band
func (s *SteppedHysteresis) Update(value float64) int {
	up := countReached(value, s.raise)
	down := countReached(value, s.clear)

	switch {
	case s.Current > down:
		s.Current = down
	case s.Current < up:
		s.Current = up
	}
	return s.Current
}

// Reset returns to step 0
func (s *SteppedHysteresis) Reset() {
	s.Current = 0
}

// countReached counts consecutive thresholds from the lowest that value has reached
func countReached(value float64, thresholds []float64) int {
	for i, t := range thresholds {
		if value < t {
			return i
		}
	}
	return len(thresholds)
}

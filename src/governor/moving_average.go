package governor

// DefaultWindow is the number of samples averaged by NewMovingAverage(0)
const DefaultWindow = 5

// MovingAverage is the mean of the last N samples, oldest dropped first
type MovingAverage struct {
	window  int
	samples []float64
}

// NewMovingAverage creates an average over window samples (DefaultWindow if window <= 0)
func NewMovingAverage(window int) *MovingAverage {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MovingAverage{window: window, samples: make([]float64, 0, window)}
}

// Add records a sample and returns the new average
func (m *MovingAverage) Add(v float64) float64 {
	if len(m.samples) == m.window {
		m.samples = append(m.samples[:0], m.samples[1:]...)
	}
	m.samples = append(m.samples, v)
	return m.Value()
}

// Value returns the current average, or 0 with no samples
func (m *MovingAverage) Value() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s
	}
	return sum / float64(len(m.samples))
}

// Len is the number of samples currently held
func (m *MovingAverage) Len() int {
	return len(m.samples)
}

// Reset drops all samples
func (m *MovingAverage) Reset() {
	m.samples = m.samples[:0]
}

package history

import (
	"math"
	"sort"
	"strings"
	"time"
)

// AnalysisWindow is the number of trailing points Analyze looks at
const AnalysisWindow = 30

const (
	zScoreLimit = 2.5
	stableSlope = 0.1
)

// Trend is the direction of a regression over the analysis window
type Trend string

const (
	TrendStable     Trend = "stable"
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
)

// SeriesStats describes one signal over the analysis window
type SeriesStats struct {
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Latest    float64 `json:"latest"`
	ZScore    float64 `json:"z_score"`
	IsAnomaly bool    `json:"is_anomaly"`
	Slope     float64 `json:"slope"`
	Trend     Trend   `json:"trend"`
}

// Analysis holds the statistics for the signals shown on the forensic dashboard
type Analysis struct {
	Points     int         `json:"points"`
	SH5        SeriesStats `json:"sh5"`
	Barycenter SeriesStats `json:"barycenter"`
}

// Analyze computes mean, deviation, z-score and trend over the last AnalysisWindow points
func Analyze(points []DataPoint) Analysis {
	if len(points) > AnalysisWindow {
		points = points[len(points)-AnalysisWindow:]
	}

	sh5 := make([]float64, len(points))
	bary := make([]float64, len(points))
	for i, p := range points {
		sh5[i] = p.SH5Temp
		bary[i] = p.Barycenter
	}

	return Analysis{
		Points:     len(points),
		SH5:        analyzeSeries(sh5),
		Barycenter: analyzeSeries(bary),
	}
}

func analyzeSeries(values []float64) SeriesStats {
	s := SeriesStats{Trend: TrendStable}
	n := len(values)
	if n == 0 {
		return s
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	s.Mean = sum / float64(n)

	var sq float64
	for _, v := range values {
		sq += (v - s.Mean) * (v - s.Mean)
	}
	s.StdDev = math.Sqrt(sq / float64(n))

	s.Latest = values[n-1]
	if s.StdDev > 0 {
		s.ZScore = (s.Latest - s.Mean) / s.StdDev
	}
	s.IsAnomaly = math.Abs(s.ZScore) > zScoreLimit

	s.Slope = slope(values)
	switch {
	case math.Abs(s.Slope) < stableSlope:
		s.Trend = TrendStable
	case s.Slope > 0:
		s.Trend = TrendIncreasing
	default:
		s.Trend = TrendDecreasing
	}
	return s
}

// slope is the least-squares slope of values against their index
func slope(values []float64) float64 {
	n := float64(len(values))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	den := n*sumXX - sumX*sumX
	if den == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / den
}

// Reading is a timestamped value
type Reading struct {
	Value     float64
	Timestamp time.Time
}

// Readings is a collection of timestamped readings
type Readings []Reading

// TimeWindows holds values across 1, 5, and 15 minute windows
type TimeWindows struct {
	Min1  float64 `json:"1m"`
	Min5  float64 `json:"5m"`
	Min15 float64 `json:"15m"`
}

// Percentiles of a signal over the three windows
type Percentiles struct {
	Current float64     `json:"current"`
	P1      TimeWindows `json:"p1"`  // filters out low outliers
	P50     TimeWindows `json:"p50"` // median
	P99     TimeWindows `json:"p99"` // filters out high outliers
}

// weightedValue represents a value with its duration weight for percentile calculation
type weightedValue struct {
	value    float64
	duration float64
}

// calculateTimeWeightedPercentiles returns P1, P50 and P99 in a single pass
// where each value is weighted by how long it persisted.
// The pairs slice must be sorted by value in ascending order.
func calculateTimeWeightedPercentiles(pairs []weightedValue, totalDuration float64) (p1, p50, p99 float64) {
	if len(pairs) == 0 {
		return 0, 0, 0
	}
	if len(pairs) == 1 {
		v := pairs[0].value
		return v, v, v
	}

	target1 := totalDuration * 0.01
	target50 := totalDuration * 0.50
	target99 := totalDuration * 0.99

	var cumulative float64
	var found1, found50, found99 bool

	for _, pair := range pairs {
		cumulative += pair.duration

		if !found1 && cumulative >= target1 {
			p1 = pair.value
			found1 = true
		}
		if !found50 && cumulative >= target50 {
			p50 = pair.value
			found50 = true
		}
		if !found99 && cumulative >= target99 {
			p99 = pair.value
			found99 = true
			break
		}
	}

	lastValue := pairs[len(pairs)-1].value
	if !found1 {
		p1 = lastValue
	}
	if !found50 {
		p50 = lastValue
	}
	if !found99 {
		p99 = lastValue
	}

	return p1, p50, p99
}

// calculateTimeWeightedStats weights each reading by the time until the next one (or until now for
// the last) and returns the percentiles over the window ending at now.
func calculateTimeWeightedStats(readings Readings, window time.Duration, now time.Time) (p1, p50, p99 float64) {
	if len(readings) == 0 {
		return 0, 0, 0
	}

	lastReading := readings[len(readings)-1]
	cutoff := now.Add(-window)

	var windowReadings Readings
	for _, r := range readings {
		if r.Timestamp.After(cutoff) {
			windowReadings = append(windowReadings, r)
		}
	}

	// A single reading has no duration to weigh, use the last known value
	if len(windowReadings) <= 1 {
		v := lastReading.Value
		return v, v, v
	}

	pairs := make([]weightedValue, 0, len(windowReadings))
	var totalDuration float64

	for i := 0; i < len(windowReadings); i++ {
		var duration float64
		if i < len(windowReadings)-1 {
			duration = windowReadings[i+1].Timestamp.Sub(windowReadings[i].Timestamp).Seconds()
		} else {
			duration = now.Sub(windowReadings[i].Timestamp).Seconds()
		}

		pairs = append(pairs, weightedValue{value: windowReadings[i].Value, duration: duration})
		totalDuration += duration
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	if totalDuration <= 0 {
		v := lastReading.Value
		return v, v, v
	}

	return calculateTimeWeightedPercentiles(pairs, totalDuration)
}

// TimeWeightedPercentiles computes SH5 percentiles over 1, 5 and 15 minutes ending at the most
// recent timestamped point. Points without a parsed timestamp are ignored.
func TimeWeightedPercentiles(points []DataPoint) Percentiles {
	readings := make(Readings, 0, len(points))
	for _, p := range points {
		if p.Timestamp.IsZero() {
			continue
		}
		readings = append(readings, Reading{Value: p.SH5Temp, Timestamp: p.Timestamp})
	}
	if len(readings) == 0 {
		return Percentiles{}
	}
	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].Timestamp.Before(readings[j].Timestamp)
	})

	now := readings[len(readings)-1].Timestamp
	p1_1, p50_1, p99_1 := calculateTimeWeightedStats(readings, 1*time.Minute, now)
	p1_5, p50_5, p99_5 := calculateTimeWeightedStats(readings, 5*time.Minute, now)
	p1_15, p50_15, p99_15 := calculateTimeWeightedStats(readings, 15*time.Minute, now)

	return Percentiles{
		Current: readings[len(readings)-1].Value,
		P1:      TimeWindows{Min1: p1_1, Min5: p1_5, Min15: p1_15},
		P50:     TimeWindows{Min1: p50_1, Min5: p50_5, Min15: p50_15},
		P99:     TimeWindows{Min1: p99_1, Min5: p99_5, Min15: p99_15},
	}
}

// DaySummary is the forensic view of one day of history
type DaySummary struct {
	Date   string  `json:"date"`
	Count  int     `json:"count"`
	AvgSH5 float64 `json:"avg_sh5"`
	MaxSH5 float64 `json:"max_sh5"`
}

// DailySummary groups points per calendar day, in date order. The average is rounded to the degree.
func DailySummary(points []DataPoint) []DaySummary {
	type acc struct {
		count int
		sum   float64
		max   float64
	}
	days := make(map[string]*acc)

	for _, p := range points {
		date := dayOf(p)
		if date == "" {
			continue
		}
		a, ok := days[date]
		if !ok {
			a = &acc{max: math.Inf(-1)}
			days[date] = a
		}
		a.count++
		a.sum += p.SH5Temp
		a.max = max(a.max, p.SH5Temp)
	}

	out := make([]DaySummary, 0, len(days))
	for date, a := range days {
		out = append(out, DaySummary{
			Date:   date,
			Count:  a.count,
			AvgSH5: math.Round(a.sum / float64(a.count)),
			MaxSH5: a.max,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func dayOf(p DataPoint) string {
	if !p.Timestamp.IsZero() {
		return p.Timestamp.Format(time.DateOnly)
	}
	date, _, _ := strings.Cut(strings.TrimSpace(p.Label), " ")
	return date
}

// Package anomaly detects combustion conditions that precede a furnace puff or overheating:
// fire pushed to the rear of the grate, oxygen starvation and fast SH5 rises.
package anomaly

import (
	"fmt"
	"time"
)

// RiskLevel is the overall advisory level
type RiskLevel string

const (
	RiskNormal    RiskLevel = "NORMAL"
	RiskWarning   RiskLevel = "WARNING"
	RiskCritical  RiskLevel = "CRITICAL"
	RiskEmergency RiskLevel = "EMERGENCY"
)

// Type identifies which check produced a signature
type Type string

const (
	BarycenterRear Type = "BARYCENTER_REAR"
	O2Low          Type = "O2_LOW"
	TempSpike      Type = "TEMP_SPIKE"
	ExplosionRisk  Type = "EXPLOSION_RISK"
)

// Severity grades a single signature
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Signature is one active anomaly with the advice attached to it
type Signature struct {
	Type      Type      `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
	Action    string    `json:"action"`
}

// State is the result of one evaluation
type State struct {
	RiskLevel RiskLevel   `json:"risk_level"`
	Active    []Signature `json:"active"`
	Score     float64     `json:"explosion_risk_score"`
	TempDelta float64     `json:"temp_delta"`
	LastCheck time.Time   `json:"last_check"`
}

// Thresholds configures every check and the score bands
type Thresholds struct {
	BarycenterHigh     float64 // rear fire, e.g. 4.5
	BarycenterCritical float64 // e.g. 5.0
	O2Low              float64 // e.g. 4.0
	O2Critical         float64 // e.g. 3.0
	TempDeltaHigh      float64 // °C over TempWindow, e.g. 10
	TempDeltaCritical  float64 // e.g. 20
	TempWindow         time.Duration

	HighScore      float64 // contribution of a high signature
	CriticalScore  float64 // contribution of a critical signature
	CompoundBonus  float64 // added per signature beyond the first
	WarningScore   float64
	CriticalLevel  float64
	EmergencyLevel float64

	SampleInterval time.Duration // minimum spacing between buffered SH5 samples
	MaxSamples     int
}

// DefaultThresholds returns the plant's alarm settings
func DefaultThresholds() Thresholds {
	return Thresholds{
		BarycenterHigh:     4.5,
		BarycenterCritical: 5.0,
		O2Low:              4.0,
		O2Critical:         3.0,
		TempDeltaHigh:      10,
		TempDeltaCritical:  20,
		TempWindow:         2 * time.Minute,
		HighScore:          40,
		CriticalScore:      70,
		CompoundBonus:      5,
		WarningScore:       40,
		CriticalLevel:      70,
		EmergencyLevel:     90,
		SampleInterval:     time.Second,
		MaxSamples:         512,
	}
}

type sample struct {
	at  time.Time
	sh5 float64
}

// Detector evaluates the live plant state. It owns a bounded buffer of recent SH5 samples and is
// not safe for concurrent use; a single worker should own it.
type Detector struct {
	th      Thresholds
	samples []sample
}

// NewDetector creates a detector with the given thresholds
func NewDetector(th Thresholds) *Detector {
	if th.MaxSamples <= 0 {
		th.MaxSamples = DefaultThresholds().MaxSamples
	}
	// the buffer must reach back a full window or the SH5 rise is never measured
	if th.SampleInterval > 0 {
		th.MaxSamples = max(th.MaxSamples, int(th.TempWindow/th.SampleInterval)+2)
	}
	return &Detector{th: th, samples: make([]sample, 0, th.MaxSamples)}
}

// Reset forgets the SH5 history
func (d *Detector) Reset() {
	d.samples = d.samples[:0]
}

// Evaluate records the SH5 sample and checks the three signals. at is the plant clock.
func (d *Detector) Evaluate(at time.Time, barycenter, o2, sh5 float64) State {
	d.record(at, sh5)
	delta := d.tempDelta(at)

	var active []Signature
	var score float64

	add := func(sig Signature) {
		active = append(active, sig)
		if sig.Severity == SeverityCritical {
			score += d.th.CriticalScore
		} else {
			score += d.th.HighScore
		}
	}

	if barycenter > d.th.BarycenterHigh {
		sev := severity(barycenter > d.th.BarycenterCritical)
		add(Signature{
			Type:      BarycenterRear,
			Severity:  sev,
			Timestamp: at,
			Value:     barycenter,
			Threshold: d.th.BarycenterHigh,
			Message:   fmt.Sprintf("Fire pushed to the rear of the grate (barycenter %.2f > %.1f)", barycenter, d.th.BarycenterHigh),
			Action:    "Increase zone 1 air or slow the grate to bring the fire forward",
		})
	}

	if o2 < d.th.O2Low {
		sev := severity(o2 < d.th.O2Critical)
		add(Signature{
			Type:      O2Low,
			Severity:  sev,
			Timestamp: at,
			Value:     o2,
			Threshold: d.th.O2Low,
			Message:   fmt.Sprintf("Oxygen starvation (O2 %.1f%% < %.1f%%), unburnt gas may accumulate", o2, d.th.O2Low),
			Action:    "Reduce the pusher speed and raise secondary air",
		})
	}

	if delta > d.th.TempDeltaHigh {
		sev := severity(delta > d.th.TempDeltaCritical)
		add(Signature{
			Type:      TempSpike,
			Severity:  sev,
			Timestamp: at,
			Value:     delta,
			Threshold: d.th.TempDeltaHigh,
			Message:   fmt.Sprintf("SH5 rising fast (+%.1f°C in %s)", delta, d.th.TempWindow),
			Action:    "Check waste feed calorific value and plan a soot blow if fouling is high",
		})
	}

	if n := len(active); n >= 2 {
		bonus := d.th.CompoundBonus * float64(n-1)
		score += bonus
		active = append(active, Signature{
			Type:      ExplosionRisk,
			Severity:  SeverityCritical,
			Timestamp: at,
			Value:     float64(n),
			Threshold: 2,
			Message:   fmt.Sprintf("%d combined warning signs: risk of furnace puff", n),
			Action:    "Stabilise the feed immediately and prepare for a manual intervention",
		})
	}

	score = min(score, 100)

	return State{
		RiskLevel: d.level(score),
		Active:    active,
		Score:     score,
		TempDelta: delta,
		LastCheck: at,
	}
}

func (d *Detector) level(score float64) RiskLevel {
	switch {
	case score >= d.th.EmergencyLevel:
		return RiskEmergency
	case score >= d.th.CriticalLevel:
		return RiskCritical
	case score >= d.th.WarningScore:
		return RiskWarning
	default:
		return RiskNormal
	}
}

func severity(critical bool) Severity {
	if critical {
		return SeverityCritical
	}
	return SeverityHigh
}

// record appends a sample unless the last one is closer than SampleInterval,
// then drops samples that can no longer serve as the window reference.
func (d *Detector) record(at time.Time, sh5 float64) {
	if n := len(d.samples); n > 0 {
		last := d.samples[n-1]
		if at.Before(last.at) {
			// plant clock went backwards (reset): start over
			d.samples = d.samples[:0]
		} else if at.Sub(last.at) < d.th.SampleInterval {
			d.samples[n-1].sh5 = sh5
			return
		}
	}
	d.samples = append(d.samples, sample{at: at, sh5: sh5})

	// keep a single sample older than the window as proof of history depth
	cutoff := at.Add(-d.th.TempWindow)
	drop := 0
	for drop+1 < len(d.samples) && !d.samples[drop+1].at.After(cutoff) {
		drop++
	}
	if over := len(d.samples) - drop - d.th.MaxSamples; over > 0 {
		drop += over
	}
	if drop > 0 {
		d.samples = append(d.samples[:0], d.samples[drop:]...)
	}
}

// tempDelta is the latest SH5 minus the oldest sample inside the window.
// It is 0 until the buffer reaches back a full window.
func (d *Detector) tempDelta(now time.Time) float64 {
	if len(d.samples) < 2 {
		return 0
	}
	cutoff := now.Add(-d.th.TempWindow)
	if d.samples[0].at.After(cutoff) {
		return 0
	}

	latest := d.samples[len(d.samples)-1].sh5
	for _, s := range d.samples {
		if !s.at.Before(cutoff) {
			return latest - s.sh5
		}
	}
	return 0
}

// Summary is a one-line description of the state for logs and chat fallbacks
func (s State) Summary() string {
	if len(s.Active) == 0 {
		return fmt.Sprintf("%s (score %.0f)", s.RiskLevel, s.Score)
	}
	return fmt.Sprintf("%s (score %.0f, %d signatures)", s.RiskLevel, s.Score, len(s.Active))
}

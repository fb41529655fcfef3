// Package history keeps the plant's recorded trend: the bounded in-memory log fed by the simulator,
// PCVue CSV imports, tick exports, persistence and the statistics shown on the dashboards.
package history

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of points kept before the oldest are dropped
const DefaultCapacity = 2000

// TechnicalStopSH5 is the temperature below which the plant is considered offline
const TechnicalStopSH5 = 500.0

// DataPoint is one recorded plant state
type DataPoint struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Label           string    `json:"label,omitempty"` // timestamp as written by the source when it could not be parsed
	Zone1Flow       float64   `json:"zone1_flow"`
	Zone2Flow       float64   `json:"zone2_flow"`
	Zone3Flow       float64   `json:"zone3_flow"`
	SH5Temp         float64   `json:"sh5_temp"`
	SteamFlow       float64   `json:"steam_flow"`
	O2Level         float64   `json:"o2_level"`
	Barycenter      float64   `json:"barycenter"`
	IsTechnicalStop bool      `json:"is_technical_stop"`
	WasteMixRatio   float64   `json:"waste_mix_ratio,omitempty"`
}

// Log is an ordered, capacity-bounded sequence of points, safe for concurrent use.
// Version changes on every mutation so writers can tell when a flush is due.
type Log struct {
	mu       sync.RWMutex
	points   []DataPoint
	capacity int
	version  uint64
}

// NewLog creates a log holding at most capacity points (DefaultCapacity if capacity <= 0)
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Append adds a point, dropping the oldest when full
func (l *Log) Append(p DataPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.points = append(l.points, p)
	if over := len(l.points) - l.capacity; over > 0 {
		l.points = append(l.points[:0], l.points[over:]...)
	}
	l.version++
}

// Replace swaps the whole log, keeping only the most recent points that fit
func (l *Log) Replace(points []DataPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if over := len(points) - l.capacity; over > 0 {
		points = points[over:]
	}
	l.points = append(make([]DataPoint, 0, len(points)), points...)
	l.version++
}

// Clear empties the log
func (l *Log) Clear() {
	l.Replace(nil)
}

// Points returns a copy of the log, oldest first
func (l *Log) Points() []DataPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]DataPoint(nil), l.points...)
}

// Len is the number of points held
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.points)
}

// Capacity is the maximum number of points held
func (l *Log) Capacity() int {
	return l.capacity
}

// Version increases with every mutation
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Snapshot returns the points and the version they correspond to
func (l *Log) Snapshot() ([]DataPoint, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]DataPoint(nil), l.points...), l.version
}

package governor

import (
	"math"
	"time"
)

// minMaxBucket holds min/max values for a single minute
type minMaxBucket struct {
	min, max float64
}

func emptyBucket() minMaxBucket {
	return minMaxBucket{min: math.MaxFloat64, max: -math.MaxFloat64}
}

// RollingMinMax tracks min/max values over a rolling 1-hour window using 60 1-minute buckets.
// Time is supplied by the caller so the window can follow the simulated clock.
type RollingMinMax struct {
	buckets       [60]minMaxBucket
	currentMinute int64 // minutes since epoch, -1 = uninitialized
}

// NewRollingMinMax creates a new RollingMinMax with all buckets initialized to sentinel values
func NewRollingMinMax() RollingMinMax {
	r := RollingMinMax{currentMinute: -1}
	r.clear()
	return r
}

// Update records a value observed at the given time
func (r *RollingMinMax) Update(value float64, at time.Time) {
	r.updateAt(value, at.Unix()/60)
}

// Reset forgets every recorded value
func (r *RollingMinMax) Reset() {
	r.clear()
	r.currentMinute = -1
}

func (r *RollingMinMax) clear() {
	for i := range r.buckets {
		r.buckets[i] = emptyBucket()
	}
}

// updateAt records a value at an absolute minute
func (r *RollingMinMax) updateAt(value float64, minute int64) {
	if r.currentMinute >= 0 && minute != r.currentMinute {
		if minute < r.currentMinute || minute-r.currentMinute >= 60 {
			// clock went backwards or the whole window expired
			r.clear()
		} else {
			for m := r.currentMinute + 1; m < minute; m++ {
				r.buckets[m%60] = emptyBucket()
			}
		}
	}

	idx := minute % 60
	if minute != r.currentMinute {
		r.buckets[idx] = minMaxBucket{min: value, max: value}
		r.currentMinute = minute
		return
	}

	b := &r.buckets[idx]
	b.min = min(b.min, value)
	b.max = max(b.max, value)
}

// Min returns the minimum value across all buckets, or 0 if no data
func (r *RollingMinMax) Min() float64 {
	result := math.MaxFloat64
	for _, b := range r.buckets {
		result = min(result, b.min)
	}
	if result == math.MaxFloat64 {
		return 0
	}
	return result
}

// Max returns the maximum value across all buckets, or 0 if no data
func (r *RollingMinMax) Max() float64 {
	result := -math.MaxFloat64
	for _, b := range r.buckets {
		result = max(result, b.max)
	}
	if result == -math.MaxFloat64 {
		return 0
	}
	return result
}

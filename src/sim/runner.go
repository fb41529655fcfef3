package sim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
)

// Accelerations are the supported time multipliers
var Accelerations = []int{1, 5, 10, 30, 60}

// MinTickPeriod keeps 60x from asking for more than one tick per frame
const MinTickPeriod = 16 * time.Millisecond

var ErrInvalidAcceleration = errors.New("invalid time acceleration")

// ValidAcceleration reports whether a is one of Accelerations
func ValidAcceleration(a int) bool {
	return slices.Contains(Accelerations, a)
}

// TickPeriod is the wall-clock time between ticks at an acceleration
func TickPeriod(acceleration int) time.Duration {
	if acceleration < 1 {
		acceleration = 1
	}
	return max(time.Second/time.Duration(acceleration), MinTickPeriod)
}

// SetAcceleration changes the time multiplier. The runner picks up the new period on its next loop.
func (s *Simulation) SetAcceleration(a int) error {
	if !ValidAcceleration(a) {
		return fmt.Errorf("%w: %d (allowed %v)", ErrInvalidAcceleration, a, Accelerations)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.acceleration = a

	// keep only the latest request
	select {
	case <-s.accelCh:
	default:
	}
	select {
	case s.accelCh <- a:
	default:
	}
	return nil
}

// Acceleration is the current time multiplier
func (s *Simulation) Acceleration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceleration
}

// Runner drives Tick from a wall-clock ticker
type Runner struct {
	sim    *Simulation
	onTick func()
}

// NewRunner creates a runner. onTick, if set, runs after every tick.
func NewRunner(sim *Simulation, onTick func()) *Runner {
	return &Runner{sim: sim, onTick: onTick}
}

// Run ticks until ctx is cancelled. Acceleration changes reset the ticker in this loop so a tick is
// never lost or doubled by the swap.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(TickPeriod(r.sim.Acceleration()))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-r.sim.accelCh:
			ticker.Reset(TickPeriod(a))
			r.sim.log.Info("Time acceleration changed", zap.Int("acceleration", a))
		case <-ticker.C:
			r.sim.Tick()
			if r.onTick != nil {
				r.onTick()
			}
		}
	}
}

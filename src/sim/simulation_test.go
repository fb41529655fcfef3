package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/history"
)

var start = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newSim(t *testing.T, accel int) *Simulation {
	t.Helper()
	return New(Options{Acceleration: accel, Seed: 42, Start: start})
}

func manualSim(t *testing.T, accel int) *Simulation {
	t.Helper()
	initial := DefaultInitial()
	initial.Controls.Mode = combustion.ModeManual
	return New(Options{Initial: initial, Acceleration: accel, Seed: 42, Start: start})
}

func TestNew_Defaults(t *testing.T) {
	s := newSim(t, 1)
	snap := s.Snapshot()

	assert.Equal(t, int64(0), snap.Tick)
	assert.Equal(t, start, snap.SimTime)
	assert.Equal(t, DefaultControls(), snap.Controls)
	assert.Equal(t, combustion.DefaultZones(), snap.Zones)
	assert.Equal(t, combustion.DefaultLocks(), snap.Locks)
	assert.Equal(t, combustion.DefaultWasteMix(), snap.Mix)
	assert.Equal(t, InitialSH5, snap.RealSH5)
	assert.Equal(t, InitialDeposit, snap.WasteDeposit)
	assert.Equal(t, 0.0, snap.Fouling)
	assert.Equal(t, 2.69, snap.Barycenter)
	assert.Equal(t, combustion.FireCentered, snap.FireStatus)
	assert.Equal(t, 28000.0, snap.ZoneFlows[0]+snap.ZoneFlows[1]+snap.ZoneFlows[2])
	assert.Equal(t, 75.0, snap.Result.Kp, "result is available before the first tick")
}

func TestNew_InvalidAccelerationFallsBack(t *testing.T) {
	s := New(Options{Acceleration: 7})
	assert.Equal(t, 1, s.Acceleration())
}

func TestTick_AdvancesClockAndFouling(t *testing.T) {
	s := newSim(t, 1)
	for i := 0; i < 100; i++ {
		s.Tick()
	}

	snap := s.Snapshot()
	assert.Equal(t, int64(100), snap.Tick)
	assert.Equal(t, start.Add(100*time.Second), snap.SimTime)
	assert.InDelta(t, 0.5, snap.Fouling, 1e-9)
}

func TestTick_FoulingMonotonicUntilSootBlow(t *testing.T) {
	s := newSim(t, 60)
	prev := 0.0
	for i := 0; i < 50; i++ {
		s.Tick()
		f := s.Snapshot().Fouling
		assert.Greater(t, f, prev)
		prev = f
	}

	assert.Equal(t, 0.0, s.SootBlow(), "cleanup is floored at zero")
}

func TestTick_ManualModeLeavesPusherAlone(t *testing.T) {
	s := manualSim(t, 1)
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	assert.Equal(t, 50.0, snap.Controls.PusherSpeed)
	assert.Equal(t, combustion.DefaultZones(), snap.Zones)
}

func TestTick_AutoModeRaisesPusherOnThinBed(t *testing.T) {
	s := newSim(t, 1)

	// Kp 75 is 25 under the reference: pusher steps up, no O2 trim
	s.Tick()
	snap := s.Snapshot()
	assert.InDelta(t, 50.1, snap.Controls.PusherSpeed, 1e-9)
	assert.Equal(t, combustion.DefaultZones(), snap.Zones)
}

func TestTick_AutoModeKeepsZoneTotal(t *testing.T) {
	s := newSim(t, 60)
	for i := 0; i < 2000; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	assert.InDelta(t, 100.0, snap.Zones.Total(), 1e-6)
	assert.GreaterOrEqual(t, snap.Controls.PusherSpeed, 0.0)
	assert.LessOrEqual(t, snap.Controls.PusherSpeed, 100.0)
}

func TestTick_ThermalLagConverges(t *testing.T) {
	s := manualSim(t, 1)

	first := s.Tick()
	snap := s.Snapshot()
	assert.Less(t, snap.RealSH5, InitialSH5)
	assert.Greater(t, snap.RealSH5, first.SH5Target, "one tick at 1x only covers a tenth of the gap")

	var res combustion.Result
	for i := 0; i < 100; i++ {
		res = s.Tick()
	}
	assert.InDelta(t, res.SH5Target, s.Snapshot().RealSH5, 0.5)
}

func TestTick_FullAccelerationTracksTarget(t *testing.T) {
	s := manualSim(t, 60)
	res := s.Tick()
	assert.InDelta(t, res.SH5Target, s.Snapshot().RealSH5, 1e-9)
}

func TestTick_HistoryDecimation(t *testing.T) {
	tests := []struct {
		accel int
		want  int
	}{
		{1, 10},
		{5, 10},
		{10, 5},
		{30, 2},
		{60, 2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dx", tt.accel), func(t *testing.T) {
			log := history.NewLog(0)
			s := New(Options{Acceleration: tt.accel, Seed: 1, Start: start, History: log})
			for i := 0; i < 10; i++ {
				s.Tick()
			}
			assert.Equal(t, tt.want, log.Len())
		})
	}
}

func TestTick_HistoryPoint(t *testing.T) {
	log := history.NewLog(0)
	s := New(Options{Acceleration: 1, Seed: 1, Start: start, History: log})
	res := s.Tick()

	points := log.Points()
	require.Len(t, points, 1)
	p := points[0]
	assert.Equal(t, start.Add(time.Second), p.Timestamp)
	assert.InDelta(t, 28000*0.61, p.Zone1Flow, 1e-9)
	assert.Equal(t, res.SimulatedO2, p.O2Level)
	assert.Equal(t, s.Snapshot().RealSH5, p.SH5Temp)
	assert.Equal(t, 2.69, p.Barycenter)
	assert.False(t, p.IsTechnicalStop)
	assert.Equal(t, 0.2, p.WasteMixRatio)
}

func TestRecording(t *testing.T) {
	s := newSim(t, 1)
	s.Tick()

	s.StartRecording()
	for i := 0; i < 3; i++ {
		s.Tick()
	}
	s.StopRecording()
	s.Tick()

	records := s.Records()
	require.Len(t, records, 3)
	assert.Equal(t, int64(2), records[0].Tick)
	assert.Equal(t, int64(4), records[2].Tick)
	assert.Equal(t, 2, records[0].Mode)
	assert.False(t, s.Snapshot().Recording)
	assert.Equal(t, 3, s.Snapshot().RecordedTicks)
}

func TestReset(t *testing.T) {
	s := newSim(t, 10)
	s.SetSteamTarget(40)
	s.UpdateZone(1, 70)
	s.StartRecording()
	for i := 0; i < 20; i++ {
		s.Tick()
	}

	s.Reset()
	snap := s.Snapshot()
	assert.Equal(t, int64(0), snap.Tick)
	assert.Equal(t, start, snap.SimTime)
	assert.Equal(t, DefaultControls(), snap.Controls)
	assert.Equal(t, combustion.DefaultZones(), snap.Zones)
	assert.Equal(t, 0.0, snap.Fouling)
	assert.Equal(t, InitialSH5, snap.RealSH5)
	assert.False(t, snap.Recording)
	assert.Empty(t, s.Records())
	assert.Equal(t, uint64(1), snap.Resets)
	assert.Equal(t, 10, snap.Acceleration, "acceleration survives a reset")
}

func TestSetters_Clamp(t *testing.T) {
	s := newSim(t, 1)

	assert.Equal(t, 60.0, s.SetSteamTarget(100))
	assert.Equal(t, 0.0, s.SetO2Real(-3))
	assert.Equal(t, -100.0, s.SetKap(-250))
	assert.Equal(t, 100.0, s.SetGrateSpeed(120))
	assert.Equal(t, 0.0, s.SetPusherSpeed(-1))
	assert.Equal(t, 60000.0, s.SetPrimaryAir(1e6))
	assert.Equal(t, combustion.ModeAuto, s.SetMode(combustion.Mode(7)))
	assert.Equal(t, combustion.ModeManual, s.SetMode(combustion.ModeManual))
}

func TestApplyConfig(t *testing.T) {
	s := newSim(t, 1)
	s.ApplyConfig(
		combustion.Zones{Zone1: 50, Zone2: 30, Zone3: 20, Sub1: 50, Sub2: 50, Sub3: 50},
		combustion.WasteMix{Category: combustion.Boost, Ratio: 0.4},
	)

	snap := s.Snapshot()
	assert.Equal(t, 50.0, snap.Zones.Zone1)
	assert.Equal(t, combustion.Boost, snap.Mix.Category)
	assert.Equal(t, 0.4, snap.Mix.Ratio)
}

func TestSnapshot_InertWaste(t *testing.T) {
	s := newSim(t, 1)
	s.SetWasteMix(combustion.WasteMix{Category: combustion.Inert, Ratio: 1})
	s.Tick()

	snap := s.Snapshot()
	assert.Equal(t, 0.0, snap.Result.DynamicPCI)
	assert.Equal(t, combustion.Inert, snap.DynamicClass)
}

func TestSnapshot_SH5Range(t *testing.T) {
	s := manualSim(t, 1)
	for i := 0; i < 30; i++ {
		s.Tick()
	}
	snap := s.Snapshot()
	assert.LessOrEqual(t, snap.SH5Min1h, snap.RealSH5)
	assert.Greater(t, snap.SH5Max1h, snap.SH5Min1h, "SH5 fell from its warm start")
}

func TestTick_SameSeedSameNoise(t *testing.T) {
	a := New(Options{Seed: 7, Start: start})
	b := New(Options{Seed: 7, Start: start})
	a.SetUnstable(true)
	b.SetUnstable(true)

	for i := 0; i < 20; i++ {
		assert.Equal(t, a.Tick(), b.Tick())
	}
}

func TestSimulation_ConcurrentAccess(t *testing.T) {
	s := newSim(t, 60)
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.Tick()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_ = s.Snapshot()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.UpdateZone(1+i%2, float64(40+i%20))
			s.SootBlow()
		}
	}()
	wg.Wait()

	assert.Equal(t, int64(500), s.Snapshot().Tick)
	assert.InDelta(t, 100.0, s.Snapshot().Zones.Total(), 1e-6)
}

func TestTickPeriod(t *testing.T) {
	tests := []struct {
		accel int
		want  time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{5, 200 * time.Millisecond},
		{10, 100 * time.Millisecond},
		{60, time.Second / 60},
		{1000, MinTickPeriod},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TickPeriod(tt.accel), "accel %d", tt.accel)
	}
}

func TestSetAcceleration(t *testing.T) {
	s := newSim(t, 1)

	require.NoError(t, s.SetAcceleration(30))
	assert.Equal(t, 30, s.Acceleration())

	err := s.SetAcceleration(2)
	assert.ErrorIs(t, err, ErrInvalidAcceleration)
	assert.Equal(t, 30, s.Acceleration())

	// repeated changes never block without a runner
	for _, a := range Accelerations {
		require.NoError(t, s.SetAcceleration(a))
	}
}

func TestSetAcceleration_ConcurrentCallsAgree(t *testing.T) {
	for round := 0; round < 50; round++ {
		s := newSim(t, 1)

		var wg sync.WaitGroup
		for _, a := range Accelerations {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.SetAcceleration(a))
			}()
		}
		wg.Wait()

		// the pending ticker change matches the multiplier used for the lag
		select {
		case pending := <-s.accelCh:
			assert.Equal(t, s.Acceleration(), pending)
		default:
			t.Fatal("no acceleration change pending")
		}
	}
}

func TestRunner_TicksUntilCancelled(t *testing.T) {
	s := newSim(t, 60)
	var ticks atomic.Int64
	r := NewRunner(s, func() { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.SetAcceleration(1))
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Equal(t, ticks.Load(), s.Snapshot().Tick)
}

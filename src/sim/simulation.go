// Package sim owns the live boiler: control setpoints, waste bed and fouling state, the thermal lag on
// SH5 and the PLC regulator, advanced one simulated second per Tick.
package sim

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/governor"
	"github.com/ryansname/boilersim/src/history"
)

const (
	// InitialSH5 is a warm boiler, so the lag does not start from cold
	InitialSH5      = 625.0
	InitialDeposit  = 50.0
	FoulingPerTick  = 0.005
	SootBlowCleanup = 30.0

	// MaxRecordedTicks bounds the tick export
	MaxRecordedTicks = 100000
)

// Controls are the operator setpoints
type Controls struct {
	SteamTarget float64         `json:"steam_target" toml:"steam_target"`
	Mode        combustion.Mode `json:"mode" toml:"mode"`
	O2Real      float64         `json:"o2_real" toml:"o2_real"`
	Kap         float64         `json:"kap" toml:"kap"`
	GrateSpeed  float64         `json:"grate_speed" toml:"grate_speed"`
	PusherSpeed float64         `json:"pusher_speed" toml:"pusher_speed"`
	PrimaryAir  float64         `json:"primary_air" toml:"primary_air"` // Nm3/h split across the zones
	Unstable    bool            `json:"unstable" toml:"unstable"`
}

// DefaultControls returns the nominal operating point
func DefaultControls() Controls {
	return Controls{
		SteamTarget: 30.6,
		Mode:        combustion.ModeAuto,
		O2Real:      6.0,
		Kap:         0,
		GrateSpeed:  50,
		PusherSpeed: 50,
		PrimaryAir:  28000,
		Unstable:    false,
	}
}

func (c Controls) clamped() Controls {
	c.SteamTarget = clamp(c.SteamTarget, 0, 60)
	if !c.Mode.Valid() {
		c.Mode = combustion.ModeAuto
	}
	c.O2Real = clamp(c.O2Real, 0, 21)
	c.Kap = clamp(c.Kap, -100, 100)
	c.GrateSpeed = clamp(c.GrateSpeed, 0, 100)
	c.PusherSpeed = clamp(c.PusherSpeed, 0, 100)
	c.PrimaryAir = clamp(c.PrimaryAir, 0, 60000)
	return c
}

// Initial is the state the simulation starts from and returns to on Reset
type Initial struct {
	Controls Controls
	Zones    combustion.Zones
	Locks    combustion.ZoneLocks
	Mix      combustion.WasteMix
}

// DefaultInitial is the plant's nominal state
func DefaultInitial() Initial {
	return Initial{
		Controls: DefaultControls(),
		Zones:    combustion.DefaultZones(),
		Locks:    combustion.DefaultLocks(),
		Mix:      combustion.DefaultWasteMix(),
	}
}

// Options configure a Simulation
type Options struct {
	Initial      Initial
	Acceleration int
	Seed         uint64 // 0 picks a random seed
	Start        time.Time
	History      *history.Log
	Logger       *zap.Logger
}

// Simulation is the single owner of all mutable plant state. Every method is safe for concurrent use;
// readers only ever see copies through Snapshot.
type Simulation struct {
	mu sync.Mutex

	initial  Initial
	controls Controls
	zones    combustion.Zones
	locks    combustion.ZoneLocks
	mix      combustion.WasteMix

	deposit   float64
	fouling   float64
	lag       governor.ThermalLag
	sh5Range  governor.RollingMinMax
	regulator governor.RegulatorConfig
	last      combustion.Result

	acceleration int
	accelCh      chan int

	tick   int64
	start  time.Time
	clock  time.Time
	resets uint64

	noise     combustion.Noise
	history   *history.Log
	recording bool
	records   []history.TickRecord

	log *zap.Logger
}

// New creates a simulation at the initial state
func New(opts Options) *Simulation {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.History == nil {
		opts.History = history.NewLog(history.DefaultCapacity)
	}
	if opts.Start.IsZero() {
		opts.Start = time.Now().Truncate(time.Second)
	}
	if !ValidAcceleration(opts.Acceleration) {
		opts.Acceleration = 1
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	initial := opts.Initial
	if initial == (Initial{}) {
		initial = DefaultInitial()
	}
	initial.Controls = initial.Controls.clamped()
	initial.Zones = initial.Zones.Normalize()
	initial.Mix = initial.Mix.Normalize()
	if initial.Locks[0] && initial.Locks[1] && initial.Locks[2] {
		initial.Locks = combustion.DefaultLocks()
	}

	s := &Simulation{
		initial:      initial,
		regulator:    governor.DefaultRegulatorConfig(),
		acceleration: opts.Acceleration,
		accelCh:      make(chan int, 1),
		start:        opts.Start,
		noise:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		history:      opts.History,
		log:          opts.Logger,
	}
	s.resetLocked()
	return s
}

func (s *Simulation) resetLocked() {
	s.controls = s.initial.Controls
	s.zones = s.initial.Zones
	s.locks = s.initial.Locks
	s.mix = s.initial.Mix
	s.deposit = InitialDeposit
	s.fouling = 0
	s.lag = governor.NewThermalLag(InitialSH5)
	s.sh5Range = governor.NewRollingMinMax()
	s.tick = 0
	s.clock = s.start
	s.recording = false
	s.records = nil
	s.last = combustion.Step(s.paramsLocked(), nil)
}

// History is the log ticks are recorded into
func (s *Simulation) History() *history.Log {
	return s.history
}

func (s *Simulation) paramsLocked() combustion.Params {
	flows := s.zoneFlowsLocked()
	return combustion.Params{
		SteamTarget:    s.controls.SteamTarget,
		APSumZones:     flows[0] + flows[1] + flows[2],
		O2Real:         s.controls.O2Real,
		Mode:           s.controls.Mode,
		Kap:            s.controls.Kap,
		GrateSpeed:     s.controls.GrateSpeed,
		PusherSpeed:    s.controls.PusherSpeed,
		FireBarycenter: combustion.Barycenter(s.zones, s.mix.Ratio),
		Unstable:       s.controls.Unstable,
		PrevDeposit:    s.deposit,
		Fouling:        s.fouling,
		Mix:            s.mix,
	}
}

// zoneFlowsLocked converts the zone percentages into Nm3/h of primary air
func (s *Simulation) zoneFlowsLocked() [3]float64 {
	air := s.controls.PrimaryAir
	return [3]float64{
		s.zones.Zone1 / 100 * air,
		s.zones.Zone2 / 100 * air,
		s.zones.Zone3 / 100 * air,
	}
}

// Tick advances the plant by one simulated second
func (s *Simulation) Tick() combustion.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := s.paramsLocked()
	res := combustion.Step(params, s.noise)

	s.deposit = res.WasteDeposit
	s.fouling = min(100, s.fouling+FoulingPerTick)
	realSH5 := s.lag.Update(res.SH5Target, float64(s.acceleration))

	if s.controls.Mode == combustion.ModeAuto {
		reg := governor.Regulate(governor.RegulatorState{
			Kp:          res.Kp,
			O2:          res.SimulatedO2,
			PusherSpeed: s.controls.PusherSpeed,
			Zone1:       s.zones.Zone1,
			Zone2:       s.zones.Zone2,
			Zone3:       s.zones.Zone3,
		}, s.regulator)
		s.controls.PusherSpeed = reg.PusherSpeed
		s.zones.Zone1, s.zones.Zone2, s.zones.Zone3 = reg.Zone1, reg.Zone2, reg.Zone3
	}

	s.tick++
	s.clock = s.clock.Add(time.Second)
	s.sh5Range.Update(realSH5, s.clock)
	s.last = res

	if s.tick%recordEvery(s.acceleration) == 0 {
		flows := s.zoneFlowsLocked()
		s.history.Append(history.DataPoint{
			ID:              fmt.Sprintf("%d-%d", s.clock.UnixMilli(), s.tick),
			Timestamp:       s.clock,
			Zone1Flow:       flows[0],
			Zone2Flow:       flows[1],
			Zone3Flow:       flows[2],
			SH5Temp:         realSH5,
			SteamFlow:       res.SteamFlow,
			O2Level:         res.SimulatedO2,
			Barycenter:      params.FireBarycenter,
			IsTechnicalStop: realSH5 < history.TechnicalStopSH5,
			WasteMixRatio:   s.mix.Ratio,
		})
	}

	if s.recording {
		s.records = append(s.records, history.TickRecord{
			Tick:         s.tick,
			Mode:         int(s.controls.Mode),
			SH5:          realSH5,
			O2:           res.SimulatedO2,
			WasteDeposit: res.WasteDeposit,
			EfficiencyAS: res.EfficiencyAS,
			Barycenter:   params.FireBarycenter,
			ASFlow:       res.ASFlow,
			PusherSpeed:  s.controls.PusherSpeed,
		})
		if len(s.records) >= MaxRecordedTicks {
			s.recording = false
			s.log.Warn("Recording stopped, tick export is full", zap.Int("ticks", len(s.records)))
		}
	}

	return res
}

// recordEvery thins the history at high acceleration so the log covers a useful span
func recordEvery(acceleration int) int64 {
	switch {
	case acceleration >= 30:
		return 5
	case acceleration >= 10:
		return 2
	default:
		return 1
	}
}

// Reset returns to the initial state. Fouling, bed and SH5 restart and any recording is discarded.
func (s *Simulation) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.resets++
	s.log.Info("Simulation reset", zap.Uint64("resets", s.resets))
}

// SootBlow cleans the superheater tubes
func (s *Simulation) SootBlow() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fouling = max(0, s.fouling-SootBlowCleanup)
	return s.fouling
}

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	return max(lo, min(hi, v))
}

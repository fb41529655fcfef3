package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/history"
)

// SetSteamTarget sets the steam production target in T/h
func (s *Simulation) SetSteamTarget(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.SteamTarget = clamp(v, 0, 60)
	return s.controls.SteamTarget
}

// SetMode switches between manual and automatic regulation. Invalid modes are ignored.
func (s *Simulation) SetMode(m combustion.Mode) combustion.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Valid() {
		s.controls.Mode = m
	}
	return s.controls.Mode
}

// SetO2Real records the operator's measured O2
func (s *Simulation) SetO2Real(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.O2Real = clamp(v, 0, 21)
	return s.controls.O2Real
}

// SetKap sets the Kap offset
func (s *Simulation) SetKap(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Kap = clamp(v, -100, 100)
	return s.controls.Kap
}

// SetGrateSpeed sets the grate speed in %
func (s *Simulation) SetGrateSpeed(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.GrateSpeed = clamp(v, 0, 100)
	return s.controls.GrateSpeed
}

// SetPusherSpeed sets the pusher speed in %. In automatic mode the regulator keeps moving it.
func (s *Simulation) SetPusherSpeed(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.PusherSpeed = clamp(v, 0, 100)
	return s.controls.PusherSpeed
}

// SetPrimaryAir sets the total primary air in Nm3/h
func (s *Simulation) SetPrimaryAir(v float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.PrimaryAir = clamp(v, 0, 60000)
	return s.controls.PrimaryAir
}

// SetUnstable toggles measurement noise
func (s *Simulation) SetUnstable(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controls.Unstable = on
}

// UpdateZone sets zone id (1-3), rebalancing the unlocked zones so the total stays 100
func (s *Simulation) UpdateZone(id int, value float64) combustion.Zones {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = combustion.UpdateZone(s.zones, s.locks, id, value)
	return s.zones
}

// SetSubZone sets the roller split of zone id (1-3)
func (s *Simulation) SetSubZone(id int, value float64) combustion.Zones {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = combustion.UpdateSub(s.zones, id, value)
	return s.zones
}

// SetLock locks or unlocks a zone. It reports false when the request was refused.
func (s *Simulation) SetLock(id int, locked bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	locks, ok := combustion.SetLock(s.locks, id, locked)
	if ok {
		s.locks = locks
	}
	return ok
}

// SetWasteMix changes the declared waste composition
func (s *Simulation) SetWasteMix(mix combustion.WasteMix) combustion.WasteMix {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mix = mix.Normalize()
	return s.mix
}

// SetWasteCategory changes the declared category, keeping the ratio
func (s *Simulation) SetWasteCategory(c combustion.WasteCategory) combustion.WasteMix {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mix = combustion.WasteMix{Category: c, Ratio: s.mix.Ratio}.Normalize()
	return s.mix
}

// SetMixRatio changes the share of the declared category, keeping the category
func (s *Simulation) SetMixRatio(v float64) combustion.WasteMix {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mix = combustion.WasteMix{Category: s.mix.Category, Ratio: v}.Normalize()
	return s.mix
}

// ApplyConfig replaces the zone distribution and waste mix with a saved configuration
func (s *Simulation) ApplyConfig(zones combustion.Zones, mix combustion.WasteMix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones = zones.Normalize()
	s.mix = mix.Normalize()
	s.log.Info("Configuration applied",
		zap.Float64("zone1", s.zones.Zone1),
		zap.Float64("zone2", s.zones.Zone2),
		zap.Float64("zone3", s.zones.Zone3),
		zap.String("category", string(s.mix.Category)),
		zap.Float64("ratio", s.mix.Ratio))
}

// StartRecording discards any previous recording and starts a new one
func (s *Simulation) StartRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.recording = true
}

// StopRecording keeps what was recorded so it can be exported
func (s *Simulation) StopRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
}

// Records returns a copy of the recorded ticks
func (s *Simulation) Records() []history.TickRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.TickRecord(nil), s.records...)
}

// Snapshot is a consistent copy of the plant state
type Snapshot struct {
	Tick         int64     `json:"tick"`
	SimTime      time.Time `json:"sim_time"`
	Acceleration int       `json:"acceleration"`
	Resets       uint64    `json:"resets"`

	Controls Controls             `json:"controls"`
	Zones    combustion.Zones     `json:"zones"`
	Locks    combustion.ZoneLocks `json:"locks"`
	Mix      combustion.WasteMix  `json:"mix"`
	Result   combustion.Result    `json:"result"`

	RealSH5      float64 `json:"real_sh5"`
	SH5Min1h     float64 `json:"sh5_min_1h"`
	SH5Max1h     float64 `json:"sh5_max_1h"`
	WasteDeposit float64 `json:"waste_deposit"`
	Fouling      float64 `json:"fouling"`

	Barycenter float64               `json:"barycenter"`
	FireStatus combustion.FireStatus `json:"fire_status"`
	Rollers    [6]float64            `json:"rollers"`    // % of primary air per roller
	ZoneFlows  [3]float64            `json:"zone_flows"` // Nm3/h

	EstimatedPCI   float64                  `json:"estimated_pci"`
	EstimatedClass combustion.WasteCategory `json:"estimated_class"`
	DynamicClass   combustion.WasteCategory `json:"dynamic_class"`

	Recording     bool `json:"recording"`
	RecordedTicks int  `json:"recorded_ticks"`
}

// Snapshot copies the current state. The result reflects the last tick; setpoint changes made since
// show up in Controls and Zones immediately and in Result after the next tick.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	barycenter := combustion.Barycenter(s.zones, s.mix.Ratio)
	estimated := combustion.EstimatedPCI(s.last.SteamFlow, s.last.TotalAir, s.last.SimulatedO2)

	return Snapshot{
		Tick:           s.tick,
		SimTime:        s.clock,
		Acceleration:   s.acceleration,
		Resets:         s.resets,
		Controls:       s.controls,
		Zones:          s.zones,
		Locks:          s.locks,
		Mix:            s.mix,
		Result:         s.last,
		RealSH5:        s.lag.Value,
		SH5Min1h:       s.sh5Range.Min(),
		SH5Max1h:       s.sh5Range.Max(),
		WasteDeposit:   s.deposit,
		Fouling:        s.fouling,
		Barycenter:     barycenter,
		FireStatus:     combustion.FireStatusOf(barycenter),
		Rollers:        combustion.RollerFlows(s.zones),
		ZoneFlows:      s.zoneFlowsLocked(),
		EstimatedPCI:   estimated,
		EstimatedClass: combustion.ClassifyPCI(estimated),
		DynamicClass:   combustion.ClassifyPCI(s.last.DynamicPCI),
		Recording:      s.recording,
		RecordedTicks:  len(s.records),
	}
}

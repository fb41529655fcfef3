package combustion

// Mode selects the secondary air law
type Mode int

const (
	// ModeManual uses the fixed empirical secondary air law
	ModeManual Mode = 1
	// ModeAuto balances secondary air against primary air and enables the regulator
	ModeAuto Mode = 2
)

// Valid reports whether m is one of the two regulation modes
func (m Mode) Valid() bool {
	return m == ModeManual || m == ModeAuto
}

// Noise is a uniform source in [0, 1)
type Noise interface {
	Float64() float64
}

// Params are the control inputs and bed state fed to Step
type Params struct {
	SteamTarget    float64 // T/h
	APSumZones     float64 // Nm3/h, primary air through the three zones
	O2Real         float64 // %, operator's measured O2, carried through unchanged
	Mode           Mode
	Kap            float64
	GrateSpeed     float64
	PusherSpeed    float64
	FireBarycenter float64
	Unstable       bool
	PrevDeposit    float64
	Fouling        float64
	Mix            WasteMix
}

// Result is the instantaneous plant response to Params
type Result struct {
	SimulatedO2    float64 `json:"simulated_o2"`
	Kp             float64 `json:"kp"`
	WasteDeposit   float64 `json:"waste_deposit"`
	EfficiencyAS   float64 `json:"efficiency_as"`
	SH5Target      float64 `json:"sh5_target"`
	Safe           bool    `json:"safe"`
	ASFlow         float64 `json:"as_flow"`
	TotalAir       float64 `json:"total_air"`
	TotalAirTarget float64 `json:"total_air_target"`
	DynamicPCI     float64 `json:"dynamic_pci"`
	SteamFlow      float64 `json:"steam_flow"`
	SteamTarget    float64 `json:"steam_target"`
	O2Real         float64 `json:"o2_real"`
	Kap            float64 `json:"kap"`
}

const (
	pciReference   = 9000.0
	baseAir        = 38000.0
	baseSteam      = 30.0
	baseSH5        = 625.0
	minASFlow      = 5000.0
	airPerSteam    = 1330.0 // Nm3 of combustion air per tonne of steam
	manualASFactor = 250.0

	// SafeSH5 is the superheater limit; targets at or above it are unsafe
	SafeSH5 = 620.0
)

// Step computes the plant's instantaneous response. It holds no state: the same Params and noise
// sequence always give the same Result. Noise is only drawn when Unstable is set; nil disables it.
func Step(p Params, noise Noise) Result {
	p = p.clamped()

	pci := DynamicPCI(p.Mix, p.SteamTarget, p.PusherSpeed)
	pciFactor := pci / pciReference

	// waste bed mass balance
	deltaStock := (p.PusherSpeed - p.GrateSpeed) * 0.02
	deposit := clamp(p.PrevDeposit+deltaStock, 0, 100)

	// secondary air
	totalAirTarget := p.SteamTarget * airPerSteam
	var asFlow float64
	if p.Mode == ModeAuto {
		asFlow = max(minASFlow, totalAirTarget-p.APSumZones)
	} else {
		asFlow = max(minASFlow, p.SteamTarget*manualASFactor)
	}
	totalAir := p.APSumZones + asFlow
	efficiency := asFlow / totalAir

	airRatio := totalAir / baseAir
	steam := baseSteam * pciFactor * airRatio

	kp := deposit * 1.5
	if p.Unstable && noise != nil {
		kp += (noise.Float64() - 0.5) * 5
	}

	fuel := (deposit / 50) * pciFactor
	if p.Mix.Category == Inert && p.Mix.Ratio > 0.8 {
		fuel = 0.1
	}
	o2 := clamp(6.0+(airRatio-fuel)*5, 0.5, 20.5)

	position := (p.FireBarycenter - 3.5) * 15
	load := deposit - 50
	fouling := p.Fouling * 0.5
	pciDelta := (pciFactor - 1.0) * 200
	if p.Mix.Category == Inert {
		pciDelta -= p.Mix.Ratio * 50
	}
	cooling := max(0, o2-6) * 10
	asCooling := ((asFlow - minASFlow) / 15000) * 30
	var modeBonus float64
	if p.Mode == ModeAuto {
		modeBonus = efficiency * 20
	}

	sh5 := baseSH5 + position + load + fouling + pciDelta - cooling - asCooling - modeBonus
	if p.Unstable && noise != nil {
		sh5 += (noise.Float64() - 0.5) * 10
	}

	return Result{
		SimulatedO2:    o2,
		Kp:             kp,
		WasteDeposit:   deposit,
		EfficiencyAS:   efficiency,
		SH5Target:      sh5,
		Safe:           sh5 < SafeSH5,
		ASFlow:         asFlow,
		TotalAir:       totalAir,
		TotalAirTarget: totalAirTarget,
		DynamicPCI:     pci,
		SteamFlow:      steam,
		SteamTarget:    p.SteamTarget,
		O2Real:         p.O2Real,
		Kap:            p.Kap,
	}
}

// clamped pins every input to its physical range so no formula sees a negative speed or NaN
func (p Params) clamped() Params {
	p.SteamTarget = clamp(p.SteamTarget, 0, 60)
	p.APSumZones = clamp(p.APSumZones, 0, 100000)
	p.O2Real = clamp(p.O2Real, 0, 21)
	p.Kap = clamp(p.Kap, -100, 100)
	if !p.Mode.Valid() {
		p.Mode = ModeAuto
	}
	p.GrateSpeed = clamp(p.GrateSpeed, 0, 100)
	p.PusherSpeed = clamp(p.PusherSpeed, 0, 100)
	p.FireBarycenter = clamp(p.FireBarycenter, 0, 7)
	p.PrevDeposit = clamp(p.PrevDeposit, 0, 100)
	p.Fouling = clamp(p.Fouling, 0, 100)
	p.Mix = p.Mix.Normalize()
	return p
}

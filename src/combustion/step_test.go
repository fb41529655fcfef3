package combustion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func nominalParams() Params {
	return Params{
		SteamTarget:    30.6,
		APSumZones:     28000,
		O2Real:         6,
		Mode:           ModeAuto,
		GrateSpeed:     50,
		PusherSpeed:    50,
		FireBarycenter: 2.69,
		PrevDeposit:    50,
		Mix:            DefaultWasteMix(),
	}
}

func TestStep_NominalOperation(t *testing.T) {
	r := Step(nominalParams(), nil)

	assert.InDelta(t, 8500.0, r.DynamicPCI, 1e-6)
	assert.InDelta(t, 50.0, r.WasteDeposit, 1e-9)
	assert.InDelta(t, 75.0, r.Kp, 1e-9)
	assert.InDelta(t, 12698.0, r.ASFlow, 1e-6)
	assert.InDelta(t, 40698.0, r.TotalAir, 1e-6)
	assert.InDelta(t, 30.35, r.SteamFlow, 0.01)
	assert.InDelta(t, 6.63, r.SimulatedO2, 0.01)
	assert.InDelta(t, 573.8, r.SH5Target, 0.1)
	assert.True(t, r.Safe)
}

func TestStep_SecondaryAirLaws(t *testing.T) {
	p := nominalParams()

	p.Mode = ModeAuto
	p.APSumZones = 40000
	assert.Equal(t, 5000.0, Step(p, nil).ASFlow, "air balance is floored")

	p.Mode = ModeManual
	p.APSumZones = 28000
	r := Step(p, nil)
	assert.InDelta(t, 7650.0, r.ASFlow, 1e-6)
	assert.InDelta(t, 7650.0/35650.0, r.EfficiencyAS, 1e-9)

	p.SteamTarget = 10
	assert.Equal(t, 5000.0, Step(p, nil).ASFlow, "fixed law is floored")
}

func TestStep_WasteBedMassBalance(t *testing.T) {
	p := nominalParams()

	p.PusherSpeed, p.GrateSpeed, p.PrevDeposit = 80, 30, 40
	assert.InDelta(t, 41.0, Step(p, nil).WasteDeposit, 1e-9)

	p.PusherSpeed, p.GrateSpeed, p.PrevDeposit = 100, 0, 99
	assert.Equal(t, 100.0, Step(p, nil).WasteDeposit)

	p.PusherSpeed, p.GrateSpeed, p.PrevDeposit = 0, 100, 1
	assert.Equal(t, 0.0, Step(p, nil).WasteDeposit)

	// negative speeds are clamped, not propagated
	p.PusherSpeed, p.GrateSpeed, p.PrevDeposit = -50, 50, 50
	assert.InDelta(t, 49.0, Step(p, nil).WasteDeposit, 1e-9)
}

func TestStep_Idempotent(t *testing.T) {
	p := nominalParams()
	assert.Equal(t, Step(p, nil), Step(p, nil))

	p.Unstable = true
	a := Step(p, rand.New(rand.NewSource(42)))
	b := Step(p, rand.New(rand.NewSource(42)))
	assert.Equal(t, a, b)
}

func TestStep_NoiseOnlyWhenUnstable(t *testing.T) {
	p := nominalParams()
	stable := Step(p, rand.New(rand.NewSource(1)))
	assert.Equal(t, Step(p, nil), stable)

	p.Unstable = true
	noisy := Step(p, rand.New(rand.NewSource(1)))
	assert.InDelta(t, stable.Kp, noisy.Kp, 2.5)
	assert.InDelta(t, stable.SH5Target, noisy.SH5Target, 5)

	// unstable without a noise source behaves as stable
	assert.Equal(t, stable.SH5Target, Step(p, nil).SH5Target)
}

func TestStep_FoulingRaisesSH5(t *testing.T) {
	p := nominalParams()
	prev := Step(p, nil).SH5Target
	for _, fouling := range []float64{0.005, 1, 10, 40, 99.9, 100} {
		p.Fouling = fouling
		sh5 := Step(p, nil).SH5Target
		assert.Greater(t, sh5, prev, "fouling %v", fouling)
		prev = sh5
	}
}

func TestStep_PureInertMakesNoSteam(t *testing.T) {
	p := nominalParams()
	p.Mix = WasteMix{Category: Inert, Ratio: 1.0}

	for _, air := range []float64{0, 10000, 28000, 60000} {
		p.APSumZones = air
		r := Step(p, nil)
		assert.Equal(t, 0.0, r.DynamicPCI)
		assert.InDelta(t, 0.0, r.SteamFlow, 1e-9, "air %v", air)
	}
}

func TestStep_InertStarvesTheFire(t *testing.T) {
	p := nominalParams()
	standard := Step(p, nil)

	p.Mix = WasteMix{Category: Inert, Ratio: 0.9}
	inert := Step(p, nil)

	assert.Greater(t, inert.SimulatedO2, standard.SimulatedO2)
	assert.Less(t, inert.SH5Target, standard.SH5Target)
}

func TestStep_Bounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	categories := []WasteCategory{Wet, Standard, Boost, HighPower, Inert}

	for i := 0; i < 2000; i++ {
		p := Params{
			SteamTarget:    rng.Float64()*80 - 10,
			APSumZones:     rng.Float64()*80000 - 5000,
			Mode:           Mode(rng.Intn(3)),
			GrateSpeed:     rng.Float64()*140 - 20,
			PusherSpeed:    rng.Float64()*140 - 20,
			FireBarycenter: rng.Float64() * 7,
			Unstable:       rng.Intn(2) == 0,
			PrevDeposit:    rng.Float64()*140 - 20,
			Fouling:        rng.Float64() * 120,
			Mix:            WasteMix{Category: categories[rng.Intn(len(categories))], Ratio: rng.Float64()},
		}
		r := Step(p, rng)

		assert.GreaterOrEqual(t, r.SimulatedO2, 0.5)
		assert.LessOrEqual(t, r.SimulatedO2, 20.5)
		assert.GreaterOrEqual(t, r.DynamicPCI, 0.0)
		assert.LessOrEqual(t, r.DynamicPCI, 25000.0)
		assert.GreaterOrEqual(t, r.WasteDeposit, 0.0)
		assert.LessOrEqual(t, r.WasteDeposit, 100.0)
		assert.GreaterOrEqual(t, r.ASFlow, 5000.0)
		assert.Equal(t, r.SH5Target < SafeSH5, r.Safe)
	}
}

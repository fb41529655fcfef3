package combustion

import (
	"fmt"
	"strings"
)

// WasteCategory is the operator's declared waste family
type WasteCategory string

const (
	Wet       WasteCategory = "WET"
	Standard  WasteCategory = "STANDARD"
	Boost     WasteCategory = "BOOST"
	HighPower WasteCategory = "HIGH_POWER"
	Inert     WasteCategory = "INERT"
)

// CategoryInfo describes a waste family and its reference calorific value
type CategoryInfo struct {
	Label       string  `json:"label"`
	PCI         float64 `json:"pci"`
	Description string  `json:"description"`
}

// Categories lists the reference PCI (kJ/kg) for every waste family
var Categories = map[WasteCategory]CategoryInfo{
	Wet:       {Label: "Wet", PCI: 4000, Description: "Grass cuttings, bio-waste (800-1200 kcal)"},
	Standard:  {Label: "Standard", PCI: 8500, Description: "Residual household waste (2000 kcal)"},
	Boost:     {Label: "Boost", PCI: 13000, Description: "Dry commercial waste, wood (3000 kcal)"},
	HighPower: {Label: "High power", PCI: 21000, Description: "Plastics, HDPE (5000 kcal)"},
	Inert:     {Label: "Inert", PCI: 0, Description: "Rubble, soil (0 kcal)"},
}

// PCI returns the reference PCI of the category, falling back to STANDARD for unknown values
func (c WasteCategory) PCI() float64 {
	if info, ok := Categories[c]; ok {
		return info.PCI
	}
	return Categories[Standard].PCI
}

// ParseCategory accepts a category name in any case, with '-' or ' ' for '_'
func ParseCategory(s string) (WasteCategory, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.NewReplacer("-", "_", " ", "_").Replace(name)
	c := WasteCategory(name)
	if _, ok := Categories[c]; !ok {
		return "", fmt.Errorf("unknown waste category %q", s)
	}
	return c, nil
}

// WasteMix is the declared category blended against STANDARD by Ratio (0-1)
type WasteMix struct {
	Category WasteCategory `json:"category" toml:"category"`
	Ratio    float64       `json:"ratio" toml:"ratio"`
}

// DefaultWasteMix is mostly household waste with some commercial waste
func DefaultWasteMix() WasteMix {
	return WasteMix{Category: Standard, Ratio: 0.2}
}

// Normalize clamps the ratio and replaces an unknown category with STANDARD
func (m WasteMix) Normalize() WasteMix {
	if _, ok := Categories[m.Category]; !ok {
		m.Category = Standard
	}
	m.Ratio = clamp(m.Ratio, 0, 1)
	return m
}

const (
	maxPCI = 25000.0

	nominalSteam  = 30.6
	nominalPusher = 50.0

	steamEnthalpy = 2675.0  // kJ/kg saturated steam
	airDensity    = 0.00129 // t/Nm3
	ambientO2     = 21.0
	minO2Consumed = 0.5

	// DefaultEstimatedPCI is returned by the virtual sensor when its inputs cannot support an estimate
	DefaultEstimatedPCI = 9200.0
)

// DynamicPCI is the declared model: the category's PCI blended into STANDARD by the mix ratio,
// corrected by how much steam each unit of pusher feed is producing.
func DynamicPCI(mix WasteMix, steamFlow, pusherSpeed float64) float64 {
	base := Categories[Standard].PCI
	if mix.Category == Inert && mix.Ratio == 1.0 {
		return 0
	}

	theoretical := base
	if mix.Category != Standard {
		theoretical = base*(1-mix.Ratio) + mix.Category.PCI()*mix.Ratio
	}

	yield := steamFlow / max(pusherSpeed, 10)
	correction := yield / (nominalSteam / nominalPusher)

	return clamp(theoretical*correction, 0, maxPCI)
}

// EstimatedPCI infers PCI from an energy balance: heat carried away by steam over the oxygen the
// fire consumed. Steam is in T/h and air in Nm3/h, so both mass flows are in t/h.
func EstimatedPCI(steamFlow, totalAirFlow, o2 float64) float64 {
	if steamFlow <= 0 || totalAirFlow <= 0 {
		return DefaultEstimatedPCI
	}
	consumed := ambientO2 - o2
	if consumed <= minO2Consumed {
		return DefaultEstimatedPCI
	}

	airMass := totalAirFlow * airDensity
	pci := steamFlow * steamEnthalpy / (airMass * (consumed / ambientO2))
	return clamp(pci, 0, maxPCI)
}

// ClassifyPCI maps a calorific value back to the waste family it looks like
func ClassifyPCI(pci float64) WasteCategory {
	switch {
	case pci <= 0:
		return Inert
	case pci < 7000:
		return Wet
	case pci < 11000:
		return Standard
	case pci < 16000:
		return Boost
	default:
		return HighPower
	}
}

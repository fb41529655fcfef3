package combustion

import "math"

// DefaultBarycenter is returned when there is no primary air to weight.
const DefaultBarycenter = 3.5

// zoneWeights are the grate positions of the three zone centres
var zoneWeights = [3]float64{1.5, 3.5, 5.5}

// rollerWeights are the grate positions of the six rollers
var rollerWeights = [6]float64{1, 2, 3, 4, 5, 6}

// RollerFlows splits the three zone flows into the six roller flows.
// Each split is the percentage of the zone's flow that goes to the first roller of its pair.
func RollerFlows(z Zones) [6]float64 {
	zones := [3]float64{z.Zone1, z.Zone2, z.Zone3}
	splits := [3]float64{z.Sub1, z.Sub2, z.Sub3}

	var rollers [6]float64
	for k := range zones {
		rollers[2*k] = zones[k] * splits[k] / 100
		rollers[2*k+1] = zones[k] * (100 - splits[k]) / 100
	}
	return rollers
}

// ZoneBarycenter returns the fire position from zone flows alone, ignoring sub-zone splits.
func ZoneBarycenter(z1, z2, z3 float64) float64 {
	flows := [3]float64{z1, z2, z3}

	var total, weighted float64
	for i, f := range flows {
		total += f
		weighted += f * zoneWeights[i]
	}
	if !(total > 0) || math.IsInf(weighted, 0) {
		return DefaultBarycenter
	}
	return round2(weighted / total)
}

// MixWeights returns the roller weights shifted by the waste mix.
// A high DIB ratio burns faster and pulls the centroid forward; a low one pushes it back.
func MixWeights(dibRatio float64) [6]float64 {
	pci := 8500 + dibRatio*3500
	shift := (pci - 10000) / 2000

	var weights [6]float64
	for i, w := range rollerWeights {
		position := (float64(i) - 2.5) / 2.5 // -1 at R1, +1 at R6
		weights[i] = w * (1 - position*shift*0.15)
	}
	return weights
}

// Barycenter returns the fire position across the six rollers, adjusted for the waste mix.
func Barycenter(z Zones, dibRatio float64) float64 {
	rollers := RollerFlows(z)
	weights := MixWeights(dibRatio)

	var total, weighted float64
	for i, f := range rollers {
		total += f
		weighted += f * weights[i]
	}
	if !(total > 0) || math.IsInf(weighted, 0) {
		return DefaultBarycenter
	}
	return round2(weighted / total)
}

// FireStatus describes where the combustion front sits on the grate
type FireStatus string

const (
	FireOffline  FireStatus = "OFFLINE"
	FireForward  FireStatus = "FORWARD"
	FireCentered FireStatus = "CENTERED"
	FireRear     FireStatus = "REAR"
)

// FireStatusOf classifies a barycenter. Rear fire is the SH5 risk position.
func FireStatusOf(barycenter float64) FireStatus {
	switch {
	case barycenter <= 0:
		return FireOffline
	case barycenter < 2.0:
		return FireForward
	case barycenter > 3.5:
		return FireRear
	default:
		return FireCentered
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package mentor

import (
	"fmt"
	"strings"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/combustion"
	"github.com/ryansname/boilersim/src/sim"
)

// Context is the plant state the mentor answers against
type Context struct {
	SH5        float64             `json:"sh5"`
	O2         float64             `json:"o2"`
	Barycenter float64             `json:"barycenter"`
	Mode       combustion.Mode     `json:"mode"`
	Fouling    float64             `json:"fouling"`
	PCI        float64             `json:"pci"`
	ASFlow     float64             `json:"as_flow"`
	RiskLevel  anomaly.RiskLevel   `json:"risk_level"`
	Active     []anomaly.Signature `json:"active,omitempty"`
}

// ContextFrom builds the mentor context from a simulator snapshot and the latest risk evaluation
func ContextFrom(snap sim.Snapshot, risk anomaly.State) Context {
	return Context{
		SH5:        snap.RealSH5,
		O2:         snap.Result.SimulatedO2,
		Barycenter: snap.Barycenter,
		Mode:       snap.Controls.Mode,
		Fouling:    snap.Fouling,
		PCI:        snap.EstimatedPCI,
		ASFlow:     snap.Result.ASFlow,
		RiskLevel:  risk.RiskLevel,
		Active:     risk.Active,
	}
}

func modeLabel(m combustion.Mode) string {
	if m == combustion.ModeAuto {
		return "mode 2 (air balance, automatic)"
	}
	return "mode 1 (steam law, manual)"
}

// SystemPrompt frames an operator question with the live plant values
func SystemPrompt(c Context) string {
	var b strings.Builder
	b.WriteString("You are the mentor of a waste-incineration boiler training simulator, an expert in combustion and energy recovery.\n\n")
	b.WriteString("Your role: advise operators on running the boiler, explain the physics, analyse abnormal situations and give actionable recommendations.\n\n")
	b.WriteString("Current simulator state:\n")
	fmt.Fprintf(&b, "- SH5 temperature: %.0f °C (target < 620 °C, critical > 640 °C)\n", c.SH5)
	fmt.Fprintf(&b, "- O2: %.1f %% (optimal 6-7 %%)\n", c.O2)
	fmt.Fprintf(&b, "- Fire barycenter: %.2f (optimal 3.0-3.5)\n", c.Barycenter)
	fmt.Fprintf(&b, "- Regulation: %s\n", modeLabel(c.Mode))
	fmt.Fprintf(&b, "- Estimated PCI: %.0f kJ/kg (reference 9000-10000 kJ/kg)\n", c.PCI)
	fmt.Fprintf(&b, "- Secondary air: %.0f Nm3/h\n", c.ASFlow)
	fmt.Fprintf(&b, "- Fouling: %.0f %%\n", c.Fouling)
	if c.RiskLevel != "" {
		fmt.Fprintf(&b, "- Explosion risk level: %s\n", c.RiskLevel)
	}
	b.WriteString("\nPlant layout: six rollers R1-R6 in three zones. Zone 1 (R1-R2) dries, zone 2 (R3-R4) burns, zone 3 (R5-R6) finishes.\n\n")
	b.WriteString("Answer style: at most 150 words unless a detailed analysis is requested. Always give a concrete action and explain why. ")
	b.WriteString("Use the simulator values above. Address the operator directly. If SH5 is above 640 °C start with an alert.\n\n")
	b.WriteString("Answer the operator's question now:")
	return b.String()
}

// LearningPrompt asks the model to turn an operator's field knowledge into a structured lesson
func LearningPrompt(c Context) string {
	return fmt.Sprintf(`You are the knowledge engineer of a waste-incineration boiler simulator.
Your goal is to extract and structure the technical know-how the operator gives you.

1. Analyse the raw text.
2. Ask one or two clarifying questions if it is too vague (missing temperature threshold, zone not stated).
3. If it is clear, propose a lesson with: title, trigger condition, corrective action, explanation.

Be technically rigorous. If the operator suggests a dangerous action, such as cutting air when O2 falls, challenge it.
Guide with questions rather than giving the answer outright.
Current context: SH5=%.0f, O2=%.1f, barycenter=%.2f.

Reply to the operator now:`, c.SH5, c.O2, c.Barycenter)
}

// SupervisionPrompt asks for an analysis of supervision screenshots
func SupervisionPrompt(images int) string {
	return fmt.Sprintf(`You are analysing %d screenshot(s) of a waste-incineration boiler supervision system.
Identify SH5 temperature, O2, steam flow, primary air per zone and any active alarms.
Point out abnormal values, likely causes and the corrective actions an operator should take, most urgent first.`, images)
}

package mentor

import (
	"fmt"
	"strings"

	"github.com/ryansname/boilersim/src/anomaly"
)

// FallbackMarker prefixes every answer produced without the remote model
const FallbackMarker = "[offline mentor] "

var helpWords = []string{"help", "aide", "?"}

// FallbackAnswer answers from the lesson catalogue and the live plant state
func FallbackAnswer(lessons []Lesson, question string, c Context) string {
	if l, ok := MatchLesson(lessons, question); ok {
		return formatLesson(l, c)
	}
	return contextualAnswer(strings.ToLower(question), c)
}

func formatLesson(l Lesson, c Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n%s", l.Question, strings.TrimSpace(l.Answer))

	b.WriteString("\n\nYour simulator right now:\n")
	status := "ok"
	if c.SH5 > 620 {
		status = "critical"
	}
	fmt.Fprintf(&b, "- SH5: %.0f °C (%s)\n", c.SH5, status)
	fmt.Fprintf(&b, "- O2: %.1f %%\n", c.O2)
	fmt.Fprintf(&b, "- Barycenter: %.2f\n", c.Barycenter)
	fmt.Fprintf(&b, "- Mode: %d\n", c.Mode)

	if l.Category == "temperature" && c.SH5 > 640 {
		b.WriteString("\nWARNING: SH5 is in the danger zone!\n")
	}
	if l.Category == "fouling" && c.Fouling > 30 {
		fmt.Fprintf(&b, "\nFouling is at %.0f %%: a soot blow is recommended.\n", c.Fouling)
	}
	writeSignatures(&b, c.Active)

	fmt.Fprintf(&b, "\nSource: %s", l.Source)
	return b.String()
}

func contextualAnswer(question string, c Context) string {
	for _, w := range helpWords {
		if strings.Contains(question, w) {
			return "I can help with:\n" +
				"- SH5 temperature and overheating\n" +
				"- fire position (barycenter)\n" +
				"- oxygen and combustion\n" +
				"- regulation modes\n" +
				"- fouling and soot blowing\n" +
				"- PCI and waste quality\n" +
				"- explosion risk\n\n" +
				"Ask me a specific question."
		}
	}

	var issues []string
	if c.SH5 > 620 {
		issues = append(issues, fmt.Sprintf("SH5 is high (%.0f °C). Ask about \"SH5\" for the actions.", c.SH5))
	}
	if c.Fouling > 40 {
		issues = append(issues, fmt.Sprintf("Fouling is heavy (%.0f %%). Ask about \"soot\".", c.Fouling))
	}
	if c.Barycenter < 2.5 || c.Barycenter > 4.0 {
		issues = append(issues, fmt.Sprintf("The fire is off-centre (barycenter %.2f). Ask about \"barycenter\".", c.Barycenter))
	}

	if len(issues) == 0 && len(c.Active) == 0 {
		return "Sorry, I did not understand the question. Try rephrasing it or ask for \"help\"."
	}

	var b strings.Builder
	b.WriteString("I did not understand the question, but I noticed:\n\n")
	b.WriteString(strings.Join(issues, "\n\n"))
	writeSignatures(&b, c.Active)
	return strings.TrimSpace(b.String())
}

func writeSignatures(b *strings.Builder, active []anomaly.Signature) {
	if len(active) == 0 {
		return
	}
	b.WriteString("\n\nActive alarms:\n")
	for _, sig := range active {
		fmt.Fprintf(b, "- [%s] %s. %s\n", sig.Severity, sig.Message, sig.Action)
	}
}

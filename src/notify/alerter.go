package notify

import (
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/anomaly"
	"github.com/ryansname/boilersim/src/governor"
)

// Reading is the plant state quoted in an alert
type Reading struct {
	SH5        float64
	O2         float64
	Barycenter float64
}

// Alerter sends one message per escalation to CRITICAL or EMERGENCY. It re-arms once the risk score
// falls back under the critical level. Not safe for concurrent use.
type Alerter struct {
	sender Sender
	latch  *governor.SteppedHysteresis
	log    *zap.Logger
}

// NewAlerter creates an alerter using the detector's score bands. A nil sender only logs.
func NewAlerter(sender Sender, th anomaly.Thresholds, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	levels := []float64{th.CriticalLevel, th.EmergencyLevel}
	return &Alerter{
		sender: sender,
		latch:  governor.NewSteppedHysteresis(levels, levels),
		log:    logger,
	}
}

// Observe feeds the latest evaluation. It reports whether an alert went out.
func (a *Alerter) Observe(state anomaly.State, r Reading) (bool, error) {
	prev := a.latch.Current
	step := a.latch.Update(state.Score)
	if step <= prev {
		return false, nil
	}

	a.log.Warn("Explosion risk escalated",
		zap.String("level", string(state.RiskLevel)),
		zap.Float64("score", state.Score),
		zap.Int("signatures", len(state.Active)))

	if a.sender == nil {
		return false, nil
	}
	if err := a.sender.Send(FormatAlert(state, r)); err != nil {
		return false, err
	}
	return true, nil
}

// Reset re-arms the alerter
func (a *Alerter) Reset() {
	a.latch.Reset()
}

// FormatAlert renders a risk state as a Telegram HTML message
func FormatAlert(state anomaly.State, r Reading) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "🚨 <b>BOILER RISK %s</b> 🚨\n\n", state.RiskLevel)
	fmt.Fprintf(&sb, "🕐 <b>Plant time:</b> %s\n", state.LastCheck.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "📈 <b>Score:</b> %.0f/100\n\n", state.Score)

	sb.WriteString("📊 <b>Current Readings:</b>\n")
	fmt.Fprintf(&sb, "🌡️ SH5: %.0f °C (Δ %.1f °C)\n", r.SH5, state.TempDelta)
	fmt.Fprintf(&sb, "💨 O2: %.1f %%\n", r.O2)
	fmt.Fprintf(&sb, "🔥 Barycenter: %.2f\n", r.Barycenter)

	if len(state.Active) > 0 {
		sb.WriteString("\n⚠️ <b>Active signatures:</b>\n")
		for _, sig := range state.Active {
			fmt.Fprintf(&sb, "%s <b>%s</b>: %s\n", severityIcon(sig.Severity), sig.Type, html.EscapeString(sig.Message))
			fmt.Fprintf(&sb, "   └ %s\n", html.EscapeString(sig.Action))
		}
	}
	return sb.String()
}

func severityIcon(s anomaly.Severity) string {
	switch s {
	case anomaly.SeverityCritical:
		return "🔴"
	case anomaly.SeverityHigh:
		return "🟠"
	default:
		return "🟡"
	}
}

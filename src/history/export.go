package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TickRecord is one row of the recorded simulation run
type TickRecord struct {
	Tick         int64   `json:"tick"`
	Mode         int     `json:"mode"`
	SH5          float64 `json:"sh5"`
	O2           float64 `json:"o2"`
	WasteDeposit float64 `json:"waste_deposit"`
	EfficiencyAS float64 `json:"efficiency_as"`
	Barycenter   float64 `json:"barycenter"`
	ASFlow       float64 `json:"as_flow"`
	PusherSpeed  float64 `json:"pusher_speed"`
}

// TickCSVHeader is the column order of WriteTickCSV
var TickCSVHeader = []string{
	"tick", "mode", "sh5", "o2", "waste_deposit", "efficiency_as", "barycenter", "as_flow", "pusher_speed",
}

// WriteTickCSV writes the header and one row per record
func WriteTickCSV(w io.Writer, records []TickRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TickCSVHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range records {
		row := []string{
			strconv.FormatInt(r.Tick, 10),
			strconv.Itoa(r.Mode),
			formatFloat(r.SH5),
			formatFloat(r.O2),
			formatFloat(r.WasteDeposit),
			formatFloat(r.EfficiencyAS),
			formatFloat(r.Barycenter),
			formatFloat(r.ASFlow),
			formatFloat(r.PusherSpeed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing tick %d: %w", r.Tick, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

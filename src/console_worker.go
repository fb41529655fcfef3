package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/ryansname/boilersim/src/api"
	"github.com/ryansname/boilersim/src/configstore"
	"github.com/ryansname/boilersim/src/history"
	"github.com/ryansname/boilersim/src/mentor"
	"github.com/ryansname/boilersim/src/metrics"
	"github.com/ryansname/boilersim/src/sankey"
	"github.com/ryansname/boilersim/src/sim"
)

// frameFields are the values the console can watch
var frameFields = map[string]func(Frame) string{
	"sh5":         func(f Frame) string { return formatConsoleValue(f.RealSH5) },
	"sh5_target":  func(f Frame) string { return formatConsoleValue(f.Result.SH5Target) },
	"sh5_min":     func(f Frame) string { return formatConsoleValue(f.SH5Min1h) },
	"sh5_max":     func(f Frame) string { return formatConsoleValue(f.SH5Max1h) },
	"o2":          func(f Frame) string { return formatConsoleValue(f.Result.SimulatedO2) },
	"steam":       func(f Frame) string { return formatConsoleValue(f.Result.SteamFlow) },
	"barycenter":  func(f Frame) string { return formatConsoleValue(f.DisplayBarycenter) },
	"fire":        func(f Frame) string { return string(f.FireStatus) },
	"deposit":     func(f Frame) string { return formatConsoleValue(f.WasteDeposit) },
	"fouling":     func(f Frame) string { return formatConsoleValue(f.Fouling) },
	"pusher":      func(f Frame) string { return formatConsoleValue(f.Controls.PusherSpeed) },
	"kp":          func(f Frame) string { return formatConsoleValue(f.Result.Kp) },
	"as_flow":     func(f Frame) string { return formatConsoleValue(f.Result.ASFlow) },
	"total_air":   func(f Frame) string { return formatConsoleValue(f.Result.TotalAir) },
	"pci":         func(f Frame) string { return formatConsoleValue(f.DisplayPCI) },
	"dynamic_pci": func(f Frame) string { return formatConsoleValue(f.Result.DynamicPCI) },
	"zone1":       func(f Frame) string { return formatConsoleValue(f.Zones.Zone1) },
	"zone2":       func(f Frame) string { return formatConsoleValue(f.Zones.Zone2) },
	"zone3":       func(f Frame) string { return formatConsoleValue(f.Zones.Zone3) },
	"risk":        func(f Frame) string { return string(f.Risk.RiskLevel) },
	"risk_score":  func(f Frame) string { return formatConsoleValue(f.Risk.Score) },
	"tick":        func(f Frame) string { return fmt.Sprint(f.Tick) },
}

// formatConsoleValue formats a float with smart precision
func formatConsoleValue(v float64) string {
	if v >= 100 || v <= -100 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// ANSI color codes for highlighting changes
const (
	ansiReset  = "\033[0m"
	ansiYellow = "\033[33m"
)

// watchTable prints the watched fields as a table, one row per change
type watchTable struct {
	fields        []string
	headerPrinted bool
	columnWidths  []int
	prevValues    map[string]string
}

func newWatchTable() *watchTable {
	return &watchTable{prevValues: make(map[string]string)}
}

// Add starts watching a field. It reports false for unknown or duplicate fields.
func (t *watchTable) Add(field string) bool {
	if _, ok := frameFields[field]; !ok || slices.Contains(t.fields, field) {
		return false
	}
	t.fields = append(t.fields, field)
	sort.Strings(t.fields)
	t.headerPrinted = false
	return true
}

func (t *watchTable) Remove(field string) bool {
	i := slices.Index(t.fields, field)
	if i < 0 {
		return false
	}
	t.fields = slices.Delete(t.fields, i, i+1)
	t.headerPrinted = false
	return true
}

func (t *watchTable) RemoveAll() {
	t.fields = t.fields[:0]
	t.headerPrinted = false
}

func (t *watchTable) Len() int {
	return len(t.fields)
}

func (t *watchTable) header() string {
	t.columnWidths = make([]int, len(t.fields))
	parts := make([]string, 0, len(t.fields))
	for i, f := range t.fields {
		t.columnWidths[i] = len(f)
		parts = append(parts, fmt.Sprintf("%*s", t.columnWidths[i], f))
	}
	t.headerPrinted = true
	t.prevValues = make(map[string]string)
	return strings.Join(parts, " | ")
}

// Rows returns the lines to print for a frame: a header when the columns changed, then the row if any
// value changed since the last one printed.
func (t *watchTable) Rows(f Frame) []string {
	if len(t.fields) == 0 {
		return nil
	}

	var lines []string
	if !t.headerPrinted {
		lines = append(lines, t.header())
	}

	parts := make([]string, 0, len(t.fields))
	anyChanged := false
	newValues := make(map[string]string, len(t.fields))

	for i, field := range t.fields {
		value := frameFields[field](f)
		newValues[field] = value

		width := max(t.columnWidths[i], len(value))
		t.columnWidths[i] = width

		prev, hasPrev := t.prevValues[field]
		if !hasPrev || prev != value {
			anyChanged = true
			parts = append(parts, fmt.Sprintf("%s%*s%s", ansiYellow, width, value, ansiReset))
		} else {
			parts = append(parts, fmt.Sprintf("%*s", width, value))
		}
	}

	if anyChanged {
		lines = append(lines, strings.Join(parts, " | "))
		t.prevValues = newValues
	}
	return lines
}

// Console is the operator's command line into the running simulation
type Console struct {
	sim     *sim.Simulation
	configs configstore.Store
	mentor  *mentor.Advisor
	risk    api.RiskSource
	metrics *metrics.Metrics
	log     *zap.Logger

	out     io.Writer
	watches *watchTable
	latest  *Frame
}

func (c *Console) print(format string, args ...any) {
	fmt.Fprintf(c.output(), format+"\n", args...)
}

func (c *Console) output() io.Writer {
	if c.out == nil {
		return rlWriter
	}
	return c.out
}

func (c *Console) table() *watchTable {
	if c.watches == nil {
		c.watches = newWatchTable()
	}
	return c.watches
}

// Update feeds a new frame, printing watched values
func (c *Console) Update(f Frame) {
	c.latest = &f
	for _, line := range c.table().Rows(f) {
		c.print("%s", line)
	}
}

const consoleHelp = `Commands:
  status                    - Show the plant state
  set <name> <value>        - Change a setpoint (names: %s)
  zone <1|2|3> <percent>    - Set a zone's share of primary air
  lock <1|2|3> on|off       - Lock a zone against rebalancing
  speed <1|5|10|30|60>      - Change the time acceleration
  soot                      - Run the soot blowers
  reset                     - Return to the initial state
  watch <field>             - Print a field whenever it changes
  unwatch <field> | --all   - Stop watching
  fields                    - List watchable fields
  record on|off             - Start or stop the tick recording
  export <file>             - Write the recording as CSV
  import <file>             - Replace the history with a PcVue export
  configs                   - List saved configurations
  save <name> [description] - Save the current zones and waste mix
  load <id>                 - Apply a saved configuration
  delete <id>               - Delete a saved configuration
  ask <question>            - Ask the mentor
  sankey                    - Print the Home Assistant air distribution card
  help                      - Show this help`

// Handle runs one command line
func (c *Console) Handle(ctx context.Context, line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}
	args := parts[1:]

	switch parts[0] {
	case "status":
		c.status()

	case "set":
		if len(args) != 2 {
			c.print("Usage: set <name> <value>")
			return
		}
		c.apply(args[0], args[1])

	case "zone", "lock":
		if len(args) != 2 {
			c.print("Usage: %s <1|2|3> <value>", parts[0])
			return
		}
		c.apply(parts[0]+args[0], args[1])

	case "speed":
		if len(args) != 1 {
			c.print("Usage: speed <1|5|10|30|60>")
			return
		}
		c.apply("speed", args[0])

	case "soot":
		c.print("Fouling now %.1f %%", c.sim.SootBlow())

	case "reset":
		c.sim.Reset()
		c.print("Simulation reset")

	case "watch":
		if len(args) != 1 {
			c.print("Usage: watch <field>")
			return
		}
		if !c.table().Add(args[0]) {
			c.print("Cannot watch %q (unknown or already watched, see 'fields')", args[0])
			return
		}
		c.print("Watching: %s", args[0])

	case "unwatch":
		if len(args) != 1 {
			c.print("Usage: unwatch <field> | unwatch --all")
			return
		}
		if args[0] == "--all" {
			c.table().RemoveAll()
			c.print("All watches removed")
			return
		}
		if !c.table().Remove(args[0]) {
			c.print("No watch found for: %s", args[0])
			return
		}
		c.print("Unwatched: %s", args[0])

	case "fields":
		names := make([]string, 0, len(frameFields))
		for name := range frameFields {
			names = append(names, name)
		}
		sort.Strings(names)
		c.print("Fields: %s", strings.Join(names, ", "))

	case "record":
		c.record(args)

	case "export":
		if len(args) != 1 {
			c.print("Usage: export <file>")
			return
		}
		c.export(args[0])

	case "import":
		if len(args) != 1 {
			c.print("Usage: import <file>")
			return
		}
		c.importHistory(args[0])

	case "configs":
		c.listConfigs(ctx)

	case "save":
		if len(args) == 0 {
			c.print("Usage: save <name> [description]")
			return
		}
		snap := c.sim.Snapshot()
		cfg, err := c.configs.Save(ctx, args[0], strings.Join(args[1:], " "), snap.Zones, snap.Mix)
		if err != nil {
			c.print("Error: %v", err)
			return
		}
		c.print("Saved %s (%s)", cfg.Name, cfg.ID)

	case "load":
		if len(args) != 1 {
			c.print("Usage: load <id>")
			return
		}
		cfg, err := c.configs.Get(ctx, args[0])
		if err != nil {
			c.print("Error: %v", err)
			return
		}
		c.sim.ApplyConfig(cfg.Zones, cfg.Mix)
		c.print("Applied %s", cfg.Name)

	case "delete":
		if len(args) != 1 {
			c.print("Usage: delete <id>")
			return
		}
		if err := c.configs.Delete(ctx, args[0]); err != nil {
			c.print("Error: %v", err)
			return
		}
		c.print("Deleted %s", args[0])

	case "ask":
		if len(args) == 0 {
			c.print("Usage: ask <question>")
			return
		}
		answer := c.mentor.Ask(ctx, strings.Join(args, " "), mentor.ContextFrom(c.sim.Snapshot(), c.risk.Risk()), false)
		c.metrics.MentorAnswer(answer.Fallback)
		c.print("%s", answer.Text)

	case "sankey":
		generated, err := sankey.Generate()
		if err != nil {
			c.print("Error: %v", err)
			return
		}
		c.print("%s\n%s", generated.Templates, generated.SankeyConfig)

	case "help":
		c.print(consoleHelp, strings.Join(sim.CommandNames(), ", "))

	default:
		c.print("Unknown command: %s (try 'help')", parts[0])
	}
}

func (c *Console) apply(name, value string) {
	result, err := c.sim.ApplyCommand(name, value)
	c.metrics.Command(name, err)
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	c.print("%s = %s", name, result)
}

func (c *Console) status() {
	snap := c.sim.Snapshot()
	risk := c.risk.Risk()
	c.print("Tick %d at %s (x%d)", snap.Tick, snap.SimTime.Format("15:04:05"), snap.Acceleration)
	c.print("SH5 %.1f °C (target %.1f, 1h %.1f-%.1f)", snap.RealSH5, snap.Result.SH5Target, snap.SH5Min1h, snap.SH5Max1h)
	c.print("O2 %.2f %%  steam %.2f t/h  Kp %.1f", snap.Result.SimulatedO2, snap.Result.SteamFlow, snap.Result.Kp)
	c.print("Zones %.1f/%.1f/%.1f  barycenter %.2f (%s)", snap.Zones.Zone1, snap.Zones.Zone2, snap.Zones.Zone3, snap.Barycenter, snap.FireStatus)
	c.print("Deposit %.1f  fouling %.1f %%  waste %s at %.0f %%", snap.WasteDeposit, snap.Fouling, snap.Mix.Category, snap.Mix.Ratio*100)
	c.print("Risk %s (score %.0f)", risk.RiskLevel, risk.Score)
}

func (c *Console) record(args []string) {
	if len(args) != 1 {
		c.print("Usage: record on|off")
		return
	}
	on, err := sim.ParseSwitch(args[0])
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	if on {
		c.sim.StartRecording()
		c.print("Recording started")
		return
	}
	c.sim.StopRecording()
	c.print("Recording stopped (%d ticks)", len(c.sim.Records()))
}

func (c *Console) export(path string) {
	records := c.sim.Records()
	f, err := os.Create(path)
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	if err := history.WriteTickCSV(f, records); err != nil {
		_ = f.Close()
		c.print("Error: %v", err)
		return
	}
	if err := f.Close(); err != nil {
		c.print("Error: %v", err)
		return
	}
	c.print("Exported %d ticks to %s", len(records), path)
}

func (c *Console) importHistory(path string) {
	f, err := os.Open(path)
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	defer func() { _ = f.Close() }()

	points, err := history.ParsePCVue(f)
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	log := c.sim.History()
	log.Replace(points)
	c.print("Imported %d points (%d kept)", len(points), log.Len())
}

func (c *Console) listConfigs(ctx context.Context) {
	configs, err := c.configs.List(ctx)
	if err != nil {
		c.print("Error: %v", err)
		return
	}
	if len(configs) == 0 {
		c.print("No saved configurations")
		return
	}
	for _, cfg := range configs {
		c.print("  %s  %-20s %s  %.0f/%.0f/%.0f %s", cfg.ID, cfg.Name, cfg.Timestamp.Format("2006-01-02 15:04"),
			cfg.Zones.Zone1, cfg.Zones.Zone2, cfg.Zones.Zone3, cfg.Mix.Category)
	}
}

// readlineLoop runs the readline loop, sending commands to the channel
func readlineLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	rl *readline.Instance,
	commandChan chan<- string,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			cancel() // Ctrl+C pressed, shutdown the app
			return
		}
		if err != nil {
			return // EOF or other error
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		select {
		case commandChan <- line:
		case <-ctx.Done():
			return
		}
	}
}

// getHistoryFilePath returns the path for the console history file
func getHistoryFilePath() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "" // No history if we can't find home
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "boilersim")
	_ = os.MkdirAll(dir, 0750)
	return filepath.Join(dir, "console_history")
}

// consoleWorker provides the interactive operator console
func consoleWorker(ctx context.Context, cancel context.CancelFunc, frameChan <-chan Frame, console *Console) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: getHistoryFilePath(),
	})
	if err != nil {
		console.log.Error("Console readline init failed", zap.Error(err))
		return
	}
	defer func() {
		_ = rl.Close()
		rlWriter.setReadline(nil)
	}()

	// Log output goes through the readline-aware writer
	rlWriter.setReadline(rl)

	console.log.Info("Console started (type 'help' for commands)")

	commandChan := make(chan string, 10)
	go readlineLoop(ctx, cancel, rl, commandChan)

	for {
		select {
		case line := <-commandChan:
			console.Handle(ctx, line)
		case frame := <-frameChan:
			console.Update(frame)
		case <-ctx.Done():
			console.log.Info("Console stopped")
			return
		}
	}
}

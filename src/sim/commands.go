package sim

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ryansname/boilersim/src/combustion"
)

var ErrUnknownCommand = errors.New("unknown command")

type commandFunc func(s *Simulation, value string) (string, error)

// commands is shared by the HTTP API, MQTT command topics and the console
var commands = map[string]commandFunc{
	"steam":    floatCommand((*Simulation).SetSteamTarget),
	"o2":       floatCommand((*Simulation).SetO2Real),
	"kap":      floatCommand((*Simulation).SetKap),
	"grate":    floatCommand((*Simulation).SetGrateSpeed),
	"pusher":   floatCommand((*Simulation).SetPusherSpeed),
	"air":      floatCommand((*Simulation).SetPrimaryAir),
	"mode":     modeCommand,
	"unstable": unstableCommand,
	"zone1":    zoneCommand(1),
	"zone2":    zoneCommand(2),
	"zone3":    zoneCommand(3),
	"sub1":     subCommand(1),
	"sub2":     subCommand(2),
	"sub3":     subCommand(3),
	"lock1":    lockCommand(1),
	"lock2":    lockCommand(2),
	"lock3":    lockCommand(3),
	"category": categoryCommand,
	"mix":      mixCommand,
	"speed":    speedCommand,
}

// CommandNames lists every accepted command, sorted
func CommandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyCommand parses value and applies the named setpoint. It returns the resulting value as text.
func (s *Simulation) ApplyCommand(name, value string) (string, error) {
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	result, err := cmd(s, strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return result, nil
}

func parseFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", value)
	}
	return v, nil
}

// ParseSwitch accepts the usual spellings of a boolean, including Home Assistant's ON/OFF
func ParseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid switch value %q", value)
	}
	return b, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatCommand(set func(*Simulation, float64) float64) commandFunc {
	return func(s *Simulation, value string) (string, error) {
		v, err := parseFloat(value)
		if err != nil {
			return "", err
		}
		return formatFloat(set(s, v)), nil
	}
}

func modeCommand(s *Simulation, value string) (string, error) {
	var m combustion.Mode
	switch strings.ToLower(value) {
	case "1", "manual":
		m = combustion.ModeManual
	case "2", "auto":
		m = combustion.ModeAuto
	default:
		return "", fmt.Errorf("invalid mode %q (1/manual or 2/auto)", value)
	}
	return strconv.Itoa(int(s.SetMode(m))), nil
}

func unstableCommand(s *Simulation, value string) (string, error) {
	on, err := ParseSwitch(value)
	if err != nil {
		return "", err
	}
	s.SetUnstable(on)
	return strconv.FormatBool(on), nil
}

func zoneCommand(id int) commandFunc {
	return func(s *Simulation, value string) (string, error) {
		v, err := parseFloat(value)
		if err != nil {
			return "", err
		}
		z := s.UpdateZone(id, v)
		return fmt.Sprintf("%.1f/%.1f/%.1f", z.Zone1, z.Zone2, z.Zone3), nil
	}
}

func subCommand(id int) commandFunc {
	return func(s *Simulation, value string) (string, error) {
		v, err := parseFloat(value)
		if err != nil {
			return "", err
		}
		return formatFloat(s.SetSubZone(id, v).Sub(id)), nil
	}
}

func lockCommand(id int) commandFunc {
	return func(s *Simulation, value string) (string, error) {
		locked, err := ParseSwitch(value)
		if err != nil {
			return "", err
		}
		if !s.SetLock(id, locked) {
			return "", errors.New("at least one zone must stay unlocked")
		}
		return strconv.FormatBool(locked), nil
	}
}

func categoryCommand(s *Simulation, value string) (string, error) {
	c, err := combustion.ParseCategory(value)
	if err != nil {
		return "", err
	}
	return string(s.SetWasteCategory(c).Category), nil
}

func mixCommand(s *Simulation, value string) (string, error) {
	v, err := parseFloat(value)
	if err != nil {
		return "", err
	}
	return formatFloat(s.SetMixRatio(v).Ratio), nil
}

func speedCommand(s *Simulation, value string) (string, error) {
	a, err := strconv.Atoi(strings.TrimSuffix(strings.ToLower(value), "x"))
	if err != nil {
		return "", fmt.Errorf("invalid acceleration %q", value)
	}
	if err := s.SetAcceleration(a); err != nil {
		return "", err
	}
	return strconv.Itoa(a), nil
}

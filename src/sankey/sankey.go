// Package sankey generates the Home Assistant air-distribution card: total combustion air split into
// primary and secondary air, primary air into the three grate zones and each zone into its rollers.
package sankey

import (
	"fmt"

	"github.com/iancoleman/strcase"
)

// DevicePrefix is prepended to every entity the simulator publishes
const DevicePrefix = "boilersim"

// ObjectID is the Home Assistant object id for a published signal name
func ObjectID(name string) string {
	return strcase.ToSnake(DevicePrefix + " " + name)
}

// EntityID is the sensor entity id Home Assistant assigns to a published signal
func EntityID(name string) string {
	return "sensor." + ObjectID(name)
}

// Signal names published over MQTT and referenced by the card
const (
	SignalPrimaryAir   = "primary air"
	SignalSecondaryAir = "secondary air"
	SignalTotalAir     = "total air"
)

// ZoneSignal names the primary air flow of zone (1-3)
func ZoneSignal(zone int) string {
	return fmt.Sprintf("zone %d air", zone)
}

// RollerSignal names the primary air flow of roller (1-6)
func RollerSignal(roller int) string {
	return fmt.Sprintf("roller %d air", roller)
}

// GeneratedConfigs holds both generated YAML outputs
type GeneratedConfigs struct {
	SankeyConfig string
	Templates    string
}

// DefaultConfig describes the grate: three zones of two rollers each
func DefaultConfig() Config {
	cfg := Config{
		Title: "Combustion air",
		Unit:  "Nm³/h",
		Sensors: []SensorTemplate{{
			Name:     ObjectID(SignalTotalAir),
			Type:     TemplateSum,
			Entities: []string{EntityID(SignalPrimaryAir), EntityID(SignalSecondaryAir)},
		}},
		Groups: []Group{
			{
				Name:     "total",
				Section:  SectionTotalAir,
				Sensors:  []Sensor{{Name: EntityID(SignalTotalAir), Label: "Combustion air"}},
				Children: []string{"primary", "secondary"},
			},
			{
				Name:     "primary",
				Section:  SectionAirSplit,
				Sensors:  []Sensor{{Name: EntityID(SignalPrimaryAir), Label: "Primary (AP)"}},
				Children: []string{"zone1", "zone2", "zone3"},
			},
			{
				Name:    "secondary",
				Section: SectionAirSplit,
				Sensors: []Sensor{{Name: EntityID(SignalSecondaryAir), Label: "Secondary (AS)"}},
			},
		},
	}

	for zone := 1; zone <= 3; zone++ {
		rollers := fmt.Sprintf("zone%d_rollers", zone)
		cfg.Groups = append(cfg.Groups, Group{
			Name:     fmt.Sprintf("zone%d", zone),
			Section:  SectionZones,
			Sensors:  []Sensor{{Name: EntityID(ZoneSignal(zone)), Label: fmt.Sprintf("Zone %d", zone)}},
			Children: []string{rollers},
		})

		first := zone*2 - 1
		cfg.Groups = append(cfg.Groups, Group{
			Name:    rollers,
			Section: SectionRollers,
			Sensors: []Sensor{
				{Name: EntityID(RollerSignal(first)), Label: fmt.Sprintf("R%d", first)},
				{Name: EntityID(RollerSignal(first + 1)), Label: fmt.Sprintf("R%d", first+1)},
			},
		})
	}
	return cfg
}

// Generate produces both YAML configurations from the default config
func Generate() (GeneratedConfigs, error) {
	cfg := DefaultConfig()
	card, err := GenerateSankeyYAML(cfg)
	if err != nil {
		return GeneratedConfigs{}, fmt.Errorf("sankey card: %w", err)
	}
	templates, err := GenerateTemplatesYAML(cfg)
	if err != nil {
		return GeneratedConfigs{}, fmt.Errorf("sankey templates: %w", err)
	}
	return GeneratedConfigs{SankeyConfig: card, Templates: templates}, nil
}

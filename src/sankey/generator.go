package sankey

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type templateSensor struct {
	Name       string `yaml:"name"`
	UniqueID   string `yaml:"unique_id"`
	Unit       string `yaml:"unit_of_measurement"`
	StateClass string `yaml:"state_class"`
	State      string `yaml:"state"`
}

type cardEntity struct {
	Type     string   `yaml:"type"`
	EntityID string   `yaml:"entity_id"`
	Name     string   `yaml:"name,omitempty"`
	Children []string `yaml:"children,omitempty"`
}

type cardSection struct {
	SortGroupByParent bool         `yaml:"sort_group_by_parent"`
	Entities          []cardEntity `yaml:"entities"`
}

type gridOptions struct {
	Columns string `yaml:"columns"`
	Rows    int    `yaml:"rows"`
}

type card struct {
	Sections    []cardSection `yaml:"sections"`
	Type        string        `yaml:"type"`
	Title       string        `yaml:"title"`
	MinState    float64       `yaml:"min_state"`
	ShowNames   bool          `yaml:"show_names"`
	Wide        bool          `yaml:"wide"`
	GridOptions gridOptions   `yaml:"grid_options"`
	StaticScale float64       `yaml:"static_scale"`
	Throttle    int           `yaml:"throttle"`
	Layout      string        `yaml:"layout"`
	Height      int           `yaml:"height"`
	UnitPrefix  string        `yaml:"unit_prefix"`
	Round       int           `yaml:"round"`
	MinBoxSize  int           `yaml:"min_box_size"`
	MinBoxSpace int           `yaml:"min_box_distance"`
	ShowStates  bool          `yaml:"show_states"`
	ShowUnits   bool          `yaml:"show_units"`
}

func encodeYAML(v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func templateState(s SensorTemplate) string {
	if s.Type == TemplateFormula {
		return "{{ " + s.Formula + " }}"
	}
	quoted := make([]string, len(s.Entities))
	for i, e := range s.Entities {
		quoted[i] = fmt.Sprintf("'%s'", e)
	}
	return fmt.Sprintf("{{ [%s] | map('states') | map('float', 0) | sum }}", strings.Join(quoted, ", "))
}

// GenerateTemplatesYAML generates the Home Assistant template sensors YAML
func GenerateTemplatesYAML(cfg Config) (string, error) {
	sensors := make([]templateSensor, 0, len(cfg.Sensors))
	for _, s := range cfg.Sensors {
		sensors = append(sensors, templateSensor{
			Name:       s.Name,
			UniqueID:   s.Name,
			Unit:       cfg.Unit,
			StateClass: "measurement",
			State:      templateState(s),
		})
	}
	return encodeYAML(sensors)
}

// children lists the entities of the named groups, in order
func children(cfg Config, names []string) []string {
	var ids []string
	for _, name := range names {
		g, ok := cfg.group(name)
		if !ok {
			continue
		}
		for _, s := range g.Sensors {
			ids = append(ids, s.Name)
		}
	}
	return ids
}

// GenerateSankeyYAML generates the Lovelace sankey chart card YAML. Groups keep their config order
// inside a section.
func GenerateSankeyYAML(cfg Config) (string, error) {
	c := card{
		Type:        "custom:sankey-chart",
		Title:       cfg.Title,
		MinState:    50,
		ShowNames:   true,
		GridOptions: gridOptions{Columns: "full", Rows: 5},
		Throttle:    1000,
		Layout:      "horizontal",
		Height:      260,
		MinBoxSize:  10,
		MinBoxSpace: 3,
		ShowStates:  true,
		ShowUnits:   true,
	}

	for section := SectionTotalAir; section < sectionCount; section++ {
		cs := cardSection{SortGroupByParent: true, Entities: []cardEntity{}}
		for _, g := range cfg.Groups {
			if g.Section != section {
				continue
			}
			for _, s := range g.Sensors {
				cs.Entities = append(cs.Entities, cardEntity{
					Type:     "entity",
					EntityID: s.Name,
					Name:     s.Label,
					Children: children(cfg, g.Children),
				})
			}
		}
		c.Sections = append(c.Sections, cs)
	}

	return encodeYAML(c)
}

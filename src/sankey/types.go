package sankey

// Section is a column of the sankey diagram, left to right
type Section int

const (
	SectionTotalAir Section = iota
	SectionAirSplit
	SectionZones
	SectionRollers

	sectionCount
)

// TemplateType represents the type of template calculation
type TemplateType int

const (
	TemplateFormula TemplateType = iota
	TemplateSum
)

// SensorTemplate defines a calculated sensor template
type SensorTemplate struct {
	Name     string
	Type     TemplateType
	Formula  string   // Used when Type == TemplateFormula
	Entities []string // Used when Type == TemplateSum
}

// Sensor is one entity drawn as a box
type Sensor struct {
	Name  string
	Label string // Optional display label
}

// Group is a set of boxes in one section flowing into the Children groups
type Group struct {
	Name     string
	Section  Section
	Sensors  []Sensor
	Children []string
}

// Config holds the complete sankey configuration
type Config struct {
	Title   string
	Unit    string
	Sensors []SensorTemplate
	Groups  []Group
}

// group looks a group up by name
func (c Config) group(name string) (Group, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

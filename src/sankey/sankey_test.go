package sankey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestEntityID(t *testing.T) {
	assert.Equal(t, "boilersim_primary_air", ObjectID(SignalPrimaryAir))
	assert.Equal(t, "sensor.boilersim_secondary_air", EntityID(SignalSecondaryAir))
}

func TestDefaultConfig_Children(t *testing.T) {
	cfg := DefaultConfig()

	names := map[string]bool{}
	for _, g := range cfg.Groups {
		names[g.Name] = true
	}
	rollers := 0
	for _, g := range cfg.Groups {
		for _, child := range g.Children {
			assert.True(t, names[child], "group %s references missing child %s", g.Name, child)
		}
		if g.Section == SectionRollers {
			rollers += len(g.Sensors)
		}
	}
	assert.Equal(t, 6, rollers)
}

func TestGenerateSankeyYAML(t *testing.T) {
	out, err := Generate()
	require.NoError(t, err)

	var card map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out.SankeyConfig), &card))
	assert.Equal(t, "custom:sankey-chart", card["type"])

	sections, ok := card["sections"].([]any)
	require.True(t, ok)
	assert.Len(t, sections, 4)

	assert.Equal(t, "Combustion air", card["title"])

	assert.Contains(t, out.SankeyConfig, "entity_id: "+EntityID(SignalTotalAir))
	assert.Contains(t, out.SankeyConfig, "- "+EntityID(ZoneSignal(2)))
	assert.Equal(t, 1, strings.Count(out.SankeyConfig, "name: Primary (AP)"))

	// primary air flows into the three zones, secondary air is a leaf
	primary := sections[1].(map[string]any)["entities"].([]any)[0].(map[string]any)
	assert.Equal(t, EntityID(SignalPrimaryAir), primary["entity_id"])
	assert.Equal(t, []any{EntityID(ZoneSignal(1)), EntityID(ZoneSignal(2)), EntityID(ZoneSignal(3))}, primary["children"])
	secondary := sections[1].(map[string]any)["entities"].([]any)[1].(map[string]any)
	assert.NotContains(t, secondary, "children")

	rollers := sections[3].(map[string]any)["entities"].([]any)
	assert.Len(t, rollers, 6)
}

func TestGenerateTemplatesYAML(t *testing.T) {
	out, err := GenerateTemplatesYAML(DefaultConfig())
	require.NoError(t, err)

	var templates []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, ObjectID(SignalTotalAir), templates[0]["unique_id"])
	assert.Equal(t, "Nm³/h", templates[0]["unit_of_measurement"])
	assert.Contains(t, templates[0]["state"], "| sum")
}

package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyCommand(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"steam", "100", "60"},
		{"o2", "6,5", "6.5"},
		{"kap", "-12", "-12"},
		{"grate", "55", "55"},
		{"pusher", "45.5", "45.5"},
		{"air", "30000", "30000"},
		{"mode", "manual", "1"},
		{"mode", "2", "2"},
		{"unstable", "ON", "true"},
		{"zone1", "70", "70.0/10.0/20.0"},
		{"sub2", "150", "100"},
		{"category", "high-power", "HIGH_POWER"},
		{"mix", "1.5", "1"},
		{"speed", "10x", "10"},
		{"STEAM", " 20 ", "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			s := newSim(t, 1)
			got, err := s.ApplyCommand(tt.name, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		value string
		is    error
	}{
		{"boost", "1", ErrUnknownCommand},
		{"speed", "7", ErrInvalidAcceleration},
		{"steam", "lots", nil},
		{"mode", "3", nil},
		{"unstable", "maybe", nil},
		{"category", "plutonium", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name+"="+tt.value, func(t *testing.T) {
			s := newSim(t, 1)
			_, err := s.ApplyCommand(tt.name, tt.value)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestApplyCommand_Locks(t *testing.T) {
	s := newSim(t, 1)

	_, err := s.ApplyCommand("lock1", "on")
	require.NoError(t, err)

	_, err = s.ApplyCommand("lock2", "on")
	assert.Error(t, err, "zone 3 is already locked, so locking zone 2 would freeze the grate")

	_, err = s.ApplyCommand("lock3", "off")
	require.NoError(t, err)
	_, err = s.ApplyCommand("lock2", "true")
	require.NoError(t, err)

	assert.Equal(t, [3]bool{true, true, false}, [3]bool(s.Snapshot().Locks))
}

func TestApplyCommand_MixKeepsCategory(t *testing.T) {
	s := newSim(t, 1)
	_, err := s.ApplyCommand("category", "boost")
	require.NoError(t, err)
	_, err = s.ApplyCommand("mix", "0.7")
	require.NoError(t, err)

	mix := s.Snapshot().Mix
	assert.Equal(t, "BOOST", string(mix.Category))
	assert.Equal(t, 0.7, mix.Ratio)
}

func TestCommandNames(t *testing.T) {
	names := CommandNames()
	assert.Len(t, names, 20)
	assert.Contains(t, names, "speed")
	assert.IsNonDecreasing(t, names)
}

func TestParseSwitch(t *testing.T) {
	for _, v := range []string{"on", "ON", "true", "1", "yes"} {
		b, err := ParseSwitch(v)
		require.NoError(t, err, v)
		assert.True(t, b, v)
	}
	for _, v := range []string{"off", "OFF", "false", "0", "no"} {
		b, err := ParseSwitch(v)
		require.NoError(t, err, v)
		assert.False(t, b, v)
	}
}

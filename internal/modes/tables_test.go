package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation(t *testing.T) {
	tests := []struct {
		code  string
		label string
	}{
		{"0", Off},
		{"1", Auto},
		{"2", Dry},
		{"3", Cooling},
		{"4", Heating},
		{"6", Fan},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			label, err := Operation.Label(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.label, label)

			code, err := Operation.Code(tt.label)
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestOperation_ReservedCode(t *testing.T) {
	_, err := Operation.Label("5")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestIntegerCodesNormalized(t *testing.T) {
	label, err := Swing.Label("03")
	require.NoError(t, err)
	assert.Equal(t, "3D swing", label)
}

func TestFanRate(t *testing.T) {
	label, err := FanRate.Label("B")
	require.NoError(t, err)
	assert.Equal(t, "Indoor unit quiet", label)

	code, err := FanRate.Code("3")
	require.NoError(t, err)
	assert.Equal(t, "5", code)

	_, err = FanRate.Label("a")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestUnknownLabel(t *testing.T) {
	for _, table := range []*Table{Operation, FanRate, Swing} {
		_, err := table.Code("Unknown")
		assert.ErrorIs(t, err, ErrUnknownMode, table.Name())
	}
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{Auto, Cooling, Heating, Fan, Dry, Off}, Operation.Labels())
	assert.Equal(t, []string{"Automatic", "Indoor unit quiet", "1", "2", "3", "4", "5"}, FanRate.Labels())
	assert.Equal(t, []string{"Off", "Up-down swing", "Left-right swing", "3D swing"}, Swing.Labels())

	labels := Swing.Labels()
	labels[0] = "mutated"
	assert.Equal(t, "Off", Swing.Labels()[0])
}

func TestDuplicateLabelPanics(t *testing.T) {
	assert.Panics(t, func() {
		newTable("broken", true, entry{"0", "Off"}, entry{"1", "Off"})
	})
}

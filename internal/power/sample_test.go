package power_test

import (
	"testing"

	"codeberg.org/mutker/battctl/internal/power"
	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]power.ChargeStatus{
		"Charging":     power.Charging,
		"Discharging":  power.Discharging,
		"Not charging": power.NotCharging,
		"Full":         power.Full,
		"Unknown":      power.StatusUnknown,
		"garbage":      power.StatusUnknown,
		"":             power.StatusUnknown,
	}

	for input, want := range cases {
		assert.Equal(t, want, power.ParseStatus(input), "Unexpected status for %q", input)
	}
}

func TestSanitizeDegradesImplausibleFields(t *testing.T) {
	s := power.Sample{
		Voltage:  12000, // not a single li-ion cell
		Current:  9000,  // beyond anything the path can carry
		Capacity: 140,
		Limit:    -500,
		Status:   power.Charging,
	}.Sanitize()

	assert.False(t, s.HasVoltage(), "Expected an implausible voltage to degrade to unknown")
	assert.False(t, s.HasCurrent(), "Expected an implausible current to degrade to unknown")
	assert.False(t, s.HasCapacity(), "Expected an implausible capacity to degrade to unknown")
	assert.False(t, s.HasLimit())
	assert.Equal(t, power.Charging, s.Status, "Expected the status to survive other bad fields")
}

func TestSanitizeKeepsPlausibleFields(t *testing.T) {
	s := power.Sample{
		Voltage:  3800,
		Current:  -450,
		Capacity: 60,
		Limit:    500,
	}.Sanitize()

	assert.Equal(t, 3800, s.Voltage)
	assert.Equal(t, -450, s.Current)
	assert.Equal(t, 60, s.Capacity)
	assert.Equal(t, 500, s.Limit)
}

func TestEmptySample(t *testing.T) {
	empty := power.Sample{Current: power.CurrentUnknown, Capacity: power.CapacityUnknown}
	assert.True(t, empty.Empty())

	partial := empty
	partial.Voltage = 3800
	assert.False(t, partial.Empty(), "Expected one known field to make the sample usable")
}

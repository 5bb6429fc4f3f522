package engine_test

import (
	"testing"

	"codeberg.org/mutker/battctl/internal/engine"
	"codeberg.org/mutker/battctl/internal/power"
	"github.com/stretchr/testify/assert"
)

func TestEstimatePrefersFuelGauge(t *testing.T) {
	est := engine.DefaultVoltageEstimator()

	soc, ok := est.Estimate(power.Sample{Voltage: 3900, Capacity: 42})
	assert.True(t, ok)
	assert.Equal(t, 42, soc, "Expected the fuel gauge reading to win over the voltage proxy")
}

func TestEstimateFromVoltage(t *testing.T) {
	est := engine.DefaultVoltageEstimator()

	cases := []struct {
		voltage int
		want    int
	}{
		{3300, 0},
		{3750, 50},
		{3900, 66},
		{4200, 100},
		{3100, 0},   // below the empty point
		{4300, 100}, // above the full point
	}

	for _, c := range cases {
		soc, ok := est.Estimate(power.Sample{Voltage: c.voltage, Capacity: power.CapacityUnknown})
		assert.True(t, ok, "Expected an estimate for %d mV", c.voltage)
		assert.Equal(t, c.want, soc, "Unexpected estimate for %d mV", c.voltage)
	}
}

func TestEstimateWithoutAnyReading(t *testing.T) {
	est := engine.DefaultVoltageEstimator()

	_, ok := est.Estimate(power.Sample{Capacity: power.CapacityUnknown})
	assert.False(t, ok, "Expected no estimate without voltage or capacity")
}

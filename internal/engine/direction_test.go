package engine_test

import (
	"testing"

	"codeberg.org/mutker/battctl/internal/engine"
	"codeberg.org/mutker/battctl/internal/power"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReliableHardwareUsesCurrentSign(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhonePro()

	var tr engine.DirectionTracker
	var dir engine.Direction

	dir, tr = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: -400, Capacity: 50}, 500)
	assert.Equal(t, engine.DirectionDischarging, dir, "Expected a negative current to read as discharging")

	dir, _ = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: 400, Capacity: 50}, 500)
	assert.Equal(t, engine.DirectionCharging, dir, "Expected a positive current to read as charging")
}

func TestReliableHardwareFallsBackToStatus(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhonePro()

	var tr engine.DirectionTracker
	dir, _ := tr.Update(cfg, p, power.Sample{
		Voltage:  3800,
		Current:  power.CurrentUnknown,
		Status:   power.Discharging,
		Capacity: 50,
	}, 500)
	assert.Equal(t, engine.DirectionDischarging, dir)
}

func TestCurrentAboveLimitMeansDischarging(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	// 700 mA through a 500 mA input path can only come from the battery,
	// whatever the driver claims.
	dir, _ := tr.Update(cfg, p, power.Sample{
		Voltage:  3800,
		Current:  700,
		Status:   power.Charging,
		Capacity: power.CapacityUnknown,
	}, 500)
	assert.Equal(t, engine.DirectionDischarging, dir)
}

func TestFallingVoltageTrendMeansDischarging(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	var dir engine.Direction

	// A small current well under the limit, but the voltage keeps sagging.
	voltage := 3800
	for i := 0; i <= cfg.TrendWindow; i++ {
		s := power.Sample{Voltage: voltage, Current: 200, Status: power.Charging, Capacity: power.CapacityUnknown}
		dir, tr = tr.Update(cfg, p, s, 2000)
		voltage -= 10
	}

	assert.Equal(t, engine.DirectionDischarging, dir,
		"Expected a sustained falling trend to override the optimistic status")
}

func TestRisingVoltageUnderLimitMeansCharging(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	var dir engine.Direction

	voltage := 3700
	for i := 0; i <= cfg.TrendWindow; i++ {
		s := power.Sample{Voltage: voltage, Current: 200, Capacity: power.CapacityUnknown}
		dir, tr = tr.Update(cfg, p, s, 2000)
		voltage += 10
	}

	assert.Equal(t, engine.DirectionCharging, dir)
}

func TestAlternatingEvidenceNeverFlipsGuess(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	var dir engine.Direction

	// Establish a discharging guess.
	dir, tr = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: 700, Capacity: power.CapacityUnknown}, 500)
	require.Equal(t, engine.DirectionDischarging, dir)

	// Alternate one cycle of charge evidence (rising voltage, small
	// current) with one of discharge evidence. The contrary count resets
	// every other cycle, so the guess must never flip.
	for i := 0; i < 20; i++ {
		charge := power.Sample{Voltage: 3810, Current: 100, Capacity: power.CapacityUnknown}
		dir, tr = tr.Update(cfg, p, charge, 500)
		assert.Equal(t, engine.DirectionDischarging, dir, "Expected the guess to survive a lone contrary cycle")

		discharge := power.Sample{Voltage: 3800, Current: 700, Capacity: power.CapacityUnknown}
		dir, tr = tr.Update(cfg, p, discharge, 500)
		assert.Equal(t, engine.DirectionDischarging, dir)
	}
}

func TestConsistentContraryEvidenceFlipsAfterHysteresis(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	var dir engine.Direction

	dir, tr = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: 700, Capacity: power.CapacityUnknown}, 500)
	require.Equal(t, engine.DirectionDischarging, dir)

	// Rising voltage with a modest current, cycle after cycle.
	voltage := 3810
	for i := 1; i < cfg.Hysteresis; i++ {
		dir, tr = tr.Update(cfg, p, power.Sample{Voltage: voltage, Current: 100, Capacity: power.CapacityUnknown}, 500)
		assert.Equal(t, engine.DirectionDischarging, dir, "Expected no flip after %d contrary cycles", i)
		voltage += 10
	}

	dir, _ = tr.Update(cfg, p, power.Sample{Voltage: voltage, Current: 100, Capacity: power.CapacityUnknown}, 500)
	assert.Equal(t, engine.DirectionCharging, dir, "Expected the flip on the %dth contrary cycle", cfg.Hysteresis)
}

func TestNoEvidenceKeepsGuess(t *testing.T) {
	cfg := engine.DefaultConfig()
	p := power.PinePhone()

	var tr engine.DirectionTracker
	var dir engine.Direction

	dir, tr = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: 700, Capacity: power.CapacityUnknown}, 500)
	require.Equal(t, engine.DirectionDischarging, dir)

	// Ambiguous cycles: current between the thresholds, steady voltage.
	for i := 0; i < 10; i++ {
		dir, tr = tr.Update(cfg, p, power.Sample{Voltage: 3800, Current: 400, Capacity: power.CapacityUnknown}, 500)
		assert.Equal(t, engine.DirectionDischarging, dir)
	}
}

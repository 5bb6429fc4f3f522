package engine

import "codeberg.org/mutker/battctl/internal/power"

// CapacityEstimator approximates a battery's state of charge when no fuel
// gauge reading is available.
type CapacityEstimator interface {
	// Estimate returns the state of charge in percent and whether an
	// estimate was possible at all.
	Estimate(s power.Sample) (int, bool)
}

// VoltageEstimator maps terminal voltage linearly onto a charge
// percentage. Crude, but voltage under comparable load is a workable proxy
// for a single li-ion cell, and the balancing margin absorbs the error.
type VoltageEstimator struct {
	EmptyVoltage int // mV treated as 0%
	FullVoltage  int // mV treated as 100%
}

// DefaultVoltageEstimator covers a single li-ion cell.
func DefaultVoltageEstimator() VoltageEstimator {
	return VoltageEstimator{
		EmptyVoltage: 3300,
		FullVoltage:  4200,
	}
}

func (e VoltageEstimator) Estimate(s power.Sample) (int, bool) {
	if s.HasCapacity() {
		return s.Capacity, true
	}
	if !s.HasVoltage() || e.FullVoltage <= e.EmptyVoltage {
		return 0, false
	}

	switch {
	case s.Voltage <= e.EmptyVoltage:
		return 0, true
	case s.Voltage >= e.FullVoltage:
		return 100, true
	}

	return (s.Voltage - e.EmptyVoltage) * 100 / (e.FullVoltage - e.EmptyVoltage), true
}

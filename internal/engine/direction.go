package engine

import "codeberg.org/mutker/battctl/internal/power"

// Direction is the engine's belief about which way net current is flowing
// through a battery.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionCharging
	DirectionDischarging
)

func (d Direction) String() string {
	switch d {
	case DirectionCharging:
		return "charging"
	case DirectionDischarging:
		return "discharging"
	default:
		return "unknown"
	}
}

// DirectionTracker infers the true charge direction on hardware that
// reports only the magnitude of battery current and claims Charging
// whenever external power is present. The guess is sticky: an established
// guess flips only after a configured number of consecutive contrary
// cycles, so single noisy samples cannot make the limit chatter.
//
// The tracker is a value; Update returns the successor state alongside the
// current guess, keeping the engine a pure function of its inputs.
type DirectionTracker struct {
	Guess         Direction
	Contrary      int
	LastVoltage   int // mV from the previous cycle, 0 before the first
	FallingCycles int
	RisingCycles  int
}

// Update folds one cycle's sample into the tracker. limit is the input
// current limit in effect for the source, in mA.
func (t DirectionTracker) Update(cfg Config, p power.Platform, s power.Sample, limit int) (Direction, DirectionTracker) {
	t = t.observeVoltage(s)

	if !p.UnreliableCurrentSign {
		// Trustworthy hardware: the sign and status speak for themselves.
		switch {
		case s.HasCurrent() && s.Current < 0:
			t.Guess = DirectionDischarging
		case s.HasCurrent() && s.Current > 0:
			t.Guess = DirectionCharging
		case s.Status == power.Discharging:
			t.Guess = DirectionDischarging
		case s.Status == power.Charging:
			t.Guess = DirectionCharging
		}
		t.Contrary = 0

		return t.Guess, t
	}

	evidence := t.evidence(cfg, s, limit)
	switch {
	case evidence == DirectionUnknown:
		// No signal this cycle; the guess stands.
	case t.Guess == DirectionUnknown:
		t.Guess = evidence
		t.Contrary = 0
	case evidence == t.Guess:
		t.Contrary = 0
	default:
		t.Contrary++
		if t.Contrary >= cfg.Hysteresis {
			t.Guess = evidence
			t.Contrary = 0
		}
	}

	return t.Guess, t
}

func (t DirectionTracker) observeVoltage(s power.Sample) DirectionTracker {
	if !s.HasVoltage() {
		return t
	}

	if t.LastVoltage > 0 {
		switch {
		case s.Voltage < t.LastVoltage:
			t.FallingCycles++
			t.RisingCycles = 0
		case s.Voltage > t.LastVoltage:
			t.RisingCycles++
			t.FallingCycles = 0
		}
	}
	t.LastVoltage = s.Voltage

	return t
}

// evidence derives this cycle's direction signal from the gap between the
// reported current magnitude and the input limit, combined with the
// voltage trend. It may be wrong occasionally; hysteresis in Update and
// the default-limit fallback absorb that.
func (t DirectionTracker) evidence(cfg Config, s power.Sample, limit int) Direction {
	if !s.HasCurrent() || limit <= 0 {
		switch {
		case t.FallingCycles >= cfg.TrendWindow:
			return DirectionDischarging
		case t.RisingCycles >= cfg.TrendWindow:
			return DirectionCharging
		}
		return DirectionUnknown
	}

	magnitude := s.Current
	if magnitude < 0 {
		magnitude = -magnitude
	}

	switch {
	case magnitude > limit+limit/4:
		// More current than the input path allows can only be coming
		// out of the battery.
		return DirectionDischarging
	case magnitude >= limit-limit/8 && t.FallingCycles >= 1:
		// Pinned at the limit with sagging voltage: the input is not
		// keeping up with the load.
		return DirectionDischarging
	case t.FallingCycles >= cfg.TrendWindow:
		return DirectionDischarging
	case magnitude <= limit/2 && t.RisingCycles >= 1:
		return DirectionCharging
	case t.RisingCycles >= cfg.TrendWindow:
		return DirectionCharging
	default:
		return DirectionUnknown
	}
}

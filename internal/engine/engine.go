// Package engine decides, once per control cycle, how the phone's input
// current limit should move. It is a pure function of the two battery
// samples and its own compact state, which keeps every rule testable
// without hardware.
package engine

import (
	"codeberg.org/mutker/battctl/internal/errors"
	"codeberg.org/mutker/battctl/internal/power"
)

// Action is the engine's verdict for one cycle.
type Action int

const (
	// Pass leaves the current limit untouched.
	Pass Action = iota
	// Raise moves the limit one supported step up.
	Raise
	// Lower moves the limit one supported step down.
	Lower
	// SetDefault walks the limit back toward the platform default, one
	// step per cycle.
	SetDefault
)

func (a Action) String() string {
	switch a {
	case Raise:
		return "raise"
	case Lower:
		return "lower"
	case SetDefault:
		return "set_default"
	default:
		return "pass"
	}
}

// Config holds the decision thresholds. All cycle counts are in control
// cycles, not wall time.
type Config struct {
	// CriticalCapacity is the phone state of charge in percent below
	// which keeping the phone alive overrides balancing.
	CriticalCapacity int

	// BalanceMargin is the state-of-charge difference in percent the two
	// batteries may drift apart before the engine steps the limit.
	BalanceMargin int

	// Hysteresis is how many consecutive contrary cycles it takes to
	// flip an established direction guess.
	Hysteresis int

	// StepCooldown is the minimum number of cycles between ordinary
	// limit steps. The safety floor and default fallback ignore it.
	StepCooldown int

	// TrendWindow is how many consecutive cycles of voltage movement
	// count as a trend.
	TrendWindow int

	// LightLoad is the phone current draw in mA below which balanced
	// batteries drift back to the minimum limit step.
	LightLoad int
}

func DefaultConfig() Config {
	return Config{
		CriticalCapacity: 20,
		BalanceMargin:    10,
		Hysteresis:       3,
		StepCooldown:     10,
		TrendWindow:      5,
		LightLoad:        300,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if c.CriticalCapacity < 0 || c.CriticalCapacity > 100 {
		return errFactory.WithData(ErrInvalidConfig, "critical_capacity out of range")
	}
	if c.BalanceMargin < 0 || c.BalanceMargin > 100 {
		return errFactory.WithData(ErrInvalidConfig, "balance_margin out of range")
	}
	if c.Hysteresis < 1 {
		return errFactory.WithData(ErrInvalidConfig, "hysteresis must be at least 1")
	}
	if c.StepCooldown < 1 {
		return errFactory.WithData(ErrInvalidConfig, "step_cooldown must be at least 1")
	}
	if c.TrendWindow < 1 {
		return errFactory.WithData(ErrInvalidConfig, "trend_window must be at least 1")
	}
	if c.LightLoad < 0 {
		return errFactory.WithData(ErrInvalidConfig, "light_load must not be negative")
	}

	return nil
}

// State is everything the engine carries between cycles. It is a value:
// Decide returns the successor and never mutates the argument, so a cycle
// whose actuation fails can simply be replayed.
type State struct {
	// Cycle counts decisions made so far.
	Cycle int

	// LastAction is the verdict of the previous cycle.
	LastAction Action

	// LastLimit is the limit the engine believes to be in effect, in mA.
	// The driver overwrites it with the actuator's readback after a
	// successful apply, making the hardware authoritative.
	LastLimit int

	// LastStepCycle is the cycle of the most recent limit change, for
	// rate limiting.
	LastStepCycle int

	// KeyboardCharging latches whether the previous cycle saw the
	// keyboard on external power, to catch plug and unplug transitions.
	KeyboardCharging bool

	// PhoneDirection tracks the inferred charge direction of the phone
	// battery.
	PhoneDirection DirectionTracker
}

// Engine evaluates one cycle at a time against a fixed platform and
// configuration.
type Engine struct {
	cfg      Config
	platform power.Platform
	capacity CapacityEstimator
}

func New(cfg Config, p power.Platform, capacity CapacityEstimator) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if capacity == nil {
		capacity = DefaultVoltageEstimator()
	}

	return &Engine{cfg: cfg, platform: p, capacity: capacity}, nil
}

// InitialState seeds the engine with the limit currently in effect, as
// read from the hardware at startup. A missing or implausible reading
// falls back to the platform default.
func (e *Engine) InitialState(limit int) State {
	if limit <= 0 {
		limit = e.platform.DefaultLimit()
	}

	return State{LastLimit: e.platform.Quantize(limit)}
}

// Decide evaluates one control cycle. It returns the action, the limit to
// request in mA, and the successor state. The returned limit equals the
// state's limit when the action is Pass.
//
// The rules apply in strict priority order: missing telemetry, the phone's
// safety floor, external-power handling, state-of-charge balancing, and a
// default-limit fallback whenever the sensors leave the picture unclear.
func (e *Engine) Decide(phone, keyboard power.Sample, st State) (Action, int, State) {
	phone = phone.Sanitize()
	keyboard = keyboard.Sanitize()
	st.Cycle++

	// With no telemetry at all there is nothing safe to do but hold.
	if phone.Empty() && keyboard.Empty() {
		return e.hold(st)
	}

	limit := st.LastLimit
	if phone.HasLimit() {
		limit = e.platform.Quantize(phone.Limit)
	}
	if limit <= 0 {
		limit = e.platform.DefaultLimit()
	}
	st.LastLimit = limit

	// The tracker runs every cycle so its guess is warm by the time a
	// rule needs it.
	var dir Direction
	dir, st.PhoneDirection = st.PhoneDirection.Update(e.cfg, e.platform, phone, limit)

	// Keeping the phone alive beats everything else, including the rate
	// limit.
	if phone.HasCapacity() && phone.Capacity < e.cfg.CriticalCapacity {
		return e.raiseForSafety(limit, st)
	}

	if keyboard.Status == power.Charging {
		return e.decideOnExternalPower(keyboard, dir, limit, st)
	}
	if st.KeyboardCharging {
		switch keyboard.Status {
		case power.Discharging:
			// External power went away; start from the known-safe point.
			st.KeyboardCharging = false
			return e.settle(limit, st)
		case power.Full, power.NotCharging:
			// Wall power still present and the keyboard cell is done
			// drawing; spend the whole input on the phone.
			if limit < e.platform.MaxLimit() {
				return e.step(Raise, e.platform.StepUp(limit), st)
			}
			return e.hold(st)
		default:
			return e.hold(st)
		}
	}

	if keyboard.Status == power.Discharging {
		return e.balance(phone, keyboard, dir, limit, st)
	}

	// Keyboard full, not charging, or silent: no budget pressure and no
	// deficit to correct, so drift back to the default.
	return e.settle(limit, st)
}

// raiseForSafety pushes the limit up while the phone is critically low.
// Below the default it heads there first; the verdict is SetDefault so the
// log reads as a reset rather than a deliberate step.
func (e *Engine) raiseForSafety(limit int, st State) (Action, int, State) {
	if limit < e.platform.DefaultLimit() {
		return e.force(SetDefault, e.platform.StepUp(limit), st)
	}

	return e.force(Raise, e.platform.StepUp(limit), st)
}

// decideOnExternalPower handles the keyboard drawing from a wall charger.
// The shared budget still binds, but headroom can be spent freely on the
// phone while its battery is net-discharging.
func (e *Engine) decideOnExternalPower(keyboard power.Sample, dir Direction, limit int, st State) (Action, int, State) {
	if !st.KeyboardCharging {
		st.KeyboardCharging = true
		return e.settle(limit, st)
	}

	// The controller tolerates brief excursions slightly past the
	// nominal budget.
	budget := e.platform.KeyboardBudget
	ceiling := budget + budget/16

	draw := 0
	if keyboard.HasCurrent() {
		draw = keyboard.Current
		if draw < 0 {
			draw = -draw
		}
	}

	next := e.platform.StepUp(limit)
	switch {
	case dir == DirectionDischarging && next != limit && draw+next < ceiling:
		return e.step(Raise, next, st)
	case draw+limit > ceiling:
		return e.step(Lower, e.platform.StepDown(limit), st)
	}

	return e.hold(st)
}

// balance steers the two states of charge toward each other, at most one
// step per cooldown window.
func (e *Engine) balance(phone, keyboard power.Sample, dir Direction, limit int, st State) (Action, int, State) {
	// The phone's state of charge comes from its fuel gauge alone; a
	// voltage proxy on the loaded battery would be too far off to
	// balance against.
	if !phone.HasCapacity() {
		return e.settle(limit, st)
	}
	keyboardSoC, ok := e.capacity.Estimate(keyboard)
	if !ok {
		return e.settle(limit, st)
	}

	diff := phone.Capacity - keyboardSoC
	switch {
	case diff < -e.cfg.BalanceMargin:
		// Phone falling behind: pull more from the keyboard.
		if limit < e.platform.MaxLimit() {
			return e.step(Raise, e.platform.StepUp(limit), st)
		}
		return e.hold(st)
	case diff > e.cfg.BalanceMargin:
		// Keyboard falling behind: ease off.
		if limit > e.platform.MinLimit() {
			return e.step(Lower, e.platform.StepDown(limit), st)
		}
		return e.hold(st)
	case dir == DirectionCharging && diff >= 0:
		// The keyboard is trickling into a phone that isn't behind;
		// no deficit justifies the drain.
		if limit > e.platform.MinLimit() {
			return e.step(Lower, e.platform.StepDown(limit), st)
		}
		return e.hold(st)
	}

	// Balanced. Under light load a raised limit serves nothing, so
	// drift back down.
	if e.lightLoad(phone) && limit > e.platform.MinLimit() {
		return e.step(Lower, e.platform.StepDown(limit), st)
	}

	return e.hold(st)
}

func (e *Engine) lightLoad(phone power.Sample) bool {
	if !phone.HasCurrent() {
		return false
	}

	draw := phone.Current
	if draw < 0 {
		draw = -draw
	}

	return draw < e.cfg.LightLoad
}

// hold keeps the current limit.
func (e *Engine) hold(st State) (Action, int, State) {
	st.LastAction = Pass

	return Pass, st.LastLimit, st
}

// step performs a rate-limited single-step change. Inside the cooldown
// window it degrades to Pass.
func (e *Engine) step(action Action, target int, st State) (Action, int, State) {
	if st.Cycle-st.LastStepCycle < e.cfg.StepCooldown {
		return e.hold(st)
	}

	return e.force(action, target, st)
}

// force performs a single-step change regardless of the cooldown, and
// restarts the cooldown window.
func (e *Engine) force(action Action, target int, st State) (Action, int, State) {
	st.LastAction = action
	if target != st.LastLimit {
		st.LastStepCycle = st.Cycle
	}
	st.LastLimit = target

	return action, target, st
}

// settle walks the limit back toward the platform default, one step per
// cycle, then holds there.
func (e *Engine) settle(limit int, st State) (Action, int, State) {
	def := e.platform.DefaultLimit()
	if limit == def {
		return e.hold(st)
	}

	target := e.platform.StepDown(limit)
	if limit < def {
		target = e.platform.StepUp(limit)
	}

	return e.force(SetDefault, target, st)
}

package power

import (
	"os"
	"path/filepath"

	"codeberg.org/mutker/battctl/internal/errors"
)

const sysfsRoot = "/sys/class/power_supply"

// Platform describes one hardware model: the discrete input current limit
// steps its charger IC accepts, the keyboard controller's total current
// budget, and the telemetry quirks the decision engine has to work around.
type Platform struct {
	Name string

	// LimitSteps are the values the charger accepts for the phone's input
	// current limit, in mA, ascending. Requests are quantized to these.
	LimitSteps []int

	// KeyboardBudget is the total current in mA the keyboard's power-bank
	// controller can deliver, shared between charging its own cell and
	// feeding the phone. Pushing past it causes overshoot and brownout.
	KeyboardBudget int

	// UnreliableCurrentSign is set on hardware whose fuel gauge reports
	// only the magnitude of battery current, never the direction.
	UnreliableCurrentSign bool

	// OptimisticChargeStatus is set on hardware whose driver reports
	// Charging whenever external power is present, even while the battery
	// is net-discharging.
	OptimisticChargeStatus bool
}

// PinePhone returns the platform descriptor for the original PinePhone
// (axp20x PMIC). Its kernel driver carries both telemetry defects.
func PinePhone() Platform {
	return Platform{
		Name:                   "pinephone",
		LimitSteps:             []int{500, 900, 1500, 2000},
		KeyboardBudget:         2300,
		UnreliableCurrentSign:  true,
		OptimisticChargeStatus: true,
	}
}

// PinePhonePro returns the platform descriptor for the PinePhone Pro
// (rk818 PMIC), whose telemetry is trustworthy.
func PinePhonePro() Platform {
	return Platform{
		Name:           "pinephone-pro",
		LimitSteps:     []int{450, 850, 1000, 1250, 1500, 2000},
		KeyboardBudget: 2300,
	}
}

// Detect identifies the platform from which power supplies the kernel
// exposes.
func Detect() (Platform, error) {
	errFactory := errors.New()

	if _, err := os.Stat(filepath.Join(sysfsRoot, "rk818-usb")); err == nil {
		return PinePhonePro(), nil
	}
	if _, err := os.Stat(filepath.Join(sysfsRoot, "axp20x-usb")); err == nil {
		return PinePhone(), nil
	}

	return Platform{}, errFactory.New(ErrUnknownPlatform)
}

// ByName returns the platform with the given name, or detects it when the
// name is "auto".
func ByName(name string) (Platform, error) {
	errFactory := errors.New()

	switch name {
	case "auto", "":
		return Detect()
	case "pinephone":
		return PinePhone(), nil
	case "pinephone-pro":
		return PinePhonePro(), nil
	default:
		return Platform{}, errFactory.WithData(ErrInvalidPlatform, name)
	}
}

// MinLimit returns the lowest supported limit step in mA.
func (p Platform) MinLimit() int {
	return p.LimitSteps[0]
}

// MaxLimit returns the highest supported limit step in mA.
func (p Platform) MaxLimit() int {
	return p.LimitSteps[len(p.LimitSteps)-1]
}

// DefaultLimit is the limit known to be safe in the overwhelming majority
// of cases: the minimum supported step.
func (p Platform) DefaultLimit() int {
	return p.MinLimit()
}

// Quantize coerces a requested limit to the nearest supported step.
func (p Platform) Quantize(limit int) int {
	nearest := p.LimitSteps[0]
	for _, step := range p.LimitSteps {
		if abs(limit-step) < abs(limit-nearest) {
			nearest = step
		}
	}

	return nearest
}

// StepUp returns the supported step one above the given limit, or the
// maximum step if already there.
func (p Platform) StepUp(limit int) int {
	cur := p.Quantize(limit)
	for i, step := range p.LimitSteps {
		if step == cur {
			if i+1 < len(p.LimitSteps) {
				return p.LimitSteps[i+1]
			}
			return step
		}
	}

	return cur
}

// StepDown returns the supported step one below the given limit, or the
// minimum step if already there.
func (p Platform) StepDown(limit int) int {
	cur := p.Quantize(limit)
	for i, step := range p.LimitSteps {
		if step == cur {
			if i > 0 {
				return p.LimitSteps[i-1]
			}
			return step
		}
	}

	return cur
}

func abs(x int) int {
	if x < 0 {
		return -x
	}

	return x
}

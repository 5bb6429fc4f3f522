package power

import (
	"context"
	"math"
)

// SourceID identifies which physical battery a sample or limit belongs to.
type SourceID int

const (
	Phone SourceID = iota
	Keyboard
)

func (id SourceID) String() string {
	switch id {
	case Phone:
		return "phone"
	case Keyboard:
		return "keyboard"
	default:
		return "unknown"
	}
}

// ChargeStatus is the charge direction as reported by the kernel. On some
// hardware revisions the phone driver reports Charging whenever external
// power is present, so the reported value is not authoritative on its own
// (see Platform.OptimisticChargeStatus).
type ChargeStatus int

const (
	StatusUnknown ChargeStatus = iota
	Charging
	Discharging
	NotCharging
	Full
)

func (s ChargeStatus) String() string {
	switch s {
	case Charging:
		return "Charging"
	case Discharging:
		return "Discharging"
	case NotCharging:
		return "Not charging"
	case Full:
		return "Full"
	default:
		return "Unknown"
	}
}

// ParseStatus maps a kernel power_supply status string to a ChargeStatus.
// Unrecognized strings map to StatusUnknown rather than failing the sample.
func ParseStatus(s string) ChargeStatus {
	switch s {
	case "Charging":
		return Charging
	case "Discharging":
		return Discharging
	case "Not charging":
		return NotCharging
	case "Full":
		return Full
	default:
		return StatusUnknown
	}
}

// Sentinel values for fields a source could not report.
const (
	CapacityUnknown = -1
	CurrentUnknown  = math.MinInt32
)

// Plausibility bounds used by Sanitize. Anything outside is treated as a
// sensor fault, not a real reading.
const (
	minPlausibleVoltage = 2500 // mV
	maxPlausibleVoltage = 5500 // mV
	maxPlausibleCurrent = 6000 // mA
)

// Sample is one battery's telemetry snapshot for one control cycle.
// Samples are read-only once produced.
type Sample struct {
	Voltage  int          // battery terminal voltage in mV, 0 when unknown
	Current  int          // net current in mA, negative while discharging, CurrentUnknown when unreadable
	Status   ChargeStatus // as reported by the driver
	Capacity int          // state of charge in percent, CapacityUnknown without a fuel gauge
	Limit    int          // input current limit in effect for this source's path, in mA, 0 when unknown
}

func (s Sample) HasVoltage() bool  { return s.Voltage > 0 }
func (s Sample) HasCurrent() bool  { return s.Current != CurrentUnknown }
func (s Sample) HasCapacity() bool { return s.Capacity >= 0 }
func (s Sample) HasLimit() bool    { return s.Limit > 0 }

// Empty reports whether every field of the sample is unknown.
func (s Sample) Empty() bool {
	return !s.HasVoltage() && !s.HasCurrent() && !s.HasCapacity() && !s.HasLimit() &&
		s.Status == StatusUnknown
}

// Sanitize degrades implausible fields to their unknown values. A bad field
// never invalidates the rest of the sample.
func (s Sample) Sanitize() Sample {
	if s.Voltage < minPlausibleVoltage || s.Voltage > maxPlausibleVoltage {
		s.Voltage = 0
	}
	if s.Current != CurrentUnknown && (s.Current < -maxPlausibleCurrent || s.Current > maxPlausibleCurrent) {
		s.Current = CurrentUnknown
	}
	if s.Capacity < 0 || s.Capacity > 100 {
		s.Capacity = CapacityUnknown
	}
	if s.Limit < 0 {
		s.Limit = 0
	}

	return s
}

// Source produces one Sample per control cycle for one battery.
// A stalled read is a cycle-level failure; retry policy belongs to the
// implementation, never to the caller.
type Source interface {
	Read(ctx context.Context) (Sample, error)
}

// Actuator applies a requested input current limit to the phone's charging
// path. The request is coerced to the nearest hardware-supported step and
// the value actually in effect is returned.
type Actuator interface {
	Apply(ctx context.Context, limit int) (int, error)

	// EnsureBoostOnline keeps the keyboard's boost converter enabled.
	// Communication with the converter is lost if it stays offline.
	EnsureBoostOnline(ctx context.Context) error
}

package power

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/battctl/internal/errors"
	"codeberg.org/mutker/battctl/internal/logger"
)

// Kernel power_supply attributes report µV/µA; the rest of the daemon
// works in mV/mA.
const microPerMilli = 1000

type attrPaths struct {
	status   string
	capacity string
	voltage  string
	current  string
	limit    string
}

func phoneAttrs(p Platform) attrPaths {
	if p.Name == "pinephone-pro" {
		return attrPaths{
			status:   filepath.Join(sysfsRoot, "battery", "status"),
			capacity: filepath.Join(sysfsRoot, "battery", "capacity"),
			voltage:  filepath.Join(sysfsRoot, "battery", "voltage_now"),
			current:  filepath.Join(sysfsRoot, "battery", "current_now"),
			limit:    filepath.Join(sysfsRoot, "rk818-usb", "input_current_limit"),
		}
	}

	return attrPaths{
		status:   filepath.Join(sysfsRoot, "axp20x-battery", "status"),
		capacity: filepath.Join(sysfsRoot, "axp20x-battery", "capacity"),
		voltage:  filepath.Join(sysfsRoot, "axp20x-battery", "voltage_now"),
		current:  filepath.Join(sysfsRoot, "axp20x-battery", "current_now"),
		limit:    filepath.Join(sysfsRoot, "axp20x-usb", "input_current_limit"),
	}
}

// The keyboard case exposes the same ip5xxx controller on both models.
func keyboardAttrs() attrPaths {
	return attrPaths{
		status:   filepath.Join(sysfsRoot, "ip5xxx-charger", "status"),
		capacity: filepath.Join(sysfsRoot, "ip5xxx-charger", "capacity"),
		voltage:  filepath.Join(sysfsRoot, "ip5xxx-charger", "voltage_now"),
		current:  filepath.Join(sysfsRoot, "ip5xxx-charger", "current_now"),
		limit:    filepath.Join(sysfsRoot, "ip5xxx-charger", "constant_charge_current"),
	}
}

// SysfsSource reads one battery's telemetry from the kernel power_supply
// class.
type SysfsSource struct {
	id    SourceID
	paths attrPaths
}

func NewSysfsSource(p Platform, id SourceID) *SysfsSource {
	paths := phoneAttrs(p)
	if id == Keyboard {
		paths = keyboardAttrs()
	}

	return &SysfsSource{id: id, paths: paths}
}

// Read produces one sample. Individual unreadable attributes degrade to
// their unknown values; only a source with no readable attribute at all
// fails the read.
func (s *SysfsSource) Read(ctx context.Context) (Sample, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return Sample{Current: CurrentUnknown, Capacity: CapacityUnknown},
			errFactory.Wrap(ErrSourceRead, err)
	}

	sample := Sample{Current: CurrentUnknown, Capacity: CapacityUnknown}
	readable := 0

	if v, err := readAttr(s.paths.status); err == nil {
		sample.Status = ParseStatus(v)
		readable++
	}
	if v, err := readIntAttr(s.paths.capacity); err == nil {
		sample.Capacity = v
		readable++
	}
	if v, err := readIntAttr(s.paths.voltage); err == nil {
		sample.Voltage = v / microPerMilli
		readable++
	}
	if v, err := readIntAttr(s.paths.current); err == nil {
		sample.Current = v / microPerMilli
		readable++
	}
	if v, err := readIntAttr(s.paths.limit); err == nil {
		sample.Limit = v / microPerMilli
		readable++
	}

	if readable == 0 {
		return sample, errFactory.WithData(ErrSourceUnavailable, s.id.String())
	}

	return sample.Sanitize(), nil
}

// SysfsActuator applies input current limits to the phone's charging path
// and manages the keyboard side of the shared current budget.
type SysfsActuator struct {
	platform    Platform
	limitPath   string
	kbLimitPath string
	boostPath   string
}

func NewSysfsActuator(p Platform) *SysfsActuator {
	return &SysfsActuator{
		platform:    p,
		limitPath:   phoneAttrs(p).limit,
		kbLimitPath: keyboardAttrs().limit,
		boostPath:   filepath.Join(sysfsRoot, "ip5xxx-boost", "online"),
	}
}

// Apply quantizes the requested limit to the nearest supported step,
// writes it, and returns the limit actually in effect as read back from
// the hardware. The keyboard's own charge current is rebalanced so the
// combined draw stays inside the controller's budget.
func (a *SysfsActuator) Apply(ctx context.Context, limit int) (int, error) {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return 0, errFactory.Wrap(ErrApplyLimit, err)
	}

	quantized := a.platform.Quantize(limit)
	if err := writeIntAttr(a.limitPath, quantized*microPerMilli); err != nil {
		return 0, errFactory.Wrap(ErrApplyLimit, err)
	}

	actual := quantized
	if v, err := readIntAttr(a.limitPath); err == nil {
		actual = v / microPerMilli
	} else {
		logger.Debug().Err(errFactory.Wrap(ErrReadbackFail, err)).Msg("Limit readback failed, assuming quantized request")
	}

	if kbLimit := a.platform.KeyboardBudget - actual; kbLimit > 0 {
		if err := writeIntAttr(a.kbLimitPath, kbLimit*microPerMilli); err != nil {
			logger.Debug().Err(err).Msg("Failed to rebalance keyboard charge current")
		}
	}

	logger.Debug().Int("requested_ma", limit).Int("applied_ma", actual).Msg("Input current limit applied")

	return actual, nil
}

// EnsureBoostOnline re-enables the keyboard's boost converter if it went
// offline. The converter stops responding if left offline for long.
func (a *SysfsActuator) EnsureBoostOnline(ctx context.Context) error {
	errFactory := errors.New()

	if err := ctx.Err(); err != nil {
		return errFactory.Wrap(ErrBoostControl, err)
	}

	v, err := readAttr(a.boostPath)
	if err != nil {
		return errFactory.Wrap(ErrBoostControl, err)
	}
	if v == "1" {
		return nil
	}

	logger.Info().Msg("Re-enabling keyboard boost converter")
	if err := os.WriteFile(a.boostPath, []byte("1\n"), 0o644); err != nil {
		return errFactory.Wrap(ErrBoostControl, err)
	}

	return nil
}

func readAttr(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func readIntAttr(path string) (int, error) {
	s, err := readAttr(path)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(s)
}

func writeIntAttr(path string, value int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(value)+"\n"), 0o644)
}

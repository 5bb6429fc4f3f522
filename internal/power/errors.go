package power

import "codeberg.org/mutker/battctl/internal/errors"

const (
	// Platform errors
	ErrUnknownPlatform = errors.ErrorCode("power_unknown_platform")
	ErrInvalidPlatform = errors.ErrorCode("power_invalid_platform")

	// Telemetry errors
	ErrSourceRead        = errors.ErrorCode("power_source_read_failed")
	ErrSourceUnavailable = errors.ErrorCode("power_source_unavailable")

	// Actuation errors
	ErrApplyLimit   = errors.ErrorCode("power_apply_limit_failed")
	ErrReadbackFail = errors.ErrorCode("power_limit_readback_failed")
	ErrBoostControl = errors.ErrorCode("power_boost_control_failed")
)

package engine

import "codeberg.org/mutker/battctl/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("engine_invalid_config")
)

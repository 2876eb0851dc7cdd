package smm

import (
	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/errors"
)

const (
	// Protocol Errors
	ErrNoResponse   = errors.ErrorCode("smm_no_response")
	ErrInvalidValue = errors.ErrorCode("smm_invalid_value")

	// Control Errors
	ErrSetFanLevel  = errors.ErrorCode("smm_set_fan_level_failed")
	ErrAutoFanState = errors.ErrorCode("smm_auto_fan_state_failed")

	// Setup Errors
	ErrInvalidConfig     = errors.ErrInvalidConfig
	ErrDeviceUnavailable = driver.ErrDeviceUnavailable
)

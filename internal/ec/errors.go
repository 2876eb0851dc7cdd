package ec

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	ErrBusTimeout    = errors.ErrorCode("ec_bus_timeout")
	ErrInvalidSource = errors.ErrorCode("ec_invalid_source")
	ErrPortIO        = errors.ErrorCode("ec_port_io_failed")

	ErrUnavailable         = errors.ErrUnavailable
	ErrUnsupportedPlatform = errors.ErrUnsupportedPlatform
	ErrPermissionDenied    = errors.ErrPermissionDenied
)

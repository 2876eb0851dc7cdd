package hardware

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	ErrCloseFailed  = errors.ErrorCode("hardware_close_failed")
	ErrOutOfRange   = errors.ErrorCode("hardware_value_out_of_range")
	ErrControlWrite = errors.ErrorCode("hardware_control_write_failed")
)

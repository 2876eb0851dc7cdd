package cpu

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	ErrCaptureFailed     = errors.ErrorCode("cpu_capture_failed")
	ErrMalformedCounters = errors.ErrorCode("cpu_malformed_counters")
	ErrThreadOutOfRange  = errors.ErrorCode("cpu_thread_out_of_range")
	ErrTopology          = errors.ErrorCode("cpu_topology_failed")

	ErrUnavailable          = errors.ErrUnavailable
	ErrTransientReadFailure = errors.ErrTransientReadFailure
)

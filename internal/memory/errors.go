package memory

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	ErrStatFailed   = errors.ErrorCode("memory_stat_failed")
	ErrSMBIOSFailed = errors.ErrorCode("memory_smbios_failed")
)

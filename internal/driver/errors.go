package driver

import "codeberg.org/mutker/hwctl/internal/errors"

const (
	// Lifecycle Errors
	ErrCreationFailed = errors.ErrorCode("driver_creation_failed")
	ErrNotInstalled   = errors.ErrorCode("driver_not_installed")
	ErrStartFailed    = errors.ErrorCode("driver_start_failed")
	ErrStopFailed     = errors.ErrorCode("driver_stop_failed")
	ErrDeleteFailed   = errors.ErrorCode("driver_delete_failed")
	ErrCloseFailed    = errors.ErrorCode("driver_close_failed")

	// Device Errors
	ErrDeviceUnavailable = errors.ErrorCode("driver_device_unavailable")
	ErrExchangeRejected  = errors.ErrorCode("driver_exchange_rejected")

	// Shared taxonomy
	ErrHandleAcquisition = errors.ErrHandleAcquisition
	ErrPermissionDenied  = errors.ErrPermissionDenied
	ErrProtocolMismatch  = errors.ErrProtocolMismatch
	ErrUnavailable       = errors.ErrUnavailable
)

// withPermission marks err as permission_denied when the OS refused access,
// keeping the original code reachable through the wrap chain.
func withPermission(err error, cause error) error {
	if isErrno(cause, ErrorAccessDenied) {
		return errors.New().Wrap(ErrPermissionDenied, err)
	}

	return err
}

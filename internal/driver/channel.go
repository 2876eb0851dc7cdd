package driver

import (
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// Channel owns one kernel driver service and the device it exposes.
//
// The vendor protocol is not reentrant: callers must not run Exchange
// concurrently on the same Channel. Channel does no locking of its own.
type Channel struct {
	api     API
	ioctl   uint32
	name    string
	manager Handle
	service Handle
	device  Handle
}

// NewChannel returns a Channel that sends ioctl on every Exchange.
func NewChannel(api API, ioctl uint32) *Channel {
	return &Channel{
		api:   api,
		ioctl: ioctl,
	}
}

// ServiceName returns the name of the bound service, or "" if none.
func (c *Channel) ServiceName() string {
	return c.name
}

// DeviceOpen reports whether a device handle is held.
func (c *Channel) DeviceOpen() bool {
	return c.device != InvalidHandle
}

// EnsureInstalled binds the channel to cfg.Name, creating the service when it
// does not exist yet. It reports whether the service was created.
func (c *Channel) EnsureInstalled(cfg ServiceConfig) (bool, error) {
	if c.service != InvalidHandle {
		return false, nil
	}

	manager, err := c.openManager(SCManagerAllAccess)
	if err != nil {
		return false, err
	}

	service, err := c.api.OpenService(manager, cfg.Name, cfg.access())
	if err == nil {
		c.bind(cfg.Name, manager, service)
		return false, nil
	}

	if !isErrno(err, ErrorServiceDoesNotExist) {
		failure := withPermission(errors.New().Wrap(ErrHandleAcquisition, err), err)
		return false, c.abandon(manager, failure)
	}

	logger.Debug().
		Str("service", cfg.Name).
		Str("binary", cfg.BinaryPath).
		Msg("Creating driver service")

	service, err = c.api.CreateService(manager, cfg)
	if err != nil {
		failure := withPermission(errors.New().Wrap(ErrCreationFailed, err), err)
		return false, c.abandon(manager, failure)
	}

	c.bind(cfg.Name, manager, service)
	logger.Info().Str("service", cfg.Name).Msg("Driver service installed")

	return true, nil
}

// Open binds the channel to an existing service without creating it.
func (c *Channel) Open(name string) error {
	if c.service != InvalidHandle {
		return errors.New().WithData(errors.ErrInvalidOperation, fmt.Sprintf("already bound to %q", c.name))
	}

	manager, err := c.openManager(SCManagerConnect)
	if err != nil {
		return err
	}

	service, err := c.api.OpenService(manager, name, ServiceAllAccess)
	if err != nil {
		code := ErrHandleAcquisition
		if isErrno(err, ErrorServiceDoesNotExist) {
			code = ErrNotInstalled
		}

		return c.abandon(manager, withPermission(errors.New().Wrap(code, err), err))
	}

	c.bind(name, manager, service)

	return nil
}

// Start starts the bound service. A service that is already running counts
// as started.
func (c *Channel) Start() error {
	errFactory := errors.New()

	if c.service == InvalidHandle {
		return errFactory.WithMessage(ErrHandleAcquisition, "driver service is not open")
	}

	err := c.api.StartService(c.service)
	if err == nil {
		logger.Debug().Str("service", c.name).Msg("Driver service started")
		return nil
	}
	if isErrno(err, ErrorServiceAlreadyRunning) {
		logger.Debug().Str("service", c.name).Msg("Driver service already running")
		return nil
	}

	return withPermission(errFactory.Wrap(ErrStartFailed, err), err)
}

// OpenDevice opens the device node created by the running driver.
func (c *Channel) OpenDevice(path string, access, share uint32) error {
	errFactory := errors.New()

	if c.device != InvalidHandle {
		return errFactory.WithData(errors.ErrInvalidOperation, "device already open")
	}

	device, err := c.api.OpenDevice(path, access, share)
	if err != nil {
		switch {
		case isErrno(err, ErrorFileNotFound, ErrorPathNotFound):
			return errFactory.Wrap(ErrDeviceUnavailable, err)
		case isErrno(err, ErrorAccessDenied):
			return errFactory.Wrap(ErrPermissionDenied, errFactory.Wrap(ErrHandleAcquisition, err))
		default:
			return errFactory.Wrap(ErrHandleAcquisition, err)
		}
	}

	c.device = device

	return nil
}

// Exchange sends req to the driver and returns its response. The response is
// only returned when the driver wrote exactly PackageSize bytes.
func (c *Channel) Exchange(req SmbiosPackage) (SmbiosPackage, error) {
	errFactory := errors.New()

	if c.device == InvalidHandle {
		return SmbiosPackage{}, errFactory.WithMessage(ErrDeviceUnavailable, "device is not open")
	}

	in, err := req.MarshalBinary()
	if err != nil {
		return SmbiosPackage{}, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}
	out := make([]byte, PackageSize)

	// Success is judged by the call's own result only.
	returned, err := c.api.DeviceIoControl(c.device, c.ioctl, in, out)
	if err != nil {
		return SmbiosPackage{}, errFactory.Wrap(ErrExchangeRejected, err).
			WithData(fmt.Sprintf("opcode 0x%04x", req.Opcode))
	}

	if returned != PackageSize {
		return SmbiosPackage{}, errFactory.WithData(ErrProtocolMismatch,
			fmt.Sprintf("driver returned %d bytes, want %d", returned, PackageSize))
	}

	var resp SmbiosPackage
	if err := resp.UnmarshalBinary(out); err != nil {
		return SmbiosPackage{}, err
	}

	return resp, nil
}

// Stop sends the stop control code. A service that is not running counts as
// stopped.
func (c *Channel) Stop() error {
	errFactory := errors.New()

	if c.service == InvalidHandle {
		return errFactory.WithMessage(ErrHandleAcquisition, "driver service is not open")
	}

	if _, err := c.api.ControlService(c.service, ServiceControlStop); err != nil {
		if isErrno(err, ErrorServiceNotActive) {
			return nil
		}

		return withPermission(errFactory.Wrap(ErrStopFailed, err), err)
	}

	logger.Debug().Str("service", c.name).Msg("Driver service stopped")

	return nil
}

// Uninstall marks the bound service for deletion.
func (c *Channel) Uninstall() error {
	errFactory := errors.New()

	if c.service == InvalidHandle {
		return errFactory.WithMessage(ErrHandleAcquisition, "driver service is not open")
	}

	if err := c.api.DeleteService(c.service); err != nil {
		if isErrno(err, ErrorServiceMarkedForDelete) {
			return nil
		}

		return withPermission(errFactory.Wrap(ErrDeleteFailed, err), err)
	}

	logger.Info().Str("service", c.name).Msg("Driver service marked for deletion")

	return nil
}

// Close releases the device, service and manager handles. Each open handle
// is closed exactly once, even when closing another one fails.
func (c *Channel) Close() error {
	return errors.Join(
		c.closeDevice(),
		c.release(&c.service, "service"),
		c.release(&c.manager, "manager"),
	)
}

// Teardown closes the device, stops and deletes the service, then releases
// every handle. All steps run regardless of earlier failures.
func (c *Channel) Teardown() error {
	errs := []error{c.closeDevice()}

	if c.service != InvalidHandle {
		errs = append(errs, c.Stop(), c.Uninstall())
	}

	errs = append(errs, c.Close())

	return errors.Join(errs...)
}

func (c *Channel) openManager(access uint32) (Handle, error) {
	manager, err := c.api.OpenManager("", "", access)
	if err != nil {
		return InvalidHandle, withPermission(errors.New().Wrap(ErrHandleAcquisition, err), err)
	}

	return manager, nil
}

func (c *Channel) bind(name string, manager, service Handle) {
	c.name = name
	c.manager = manager
	c.service = service
}

// abandon closes a manager handle opened by a failed operation and returns
// failure, joined with the close error if there was one.
func (c *Channel) abandon(manager Handle, failure error) error {
	if err := c.api.CloseServiceHandle(manager); err != nil {
		return errors.Join(failure, errors.New().Wrap(ErrCloseFailed, err))
	}

	return failure
}

func (c *Channel) closeDevice() error {
	if c.device == InvalidHandle {
		return nil
	}

	device := c.device
	c.device = InvalidHandle
	if err := c.api.CloseHandle(device); err != nil {
		return errors.New().Wrap(ErrCloseFailed, err).WithData("device")
	}

	return nil
}

func (c *Channel) release(handle *Handle, what string) error {
	if *handle == InvalidHandle {
		return nil
	}

	h := *handle
	*handle = InvalidHandle
	if what == "service" {
		c.name = ""
	}
	if err := c.api.CloseServiceHandle(h); err != nil {
		return errors.New().Wrap(ErrCloseFailed, err).WithData(what)
	}

	return nil
}

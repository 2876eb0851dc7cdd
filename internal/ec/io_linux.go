//go:build linux

package ec

import (
	"codeberg.org/mutker/hwctl/internal/errors"
	"golang.org/x/sys/unix"
)

// DebugfsPath is the register file exposed by the ec_sys module.
const DebugfsPath = "/sys/kernel/debug/ec/ec0/io"

// debugfsIO reads and writes registers at their offset in the ec_sys file.
type debugfsIO struct {
	fd       int
	writable bool
}

// DefaultFactory returns the EC backend of the running platform.
func DefaultFactory() Factory {
	return func() (IO, error) {
		return OpenDebugfs(DebugfsPath)
	}
}

// OpenDebugfs opens path read-write, falling back to read-only when the
// module was loaded without write support.
func OpenDebugfs(path string) (IO, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err == nil {
		return &debugfsIO{fd: fd, writable: true}, nil
	}

	fd, err = unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		code := ErrUnavailable
		if err == unix.EACCES || err == unix.EPERM {
			code = ErrPermissionDenied
		}

		return nil, errors.New().Wrap(code, err).WithData(path)
	}

	return &debugfsIO{fd: fd}, nil
}

func (d *debugfsIO) ReadRegister(register uint8) (byte, error) {
	var b [1]byte
	n, err := unix.Pread(d.fd, b[:], int64(register))
	if err != nil {
		return 0, errors.New().Wrap(ErrPortIO, err)
	}
	if n != 1 {
		return 0, errors.New().WithData(ErrPortIO, "short read")
	}

	return b[0], nil
}

func (d *debugfsIO) WriteRegister(register uint8, value byte) error {
	if !d.writable {
		return errors.New().WithMessage(ErrPermissionDenied, "ec_sys opened read-only")
	}

	if _, err := unix.Pwrite(d.fd, []byte{value}, int64(register)); err != nil {
		return errors.New().Wrap(ErrPortIO, err)
	}

	return nil
}

func (d *debugfsIO) Close() error {
	return unix.Close(d.fd)
}

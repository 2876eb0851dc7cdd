//go:build windows

package ec

import (
	"codeberg.org/mutker/hwctl/internal/errors"
	"golang.org/x/sys/windows"
)

// inpout is port IO through the inpoutx64 user-mode driver bridge.
type inpout struct {
	read  *windows.LazyProc
	write *windows.LazyProc
}

// DefaultFactory returns the EC backend of the running platform.
func DefaultFactory() Factory {
	return openInpOut
}

func openInpOut() (IO, error) {
	errFactory := errors.New()

	dll := windows.NewLazyDLL("inpoutx64.dll")
	if err := dll.Load(); err != nil {
		return nil, errFactory.Wrap(ErrUnavailable, err).WithData("inpoutx64.dll")
	}

	isOpen := dll.NewProc("IsInpOutDriverOpen")
	read := dll.NewProc("DlPortReadPortUchar")
	write := dll.NewProc("DlPortWritePortUchar")
	for _, proc := range []*windows.LazyProc{isOpen, read, write} {
		if err := proc.Find(); err != nil {
			return nil, errFactory.Wrap(ErrUnavailable, err)
		}
	}

	if r, _, _ := isOpen.Call(); r == 0 {
		return nil, errFactory.WithMessage(ErrPermissionDenied, "inpout driver is not open")
	}

	return NewPortIO(&inpout{read: read, write: write}), nil
}

func (p *inpout) In(port uint16) (byte, error) {
	r, _, _ := p.read.Call(uintptr(port))
	return byte(r), nil
}

func (p *inpout) Out(port uint16, value byte) error {
	p.write.Call(uintptr(port), uintptr(value))
	return nil
}

func (p *inpout) Close() error {
	return nil
}

package ec

import (
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
)

// ACPI embedded controller ports and status bits.
const (
	commandPort uint16 = 0x66
	dataPort    uint16 = 0x62

	statusOutputFull byte = 0x01
	statusInputFull  byte = 0x02

	commandRead  byte = 0x80
	commandWrite byte = 0x81

	// maxSpins bounds each status poll. The wait is a busy loop on the
	// status port; no timers are involved.
	maxSpins = 5000

	readAttempts = 3
)

// Ports is raw x86 port IO.
type Ports interface {
	In(port uint16) (byte, error)
	Out(port uint16, value byte) error
	Close() error
}

// portIO speaks the ACPI EC command protocol over Ports.
type portIO struct {
	ports Ports
}

// NewPortIO returns an IO that drives the EC through its command and data
// ports.
func NewPortIO(ports Ports) IO {
	return &portIO{ports: ports}
}

func (p *portIO) ReadRegister(register uint8) (byte, error) {
	var err error
	for range readAttempts {
		var v byte
		if v, err = p.read(register); err == nil {
			return v, nil
		}
	}

	return 0, err
}

func (p *portIO) read(register uint8) (byte, error) {
	if err := p.send(commandPort, commandRead); err != nil {
		return 0, err
	}
	if err := p.send(dataPort, register); err != nil {
		return 0, err
	}
	if err := p.wait(statusOutputFull, true); err != nil {
		return 0, err
	}

	v, err := p.ports.In(dataPort)
	if err != nil {
		return 0, errors.New().Wrap(ErrPortIO, err)
	}

	return v, nil
}

func (p *portIO) WriteRegister(register uint8, value byte) error {
	if err := p.send(commandPort, commandWrite); err != nil {
		return err
	}
	if err := p.send(dataPort, register); err != nil {
		return err
	}

	return p.send(dataPort, value)
}

func (p *portIO) Close() error {
	return p.ports.Close()
}

// send waits for the input buffer to drain and writes value to port.
func (p *portIO) send(port uint16, value byte) error {
	if err := p.wait(statusInputFull, false); err != nil {
		return err
	}
	if err := p.ports.Out(port, value); err != nil {
		return errors.New().Wrap(ErrPortIO, err)
	}

	return nil
}

// wait spins until the status bit reaches the wanted state.
func (p *portIO) wait(bit byte, set bool) error {
	for range maxSpins {
		status, err := p.ports.In(commandPort)
		if err != nil {
			return errors.New().Wrap(ErrPortIO, err)
		}
		if (status&bit != 0) == set {
			return nil
		}
	}

	return errors.New().WithData(ErrBusTimeout, fmt.Sprintf("status bit 0x%02x", bit))
}

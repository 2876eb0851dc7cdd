package smm

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/errors"
)

// SMM opcodes understood by the vendor driver.
const (
	OpGetFanLevel  uint32 = 0x00a3
	OpSetFanLevel  uint32 = 0x01a3
	OpGetFanSpeed  uint32 = 0x02a3
	OpGetTemp      uint32 = 0x10a3
	OpDisableAuto  uint32 = 0x30a3
	OpEnableAuto   uint32 = 0x31a3
	noResponseWord uint32 = 0xFFFFFFFF

	maxTemperature = 127
)

// Exchanger moves one SmbiosPackage to the driver and back.
type Exchanger interface {
	Exchange(req driver.SmbiosPackage) (driver.SmbiosPackage, error)
}

// Client issues SMM requests one at a time. The driver protocol is not
// reentrant, so every request holds the client lock.
type Client struct {
	ex Exchanger
	mu sync.Mutex
}

func NewClient(ex Exchanger) *Client {
	return &Client{ex: ex}
}

func (c *Client) call(opcode, index, input uint32) (uint32, error) {
	req := driver.SmbiosPackage{Opcode: opcode, Index: index}
	req.SetInputWord(0, input)

	c.mu.Lock()
	resp, err := c.ex.Exchange(req)
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}

	out := resp.OutputWord(0)
	if out == noResponseWord {
		return 0, errors.New().WithData(ErrNoResponse, fmt.Sprintf("opcode 0x%04x index %d", opcode, index))
	}

	return out, nil
}

// FanLevel returns the current level of fan.
func (c *Client) FanLevel(fan int) (int, error) {
	v, err := c.call(OpGetFanLevel, uint32(fan), 0)
	return int(v), err
}

// SetFanLevel drives fan at level.
func (c *Client) SetFanLevel(fan, level int) error {
	if _, err := c.call(OpSetFanLevel, uint32(fan), uint32(level)); err != nil {
		return errors.New().Wrap(ErrSetFanLevel, err)
	}
	return nil
}

// FanSpeed returns the fan's speed in RPM.
func (c *Client) FanSpeed(fan int) (int, error) {
	v, err := c.call(OpGetFanSpeed, uint32(fan), 0)
	return int(v), err
}

// Temperature returns sensor's reading in degrees Celsius.
func (c *Client) Temperature(sensor int) (int, error) {
	v, err := c.call(OpGetTemp, uint32(sensor), 0)
	if err != nil {
		return 0, err
	}
	if v > maxTemperature {
		return 0, errors.New().WithData(ErrInvalidValue, fmt.Sprintf("temperature %d", v))
	}

	return int(v), nil
}

// SetAutomatic hands fan control to the BIOS, or takes it back.
func (c *Client) SetAutomatic(enabled bool) error {
	op := OpDisableAuto
	if enabled {
		op = OpEnableAuto
	}
	if _, err := c.call(op, 0, 0); err != nil {
		return errors.New().Wrap(ErrAutoFanState, err)
	}

	return nil
}

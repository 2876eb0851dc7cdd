// Package ec exposes embedded controller registers as sensors.
package ec

import (
	"strconv"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// Controller is the embedded controller with one sensor per source. The IO
// backend is acquired on first use; if that fails the controller stays
// unavailable and its sensors report no value.
type Controller struct {
	id          hardware.Identifier
	sources     []Source
	readings    []*hardware.Reading
	factory     Factory
	io          IO
	unavailable bool
}

// NewController builds the controller. Sources with an unsupported width or
// a register range past 0xFF are skipped.
func NewController(sources []Source, factory Factory) *Controller {
	id := hardware.NewIdentifier("ec", "0")
	c := &Controller{
		id:      id,
		factory: factory,
	}

	for _, src := range sources {
		if err := src.validate(); err != nil {
			logger.Warn().Err(err).Msg("Skipping embedded controller source")
			continue
		}
		c.sources = append(c.sources, src)
	}

	counts := make(map[hardware.SensorType]int)
	for _, src := range c.sources {
		index := counts[src.Type]
		counts[src.Type]++
		c.readings = append(c.readings, hardware.NewReading(
			id.Append(src.Type.String(), strconv.Itoa(index)), src.Name, index, src.Type))
	}

	return c
}

func (c *Controller) Identifier() hardware.Identifier     { return c.id }
func (c *Controller) Name() string                        { return "Embedded Controller" }
func (c *Controller) HardwareType() hardware.HardwareType { return hardware.TypeEmbeddedController }
func (c *Controller) Controls() []hardware.Control        { return nil }

func (c *Controller) Sensors() []hardware.Sensor {
	sensors := make([]hardware.Sensor, len(c.readings))
	for i, r := range c.readings {
		sensors[i] = r
	}

	return sensors
}

// Available reports whether the backend is usable, acquiring it if needed.
func (c *Controller) Available() bool {
	return c.acquire() == nil
}

func (c *Controller) acquire() error {
	if c.io != nil {
		return nil
	}
	if c.unavailable {
		return errors.New().WithMessage(ErrUnavailable, "embedded controller unavailable")
	}

	io, err := c.factory()
	if err != nil {
		c.unavailable = true
		logger.Warn().Err(err).Msg("Embedded controller unavailable")

		return errors.New().Wrap(ErrUnavailable, err)
	}
	c.io = io

	return nil
}

// Update reads every source. A failed read keeps the sensor's last value.
func (c *Controller) Update() {
	if err := c.acquire(); err != nil {
		for _, r := range c.readings {
			r.Clear()
		}
		return
	}

	for i, src := range c.sources {
		v, err := c.read(src)
		if err != nil {
			logger.Debug().Err(err).Str("source", src.Name).Msg("EC read failed, keeping last value")
			continue
		}

		if !src.inRange(v) {
			c.readings[i].Clear()
			continue
		}
		c.readings[i].Set(v)
	}
}

func (c *Controller) read(src Source) (float64, error) {
	b := make([]byte, src.Size)
	for j := range b {
		v, err := c.io.ReadRegister(src.Register + uint8(j))
		if err != nil {
			return 0, err
		}
		b[j] = v
	}

	return src.decode(b), nil
}

// ReadRegister reads one register directly.
func (c *Controller) ReadRegister(register uint8) (byte, error) {
	if err := c.acquire(); err != nil {
		return 0, err
	}

	return c.io.ReadRegister(register)
}

// WriteRegister writes one register directly.
func (c *Controller) WriteRegister(register uint8, value byte) error {
	if err := c.acquire(); err != nil {
		return err
	}

	return c.io.WriteRegister(register, value)
}

// Close releases the backend. A later access acquires it again.
func (c *Controller) Close() error {
	if c.io == nil {
		return nil
	}

	io := c.io
	c.io = nil

	return io.Close()
}

// Group holds the embedded controller when any sources are configured.
type Group struct {
	*hardware.Collection
}

func NewGroup(sources []Source, factory Factory) *Group {
	if len(sources) == 0 {
		return &Group{Collection: hardware.NewCollection()}
	}

	return &Group{Collection: hardware.NewCollection(NewController(sources, factory))}
}

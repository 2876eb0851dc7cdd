package ec

import (
	"fmt"

	"codeberg.org/mutker/hwctl/internal/config"
	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
)

// Source describes one register (or big-endian register pair) exposed as a
// sensor. Readings outside [Min, Max] are treated as no reading.
type Source struct {
	Name     string
	Register uint8
	Size     int
	Min      float64
	Max      float64
	Type     hardware.SensorType
}

func (s Source) decode(b []byte) float64 {
	if s.Size == 2 {
		return float64(uint16(b[0])<<8 | uint16(b[1]))
	}

	return float64(b[0])
}

func (s Source) inRange(v float64) bool {
	return v >= s.Min && v <= s.Max
}

// validate checks the width and that every register of s fits the EC
// address space.
func (s Source) validate() error {
	return checkRegisters(s.Name, int(s.Register), s.Size)
}

func checkRegisters(name string, register, size int) error {
	errFactory := errors.New()

	if size != 1 && size != 2 {
		return errFactory.WithData(ErrInvalidSource, fmt.Sprintf("%s: size %d", name, size))
	}
	if register < 0 || register+size-1 > 0xFF {
		return errFactory.WithData(ErrInvalidSource, fmt.Sprintf("%s: register 0x%x", name, register))
	}

	return nil
}

// SourcesFromConfig converts configured sources.
func SourcesFromConfig(cfg []config.ECSource) ([]Source, error) {
	errFactory := errors.New()
	sources := make([]Source, 0, len(cfg))

	for _, c := range cfg {
		size := c.Size
		if size == 0 {
			size = 1
		}
		if err := checkRegisters(c.Name, c.Register, size); err != nil {
			return nil, err
		}

		st := hardware.SensorTemperature
		if c.Type != "" {
			var ok bool
			if st, ok = hardware.ParseSensorType(c.Type); !ok {
				return nil, errFactory.WithData(ErrInvalidSource, fmt.Sprintf("%s: type %q", c.Name, c.Type))
			}
		}

		name := c.Name
		if name == "" {
			name = fmt.Sprintf("EC Register 0x%02X", c.Register)
		}

		sources = append(sources, Source{
			Name:     name,
			Register: uint8(c.Register),
			Size:     size,
			Min:      c.Min,
			Max:      c.Max,
			Type:     st,
		})
	}

	return sources, nil
}

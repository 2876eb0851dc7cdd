package config

import (
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
)

const maxECRegister = 0xFF

var (
	startTypes    = []string{"boot", "system", "auto", "demand", "disabled"}
	errorControls = []string{"ignore", "normal", "severe", "critical"}
	sensorTypes   = []string{"temperature", "fan", "load", "control", "voltage", "power"}
)

// Validate checks the loaded configuration and returns the first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.Wrap(errors.ErrInvalidInterval, &ValidationError{
			Field: "interval", Value: c.Interval, Reason: "must be positive",
		})
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.Wrap(errors.ErrInvalidLogLevel, &ValidationError{
			Field: "log_level", Value: c.LogLevel, Reason: "must be debug, info, warning or error",
		})
	}

	if err := c.Driver.validate(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	for i, src := range c.EC.Sources {
		if err := src.validate(i); err != nil {
			return errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	if c.Registry.Enabled && c.Registry.Path == "" {
		return errFactory.Wrap(errors.ErrInvalidConfig, &ValidationError{
			Field: "registry.path", Value: c.Registry.Path, Reason: "required when the registry is enabled",
		})
	}

	return nil
}

func (d DriverConfig) validate() error {
	if !d.Enabled {
		return nil
	}

	required := map[string]string{
		"driver.service_name": d.ServiceName,
		"driver.binary_path":  d.BinaryPath,
		"driver.device_path":  d.DevicePath,
	}
	for field, value := range required {
		if value == "" {
			return &ValidationError{Field: field, Value: value, Reason: "required when the driver is enabled"}
		}
	}

	if !oneOf(d.StartType, startTypes) {
		return &ValidationError{Field: "driver.start_type", Value: d.StartType, Reason: fmt.Sprintf("must be one of %v", startTypes)}
	}
	if !oneOf(d.ErrorControl, errorControls) {
		return &ValidationError{Field: "driver.error_control", Value: d.ErrorControl, Reason: fmt.Sprintf("must be one of %v", errorControls)}
	}
	if d.MaxFanLevel < 0 {
		return &ValidationError{Field: "driver.max_fan_level", Value: d.MaxFanLevel, Reason: "must not be negative"}
	}
	if d.MaxFans < 0 || d.TemperatureSensors < 0 || d.OpenRetries < 0 {
		return &ValidationError{Field: "driver", Value: d, Reason: "counts must not be negative"}
	}

	return nil
}

func (s ECSource) validate(index int) error {
	field := fmt.Sprintf("ec.sources[%d]", index)

	switch {
	case s.Name == "":
		return &ValidationError{Field: field + ".name", Value: s.Name, Reason: "required"}
	case s.Size != 1 && s.Size != 2:
		return &ValidationError{Field: field + ".size", Value: s.Size, Reason: "must be 1 or 2"}
	case s.Register < 0 || s.Register+s.Size-1 > maxECRegister:
		return &ValidationError{Field: field + ".register", Value: s.Register, Reason: "outside the EC address space"}
	case s.Min > s.Max:
		return &ValidationError{Field: field + ".min", Value: s.Min, Reason: "greater than max"}
	case !oneOf(s.Type, sensorTypes):
		return &ValidationError{Field: field + ".type", Value: s.Type, Reason: fmt.Sprintf("must be one of %v", sensorTypes)}
	}

	return nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}

	return false
}

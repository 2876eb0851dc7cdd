package hardware

import "strings"

// Identifier is a slash-separated path such as "/cpu/0/load/1".
type Identifier string

// NewIdentifier joins parts into an absolute identifier.
func NewIdentifier(parts ...string) Identifier {
	return Identifier("/" + strings.Join(parts, "/"))
}

// Append returns id extended by parts.
func (id Identifier) Append(parts ...string) Identifier {
	if len(parts) == 0 {
		return id
	}

	return Identifier(strings.TrimSuffix(string(id), "/") + "/" + strings.Join(parts, "/"))
}

func (id Identifier) String() string {
	return string(id)
}

type HardwareType int

const (
	TypeCPU HardwareType = iota
	TypeMemory
	TypeGPU
	TypeEmbeddedController
	TypeMotherboard
)

var hardwareTypeNames = map[HardwareType]string{
	TypeCPU:                "cpu",
	TypeMemory:             "memory",
	TypeGPU:                "gpu",
	TypeEmbeddedController: "ec",
	TypeMotherboard:        "motherboard",
}

func (t HardwareType) String() string {
	if name, ok := hardwareTypeNames[t]; ok {
		return name
	}

	return "unknown"
}

type SensorType int

const (
	SensorLoad SensorType = iota
	SensorTemperature
	SensorFan
	SensorControl
	SensorVoltage
	SensorPower
	SensorData
	SensorLevel
)

var sensorTypeNames = map[SensorType]string{
	SensorLoad:        "load",
	SensorTemperature: "temperature",
	SensorFan:         "fan",
	SensorControl:     "control",
	SensorVoltage:     "voltage",
	SensorPower:       "power",
	SensorData:        "data",
	SensorLevel:       "level",
}

func (t SensorType) String() string {
	if name, ok := sensorTypeNames[t]; ok {
		return name
	}

	return "unknown"
}

// Unit returns the display unit of readings of this type.
func (t SensorType) Unit() string {
	switch t {
	case SensorLoad, SensorControl:
		return "%"
	case SensorTemperature:
		return "°C"
	case SensorFan:
		return "RPM"
	case SensorVoltage:
		return "V"
	case SensorPower:
		return "W"
	case SensorData:
		return "GB"
	default:
		return ""
	}
}

// ParseSensorType maps a configuration name to a SensorType.
func ParseSensorType(name string) (SensorType, bool) {
	for t, n := range sensorTypeNames {
		if n == name {
			return t, true
		}
	}

	return 0, false
}

type ControlType int

const (
	ControlFanLevel ControlType = iota
	ControlFanSpeed
	ControlPowerLimit
)

func (t ControlType) String() string {
	switch t {
	case ControlFanLevel:
		return "fan_level"
	case ControlFanSpeed:
		return "fan_speed"
	case ControlPowerLimit:
		return "power_limit"
	default:
		return "unknown"
	}
}

type UnitType int

const (
	UnitPercent UnitType = iota
	UnitLevel
	UnitWatt
	UnitRPM
)

func (u UnitType) String() string {
	switch u {
	case UnitPercent:
		return "%"
	case UnitLevel:
		return "level"
	case UnitWatt:
		return "W"
	case UnitRPM:
		return "RPM"
	default:
		return ""
	}
}

package gpu

import "github.com/NVIDIA/go-nvml/pkg/nvml"

// Library is the part of NVML used to discover devices.
type Library interface {
	Init() error
	Shutdown() error
	DeviceCount() (int, error)
	Device(index int) (Device, error)
}

// Device is the subset of nvml.Device this package drives.
type Device interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetTemperature(sensor nvml.TemperatureSensors) (uint32, nvml.Return)
	GetUtilizationRates() (nvml.Utilization, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)

	GetNumFans() (int, nvml.Return)
	GetFanSpeed_v2(fan int) (uint32, nvml.Return)
	GetMinMaxFanSpeed() (int, int, nvml.Return)
	SetFanSpeed_v2(fan int, speed int) nvml.Return
	SetDefaultFanSpeed_v2(fan int) nvml.Return

	GetPowerManagementLimit() (uint32, nvml.Return)
	GetPowerManagementLimitConstraints() (uint32, uint32, nvml.Return)
	GetPowerManagementDefaultLimit() (uint32, nvml.Return)
	SetPowerManagementLimit(limit uint32) nvml.Return
}

// Domain types for type safety and validation
type (
	FanSpeed   int
	PowerLimit int

	FanSpeedLimits struct {
		Min, Max FanSpeed
	}

	PowerLimits struct {
		Min, Max, Default PowerLimit
	}
)

// Package gpu exposes NVIDIA GPUs through NVML: temperature, load, power
// and fan sensors plus fan speed and power limit controls.
package gpu

import (
	"strconv"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type GPU struct {
	id     hardware.Identifier
	name   string
	uuid   string
	device Device

	temperature *hardware.Reading
	load        *hardware.Reading
	power       *hardware.Reading
	fanSensors  []*hardware.Reading

	fans       []*fanControl
	powerLimit *powerControl
}

// New probes device. Fan and power controls are omitted when the board
// does not support them.
func New(index int, device Device) (*GPU, error) {
	id := hardware.NewIdentifier("gpu-nvidia", strconv.Itoa(index))

	name, ret := device.GetName()
	if !IsNVMLSuccess(ret) {
		return nil, errors.New().Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}
	// The UUID only identifies the board in logs.
	uuid, ret := device.GetUUID()
	if !IsNVMLSuccess(ret) {
		logger.Debug().Err(newNVMLError(ret)).Int("index", index).Msg("GPU UUID unavailable")
		uuid = ""
	}
	logger.Info().Str("uuid", uuid).Msgf("Detected GPU: %v", name)

	g := &GPU{
		id:          id,
		name:        name,
		uuid:        uuid,
		device:      device,
		temperature: hardware.NewReading(id.Append("temperature", "0"), "GPU Core", 0, hardware.SensorTemperature),
		load:        hardware.NewReading(id.Append("load", "0"), "GPU Core", 0, hardware.SensorLoad),
		power:       hardware.NewReading(id.Append("power", "0"), "GPU Package", 0, hardware.SensorPower),
	}

	g.initFans()

	if pc, err := newPowerControl(id, device); err != nil {
		logger.Debug().Err(err).Msg("Power limit control unavailable")
	} else {
		g.powerLimit = pc
	}

	return g, nil
}

func (g *GPU) initFans() {
	count, ret := g.device.GetNumFans()
	if !IsNVMLSuccess(ret) {
		logger.Debug().Err(errors.New().Wrap(ErrFanCountFailed, newNVMLError(ret))).Msg("Fan control unavailable")
		return
	}
	logger.Debug().Msgf("Detected fans: %d", count)

	minSpeed, maxSpeed, ret := g.device.GetMinMaxFanSpeed()
	if !IsNVMLSuccess(ret) {
		logger.Debug().Err(errors.New().Wrap(ErrGetFanLimitsFailed, newNVMLError(ret))).Msg("Fan control unavailable")
		minSpeed, maxSpeed = 0, 100
	}
	limits := FanSpeedLimits{Min: FanSpeed(minSpeed), Max: FanSpeed(maxSpeed)}

	for i := 0; i < count; i++ {
		g.fanSensors = append(g.fanSensors, hardware.NewReading(
			g.id.Append("control", strconv.Itoa(i)), "GPU Fan "+strconv.Itoa(i+1), i, hardware.SensorControl))

		fc, err := newFanControl(g.id, g.device, i, limits)
		if err != nil {
			logger.Debug().Err(err).Int("fan", i).Msg("Fan control unavailable")
			continue
		}
		g.fans = append(g.fans, fc)
	}
}

func (g *GPU) Identifier() hardware.Identifier     { return g.id }
func (g *GPU) Name() string                        { return g.name }
func (g *GPU) UUID() string                        { return g.uuid }
func (g *GPU) HardwareType() hardware.HardwareType { return hardware.TypeGPU }

func (g *GPU) Sensors() []hardware.Sensor {
	sensors := []hardware.Sensor{g.temperature, g.load, g.power}
	for _, r := range g.fanSensors {
		sensors = append(sensors, r)
	}

	return sensors
}

func (g *GPU) Controls() []hardware.Control {
	var controls []hardware.Control
	for _, fc := range g.fans {
		controls = append(controls, fc)
	}
	if g.powerLimit != nil {
		controls = append(controls, g.powerLimit)
	}

	return controls
}

func (g *GPU) Update() {
	if temp, ret := g.device.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		g.temperature.Set(float64(temp))
	} else {
		g.temperature.Clear()
	}

	if util, ret := g.device.GetUtilizationRates(); IsNVMLSuccess(ret) {
		g.load.Set(float64(util.Gpu))
	} else {
		g.load.Clear()
	}

	if mw, ret := g.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		g.power.Set(float64(mw) / milliWattsToWatts)
	} else {
		g.power.Clear()
	}

	for i, r := range g.fanSensors {
		speed, ret := g.device.GetFanSpeed_v2(i)
		if !IsNVMLSuccess(ret) {
			logger.Debug().Msgf("Failed to get fan %d speed: %s", i, nvml.ErrorString(ret))
			r.Clear()
			continue
		}
		r.Set(float64(speed))
		for _, fc := range g.fans {
			if fc.index == i {
				fc.refresh(FanSpeed(speed))
			}
		}
	}
}

// Close hands fans back to the driver and restores the power limit found
// at discovery.
func (g *GPU) Close() error {
	var errs []error
	for _, fc := range g.fans {
		errs = append(errs, fc.restore())
	}
	if g.powerLimit != nil {
		errs = append(errs, g.powerLimit.restore())
	}

	return errors.Join(errs...)
}

// Group holds every NVIDIA GPU found through NVML.
type Group struct {
	*hardware.Collection
	lib Library
}

// NewGroup initializes lib and probes its devices. Without a usable NVML
// the group is empty.
func NewGroup(lib Library) *Group {
	g := &Group{Collection: hardware.NewCollection()}

	if err := lib.Init(); err != nil {
		logger.Debug().Err(err).Msg("NVML unavailable, no NVIDIA GPUs")
		return g
	}
	g.lib = lib

	count, err := lib.DeviceCount()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to enumerate NVIDIA GPUs")
		return g
	}

	var items []hardware.Hardware
	for i := 0; i < count; i++ {
		device, err := lib.Device(i)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Failed to open GPU")
			continue
		}

		gpu, err := New(i, device)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("Failed to probe GPU")
			continue
		}
		items = append(items, gpu)
	}
	g.Collection = hardware.NewCollection(items...)

	return g
}

// Close closes every GPU and then shuts NVML down.
func (g *Group) Close() error {
	err := g.Collection.Close()
	if g.lib == nil {
		return err
	}

	shutdownErr := g.lib.Shutdown()
	g.lib = nil

	return errors.Join(err, shutdownErr)
}

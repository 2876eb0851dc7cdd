package gpu

import (
	"strconv"
	"sync"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// fanControl sets one fan's target duty in percent.
type fanControl struct {
	id     hardware.Identifier
	device Device
	index  int
	limits FanSpeedLimits
	speed  FanSpeed
	manual bool
	mu     sync.RWMutex
}

func newFanControl(parent hardware.Identifier, device Device, index int, limits FanSpeedLimits) (*fanControl, error) {
	fc := &fanControl{
		id:     parent.Append("control", "fan", strconv.Itoa(index)),
		device: device,
		index:  index,
		limits: limits,
	}

	speed, ret := device.GetFanSpeed_v2(index)
	if !IsNVMLSuccess(ret) {
		return nil, errors.New().Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
	}
	fc.speed = FanSpeed(speed)

	return fc, nil
}

func (fc *fanControl) Identifier() hardware.Identifier   { return fc.id }
func (fc *fanControl) Name() string                      { return "GPU Fan " + strconv.Itoa(fc.index+1) }
func (fc *fanControl) ControlType() hardware.ControlType { return hardware.ControlFanSpeed }
func (fc *fanControl) UnitType() hardware.UnitType       { return hardware.UnitPercent }
func (fc *fanControl) Index() int                        { return fc.index }
func (fc *fanControl) MinValue() float64                 { return float64(fc.limits.Min) }
func (fc *fanControl) MaxValue() float64                 { return float64(fc.limits.Max) }

func (fc *fanControl) Value() float64 {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return float64(fc.speed)
}

// ChangeValue clamps v to the fan's limits, applies it and returns the
// speed the driver reports afterwards.
func (fc *fanControl) ChangeValue(v float64) (float64, error) {
	errFactory := errors.New()
	fc.mu.Lock()
	defer fc.mu.Unlock()

	speed := FanSpeed(hardware.Clamp(v, float64(fc.limits.Min), float64(fc.limits.Max)))
	if ret := fc.device.SetFanSpeed_v2(fc.index, int(speed)); !IsNVMLSuccess(ret) {
		err := errFactory.Wrap(ErrSetFanSpeed, newNVMLError(ret))
		if isPermissionDenied(ret) {
			return float64(fc.speed), errFactory.Wrap(errors.ErrPermissionDenied, err)
		}
		return float64(fc.speed), err
	}
	fc.manual = true

	applied, ret := fc.device.GetFanSpeed_v2(fc.index)
	if !IsNVMLSuccess(ret) {
		fc.speed = speed
		logger.Debug().Int("fan", fc.index).Msg("Fan speed read-back failed, assuming requested value")
		return float64(speed), nil
	}
	fc.speed = FanSpeed(applied)

	return float64(fc.speed), nil
}

// SetDefaultValue returns the fan to driver control. The argument is unused.
func (fc *fanControl) SetDefaultValue(float64) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if ret := fc.device.SetDefaultFanSpeed_v2(fc.index); !IsNVMLSuccess(ret) {
		return errors.New().Wrap(ErrEnableAutoFan, newNVMLError(ret))
	}
	fc.manual = false

	return nil
}

// restore hands a manually driven fan back to the driver.
func (fc *fanControl) restore() error {
	fc.mu.RLock()
	manual := fc.manual
	fc.mu.RUnlock()

	if !manual {
		return nil
	}

	return fc.SetDefaultValue(0)
}

func (fc *fanControl) refresh(speed FanSpeed) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.speed = speed
}

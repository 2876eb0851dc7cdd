package gpu

import (
	"math"
	"sync"

	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/hardware"
)

const milliWattsToWatts = 1000

// powerControl sets the board power limit in watts.
type powerControl struct {
	id       hardware.Identifier
	device   Device
	limits   PowerLimits
	current  PowerLimit
	original PowerLimit
	mu       sync.RWMutex
}

func newPowerControl(parent hardware.Identifier, device Device) (*powerControl, error) {
	errFactory := errors.New()
	pc := &powerControl{
		id:     parent.Append("control", "power"),
		device: device,
	}

	minLimit, maxLimit, ret := device.GetPowerManagementLimitConstraints()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	defaultLimit, ret := device.GetPowerManagementDefaultLimit()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	pc.limits = PowerLimits{
		Min:     PowerLimit(minLimit / milliWattsToWatts),
		Max:     PowerLimit(maxLimit / milliWattsToWatts),
		Default: PowerLimit(defaultLimit / milliWattsToWatts),
	}

	currentLimit, ret := device.GetPowerManagementLimit()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrPowerLimitFailed, newNVMLError(ret))
	}

	pc.current = PowerLimit(currentLimit / milliWattsToWatts)
	pc.original = pc.current

	return pc, nil
}

func (pc *powerControl) Identifier() hardware.Identifier   { return pc.id }
func (pc *powerControl) Name() string                      { return "GPU Power Limit" }
func (pc *powerControl) ControlType() hardware.ControlType { return hardware.ControlPowerLimit }
func (pc *powerControl) UnitType() hardware.UnitType       { return hardware.UnitWatt }
func (pc *powerControl) Index() int                        { return 0 }
func (pc *powerControl) MinValue() float64                 { return float64(pc.limits.Min) }
func (pc *powerControl) MaxValue() float64                 { return float64(pc.limits.Max) }

func (pc *powerControl) Value() float64 {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return float64(pc.current)
}

// ChangeValue clamps v to the board constraints, applies it and returns
// the limit NVML reports afterwards.
func (pc *powerControl) ChangeValue(v float64) (float64, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	limit := PowerLimit(hardware.Clamp(v, float64(pc.limits.Min), float64(pc.limits.Max)))

	return pc.apply(limit)
}

// SetDefaultValue restores the board's default power limit.
func (pc *powerControl) SetDefaultValue(float64) error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	_, err := pc.apply(pc.limits.Default)

	return err
}

func (pc *powerControl) apply(limit PowerLimit) (float64, error) {
	errFactory := errors.New()

	if ret := pc.device.SetPowerManagementLimit(wattsToMilliWatts(limit)); !IsNVMLSuccess(ret) {
		err := errFactory.Wrap(ErrSetPowerLimit, newNVMLError(ret))
		if isPermissionDenied(ret) {
			return float64(pc.current), errFactory.Wrap(errors.ErrPermissionDenied, err)
		}
		return float64(pc.current), err
	}

	applied, ret := pc.device.GetPowerManagementLimit()
	if !IsNVMLSuccess(ret) {
		pc.current = limit
		return float64(limit), nil
	}
	pc.current = PowerLimit(applied / milliWattsToWatts)

	return float64(pc.current), nil
}

// restore puts back the limit found at discovery if it was changed.
func (pc *powerControl) restore() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.current == pc.original {
		return nil
	}

	_, err := pc.apply(pc.original)

	return err
}

func wattsToMilliWatts(watts PowerLimit) uint32 {
	if watts <= 0 {
		return 0
	}

	const maxWatts = PowerLimit(math.MaxUint32 / milliWattsToWatts)
	if watts > maxWatts {
		return math.MaxUint32
	}

	result := watts * PowerLimit(milliWattsToWatts)

	//nolint:gosec // G115: Safe - bounds checked above
	return uint32(result)
}

package smm

import (
	"math"
	"strconv"
	"sync"

	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
)

// fanControl drives one fan through its discrete levels.
type fanControl struct {
	id       hardware.Identifier
	client   *Client
	index    int
	maxLevel int
	level    int
	owner    *SMM
	mu       sync.RWMutex
}

func (fc *fanControl) Identifier() hardware.Identifier   { return fc.id }
func (fc *fanControl) Name() string                      { return "Fan #" + strconv.Itoa(fc.index+1) }
func (fc *fanControl) ControlType() hardware.ControlType { return hardware.ControlFanLevel }
func (fc *fanControl) UnitType() hardware.UnitType       { return hardware.UnitLevel }
func (fc *fanControl) Index() int                        { return fc.index }
func (fc *fanControl) MinValue() float64                 { return 0 }
func (fc *fanControl) MaxValue() float64                 { return float64(fc.maxLevel) }

func (fc *fanControl) Value() float64 {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return float64(fc.level)
}

// ChangeValue rounds v to the nearest level, takes fan control away from
// the BIOS and applies it. The level read back afterwards is returned.
func (fc *fanControl) ChangeValue(v float64) (float64, error) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	level := int(hardware.Clamp(math.Round(v), 0, float64(fc.maxLevel)))

	if err := fc.owner.takeManual(); err != nil {
		return float64(fc.level), err
	}
	if err := fc.client.SetFanLevel(fc.index, level); err != nil {
		return float64(fc.level), err
	}

	applied, err := fc.client.FanLevel(fc.index)
	if err != nil {
		logger.Debug().Err(err).Int("fan", fc.index).Msg("Fan level read-back failed, assuming requested value")
		fc.level = level
		return float64(level), nil
	}
	fc.level = applied

	return float64(applied), nil
}

// SetDefaultValue returns every fan to BIOS control. The argument is unused.
func (fc *fanControl) SetDefaultValue(float64) error {
	return fc.owner.releaseManual()
}

func (fc *fanControl) refresh(level int) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.level = level
}

package hardware

// Element is anything in the inventory that has a stable identity.
type Element interface {
	Identifier() Identifier
	Name() string
}

// Sensor is a read-only reading. Value reports false when no reading is
// available, either because the source is unavailable or because the last
// reading fell outside the expected range.
type Sensor interface {
	Element
	SensorType() SensorType
	Index() int
	Value() (float64, bool)
}

// Control is a writable hardware setting.
//
// MinValue and MaxValue are theoretical bounds. ChangeValue returns the value
// the hardware actually applied, which may differ from the request.
// SetDefaultValue hands the setting back to the firmware; Value may not
// reflect it until the next Update.
type Control interface {
	Element
	ControlType() ControlType
	UnitType() UnitType
	Index() int
	Value() float64
	MinValue() float64
	MaxValue() float64
	ChangeValue(v float64) (float64, error)
	SetDefaultValue(v float64) error
}

// Hardware is one device with its sensors and controls. Update refreshes
// readings and never fails: degraded reads show up as sensors without a
// value.
type Hardware interface {
	Element
	HardwareType() HardwareType
	Sensors() []Sensor
	Controls() []Control
	Update()
	Close() error
}

// Group owns the hardware found in one discovery domain.
type Group interface {
	Hardware() []Hardware
	// Report returns a diagnostic text, or false when the group has none.
	Report() (string, bool)
	// Close closes every owned hardware instance, even after a failure.
	Close() error
}

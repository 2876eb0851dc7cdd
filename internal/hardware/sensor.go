package hardware

// Reading is a Sensor whose value is pushed by its owning hardware.
type Reading struct {
	id         Identifier
	name       string
	index      int
	sensorType SensorType
	value      float64
	valid      bool
}

func NewReading(id Identifier, name string, index int, sensorType SensorType) *Reading {
	return &Reading{
		id:         id,
		name:       name,
		index:      index,
		sensorType: sensorType,
	}
}

func (r *Reading) Identifier() Identifier { return r.id }
func (r *Reading) Name() string           { return r.name }
func (r *Reading) Index() int             { return r.index }
func (r *Reading) SensorType() SensorType { return r.sensorType }

func (r *Reading) Value() (float64, bool) {
	return r.value, r.valid
}

// Set stores a new reading.
func (r *Reading) Set(v float64) {
	r.value = v
	r.valid = true
}

// Clear marks the reading as unavailable.
func (r *Reading) Clear() {
	r.value = 0
	r.valid = false
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

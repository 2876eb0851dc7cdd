package ec

// IO is byte-addressed access to the embedded controller's register space.
type IO interface {
	ReadRegister(register uint8) (byte, error)
	WriteRegister(register uint8, value byte) error
	Close() error
}

// Factory acquires the platform's IO backend.
type Factory func() (IO, error)

package ec

import (
	stderrors "errors"
	"testing"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEC emulates the command/data port state machine of an ACPI EC.
type fakeEC struct {
	regs    [256]byte
	state   int
	addr    byte
	out     byte
	outFull bool
	busy    int  // status polls that report the input buffer full
	stuck   bool // input buffer never drains
	inErr   error
	closed  bool
}

const (
	stateIdle = iota
	stateReadAddr
	stateWriteAddr
	stateWriteData
)

func (f *fakeEC) In(port uint16) (byte, error) {
	if f.inErr != nil {
		return 0, f.inErr
	}

	switch port {
	case commandPort:
		var status byte
		if f.outFull {
			status |= statusOutputFull
		}
		if f.stuck || f.busy > 0 {
			f.busy--
			status |= statusInputFull
		}
		return status, nil
	case dataPort:
		f.outFull = false
		return f.out, nil
	}

	return 0, stderrors.New("bad port")
}

func (f *fakeEC) Out(port uint16, value byte) error {
	switch {
	case port == commandPort && value == commandRead:
		f.state = stateReadAddr
	case port == commandPort && value == commandWrite:
		f.state = stateWriteAddr
	case port == dataPort && f.state == stateReadAddr:
		f.out = f.regs[value]
		f.outFull = true
		f.state = stateIdle
	case port == dataPort && f.state == stateWriteAddr:
		f.addr = value
		f.state = stateWriteData
	case port == dataPort && f.state == stateWriteData:
		f.regs[f.addr] = value
		f.state = stateIdle
	default:
		return stderrors.New("unexpected port write")
	}

	return nil
}

func (f *fakeEC) Close() error {
	f.closed = true
	return nil
}

func TestPortIO_ReadWrite(t *testing.T) {
	fake := &fakeEC{busy: 10}
	fake.regs[0x30] = 57
	io := NewPortIO(fake)

	v, err := io.ReadRegister(0x30)
	require.NoError(t, err)
	assert.Equal(t, byte(57), v)

	require.NoError(t, io.WriteRegister(0x94, 0xAA))
	assert.Equal(t, byte(0xAA), fake.regs[0x94])

	v, err = io.ReadRegister(0x94)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), v)

	require.NoError(t, io.Close())
	assert.True(t, fake.closed)
}

func TestPortIO_StuckBus(t *testing.T) {
	io := NewPortIO(&fakeEC{stuck: true})

	_, err := io.ReadRegister(0x30)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrBusTimeout))

	err = io.WriteRegister(0x30, 1)
	assert.True(t, errors.HasCode(err, ErrBusTimeout))
}

func TestPortIO_PortFailure(t *testing.T) {
	io := NewPortIO(&fakeEC{inErr: stderrors.New("no access")})

	_, err := io.ReadRegister(0x30)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, ErrPortIO))
}

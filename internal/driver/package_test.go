package driver_test

import (
	"testing"

	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmbiosPackageLayout(t *testing.T) {
	p := driver.SmbiosPackage{
		Opcode: 0x000001a3,
		Class:  0x0102,
		Select: 0x0304,
		Index:  0x05060708,
	}
	p.SetInputWord(0, 0x11223344)
	p.SetOutputWord(3, 0xAABBCCDD)

	b, err := p.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, driver.PackageSize)
	assert.Equal(t, 44, driver.PackageSize)

	assert.Equal(t, []byte{0xa3, 0x01, 0x00, 0x00}, b[0:4], "opcode")
	assert.Equal(t, []byte{0x02, 0x01}, b[4:6], "class")
	assert.Equal(t, []byte{0x04, 0x03}, b[6:8], "select")
	assert.Equal(t, []byte{0x08, 0x07, 0x06, 0x05}, b[8:12], "index")
	assert.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, b[12:16], "input word 0")
	assert.Equal(t, []byte{0xDD, 0xCC, 0xBB, 0xAA}, b[40:44], "output word 3")

	var decoded driver.SmbiosPackage
	require.NoError(t, decoded.UnmarshalBinary(b))
	assert.Equal(t, p, decoded)
	assert.Equal(t, uint32(0x11223344), decoded.InputWord(0))
	assert.Equal(t, uint32(0xAABBCCDD), decoded.OutputWord(3))
}

func TestSmbiosPackageUnmarshalRejectsWrongSize(t *testing.T) {
	var p driver.SmbiosPackage

	for _, size := range []int{0, driver.PackageSize - 1, driver.PackageSize + 1} {
		err := p.UnmarshalBinary(make([]byte, size))
		require.Error(t, err, "size %d", size)
		assert.True(t, errors.HasCode(err, errors.ErrProtocolMismatch))
	}
}

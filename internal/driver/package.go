package driver

import (
	"encoding/binary"
	"fmt"

	"codeberg.org/mutker/hwctl/internal/errors"
)

// SmbiosPackage field offsets. The layout belongs to the kernel driver; it is
// little-endian and packed, 44 bytes in total.
const (
	offsetOpcode = 0  // uint32
	offsetClass  = 4  // uint16
	offsetSelect = 6  // uint16
	offsetIndex  = 8  // uint32
	offsetInput  = 12 // [16]byte
	offsetOutput = 28 // [16]byte

	payloadSize = 16

	// PackageSize is the exact size of an encoded SmbiosPackage.
	PackageSize = offsetOutput + payloadSize

	// PayloadWords is the number of 32-bit words in Input and Output.
	PayloadWords = payloadSize / 4
)

// SmbiosPackage is the request/response record exchanged with the driver.
// Field meaning is up to the caller; the channel only moves bytes.
type SmbiosPackage struct {
	Opcode uint32
	Class  uint16
	Select uint16
	Index  uint32
	Input  [payloadSize]byte
	Output [payloadSize]byte
}

// MarshalBinary encodes p into its fixed wire layout.
func (p *SmbiosPackage) MarshalBinary() ([]byte, error) {
	b := make([]byte, PackageSize)
	binary.LittleEndian.PutUint32(b[offsetOpcode:], p.Opcode)
	binary.LittleEndian.PutUint16(b[offsetClass:], p.Class)
	binary.LittleEndian.PutUint16(b[offsetSelect:], p.Select)
	binary.LittleEndian.PutUint32(b[offsetIndex:], p.Index)
	copy(b[offsetInput:offsetOutput], p.Input[:])
	copy(b[offsetOutput:PackageSize], p.Output[:])

	return b, nil
}

// UnmarshalBinary decodes b, which must be exactly PackageSize bytes.
func (p *SmbiosPackage) UnmarshalBinary(b []byte) error {
	if len(b) != PackageSize {
		return errors.New().WithData(ErrProtocolMismatch, fmt.Sprintf("package is %d bytes, want %d", len(b), PackageSize))
	}

	p.Opcode = binary.LittleEndian.Uint32(b[offsetOpcode:])
	p.Class = binary.LittleEndian.Uint16(b[offsetClass:])
	p.Select = binary.LittleEndian.Uint16(b[offsetSelect:])
	p.Index = binary.LittleEndian.Uint32(b[offsetIndex:])
	copy(p.Input[:], b[offsetInput:offsetOutput])
	copy(p.Output[:], b[offsetOutput:PackageSize])

	return nil
}

// InputWord returns the i-th little-endian word of Input.
func (p *SmbiosPackage) InputWord(i int) uint32 {
	return binary.LittleEndian.Uint32(p.Input[i*4:])
}

// SetInputWord stores v as the i-th little-endian word of Input.
func (p *SmbiosPackage) SetInputWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(p.Input[i*4:], v)
}

// OutputWord returns the i-th little-endian word of Output.
func (p *SmbiosPackage) OutputWord(i int) uint32 {
	return binary.LittleEndian.Uint32(p.Output[i*4:])
}

// SetOutputWord stores v as the i-th little-endian word of Output.
func (p *SmbiosPackage) SetOutputWord(i int, v uint32) {
	binary.LittleEndian.PutUint32(p.Output[i*4:], v)
}

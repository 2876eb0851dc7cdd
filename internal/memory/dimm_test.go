package memory

import (
	"encoding/binary"
	"testing"

	"github.com/digitalocean/go-smbios/smbios"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryDevice(size uint16, extended uint32, memType byte, speed uint16, strs ...string) *smbios.Structure {
	f := make([]byte, 0x1C)
	binary.LittleEndian.PutUint16(f[dimmSize:], size)
	f[dimmLocator] = 1
	f[dimmBankLocator] = 2
	f[dimmMemoryType] = memType
	binary.LittleEndian.PutUint16(f[dimmSpeed:], speed)
	f[dimmManufacturer] = 3
	f[dimmPartNumber] = 4
	binary.LittleEndian.PutUint32(f[dimmExtendedSize:], extended)

	return &smbios.Structure{
		Header:    smbios.Header{Type: typeMemoryDevice, Length: uint8(len(f) + 4)},
		Formatted: f,
		Strings:   strs,
	}
}

func TestParseDIMMs(t *testing.T) {
	ss := []*smbios.Structure{
		{Header: smbios.Header{Type: 0}, Formatted: make([]byte, 20)},
		memoryDevice(16384, 0, 0x1A, 3200, "DIMM A1", "BANK 0", "Samsung", "M471A2K43DB1 "),
		memoryDevice(0, 0, 0x02, 0, "DIMM A2", "BANK 1"),
		memoryDevice(sizeUseExtended, 65536, 0x22, 4800, "DIMM B1", "BANK 2", "Hynix", "HMCG88"),
		memoryDevice(sizeInKilobytes|2048, 0, 0x18, 1600, "DIMM B2", "BANK 3"),
		{Header: smbios.Header{Type: typeMemoryDevice}, Formatted: make([]byte, 4)},
	}

	dimms := parseDIMMs(ss)
	require.Len(t, dimms, 4)

	assert.Equal(t, DIMM{
		Locator:      "DIMM A1",
		Bank:         "BANK 0",
		Type:         "DDR4",
		Manufacturer: "Samsung",
		PartNumber:   "M471A2K43DB1",
		SizeMB:       16384,
		SpeedMTs:     3200,
	}, dimms[0])
	assert.Zero(t, dimms[1].SizeMB)
	assert.Empty(t, dimms[1].Manufacturer, "missing string reference")
	assert.Equal(t, uint64(65536), dimms[2].SizeMB)
	assert.Equal(t, "DDR5", dimms[2].Type)
	assert.Equal(t, uint64(2), dimms[3].SizeMB)
}

func TestFormatReport(t *testing.T) {
	report := FormatReport([]DIMM{
		{Locator: "DIMM A1", SizeMB: 16384, Type: "DDR4", SpeedMTs: 3200, Manufacturer: "Samsung"},
		{Locator: "DIMM A2"},
	})

	assert.Contains(t, report, "Memory Devices\n")
	assert.Contains(t, report, "16384 MB DDR4 3200 MT/s Samsung")
	assert.Contains(t, report, "DIMM A2      empty")
}

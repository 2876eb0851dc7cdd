package memory

import (
	"encoding/binary"
	"fmt"
	"strings"

	"codeberg.org/mutker/hwctl/internal/errors"
	"github.com/digitalocean/go-smbios/smbios"
)

const typeMemoryDevice = 17

// Offsets into the formatted area of a type 17 structure, which starts
// after the 4 byte header.
const (
	dimmSize          = 0x08
	dimmLocator       = 0x0C
	dimmBankLocator   = 0x0D
	dimmMemoryType    = 0x0E
	dimmSpeed         = 0x11
	dimmManufacturer  = 0x13
	dimmPartNumber    = 0x16
	dimmExtendedSize  = 0x18
	dimmExtendedLimit = dimmExtendedSize + 4

	sizeUseExtended = 0x7fff
	sizeInKilobytes = 0x8000
)

var memoryTypes = map[byte]string{
	0x0F: "SDRAM",
	0x12: "DDR",
	0x13: "DDR2",
	0x18: "DDR3",
	0x1A: "DDR4",
	0x1B: "LPDDR",
	0x1C: "LPDDR2",
	0x1D: "LPDDR3",
	0x1E: "LPDDR4",
	0x22: "DDR5",
	0x23: "LPDDR5",
}

// DIMM is one populated or empty memory slot.
type DIMM struct {
	Locator      string
	Bank         string
	Type         string
	Manufacturer string
	PartNumber   string
	SizeMB       uint64
	SpeedMTs     uint16
}

// ReadDIMMs decodes the memory devices from the system's SMBIOS table.
func ReadDIMMs() ([]DIMM, error) {
	errFactory := errors.New()

	rc, _, err := smbios.Stream()
	if err != nil {
		return nil, errFactory.Wrap(ErrSMBIOSFailed, err)
	}
	defer rc.Close()

	ss, err := smbios.NewDecoder(rc).Decode()
	if err != nil {
		return nil, errFactory.Wrap(ErrSMBIOSFailed, err)
	}

	return parseDIMMs(ss), nil
}

func parseDIMMs(ss []*smbios.Structure) []DIMM {
	var dimms []DIMM
	for _, s := range ss {
		if s.Header.Type != typeMemoryDevice || len(s.Formatted) < dimmSpeed+2 {
			continue
		}

		d := DIMM{
			Locator: stringAt(s, dimmLocator),
			Bank:    stringAt(s, dimmBankLocator),
			Type:    memoryTypes[s.Formatted[dimmMemoryType]],
		}
		d.SpeedMTs = binary.LittleEndian.Uint16(s.Formatted[dimmSpeed:])
		if len(s.Formatted) > dimmPartNumber {
			d.Manufacturer = stringAt(s, dimmManufacturer)
			d.PartNumber = stringAt(s, dimmPartNumber)
		}

		size := binary.LittleEndian.Uint16(s.Formatted[dimmSize:])
		switch {
		case size == 0 || size == 0xffff:
			// empty slot or unknown size
		case size == sizeUseExtended && len(s.Formatted) >= dimmExtendedLimit:
			d.SizeMB = uint64(binary.LittleEndian.Uint32(s.Formatted[dimmExtendedSize:]) & 0x7fffffff)
		case size&sizeInKilobytes != 0:
			d.SizeMB = uint64(size&^sizeInKilobytes) / 1024
		default:
			d.SizeMB = uint64(size)
		}

		dimms = append(dimms, d)
	}

	return dimms
}

// stringAt resolves the 1-based string reference stored at off.
func stringAt(s *smbios.Structure, off int) string {
	if off >= len(s.Formatted) {
		return ""
	}

	ref := int(s.Formatted[off])
	if ref == 0 || ref > len(s.Strings) {
		return ""
	}

	return strings.TrimSpace(s.Strings[ref-1])
}

// FormatReport renders one line per slot.
func FormatReport(dimms []DIMM) string {
	var b strings.Builder
	b.WriteString("Memory Devices\n")

	for _, d := range dimms {
		if d.SizeMB == 0 {
			fmt.Fprintf(&b, "  %-12s empty\n", d.Locator)
			continue
		}

		fmt.Fprintf(&b, "  %-12s %6d MB", d.Locator, d.SizeMB)
		if d.Type != "" {
			fmt.Fprintf(&b, " %s", d.Type)
		}
		if d.SpeedMTs != 0 {
			fmt.Fprintf(&b, " %d MT/s", d.SpeedMTs)
		}
		if d.Manufacturer != "" || d.PartNumber != "" {
			fmt.Fprintf(&b, " %s", strings.TrimSpace(d.Manufacturer+" "+d.PartNumber))
		}
		b.WriteByte('\n')
	}

	return b.String()
}

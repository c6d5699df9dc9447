package frame

import (
	"fmt"
	"strings"
)

// Manufacturer flags used by the bundled drivers.
const (
	ManufacturerAPA uint16 = 0x0601
	ManufacturerAPT uint16 = 0x0614
	ManufacturerBMT uint16 = 0x09B4
	ManufacturerDEV uint16 = 0x10B6
	ManufacturerEGM uint16 = 0x14ED
)

// ManufacturerCode unpacks the three 5-bit letters of a manufacturer field.
func ManufacturerCode(m uint16) string {
	letters := [3]byte{
		byte((m>>10)&0x1F) + 64,
		byte((m>>5)&0x1F) + 64,
		byte(m&0x1F) + 64,
	}
	return string(letters[:])
}

// ManufacturerID packs a three letter flag (for example "APA") into the wire
// representation.
func ManufacturerID(code string) (uint16, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return 0, fmt.Errorf("manufacturer flag must have 3 letters, got %q", code)
	}
	var id uint16
	for i := 0; i < 3; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("manufacturer flag %q contains non-letter %q", code, c)
		}
		id = id<<5 | uint16(c-64)
	}
	return id, nil
}

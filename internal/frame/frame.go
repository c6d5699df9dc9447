package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrEncrypted is returned by callers that need the application payload of a
// telegram whose transport layer declares encryption. Decryption happens before
// telegrams reach this module.
var ErrEncrypted = errors.New("encrypted telegram: payload must be decrypted before decoding")

const (
	ciNoHeader    = 0x78
	ciShortHeader = 0x7A
	ciLongHeader  = 0x72

	dllHeaderLen = 11
)

// TPLKind tells which transport layer header followed the CI field.
type TPLKind int

const (
	TPLNone TPLKind = iota
	TPLShort
	TPLLong
)

// Telegram is one Wireless M-Bus frame split into header and application
// payload. It is not modified after Parse.
type Telegram struct {
	Raw          []byte
	Length       byte
	Control      byte
	Manufacturer uint16
	MeterID      [4]byte
	Version      byte
	DeviceType   byte
	CI           byte
	TPL          TPLInfo
	StatusFlags  map[string]bool
	Payload      []byte
}

// TPLInfo holds the short or long transport layer header.
type TPLInfo struct {
	Kind            TPLKind
	AccessNumber    byte
	Status          byte
	Config          uint16
	SecurityMode    byte
	EncryptedBlocks int

	// Present only for long headers.
	MeterID      [4]byte
	Manufacturer uint16
	Version      byte
	DeviceType   byte
}

// Identity is the (manufacturer, id, version, type) tuple that names a meter.
type Identity struct {
	Manufacturer uint16
	MeterID      [4]byte
	Version      byte
	DeviceType   byte
}

// Parse splits a raw frame (starting with the L field) into its headers and the
// application payload.
func Parse(raw []byte) (Telegram, error) {
	if len(raw) < dllHeaderLen {
		return Telegram{}, fmt.Errorf("telegram too short: %d bytes", len(raw))
	}
	length := raw[0]
	if int(length)+1 != len(raw) {
		return Telegram{}, fmt.Errorf("declared length %d does not match actual length %d", length, len(raw))
	}
	t := Telegram{
		Raw:          raw,
		Length:       length,
		Control:      raw[1],
		Manufacturer: binary.LittleEndian.Uint16(raw[2:4]),
		Version:      raw[8],
		DeviceType:   raw[9],
		CI:           raw[10],
		StatusFlags:  map[string]bool{},
	}
	copy(t.MeterID[:], raw[4:8])

	cursor := dllHeaderLen
	switch t.CI {
	case ciShortHeader:
		tpl, err := parseShortTPL(raw, cursor)
		if err != nil {
			return Telegram{}, err
		}
		t.TPL = tpl
		cursor += 4
	case ciLongHeader:
		tpl, err := parseLongTPL(raw, cursor)
		if err != nil {
			return Telegram{}, err
		}
		t.TPL = tpl
		cursor += 12
	case ciNoHeader:
	default:
		return Telegram{}, fmt.Errorf("unsupported CI field 0x%02X", t.CI)
	}
	if t.TPL.Kind != TPLNone {
		t.StatusFlags = decodeStatusFlags(t.TPL.Status)
	}
	t.Payload = raw[cursor:]
	return t, nil
}

func parseShortTPL(data []byte, offset int) (TPLInfo, error) {
	if len(data) < offset+4 {
		return TPLInfo{}, fmt.Errorf("short TPL header truncated")
	}
	tpl := TPLInfo{
		Kind:         TPLShort,
		AccessNumber: data[offset],
		Status:       data[offset+1],
	}
	tpl.setConfig(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
	return tpl, nil
}

func parseLongTPL(data []byte, offset int) (TPLInfo, error) {
	if len(data) < offset+12 {
		return TPLInfo{}, fmt.Errorf("long TPL header truncated")
	}
	tpl := TPLInfo{
		Kind:         TPLLong,
		Manufacturer: binary.LittleEndian.Uint16(data[offset+4 : offset+6]),
		Version:      data[offset+6],
		DeviceType:   data[offset+7],
		AccessNumber: data[offset+8],
		Status:       data[offset+9],
	}
	copy(tpl.MeterID[:], data[offset:offset+4])
	tpl.setConfig(binary.LittleEndian.Uint16(data[offset+10 : offset+12]))
	return tpl, nil
}

func (tpl *TPLInfo) setConfig(cfg uint16) {
	tpl.Config = cfg
	tpl.SecurityMode = byte((cfg >> 8) & 0x1F)
	if tpl.SecurityMode == 5 {
		tpl.EncryptedBlocks = int((cfg >> 4) & 0x0F)
	}
}

// Identity returns the identity used for driver detection. A long transport
// header carries the identity of the meter itself, while the link layer may
// belong to a repeater or gateway.
func (t Telegram) Identity() Identity {
	if t.TPL.Kind == TPLLong {
		return Identity{
			Manufacturer: t.TPL.Manufacturer,
			MeterID:      t.TPL.MeterID,
			Version:      t.TPL.Version,
			DeviceType:   t.TPL.DeviceType,
		}
	}
	return Identity{
		Manufacturer: t.Manufacturer,
		MeterID:      t.MeterID,
		Version:      t.Version,
		DeviceType:   t.DeviceType,
	}
}

// Encrypted reports whether the payload is still ciphertext.
func (t Telegram) Encrypted() bool {
	if t.TPL.SecurityMode == 0 || len(t.Payload) == 0 {
		return false
	}
	return !(len(t.Payload) >= 2 && t.Payload[0] == 0x2F && t.Payload[1] == 0x2F)
}

// MeterIDString returns the EN 13757 display format (MSB first).
func (t Telegram) MeterIDString() string {
	id := t.Identity().MeterID
	return fmt.Sprintf("%02X%02X%02X%02X", id[3], id[2], id[1], id[0])
}

// ManufacturerString returns the three letter flag of the detection manufacturer.
func (t Telegram) ManufacturerString() string {
	return ManufacturerCode(t.Identity().Manufacturer)
}

var statusFlagDefs = []struct {
	mask byte
	key  string
}{
	{0x10, "status_temporary_error"},
	{0x08, "status_permanent_error"},
	{0x04, "status_power_low"},
	{0x02, "status_application_error"},
	{0x01, "status_application_busy"},
}

func decodeStatusFlags(status byte) map[string]bool {
	flags := make(map[string]bool)
	for _, def := range statusFlagDefs {
		if status&def.mask != 0 {
			flags[def.key] = true
		}
	}
	return flags
}

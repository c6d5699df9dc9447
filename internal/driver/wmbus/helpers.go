package wmbus

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Encoding is the payload representation selected by the DIF data field.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingInteger
	EncodingReal
	EncodingBCD
	EncodingText
)

func (e Encoding) String() string {
	switch e {
	case EncodingInteger:
		return "integer"
	case EncodingReal:
		return "real"
	case EncodingBCD:
		return "bcd"
	case EncodingText:
		return "text"
	default:
		return "none"
	}
}

const dataFieldVariable = 0x0D

// dataField returns the payload length and encoding for the lower nibble of a
// DIF. Variable length (0x0D) is resolved by the caller from the LVAR byte.
func dataField(dif byte) (int, Encoding) {
	switch dif & 0x0F {
	case 0x01:
		return 1, EncodingInteger
	case 0x02:
		return 2, EncodingInteger
	case 0x03:
		return 3, EncodingInteger
	case 0x04:
		return 4, EncodingInteger
	case 0x05:
		return 4, EncodingReal
	case 0x06:
		return 6, EncodingInteger
	case 0x07:
		return 8, EncodingInteger
	case 0x09:
		return 1, EncodingBCD
	case 0x0A:
		return 2, EncodingBCD
	case 0x0B:
		return 3, EncodingBCD
	case 0x0C:
		return 4, EncodingBCD
	case 0x0E:
		return 6, EncodingBCD
	default:
		// 0x00 no data, 0x08 selection for readout.
		return 0, EncodingNone
	}
}

// variableField interprets an LVAR byte. neg is set for negative BCD.
func variableField(lvar byte) (length int, enc Encoding, neg bool, err error) {
	switch {
	case lvar <= 0xBF:
		return int(lvar), EncodingText, false, nil
	case lvar >= 0xC0 && lvar <= 0xC9:
		return int(lvar - 0xC0), EncodingBCD, false, nil
	case lvar >= 0xD0 && lvar <= 0xD9:
		return int(lvar - 0xD0), EncodingBCD, true, nil
	case lvar >= 0xE0 && lvar <= 0xEF:
		return int(lvar - 0xE0), EncodingInteger, false, nil
	default:
		return 0, EncodingNone, false, fmt.Errorf("unsupported LVAR 0x%02X", lvar)
	}
}

// DecodeBCD converts a little endian BCD payload to an integer. A 0xF in the
// most significant nibble marks a negative value.
func DecodeBCD(b []byte) (int64, error) {
	var value int64
	negative := false
	for i := len(b) - 1; i >= 0; i-- {
		by := b[i]
		high := int64(by >> 4)
		low := int64(by & 0x0F)
		if i == len(b)-1 && high == 0x0F {
			negative = true
			high = 0
		}
		if high > 9 || low > 9 {
			return 0, fmt.Errorf("invalid BCD byte: 0x%02X", by)
		}
		value = value*100 + high*10 + low
	}
	if negative {
		value = -value
	}
	return value, nil
}

// DecodeUint reads an unsigned little endian integer of up to 8 bytes.
func DecodeUint(b []byte) uint64 {
	var buf [8]byte
	copy(buf[:], b)
	return binary.LittleEndian.Uint64(buf[:])
}

// DecodeInt reads a two's-complement little endian integer of up to 8 bytes.
func DecodeInt(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	v := DecodeUint(b)
	bits := uint(len(b) * 8)
	if bits < 64 && v&(1<<(bits-1)) != 0 {
		v |= ^uint64(0) << bits
	}
	return int64(v)
}

// DecodeReal reads an IEEE 754 single precision value.
func DecodeReal(b []byte) (float64, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("real value requires 4 bytes, got %d", len(b))
	}
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b))), nil
}

// DecodeTypeFDateTime decodes the four-byte Type F timestamp used by many
// Wireless M-Bus meters.
func DecodeTypeFDateTime(b []byte) (time.Time, error) {
	if len(b) != 4 {
		return time.Time{}, fmt.Errorf("type F datetime requires 4 bytes, got %d", len(b))
	}
	minute := int(b[0] & 0x3F)
	hour := int(b[1] & 0x1F)
	day := int(b[2] & 0x1F)
	month := int(b[3] & 0x0F)
	year := 2000 + int((b[3]>>4)<<3|(b[2]>>5)&0x07)
	if minute > 59 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid type F datetime encoding: %s", hex.EncodeToString(b))
	}
	return calendarDate(b, year, month, day, hour, minute, 0)
}

// DecodeTypeGDate decodes the two-byte Type G date.
func DecodeTypeGDate(b []byte) (time.Time, error) {
	if len(b) != 2 {
		return time.Time{}, fmt.Errorf("type G date requires 2 bytes, got %d", len(b))
	}
	day := int(b[0] & 0x1F)
	month := int(b[1] & 0x0F)
	year := 2000 + int((b[1]>>4)<<3|(b[0]>>5)&0x07)
	return calendarDate(b, year, month, day, 0, 0, 0)
}

// DecodeTypeIDateTime decodes the six-byte Type I timestamp which adds seconds.
func DecodeTypeIDateTime(b []byte) (time.Time, error) {
	if len(b) != 6 {
		return time.Time{}, fmt.Errorf("type I datetime requires 6 bytes, got %d", len(b))
	}
	second := int(b[0] & 0x3F)
	minute := int(b[1] & 0x3F)
	hour := int(b[2] & 0x1F)
	day := int(b[3] & 0x1F)
	month := int(b[4] & 0x0F)
	year := 2000 + int((b[4]>>4)<<3|(b[3]>>5)&0x07)
	if second > 59 || minute > 59 || hour > 23 {
		return time.Time{}, fmt.Errorf("invalid type I datetime encoding: %s", hex.EncodeToString(b))
	}
	return calendarDate(b, year, month, day, hour, minute, second)
}

func calendarDate(raw []byte, year, month, day, hour, minute, second int) (time.Time, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("invalid date encoding: %s", hex.EncodeToString(raw))
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	if ts.Day() != day {
		return time.Time{}, fmt.Errorf("day %d out of range for %04d-%02d", day, year, month)
	}
	return ts, nil
}

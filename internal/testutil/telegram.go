package testutil

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"
)

// MustHex decodes s, ignoring spaces.
func MustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		t.Fatalf("hex decode %q: %v", s, err)
	}
	return b
}

// BCD encodes v as an n byte little endian BCD field. Negative values use the
// 0xF marker in the most significant nibble.
func BCD(v int64, n int) []byte {
	neg := v < 0
	if neg {
		v = -v
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		low := byte(v % 10)
		v /= 10
		high := byte(v % 10)
		v /= 10
		out[i] = high<<4 | low
	}
	if neg {
		out[n-1] |= 0xF0
	}
	return out
}

// Int encodes v as an n byte little endian two's-complement integer.
func Int(v int64, n int) []byte {
	out := make([]byte, n)
	u := uint64(v)
	for i := 0; i < n; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

// TypeF encodes ts as a four byte Type F date-time.
func TypeF(ts time.Time) []byte {
	year := ts.Year() - 2000
	return []byte{
		byte(ts.Minute()),
		byte(ts.Hour()),
		byte(ts.Day()) | byte(year&0x07)<<5,
		byte(ts.Month()) | byte(year>>3)<<4,
	}
}

// Telegram assembles a frame with a link layer header, CI 0x78 (no transport
// header) and the concatenated payload parts. The L field is computed.
func Telegram(manufacturer uint16, id uint32, version, deviceType byte, payload ...[]byte) []byte {
	body := []byte{
		0x44,
		byte(manufacturer), byte(manufacturer >> 8),
		byte(id), byte(id >> 8), byte(id >> 16), byte(id >> 24),
		version, deviceType,
		0x78,
	}
	for _, p := range payload {
		body = append(body, p...)
	}
	return append([]byte{byte(len(body))}, body...)
}

// TelegramHex is Telegram rendered as uppercase hex.
func TelegramHex(manufacturer uint16, id uint32, version, deviceType byte, payload ...[]byte) string {
	return strings.ToUpper(hex.EncodeToString(Telegram(manufacturer, id, version, deviceType, payload...)))
}

package frame

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseShortHeader(t *testing.T) {
	raw := decodeHex(t, "4E44B4098686868613077AF00040052F2F0C1366380000046D27287E2A0F150E00000000C10000D10000E60000FD00000C01002F0100410100540100680100890000A00000B30000002F2F2F2F2F2F")
	tg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, ManufacturerBMT, tg.Manufacturer)
	require.Equal(t, "BMT", tg.ManufacturerString())
	require.Equal(t, "86868686", tg.MeterIDString())
	require.Equal(t, byte(0x7A), tg.CI)
	require.Equal(t, TPLShort, tg.TPL.Kind)
	require.Equal(t, byte(0xF0), tg.TPL.AccessNumber)
	require.Equal(t, byte(5), tg.TPL.SecurityMode)
	require.False(t, tg.Encrypted(), "payload starts with 2F2F")
	require.Equal(t, byte(0x2F), tg.Payload[0])
}

func TestParseNoHeader(t *testing.T) {
	raw := decodeHex(t, "12440106785634120202780E03452301000000")
	tg, err := Parse(raw)
	require.NoError(t, err)
	id := tg.Identity()
	require.Equal(t, ManufacturerAPA, id.Manufacturer)
	require.Equal(t, byte(0x02), id.Version)
	require.Equal(t, byte(0x02), id.DeviceType)
	require.Equal(t, "12345678", tg.MeterIDString())
	require.Equal(t, TPLNone, tg.TPL.Kind)
	require.Len(t, tg.Payload, 8)
}

func TestParseLongHeaderIdentity(t *testing.T) {
	// Link layer from a DEV repeater, transport layer names an APA meter.
	raw := decodeHex(t, "1E44B610111111110037" + "72" + "78563412" + "0106" + "02" + "02" + "2A" + "00" + "0000" + "0E03452301000000")
	tg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, TPLLong, tg.TPL.Kind)
	require.Equal(t, ManufacturerDEV, tg.Manufacturer)
	id := tg.Identity()
	require.Equal(t, ManufacturerAPA, id.Manufacturer)
	require.Equal(t, byte(0x02), id.DeviceType)
	require.Equal(t, "12345678", tg.MeterIDString())
	require.Equal(t, byte(0x2A), tg.TPL.AccessNumber)
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"too short":       "0A4401067856341202",
		"length mismatch": "1F440106785634120202780E03",
		"unknown ci":      "0B4401067856341202025100",
		"short tpl cut":   "0C4401067856341202027A0000",
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(decodeHex(t, h))
			require.Error(t, err)
		})
	}
}

func TestEncrypted(t *testing.T) {
	raw := decodeHex(t, "13440106785634120202"+"7A"+"01000005"+"A1B2C3D4E5")
	tg, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, byte(5), tg.TPL.SecurityMode)
	require.True(t, tg.Encrypted())
}

func TestManufacturerCodes(t *testing.T) {
	cases := map[string]uint16{
		"APA": ManufacturerAPA,
		"APT": ManufacturerAPT,
		"BMT": ManufacturerBMT,
		"DEV": ManufacturerDEV,
		"EGM": ManufacturerEGM,
	}
	for code, id := range cases {
		got, err := ManufacturerID(code)
		require.NoError(t, err)
		require.Equal(t, id, got, code)
		require.Equal(t, code, ManufacturerCode(id))
	}
	_, err := ManufacturerID("A1B")
	require.Error(t, err)
}

func decodeHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestMediaName(t *testing.T) {
	require.Equal(t, "electricity", MediaName(0x02))
	require.Equal(t, "heat/cooling load", MediaName(0x0D))
	require.Equal(t, "unknown(0xFE)", MediaName(0xFE))

	tg, err := Parse(decodeHex(t, "4E44B4098686868613077AF00040052F2F0C1366380000046D27287E2A0F150E00000000C10000D10000E60000FD00000C01002F0100410100540100680100890000A00000B30000002F2F2F2F2F2F"))
	require.NoError(t, err)
	require.Equal(t, "water", tg.Media())
}

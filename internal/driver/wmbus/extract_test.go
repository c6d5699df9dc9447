package wmbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/testutil"
	"github.com/witoldo7/gowmbus/internal/units"
)

func TestExtractNumeric(t *testing.T) {
	cases := []struct {
		name    string
		chain   string
		numeric Numeric
		want    float64
		unit    units.Unit
	}{
		{"energy bcd", "0E03 452301000000", Numeric{Quantity: units.Energy}, 12.345, units.KWH},
		{"negative power", "0B2B 5002F0", Numeric{Quantity: units.Power}, -0.25, units.KW},
		{"voltage phase", "0AFDC8FC01 3102", Numeric{Quantity: units.Voltage}, 23.1, units.V},
		{"amperage phase", "0BFDDAFC01 500100", Numeric{Quantity: units.Amperage}, 1.5, units.A},
		{"reactive energy with correction", "0EFB8273 452301000000", Numeric{Quantity: units.ReactiveEnergy}, 12.345, units.KVARH},
		{"reactive power scaled", "0BFB14 234100", Numeric{Quantity: units.ReactivePower}, 4.123, units.KVAR},
		{"reactive power top of range", "0BFB17 234100", Numeric{Quantity: units.ReactivePower}, 4123, units.KVAR},
		{"reactive power raw", "0BFB14 234100", Numeric{Quantity: units.ReactivePower, Scaling: ScalingNone, Unit: units.VAR}, 4123, units.VAR},
		{"thousand correction", "0E837D 452301000000", Numeric{Quantity: units.Energy}, 12345, units.KWH},
		{"signed integer", "0213 FFFF", Numeric{Quantity: units.Volume}, -0.001, units.M3},
		{"unsigned integer", "0213 FFFF", Numeric{Quantity: units.Volume, Signedness: Unsigned}, 65.535, units.M3},
		{"liters", "0C13 66380000", Numeric{Quantity: units.Volume, Unit: units.L}, 3866, units.L},
		{"real", "0513 0000C03F", Numeric{Quantity: units.Volume}, 0.0015, units.M3},
		{"variable negative bcd", "0D13 D2 3412", Numeric{Quantity: units.Volume}, -1.234, units.M3},
		{"mega joule", "0C0E 01000000", Numeric{Quantity: units.Energy, Unit: units.MJ}, 1, units.MJ},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := mustRecord(t, tc.chain)
			got, unit, err := ExtractNumeric(&rec, tc.numeric)
			require.NoError(t, err)
			require.Equal(t, tc.unit, unit)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestExtractNumericExactDecimals(t *testing.T) {
	rec := mustRecord(t, "0E03 452301000000")
	got, _, err := ExtractNumeric(&rec, Numeric{Quantity: units.Energy})
	require.NoError(t, err)
	require.Equal(t, 12.345, got)

	rec = mustRecord(t, "0B2B 5002F0")
	got, _, err = ExtractNumeric(&rec, Numeric{Quantity: units.Power})
	require.NoError(t, err)
	require.Equal(t, -0.25, got)
}

func TestExtractNumericUnitConversion(t *testing.T) {
	rec := mustRecord(t, "0B2B 5002F0")
	got, unit, err := ExtractNumeric(&rec, Numeric{Quantity: units.Power, Unit: units.W})
	require.NoError(t, err)
	require.Equal(t, units.W, unit)
	require.InDelta(t, -250, got, 1e-9)
}

func TestExtractNumericErrors(t *testing.T) {
	cases := []struct {
		name    string
		chain   string
		numeric Numeric
	}{
		{"quantity mismatch", "0E03 452301000000", Numeric{Quantity: units.Voltage}},
		{"text payload", "0D78 03 434241", Numeric{Quantity: units.Dimensionless}},
		{"no data", "0013", Numeric{Quantity: units.Volume}},
		{"no scaling for vif", "027E 0100", Numeric{Quantity: units.Dimensionless}},
		{"invalid bcd digit", "0A13 1A00", Numeric{Quantity: units.Volume}},
		{"binary wider than 64 bits", "0D13 EA 01000000000000000001", Numeric{Quantity: units.Volume}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := mustRecord(t, tc.chain)
			_, _, err := ExtractNumeric(&rec, tc.numeric)
			require.Error(t, err)
		})
	}

	rec := mustRecord(t, "0013")
	_, _, err := ExtractNumeric(&rec, Numeric{Quantity: units.Volume})
	require.ErrorIs(t, err, ErrNoData)
}

func TestBCDRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, 9, 10, 99, 12345, 999999, -1, -250, -99999} {
		for _, n := range []int{3, 4, 6} {
			got, err := DecodeBCD(testutil.BCD(v, n))
			require.NoError(t, err)
			require.Equal(t, v, got, "value %d in %d bytes", v, n)
		}
	}
	for _, v := range []int64{0, 1, -1, 127, -128, 32767, -32768, 1 << 40, -(1 << 40)} {
		require.Equal(t, v, DecodeInt(testutil.Int(v, 8)))
	}
	require.Equal(t, int64(-2), DecodeInt(testutil.Int(-2, 3)))
}

func TestExtractString(t *testing.T) {
	cases := []struct {
		name  string
		chain string
		want  string
	}{
		{"type f", "046D 27287E2A", "2019-10-30T08:39"},
		{"type g", "426C 3F2C", "2017-12-31"},
		{"type i", "066D 1E1E0C0F3300", "2024-03-15T12:30:30"},
		{"text", "0D78 03 434241", "ABC"},
		{"bcd digits", "0C78 78563412", "12345678"},
		{"negative bcd", "0D13 D2 3412", "-1234"},
		{"integer", "0278 3930", "12345"},
		{"wide integer as hex", "0D78 EA 0102030405060708090A", "0102030405060708090A"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := mustRecord(t, tc.chain)
			got, err := ExtractString(&rec)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestExtractStringBuiltTimestamp(t *testing.T) {
	ts := time.Date(2023, time.July, 4, 21, 5, 0, 0, time.UTC)
	payload := append([]byte{0x04, 0x6D}, testutil.TypeF(ts)...)
	records, _, err := ParseRecords(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	got, err := ExtractString(&records[0])
	require.NoError(t, err)
	require.Equal(t, "2023-07-04T21:05", got)
}

func TestExtractStringMalformedTimestamp(t *testing.T) {
	cases := map[string]string{
		"month zero":       "046D 1E0C0F30",
		"february 30":      "046D 1E0C1E32",
		"minute overflow":  "046D 3F0C0F33",
		"unsupported size": "036D 1E0C0F",
	}
	for name, chain := range cases {
		t.Run(name, func(t *testing.T) {
			rec := mustRecord(t, chain)
			_, err := ExtractString(&rec)
			require.Error(t, err)
		})
	}
}

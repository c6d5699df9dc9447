package units

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	cases := []struct {
		name     string
		v        float64
		from, to Unit
		want     float64
	}{
		{"same unit", 12.5, KWH, KWH, 12.5},
		{"mwh to kwh", 1.5, MWH, KWH, 1500},
		{"mj to kwh", 36, MJ, KWH, 10},
		{"gj to mj", 1, GJ, MJ, 1000},
		{"w to kw", 250, W, KW, 0.25},
		{"mj per hour to kw", 3.6, MJH, KW, 1},
		{"litre to m3", 1500, L, M3, 1.5},
		{"var to kvar", 100, VAR, KVAR, 0.1},
		{"minutes to hours", 90, Minute, Hour, 1.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Convert(tc.v, tc.from, tc.to)
			require.NoError(t, err)
			require.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestConvertAcrossQuantities(t *testing.T) {
	_, err := Convert(1, KWH, V)
	require.Error(t, err)
	require.False(t, CanConvert(A, V))
}

func TestParseRoundTrip(t *testing.T) {
	for u := range unitTable {
		parsed, err := ParseUnit(u.Suffix())
		require.NoError(t, err)
		require.Equal(t, u, parsed)
	}
	q, err := ParseQuantity("Reactive_Energy")
	require.NoError(t, err)
	require.Equal(t, ReactiveEnergy, q)
	require.Equal(t, KVARH, q.DefaultUnit())

	_, err = ParseUnit("furlong")
	require.Error(t, err)
}

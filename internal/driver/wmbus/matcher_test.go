package wmbus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/testutil"
)

func mustRecord(t *testing.T, chain string) Record {
	t.Helper()
	records, _, err := ParseRecords(testutil.MustHex(t, chain))
	require.NoError(t, err)
	require.Len(t, records, 1)
	return records[0]
}

func mustMatcher(t *testing.T, b MatchBuilder) FieldMatcher {
	t.Helper()
	m, err := b.Build()
	require.NoError(t, err)
	return m
}

func TestExactKeyMatches(t *testing.T) {
	m := mustMatcher(t, Match().Key("8e10833c"))
	key, ok := m.Key()
	require.True(t, ok)
	require.Equal(t, Key("8E10833C"), key)

	rec := mustRecord(t, "8E10833C 000000000000")
	require.True(t, m.Matches(&rec))

	other := mustRecord(t, "8E20833C 000000000000")
	require.False(t, m.Matches(&other))
}

func TestExactKeyRejectsEverySingleBitChange(t *testing.T) {
	base := Record{DIF: 0x8E, DIFE: []byte{0x10}, VIF: 0xFB, VIFE: []byte{0x82, 0xF3, 0x3C}}
	m := mustMatcher(t, Match().Key(string(base.Key())))
	require.True(t, m.Matches(&base))

	chain := append([]byte{base.DIF}, base.DIFE...)
	chain = append(chain, base.VIF)
	chain = append(chain, base.VIFE...)
	for i := range chain {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), chain...)
			mutated[i] ^= 1 << bit
			rec := Record{
				DIF:  mutated[0],
				DIFE: mutated[1:2],
				VIF:  mutated[2],
				VIFE: mutated[3:],
			}
			require.False(t, m.Matches(&rec), "byte %d bit %d", i, bit)
		}
	}
}

func TestSemanticMatch(t *testing.T) {
	voltageL1 := mustRecord(t, "0AFDC8FC01 3002")
	voltageL3 := mustRecord(t, "0AFDC8FC03 3002")
	energy := mustRecord(t, "0E03 452301000000")
	stored := mustRecord(t, "CC41 13 44332211")

	anyVoltage := mustMatcher(t, Match().Measurement(Instantaneous).Range(RangeVoltage))
	require.True(t, anyVoltage.Matches(&voltageL1))
	require.True(t, anyVoltage.Matches(&voltageL3))
	require.False(t, anyVoltage.Matches(&energy))

	phase3 := mustMatcher(t, Match().Range(RangeVoltage).With(CombinablePhaseL3))
	require.False(t, phase3.Matches(&voltageL1))
	require.True(t, phase3.Matches(&voltageL3))

	anyEnergy := mustMatcher(t, Match().Range(RangeAnyEnergy))
	require.True(t, anyEnergy.Matches(&energy))

	volume := mustMatcher(t, Match().Range(RangeVolume))
	require.True(t, volume.Matches(&stored), "unset storage, tariff and subunit match anything")

	storage := mustMatcher(t, Match().Range(RangeVolume).StorageRange(1, 2))
	require.False(t, storage.Matches(&stored))
	storage = mustMatcher(t, Match().Range(RangeVolume).Storage(3).Subunit(1).Tariff(0))
	require.True(t, storage.Matches(&stored))

	maximum := mustMatcher(t, Match().Measurement(Maximum))
	require.False(t, maximum.Matches(&energy))
}

func TestCombinedKeyAndSemantic(t *testing.T) {
	rec := mustRecord(t, "0BFDDAFC02 000000")
	require.Equal(t, RangeAmperage, rec.Range)

	m := mustMatcher(t, Match().Measurement(Instantaneous).Range(RangeAmperage).Key("0BFDDAFC02"))
	require.True(t, m.Matches(&rec))

	// The key holds but the semantic part does not.
	strict := mustMatcher(t, Match().Measurement(Maximum).Key("0BFDDAFC02"))
	require.False(t, strict.Matches(&rec))

	require.Equal(t, "key=0BFDDAFC02 measurement=instantaneous range=Amperage", m.String())
}

func TestBuilderIsImmutable(t *testing.T) {
	base := Match().Range(RangeVoltage)
	l1 := base.With(CombinablePhaseL1)
	l2 := base.With(CombinablePhaseL2)

	m1 := mustMatcher(t, l1)
	m2 := mustMatcher(t, l2)
	rec := mustRecord(t, "0AFDC8FC02 3002")
	require.False(t, m1.Matches(&rec))
	require.True(t, m2.Matches(&rec))

	plain := mustMatcher(t, base)
	require.True(t, plain.Matches(&rec))
}

func TestBuildErrors(t *testing.T) {
	cases := []struct {
		name string
		b    MatchBuilder
	}{
		{"no criteria", Match()},
		{"empty key", Match().Key("  ")},
		{"odd key", Match().Key("0E0")},
		{"not hex", Match().Key("0EZZ")},
		{"inverted storage", Match().StorageRange(3, 1)},
		{"negative tariff", Match().Tariff(-1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.b.Build()
			require.Error(t, err)
		})
	}
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey(" 0bfb943c ")
	require.NoError(t, err)
	require.Equal(t, Key("0BFB943C"), k)
}

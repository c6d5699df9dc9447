package hydrodigit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/testutil"
)

func TestLegacyManufacturerBlock(t *testing.T) {
	raw := testutil.MustHex(t, testutil.LoadHex(t, "hydrodigit/hydrodigit_water.hex"))
	tg, err := frame.Parse(raw)
	require.NoError(t, err)

	records, block, err := wmbus.ParseRecords(tg.Payload)
	require.NoError(t, err)
	require.InDelta(t, 1e-3, volumeScale(records), 1e-12)

	data, err := ParseManufacturerData(block, volumeScale(records))
	require.NoError(t, err)
	require.Equal(t, VariantLegacy, data.Variant)
	require.Equal(t, "Backflow, alarms and monthly data", data.Contents)
	require.InDelta(t, 3.7, data.Voltage, 0.001)
	require.Zero(t, data.BackflowM3)

	want := map[int]float64{0: 1.93, 3: 2.53, 8: 3.60, 11: 1.79}
	for month, v := range want {
		require.InDelta(t, v, data.MonthlyTotals[month], 0.001, months[month])
	}
}

func TestLegacyLeakDate(t *testing.T) {
	block := testutil.MustHex(t, "95 0E 240425 07000000"+strings.Repeat("000000", 12))
	data, err := ParseManufacturerData(block, 1e-3)
	require.NoError(t, err)
	require.Equal(t, "25.04.2024", data.LeakDate)
	require.Equal(t, "Backflow, leak date, alarms and monthly data", data.Contents)
	require.InDelta(t, 0.007, data.BackflowM3, 1e-9)
}

func TestLegacyBlockTruncated(t *testing.T) {
	// Long enough to be recognised but the leak date eats the last month.
	block := testutil.MustHex(t, "95 0E 240425 07000000"+strings.Repeat("000000", 11))
	_, err := ParseManufacturerData(block, 1e-3)
	require.ErrorIs(t, err, errShortBlock)
}

func TestExtendedManufacturerBlock(t *testing.T) {
	block := testutil.MustHex(t, "0F 84 290357 0E E80300 240425 FF1212")
	data, err := ParseManufacturerData(block, 1e-3)
	require.NoError(t, err)
	require.Equal(t, VariantExtended, data.Variant)
	require.Equal(t, uint8(0x84), data.BatteryRaw)
	require.Equal(t, uint8(100), data.BatteryPercent)
	require.Equal(t, uint32(0x290357), data.ErrorBits)
	require.Equal(t, byte(0x0E), data.SectionMap)

	s := data.Sections
	require.True(t, s.HasReverseFlow)
	require.InDelta(t, 1.0, s.ReverseFlowM3, 1e-9)
	require.Equal(t, "2024-04-25", s.EmptyPipeDate)
	require.Empty(t, s.LeakEventDate, "non decimal date is skipped")
}

func TestExtendedBlockTruncatedSection(t *testing.T) {
	_, err := ParseManufacturerData(testutil.MustHex(t, "50 000000 80 0100"), 1e-3)
	require.ErrorIs(t, err, errShortBlock)
}

func TestManufacturerBlockErrors(t *testing.T) {
	_, err := ParseManufacturerData(nil, 1e-3)
	require.Error(t, err)
	_, err = ParseManufacturerData([]byte{0x0F}, 1e-3)
	require.Error(t, err)
	_, err = ParseManufacturerData([]byte{0x15, 0x01}, 1e-3)
	require.Error(t, err)
}

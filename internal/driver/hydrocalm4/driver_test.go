package hydrocalm4

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/testutil"
	"github.com/witoldo7/gowmbus/internal/units"
)

func decode(t *testing.T, parts ...[]byte) *driver.Readout {
	t.Helper()
	reg := driver.NewRegistry()
	require.NoError(t, reg.Register(Entry()))
	tg, err := frame.Parse(testutil.Telegram(frame.ManufacturerBMT, 0x11223344, version, deviceTypeHeatCooling, parts...))
	require.NoError(t, err)
	candidates := reg.ResolveTelegram(&tg)
	require.Len(t, candidates, 1)
	return candidates[0].Decode(&tg)
}

func rec(t *testing.T, key string, data []byte) []byte {
	return append(testutil.MustHex(t, key), data...)
}

func TestCombinedHeatCool(t *testing.T) {
	out := decode(t,
		rec(t, "046D", testutil.TypeF(time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC))),
		rec(t, "0C06", testutil.BCD(1234, 4)),
		rec(t, "8C1006", testutil.BCD(56, 4)),
		rec(t, "0C14", testutil.BCD(98765, 4)),
		rec(t, "8C1014", testutil.BCD(4321, 4)),
		rec(t, "8C4014", testutil.BCD(100, 4)),
		rec(t, "8C8040 14", testutil.BCD(200, 4)),
		rec(t, "0A5A", testutil.BCD(652, 2)),
		rec(t, "0A5E", testutil.BCD(431, 2)),
		rec(t, "0B3B", testutil.BCD(1234, 3)),
		rec(t, "0B2C", testutil.BCD(150, 3)),
	)
	require.NoError(t, out.Err)
	require.Empty(t, out.FieldErrors)

	want := map[string]struct {
		value float64
		unit  units.Unit
	}{
		"total_heating_energy": {1234, units.KWH},
		"total_cooling_energy": {56, units.KWH},
		"total_heating_volume": {987.65, units.M3},
		"total_cooling_volume": {43.21, units.M3},
		"c1_volume":            {1, units.M3},
		"c2_volume":            {2, units.M3},
		"supply_temperature":   {65.2, units.C},
		"return_temperature":   {43.1, units.C},
		"volume_flow":          {1.234, units.M3H},
		"power":                {1.5, units.KW},
	}
	for name, w := range want {
		v, ok := out.Get(name)
		require.True(t, ok, name)
		require.Equal(t, w.unit, v.Unit, name)
		require.InDelta(t, w.value, v.Number, 1e-9, name)
	}
	dt, _ := out.Get("device_datetime")
	require.Equal(t, "2024-01-02T03:04", dt.Text)

	power, _ := out.Get("power")
	require.Equal(t, "power_kw", power.OutputName())
}

func TestEnergyInMegajoule(t *testing.T) {
	out := decode(t, rec(t, "0C0F", testutil.BCD(36, 4)))
	v, ok := out.Get("total_heating_energy")
	require.True(t, ok)
	require.Equal(t, units.KWH, v.Unit)
	require.InDelta(t, 100, v.Number, 1e-9)
}

func TestPowerInJoulePerHour(t *testing.T) {
	// 0x33: 10^3 J/h, i.e. 1e-3 MJ/h.
	out := decode(t, rec(t, "0B33", testutil.BCD(3600, 3)))
	v, ok := out.Get("power")
	require.True(t, ok)
	require.InDelta(t, 1, v.Number, 1e-9)
}

func TestHistoricValuesAreIgnored(t *testing.T) {
	out := decode(t, rec(t, "4C06", testutil.BCD(1, 4)))
	require.Empty(t, out.Fields)
	require.Equal(t, 1, out.Records)
}

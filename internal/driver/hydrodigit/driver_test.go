package hydrodigit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/testutil"
	"github.com/witoldo7/gowmbus/internal/units"
)

func registry(t *testing.T) *driver.Registry {
	t.Helper()
	reg := driver.NewRegistry()
	require.NoError(t, reg.Register(Entry()))
	return reg
}

func TestDriverDecode(t *testing.T) {
	tg, err := frame.Parse(testutil.MustHex(t, testutil.LoadHex(t, "hydrodigit/hydrodigit_water.hex")))
	require.NoError(t, err)
	require.Equal(t, "86868686", tg.MeterIDString())

	candidates := registry(t).ResolveTelegram(&tg)
	require.Len(t, candidates, 1)
	out := candidates[0].Decode(&tg)
	require.NoError(t, out.Err)
	require.Empty(t, out.FieldErrors)

	total, ok := out.Get("total")
	require.True(t, ok)
	require.InDelta(t, 3.866, total.Number, 1e-9)
	require.Equal(t, "total_m3", total.OutputName())

	dt, ok := out.Get("meter_datetime")
	require.True(t, ok)
	require.Equal(t, "2019-10-30T08:39", dt.Text)

	april, ok := out.Get("April_total")
	require.True(t, ok)
	require.InDelta(t, 2.53, april.Number, 0.001)
	require.Equal(t, units.M3, april.Unit)

	voltage, ok := out.Get("voltage")
	require.True(t, ok)
	require.Equal(t, "voltage_v", voltage.OutputName())

	_, ok = out.Get("backflow")
	require.False(t, ok, "zero backflow is not reported")
	_, ok = out.Get("battery")
	require.False(t, ok, "legacy blocks have no battery section")
}

func TestDriverMissingManufacturerData(t *testing.T) {
	raw := testutil.Telegram(frame.ManufacturerBMT, 0x86868686, version, deviceTypeWarmWater,
		testutil.MustHex(t, "0C13 66380000"))
	tg, err := frame.Parse(raw)
	require.NoError(t, err)

	candidates := registry(t).ResolveTelegram(&tg)
	require.Len(t, candidates, 1)
	out := candidates[0].Decode(&tg)
	require.NoError(t, out.Err)
	require.Len(t, out.FieldErrors, 1)
	require.Contains(t, out.FieldErrors[0].Error(), "manufacturer data missing")

	_, ok := out.Get("total")
	require.True(t, ok, "record fields survive a failing content hook")
}

func TestDriverExtendedBlock(t *testing.T) {
	raw := testutil.Telegram(frame.ManufacturerBMT, 0x12345678, version, deviceTypeWater,
		testutil.MustHex(t, "0C13 66380000 0F 84 290357 02 E80300"))
	tg, err := frame.Parse(raw)
	require.NoError(t, err)

	out := registry(t).ResolveTelegram(&tg)[0].Decode(&tg)
	require.Empty(t, out.FieldErrors)

	battery, ok := out.Get("battery")
	require.True(t, ok)
	require.Equal(t, 100.0, battery.Number)
	require.Equal(t, "battery_pct", battery.OutputName())

	bits, _ := out.Get("error_bits")
	require.Equal(t, "0x290357", bits.Text)

	reverse, ok := out.Get("reverse_flow")
	require.True(t, ok)
	require.InDelta(t, 1.0, reverse.Number, 1e-9)
}

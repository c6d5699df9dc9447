package driver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/testutil"
	"github.com/witoldo7/gowmbus/internal/units"
)

func parse(t *testing.T, payload ...[]byte) frame.Telegram {
	t.Helper()
	tg, err := frame.Parse(testutil.Telegram(frame.ManufacturerBMT, 0x86868686, 0x13, 0x07, payload...))
	require.NoError(t, err)
	return tg
}

func TestDecodeFirstDefinitionWinsPerRecord(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Entry{Name: "water", Define: func(di *Info) {
		di.AddDetection(detBMT.Manufacturer, detBMT.DeviceType, detBMT.Version)
		di.AddNumericField("total", "", PrintDefault, units.Volume, wmbus.ScalingAuto, wmbus.Unsigned,
			wmbus.Match().Measurement(wmbus.Instantaneous).Range(wmbus.RangeVolume).Storage(0))
		di.AddNumericField("any_volume", "", PrintDefault, units.Volume, wmbus.ScalingAuto, wmbus.Unsigned,
			wmbus.Match().Range(wmbus.RangeVolume))
	}}))
	info, _ := reg.Lookup("water")

	tg := parse(t,
		testutil.MustHex(t, "0C13 66380000"),
		testutil.MustHex(t, "4C13 00100000"),
	)
	out := info.Decode(&tg)
	require.NoError(t, out.Err)
	require.Len(t, out.Fields, 2)

	total, ok := out.Get("total")
	require.True(t, ok)
	require.InDelta(t, 3.866, total.Number, 1e-9)
	require.Equal(t, units.M3, total.Unit)
	require.Equal(t, "total_m3", total.OutputName())

	stored, ok := out.Get("any_volume")
	require.True(t, ok)
	require.InDelta(t, 1.0, stored.Number, 1e-9)
	require.Equal(t, wmbus.Key("4C13"), stored.Key)
}

func TestDecodeContentHook(t *testing.T) {
	hookErr := errors.New("short block")
	var seen struct {
		records int
		mfct    []byte
	}
	reg := NewRegistry()
	require.NoError(t, reg.Register(Entry{Name: "hooked", Define: func(di *Info) {
		di.AddDetection(detBMT.Manufacturer, detBMT.DeviceType, detBMT.Version)
		di.SetContentHook(func(_ *frame.Telegram, records []wmbus.Record, mfct []byte, out *Readout) error {
			seen.records = len(records)
			seen.mfct = mfct
			out.SetText("contents", "block")
			out.SetNumber("voltage", 3.7, units.V)
			if len(mfct) < 4 {
				return hookErr
			}
			return nil
		})
	}}))
	info, _ := reg.Lookup("hooked")

	tg := parse(t, testutil.MustHex(t, "0C13 66380000 0F 150E"))
	out := info.Decode(&tg)
	require.NoError(t, out.Err)
	require.Equal(t, 1, seen.records)
	require.Equal(t, []byte{0x15, 0x0E}, seen.mfct)
	require.Equal(t, seen.mfct, out.ManufacturerData)

	contents, ok := out.Get("contents")
	require.True(t, ok)
	require.Equal(t, "block", contents.Interface())
	voltage, _ := out.Get("voltage")
	require.Equal(t, 3.7, voltage.Interface())
	require.Equal(t, "voltage_v", voltage.OutputName())

	require.Len(t, out.FieldErrors, 1)
	require.ErrorIs(t, out.FieldErrors[0], hookErr)
	require.Equal(t, "field hooked_content: short block", out.FieldErrors[0].Error())
}

func TestDecodeEncryptedPayload(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(testEntry("water", "", detAPA)))
	info, _ := reg.Lookup("water")

	tg, err := frame.Parse(testutil.MustHex(t, "13440106785634120202"+"7A"+"01000005"+"A1B2C3D4E5"))
	require.NoError(t, err)
	out := info.Decode(&tg)
	require.ErrorIs(t, out.Err, frame.ErrEncrypted)
	require.True(t, out.Partial())
	require.Empty(t, out.Fields)
}

func TestReadoutSetKeepsPosition(t *testing.T) {
	r := newReadout("x")
	r.SetNumber("a", 1, units.KWH)
	r.SetText("b", "two")
	r.SetNumber("a", 3, units.KWH)
	require.Len(t, r.Fields, 2)
	require.Equal(t, "a", r.Fields[0].Name)
	require.Equal(t, 3.0, r.Fields[0].Number)
}

func TestZeroReadoutAcceptsValues(t *testing.T) {
	var r Readout
	_, ok := r.Get("a")
	require.False(t, ok)
	r.SetText("a", "one")
	r.SetText("a", "two")
	v, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, "two", v.Text)
	require.Len(t, r.Fields, 1)
}

func TestFieldErrorMessage(t *testing.T) {
	err := &FieldError{Field: "device_date_time", Key: "046D", Err: errors.New("invalid date encoding")}
	require.Equal(t, "field device_date_time (046D): invalid date encoding", err.Error())
}

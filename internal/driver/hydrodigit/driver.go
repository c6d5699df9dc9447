// Package hydrodigit describes the BMT Hydrodigit/Hydrolink water meters. The
// data records carry the totals; alarms, backflow and monthly history live in
// the manufacturer block.
package hydrodigit

import (
	"errors"
	"fmt"
	"math"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

const Name = "hydrodigit"

const (
	deviceTypeWater     = 0x07
	deviceTypeWarmWater = 0x06
	version             = 0x13
)

// Entry registers the driver.
func Entry() driver.Entry {
	return driver.Entry{Name: Name, Define: define}
}

func define(di *driver.Info) {
	di.SetName(Name)
	di.SetMeterType(driver.WaterMeter)
	di.AddLinkMode(driver.LinkT1)
	di.SetDefaultFields("name,id,total,meter_datetime,contents,voltage,backflow,leak_date,timestamp")
	di.AddDetection(frame.ManufacturerBMT, deviceTypeWater, version)
	di.AddDetection(frame.ManufacturerBMT, deviceTypeWarmWater, version)

	di.AddNumericField("total", "The total water consumption recorded by this meter.", driver.PrintDefault,
		units.Volume, wmbus.ScalingAuto, wmbus.Unsigned,
		wmbus.Match().Measurement(wmbus.Instantaneous).Range(wmbus.RangeVolume).Storage(0))
	di.AddStringField("meter_datetime", "Date and time when the meter sent the telegram.", driver.PrintDefault,
		wmbus.Match().Measurement(wmbus.Instantaneous).Range(wmbus.RangeDateTime))

	di.SetContentHook(decodeContent)
}

func decodeContent(_ *frame.Telegram, records []wmbus.Record, mfct []byte, out *driver.Readout) error {
	if len(mfct) == 0 {
		return errors.New("manufacturer data missing")
	}
	data, err := ParseManufacturerData(mfct, volumeScale(records))
	if err != nil {
		return err
	}
	data.apply(out)
	return nil
}

// volumeScale returns the m3 weight of one unit of the current volume record.
func volumeScale(records []wmbus.Record) float64 {
	for i := range records {
		rec := &records[i]
		if rec.Range != wmbus.RangeVolume || rec.Storage != 0 {
			continue
		}
		unit, exp, err := wmbus.VIFScale(rec)
		if err != nil || unit != units.M3 {
			continue
		}
		return math.Pow10(exp)
	}
	return 0
}

func (d Data) apply(out *driver.Readout) {
	if d.Contents != "" {
		out.SetText("contents", d.Contents)
	}
	if d.Voltage > 0 {
		out.SetNumber("voltage", d.Voltage, units.V)
	}
	if d.BackflowM3 > 0 {
		out.SetNumber("backflow", d.BackflowM3, units.M3)
	}
	if d.LeakDate != "" {
		out.SetText("leak_date", d.LeakDate)
	}
	for i, month := range months {
		if v := d.MonthlyTotals[i]; v != 0 {
			out.SetNumber(month+"_total", v, units.M3)
		}
	}
	if d.Variant != VariantExtended {
		return
	}
	out.SetNumber("battery", float64(d.BatteryPercent), units.Percent)
	out.SetNumber("battery_raw", float64(d.BatteryRaw), units.Counter)
	out.SetText("error_bits", fmt.Sprintf("0x%06X", d.ErrorBits))
	out.SetText("section_map", fmt.Sprintf("0x%02X", d.SectionMap))
	s := d.Sections
	if s.HasReverseFlow {
		out.SetNumber("reverse_flow", s.ReverseFlowM3, units.M3)
	}
	if s.EmptyPipeDate != "" {
		out.SetText("empty_pipe_date", s.EmptyPipeDate)
	}
	if s.LeakEventDate != "" {
		out.SetText("leak_event_date", s.LeakEventDate)
	}
	if s.FreezeEventDate != "" {
		out.SetText("freeze_event_date", s.FreezeEventDate)
	}
	for i, v := range s.MonthlyHistory {
		if v != 0 {
			out.SetNumber(months[i]+"_total", v, units.M3)
		}
	}
}

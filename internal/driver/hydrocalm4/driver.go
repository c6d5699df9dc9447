// Package hydrocalm4 describes the BMT Hydrocalm 4 heat/cooling meter.
// Tariff 1 carries the cooling registers and subunits 1 and 2 the pulse
// inputs.
package hydrocalm4

import (
	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

const Name = "hydrocalm4"

const (
	deviceTypeHeatCooling = 0x0D
	version               = 0x1A
)

func Entry() driver.Entry {
	return driver.Entry{Name: Name, Define: define}
}

func define(di *driver.Info) {
	di.SetName(Name)
	di.SetMeterType(driver.HeatCoolingMeter)
	di.AddLinkMode(driver.LinkT1)
	di.AddDetection(frame.ManufacturerBMT, deviceTypeHeatCooling, version)
	di.SetDefaultFields("name,id,total_heating_energy,total_cooling_energy,supply_temperature,return_temperature,power,timestamp")

	const p = driver.PrintDefault
	now := wmbus.Match().Measurement(wmbus.Instantaneous).Storage(0)
	num := func(name, desc string, q units.Quantity, m wmbus.MatchBuilder) {
		di.AddNumericField(name, desc, p, q, wmbus.ScalingAuto, wmbus.Unsigned, m)
	}

	di.AddStringField("device_datetime", "Device date and time.", p, now.Range(wmbus.RangeDateTime))

	num("total_heating_energy", "Heat energy delivered.", units.Energy,
		now.Range(wmbus.RangeAnyEnergy).Tariff(0).Subunit(0))
	num("total_cooling_energy", "Cooling energy delivered.", units.Energy,
		now.Range(wmbus.RangeAnyEnergy).Tariff(1).Subunit(0))

	num("c1_volume", "Volume counted on pulse input 1.", units.Volume,
		now.Range(wmbus.RangeVolume).Subunit(1))
	num("c2_volume", "Volume counted on pulse input 2.", units.Volume,
		now.Range(wmbus.RangeVolume).Subunit(2))
	num("total_heating_volume", "Volume passed while heating.", units.Volume,
		now.Range(wmbus.RangeVolume).Tariff(0))
	num("total_cooling_volume", "Volume passed while cooling.", units.Volume,
		now.Range(wmbus.RangeVolume).Tariff(1))

	num("supply_temperature", "Supply (flow) temperature.", units.Temperature,
		now.Range(wmbus.RangeFlowTemperature))
	num("return_temperature", "Return temperature.", units.Temperature,
		now.Range(wmbus.RangeReturnTemperature))
	num("volume_flow", "Current volume flow.", units.Flow,
		now.Range(wmbus.RangeVolumeFlow))
	num("power", "Current thermal power.", units.Power,
		now.Range(wmbus.RangeAnyPower))
}

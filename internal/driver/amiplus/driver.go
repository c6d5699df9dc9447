// Package amiplus describes the Apator amiplus family of electricity meters
// (Otus 1/3 and relabelled devices).
package amiplus

import (
	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

const Name = "amiplus"

const defaultFields = "name,id,total_energy_consumption,total_energy_consumption_tariff_1," +
	"total_energy_production,total_energy_production_tariff_1,today_energy_consumption," +
	"total_energy_consumption_tariff_1,total_energy_production,total_energy_production_tariff_1," +
	"today_energy_consumption,today_energy_consumption_tariff_1,today_energy_production," +
	"today_energy_production_tariff_1,current_power_consumption,current_power_production," +
	"current_rective_current,current_rective_power,voltage_at_phase_1,voltage_at_phase_2," +
	"voltage_at_phase_3,max_power_consumption,max_power_production,current_at_phase_1," +
	"current_at_phase_2,current_at_phase_3,timestamp"

// Entry registers the driver.
func Entry() driver.Entry {
	return driver.Entry{Name: Name, Define: define}
}

func define(di *driver.Info) {
	di.SetName(Name)
	di.SetDefaultFields(defaultFields)
	di.SetMeterType(driver.ElectricityMeter)
	di.AddLinkMode(driver.LinkT1)
	di.AddDetection(frame.ManufacturerAPA, 0x02, 0x02)
	di.AddDetection(frame.ManufacturerDEV, 0x37, 0x02)
	di.AddDetection(frame.ManufacturerDEV, 0x02, 0x00)
	// Otus 1/3 also transmits frames under APT whose content is unknown; only
	// the APA ones decode with this table.
	di.AddDetection(frame.ManufacturerAPA, 0x02, 0x01)
	di.AddDetection(frame.ManufacturerEGM, 0x02, 0x01)

	const p = driver.PrintDefault
	auto, signed := wmbus.ScalingAuto, wmbus.Signed
	key := func(k string) wmbus.MatchBuilder { return wmbus.Match().Key(k) }

	di.AddStringField("device_date_time", "Device date time.", p,
		wmbus.Match().Measurement(wmbus.Instantaneous).Range(wmbus.RangeDateTime))

	di.AddNumericField("total_energy_consumption", "The total energy consumption recorded by this meter.", p,
		units.Energy, auto, signed, key("0E03"))
	di.AddNumericField("total_energy_consumption_tariff_1", "The total energy consumption recorded by this meter on tariff 1.", p,
		units.Energy, auto, signed, key("8E1003"))
	di.AddNumericField("total_energy_production", "The total energy production recorded by this meter.", p,
		units.Energy, auto, signed, key("0E833C"))
	di.AddNumericField("total_energy_production_tariff_1", "The total energy production recorded by this meter on tariff 1.", p,
		units.Energy, auto, signed, key("8E10833C"))

	di.AddNumericField("total_rective_power_l", "Energia bierna (L)", p,
		units.ReactiveEnergy, auto, signed, key("0EFB8273"))
	di.AddNumericField("total_rective_power_l_tariff_1", "Energia bierna (L) taryfa 1", p,
		units.ReactiveEnergy, auto, signed, key("8E10FB8273"))
	di.AddNumericField("total_rective_power_c", "Energia bierna (C)", p,
		units.ReactiveEnergy, auto, signed, key("0EFB82F33C"))
	di.AddNumericField("total_rective_power_c_tariff_1", "Energia bierna (C) taryfa 1", p,
		units.ReactiveEnergy, auto, signed, key("8E10FB82F33C"))

	di.AddNumericField("current_power_consumption", "Current power consumption.", p,
		units.Power, auto, signed, key("0B2B"))
	di.AddNumericField("current_power_production", "Current power production.", p,
		units.Power, auto, signed, key("0BAB3C"))
	// The meter sends reactive power already in var.
	di.AddNumericField("current_rective_power_l", "Current ractive power (L).", p,
		units.ReactivePower, wmbus.ScalingNone, signed, key("0BFB14"), units.VAR)
	di.AddNumericField("current_rective_power_c", "Current ractive power (C).", p,
		units.ReactivePower, wmbus.ScalingNone, signed, key("0BFB943C"), units.VAR)

	di.AddNumericField("voltage_at_phase_1", "Voltage at phase L1.", p,
		units.Voltage, auto, signed, key("0AFDC8FC01"))
	di.AddNumericField("voltage_at_phase_2", "Voltage at phase L2.", p,
		units.Voltage, auto, signed, key("0AFDC8FC02"))
	di.AddNumericField("voltage_at_phase_3", "Voltage at phase L3.", p,
		units.Voltage, auto, signed, key("0AFDC8FC03"))

	di.AddStringField("device_date_time_1", "Device date time 1.", p, key("146D"))
	// Second binding of device_date_time; it only fills the name when the
	// telegram lacks an instantaneous date-time record or sends this one later.
	di.AddStringField("device_date_time", "Device date time.", p, key("14ED3C"))

	di.AddNumericField("current_at_phase_1", "Instantaneous current in the L1 phase.", p,
		units.Amperage, auto, signed, key("0BFDDAFC01"))
	di.AddNumericField("current_at_phase_2", "Instantaneous current in the L2 phase.", p,
		units.Amperage, auto, signed,
		wmbus.Match().Measurement(wmbus.Instantaneous).Range(wmbus.RangeAmperage).Key("0BFDDAFC02"))
	di.AddNumericField("current_at_phase_3", "Instantaneous current in the L3 phase.", p,
		units.Amperage, auto, signed, key("0BFDDAFC03"))
}

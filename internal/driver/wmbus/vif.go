package wmbus

import (
	"encoding/hex"
	"strings"

	"github.com/witoldo7/gowmbus/internal/units"
)

// MeasurementType is the DIF function field of a record.
type MeasurementType int

const (
	MeasurementAny MeasurementType = iota
	Instantaneous
	Maximum
	Minimum
	AtError
)

func (m MeasurementType) String() string {
	switch m {
	case Instantaneous:
		return "instantaneous"
	case Maximum:
		return "maximum"
	case Minimum:
		return "minimum"
	case AtError:
		return "at_error"
	default:
		return "any"
	}
}

// ParseMeasurementType accepts the names produced by MeasurementType.String.
func ParseMeasurementType(s string) (MeasurementType, bool) {
	for _, m := range []MeasurementType{MeasurementAny, Instantaneous, Maximum, Minimum, AtError} {
		if m.String() == strings.ToLower(strings.TrimSpace(s)) {
			return m, true
		}
	}
	return MeasurementAny, false
}

func measurementFromDIF(dif byte) MeasurementType {
	switch (dif >> 4) & 0x03 {
	case 0x01:
		return Maximum
	case 0x02:
		return Minimum
	case 0x03:
		return AtError
	default:
		return Instantaneous
	}
}

// VIFCode identifies a value information code across the primary table
// (0x00-0x7F) and the 0xFB / 0xFD extension tables (0x7Bxx / 0x7Dxx).
type VIFCode uint16

const (
	vifPlainText    VIFCode = 0x7C
	vifAny          VIFCode = 0x7E
	vifManufacturer VIFCode = 0x7F

	vifEscapeFB = 0xFB
	vifEscapeFD = 0xFD
	vifEscapeEF = 0xEF
)

// VIFRange classifies a VIF code by the physical quantity it carries,
// independent of the exponent bits.
type VIFRange int

const (
	RangeAny VIFRange = iota
	RangeUnknown
	RangeEnergyWh
	RangeEnergyMJ
	RangeEnergyMWh
	RangeEnergyGJ
	RangeReactiveEnergy
	RangeVolume
	RangeMass
	RangeOnTime
	RangeOperatingTime
	RangePowerW
	RangePowerJh
	RangeReactivePower
	RangeVolumeFlow
	RangeFlowTemperature
	RangeReturnTemperature
	RangeTemperatureDifference
	RangeExternalTemperature
	RangePressure
	RangeDate
	RangeDateTime
	RangeHeatCostAllocation
	RangeAveragingDuration
	RangeActualityDuration
	RangeFabricationNo
	RangeEnhancedIdentification
	RangeBusAddress
	RangeFirmwareVersion
	RangeSoftwareVersion
	RangeErrorFlags
	RangeDimensionless
	RangeVoltage
	RangeAmperage
	RangePlainText
	RangeAnyVIF
	RangeManufacturerSpecific

	// Composite ranges used only in matchers.
	RangeAnyEnergy
	RangeAnyPower
)

var rangeNames = map[VIFRange]string{
	RangeAny:                    "Any",
	RangeUnknown:                "Unknown",
	RangeEnergyWh:               "EnergyWh",
	RangeEnergyMJ:               "EnergyMJ",
	RangeEnergyMWh:              "EnergyMWh",
	RangeEnergyGJ:               "EnergyGJ",
	RangeReactiveEnergy:         "ReactiveEnergy",
	RangeVolume:                 "Volume",
	RangeMass:                   "Mass",
	RangeOnTime:                 "OnTime",
	RangeOperatingTime:          "OperatingTime",
	RangePowerW:                 "PowerW",
	RangePowerJh:                "PowerJh",
	RangeReactivePower:          "ReactivePower",
	RangeVolumeFlow:             "VolumeFlow",
	RangeFlowTemperature:        "FlowTemperature",
	RangeReturnTemperature:      "ReturnTemperature",
	RangeTemperatureDifference:  "TemperatureDifference",
	RangeExternalTemperature:    "ExternalTemperature",
	RangePressure:               "Pressure",
	RangeDate:                   "Date",
	RangeDateTime:               "DateTime",
	RangeHeatCostAllocation:     "HeatCostAllocation",
	RangeAveragingDuration:      "AveragingDuration",
	RangeActualityDuration:      "ActualityDuration",
	RangeFabricationNo:          "FabricationNo",
	RangeEnhancedIdentification: "EnhancedIdentification",
	RangeBusAddress:             "BusAddress",
	RangeFirmwareVersion:        "FirmwareVersion",
	RangeSoftwareVersion:        "SoftwareVersion",
	RangeErrorFlags:             "ErrorFlags",
	RangeDimensionless:          "Dimensionless",
	RangeVoltage:                "Voltage",
	RangeAmperage:               "Amperage",
	RangePlainText:              "PlainText",
	RangeAnyVIF:                 "AnyVIF",
	RangeManufacturerSpecific:   "ManufacturerSpecific",
	RangeAnyEnergy:              "AnyEnergy",
	RangeAnyPower:               "AnyPower",
}

func (r VIFRange) String() string {
	if s, ok := rangeNames[r]; ok {
		return s
	}
	return "Unknown"
}

// ParseVIFRange accepts the names produced by VIFRange.String.
func ParseVIFRange(s string) (VIFRange, bool) {
	for r, name := range rangeNames {
		if name == s {
			return r, true
		}
	}
	return RangeUnknown, false
}

// Contains reports whether a record classified as other satisfies r.
func (r VIFRange) Contains(other VIFRange) bool {
	switch r {
	case RangeAny:
		return true
	case RangeAnyEnergy:
		return other == RangeEnergyWh || other == RangeEnergyMJ || other == RangeEnergyMWh || other == RangeEnergyGJ
	case RangeAnyPower:
		return other == RangePowerW || other == RangePowerJh
	default:
		return r == other
	}
}

type vifEntry struct {
	from, to VIFCode
	rng      VIFRange
	quantity units.Quantity
	unit     units.Unit
	// exponent of the lowest code in the range, relative to unit.
	bias int
	// duration ranges encode the unit in the two low bits instead of an exponent.
	duration bool
}

var vifTable = []vifEntry{
	{0x00, 0x07, RangeEnergyWh, units.Energy, units.KWH, -6, false},
	{0x08, 0x0F, RangeEnergyMJ, units.Energy, units.MJ, -6, false},
	{0x10, 0x17, RangeVolume, units.Volume, units.M3, -6, false},
	{0x18, 0x1F, RangeMass, units.Mass, units.KG, -3, false},
	{0x20, 0x23, RangeOnTime, units.Time, units.Second, 0, true},
	{0x24, 0x27, RangeOperatingTime, units.Time, units.Second, 0, true},
	{0x28, 0x2F, RangePowerW, units.Power, units.KW, -6, false},
	{0x30, 0x37, RangePowerJh, units.Power, units.MJH, -6, false},
	{0x38, 0x3F, RangeVolumeFlow, units.Flow, units.M3H, -6, false},
	{0x58, 0x5B, RangeFlowTemperature, units.Temperature, units.C, -3, false},
	{0x5C, 0x5F, RangeReturnTemperature, units.Temperature, units.C, -3, false},
	{0x60, 0x63, RangeTemperatureDifference, units.Temperature, units.C, -3, false},
	{0x64, 0x67, RangeExternalTemperature, units.Temperature, units.C, -3, false},
	{0x68, 0x6B, RangePressure, units.Pressure, units.BAR, -3, false},
	{0x6C, 0x6C, RangeDate, units.PointInTime, units.Date, 0, false},
	{0x6D, 0x6D, RangeDateTime, units.PointInTime, units.DateTime, 0, false},
	{0x6E, 0x6E, RangeHeatCostAllocation, units.Dimensionless, units.Counter, 0, false},
	{0x70, 0x73, RangeAveragingDuration, units.Time, units.Second, 0, true},
	{0x74, 0x77, RangeActualityDuration, units.Time, units.Second, 0, true},
	{0x78, 0x78, RangeFabricationNo, units.Dimensionless, units.Counter, 0, false},
	{0x79, 0x79, RangeEnhancedIdentification, units.Dimensionless, units.Counter, 0, false},
	{0x7A, 0x7A, RangeBusAddress, units.Dimensionless, units.Counter, 0, false},
	{vifPlainText, vifPlainText, RangePlainText, units.Text, units.TextUnit, 0, false},
	{vifAny, vifAny, RangeAnyVIF, units.QuantityUnknown, units.UnitUnknown, 0, false},
	{vifManufacturer, vifManufacturer, RangeManufacturerSpecific, units.QuantityUnknown, units.UnitUnknown, 0, false},

	{0x7B00, 0x7B01, RangeEnergyMWh, units.Energy, units.MWH, -1, false},
	{0x7B02, 0x7B03, RangeReactiveEnergy, units.ReactiveEnergy, units.KVARH, 0, false},
	{0x7B08, 0x7B09, RangeEnergyGJ, units.Energy, units.GJ, -1, false},
	{0x7B14, 0x7B17, RangeReactivePower, units.ReactivePower, units.KVAR, -3, false},

	{0x7D0E, 0x7D0E, RangeFirmwareVersion, units.Text, units.TextUnit, 0, false},
	{0x7D0F, 0x7D0F, RangeSoftwareVersion, units.Text, units.TextUnit, 0, false},
	{0x7D17, 0x7D17, RangeErrorFlags, units.Dimensionless, units.Counter, 0, false},
	{0x7D3A, 0x7D3A, RangeDimensionless, units.Dimensionless, units.Counter, 0, false},
	{0x7D40, 0x7D4F, RangeVoltage, units.Voltage, units.V, -9, false},
	{0x7D50, 0x7D5F, RangeAmperage, units.Amperage, units.A, -12, false},
}

var durationUnits = [4]units.Unit{units.Second, units.Minute, units.Hour, units.Day}

func lookupVIF(code VIFCode) (vifEntry, bool) {
	for _, e := range vifTable {
		if code >= e.from && code <= e.to {
			return e, true
		}
	}
	return vifEntry{}, false
}

// scaling returns the unit and decimal exponent the raw value of code is
// expressed in.
func (e vifEntry) scaling(code VIFCode) (units.Unit, int) {
	n := int(code - e.from)
	if e.duration {
		return durationUnits[n&0x03], 0
	}
	return e.unit, n + e.bias
}

// Combinable is an orthogonal VIFE that refines a record's meaning. Codes
// reached through the 0xFC extension are stored as 0x7Cxx.
type Combinable uint16

const (
	CombinableForwardFlow  Combinable = 0x3B
	CombinableBackwardFlow Combinable = 0x3C
	CombinablePhaseL1      Combinable = 0x7C01
	CombinablePhaseL2      Combinable = 0x7C02
	CombinablePhaseL3      Combinable = 0x7C03
)

var combinableNames = map[Combinable]string{
	CombinableForwardFlow:  "ForwardFlow",
	CombinableBackwardFlow: "BackwardFlow",
	CombinablePhaseL1:      "PhaseL1",
	CombinablePhaseL2:      "PhaseL2",
	CombinablePhaseL3:      "PhaseL3",
}

func (c Combinable) String() string {
	if s, ok := combinableNames[c]; ok {
		return s
	}
	return "Combinable(0x" + hexUpper([]byte{byte(c >> 8), byte(c)}) + ")"
}

// ParseCombinable accepts the names produced by Combinable.String.
func ParseCombinable(s string) (Combinable, bool) {
	for c, name := range combinableNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// vifMeaning is the decoded content of a VIF/VIFE chain.
type vifMeaning struct {
	code        VIFCode
	rng         VIFRange
	combinables []Combinable
	// correction is an extra decimal exponent from multiplicative VIFEs.
	correction int
}

// interpretVIF decodes the meaning of a complete VIF chain. vife holds the
// extension bytes in wire order.
func interpretVIF(vif byte, vife []byte) vifMeaning {
	var m vifMeaning
	rest := vife
	switch vif {
	case vifEscapeFB, vifEscapeFD:
		if len(rest) == 0 {
			m.code, m.rng = VIFCode(vif), RangeUnknown
			return m
		}
		table := VIFCode(0x7B00)
		if vif == vifEscapeFD {
			table = 0x7D00
		}
		m.code = table | VIFCode(rest[0]&0x7F)
		rest = rest[1:]
	case vifEscapeEF:
		m.code, m.rng = VIFCode(vif), RangeUnknown
		return m
	default:
		m.code = VIFCode(vif & 0x7F)
	}
	if e, ok := lookupVIF(m.code); ok {
		m.rng = e.rng
	} else {
		m.rng = RangeUnknown
	}
	if m.code == vifManufacturer {
		return m
	}
	for i := 0; i < len(rest); i++ {
		c := rest[i] & 0x7F
		switch {
		case c >= 0x70 && c <= 0x77:
			m.correction += int(c&0x07) - 6
		case c == 0x7D:
			m.correction += 3
		case c == 0x7C && i+1 < len(rest):
			i++
			m.combinables = append(m.combinables, Combinable(0x7C00|uint16(rest[i]&0x7F)))
		case c == 0x7F:
			// Manufacturer specific VIFEs follow; their meaning is private.
			return m
		default:
			m.combinables = append(m.combinables, Combinable(c))
		}
	}
	return m
}

func hexUpper(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

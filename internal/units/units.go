package units

import (
	"fmt"
	"strings"
)

// Quantity is the physical kind a field measures.
type Quantity int

const (
	QuantityUnknown Quantity = iota
	Energy
	ReactiveEnergy
	Power
	ReactivePower
	Volume
	Flow
	Temperature
	Voltage
	Amperage
	Mass
	Pressure
	Time
	PointInTime
	Dimensionless
	Text
)

var quantityNames = map[Quantity]string{
	Energy:         "energy",
	ReactiveEnergy: "reactive_energy",
	Power:          "power",
	ReactivePower:  "reactive_power",
	Volume:         "volume",
	Flow:           "flow",
	Temperature:    "temperature",
	Voltage:        "voltage",
	Amperage:       "amperage",
	Mass:           "mass",
	Pressure:       "pressure",
	Time:           "time",
	PointInTime:    "point_in_time",
	Dimensionless:  "dimensionless",
	Text:           "text",
}

func (q Quantity) String() string {
	if s, ok := quantityNames[q]; ok {
		return s
	}
	return "unknown"
}

// DefaultUnit is the unit values of this quantity are reported in unless a
// field asks for another one.
func (q Quantity) DefaultUnit() Unit {
	switch q {
	case Energy:
		return KWH
	case ReactiveEnergy:
		return KVARH
	case Power:
		return KW
	case ReactivePower:
		return KVAR
	case Volume:
		return M3
	case Flow:
		return M3H
	case Temperature:
		return C
	case Voltage:
		return V
	case Amperage:
		return A
	case Mass:
		return KG
	case Pressure:
		return BAR
	case Time:
		return Hour
	case PointInTime:
		return DateTime
	case Dimensionless:
		return Counter
	case Text:
		return TextUnit
	default:
		return UnitUnknown
	}
}

// ParseQuantity accepts the names produced by Quantity.String.
func ParseQuantity(s string) (Quantity, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for q, name := range quantityNames {
		if name == want {
			return q, nil
		}
	}
	return QuantityUnknown, fmt.Errorf("unknown quantity %q", s)
}

// Unit identifies a concrete unit of measurement.
type Unit int

const (
	UnitUnknown Unit = iota
	KWH
	MWH
	MJ
	GJ
	KVARH
	W
	KW
	MJH
	VAR
	KVAR
	M3
	L
	M3H
	C
	V
	A
	KG
	BAR
	Second
	Minute
	Hour
	Day
	Counter
	DateTime
	Date
	TextUnit
	Percent
)

type unitInfo struct {
	suffix   string
	quantity Quantity
	// factor converts one of this unit into the quantity's default unit.
	factor float64
}

var unitTable = map[Unit]unitInfo{
	KWH:      {"kwh", Energy, 1},
	MWH:      {"mwh", Energy, 1000},
	MJ:       {"mj", Energy, 1 / 3.6},
	GJ:       {"gj", Energy, 1000 / 3.6},
	KVARH:    {"kvarh", ReactiveEnergy, 1},
	W:        {"w", Power, 0.001},
	KW:       {"kw", Power, 1},
	MJH:      {"mjh", Power, 1 / 3.6},
	VAR:      {"var", ReactivePower, 0.001},
	KVAR:     {"kvar", ReactivePower, 1},
	M3:       {"m3", Volume, 1},
	L:        {"l", Volume, 0.001},
	M3H:      {"m3h", Flow, 1},
	C:        {"c", Temperature, 1},
	V:        {"v", Voltage, 1},
	A:        {"a", Amperage, 1},
	KG:       {"kg", Mass, 1},
	BAR:      {"bar", Pressure, 1},
	Second:   {"s", Time, 1.0 / 3600},
	Minute:   {"min", Time, 1.0 / 60},
	Hour:     {"h", Time, 1},
	Day:      {"d", Time, 24},
	Counter:  {"counter", Dimensionless, 1},
	DateTime: {"datetime", PointInTime, 1},
	Date:     {"date", PointInTime, 1},
	TextUnit: {"txt", Text, 1},
	Percent:  {"pct", Dimensionless, 1},
}

// Suffix is the lowercase tag appended to numeric field names in JSON output.
func (u Unit) Suffix() string {
	if info, ok := unitTable[u]; ok {
		return info.suffix
	}
	return "unknown"
}

func (u Unit) String() string { return u.Suffix() }

// Quantity returns the quantity this unit belongs to.
func (u Unit) Quantity() Quantity {
	return unitTable[u].quantity
}

// ParseUnit accepts the suffixes produced by Unit.Suffix.
func ParseUnit(s string) (Unit, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for u, info := range unitTable {
		if info.suffix == want {
			return u, nil
		}
	}
	return UnitUnknown, fmt.Errorf("unknown unit %q", s)
}

// CanConvert reports whether values in from can be expressed in to.
func CanConvert(from, to Unit) bool {
	fi, okf := unitTable[from]
	ti, okt := unitTable[to]
	return okf && okt && fi.quantity == ti.quantity
}

// Convert expresses v, given in from, in the unit to. Units of different
// quantities cannot be converted.
func Convert(v float64, from, to Unit) (float64, error) {
	if from == to {
		return v, nil
	}
	if !CanConvert(from, to) {
		return 0, fmt.Errorf("cannot convert %s to %s", from, to)
	}
	return v * unitTable[from].factor / unitTable[to].factor, nil
}

package driver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

// MeterType is the broad category a driver reports.
type MeterType int

const (
	UnknownMeter MeterType = iota
	ElectricityMeter
	WaterMeter
	WarmWaterMeter
	HeatMeter
	HeatCoolingMeter
)

var meterTypeNames = map[MeterType]string{
	UnknownMeter:     "unknown",
	ElectricityMeter: "electricity",
	WaterMeter:       "water",
	WarmWaterMeter:   "warm water",
	HeatMeter:        "heat",
	HeatCoolingMeter: "heat/cooling load",
}

func (m MeterType) String() string {
	if s, ok := meterTypeNames[m]; ok {
		return s
	}
	return "unknown"
}

// ParseMeterType accepts the names produced by MeterType.String.
func ParseMeterType(s string) (MeterType, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for m, name := range meterTypeNames {
		if name == want {
			return m, nil
		}
	}
	return UnknownMeter, fmt.Errorf("unknown meter type %q", s)
}

// LinkMode is a radio link mode the meter transmits in.
type LinkMode int

const (
	LinkT1 LinkMode = iota + 1
	LinkC1
	LinkS1
)

var linkModeNames = map[LinkMode]string{
	LinkT1: "T1",
	LinkC1: "C1",
	LinkS1: "S1",
}

func (l LinkMode) String() string {
	if s, ok := linkModeNames[l]; ok {
		return s
	}
	return "unknown"
}

// ParseLinkMode accepts the names produced by LinkMode.String.
func ParseLinkMode(s string) (LinkMode, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for l, name := range linkModeNames {
		if name == want {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown link mode %q", s)
}

// Detection is a (manufacturer, device type, version) triple that routes a
// telegram to a driver.
type Detection struct {
	Manufacturer uint16
	DeviceType   byte
	Version      byte
}

func (d Detection) String() string {
	return fmt.Sprintf("%s/0x%02X/0x%02X", frame.ManufacturerCode(d.Manufacturer), d.DeviceType, d.Version)
}

// PrintProperties control how a field shows up in rendered output.
type PrintProperties uint

const (
	PrintDefault PrintProperties = 0
	// PrintRequired fields render as null when the telegram lacked them.
	PrintRequired PrintProperties = 1 << 0
	// PrintHidden fields are decoded but left out of the rendered telegram.
	PrintHidden PrintProperties = 1 << 1
)

// Has reports whether every property in q is set.
func (p PrintProperties) Has(q PrintProperties) bool { return p&q == q }

// FieldKind tells numeric fields from string fields.
type FieldKind int

const (
	NumericField FieldKind = iota
	StringField
)

// FieldDef is one output field of a driver: its name, how records are matched
// and how the value is extracted.
type FieldDef struct {
	Name        string
	Description string
	Print       PrintProperties
	Kind        FieldKind
	Numeric     wmbus.Numeric
	Matcher     wmbus.FieldMatcher
}

// OutputName is the rendered name of the field's value in its target unit.
func (f FieldDef) OutputName() string {
	unit := f.Numeric.TargetUnit()
	if f.Kind == StringField || unit == units.UnitUnknown {
		return f.Name
	}
	return f.Name + "_" + unit.Suffix()
}

// ContentHook decodes driver specific content that data records cannot
// describe, such as a manufacturer block. It runs after the record walk.
type ContentHook func(t *frame.Telegram, records []wmbus.Record, mfct []byte, out *Readout) error

// Info is a driver definition. It is filled once by an Entry's Define
// function and read-only after registration.
type Info struct {
	name          string
	meterType     MeterType
	linkModes     []LinkMode
	detections    []Detection
	defaultFields []string
	fields        []FieldDef
	hook          ContentHook

	errs []error
}

func (i *Info) SetName(name string) { i.name = strings.TrimSpace(name) }

func (i *Info) SetMeterType(m MeterType) { i.meterType = m }

func (i *Info) AddLinkMode(l LinkMode) { i.linkModes = append(i.linkModes, l) }

func (i *Info) AddDetection(manufacturer uint16, deviceType, version byte) {
	i.detections = append(i.detections, Detection{
		Manufacturer: manufacturer,
		DeviceType:   deviceType,
		Version:      version,
	})
}

// SetDefaultFields takes a comma separated list of output names.
func (i *Info) SetDefaultFields(csv string) {
	i.defaultFields = i.defaultFields[:0]
	for _, name := range strings.Split(csv, ",") {
		if name = strings.TrimSpace(name); name != "" {
			i.defaultFields = append(i.defaultFields, name)
		}
	}
}

// SetContentHook installs a hook that sees the records and the manufacturer
// block after the generic walk.
func (i *Info) SetContentHook(h ContentHook) { i.hook = h }

// AddNumericField registers a numeric field. unit is required when scaling is
// ScalingNone and optional otherwise.
func (i *Info) AddNumericField(name, description string, print PrintProperties,
	quantity units.Quantity, scaling wmbus.Scaling, sign wmbus.Signedness,
	match wmbus.MatchBuilder, unit ...units.Unit) {
	num := wmbus.Numeric{Quantity: quantity, Scaling: scaling, Signedness: sign}
	if len(unit) > 0 {
		num.Unit = unit[0]
	}
	switch {
	case num.Unit != units.UnitUnknown && num.Unit.Quantity() != quantity:
		i.errs = append(i.errs, fmt.Errorf("field %s: unit %s is not a %s unit", name, num.Unit, quantity))
		return
	case scaling == wmbus.ScalingNone && num.Unit == units.UnitUnknown && quantity.DefaultUnit() == units.UnitUnknown:
		i.errs = append(i.errs, fmt.Errorf("field %s: unscaled field needs an explicit unit", name))
		return
	}
	i.addField(FieldDef{
		Name:        name,
		Description: description,
		Print:       print,
		Kind:        NumericField,
		Numeric:     num,
	}, match)
}

// AddStringField registers a text or timestamp field.
func (i *Info) AddStringField(name, description string, print PrintProperties, match wmbus.MatchBuilder) {
	i.addField(FieldDef{
		Name:        name,
		Description: description,
		Print:       print,
		Kind:        StringField,
	}, match)
}

func (i *Info) addField(def FieldDef, match wmbus.MatchBuilder) {
	if strings.TrimSpace(def.Name) == "" {
		i.errs = append(i.errs, errors.New("field without a name"))
		return
	}
	m, err := match.Build()
	if err != nil {
		i.errs = append(i.errs, fmt.Errorf("field %s: %w", def.Name, err))
		return
	}
	def.Matcher = m
	i.fields = append(i.fields, def)
}

func (i *Info) validate() error {
	errs := append([]error(nil), i.errs...)
	if i.name == "" {
		errs = append(errs, errors.New("driver without a name"))
	}
	if len(i.detections) == 0 {
		errs = append(errs, errors.New("driver without detections"))
	}
	if len(i.fields) == 0 && i.hook == nil {
		errs = append(errs, errors.New("driver without fields"))
	}
	if err := errors.Join(errs...); err != nil {
		if i.name != "" {
			return fmt.Errorf("driver %s: %w", i.name, err)
		}
		return err
	}
	return nil
}

func (i *Info) Name() string { return i.name }

func (i *Info) MeterType() MeterType { return i.meterType }

func (i *Info) LinkModes() []LinkMode { return append([]LinkMode(nil), i.linkModes...) }

func (i *Info) Detections() []Detection { return append([]Detection(nil), i.detections...) }

func (i *Info) DefaultFields() []string { return append([]string(nil), i.defaultFields...) }

func (i *Info) Fields() []FieldDef { return append([]FieldDef(nil), i.fields...) }

// Detects reports whether the header triple is one of the driver's detections.
func (i *Info) Detects(manufacturer uint16, deviceType, version byte) bool {
	for _, d := range i.detections {
		if d.Manufacturer == manufacturer && d.DeviceType == deviceType && d.Version == version {
			return true
		}
	}
	return false
}

// Entry is a driver factory fed to a Registry at startup.
type Entry struct {
	Name   string
	Define func(*Info)
}

// Package driverdef loads driver tables from YAML files, so meters that need
// no content hook can be supported without recompiling.
package driverdef

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

//go:embed schema/driver-v1.json
var driverSchemaJSON string

// Definition is the file format.
type Definition struct {
	Name          string         `yaml:"name"`
	MeterType     string         `yaml:"meter_type"`
	LinkModes     []string       `yaml:"link_modes"`
	DefaultFields string         `yaml:"default_fields"`
	Detections    []DetectionDef `yaml:"detections"`
	Fields        []FieldDef     `yaml:"fields"`
}

type DetectionDef struct {
	Manufacturer string `yaml:"manufacturer"`
	DeviceType   int    `yaml:"device_type"`
	Version      int    `yaml:"version"`
}

type FieldDef struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Kind        string   `yaml:"kind"`
	Quantity    string   `yaml:"quantity"`
	Unit        string   `yaml:"unit"`
	Scaling     string   `yaml:"scaling"`
	Signed      bool     `yaml:"signed"`
	Print       []string `yaml:"print"`
	Match       MatchDef `yaml:"match"`
}

// MatchDef mirrors wmbus.MatchBuilder. Storage and tariff take a number or a
// [from, to] pair.
type MatchDef struct {
	Key         string    `yaml:"key"`
	Measurement string    `yaml:"measurement"`
	Range       string    `yaml:"range"`
	Storage     yaml.Node `yaml:"storage"`
	Tariff      yaml.Node `yaml:"tariff"`
	Subunit     *int      `yaml:"subunit"`
	Combinables []string  `yaml:"combinables"`
}

// Loader validates and converts definition files.
type Loader struct {
	schema *jsonschema.Schema
}

// NewLoader compiles the embedded schema.
func NewLoader() (*Loader, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("driver-v1.json", strings.NewReader(driverSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add driver schema: %w", err)
	}
	schema, err := compiler.Compile("driver-v1.json")
	if err != nil {
		return nil, fmt.Errorf("compile driver schema: %w", err)
	}
	return &Loader{schema: schema}, nil
}

// Parse validates one YAML document and returns the driver entry it
// describes.
func (l *Loader) Parse(data []byte) (driver.Entry, error) {
	if err := l.validate(data); err != nil {
		return driver.Entry{}, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return driver.Entry{}, fmt.Errorf("decode driver definition: %w", err)
	}
	return def.Entry()
}

// validate checks the document against the schema. The YAML tree is passed
// through JSON so the validator sees JSON types.
func (l *Loader) validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("driver definition is not JSON compatible: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := l.schema.Validate(generic); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// LoadFile parses one definition file.
func (l *Loader) LoadFile(path string) (driver.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return driver.Entry{}, err
	}
	entry, err := l.Parse(data)
	if err != nil {
		return driver.Entry{}, fmt.Errorf("%s: %w", path, err)
	}
	return entry, nil
}

// LoadPaths loads every *.yaml and *.yml file of the given directories, in
// name order. Plain file paths are accepted as well. Missing directories are
// skipped; broken files are reported together.
func (l *Loader) LoadPaths(paths ...string) ([]driver.Entry, error) {
	var files []string
	for _, p := range paths {
		st, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			files = append(files, p)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(p, "*.y*ml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		for _, m := range matches {
			if ext := filepath.Ext(m); ext == ".yaml" || ext == ".yml" {
				files = append(files, m)
			}
		}
	}

	var entries []driver.Entry
	var errs []error
	for _, f := range files {
		entry, err := l.LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, errors.Join(errs...)
}

type resolvedField struct {
	def     FieldDef
	numeric bool
	q       units.Quantity
	unit    []units.Unit
	scaling wmbus.Scaling
	sign    wmbus.Signedness
	print   driver.PrintProperties
	match   wmbus.MatchBuilder
}

// Entry resolves every name in the definition. Errors that only the registry
// can detect (for example an invalid key) surface from Registry.Register.
func (d Definition) Entry() (driver.Entry, error) {
	var errs []error
	meterType := driver.UnknownMeter
	if d.MeterType != "" {
		m, err := driver.ParseMeterType(d.MeterType)
		if err != nil {
			errs = append(errs, err)
		}
		meterType = m
	}
	var links []driver.LinkMode
	for _, s := range d.LinkModes {
		l, err := driver.ParseLinkMode(s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		links = append(links, l)
	}
	var detections []driver.Detection
	for _, det := range d.Detections {
		mfct, err := frame.ManufacturerID(det.Manufacturer)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		detections = append(detections, driver.Detection{
			Manufacturer: mfct,
			DeviceType:   byte(det.DeviceType),
			Version:      byte(det.Version),
		})
	}
	fields := make([]resolvedField, 0, len(d.Fields))
	for _, f := range d.Fields {
		rf, err := resolveField(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", f.Name, err))
			continue
		}
		fields = append(fields, rf)
	}
	if err := errors.Join(errs...); err != nil {
		return driver.Entry{}, fmt.Errorf("driver %s: %w", d.Name, err)
	}

	name := d.Name
	return driver.Entry{Name: name, Define: func(di *driver.Info) {
		di.SetName(name)
		di.SetMeterType(meterType)
		for _, l := range links {
			di.AddLinkMode(l)
		}
		for _, det := range detections {
			di.AddDetection(det.Manufacturer, det.DeviceType, det.Version)
		}
		if d.DefaultFields != "" {
			di.SetDefaultFields(d.DefaultFields)
		}
		for _, f := range fields {
			if !f.numeric {
				di.AddStringField(f.def.Name, f.def.Description, f.print, f.match)
				continue
			}
			di.AddNumericField(f.def.Name, f.def.Description, f.print,
				f.q, f.scaling, f.sign, f.match, f.unit...)
		}
	}}, nil
}

func resolveField(f FieldDef) (resolvedField, error) {
	rf := resolvedField{def: f, sign: wmbus.Unsigned}
	if f.Signed {
		rf.sign = wmbus.Signed
	}
	for _, p := range f.Print {
		switch p {
		case "required":
			rf.print |= driver.PrintRequired
		case "hidden":
			rf.print |= driver.PrintHidden
		default:
			return rf, fmt.Errorf("unknown print property %q", p)
		}
	}
	if f.Scaling == "none" {
		rf.scaling = wmbus.ScalingNone
	}
	switch f.Kind {
	case "string":
	case "", "numeric":
		rf.numeric = true
		q, err := units.ParseQuantity(f.Quantity)
		if err != nil {
			return rf, err
		}
		rf.q = q
		if f.Unit != "" {
			u, err := units.ParseUnit(f.Unit)
			if err != nil {
				return rf, err
			}
			rf.unit = []units.Unit{u}
		}
	default:
		return rf, fmt.Errorf("unknown kind %q", f.Kind)
	}

	m, err := f.Match.builder()
	if err != nil {
		return rf, err
	}
	rf.match = m
	return rf, nil
}

func (m MatchDef) builder() (wmbus.MatchBuilder, error) {
	b := wmbus.Match()
	if m.Key != "" {
		b = b.Key(m.Key)
	}
	if m.Measurement != "" {
		mt, ok := wmbus.ParseMeasurementType(m.Measurement)
		if !ok {
			return b, fmt.Errorf("unknown measurement %q", m.Measurement)
		}
		b = b.Measurement(mt)
	}
	if m.Range != "" {
		r, ok := wmbus.ParseVIFRange(m.Range)
		if !ok {
			return b, fmt.Errorf("unknown range %q", m.Range)
		}
		b = b.Range(r)
	}
	if from, to, ok, err := span(m.Storage); err != nil {
		return b, fmt.Errorf("storage: %w", err)
	} else if ok {
		b = b.StorageRange(from, to)
	}
	if from, to, ok, err := span(m.Tariff); err != nil {
		return b, fmt.Errorf("tariff: %w", err)
	} else if ok {
		b = b.TariffRange(from, to)
	}
	if m.Subunit != nil {
		b = b.Subunit(*m.Subunit)
	}
	for _, name := range m.Combinables {
		c, ok := wmbus.ParseCombinable(name)
		if !ok {
			return b, fmt.Errorf("unknown combinable %q", name)
		}
		b = b.With(c)
	}
	return b, nil
}

// span decodes "3" or "[0, 7]".
func span(n yaml.Node) (from, to int, ok bool, err error) {
	switch n.Kind {
	case 0:
		return 0, 0, false, nil
	case yaml.ScalarNode:
		var v int
		if err := n.Decode(&v); err != nil {
			return 0, 0, false, err
		}
		return v, v, true, nil
	case yaml.SequenceNode:
		var pair []int
		if err := n.Decode(&pair); err != nil {
			return 0, 0, false, err
		}
		if len(pair) != 2 {
			return 0, 0, false, fmt.Errorf("want [from, to], got %d values", len(pair))
		}
		return pair[0], pair[1], true, nil
	default:
		return 0, 0, false, fmt.Errorf("want a number or [from, to]")
	}
}

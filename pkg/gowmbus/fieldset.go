package gowmbus

import (
	"fmt"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/units"
)

// FieldSet offers typed access to a result, either by rendered output name
// ("total_m3") or by field name ("total").
type FieldSet struct {
	data    map[string]any
	readout *driver.Readout
}

// FieldSet returns a FieldSet wrapper for the result.
func (r Result) FieldSet() FieldSet {
	return FieldSet{data: r.Fields, readout: r.Readout}
}

// Map exposes the rendered map for callers that still need raw access.
func (fs FieldSet) Map() map[string]any {
	return fs.data
}

// Raw returns the rendered value without conversions.
func (fs FieldSet) Raw(key string) (any, bool) {
	if fs.data == nil {
		return nil, false
	}
	v, ok := fs.data[key]
	return v, ok
}

// Value returns the decoded value bound to a field name.
func (fs FieldSet) Value(name string) (driver.Value, bool) {
	if fs.readout == nil {
		return driver.Value{}, false
	}
	return fs.readout.Get(name)
}

// Float returns a numeric field. key may be an output name or a field name.
func (fs FieldSet) Float(key string) (float64, error) {
	if v, ok := fs.Value(key); ok {
		if v.Kind != driver.NumericField {
			return 0, fmt.Errorf("field %q is not numeric", key)
		}
		return v.Number, nil
	}
	raw, ok := fs.Raw(key)
	if !ok {
		return 0, fmt.Errorf("field %q missing", key)
	}
	f, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("field %q has unsupported type %T", key, raw)
	}
	return f, nil
}

// In returns a numeric field converted to unit.
func (fs FieldSet) In(name string, unit units.Unit) (float64, error) {
	v, ok := fs.Value(name)
	if !ok {
		return 0, fmt.Errorf("field %q missing", name)
	}
	if v.Kind != driver.NumericField {
		return 0, fmt.Errorf("field %q is not numeric", name)
	}
	return units.Convert(v.Number, v.Unit, unit)
}

// String returns a text field, or any other field formatted with %v.
func (fs FieldSet) String(key string) (string, error) {
	if v, ok := fs.Value(key); ok && v.Kind == driver.StringField {
		return v.Text, nil
	}
	raw, ok := fs.Raw(key)
	if !ok {
		return "", fmt.Errorf("field %q missing", key)
	}
	if s, ok := raw.(string); ok {
		return s, nil
	}
	return fmt.Sprintf("%v", raw), nil
}

// Bool reports a status flag; absent flags are false.
func (fs FieldSet) Bool(key string) bool {
	b, _ := fs.data[key].(bool)
	return b
}

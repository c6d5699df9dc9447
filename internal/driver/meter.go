package driver

import (
	"fmt"

	"github.com/witoldo7/gowmbus/internal/driver/wmbus"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/units"
)

// Value is one extracted field.
type Value struct {
	Name   string
	Kind   FieldKind
	Number float64
	Text   string
	Unit   units.Unit
	// Key is the chain of the record the value came from; empty for values
	// set by a content hook.
	Key wmbus.Key
}

// OutputName is the rendered name: numeric values carry their unit suffix.
func (v Value) OutputName() string {
	if v.Kind == StringField {
		return v.Name
	}
	return v.Name + "_" + v.Unit.Suffix()
}

// Interface returns the value as float64 or string.
func (v Value) Interface() any {
	if v.Kind == StringField {
		return v.Text
	}
	return v.Number
}

// FieldError is a failure scoped to one field of one record.
type FieldError struct {
	Field string
	Key   wmbus.Key
	Err   error
}

func (e *FieldError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("field %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("field %s (%s): %v", e.Field, e.Key, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Readout is the result of decoding one telegram with one driver.
type Readout struct {
	Driver string
	// Fields keeps the order in which output names were first bound.
	Fields      []Value
	FieldErrors []*FieldError
	// Records is the number of data records walked.
	Records          int
	ManufacturerData []byte
	// Err is a telegram scoped failure. Fields decoded before it remain valid.
	Err error

	index map[string]int
}

func newReadout(driver string) *Readout {
	return &Readout{Driver: driver, index: make(map[string]int)}
}

// Partial reports whether the record walk stopped early.
func (r *Readout) Partial() bool { return r.Err != nil }

// Get returns the value bound to name.
func (r *Readout) Get(name string) (Value, bool) {
	idx, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.Fields[idx], true
}

// Set binds v to its name. A later record overwrites an earlier one but keeps
// its position.
func (r *Readout) Set(v Value) {
	if idx, ok := r.index[v.Name]; ok {
		r.Fields[idx] = v
		return
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[v.Name] = len(r.Fields)
	r.Fields = append(r.Fields, v)
}

// SetNumber binds a numeric value produced outside the record walk.
func (r *Readout) SetNumber(name string, v float64, unit units.Unit) {
	r.Set(Value{Name: name, Kind: NumericField, Number: v, Unit: unit})
}

// SetText binds a text value produced outside the record walk.
func (r *Readout) SetText(name, text string) {
	r.Set(Value{Name: name, Kind: StringField, Text: text})
}

// Decode walks the telegram payload and binds each record to the first field
// definition it satisfies. Unmatched records are skipped.
func (i *Info) Decode(t *frame.Telegram) *Readout {
	out := newReadout(i.name)
	if t.Encrypted() {
		out.Err = frame.ErrEncrypted
		return out
	}
	s := wmbus.NewScanner(t.Payload)
	var records []wmbus.Record
	for s.Next() {
		rec := s.Record()
		records = append(records, rec)
		i.apply(&rec, out)
	}
	out.Records = len(records)
	out.Err = s.Err()
	out.ManufacturerData = s.ManufacturerData()
	if i.hook != nil {
		if err := i.hook(t, records, out.ManufacturerData, out); err != nil {
			out.FieldErrors = append(out.FieldErrors, &FieldError{Field: i.name + "_content", Err: err})
		}
	}
	return out
}

func (i *Info) apply(rec *wmbus.Record, out *Readout) {
	for idx := range i.fields {
		f := &i.fields[idx]
		if !f.Matcher.Matches(rec) {
			continue
		}
		v, err := f.extract(rec)
		if err != nil {
			out.FieldErrors = append(out.FieldErrors, &FieldError{Field: f.Name, Key: rec.Key(), Err: err})
			return
		}
		out.Set(v)
		return
	}
}

func (f *FieldDef) extract(rec *wmbus.Record) (Value, error) {
	v := Value{Name: f.Name, Kind: f.Kind, Key: rec.Key()}
	if f.Kind == StringField {
		text, err := wmbus.ExtractString(rec)
		if err != nil {
			return Value{}, err
		}
		v.Text = text
		return v, nil
	}
	n, unit, err := wmbus.ExtractNumeric(rec, f.Numeric)
	if err != nil {
		return Value{}, err
	}
	v.Number, v.Unit = n, unit
	return v, nil
}

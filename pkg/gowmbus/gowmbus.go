// Package gowmbus decodes Wireless M-Bus telegrams with the bundled drivers.
package gowmbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/witoldo7/gowmbus/internal/driver"
	"github.com/witoldo7/gowmbus/internal/driver/builtin"
	"github.com/witoldo7/gowmbus/internal/frame"
	"github.com/witoldo7/gowmbus/internal/options"
)

// UnknownDriver is the driver name reported when no driver claims a telegram.
const UnknownDriver = "unknown"

// ErrUnknownDriver is returned when a forced driver name is not registered.
var ErrUnknownDriver = errors.New("unknown driver")

// Outcome classifies one analysis for logging and metrics.
type Outcome string

const (
	OutcomeDecoded   Outcome = "decoded"
	OutcomePartial   Outcome = "partial"
	OutcomeEncrypted Outcome = "encrypted"
	OutcomeNoDriver  Outcome = "no_driver"
	OutcomeInvalid   Outcome = "invalid"
)

// Observer receives one call per analysed telegram.
type Observer interface {
	ObserveDecode(driver string, outcome string, elapsed time.Duration)
}

// Analyzer turns raw telegrams into readouts using a driver registry. It is
// safe for concurrent use.
type Analyzer struct {
	registry *driver.Registry
	log      logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

// New returns an Analyzer over reg.
func New(reg *driver.Registry, opts ...Option) *Analyzer {
	a := &Analyzer{
		registry: reg,
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewDefault returns an Analyzer over the bundled drivers.
func NewDefault(opts ...Option) (*Analyzer, error) {
	reg, err := builtin.NewRegistry()
	if err != nil {
		return nil, err
	}
	return New(reg, opts...), nil
}

// Registry exposes the drivers the analyzer resolves against.
func (a *Analyzer) Registry() *driver.Registry { return a.registry }

var (
	defaultOnce     sync.Once
	defaultAnalyzer *Analyzer
	defaultErr      error
)

func shared() (*Analyzer, error) {
	defaultOnce.Do(func() {
		defaultAnalyzer, defaultErr = NewDefault()
	})
	return defaultAnalyzer, defaultErr
}

// AnalyzeHex parses the frame with the bundled drivers.
func AnalyzeHex(ctx context.Context, raw string) (Result, error) {
	return AnalyzeHexWithOptions(ctx, raw, AnalyzeOptions{})
}

// AnalyzeHexWithOptions is AnalyzeHex with custom options.
func AnalyzeHexWithOptions(ctx context.Context, raw string, opts AnalyzeOptions) (Result, error) {
	a, err := shared()
	if err != nil {
		return Result{}, err
	}
	return a.AnalyzeHex(ctx, raw, opts)
}

// AnalyzeHex decodes a hex telegram.
func (a *Analyzer) AnalyzeHex(ctx context.Context, raw string, opts AnalyzeOptions) (Result, error) {
	data, err := options.DecodeHex(raw)
	if err != nil {
		a.observe(UnknownDriver, OutcomeInvalid, 0)
		return Result{}, err
	}
	return a.Analyze(opts.apply(ctx), data)
}

// Analyze parses the frame, selects a driver and decodes the payload. A
// telegram no driver claims is not an error: the result carries the header
// and Driver is UnknownDriver. Encrypted payloads and decode failures are
// reported on the readout, with every field decoded before the failure.
func (a *Analyzer) Analyze(ctx context.Context, data []byte) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	start := a.now()
	telegram, err := frame.Parse(data)
	if err != nil {
		a.observe(UnknownDriver, OutcomeInvalid, a.now().Sub(start))
		return Result{}, err
	}
	result := Result{
		Driver:    UnknownDriver,
		RawHex:    fmt.Sprintf("%X", data),
		ByteCount: len(data),
		Telegram:  &telegram,
		Timestamp: a.now().UTC(),
	}
	log := a.log.WithFields(logrus.Fields{
		"id":           telegram.MeterIDString(),
		"manufacturer": telegram.ManufacturerString(),
	})

	candidates, err := a.candidates(ctx, &telegram)
	if err != nil {
		return result, err
	}
	if len(candidates) == 0 {
		ident := telegram.Identity()
		log.WithField("detection", driver.Detection{
			Manufacturer: ident.Manufacturer,
			DeviceType:   ident.DeviceType,
			Version:      ident.Version,
		}.String()).Debug("no driver for telegram")
		a.observe(UnknownDriver, OutcomeNoDriver, a.now().Sub(start))
		return result, nil
	}

	info, readout := a.decode(log, candidates, &telegram)
	result.Driver = info.Name()
	result.Readout = readout
	result.defaults = info.DefaultFields()
	result.defs = info.Fields()
	result.Fields = result.render()

	outcome := classify(readout)
	log.WithFields(logrus.Fields{
		"driver":  result.Driver,
		"fields":  len(readout.Fields),
		"records": readout.Records,
		"outcome": outcome,
	}).Debug("telegram decoded")
	for _, fe := range readout.FieldErrors {
		log.WithError(fe).Warn("field not decoded")
	}
	a.observe(result.Driver, outcome, a.now().Sub(start))
	return result, nil
}

func (a *Analyzer) candidates(ctx context.Context, t *frame.Telegram) ([]*driver.Info, error) {
	if name := options.Driver(ctx); name != "" {
		info, ok := a.registry.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownDriver, name)
		}
		return []*driver.Info{info}, nil
	}
	return a.registry.ResolveTelegram(t), nil
}

// decode tries the candidates in registration order and keeps the first one
// that produces at least one field. When none does the first candidate's
// readout is returned so its error is reported.
func (a *Analyzer) decode(log logrus.FieldLogger, candidates []*driver.Info, t *frame.Telegram) (*driver.Info, *driver.Readout) {
	var firstInfo *driver.Info
	var first *driver.Readout
	for _, info := range candidates {
		readout := info.Decode(t)
		if len(readout.Fields) > 0 {
			return info, readout
		}
		log.WithField("driver", info.Name()).Debug("candidate produced no fields")
		if first == nil {
			firstInfo, first = info, readout
		}
	}
	return firstInfo, first
}

func classify(r *driver.Readout) Outcome {
	switch {
	case errors.Is(r.Err, frame.ErrEncrypted):
		return OutcomeEncrypted
	case r.Partial() || len(r.FieldErrors) > 0:
		return OutcomePartial
	default:
		return OutcomeDecoded
	}
}

func (a *Analyzer) observe(driverName string, outcome Outcome, elapsed time.Duration) {
	if a.observer != nil {
		a.observer.ObserveDecode(driverName, string(outcome), elapsed)
	}
}

// Result captures the outcome of one analysis.
type Result struct {
	Driver    string
	RawHex    string
	ByteCount int
	Telegram  *frame.Telegram
	Readout   *driver.Readout
	Timestamp time.Time
	// Fields is the rendered telegram: header entries, every decoded value
	// under its output name and the status flags.
	Fields map[string]any

	defaults []string
	defs     []driver.FieldDef
}

const timestampLayout = "2006-01-02T15:04:05Z"

func (r Result) render() map[string]any {
	out := map[string]any{
		"_":         "telegram",
		"meter":     r.Driver,
		"id":        r.Telegram.MeterIDString(),
		"media":     r.Telegram.Media(),
		"timestamp": r.Timestamp.Format(timestampLayout),
	}
	hidden := make(map[string]bool)
	for _, def := range r.defs {
		if def.Print.Has(driver.PrintHidden) {
			hidden[def.Name] = true
		}
	}
	for _, v := range r.Readout.Fields {
		if !hidden[v.Name] {
			out[v.OutputName()] = v.Interface()
		}
	}
	for _, def := range r.required() {
		out[def.OutputName()] = nil
	}
	for flag, set := range r.Telegram.StatusFlags {
		if set {
			out[flag] = true
		}
	}
	if r.Readout.Err != nil {
		if errors.Is(r.Readout.Err, frame.ErrEncrypted) {
			out["encryption"] = r.Readout.Err.Error()
		} else {
			out["error"] = r.Readout.Err.Error()
		}
	}
	if len(r.Readout.FieldErrors) > 0 {
		msgs := make([]string, 0, len(r.Readout.FieldErrors))
		for _, fe := range r.Readout.FieldErrors {
			msgs = append(msgs, fe.Error())
		}
		out["field_errors"] = msgs
	}
	return out
}

// required returns the required field definitions the readout has no value
// for, one per name.
func (r Result) required() []driver.FieldDef {
	var out []driver.FieldDef
	seen := make(map[string]bool)
	for _, def := range r.defs {
		if !def.Print.Has(driver.PrintRequired) || seen[def.Name] {
			continue
		}
		seen[def.Name] = true
		if _, ok := r.Readout.Get(def.Name); !ok {
			out = append(out, def)
		}
	}
	return out
}

// DefaultFields renders only the driver's default field selection, in order.
// Entries without a decoded value are left out unless the field is required.
func (r Result) DefaultFields() []Field {
	if r.Readout == nil {
		return nil
	}
	var out []Field
	for _, name := range r.defaults {
		switch name {
		case "name", "meter":
			out = append(out, Field{Name: name, Value: r.Driver})
			continue
		case "id", "media", "timestamp":
			out = append(out, Field{Name: name, Value: r.Fields[name]})
			continue
		}
		if v, ok := r.Readout.Get(name); ok {
			out = append(out, Field{Name: v.OutputName(), Value: v.Interface()})
			continue
		}
		for _, def := range r.required() {
			if def.Name == name {
				out = append(out, Field{Name: def.OutputName()})
			}
		}
	}
	return out
}

// Field is one rendered name/value pair.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// MarshalJSON renders Fields, so a Result encodes as the telegram document.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Fields != nil {
		return json.Marshal(r.Fields)
	}
	summary := map[string]any{
		"_":      "telegram",
		"meter":  r.Driver,
		"raw":    r.RawHex,
		"length": r.ByteCount,
	}
	if r.Telegram != nil {
		summary["id"] = r.Telegram.MeterIDString()
		summary["media"] = r.Telegram.Media()
		summary["manufacturer"] = r.Telegram.ManufacturerString()
	}
	return json.Marshal(summary)
}

// String renders a human-readable representation of the result.
func (r Result) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("driver: %s bytes:%d raw:%s (marshal error: %v)", r.Driver, r.ByteCount, r.RawHex, err)
	}
	return string(data)
}

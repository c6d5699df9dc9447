package driver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/witoldo7/gowmbus/internal/frame"
)

// Registry holds driver definitions in registration order. Registration
// happens at startup; afterwards the registry is only read.
type Registry struct {
	mu      sync.RWMutex
	drivers []*Info
	byName  map[string]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register builds the entry's definition and stores it. Registering a name
// again replaces the earlier definition in place.
func (r *Registry) Register(e Entry) error {
	if e.Define == nil {
		return fmt.Errorf("driver entry %q has no definition", e.Name)
	}
	info := &Info{}
	e.Define(info)
	if info.name == "" {
		info.name = e.Name
	}
	if err := info.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if idx, ok := r.byName[info.name]; ok {
		r.drivers[idx] = info
		return nil
	}
	r.byName[info.name] = len(r.drivers)
	r.drivers = append(r.drivers, info)
	return nil
}

// RegisterAll registers every entry and joins the failures. Valid entries are
// registered even when others fail.
func (r *Registry) RegisterAll(entries ...Entry) error {
	var errs []error
	for _, e := range entries {
		if err := r.Register(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resolve returns every driver detecting the header triple, in registration
// order. Picking one of several candidates is up to the caller.
func (r *Registry) Resolve(manufacturer uint16, deviceType, version byte) []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Info
	for _, info := range r.drivers {
		if info.Detects(manufacturer, deviceType, version) {
			out = append(out, info)
		}
	}
	return out
}

// ResolveTelegram resolves using the telegram's detection identity.
func (r *Registry) ResolveTelegram(t *frame.Telegram) []*Info {
	id := t.Identity()
	return r.Resolve(id.Manufacturer, id.DeviceType, id.Version)
}

// Lookup returns the driver registered under name.
func (r *Registry) Lookup(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.drivers[idx], true
}

// Drivers lists the registered drivers in registration order.
func (r *Registry) Drivers() []*Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Info(nil), r.drivers...)
}

// Warning is a lint finding. Warnings never prevent registration.
type Warning struct {
	Driver  string
	Field   string
	Message string
}

func (w Warning) String() string {
	if w.Field == "" {
		return fmt.Sprintf("%s: %s", w.Driver, w.Message)
	}
	return fmt.Sprintf("%s: %s: %s", w.Driver, w.Field, w.Message)
}

// builtinOutputs are rendered from the telegram header, not from fields.
var builtinOutputs = map[string]bool{
	"name":      true,
	"id":        true,
	"meter":     true,
	"media":     true,
	"timestamp": true,
}

// Lint reports suspicious definitions: output names bound by several field
// definitions, exact keys used twice, default fields nothing produces and
// detection triples shared between drivers.
func (r *Registry) Lint() []Warning {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Warning
	owners := make(map[Detection]string)
	for _, info := range r.drivers {
		names := make(map[string]int)
		keys := make(map[string]string)
		for _, f := range info.fields {
			names[f.Name]++
			if names[f.Name] == 2 {
				out = append(out, Warning{info.name, f.Name, "output name defined more than once; first matching definition per record wins, later records overwrite"})
			}
			if key, ok := f.Matcher.Key(); ok {
				if prev, dup := keys[string(key)]; dup {
					out = append(out, Warning{info.name, f.Name, fmt.Sprintf("key %s already used by %s, this definition never matches", key, prev)})
				} else {
					keys[string(key)] = f.Name
				}
			}
		}
		seen := make(map[string]bool)
		for _, name := range info.defaultFields {
			if seen[name] {
				out = append(out, Warning{info.name, name, "listed twice in default fields"})
			}
			seen[name] = true
			// A content hook may set names no field definition declares.
			if names[name] == 0 && !builtinOutputs[name] && info.hook == nil {
				out = append(out, Warning{info.name, name, "default field is not produced by any field definition"})
			}
		}
		for _, d := range info.detections {
			if prev, ok := owners[d]; ok && prev != info.name {
				out = append(out, Warning{info.name, "", fmt.Sprintf("detection %s is shared with %s", d, prev)})
				continue
			}
			owners[d] = info.name
		}
	}
	return out
}

package wmbus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Key is the uppercase hex form of a complete DIF/VIF byte chain, e.g. "0E03"
// or "8E10833C".
type Key string

// ParseKey validates and normalizes a hex DIF/VIF key.
func ParseKey(s string) (Key, error) {
	clean := strings.ToUpper(strings.TrimSpace(s))
	if clean == "" {
		return "", errors.New("empty DIF/VIF key")
	}
	if len(clean)%2 != 0 {
		return "", fmt.Errorf("DIF/VIF key %q must contain an even number of hex digits", s)
	}
	if _, err := hex.DecodeString(clean); err != nil {
		return "", fmt.Errorf("DIF/VIF key %q: %w", s, err)
	}
	return Key(clean), nil
}

type span struct {
	set      bool
	from, to int
}

func (s span) accepts(v int) bool {
	return !s.set || (v >= s.from && v <= s.to)
}

func (s span) String() string {
	if s.from == s.to {
		return fmt.Sprintf("%d", s.from)
	}
	return fmt.Sprintf("%d-%d", s.from, s.to)
}

// MatchBuilder accumulates match constraints. Every method returns a new
// builder, so a partially configured builder can be shared and extended.
type MatchBuilder struct {
	key         string
	keySet      bool
	measurement MeasurementType
	vifRange    VIFRange
	storage     span
	tariff      span
	subunit     span
	combinables []Combinable
}

// Match starts an empty builder.
func Match() MatchBuilder { return MatchBuilder{} }

// Key requires the record chain to equal hex exactly.
func (b MatchBuilder) Key(hex string) MatchBuilder {
	b.key, b.keySet = hex, true
	return b
}

func (b MatchBuilder) Measurement(m MeasurementType) MatchBuilder {
	b.measurement = m
	return b
}

func (b MatchBuilder) Range(r VIFRange) MatchBuilder {
	b.vifRange = r
	return b
}

func (b MatchBuilder) Storage(n int) MatchBuilder { return b.StorageRange(n, n) }

func (b MatchBuilder) StorageRange(from, to int) MatchBuilder {
	b.storage = span{true, from, to}
	return b
}

func (b MatchBuilder) Tariff(n int) MatchBuilder { return b.TariffRange(n, n) }

func (b MatchBuilder) TariffRange(from, to int) MatchBuilder {
	b.tariff = span{true, from, to}
	return b
}

func (b MatchBuilder) Subunit(n int) MatchBuilder {
	b.subunit = span{true, n, n}
	return b
}

// With requires every listed combinable to be present on the record.
func (b MatchBuilder) With(c ...Combinable) MatchBuilder {
	merged := make([]Combinable, 0, len(b.combinables)+len(c))
	merged = append(merged, b.combinables...)
	b.combinables = append(merged, c...)
	return b
}

// Build validates the constraints and freezes them.
func (b MatchBuilder) Build() (FieldMatcher, error) {
	m := FieldMatcher{
		measurement: b.measurement,
		vifRange:    b.vifRange,
		storage:     b.storage,
		tariff:      b.tariff,
		subunit:     b.subunit,
		combinables: append([]Combinable(nil), b.combinables...),
	}
	if b.keySet {
		key, err := ParseKey(b.key)
		if err != nil {
			return FieldMatcher{}, err
		}
		m.key = key
	}
	for _, s := range []span{b.storage, b.tariff, b.subunit} {
		if s.set && (s.from < 0 || s.to < s.from) {
			return FieldMatcher{}, fmt.Errorf("invalid number range %d-%d", s.from, s.to)
		}
	}
	if m.key == "" && !m.semantic() {
		return FieldMatcher{}, errors.New("matcher has no criteria")
	}
	return m, nil
}

// FieldMatcher decides whether a record feeds a field. It is immutable and
// safe for concurrent use.
type FieldMatcher struct {
	key         Key
	measurement MeasurementType
	vifRange    VIFRange
	storage     span
	tariff      span
	subunit     span
	combinables []Combinable
}

func (m FieldMatcher) semantic() bool {
	return m.measurement != MeasurementAny || m.vifRange != RangeAny ||
		m.storage.set || m.tariff.set || m.subunit.set || len(m.combinables) > 0
}

// Key returns the exact key criterion, if any.
func (m FieldMatcher) Key() (Key, bool) { return m.key, m.key != "" }

// Matches is a pure predicate over the record. The exact key compares the
// literal chain; the semantic constraints compare the decoded meaning. When
// both are configured both must hold.
func (m FieldMatcher) Matches(r *Record) bool {
	if m.key != "" && r.Key() != m.key {
		return false
	}
	if m.measurement != MeasurementAny && r.Measurement != m.measurement {
		return false
	}
	if !m.vifRange.Contains(r.Range) {
		return false
	}
	if !m.storage.accepts(r.Storage) || !m.tariff.accepts(r.Tariff) || !m.subunit.accepts(r.Subunit) {
		return false
	}
	for _, c := range m.combinables {
		if !r.HasCombinable(c) {
			return false
		}
	}
	return true
}

func (m FieldMatcher) String() string {
	var parts []string
	if m.key != "" {
		parts = append(parts, "key="+string(m.key))
	}
	if m.measurement != MeasurementAny {
		parts = append(parts, "measurement="+m.measurement.String())
	}
	if m.vifRange != RangeAny {
		parts = append(parts, "range="+m.vifRange.String())
	}
	if m.storage.set {
		parts = append(parts, "storage="+m.storage.String())
	}
	if m.tariff.set {
		parts = append(parts, "tariff="+m.tariff.String())
	}
	if m.subunit.set {
		parts = append(parts, "subunit="+m.subunit.String())
	}
	for _, c := range m.combinables {
		parts = append(parts, "with="+c.String())
	}
	return strings.Join(parts, " ")
}

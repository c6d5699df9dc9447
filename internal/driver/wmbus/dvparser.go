package wmbus

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated means a DIF/VIF chain or a payload ran past the buffer end.
	ErrTruncated = errors.New("unexpected end of payload")
	// ErrReservedDIF means the DIF selected a reserved special function.
	ErrReservedDIF = errors.New("reserved DIF special function")
	// ErrDIFEChain means a record carried more DIFE bytes than EN 13757 allows.
	ErrDIFEChain = errors.New("DIFE chain too long")
)

const maxDIFE = 10

// DecodeError is a telegram scoped decode failure. Records before Offset were
// decoded and remain valid.
type DecodeError struct {
	Offset int
	Stage  string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode record at offset %d (%s): %v", e.Offset, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Record represents one parsed DIF/VIF entry from a telegram payload.
type Record struct {
	Offset int
	DIF    byte
	DIFE   []byte
	VIF    byte
	VIFE   []byte
	// PlainVIF holds the ASCII unit of a plain text VIF (0x7C/0xFC).
	PlainVIF string
	Data     []byte
	Encoding Encoding
	// Negative is set by a variable length negative BCD field.
	Negative bool

	Measurement MeasurementType
	Storage     int
	Tariff      int
	Subunit     int

	Code        VIFCode
	Range       VIFRange
	Combinables []Combinable
	Correction  int

	key Key
}

// Key returns the uppercase hex of the full DIF/DIFE/VIF/VIFE chain.
func (r *Record) Key() Key {
	if r.key == "" {
		chain := make([]byte, 0, 2+len(r.DIFE)+len(r.VIFE))
		chain = append(chain, r.DIF)
		chain = append(chain, r.DIFE...)
		chain = append(chain, r.VIF)
		chain = append(chain, r.VIFE...)
		r.key = Key(hexUpper(chain))
	}
	return r.key
}

// HasCombinable reports whether the chain carried c.
func (r *Record) HasCombinable(c Combinable) bool {
	for _, have := range r.Combinables {
		if have == c {
			return true
		}
	}
	return false
}

// Scanner walks the data records of an application payload in wire order. It
// stops at manufacturer specific data (DIF 0x0F/0x1F), at the buffer end, or
// at the first malformed record. Reset rewinds it to the first record.
type Scanner struct {
	buf  []byte
	pos  int
	rec  Record
	err  error
	mfct []byte
	done bool
}

// NewScanner returns a scanner over payload. The payload is not copied and
// must not be modified while scanning.
func NewScanner(payload []byte) *Scanner {
	return &Scanner{buf: payload}
}

// Reset rewinds the scanner.
func (s *Scanner) Reset() {
	s.pos = 0
	s.rec = Record{}
	s.err = nil
	s.mfct = nil
	s.done = false
}

// Record returns the record produced by the last successful Next.
func (s *Scanner) Record() Record { return s.rec }

// Err returns the error that stopped the scan, if any.
func (s *Scanner) Err() error { return s.err }

// ManufacturerData returns the bytes that followed a DIF 0x0F/0x1F marker.
func (s *Scanner) ManufacturerData() []byte { return s.mfct }

// Next advances to the next record.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	for s.pos < len(s.buf) {
		start := s.pos
		dif := s.buf[s.pos]
		s.pos++
		switch {
		case dif == 0x2F:
			continue
		case dif == 0x0F || dif == 0x1F:
			s.mfct = s.buf[s.pos:]
			s.done = true
			return false
		case dif&0x0F == 0x0F:
			return s.fail(start, "dif", fmt.Errorf("%w 0x%02X", ErrReservedDIF, dif))
		}
		rec, err := s.readRecord(start, dif)
		if err != nil {
			return s.fail(start, err.stage, err.err)
		}
		s.rec = rec
		return true
	}
	s.done = true
	return false
}

type stageError struct {
	stage string
	err   error
}

func (s *Scanner) fail(offset int, stage string, err error) bool {
	s.err = &DecodeError{Offset: offset, Stage: stage, Err: err}
	s.done = true
	return false
}

func (s *Scanner) readRecord(start int, dif byte) (Record, *stageError) {
	rec := Record{
		Offset:      start,
		DIF:         dif,
		Measurement: measurementFromDIF(dif),
		Storage:     int((dif >> 6) & 0x01),
	}

	ext := dif&0x80 != 0
	for n := 0; ext; n++ {
		if n == maxDIFE {
			return rec, &stageError{"dife", ErrDIFEChain}
		}
		if s.pos >= len(s.buf) {
			return rec, &stageError{"dife", ErrTruncated}
		}
		dife := s.buf[s.pos]
		s.pos++
		rec.DIFE = append(rec.DIFE, dife)
		rec.Subunit |= int((dife>>6)&0x01) << n
		rec.Tariff |= int((dife>>4)&0x03) << (n * 2)
		rec.Storage |= int(dife&0x0F) << (1 + n*4)
		ext = dife&0x80 != 0
	}

	if s.pos >= len(s.buf) {
		return rec, &stageError{"vif", ErrTruncated}
	}
	rec.VIF = s.buf[s.pos]
	s.pos++
	ext = rec.VIF&0x80 != 0
	for ext {
		if s.pos >= len(s.buf) {
			return rec, &stageError{"vife", ErrTruncated}
		}
		vife := s.buf[s.pos]
		s.pos++
		rec.VIFE = append(rec.VIFE, vife)
		ext = vife&0x80 != 0
	}

	if VIFCode(rec.VIF&0x7F) == vifPlainText {
		if s.pos >= len(s.buf) {
			return rec, &stageError{"plain vif", ErrTruncated}
		}
		n := int(s.buf[s.pos])
		s.pos++
		if s.pos+n > len(s.buf) {
			return rec, &stageError{"plain vif", ErrTruncated}
		}
		rec.PlainVIF = reversedText(s.buf[s.pos : s.pos+n])
		s.pos += n
	}

	meaning := interpretVIF(rec.VIF, rec.VIFE)
	rec.Code = meaning.code
	rec.Range = meaning.rng
	rec.Combinables = meaning.combinables
	rec.Correction = meaning.correction

	length, enc := dataField(dif)
	if dif&0x0F == dataFieldVariable {
		if s.pos >= len(s.buf) {
			return rec, &stageError{"lvar", ErrTruncated}
		}
		lvar := s.buf[s.pos]
		s.pos++
		var err error
		length, enc, rec.Negative, err = variableField(lvar)
		if err != nil {
			return rec, &stageError{"lvar", err}
		}
	}
	if s.pos+length > len(s.buf) {
		return rec, &stageError{"data", fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, length, len(s.buf)-s.pos)}
	}
	rec.Data = s.buf[s.pos : s.pos+length]
	rec.Encoding = enc
	s.pos += length
	rec.Key()
	return rec, nil
}

// ParseRecords decodes every record of payload. On a decode error the records
// decoded before the failure are returned together with a *DecodeError.
func ParseRecords(payload []byte) ([]Record, []byte, error) {
	records := make([]Record, 0, 8)
	s := NewScanner(payload)
	for s.Next() {
		records = append(records, s.Record())
	}
	return records, s.ManufacturerData(), s.Err()
}

func reversedText(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return string(out)
}

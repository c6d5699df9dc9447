package wmbus

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/witoldo7/gowmbus/internal/units"
)

// Scaling selects whether the VIF exponent is applied to a raw value.
type Scaling int

const (
	ScalingAuto Scaling = iota
	ScalingNone
)

// Signedness applies to binary integers; BCD carries its own sign.
type Signedness int

const (
	Signed Signedness = iota
	Unsigned
)

// ErrNoData is returned when a record carries no payload to extract.
var ErrNoData = errors.New("record carries no data")

// Numeric describes how a numeric field turns a record into a value.
type Numeric struct {
	Quantity   units.Quantity
	Scaling    Scaling
	Signedness Signedness
	// Unit overrides the quantity's default unit. With ScalingNone it names
	// the unit the raw value is already in.
	Unit units.Unit
}

// TargetUnit is the unit extracted values are reported in.
func (n Numeric) TargetUnit() units.Unit {
	if n.Unit != units.UnitUnknown {
		return n.Unit
	}
	return n.Quantity.DefaultUnit()
}

// RawValue decodes the payload into a number without any scaling.
func RawValue(r *Record, sign Signedness) (float64, error) {
	switch r.Encoding {
	case EncodingInteger:
		if len(r.Data) > 8 {
			return 0, fmt.Errorf("record %s: %d byte integer exceeds 64 bits", r.Key(), len(r.Data))
		}
		if sign == Unsigned {
			return float64(DecodeUint(r.Data)), nil
		}
		return float64(DecodeInt(r.Data)), nil
	case EncodingBCD:
		v, err := DecodeBCD(r.Data)
		if err != nil {
			return 0, err
		}
		if r.Negative {
			v = -v
		}
		return float64(v), nil
	case EncodingReal:
		return DecodeReal(r.Data)
	case EncodingText:
		return 0, fmt.Errorf("record %s carries text, not a number", r.Key())
	default:
		return 0, ErrNoData
	}
}

// ExtractNumeric produces the scaled value of r and the unit it is in.
func ExtractNumeric(r *Record, num Numeric) (float64, units.Unit, error) {
	raw, err := RawValue(r, num.Signedness)
	if err != nil {
		return 0, units.UnitUnknown, err
	}
	target := num.TargetUnit()
	if num.Scaling == ScalingNone {
		return raw, target, nil
	}
	from, exp, err := VIFScale(r)
	if err != nil {
		return 0, units.UnitUnknown, err
	}
	value := scale10(raw, exp)
	if target == units.UnitUnknown {
		return value, from, nil
	}
	converted, err := units.Convert(value, from, target)
	if err != nil {
		return 0, units.UnitUnknown, fmt.Errorf("record %s: %w", r.Key(), err)
	}
	return converted, target, nil
}

// VIFScale returns the unit and decimal exponent encoded by the record's VIF
// chain, including multiplicative correction VIFEs.
func VIFScale(r *Record) (units.Unit, int, error) {
	e, ok := lookupVIF(r.Code)
	if !ok || e.unit == units.UnitUnknown {
		return units.UnitUnknown, 0, fmt.Errorf("no scaling known for VIF 0x%04X (%s)", uint16(r.Code), r.Key())
	}
	unit, exp := e.scaling(r.Code)
	return unit, exp + r.Correction, nil
}

// scale10 divides for negative exponents so that exact decimal inputs such as
// 12345e-3 round to the nearest double.
func scale10(v float64, exp int) float64 {
	if exp >= 0 {
		return v * math.Pow10(exp)
	}
	return v / math.Pow10(-exp)
}

// ISO 8601 local time; meters transmit no zone.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02T15:04"
	secondsLayout  = "2006-01-02T15:04:05"
)

// ExtractString renders a record as text. Date and date-time records become
// timestamps; malformed timestamps return an error for this record only.
func ExtractString(r *Record) (string, error) {
	if r.Range == RangeDate || r.Range == RangeDateTime {
		return extractTimestamp(r)
	}
	switch r.Encoding {
	case EncodingText:
		return reversedText(r.Data), nil
	case EncodingBCD:
		v, err := DecodeBCD(r.Data)
		if err != nil {
			return "", err
		}
		if r.Negative {
			v = -v
		}
		return strconv.FormatInt(v, 10), nil
	case EncodingInteger:
		if len(r.Data) > 8 {
			return hexUpper(r.Data), nil
		}
		return strconv.FormatUint(DecodeUint(r.Data), 10), nil
	case EncodingReal:
		f, err := DecodeReal(r.Data)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", ErrNoData
	}
}

func extractTimestamp(r *Record) (string, error) {
	switch len(r.Data) {
	case 2:
		ts, err := DecodeTypeGDate(r.Data)
		if err != nil {
			return "", err
		}
		return ts.Format(dateLayout), nil
	case 4:
		ts, err := DecodeTypeFDateTime(r.Data)
		if err != nil {
			return "", err
		}
		return ts.Format(dateTimeLayout), nil
	case 6:
		ts, err := DecodeTypeIDateTime(r.Data)
		if err != nil {
			return "", err
		}
		return ts.Format(secondsLayout), nil
	default:
		return "", fmt.Errorf("unsupported timestamp length %d for %s", len(r.Data), r.Key())
	}
}

package hydrodigit

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Variant names the layout of the manufacturer block.
type Variant string

const (
	// VariantLegacy blocks start with frame identifier 0x15 or 0x95.
	VariantLegacy Variant = "legacy"
	// VariantExtended is the Hydrolink layout with a section bitmap.
	VariantExtended Variant = "extended"
)

var months = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Data is the decoded manufacturer block that follows DIF 0x0F.
type Data struct {
	Variant Variant

	FrameIdentifier byte
	Contents        string
	Voltage         float64
	LeakDate        string // dd.mm.yyyy
	BackflowM3      float64
	MonthlyTotals   [12]float64

	BatteryRaw     uint8
	BatteryPercent uint8
	ErrorBits      uint32
	SectionMap     byte
	Sections       Sections
}

// Sections are the optional parts of an extended block, present when the
// matching bit of SectionMap is set.
type Sections struct {
	Instantaneous []byte

	HasReverseFlow bool
	ReverseFlowM3  float64

	EmptyPipeDate   string
	LeakEventDate   string
	FreezeEventDate string

	MemoDay1 []byte
	MemoDay2 []byte

	MonthlyHistory []float64
}

const (
	legacyMinLen   = 1 + 1 + 4 + 12*3
	extendedMinLen = 1 + 3 + 1
)

var errShortBlock = errors.New("manufacturer block truncated")

type reader struct {
	buf []byte
	pos int
}

func (r *reader) take(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w reading %s at offset %d", errShortBlock, what, r.pos)
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint24(what string) (uint32, error) {
	b, err := r.take(3, what)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16, nil
}

// uint24BE reads a most significant byte first value.
func (r *reader) uint24BE(what string) (uint32, error) {
	b, err := r.take(3, what)
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
}

// ParseManufacturerData decodes the block. raw may start at the 0x0F marker or
// right after it. volumeScale is the m3 weight of one unit of the main volume
// record (1e-3 for VIF 0x13); monthly totals are stored one decade coarser.
func ParseManufacturerData(raw []byte, volumeScale float64) (Data, error) {
	block := raw
	if len(block) > 0 && block[0] == 0x0F {
		block = block[1:]
	}
	switch {
	case len(block) == 0:
		return Data{}, errors.New("empty manufacturer block")
	case len(block) >= legacyMinLen && (block[0] == 0x15 || block[0] == 0x95):
		return parseLegacy(block, monthlyScale(volumeScale))
	case len(block) >= extendedMinLen:
		return parseExtended(block, monthlyScale(volumeScale))
	default:
		return Data{}, fmt.Errorf("unsupported manufacturer block: %s", hex.EncodeToString(block))
	}
}

func parseLegacy(block []byte, scale float64) (Data, error) {
	r := &reader{buf: block}
	id, _ := r.take(1, "frame identifier")
	d := Data{
		Variant:         VariantLegacy,
		FrameIdentifier: id[0],
		Contents:        legacyContents(id[0]),
	}
	v, err := r.take(1, "voltage")
	if err != nil {
		return Data{}, err
	}
	d.Voltage = batteryVoltage(v[0] & 0x0F)

	if d.FrameIdentifier == 0x95 {
		date, err := r.take(3, "leak date")
		if err != nil {
			return Data{}, err
		}
		d.LeakDate = fmt.Sprintf("%02X.%02X.20%02X", date[2], date[1], date[0])
	}

	backflow, err := r.take(4, "backflow")
	if err != nil {
		return Data{}, err
	}
	d.BackflowM3 = float64(uint32(backflow[0])|uint32(backflow[1])<<8|uint32(backflow[2])<<16|uint32(backflow[3])<<24) / 1000

	for i := range months {
		raw, err := r.uint24(months[i])
		if err != nil {
			return Data{}, err
		}
		d.MonthlyTotals[i] = monthlyValue(raw, scale)
	}
	return d, nil
}

func parseExtended(block []byte, scale float64) (Data, error) {
	r := &reader{buf: block}
	battery, _ := r.take(1, "battery")
	d := Data{
		Variant:        VariantExtended,
		BatteryRaw:     battery[0],
		BatteryPercent: min(battery[0], 100),
	}
	d.ErrorBits, _ = r.uint24BE("error bits")
	sectionMap, _ := r.take(1, "section map")
	d.SectionMap = sectionMap[0]

	s := &d.Sections
	for bit := 0; bit < 8; bit++ {
		if d.SectionMap&(1<<bit) == 0 {
			continue
		}
		var err error
		switch bit {
		case 0:
			s.Instantaneous, err = r.take(7, "instantaneous section")
		case 1:
			var raw uint32
			raw, err = r.uint24("reverse flow")
			s.HasReverseFlow = err == nil
			s.ReverseFlowM3 = float64(raw) / 1000
		case 2:
			s.EmptyPipeDate, err = r.bcdDate("empty pipe date")
		case 3:
			s.LeakEventDate, err = r.bcdDate("leak date")
		case 4:
			s.FreezeEventDate, err = r.bcdDate("freeze date")
		case 5:
			s.MemoDay1, err = r.take(5, "memo day 1")
		case 6:
			s.MemoDay2, err = r.take(5, "memo day 2")
		case 7:
			s.MonthlyHistory = make([]float64, len(months))
			for i := range months {
				var raw uint32
				if raw, err = r.uint24("monthly history"); err != nil {
					break
				}
				s.MonthlyHistory[i] = monthlyValue(raw, scale)
			}
		}
		if err != nil && !errors.Is(err, errBadBCD) {
			return Data{}, err
		}
	}
	return d, nil
}

var errBadBCD = errors.New("invalid BCD date")

// bcdDate reads a yy mm dd BCD date. A date with non decimal digits is skipped
// but still consumes its three bytes.
func (r *reader) bcdDate(what string) (string, error) {
	b, err := r.take(3, what)
	if err != nil {
		return "", err
	}
	for _, by := range b {
		if by&0x0F > 9 || by>>4 > 9 {
			return "", fmt.Errorf("%w: %s %s", errBadBCD, what, hex.EncodeToString(b))
		}
	}
	return fmt.Sprintf("20%02X-%02X-%02X", b[0], b[1], b[2]), nil
}

func legacyContents(frameID byte) string {
	switch frameID {
	case 0x15:
		return "Backflow, alarms and monthly data"
	case 0x95:
		return "Backflow, leak date, alarms and monthly data"
	default:
		return "unknown"
	}
}

var batteryVoltages = [16]float64{
	3.7, 1.9, 2.1, 2.2, 2.3, 2.4, 2.5, 2.65,
	2.8, 2.9, 3.05, 3.2, 3.35, 3.5, 3.7, 3.7,
}

func batteryVoltage(nibble byte) float64 { return batteryVoltages[nibble&0x0F] }

func monthlyScale(volumeScale float64) float64 {
	if volumeScale <= 0 {
		return 0.01
	}
	return volumeScale * 10
}

// monthlyValue drops implausible totals, which the meter uses for empty slots.
func monthlyValue(raw uint32, scale float64) float64 {
	v := float64(raw) * scale
	if v >= 100000 {
		return 0
	}
	return v
}

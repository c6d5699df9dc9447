package frame

import "fmt"

var mediaNames = map[byte]string{
	0x00: "other",
	0x01: "oil",
	0x02: "electricity",
	0x03: "gas",
	0x04: "heat",
	0x05: "steam",
	0x06: "warm water",
	0x07: "water",
	0x08: "heat cost allocation",
	0x09: "compressed air",
	0x0A: "cooling load volume at outlet",
	0x0B: "cooling load volume at inlet",
	0x0C: "heat volume at inlet",
	0x0D: "heat/cooling load",
	0x15: "hot water",
	0x16: "cold water",
	0x37: "radio converter (meter side)",
}

// MediaName returns the EN 13757-3 medium of a device type byte.
func MediaName(deviceType byte) string {
	if name, ok := mediaNames[deviceType]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%02X)", deviceType)
}

// Media is MediaName for the detection device type.
func (t Telegram) Media() string {
	return MediaName(t.Identity().DeviceType)
}

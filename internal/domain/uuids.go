package domain

import "strings"

// Nordic UART service and its characteristics.
const (
	UARTServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	UARTRXCharUUID  = "6e400002-b5a3-f393-e0a9-e50e24dcca9e" // central writes
	UARTTXCharUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e" // peripheral notifies
)

const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// serviceNames maps the assigned-number names accepted in OptionalServices
// to their 16-bit UUIDs.
var serviceNames = map[string]string{
	"generic_access":        "1800",
	"generic_attribute":     "1801",
	"device_information":    "180a",
	"heart_rate":            "180d",
	"battery_service":       "180f",
	"environmental_sensing": "181a",
}

// DefaultOptionalServices is the list requested when connecting.
var DefaultOptionalServices = []string{UARTServiceUUID, "heart_rate", "battery_service"}

// CanonicalUUID normalizes a UUID or assigned name to the lowercase 128-bit
// form. 16-bit values are expanded with the Bluetooth base UUID. Unknown
// names are returned lowercased and unchanged.
func CanonicalUUID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if short, ok := serviceNames[s]; ok {
		s = short
	}
	s = strings.TrimPrefix(s, "0x")
	switch len(s) {
	case 4:
		return "0000" + s + bluetoothBaseSuffix
	case 8:
		return s + bluetoothBaseSuffix
	case 32:
		return s[0:8] + "-" + s[8:12] + "-" + s[12:16] + "-" + s[16:20] + "-" + s[20:]
	}
	return s
}

// SameUUID compares UUIDs in any supported notation.
func SameUUID(a, b string) bool {
	return CanonicalUUID(a) == CanonicalUUID(b)
}

package smart

import (
	"fmt"

	"github.com/sigreer/hwgod/internal/ata"
)

// Well-known attribute IDs
const (
	AttrReallocatedSectors = 0x05
	AttrPowerOnHours       = 0x09
	AttrPowerCycleCount    = 0x0C
	AttrAirflowTemperature = 0xBE
	AttrTemperature        = 0xC2
	AttrPendingSectors     = 0xC5
	AttrUncorrectable      = 0xC6
)

// attributeNames are the commonly agreed names of vendor attribute IDs.
// Vendors reuse some IDs for other purposes.
var attributeNames = map[byte]string{
	0x01: "Raw Read Error Rate",
	0x02: "Throughput Performance",
	0x03: "Spin-Up Time",
	0x04: "Start/Stop Count",
	0x05: "Reallocated Sectors Count",
	0x06: "Read Channel Margin",
	0x07: "Seek Error Rate",
	0x08: "Seek Time Performance",
	0x09: "Power-On Hours",
	0x0A: "Spin Retry Count",
	0x0B: "Recalibration Retries",
	0x0C: "Power Cycle Count",
	0x0D: "Soft Read Error Rate",
	0xAA: "Available Reserved Space",
	0xAB: "Program Fail Count",
	0xAC: "Erase Fail Count",
	0xAD: "Wear Leveling Count",
	0xAE: "Unexpected Power Loss Count",
	0xB1: "Wear Range Delta",
	0xB7: "SATA Downshift Error Count",
	0xB8: "End-to-End Error",
	0xBB: "Reported Uncorrectable Errors",
	0xBC: "Command Timeout",
	0xBD: "High Fly Writes",
	0xBE: "Airflow Temperature",
	0xBF: "G-Sense Error Rate",
	0xC0: "Power-Off Retract Count",
	0xC1: "Load/Unload Cycle Count",
	0xC2: "Temperature",
	0xC3: "Hardware ECC Recovered",
	0xC4: "Reallocation Event Count",
	0xC5: "Current Pending Sector Count",
	0xC6: "Uncorrectable Sector Count",
	0xC7: "UltraDMA CRC Error Count",
	0xC8: "Write Error Rate",
	0xCA: "Data Address Mark Errors",
	0xCB: "Run Out Cancel",
	0xCC: "Soft ECC Correction",
	0xCD: "Thermal Asperity Rate",
	0xCE: "Flying Height",
	0xCF: "Spin High Current",
	0xD0: "Spin Buzz",
	0xD1: "Offline Seek Performance",
	0xDC: "Disk Shift",
	0xDD: "G-Sense Error Rate",
	0xDE: "Loaded Hours",
	0xDF: "Load/Unload Retry Count",
	0xE0: "Load Friction",
	0xE1: "Load/Unload Cycle Count",
	0xE2: "Load In-time",
	0xE3: "Torque Amplification Count",
	0xE4: "Power-Off Retract Cycle",
	0xE6: "GMR Head Amplitude",
	0xE7: "Life Left",
	0xE8: "Endurance Remaining",
	0xE9: "Media Wearout Indicator",
	0xF0: "Head Flying Hours",
	0xF1: "Total LBAs Written",
	0xF2: "Total LBAs Read",
	0xFA: "Read Error Retry Rate",
	0xFE: "Free Fall Protection",
}

// AttributeName returns the display name for a SMART attribute ID.
func AttributeName(id byte) string {
	if name, ok := attributeNames[id]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Attribute (%02X)", id)
}

// Entry joins an attribute with its threshold.
type Entry struct {
	ata.DriveAttributeValue
	Name         string
	Threshold    byte
	HasThreshold bool
}

// Join pairs each attribute with the threshold of the same ID. Attribute
// order is preserved.
func Join(attrs []ata.DriveAttributeValue, thresholds []ata.DriveThresholdValue) []Entry {
	byID := make(map[byte]byte, len(thresholds))
	for _, t := range thresholds {
		byID[t.ID] = t.Threshold
	}

	entries := make([]Entry, 0, len(attrs))
	for _, a := range attrs {
		e := Entry{DriveAttributeValue: a, Name: AttributeName(a.ID)}
		e.Threshold, e.HasThreshold = byID[a.ID]
		entries = append(entries, e)
	}
	return entries
}

// Temperature returns the drive temperature in degrees Celsius from the
// low byte of the temperature attribute raw value, falling back to the
// airflow temperature attribute.
func Temperature(attrs []ata.DriveAttributeValue) (float64, bool) {
	var airflow *ata.DriveAttributeValue
	for i := range attrs {
		switch attrs[i].ID {
		case AttrTemperature:
			return float64(attrs[i].Raw[0]), true
		case AttrAirflowTemperature:
			airflow = &attrs[i]
		}
	}
	if airflow != nil {
		return float64(airflow.Raw[0]), true
	}
	return 0, false
}

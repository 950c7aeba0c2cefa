package storage

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultSysfsRoot is where block device attributes are read from.
const DefaultSysfsRoot = "/sys/block"

// sysfsModel reads the vendor and model a disk reports to the kernel. It
// does not issue any command to the drive. Empty when unavailable.
func sysfsModel(root, name string) string {
	devicePath := filepath.Join(root, name, "device")

	model := readAttr(filepath.Join(devicePath, "model"))
	if model == "" {
		return ""
	}
	vendor := readAttr(filepath.Join(devicePath, "vendor"))
	// libata reports every SATA disk with vendor "ATA"
	if vendor == "" || vendor == "ATA" || strings.HasPrefix(model, vendor) {
		return model
	}
	return vendor + " " + model
}

func readAttr(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

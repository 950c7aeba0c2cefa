package storage

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultUdevRoot is where udev keeps its device database.
const DefaultUdevRoot = "/run/udev/data"

// udevDevice is the part of a udev database entry discovery needs
type udevDevice struct {
	DevType     string
	Model       string
	Serial      string
	SerialShort string
}

// UdevDiscover reads disks from the udev database without spawning a
// process. sysRoot is normally /sys/block and udevRoot /run/udev/data.
func UdevDiscover(sysRoot, udevRoot string) Discoverer {
	return func() ([]Candidate, error) {
		entries, err := os.ReadDir(sysRoot)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", sysRoot, err)
		}

		var out []Candidate
		for _, entry := range entries {
			name := entry.Name()
			if isExcludedDevice(name) {
				continue
			}
			majMin := readAttr(filepath.Join(sysRoot, name, "dev"))
			if majMin == "" {
				continue
			}
			dev, err := readUdevDevice(filepath.Join(udevRoot, "b"+majMin))
			if err != nil {
				continue
			}
			if dev.DevType != "" && dev.DevType != "disk" {
				continue
			}

			c := Candidate{
				Name:  name,
				Model: cleanField(dev.Model),
			}
			c.Serial = dev.SerialShort
			if c.Serial == "" {
				c.Serial = dev.Serial
			}
			if sectors, err := strconv.ParseUint(readAttr(filepath.Join(sysRoot, name, "size")), 10, 64); err == nil {
				c.Size = sectors * 512
			}
			out = append(out, c)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("no disks in udev database %s", udevRoot)
		}
		return out, nil
	}
}

func readUdevDevice(path string) (udevDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return udevDevice{}, err
	}
	defer f.Close()
	return parseUdev(f)
}

// parseUdev reads the E: properties of a udev database entry
func parseUdev(r io.Reader) (udevDevice, error) {
	var dev udevDevice
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line, ok := strings.CutPrefix(scanner.Text(), "E:")
		if !ok {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "DEVTYPE":
			dev.DevType = value
		case "ID_MODEL":
			dev.Model = value
		case "ID_SERIAL":
			dev.Serial = value
		case "ID_SERIAL_SHORT":
			dev.SerialShort = value
		}
	}
	if err := scanner.Err(); err != nil {
		return udevDevice{}, fmt.Errorf("failed to read udev entry: %w", err)
	}
	return dev, nil
}

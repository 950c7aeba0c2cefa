package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"

	"github.com/jaypipes/ghw"

	"github.com/sigreer/hwgod/internal/rawdev"
)

// Candidate is a physical disk found by discovery.
type Candidate struct {
	Index  int
	Name   string // kernel or OS name, e.g. "sdb"
	Model  string
	Serial string
	Size   uint64 // bytes, zero if unknown
}

// Discoverer lists the physical disks visible to the operating system.
type Discoverer func() ([]Candidate, error)

// errNoSource is returned by Discover when every source failed.
var errNoSource = errors.New("no disk discovery source available")

// Discover returns candidates from the first source that succeeds, sorted
// by index. Names outside the physical drive namespace are skipped.
func Discover(sources ...Discoverer) ([]Candidate, error) {
	var errs []error
	for _, src := range sources {
		found, err := src()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return normalize(found), nil
	}
	return nil, errors.Join(append([]error{errNoSource}, errs...)...)
}

func normalize(found []Candidate) []Candidate {
	seen := make(map[int]bool)
	out := make([]Candidate, 0, len(found))
	for _, c := range found {
		if isExcludedDevice(c.Name) {
			continue
		}
		idx, ok := rawdev.IndexFromName(c.Name)
		if !ok || seen[idx] {
			continue
		}
		seen[idx] = true
		c.Index = idx
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// excludedPrefixes are block devices that never carry an ATA SMART
// interface.
var excludedPrefixes = []string{
	"loop", "dm-", "sr", "nvme", "zram", "ram", "md", "nbd", "xvd", "vd", "fd",
}

func isExcludedDevice(name string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// BlockDiscover lists disks through the hardware inventory library,
// skipping virtio disks.
func BlockDiscover() ([]Candidate, error) {
	info, err := ghw.Block(ghw.WithDisableWarnings())
	if err != nil {
		return nil, fmt.Errorf("failed to read block devices: %w", err)
	}
	out := make([]Candidate, 0, len(info.Disks))
	for _, d := range info.Disks {
		if d.StorageController == ghw.StorageControllerVirtIO {
			continue
		}
		out = append(out, Candidate{
			Name:   d.Name,
			Model:  cleanField(d.Model),
			Serial: cleanField(d.SerialNumber),
			Size:   d.SizeBytes,
		})
	}
	return out, nil
}

// ghw reports missing fields as "unknown"
func cleanField(s string) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "_", " "))
	if strings.EqualFold(s, "unknown") {
		return ""
	}
	return s
}

type lsblkOutput struct {
	Blockdevices []lsblkDevice `json:"blockdevices"`
}

type lsblkDevice struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Model  string `json:"model"`
	Serial string `json:"serial"`
	Tran   string `json:"tran"`
}

// LsblkDiscover lists whole disks through lsblk.
func LsblkDiscover() ([]Candidate, error) {
	out, err := exec.Command("lsblk", "-J", "-d", "-o", "NAME,TYPE,MODEL,SERIAL,TRAN").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run lsblk: %w", err)
	}
	return parseLsblk(out)
}

func parseLsblk(data []byte) ([]Candidate, error) {
	var output lsblkOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse lsblk output: %w", err)
	}
	var found []Candidate
	for _, dev := range output.Blockdevices {
		if dev.Type != "disk" {
			continue
		}
		found = append(found, Candidate{
			Name:   dev.Name,
			Model:  strings.TrimSpace(dev.Model),
			Serial: strings.TrimSpace(dev.Serial),
		})
	}
	return found, nil
}

// ProbeDiscover returns a candidate for every index below max. Opening
// the channel is the probe.
func ProbeDiscover(max int) Discoverer {
	return func() ([]Candidate, error) {
		out := make([]Candidate, 0, max)
		for i := 0; i < max; i++ {
			out = append(out, Candidate{Index: i, Name: nameFor(i)})
		}
		return out, nil
	}
}

func nameFor(index int) string {
	p := rawdev.DevicePath(index)
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

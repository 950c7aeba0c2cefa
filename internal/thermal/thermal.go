// Package thermal provides the thermal hardware group. Temperature sensors
// reported by the operating system are grouped into one child node per
// chip under a single "thermal" root.
package thermal

import (
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/sigreer/hwgod/internal/hardware"
)

// Reading is one temperature reported by the operating system.
type Reading struct {
	Key     string // e.g. "coretemp_package_id_0"
	Celsius float64
}

// Probe reads every temperature sensor currently visible.
type Probe func() ([]Reading, error)

// SystemProbe reads temperatures through the host sensor interface. Partial
// results are returned when some sensors fail.
func SystemProbe() ([]Reading, error) {
	temps, err := host.SensorsTemperatures()
	if err != nil && len(temps) == 0 {
		return nil, fmt.Errorf("failed to read temperatures: %w", err)
	}
	out := make([]Reading, 0, len(temps))
	for _, t := range temps {
		out = append(out, Reading{Key: t.SensorKey, Celsius: t.Temperature})
	}
	return out, nil
}

var supported = map[string]bool{
	"linux":   true,
	"windows": true,
	"darwin":  true,
	"freebsd": true,
}

// Options configures New.
type Options struct {
	GOOS    string
	Probe   Probe
	History hardware.HistoryPolicy
	Logger  *slog.Logger
	Now     func() time.Time
}

// Group is the thermal hardware group.
type Group struct {
	*hardware.Roster
}

// New builds the thermal group with its root node. Chip nodes appear on
// the first successful probe.
func New(opts Options) *Group {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Probe == nil {
		opts.Probe = SystemProbe
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.History == (hardware.HistoryPolicy{}) {
		opts.History = hardware.DefaultHistory
	}

	g := &Group{Roster: hardware.NewRoster("Thermal")}
	if !supported[opts.GOOS] {
		return g
	}

	d := &device{
		probe:   opts.Probe,
		now:     opts.Now,
		logger:  opts.Logger,
		history: opts.History,
		chips:   make(map[string]*chip),
	}
	root := hardware.NewNode(hardware.NewIdentifier("thermal"), "Thermal Sensors", hardware.TypeThermal, d,
		hardware.WithHistory(opts.History))
	if err := d.Update(root); err != nil {
		opts.Logger.Warn("temperatures unavailable", "error", err)
	}
	if err := g.Add(root); err != nil {
		opts.Logger.Warn("failed to add thermal root", "error", err)
	}
	return g
}

// valid temperature range; values outside it are sensor faults
const (
	minCelsius = 0
	maxCelsius = 150
)

// SplitKey splits a sensor key into its chip and sensor label. Keys
// without a separator belong to a chip of the same name.
func SplitKey(key string) (chip, label string) {
	key = strings.ToLower(strings.TrimSpace(key))
	if i := strings.IndexByte(key, '_'); i > 0 && i < len(key)-1 {
		return key[:i], key[i+1:]
	}
	return key, "input"
}

// labelName turns "package_id_0" into "Package Id 0".
func labelName(label string) string {
	words := strings.Fields(strings.ReplaceAll(label, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

type chip struct {
	node    *hardware.Node
	sensors map[string]*hardware.Sensor
}

// device probes all temperatures and keeps the chip subtree in step with
// what the operating system reports.
type device struct {
	probe   Probe
	now     func() time.Time
	logger  *slog.Logger
	history hardware.HistoryPolicy
	chips   map[string]*chip
}

func (d *device) Update(root *hardware.Node) error {
	readings, err := d.probe()
	if err != nil {
		return err
	}

	byChip := make(map[string][]Reading)
	for _, r := range readings {
		name, _ := SplitKey(r.Key)
		if name == "" {
			continue
		}
		byChip[name] = append(byChip[name], r)
	}

	for name, c := range d.chips {
		if _, ok := byChip[name]; !ok {
			delete(d.chips, name)
			if err := root.RemoveChild(c.node); err != nil {
				d.logger.Warn("failed to remove thermal chip", "chip", name, "error", err)
			}
		}
	}

	names := make([]string, 0, len(byChip))
	for name := range byChip {
		names = append(names, name)
	}
	sort.Strings(names)

	now := d.now()
	for _, name := range names {
		c, ok := d.chips[name]
		if !ok {
			node := hardware.NewNode(root.ID().Child(name), name, hardware.TypeThermal, nil,
				hardware.WithHistory(d.history))
			if err := root.AddChild(node); err != nil {
				d.logger.Warn("failed to add thermal chip", "chip", name, "error", err)
				continue
			}
			c = &chip{node: node, sensors: make(map[string]*hardware.Sensor)}
			d.chips[name] = c
		}
		d.updateChip(c, byChip[name], now)
	}
	return nil
}

func (d *device) updateChip(c *chip, readings []Reading, now time.Time) {
	seen := make(map[string]bool, len(readings))
	for _, r := range readings {
		_, label := SplitKey(r.Key)
		if seen[label] {
			continue
		}
		seen[label] = true

		s, ok := c.sensors[label]
		if !ok {
			s = hardware.NewKeyedSensor(labelName(label), label, len(c.sensors), hardware.SensorTemperature, c.node)
			if !c.node.AddSensor(s) {
				continue
			}
			c.sensors[label] = s
		}
		if r.Celsius <= minCelsius || r.Celsius > maxCelsius {
			s.SetUnavailable(now)
			continue
		}
		s.Set(r.Celsius, now)
	}

	for label, s := range c.sensors {
		if !seen[label] {
			delete(c.sensors, label)
			c.node.RemoveSensor(s)
		}
	}
}

// Package memory provides the memory hardware group: one node with load
// and usage sensors for physical and virtual memory.
package memory

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/sigreer/hwgod/internal/hardware"
)

// Stats is one memory usage sample in bytes.
type Stats struct {
	Total     uint64
	Used      uint64
	Available uint64
	SwapTotal uint64
	SwapUsed  uint64
}

// Probe reads current memory usage.
type Probe func() (Stats, error)

// SystemProbe reads memory usage from the operating system.
func SystemProbe() (Stats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read memory usage: %w", err)
	}
	swap, err := mem.SwapMemory()
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read swap usage: %w", err)
	}
	return Stats{
		Total:     vm.Total,
		Used:      vm.Used,
		Available: vm.Available,
		SwapTotal: swap.Total,
		SwapUsed:  swap.Used,
	}, nil
}

// platforms with a memory implementation
var supported = map[string]bool{
	"linux":   true,
	"windows": true,
	"darwin":  true,
	"freebsd": true,
}

// Options configures New. Zero fields use the system defaults.
type Options struct {
	GOOS    string
	Probe   Probe
	History hardware.HistoryPolicy
	Logger  *slog.Logger
	Now     func() time.Time
}

// Group is the memory hardware group.
type Group struct {
	*hardware.Roster
}

// New builds the memory group. On platforms without an implementation the
// group has no nodes.
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

	g := &Group{Roster: hardware.NewRoster("Memory")}
	if !supported[opts.GOOS] {
		opts.Logger.Debug("memory group not supported", "os", opts.GOOS)
		return g
	}

	d := &device{probe: opts.Probe, now: opts.Now}
	node := hardware.NewNode(hardware.NewIdentifier("ram"), "Generic Memory", hardware.TypeRAM, d,
		hardware.WithHistory(opts.History))
	if err := d.Update(node); err != nil {
		// the node stays without sensors until a probe succeeds
		opts.Logger.Warn("memory usage unavailable", "error", err)
	}
	g.Add(node)
	return g
}

type sensors struct {
	load          *hardware.Sensor
	used          *hardware.Sensor
	available     *hardware.Sensor
	swapLoad      *hardware.Sensor
	swapUsed      *hardware.Sensor
	swapAvailable *hardware.Sensor
}

// device samples memory usage into the node's sensors. Sensors are created
// on the first successful probe.
type device struct {
	probe Probe
	now   func() time.Time
	s     *sensors
}

const gib = 1 << 30

func (d *device) Update(n *hardware.Node) error {
	st, err := d.probe()
	if err != nil {
		return err
	}
	if d.s == nil {
		d.s = &sensors{
			load:          hardware.NewSensor("Memory", 0, hardware.SensorLoad, n),
			used:          hardware.NewSensor("Used Memory", 0, hardware.SensorData, n),
			available:     hardware.NewSensor("Available Memory", 1, hardware.SensorData, n),
			swapLoad:      hardware.NewSensor("Virtual Memory", 1, hardware.SensorLoad, n),
			swapUsed:      hardware.NewSensor("Used Virtual Memory", 2, hardware.SensorData, n),
			swapAvailable: hardware.NewSensor("Available Virtual Memory", 3, hardware.SensorData, n),
		}
		for _, s := range []*hardware.Sensor{
			d.s.load, d.s.used, d.s.available,
			d.s.swapLoad, d.s.swapUsed, d.s.swapAvailable,
		} {
			n.AddSensor(s)
		}
	}

	now := d.now()
	d.s.used.Set(float64(st.Used)/gib, now)
	d.s.available.Set(float64(st.Available)/gib, now)
	if st.Total > 0 {
		d.s.load.Set(100*float64(st.Used)/float64(st.Total), now)
	} else {
		d.s.load.SetUnavailable(now)
	}

	if st.SwapTotal > 0 {
		d.s.swapLoad.Set(100*float64(st.SwapUsed)/float64(st.SwapTotal), now)
		d.s.swapUsed.Set(float64(st.SwapUsed)/gib, now)
		d.s.swapAvailable.Set(float64(st.SwapTotal-st.SwapUsed)/gib, now)
	} else {
		d.s.swapLoad.SetUnavailable(now)
		d.s.swapUsed.SetUnavailable(now)
		d.s.swapAvailable.SetUnavailable(now)
	}
	return nil
}

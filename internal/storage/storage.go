// Package storage provides the storage hardware group: one node per
// physical disk, with sensors for every SMART attribute the drive reports.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/sigreer/hwgod/internal/ata"
	"github.com/sigreer/hwgod/internal/cache"
	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/rawdev"
	"github.com/sigreer/hwgod/internal/smart"
)

// DefaultMaxDrives bounds index probing when no discovery source works.
const DefaultMaxDrives = 8

// genericName is used when a drive reports no model anywhere.
const genericName = "Generic Hard Disk"

// OpenFunc opens the command channel of the numbered drive.
type OpenFunc func(index int) (smart.Channel, error)

// Options configures New. Zero fields use the system defaults.
type Options struct {
	GOOS           string
	MaxDrives      int
	Excluded       func(index int) bool
	CommandTimeout time.Duration
	Watchdog       time.Duration

	// Discover lists candidate disks; the first source that succeeds wins.
	Discover []Discoverer
	Open     OpenFunc

	SysfsRoot string
	History   hardware.HistoryPolicy
	Logger    *slog.Logger
	Now       func() time.Time
}

var supported = map[string]bool{
	"linux":   true,
	"windows": true,
}

// Group is the storage hardware group.
type Group struct {
	*hardware.Roster

	opts       Options
	identities *cache.Cache[int, smart.Identity]
	thresholds *cache.Cache[int, []ata.DriveThresholdValue]

	mu     sync.Mutex
	drives map[int]*hardware.Node
}

// New builds the storage group and runs the first discovery pass. Drives
// that cannot be opened are skipped.
func New(opts Options) *Group {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.MaxDrives <= 0 {
		opts.MaxDrives = DefaultMaxDrives
	}
	if opts.Excluded == nil {
		opts.Excluded = func(int) bool { return false }
	}
	if opts.SysfsRoot == "" {
		opts.SysfsRoot = DefaultSysfsRoot
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
	if opts.Open == nil {
		opts.Open = rawOpener(opts.CommandTimeout, opts.Watchdog)
	}
	if opts.Discover == nil {
		opts.Discover = defaultSources(opts.GOOS, opts.MaxDrives, opts.SysfsRoot)
	}

	g := &Group{
		Roster:     hardware.NewRoster("Storage"),
		opts:       opts,
		identities: cache.New[int, smart.Identity](),
		thresholds: cache.New[int, []ata.DriveThresholdValue](),
		drives:     make(map[int]*hardware.Node),
	}
	g.HardwareRemoved().Subscribe(g.forget)

	if !supported[opts.GOOS] {
		return g
	}
	if err := g.Rescan(); err != nil {
		opts.Logger.Warn("storage discovery incomplete", "error", err)
	}
	return g
}

func rawOpener(timeout, watchdog time.Duration) OpenFunc {
	var ropts []rawdev.Option
	if timeout > 0 {
		ropts = append(ropts, rawdev.WithCommandTimeout(timeout))
	}
	if watchdog > 0 {
		ropts = append(ropts, rawdev.WithWatchdog(watchdog))
	}
	return func(index int) (smart.Channel, error) {
		ch, err := rawdev.Open(index, ropts...)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}
}

func defaultSources(goos string, max int, sysRoot string) []Discoverer {
	if goos == "linux" {
		return []Discoverer{BlockDiscover, UdevDiscover(sysRoot, DefaultUdevRoot), LsblkDiscover, ProbeDiscover(max)}
	}
	return []Discoverer{BlockDiscover, ProbeDiscover(max)}
}

// Rescan discovers disks, adds a node for each new drive that opens and
// removes nodes whose disk is no longer listed.
func (g *Group) Rescan() error {
	if !supported[g.opts.GOOS] || g.Closed() {
		return nil
	}
	candidates, err := Discover(g.opts.Discover...)
	if err != nil {
		return fmt.Errorf("failed to discover disks: %w", err)
	}

	listed := make(map[int]bool, len(candidates))
	var errs []error
	for _, c := range candidates {
		if g.opts.Excluded(c.Index) {
			continue
		}
		listed[c.Index] = true
		if g.node(c.Index) != nil {
			continue
		}

		node, err := g.openDrive(c)
		if err != nil {
			if errors.Is(err, rawdev.ErrDeviceUnavailable) {
				g.opts.Logger.Debug("drive unavailable", "index", c.Index, "error", err)
				continue
			}
			errs = append(errs, err)
			continue
		}

		g.mu.Lock()
		g.drives[c.Index] = node
		g.mu.Unlock()
		if err := g.Add(node); err != nil {
			g.forget(node)
			node.Close()
			errs = append(errs, err)
			continue
		}
		g.opts.Logger.Info("drive added", "index", c.Index, "name", node.Name())
	}

	for _, n := range g.Hardware() {
		d, ok := n.Device().(*Drive)
		if !ok || listed[d.index] {
			continue
		}
		g.opts.Logger.Info("drive vanished", "index", d.index, "name", n.Name())
		if err := g.Remove(n); err != nil {
			errs = append(errs, err)
		}
	}

	g.identities.Cleanup()
	g.thresholds.Cleanup()
	return errors.Join(errs...)
}

// node returns the drive node for index, or nil.
func (g *Group) node(index int) *hardware.Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.drives[index]
}

// forget drops everything known about a removed node's drive.
func (g *Group) forget(n *hardware.Node) {
	d, ok := n.Device().(*Drive)
	if !ok {
		return
	}
	g.mu.Lock()
	if g.drives[d.index] == n {
		delete(g.drives, d.index)
	}
	g.mu.Unlock()
	g.identities.Delete(d.index)
	g.thresholds.Delete(d.index)
}

func (g *Group) openDrive(c Candidate) (*hardware.Node, error) {
	ch, err := g.opts.Open(c.Index)
	if err != nil {
		return nil, err
	}
	svc := smart.New(ch, c.Index)

	enabled, err := svc.EnableSmart()
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("failed to enable SMART on drive %d: %w", c.Index, err)
	}
	if !enabled {
		g.opts.Logger.Info("SMART not supported", "index", c.Index)
	}

	identity, err := g.identities.GetOrFetch(c.Index, cache.TTLStatic, svc.ReadIdentity)
	if err != nil {
		g.opts.Logger.Debug("identify failed", "index", c.Index, "error", err)
	}
	if identity.Serial == "" {
		identity.Serial = c.Serial
	}

	d := &Drive{
		index:      c.Index,
		svc:        svc,
		smartOn:    enabled,
		identity:   identity,
		candidate:  c,
		thresholds: g.thresholds,
		now:        g.opts.Now,
	}
	name := g.driveName(identity, c)
	node := hardware.NewNode(hardware.NewIdentifier("hdd", fmt.Sprint(c.Index)), name, hardware.TypeHDD, d,
		hardware.WithHistory(g.opts.History))

	if err := node.Update(); err != nil {
		g.opts.Logger.Debug("initial SMART read failed", "index", c.Index, "error", err)
	}
	return node, nil
}

// driveName prefers the drive's own IDENTIFY model, then the model the
// OS reports, then a generic name.
func (g *Group) driveName(identity smart.Identity, c Candidate) string {
	if identity.Model != "" {
		return identity.Model
	}
	if c.Model != "" {
		return c.Model
	}
	if g.opts.GOOS == "linux" && c.Name != "" {
		if model := sysfsModel(g.opts.SysfsRoot, c.Name); model != "" {
			return model
		}
	}
	return genericName
}

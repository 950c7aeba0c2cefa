package thermal

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sigreer/hwgod/internal/hardware"
)

type scriptedProbe struct {
	readings []Reading
	err      error
}

func (p *scriptedProbe) read() ([]Reading, error) {
	return p.readings, p.err
}

func newTestGroup(p *scriptedProbe) *Group {
	return New(Options{
		GOOS:   "linux",
		Probe:  p.read,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	})
}

func TestSplitKey(t *testing.T) {
	cases := []struct {
		key, chip, label string
	}{
		{"coretemp_package_id_0", "coretemp", "package_id_0"},
		{"acpitz", "acpitz", "input"},
		{"NVME_composite", "nvme", "composite"},
		{"k10temp_", "k10temp_", "input"},
	}
	for _, c := range cases {
		chip, label := SplitKey(c.key)
		if chip != c.chip || label != c.label {
			t.Errorf("SplitKey(%q) = %q, %q; want %q, %q", c.key, chip, label, c.chip, c.label)
		}
	}
}

func TestChipsBecomeChildren(t *testing.T) {
	p := &scriptedProbe{readings: []Reading{
		{Key: "coretemp_package_id_0", Celsius: 48},
		{Key: "coretemp_core_0", Celsius: 45},
		{Key: "acpitz", Celsius: 27.8},
	}}
	g := newTestGroup(p)
	defer g.Close()

	roots := g.Hardware()
	if len(roots) != 1 || roots[0].ID().String() != "thermal" {
		t.Fatalf("roots = %v", roots)
	}
	root := roots[0]
	children := root.Children()
	if len(children) != 2 {
		t.Fatalf("got %d chips, want 2", len(children))
	}
	if children[0].ID().String() != "thermal/acpitz" || children[1].ID().String() != "thermal/coretemp" {
		t.Errorf("chips = %s, %s", children[0].ID(), children[1].ID())
	}

	s := children[1].Sensor(hardware.NewIdentifier("thermal", "coretemp", "temperature", "package_id_0"))
	if s == nil {
		t.Fatal("package sensor missing")
	}
	if s.Name() != "Package Id 0" {
		t.Errorf("name = %q", s.Name())
	}
	if v, ok := s.Value(); !ok || v != 48 {
		t.Errorf("value = %v, %v", v, ok)
	}
}

func TestChipsFollowProbe(t *testing.T) {
	p := &scriptedProbe{readings: []Reading{
		{Key: "coretemp_core_0", Celsius: 45},
		{Key: "coretemp_core_1", Celsius: 46},
		{Key: "nvme_composite", Celsius: 38},
	}}
	g := newTestGroup(p)
	defer g.Close()
	root := g.Hardware()[0]

	var removedNodes []string
	var removedSensors []string
	w := hardware.Watch(root, hardware.TreeHandler{
		NodeRemoved:   func(n *hardware.Node) { removedNodes = append(removedNodes, n.ID().String()) },
		SensorRemoved: func(s *hardware.Sensor) { removedSensors = append(removedSensors, s.ID().String()) },
	})
	defer w.Stop(false)

	p.readings = []Reading{{Key: "coretemp_core_0", Celsius: 50}}
	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if len(root.Children()) != 1 {
		t.Fatalf("got %d chips, want 1", len(root.Children()))
	}
	if len(removedNodes) != 1 || removedNodes[0] != "thermal/nvme" {
		t.Errorf("removed nodes = %v", removedNodes)
	}
	want := map[string]bool{
		"thermal/coretemp/temperature/core_1": true,
		"thermal/nvme/temperature/composite":  true,
	}
	if len(removedSensors) != len(want) {
		t.Fatalf("removed sensors = %v", removedSensors)
	}
	for _, id := range removedSensors {
		if !want[id] {
			t.Errorf("unexpected removal of %s", id)
		}
	}
}

func TestOutOfRangeIsUnavailable(t *testing.T) {
	p := &scriptedProbe{readings: []Reading{{Key: "bogus_temp1", Celsius: 255}}}
	g := newTestGroup(p)
	defer g.Close()

	s := g.Hardware()[0].Children()[0].Sensors()[0]
	if _, ok := s.Value(); ok {
		t.Error("out of range reading reported as valid")
	}
}

func TestProbeFailureKeepsRoot(t *testing.T) {
	p := &scriptedProbe{err: errors.New("no hwmon")}
	g := newTestGroup(p)
	defer g.Close()

	roots := g.Hardware()
	if len(roots) != 1 {
		t.Fatalf("got %d roots, want 1", len(roots))
	}
	if len(roots[0].Children()) != 0 || len(roots[0].Sensors()) != 0 {
		t.Error("failed probe produced children or sensors")
	}
	if err := g.Update(); err == nil {
		t.Error("Update reported no error")
	}

	p.err = nil
	p.readings = []Reading{{Key: "acpitz", Celsius: 30}}
	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(roots[0].Children()) != 1 {
		t.Error("chip not added after recovery")
	}
}

func TestReadFailureMarksChipsStale(t *testing.T) {
	p := &scriptedProbe{readings: []Reading{{Key: "acpitz", Celsius: 40}}}
	g := newTestGroup(p)
	defer g.Close()

	chips := g.Hardware()[0].Children()
	if len(chips) != 1 || len(chips[0].Sensors()) != 1 {
		t.Fatalf("chips = %v", chips)
	}
	s := chips[0].Sensors()[0]

	p.err = errors.New("hwmon gone")
	if err := g.Update(); err == nil {
		t.Fatal("Update reported no error")
	}
	snap := s.Snapshot()
	if !snap.Stale || !snap.Valid || snap.Value != 40 {
		t.Errorf("chip sensor after failed read = %+v, want 40 and stale", snap)
	}

	p.err = nil
	if err := g.Update(); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Snapshot().Stale {
		t.Error("sensor still stale after a good read")
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	g := New(Options{GOOS: "js", Probe: (&scriptedProbe{}).read})
	if len(g.Hardware()) != 0 {
		t.Error("unsupported platform has nodes")
	}
}

package hardware

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// testDevice sets every sensor of its node to a fixed value, or fails.
type testDevice struct {
	value   float64
	err     error
	updates int
	closed  int
	log     *[]string
	name    string
}

func (d *testDevice) Update(n *Node) error {
	d.updates++
	if d.log != nil {
		*d.log = append(*d.log, "update:"+d.name)
	}
	if d.err != nil {
		return d.err
	}
	for _, s := range n.Sensors() {
		s.Set(d.value, time.Now())
	}
	return nil
}

func (d *testDevice) Close() error {
	d.closed++
	if d.log != nil {
		*d.log = append(*d.log, "release:"+d.name)
	}
	return nil
}

// recordTree subscribes to every event of n and its current subtree.
func recordTree(n *Node, log *[]string) {
	n.SensorRemoved().Subscribe(func(s *Sensor) { *log = append(*log, "sensor-removed:"+s.Name()) })
	n.ChildRemoved().Subscribe(func(c *Node) { *log = append(*log, "child-removed:"+c.Name()) })
	for _, c := range n.Children() {
		recordTree(c, log)
	}
}

func buildTree(t *testing.T, log *[]string) (*Node, map[string]*testDevice) {
	t.Helper()
	devices := map[string]*testDevice{}
	node := func(name string, parent *Node) *Node {
		d := &testDevice{value: 1, log: log, name: name}
		devices[name] = d
		id := NewIdentifier(name)
		if parent != nil {
			id = parent.ID().Child(name)
		}
		n := NewNode(id, name, TypeController, d)
		n.AddSensor(NewSensor(name+".s", 0, SensorLoad, n))
		if parent != nil {
			if err := parent.AddChild(n); err != nil {
				t.Fatalf("AddChild(%s): %v", name, err)
			}
		}
		return n
	}

	root := node("root", nil)
	a := node("a", root)
	node("a1", a)
	node("b", root)
	return root, devices
}

func TestCloseIsDepthFirst(t *testing.T) {
	var log []string
	root, devices := buildTree(t, &log)
	recordTree(root, &log)

	if err := root.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{
		"sensor-removed:a1.s", "release:a1", "child-removed:a1",
		"sensor-removed:a.s", "release:a", "child-removed:a",
		"sensor-removed:b.s", "release:b", "child-removed:b",
		"sensor-removed:root.s", "release:root",
	}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Errorf("close order\n got %v\nwant %v", log, want)
	}

	if len(root.Children()) != 0 || len(root.Sensors()) != 0 {
		t.Error("closed root still holds children or sensors")
	}
	for name, d := range devices {
		if d.closed != 1 {
			t.Errorf("device %s released %d times, want 1", name, d.closed)
		}
	}
	if root.State() != StateClosed {
		t.Errorf("state = %v, want closed", root.State())
	}

	if err := root.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if devices["root"].closed != 1 {
		t.Error("second Close released the device again")
	}
}

func TestStateTransitions(t *testing.T) {
	n := NewNode(NewIdentifier("ram"), "Memory", TypeRAM, nil)
	if n.State() != StateDiscovered {
		t.Fatalf("new node state = %v", n.State())
	}
	n.AddSensor(NewSensor("Load", 0, SensorLoad, n))
	if n.State() != StateActive {
		t.Fatalf("state after first sensor = %v", n.State())
	}
	n.Close()
	if n.AddSensor(NewSensor("Used", 0, SensorData, n)) {
		t.Error("closed node accepted a sensor")
	}
	if err := n.Update(); !errors.Is(err, ErrClosed) {
		t.Errorf("Update on closed node err = %v, want ErrClosed", err)
	}
}

func TestAddSensorRejectsForeignAndDuplicate(t *testing.T) {
	a := NewNode(NewIdentifier("a"), "A", TypeRAM, nil)
	b := NewNode(NewIdentifier("b"), "B", TypeRAM, nil)
	s := NewSensor("Load", 0, SensorLoad, a)

	if b.AddSensor(s) {
		t.Error("node accepted a sensor owned by another node")
	}
	if !a.AddSensor(s) {
		t.Fatal("AddSensor failed")
	}
	if a.AddSensor(s) || a.AddSensor(NewSensor("Load again", 0, SensorLoad, a)) {
		t.Error("duplicate sensor accepted")
	}
	if !a.Contains(s) || b.Contains(s) {
		t.Error("Contains mismatch")
	}
	if a.Sensor(s.ID()) != s {
		t.Error("Sensor lookup failed")
	}
	if !a.RemoveSensor(s) || a.Contains(s) {
		t.Error("RemoveSensor failed")
	}
	if a.RemoveSensor(s) {
		t.Error("second RemoveSensor reported true")
	}
}

func TestAddChildKeepsTree(t *testing.T) {
	root := NewNode(NewIdentifier("r"), "R", TypeMainboard, nil)
	child := NewNode(NewIdentifier("r", "c"), "C", TypeController, nil)
	other := NewNode(NewIdentifier("o"), "O", TypeMainboard, nil)

	if err := root.AddChild(root); err == nil {
		t.Error("node became its own child")
	}
	if err := root.AddChild(child); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := other.AddChild(child); err == nil {
		t.Error("child attached to a second parent")
	}
	if err := child.AddChild(root); err == nil {
		t.Error("cycle accepted")
	}
	if child.Parent() != root || root.Child(child.ID()) != child {
		t.Error("parent/child links wrong")
	}
}

func TestReplaySensorsAfterLateSubscription(t *testing.T) {
	n := NewNode(NewIdentifier("hdd", "0"), "Disk", TypeHDD, nil)
	var want []*Sensor
	for i := 0; i < 4; i++ {
		s := NewSensor(fmt.Sprintf("Attr %d", i), i, SensorRawValue, n)
		n.AddSensor(s)
		want = append(want, s)
	}

	var got []*Sensor
	n.SensorAdded().Subscribe(func(s *Sensor) { got = append(got, s) })
	if len(got) != 0 {
		t.Fatal("late subscriber notified retroactively")
	}

	n.ReplaySensors(func(s *Sensor) { got = append(got, s) })
	if len(got) != len(want) {
		t.Fatalf("replayed %d sensors, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("replay[%d] = %s, want %s", i, got[i].Name(), want[i].Name())
		}
	}

	extra := NewSensor("Attr 4", 4, SensorRawValue, n)
	n.AddSensor(extra)
	if len(got) != 5 || got[4] != extra {
		t.Error("sensor added after subscription not delivered exactly once")
	}
}

func TestUpdateAllToleratesFailures(t *testing.T) {
	var log []string
	root, devices := buildTree(t, &log)
	devices["a"].err = errors.New("read failed")

	if err := root.UpdateAll(); !errors.Is(err, devices["a"].err) {
		t.Fatalf("UpdateAll err = %v", err)
	}

	if fmt.Sprint(log) != "[update:root update:a update:a1 update:b]" {
		t.Errorf("update order = %v", log)
	}

	a := root.Children()[0]
	if snap := a.Sensors()[0].Snapshot(); !snap.Stale || snap.Valid {
		t.Errorf("failed node sensor = %+v, want stale without value", snap)
	}
	if snap := root.Children()[1].Sensors()[0].Snapshot(); snap.Stale || !snap.Valid {
		t.Errorf("healthy node sensor = %+v", snap)
	}
	if len(root.Children()) != 2 {
		t.Error("a failing child was removed")
	}
}

func TestUpdateAllRemovesGoneChildren(t *testing.T) {
	var log []string
	root, devices := buildTree(t, &log)
	devices["a"].err = fmt.Errorf("channel invalid: %w", ErrDeviceGone)

	var removed []string
	root.ChildRemoved().Subscribe(func(c *Node) { removed = append(removed, c.Name()) })

	if err := root.UpdateAll(); !errors.Is(err, ErrDeviceGone) {
		t.Fatalf("UpdateAll err = %v, want ErrDeviceGone", err)
	}
	if fmt.Sprint(removed) != "[a]" {
		t.Errorf("removed = %v, want [a]", removed)
	}
	if devices["a"].closed != 1 || devices["a1"].closed != 1 {
		t.Error("gone subtree not released")
	}
	if devices["a1"].updates != 0 {
		t.Error("child of a gone node was updated")
	}
	if len(root.Children()) != 1 {
		t.Errorf("root has %d children, want 1", len(root.Children()))
	}
}

func TestFailedUpdateMarksDevicelessChildrenStale(t *testing.T) {
	dev := &testDevice{err: errors.New("probe failed")}
	root := NewNode(NewIdentifier("thermal"), "Thermal", TypeThermal, dev)
	chip := NewNode(root.ID().Child("acpitz"), "acpitz", TypeThermal, nil)
	own := NewNode(root.ID().Child("nvme"), "nvme", TypeThermal, &testDevice{value: 2})
	root.AddChild(chip)
	root.AddChild(own)

	chipSensor := NewSensor("Input", 0, SensorTemperature, chip)
	chip.AddSensor(chipSensor)
	chipSensor.Set(40, time.Now())
	ownSensor := NewSensor("Composite", 0, SensorTemperature, own)
	own.AddSensor(ownSensor)
	ownSensor.Set(35, time.Now())

	if err := root.Update(); err == nil {
		t.Fatal("Update reported no error")
	}
	snap := chipSensor.Snapshot()
	if !snap.Stale || !snap.Valid || snap.Value != 40 {
		t.Errorf("chip sensor = %+v, want last value kept and stale", snap)
	}
	if ownSensor.Snapshot().Stale {
		t.Error("child with its own device marked stale")
	}
}

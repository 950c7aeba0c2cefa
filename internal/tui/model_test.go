package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/logging"
)

type mapSettings map[string]string

func (s mapSettings) Get(key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func (s mapSettings) Set(key, value string) error {
	s[key] = value
	return nil
}

func (s mapSettings) Delete(key string) error {
	delete(s, key)
	return nil
}

// counter sets its temperature sensor to the number of updates
type counter struct {
	n int
}

func (c *counter) Update(n *hardware.Node) error {
	c.n++
	for _, s := range n.Sensors() {
		s.Set(float64(30+c.n), time.Now())
	}
	return nil
}

type testGroup struct {
	*hardware.Roster
}

func testComputer(t *testing.T) (*hardware.Computer, *counter) {
	t.Helper()
	g := &testGroup{Roster: hardware.NewRoster("test")}
	dev := &counter{}

	disk := hardware.NewNode(hardware.NewIdentifier("hdd", "0"), "Test Disk", hardware.TypeHDD, dev)
	disk.AddSensor(hardware.NewSensor("Temperature", 0, hardware.SensorTemperature, disk))
	disk.AddSensor(hardware.NewSensor("Airflow", 1, hardware.SensorTemperature, disk))
	g.Add(disk)

	ram := hardware.NewNode(hardware.NewIdentifier("ram"), "Generic Memory", hardware.TypeRAM, nil)
	ram.AddSensor(hardware.NewSensor("Memory", 0, hardware.SensorLoad, ram))
	g.Add(ram)

	c := hardware.NewComputer(logging.Discard(), func() (hardware.Group, error) { return g, nil })
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, dev
}

func key(s string) tea.KeyMsg {
	switch s {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return nm, cmd
}

func TestRowsAndCursor(t *testing.T) {
	c, _ := testComputer(t)
	m := NewModel(c, mapSettings{}, time.Second)

	// hdd/0 header, 2 sensors, ram header, 1 sensor
	if len(m.rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(m.rows))
	}
	if m.selected() == nil || m.selected().ID != "hdd/0/temperature/0" {
		t.Fatalf("initial selection = %+v", m.selected())
	}

	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("down"))
	if got := m.selected().ID; got != "ram/load/0" {
		t.Errorf("after two downs selected %s, want ram/load/0", got)
	}
	m, _ = send(t, m, key("down"))
	if got := m.selected().ID; got != "ram/load/0" {
		t.Errorf("cursor moved past the last sensor to %s", got)
	}
	m, _ = send(t, m, key("up"))
	if got := m.selected().ID; got != "hdd/0/temperature/1" {
		t.Errorf("after up selected %s", got)
	}
}

func TestUpdateRefreshesValues(t *testing.T) {
	c, dev := testComputer(t)
	m := NewModel(c, nil, time.Second)

	msg := update(c, nil)()
	m, _ = send(t, m, msg)
	if dev.n != 1 {
		t.Fatalf("device updated %d times, want 1", dev.n)
	}
	if v := m.selected().Value; v == nil || *v != 31 {
		t.Errorf("value after update = %v", v)
	}

	m, _ = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	view := m.View()
	for _, want := range []string{"Test Disk", "31.0°C", "Generic Memory", "No pinned sensors"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTickHookAndErrors(t *testing.T) {
	c, _ := testComputer(t)
	calls := 0
	hook := func(*hardware.Computer) error {
		calls++
		return errors.New("disk full")
	}
	m := NewModel(c, nil, time.Second, WithTickHook(hook))

	m, _ = send(t, m, update(m.computer, m.onTick)())
	if calls != 1 {
		t.Errorf("hook called %d times", calls)
	}
	if m.err == nil || m.err.Error() != "disk full" {
		t.Errorf("err = %v", m.err)
	}
}

func TestPauseSkipsUpdates(t *testing.T) {
	c, _ := testComputer(t)
	m := NewModel(c, nil, time.Second)

	m, _ = send(t, m, key(" "))
	if !m.paused {
		t.Fatal("space did not pause")
	}
	_, cmd := send(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("paused tick did not reschedule")
	}
	m, _ = send(t, m, key(" "))
	if m.paused {
		t.Error("space did not resume")
	}
}

func TestPinToggle(t *testing.T) {
	c, _ := testComputer(t)
	settings := mapSettings{}
	m := NewModel(c, settings, time.Second)

	m, _ = send(t, m, key("p"))
	const k = "hdd/0/temperature/0/tray"
	if settings[k] != "true" {
		t.Fatalf("settings = %v", settings)
	}
	if !m.selected().Pinned {
		t.Error("selected sensor not marked pinned")
	}

	m, _ = send(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	if strings.Contains(m.View(), "No pinned sensors") {
		t.Error("pinned header still empty")
	}

	m, _ = send(t, m, key("p"))
	if _, ok := settings[k]; ok {
		t.Errorf("unpin left %v", settings)
	}
	if m.selected().Pinned {
		t.Error("sensor still pinned")
	}
}

func TestPinsLoadedFromSettings(t *testing.T) {
	c, _ := testComputer(t)
	settings := mapSettings{"ram/load/0/tray": "true"}
	m := NewModel(c, settings, time.Second)

	var pinned []string
	for _, r := range m.rows {
		if r.sensor != nil && r.sensor.Pinned {
			pinned = append(pinned, r.sensor.ID)
		}
	}
	if len(pinned) != 1 || pinned[0] != "ram/load/0" {
		t.Errorf("pinned = %v", pinned)
	}
}

func TestQuit(t *testing.T) {
	c, _ := testComputer(t)
	m := NewModel(c, nil, time.Second)
	_, cmd := send(t, m, key("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestEmptyComputer(t *testing.T) {
	c := hardware.NewComputer(logging.Discard())
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := NewModel(c, nil, time.Second)
	m, _ = send(t, m, key("down"))
	m, _ = send(t, m, key("p"))
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 80, Height: 20})
	if !strings.Contains(m.View(), "No hardware found") {
		t.Errorf("view = %q", m.View())
	}
}

// scanningGroup adds a fan controller on its first rescan
type scanningGroup struct {
	*hardware.Roster
	scans int
}

func (g *scanningGroup) Rescan() error {
	g.scans++
	if g.scans > 1 {
		return errors.New("bus busy")
	}
	fan := hardware.NewNode(hardware.NewIdentifier("fanctl"), "Fan Controller", hardware.TypeController, nil)
	fan.AddSensor(hardware.NewSensor("Fan", 0, hardware.SensorLoad, fan))
	return g.Add(fan)
}

func TestRescanRunsAsCommand(t *testing.T) {
	g := &scanningGroup{Roster: hardware.NewRoster("scan")}
	c := hardware.NewComputer(logging.Discard(), func() (hardware.Group, error) { return g, nil })
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	m := NewModel(c, nil, time.Second)
	m, cmd := send(t, m, key("r"))
	if cmd == nil {
		t.Fatal("r returned no command")
	}
	if g.scans != 0 {
		t.Fatal("rescan ran inside Update")
	}
	if len(m.rows) != 0 {
		t.Fatalf("rows before rescan finished = %d", len(m.rows))
	}

	raw := cmd()
	msg, ok := raw.(rescannedMsg)
	if !ok {
		t.Fatalf("command returned %T", raw)
	}
	m, _ = send(t, m, msg)
	if g.scans != 1 || m.err != nil {
		t.Fatalf("scans = %d, err = %v", g.scans, m.err)
	}
	if len(m.rows) != 2 || m.selected() == nil || m.selected().ID != "fanctl/load/0" {
		t.Errorf("rows after rescan = %d, selected %+v", len(m.rows), m.selected())
	}

	_, cmd = send(t, m, key("r"))
	m, _ = send(t, m, cmd())
	if m.err == nil || !strings.Contains(m.err.Error(), "bus busy") {
		t.Errorf("err = %v", m.err)
	}
	if len(m.rows) != 2 {
		t.Errorf("failed rescan dropped rows: %d", len(m.rows))
	}
}

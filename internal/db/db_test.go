package db

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/smart"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "nested", "hwgod.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hwgod.db")
	d, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d.Close()

	d, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	v, err := d.SchemaVersion()
	if err != nil || v != 2 {
		t.Errorf("schema version = %d, %v; want 2", v, err)
	}
}

func TestSettings(t *testing.T) {
	d := openTestDB(t)
	key := hardware.SettingKey(hardware.NewIdentifier("hdd", "0", "temperature", "0"), "tray")

	if _, ok, err := d.Get(key); ok || err != nil {
		t.Fatalf("Get on empty store = %v, %v", ok, err)
	}
	if err := d.Set(key, "true"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Set(key, "false"); err != nil {
		t.Fatalf("Set again: %v", err)
	}
	if v, ok, err := d.Get(key); !ok || err != nil || v != "false" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}

	d.Set("ram/load/0/tray", "true")
	d.Set("ram/load/0/traycolor", "#ff0000")
	keys, err := d.KeysWithSuffix("tray")
	if err != nil {
		t.Fatalf("KeysWithSuffix: %v", err)
	}
	if len(keys) != 2 || keys[0] != key || keys[1] != "ram/load/0/tray" {
		t.Errorf("keys = %v", keys)
	}

	if err := d.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := d.Delete(key); err != nil {
		t.Errorf("Delete missing key: %v", err)
	}
	if _, ok, _ := d.Get(key); ok {
		t.Error("deleted key still present")
	}
}

func TestEvents(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []*HardwareEvent{
		{Session: "s1", Identifier: "hdd/0", Name: "Disk", EventType: EventAdded, Timestamp: base},
		{Session: "s1", Identifier: "hdd/1", Name: "Disk", EventType: EventAdded, Timestamp: base.Add(time.Second)},
		{Session: "s1", Identifier: "hdd/10", Name: "Disk", EventType: EventAdded, Timestamp: base.Add(2 * time.Second)},
		{Session: "s1", Identifier: "hdd/1", Name: "Disk", EventType: EventRemoved, Timestamp: base.Add(3 * time.Second)},
	}
	for _, e := range events {
		if err := d.RecordEvent(e); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
		if e.ID == 0 {
			t.Error("event ID not set")
		}
	}

	recent, err := d.GetRecentEvents(2)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	if len(recent) != 2 || recent[0].EventType != EventRemoved || recent[1].Identifier != "hdd/10" {
		t.Errorf("recent = %+v, %+v", recent[0], recent[1])
	}
	if !recent[0].Timestamp.Equal(base.Add(3 * time.Second)) {
		t.Errorf("timestamp = %s", recent[0].Timestamp)
	}

	forOne, err := d.GetEventsFor("hdd/1", 0)
	if err != nil {
		t.Fatalf("GetEventsFor: %v", err)
	}
	if len(forOne) != 2 {
		t.Errorf("events for hdd/1 = %d, want 2 (hdd/10 is not below hdd/1)", len(forOne))
	}

	since, err := d.GetEventsSince(base.Add(time.Second))
	if err != nil {
		t.Fatalf("GetEventsSince: %v", err)
	}
	if len(since) != 2 {
		t.Errorf("events since = %d, want 2", len(since))
	}
}

func TestUpsertDrive(t *testing.T) {
	d := openTestDB(t)

	first := &DriveRecord{Serial: "WD-1", Model: "WDC WD40", Firmware: "82.00A82", SizeBytes: 4e12, Identifier: "hdd/0"}
	if err := d.UpsertDrive(first); err != nil {
		t.Fatalf("UpsertDrive: %v", err)
	}
	if first.ID == 0 || first.FirstSeen.IsZero() {
		t.Errorf("record not filled in: %+v", first)
	}

	moved := &DriveRecord{Serial: "WD-1", Identifier: "hdd/3"}
	if err := d.UpsertDrive(moved); err != nil {
		t.Fatalf("UpsertDrive: %v", err)
	}
	if moved.ID != first.ID || moved.Model != "WDC WD40" || moved.Identifier != "hdd/3" {
		t.Errorf("moved = %+v", moved)
	}

	if err := d.UpsertDrive(&DriveRecord{}); err == nil {
		t.Error("record without serial accepted")
	}
	if rec, err := d.GetDriveBySerial("nope"); rec != nil || err != nil {
		t.Errorf("GetDriveBySerial(missing) = %v, %v", rec, err)
	}
	all, err := d.GetAllDrives()
	if err != nil || len(all) != 1 {
		t.Errorf("GetAllDrives = %d, %v", len(all), err)
	}
}

func TestSamples(t *testing.T) {
	d := openTestDB(t)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	v1, v2 := 36.0, 37.0

	err := d.RecordSamples([]SampleRecord{
		{Session: "s", Identifier: "hdd/0/temperature/0", Value: &v1, Timestamp: base},
		{Session: "s", Identifier: "hdd/0/temperature/0", Value: &v2, Timestamp: base.Add(time.Second)},
		{Session: "s", Identifier: "hdd/0/temperature/0", Timestamp: base.Add(2 * time.Second)},
		{Session: "s", Identifier: "ram/load/0", Value: &v1, Timestamp: base},
	})
	if err != nil {
		t.Fatalf("RecordSamples: %v", err)
	}

	got, err := d.GetSamples("hdd/0/temperature/0", base.Add(-time.Second), 0)
	if err != nil {
		t.Fatalf("GetSamples: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	if *got[0].Value != 36 || *got[1].Value != 37 || got[2].Value != nil {
		t.Errorf("samples = %+v", got)
	}

	n, err := d.PruneSamples(base.Add(time.Second))
	if err != nil || n != 2 {
		t.Errorf("PruneSamples = %d, %v; want 2", n, err)
	}
}

type identifiedDevice struct {
	id smart.Identity
}

func (d *identifiedDevice) Update(*hardware.Node) error { return nil }
func (d *identifiedDevice) Identity() smart.Identity     { return d.id }
func (d *identifiedDevice) Size() uint64                 { return 500107862016 }

type testGroup struct {
	*hardware.Roster
}

func TestJournal(t *testing.T) {
	d := openTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g := &testGroup{Roster: hardware.NewRoster("test")}
	disk := hardware.NewNode(hardware.NewIdentifier("hdd", "0"), "Samsung SSD", hardware.TypeHDD,
		&identifiedDevice{id: smart.Identity{Model: "Samsung SSD", Serial: "S1", Firmware: "FW"}})
	g.Add(disk)

	c := hardware.NewComputer(logger, func() (hardware.Group, error) { return g, nil })
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	j := NewJournal(d, logger)
	j.Attach(c)

	ram := hardware.NewNode(hardware.NewIdentifier("ram"), "Generic Memory", hardware.TypeRAM, nil)
	g.Add(ram)
	load := hardware.NewSensor("Memory", 0, hardware.SensorLoad, ram)
	ram.AddSensor(load)
	load.Set(42, time.Now())

	if err := j.RecordTick(c); err != nil {
		t.Fatalf("RecordTick: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	j.Detach()

	events, err := d.GetRecentEvents(0)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	// started, hdd/0 added, ram added, 2 removals, stopped
	if len(events) != 6 {
		t.Fatalf("got %d events, want 6", len(events))
	}
	for _, e := range events {
		if e.Session != j.Session() {
			t.Errorf("event %s has session %q", e.EventType, e.Session)
		}
	}

	drive, err := d.GetDriveBySerial("S1")
	if err != nil || drive == nil {
		t.Fatalf("drive not inventoried: %v", err)
	}
	if drive.Identifier != "hdd/0" || drive.SizeBytes != 500107862016 {
		t.Errorf("drive = %+v", drive)
	}

	samples, err := d.GetSamples("ram/load/0", time.Time{}, 0)
	if err != nil || len(samples) != 1 || *samples[0].Value != 42 {
		t.Errorf("samples = %+v, %v", samples, err)
	}
}

func TestJournalFollowsChildNodes(t *testing.T) {
	d := openTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	g := &testGroup{Roster: hardware.NewRoster("test")}
	board := hardware.NewNode(hardware.NewIdentifier("mainboard"), "Board", hardware.TypeMainboard, nil)
	g.Add(board)

	c := hardware.NewComputer(logger, func() (hardware.Group, error) { return g, nil })
	if err := c.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	j := NewJournal(d, logger)
	j.Attach(c)

	chip := hardware.NewNode(board.ID().Child("acpitz"), "acpitz", hardware.TypeThermal, nil)
	if err := board.AddChild(chip); err != nil {
		t.Fatalf("AddChild: %v", err)
	}
	if err := board.RemoveChild(chip); err != nil {
		t.Fatalf("RemoveChild: %v", err)
	}
	late := hardware.NewNode(board.ID().Child("coretemp"), "coretemp", hardware.TypeThermal, nil)
	if err := board.AddChild(late); err != nil {
		t.Fatalf("AddChild: %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	j.Detach()

	for _, id := range []string{"mainboard", "mainboard/acpitz", "mainboard/coretemp"} {
		events, err := d.GetEventsFor(id, 0)
		if err != nil {
			t.Fatalf("GetEventsFor(%s): %v", id, err)
		}
		added, removed := 0, 0
		for _, e := range events {
			if e.Identifier != id {
				continue
			}
			switch e.EventType {
			case EventAdded:
				added++
			case EventRemoved:
				removed++
			}
		}
		if added != 1 || removed != 1 {
			t.Errorf("%s: %d added, %d removed; want 1 each", id, added, removed)
		}
	}

	all, err := d.GetRecentEvents(0)
	if err != nil {
		t.Fatalf("GetRecentEvents: %v", err)
	}
	// started, 3 added, 3 removed, stopped
	if len(all) != 8 {
		t.Errorf("got %d events, want 8", len(all))
	}
}

package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sigreer/hwgod/internal/ata"
	"github.com/sigreer/hwgod/internal/cache"
	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/rawdev"
	"github.com/sigreer/hwgod/internal/smart"
)

// Drive is the device behind a storage node. It owns the drive's SMART
// service and releases its channel when the node closes.
type Drive struct {
	index      int
	svc        *smart.Service
	smartOn    bool
	identity   smart.Identity
	candidate  Candidate
	thresholds *cache.Cache[int, []ata.DriveThresholdValue]
	now        func() time.Time

	// sensors are only touched from Update, which the node serializes
	sensors     map[byte]*hardware.Sensor
	levels      map[byte]*hardware.Sensor
	temperature *hardware.Sensor

	mu      sync.RWMutex
	entries []smart.Entry
}

// Index returns the zero-based drive index.
func (d *Drive) Index() int { return d.index }

// Identity returns the IDENTIFY strings read when the drive was opened.
func (d *Drive) Identity() smart.Identity { return d.identity }

// Size returns the capacity reported by discovery, zero if unknown.
func (d *Drive) Size() uint64 { return d.candidate.Size }

// SmartSupported reports whether the drive accepted SMART ENABLE
// OPERATIONS.
func (d *Drive) SmartSupported() bool { return d.smartOn }

// Entries returns the attribute table of the last successful update
// joined with its thresholds.
func (d *Drive) Entries() []smart.Entry {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]smart.Entry, len(d.entries))
	copy(out, d.entries)
	return out
}

// Update reads the attribute table and refreshes one raw value sensor and
// one normalized level sensor per attribute, plus the drive temperature
// when reported.
func (d *Drive) Update(n *hardware.Node) error {
	if !d.svc.IsValid() {
		return fmt.Errorf("drive %d: %w", d.index, hardware.ErrDeviceGone)
	}
	if !d.smartOn {
		return nil
	}

	attrs, err := d.svc.ReadAttributeTable()
	if err != nil {
		if errors.Is(err, rawdev.ErrDisposed) {
			return fmt.Errorf("drive %d: %v: %w", d.index, err, hardware.ErrDeviceGone)
		}
		return err
	}
	thresholds, err := d.thresholds.GetOrFetch(d.index, cache.TTLSlow, d.svc.ReadThresholds)
	if err != nil {
		return fmt.Errorf("drive %d: %v: %w", d.index, err, hardware.ErrDeviceGone)
	}
	entries := smart.Join(attrs, thresholds)

	if d.sensors == nil {
		d.sensors = make(map[byte]*hardware.Sensor)
		d.levels = make(map[byte]*hardware.Sensor)
	}
	now := d.now()
	seen := make(map[byte]bool, len(entries))
	for _, e := range entries {
		seen[e.ID] = true
		if s := attributeSensor(n, d.sensors, e, e.Name, hardware.SensorRawValue); s != nil {
			s.Set(float64(e.RawValue()), now)
		}
		if s := attributeSensor(n, d.levels, e, e.Name+" (normalized)", hardware.SensorLevel); s != nil {
			s.Set(float64(e.Value), now)
		}
	}
	for _, m := range []map[byte]*hardware.Sensor{d.sensors, d.levels} {
		for id, s := range m {
			if !seen[id] {
				s.SetUnavailable(now)
			}
		}
	}

	if celsius, ok := smart.Temperature(attrs); ok {
		if d.temperature == nil {
			d.temperature = hardware.NewSensor("Temperature", 0, hardware.SensorTemperature, n)
			n.AddSensor(d.temperature)
		}
		d.temperature.Set(celsius, now)
	} else if d.temperature != nil {
		d.temperature.SetUnavailable(now)
	}

	d.mu.Lock()
	d.entries = entries
	d.mu.Unlock()
	return nil
}

// attributeSensor returns the sensor of kind t for attribute e, creating
// and attaching it on first sight. It returns nil when n rejects it.
func attributeSensor(n *hardware.Node, m map[byte]*hardware.Sensor, e smart.Entry, name string, t hardware.SensorType) *hardware.Sensor {
	if s, ok := m[e.ID]; ok {
		return s
	}
	s := hardware.NewSensor(name, int(e.ID), t, n)
	if !n.AddSensor(s) {
		return nil
	}
	m[e.ID] = s
	return s
}

// Close releases the drive's channel.
func (d *Drive) Close() error {
	return d.svc.Close()
}

package db

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/sigreer/hwgod/internal/hardware"
	"github.com/sigreer/hwgod/internal/smart"
)

// identified is implemented by devices that know their drive identity
type identified interface {
	Identity() smart.Identity
	Size() uint64
}

// Journal records hardware appearing and disappearing on a computer, and
// keeps the drive inventory current. Child nodes that come and go below
// a root, such as thermal chips, are journaled too. Every journal run
// gets its own session ID.
type Journal struct {
	db      *DB
	session string
	logger  *slog.Logger

	mu      sync.Mutex
	c       *hardware.Computer
	added   hardware.Token
	removed hardware.Token

	wmu      sync.Mutex
	watchers map[*hardware.Node]*hardware.Watcher
}

// NewJournal returns a journal writing to db under a fresh session ID
func NewJournal(db *DB, logger *slog.Logger) *Journal {
	return &Journal{
		db:       db,
		session:  uuid.NewString(),
		logger:   logger,
		watchers: make(map[*hardware.Node]*hardware.Watcher),
	}
}

// Session returns the session ID stamped on every entry
func (j *Journal) Session() string {
	return j.session
}

// Attach subscribes to c. Hardware already present is recorded as added.
func (j *Journal) Attach(c *hardware.Computer) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c != nil {
		return
	}
	j.c = c
	j.record(&HardwareEvent{Identifier: "session", EventType: EventStarted})
	j.added = c.HardwareAdded().Subscribe(j.rootAdded)
	j.removed = c.HardwareRemoved().Subscribe(j.rootRemoved)
	for _, n := range c.Hardware() {
		j.rootAdded(n)
	}
}

// Detach unsubscribes and closes the session
func (j *Journal) Detach() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c == nil {
		return
	}
	j.c.HardwareAdded().Unsubscribe(j.added)
	j.c.HardwareRemoved().Unsubscribe(j.removed)
	j.c = nil

	j.wmu.Lock()
	watchers := j.watchers
	j.watchers = make(map[*hardware.Node]*hardware.Watcher)
	j.wmu.Unlock()
	for _, w := range watchers {
		if w != nil {
			w.Stop(false)
		}
	}
	j.record(&HardwareEvent{Identifier: "session", EventType: EventStopped})
}

// rootAdded follows a root and its subtree; the watcher reports the
// root and every existing descendant as added.
func (j *Journal) rootAdded(root *hardware.Node) {
	j.wmu.Lock()
	if _, ok := j.watchers[root]; ok {
		j.wmu.Unlock()
		return
	}
	j.watchers[root] = nil
	j.wmu.Unlock()

	w := hardware.Watch(root, hardware.TreeHandler{
		NodeAdded:   j.nodeAdded,
		NodeRemoved: j.nodeRemoved,
	})

	j.wmu.Lock()
	j.watchers[root] = w
	j.wmu.Unlock()
}

// rootRemoved reports whatever is left of the root's subtree as removed
func (j *Journal) rootRemoved(root *hardware.Node) {
	j.wmu.Lock()
	w, ok := j.watchers[root]
	delete(j.watchers, root)
	j.wmu.Unlock()
	if !ok || w == nil {
		j.nodeRemoved(root)
		return
	}
	w.Stop(true)
}

func (j *Journal) nodeAdded(n *hardware.Node) {
	j.record(&HardwareEvent{
		Identifier:   n.ID().String(),
		Name:         n.Name(),
		HardwareType: n.Type().String(),
		EventType:    EventAdded,
	})

	dev, ok := n.Device().(identified)
	if !ok {
		return
	}
	id := dev.Identity()
	if id.Serial == "" {
		return
	}
	drive := &DriveRecord{
		Serial:     id.Serial,
		Model:      id.Model,
		Firmware:   id.Firmware,
		SizeBytes:  int64(dev.Size()),
		Identifier: n.ID().String(),
	}
	if err := j.db.UpsertDrive(drive); err != nil {
		j.logger.Warn("failed to update drive inventory", "serial", id.Serial, "error", err)
	}
}

func (j *Journal) nodeRemoved(n *hardware.Node) {
	j.record(&HardwareEvent{
		Identifier:   n.ID().String(),
		Name:         n.Name(),
		HardwareType: n.Type().String(),
		EventType:    EventRemoved,
	})
}

func (j *Journal) record(e *HardwareEvent) {
	e.Session = j.session
	if err := j.db.RecordEvent(e); err != nil {
		j.logger.Warn("failed to journal hardware event", "identifier", e.Identifier, "error", err)
	}
}

// RecordTick writes the current value of every sensor under the
// computer's hardware to the sample log
func (j *Journal) RecordTick(c *hardware.Computer) error {
	now := j.db.now()
	var samples []SampleRecord
	for _, root := range c.Hardware() {
		root.Walk(func(n *hardware.Node) bool {
			for _, s := range n.Sensors() {
				r := s.Snapshot()
				rec := SampleRecord{Session: j.session, Identifier: s.ID().String(), Timestamp: now}
				if r.Valid && !r.Stale {
					v := r.Value
					rec.Value = &v
				}
				samples = append(samples, rec)
			}
			return true
		})
	}
	return j.db.RecordSamples(samples)
}

package hardware

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Sample is one historical value of a sensor.
type Sample struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// HistoryPolicy bounds the value history kept per sensor.
type HistoryPolicy struct {
	Length int           // maximum number of samples, 0 keeps none
	Window time.Duration // samples older than this are dropped, 0 keeps all
}

// DefaultHistory is used by nodes created without WithHistory.
var DefaultHistory = HistoryPolicy{Length: 600, Window: 10 * time.Minute}

// Reading is an immutable snapshot of a sensor's value. Readings are
// replaced as a whole on every write and must not be modified.
type Reading struct {
	Value   float64   `json:"value"`
	Valid   bool      `json:"valid"` // false when no value was available this cycle
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Seen    bool      `json:"seen"` // Min and Max hold at least one value
	Stale   bool      `json:"stale"`
	Updated time.Time `json:"updated"`
	History []Sample  `json:"history,omitempty"`
}

// Sensor is one named, typed measured value of a node.
type Sensor struct {
	id     Identifier
	name   string
	index  int
	typ    SensorType
	owner  *Node
	policy HistoryPolicy

	writeMu sync.Mutex
	reading atomic.Pointer[Reading]
}

// NewSensor creates a sensor of owner identified by type and index, e.g.
// "hdd/0/rawvalue/5". The sensor is not attached until owner.AddSensor.
func NewSensor(name string, index int, typ SensorType, owner *Node) *Sensor {
	return newSensor(owner.ID().Child(typ.String(), strconv.Itoa(index)), name, index, typ, owner)
}

// NewKeyedSensor creates a sensor identified by a string key instead of a
// numeric index, for sources whose sensor sets are sparse or named.
func NewKeyedSensor(name, key string, index int, typ SensorType, owner *Node) *Sensor {
	return newSensor(owner.ID().Child(typ.String(), key), name, index, typ, owner)
}

func newSensor(id Identifier, name string, index int, typ SensorType, owner *Node) *Sensor {
	s := &Sensor{
		id:     id,
		name:   name,
		index:  index,
		typ:    typ,
		owner:  owner,
		policy: owner.History(),
	}
	s.reading.Store(&Reading{})
	return s
}

// ID returns the sensor identifier.
func (s *Sensor) ID() Identifier { return s.id }

// Name returns the display name.
func (s *Sensor) Name() string { return s.name }

// Index returns the sensor's position among sensors of its type.
func (s *Sensor) Index() int { return s.index }

// Type returns the quantity kind.
func (s *Sensor) Type() SensorType { return s.typ }

// Hardware returns the owning node.
func (s *Sensor) Hardware() *Node { return s.owner }

// Snapshot returns the current reading. It never blocks on writers.
func (s *Sensor) Snapshot() Reading {
	return *s.reading.Load()
}

// Value returns the current value and whether it is valid.
func (s *Sensor) Value() (float64, bool) {
	r := s.reading.Load()
	return r.Value, r.Valid
}

func (s *Sensor) swap(fn func(r *Reading)) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := *s.reading.Load()
	fn(&next)
	s.reading.Store(&next)
}

// Set records a new value observed at t.
func (s *Sensor) Set(v float64, t time.Time) {
	s.swap(func(r *Reading) {
		r.Value = v
		r.Valid = true
		r.Stale = false
		r.Updated = t
		if !r.Seen || v < r.Min {
			r.Min = v
		}
		if !r.Seen || v > r.Max {
			r.Max = v
		}
		r.Seen = true
		r.History = s.policy.append(r.History, Sample{Time: t, Value: v})
	})
}

// SetUnavailable records that no value could be read at t. Min, max and
// history are kept.
func (s *Sensor) SetUnavailable(t time.Time) {
	s.swap(func(r *Reading) {
		r.Valid = false
		r.Stale = false
		r.Updated = t
	})
}

// MarkStale flags the last value as outdated after a failed update.
func (s *Sensor) MarkStale() {
	s.swap(func(r *Reading) {
		r.Stale = true
	})
}

// ResetMinMax forgets the observed range.
func (s *Sensor) ResetMinMax() {
	s.swap(func(r *Reading) {
		r.Seen = false
		r.Min, r.Max = 0, 0
		if r.Valid {
			r.Min, r.Max, r.Seen = r.Value, r.Value, true
		}
	})
}

// append returns a new history slice with sample added and old samples
// trimmed. The input slice is never modified.
func (p HistoryPolicy) append(h []Sample, sample Sample) []Sample {
	if p.Length <= 0 {
		return nil
	}
	start := 0
	if p.Window > 0 {
		cutoff := sample.Time.Add(-p.Window)
		for start < len(h) && h[start].Time.Before(cutoff) {
			start++
		}
	}
	if n := len(h) - start + 1; n > p.Length {
		start += n - p.Length
	}
	out := make([]Sample, 0, len(h)-start+1)
	out = append(out, h[start:]...)
	return append(out, sample)
}

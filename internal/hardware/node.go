// Package hardware models the discovered hardware as a forest of nodes,
// each owning sensors and child nodes, with add/remove notifications.
//
// Structure changes happen on the update goroutine. Readers may query
// nodes and take sensor snapshots concurrently.
package hardware

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// State is the lifecycle state of a node.
type State int32

const (
	StateDiscovered State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Device acquires values for a node's sensors. A device that also
// implements io.Closer is closed when its node closes.
type Device interface {
	// Update refreshes the sensors of n. Returning ErrDeviceGone removes
	// the node.
	Update(n *Node) error
}

// NodeOption configures NewNode.
type NodeOption func(*Node)

// WithHistory sets the history policy for sensors created on the node.
func WithHistory(p HistoryPolicy) NodeOption {
	return func(n *Node) { n.history = p }
}

// Node is one device or sub-device in the hardware tree.
type Node struct {
	id      Identifier
	name    string
	typ     HardwareType
	device  Device
	history HistoryPolicy

	mu       sync.RWMutex
	parent   *Node
	children []*Node
	sensors  []*Sensor
	state    State
	closing  bool

	sensorAdded   Event[*Sensor]
	sensorRemoved Event[*Sensor]
	childAdded    Event[*Node]
	childRemoved  Event[*Node]
}

// NewNode creates a detached node. device may be nil for nodes whose
// sensors are driven by their parent.
func NewNode(id Identifier, name string, typ HardwareType, device Device, opts ...NodeOption) *Node {
	n := &Node{
		id:      id,
		name:    name,
		typ:     typ,
		device:  device,
		history: DefaultHistory,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Node) ID() Identifier { return n.id }
func (n *Node) Name() string { return n.name }
func (n *Node) Type() HardwareType { return n.typ }
func (n *Node) Device() Device { return n.device }
func (n *Node) History() HistoryPolicy { return n.history }

// Parent returns the parent node, or nil for a root.
func (n *Node) Parent() *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent
}

// State returns the lifecycle state.
func (n *Node) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state
}

func (n *Node) SensorAdded() *Event[*Sensor] { return &n.sensorAdded }
func (n *Node) SensorRemoved() *Event[*Sensor] { return &n.sensorRemoved }
func (n *Node) ChildAdded() *Event[*Node] { return &n.childAdded }
func (n *Node) ChildRemoved() *Event[*Node] { return &n.childRemoved }

// Sensors returns a snapshot of the node's sensors in insertion order.
func (n *Node) Sensors() []*Sensor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Sensor(nil), n.sensors...)
}

// Children returns a snapshot of the node's children in insertion order.
func (n *Node) Children() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Node(nil), n.children...)
}

// Contains reports whether s is attached to n.
func (n *Node) Contains(s *Sensor) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, x := range n.sensors {
		if x == s {
			return true
		}
	}
	return false
}

// Sensor returns the attached sensor with the given identifier.
func (n *Node) Sensor(id Identifier) *Sensor {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, s := range n.sensors {
		if s.id == id {
			return s
		}
	}
	return nil
}

// AddSensor attaches s and fires SensorAdded. The first sensor moves the
// node from discovered to active. It reports false if s belongs to another
// node, is already attached, or n is closed.
func (n *Node) AddSensor(s *Sensor) bool {
	n.mu.Lock()
	if s.owner != n || n.closing || n.state == StateClosed {
		n.mu.Unlock()
		return false
	}
	for _, x := range n.sensors {
		if x == s || x.id == s.id {
			n.mu.Unlock()
			return false
		}
	}
	n.sensors = append(n.sensors, s)
	if n.state == StateDiscovered {
		n.state = StateActive
	}
	n.mu.Unlock()

	n.sensorAdded.notify(s)
	return true
}

// RemoveSensor detaches s and fires SensorRemoved.
func (n *Node) RemoveSensor(s *Sensor) bool {
	n.mu.Lock()
	i := indexOf(n.sensors, s)
	if i < 0 {
		n.mu.Unlock()
		return false
	}
	n.sensors = removeAt(n.sensors, i)
	n.mu.Unlock()

	n.sensorRemoved.notify(s)
	return true
}

// ReplaySensors calls fn once for every attached sensor in order. It
// lets a late subscriber catch up with sensors added before it
// subscribed.
func (n *Node) ReplaySensors(fn func(*Sensor)) {
	for _, s := range n.Sensors() {
		fn(s)
	}
}

// AddChild attaches c below n and fires ChildAdded. c must be a detached
// node that is not an ancestor of n.
func (n *Node) AddChild(c *Node) error {
	if c == n {
		return fmt.Errorf("node %s cannot be its own child", n.id)
	}
	for p := n; p != nil; p = p.Parent() {
		if p == c {
			return fmt.Errorf("adding %s below %s would create a cycle", c.id, n.id)
		}
	}

	c.mu.Lock()
	if c.parent != nil {
		c.mu.Unlock()
		return fmt.Errorf("node %s already has parent %s", c.id, c.parent.id)
	}
	if c.state == StateClosed {
		c.mu.Unlock()
		return fmt.Errorf("node %s: %w", c.id, ErrClosed)
	}
	c.parent = n
	c.mu.Unlock()

	n.mu.Lock()
	if n.closing || n.state == StateClosed {
		n.mu.Unlock()
		c.mu.Lock()
		c.parent = nil
		c.mu.Unlock()
		return fmt.Errorf("node %s: %w", n.id, ErrClosed)
	}
	n.children = append(n.children, c)
	n.mu.Unlock()

	n.childAdded.notify(c)
	return nil
}

// RemoveChild closes c with its subtree, detaches it and fires
// ChildRemoved after every removal inside the subtree has fired.
func (n *Node) RemoveChild(c *Node) error {
	n.mu.RLock()
	attached := indexOf(n.children, c) >= 0
	n.mu.RUnlock()
	if !attached {
		return fmt.Errorf("node %s is not a child of %s", c.id, n.id)
	}

	err := c.Close()

	n.mu.Lock()
	if i := indexOf(n.children, c); i >= 0 {
		n.children = removeAt(n.children, i)
	}
	n.mu.Unlock()

	n.childRemoved.notify(c)
	return err
}

// Child returns the direct child with the given identifier.
func (n *Node) Child(id Identifier) *Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, c := range n.children {
		if c.id == id {
			return c
		}
	}
	return nil
}

// Update runs one acquisition for this node only. On failure the node's
// sensors keep their last value and are marked stale, as are the sensors
// of descendants without a device of their own, which this node's
// device acquires.
func (n *Node) Update() error {
	if n.State() == StateClosed {
		return fmt.Errorf("node %s: %w", n.id, ErrClosed)
	}
	if n.device == nil {
		return nil
	}
	if err := n.device.Update(n); err != nil {
		n.markStale()
		return fmt.Errorf("failed to update %s: %w", n.name, err)
	}
	return nil
}

func (n *Node) markStale() {
	for _, s := range n.Sensors() {
		s.MarkStale()
	}
	for _, c := range n.Children() {
		if c.device == nil {
			c.markStale()
		}
	}
}

// UpdateAll updates the node and then its subtree depth-first. Failures do
// not stop the walk; they are joined into the returned error. Children
// whose device is gone are removed.
func (n *Node) UpdateAll() error {
	_, err := n.updateAll()
	return err
}

// updateAll reports whether n itself is gone, separately from errors of
// descendants that were already handled.
func (n *Node) updateAll() (bool, error) {
	var errs []error
	gone := false
	if err := n.Update(); err != nil {
		gone = errors.Is(err, ErrDeviceGone) || errors.Is(err, ErrClosed)
		errs = append(errs, err)
	}
	if gone {
		return true, errors.Join(errs...)
	}

	for _, c := range n.Children() {
		childGone, err := c.updateAll()
		if err != nil {
			errs = append(errs, err)
		}
		if childGone {
			if err := n.RemoveChild(c); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return false, errors.Join(errs...)
}

// Close closes the subtree depth-first: children first (each firing
// ChildRemoved), then the node's sensors are removed (firing
// SensorRemoved), then the device is released. The owner fires the
// node's own removal. Closing twice is a no-op.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closing || n.state == StateClosed {
		n.mu.Unlock()
		return nil
	}
	n.closing = true
	n.mu.Unlock()

	var errs []error
	for _, c := range n.Children() {
		if err := n.RemoveChild(c); err != nil {
			errs = append(errs, err)
		}
	}

	for _, s := range n.Sensors() {
		n.RemoveSensor(s)
	}

	if c, ok := n.device.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to release %s: %w", n.name, err))
		}
	}

	n.mu.Lock()
	n.state = StateClosed
	n.closing = false
	n.mu.Unlock()
	return errors.Join(errs...)
}

// Walk calls fn for n and every descendant, parents before children,
// until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children() {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

// removeAt returns a new slice without element i, leaving list intact for
// snapshots taken earlier.
func removeAt[T any](list []T, i int) []T {
	out := make([]T, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}

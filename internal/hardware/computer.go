package hardware

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// GroupFactory constructs a group when the computer opens.
type GroupFactory func() (Group, error)

type groupSubscription struct {
	group   Group
	added   Token
	removed Token
}

// Computer owns the active groups and re-broadcasts their hardware
// add/remove events. It is the single place consumers observe topology.
type Computer struct {
	log       *slog.Logger
	factories []GroupFactory

	mu     sync.RWMutex
	groups []groupSubscription
	open   bool

	tick sync.Mutex // one update pass at a time

	added   Event[*Node]
	removed Event[*Node]
}

// NewComputer returns a closed computer that builds its groups from
// factories on Open.
func NewComputer(logger *slog.Logger, factories ...GroupFactory) *Computer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Computer{log: logger, factories: factories}
}

// HardwareAdded fires for every root node of every group.
func (c *Computer) HardwareAdded() *Event[*Node] { return &c.added }

// HardwareRemoved fires for every root node removed from a group.
func (c *Computer) HardwareRemoved() *Event[*Node] { return &c.removed }

// Open constructs the groups and fires HardwareAdded for their initial
// nodes. A group that fails to construct is logged and skipped.
func (c *Computer) Open() error {
	c.mu.Lock()
	if c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = true
	c.mu.Unlock()

	for _, factory := range c.factories {
		g, err := factory()
		if err != nil {
			c.log.Warn("hardware group unavailable", "error", err)
			continue
		}
		c.AddGroup(g)
	}
	return nil
}

// AddGroup attaches an already constructed group and announces its
// nodes.
func (c *Computer) AddGroup(g Group) {
	sub := groupSubscription{
		group:   g,
		added:   g.HardwareAdded().Subscribe(c.added.notify),
		removed: g.HardwareRemoved().Subscribe(c.removed.notify),
	}

	c.mu.Lock()
	c.groups = append(c.groups, sub)
	c.mu.Unlock()

	nodes := g.Hardware()
	c.log.Debug("hardware group added", "group", g.Name(), "nodes", len(nodes))
	for _, n := range nodes {
		c.added.notify(n)
	}
}

// RemoveGroup closes g, firing HardwareRemoved for each of its nodes, and
// detaches it.
func (c *Computer) RemoveGroup(g Group) error {
	c.mu.Lock()
	i := -1
	for j, s := range c.groups {
		if s.group == g {
			i = j
			break
		}
	}
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("group %s is not attached", g.Name())
	}
	sub := c.groups[i]
	c.groups = removeAt(c.groups, i)
	c.mu.Unlock()

	err := g.Close()
	g.HardwareAdded().Unsubscribe(sub.added)
	g.HardwareRemoved().Unsubscribe(sub.removed)
	if err != nil {
		return fmt.Errorf("failed to close group %s: %w", g.Name(), err)
	}
	return nil
}

// Groups returns a snapshot of the attached groups.
func (c *Computer) Groups() []Group {
	c.mu.RLock()
	defer c.mu.RUnlock()
	groups := make([]Group, len(c.groups))
	for i, s := range c.groups {
		groups[i] = s.group
	}
	return groups
}

// Hardware returns the root nodes of every group.
func (c *Computer) Hardware() []*Node {
	var nodes []*Node
	for _, g := range c.Groups() {
		nodes = append(nodes, g.Hardware()...)
	}
	return nodes
}

// Node finds a node anywhere in the tree.
func (c *Computer) Node(id Identifier) *Node {
	var found *Node
	for _, root := range c.Hardware() {
		if !id.HasPrefix(root.ID()) {
			continue
		}
		root.Walk(func(n *Node) bool {
			if n.ID() == id {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			break
		}
	}
	return found
}

// Sensor finds a sensor anywhere in the tree.
func (c *Computer) Sensor(id Identifier) *Sensor {
	var found *Sensor
	for _, root := range c.Hardware() {
		if !id.HasPrefix(root.ID()) {
			continue
		}
		root.Walk(func(n *Node) bool {
			found = n.Sensor(id)
			return found == nil
		})
		if found != nil {
			break
		}
	}
	return found
}

// Update runs one acquisition tick over every group. Ticks never
// overlap. Device failures are joined into the returned error; the tick
// always visits every group.
func (c *Computer) Update() error {
	c.tick.Lock()
	defer c.tick.Unlock()

	var errs []error
	for _, g := range c.Groups() {
		if err := g.Update(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Rescan asks every group that supports it to discover new hardware.
func (c *Computer) Rescan() error {
	c.tick.Lock()
	defer c.tick.Unlock()

	var errs []error
	for _, g := range c.Groups() {
		r, ok := g.(Rescanner)
		if !ok {
			continue
		}
		if err := r.Rescan(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every group in order, firing HardwareRemoved for each
// node.
func (c *Computer) Close() error {
	c.tick.Lock()
	defer c.tick.Unlock()

	var errs []error
	for _, g := range c.Groups() {
		if err := c.RemoveGroup(g); err != nil {
			errs = append(errs, err)
		}
	}

	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return errors.Join(errs...)
}

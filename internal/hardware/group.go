package hardware

import (
	"errors"
	"fmt"
	"sync"
)

// Group owns one family of hardware nodes such as memory or storage. A
// group without an implementation on the running platform has no nodes.
type Group interface {
	Name() string
	Hardware() []*Node
	HardwareAdded() *Event[*Node]
	HardwareRemoved() *Event[*Node]
	// Update runs one acquisition pass over every node of the group.
	Update() error
	// Close closes every node, releasing device handles.
	Close() error
}

// Rescanner is implemented by groups that can discover hardware after
// construction.
type Rescanner interface {
	Rescan() error
}

// Roster keeps the root nodes of a group. Groups embed it to implement
// Group.
type Roster struct {
	name string

	mu     sync.RWMutex
	nodes  []*Node
	closed bool

	added   Event[*Node]
	removed Event[*Node]
}

// NewRoster returns an empty roster for the named group.
func NewRoster(name string) *Roster {
	return &Roster{name: name}
}

func (r *Roster) Name() string { return r.name }

func (r *Roster) HardwareAdded() *Event[*Node] { return &r.added }

func (r *Roster) HardwareRemoved() *Event[*Node] { return &r.removed }

// Hardware returns a snapshot of the root nodes.
func (r *Roster) Hardware() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Node(nil), r.nodes...)
}

// Lookup returns the root node with the given identifier.
func (r *Roster) Lookup(id Identifier) *Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.nodes {
		if n.id == id {
			return n
		}
	}
	return nil
}

// Add appends a root node and fires HardwareAdded.
func (r *Roster) Add(n *Node) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("group %s: %w", r.name, ErrClosed)
	}
	for _, x := range r.nodes {
		if x == n || x.id == n.id {
			r.mu.Unlock()
			return fmt.Errorf("group %s already has %s", r.name, n.id)
		}
	}
	r.nodes = append(r.nodes, n)
	r.mu.Unlock()

	r.added.notify(n)
	return nil
}

// Remove closes a root node and fires HardwareRemoved once its subtree
// has been torn down.
func (r *Roster) Remove(n *Node) error {
	r.mu.Lock()
	i := indexOf(r.nodes, n)
	if i < 0 {
		r.mu.Unlock()
		return fmt.Errorf("group %s does not own %s", r.name, n.id)
	}
	r.nodes = removeAt(r.nodes, i)
	r.mu.Unlock()

	err := n.Close()
	r.removed.notify(n)
	return err
}

// Update walks every root node depth-first. Nodes whose device is gone
// are removed. Errors are joined and never stop the pass.
func (r *Roster) Update() error {
	var errs []error
	for _, n := range r.Hardware() {
		gone, err := n.updateAll()
		if err != nil {
			errs = append(errs, err)
		}
		if gone {
			if err := r.Remove(n); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close removes every node. Closing twice is a no-op.
func (r *Roster) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	for _, n := range r.Hardware() {
		if err := r.Remove(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has been called.
func (r *Roster) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

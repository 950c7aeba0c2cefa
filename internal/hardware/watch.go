package hardware

import "sync"

// TreeHandler receives the events of a watched subtree. Nil callbacks
// are skipped.
type TreeHandler struct {
	NodeAdded     func(*Node)
	NodeRemoved   func(*Node)
	SensorAdded   func(*Sensor)
	SensorRemoved func(*Sensor)
}

type nodeTokens struct {
	sensorAdded   Token
	sensorRemoved Token
	childAdded    Token
	childRemoved  Token
}

// Watcher follows a node and its descendants.
type Watcher struct {
	h    TreeHandler
	root *Node

	mu    sync.Mutex
	nodes map[*Node]nodeTokens
}

// Watch reports root, its existing sensors and its existing descendants
// to h, then keeps following sensors and children as they come and go.
// This is how a consumer attached at HardwareAdded time still sees
// sensors created before it subscribed.
func Watch(root *Node, h TreeHandler) *Watcher {
	w := &Watcher{h: h, root: root, nodes: make(map[*Node]nodeTokens)}
	w.attach(root)
	return w
}

func (w *Watcher) attach(n *Node) {
	w.mu.Lock()
	if _, ok := w.nodes[n]; ok {
		w.mu.Unlock()
		return
	}
	w.nodes[n] = nodeTokens{}
	w.mu.Unlock()

	if w.h.NodeAdded != nil {
		w.h.NodeAdded(n)
	}

	var t nodeTokens
	if w.h.SensorAdded != nil {
		n.ReplaySensors(w.h.SensorAdded)
		t.sensorAdded = n.SensorAdded().Subscribe(w.h.SensorAdded)
	}
	if w.h.SensorRemoved != nil {
		t.sensorRemoved = n.SensorRemoved().Subscribe(w.h.SensorRemoved)
	}
	t.childAdded = n.ChildAdded().Subscribe(w.attach)
	t.childRemoved = n.ChildRemoved().Subscribe(w.childRemoved)

	w.mu.Lock()
	w.nodes[n] = t
	w.mu.Unlock()

	for _, c := range n.Children() {
		w.attach(c)
	}
}

func (w *Watcher) childRemoved(c *Node) {
	w.detach(c)
	if w.h.NodeRemoved != nil {
		w.h.NodeRemoved(c)
	}
}

func (w *Watcher) detach(n *Node) {
	w.mu.Lock()
	t, ok := w.nodes[n]
	delete(w.nodes, n)
	w.mu.Unlock()
	if !ok {
		return
	}

	n.SensorAdded().Unsubscribe(t.sensorAdded)
	n.SensorRemoved().Unsubscribe(t.sensorRemoved)
	n.ChildAdded().Unsubscribe(t.childAdded)
	n.ChildRemoved().Unsubscribe(t.childRemoved)
	for _, c := range n.Children() {
		w.detach(c)
	}
}

// Root returns the watched node.
func (w *Watcher) Root() *Node {
	return w.root
}

// Stop detaches from every node. When removed is true the sensors still
// attached and the nodes themselves are reported as removed, children
// before parents, as a consumer does when the root leaves the computer.
func (w *Watcher) Stop(removed bool) {
	if removed {
		w.reportRemoved(w.root)
	}
	w.detach(w.root)
}

func (w *Watcher) reportRemoved(n *Node) {
	w.mu.Lock()
	_, ok := w.nodes[n]
	w.mu.Unlock()
	if !ok {
		return
	}
	for _, c := range n.Children() {
		w.reportRemoved(c)
	}
	if w.h.SensorRemoved != nil {
		for _, s := range n.Sensors() {
			w.h.SensorRemoved(s)
		}
	}
	if w.h.NodeRemoved != nil {
		w.h.NodeRemoved(n)
	}
}

// Watching returns the number of nodes currently followed.
func (w *Watcher) Watching() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.nodes)
}

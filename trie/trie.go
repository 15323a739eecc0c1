package trie

import (
	"iter"
)

// Trie is a rune-keyed trie mapping keys to lists of lookup handles.
//
// A trie is built by Insert and then frozen by Compact. After Compact every
// mutation panics, while lookups may run concurrently.
type Trie struct {
	root   *Node
	frozen bool
	nodes  int
}

// New creates an empty trie.
func New() *Trie {
	return &Trie{root: &Node{}, nodes: 1}
}

// Root returns the initial state.
func (t *Trie) Root() *Node {
	return t.root
}

// Frozen reports whether Compact has been called.
func (t *Trie) Frozen() bool {
	return t.frozen
}

// Nodes returns the number of states, including the root.
func (t *Trie) Nodes() int {
	return t.nodes
}

// cursor remembers the edge the insertion walk used to reach a node.
// A zero cursor denotes the root, which has no incoming edge.
type cursor struct {
	parent *Node
	key    rune
}

// Insert adds key with a lookup handle. If key is already present, the
// handle is appended to the handles of its final state.
func (t *Trie) Insert(key []rune, handle uint32) {
	if t.frozen {
		panic("trie: insert into frozen trie")
	}
	assert(len(key) > 0, "trie: cannot insert empty key")
	var at cursor
	n := t.root
	for _, r := range key {
		child := n.Next(r)
		if child == nil {
			child = &Node{}
			t.nodes++
			n = t.link(at, n, r, child)
		}
		at = cursor{parent: n, key: r}
		n = child
	}
	n.handles = append(n.handles, handle)
}

// link adds a transition n --r--> child and returns the node now holding
// the transition. That is n itself, unless n had to be promoted.
func (t *Trie) link(at cursor, n *Node, r rune, child *Node) *Node {
	switch n.variant {
	case Empty:
		n.variant = Sparse
		n.keys, n.kids = []rune{r}, []*Node{child}
	case Sparse:
		if len(n.keys) < SparseLimit {
			n.insertSorted(r, child)
			break
		}
		h := n.promote()
		t.swap(at, n, h)
		h.put(r, child)
		tracer().Debugf("promoted node with %d children to hashed", len(n.keys))
		return h
	case Hashed:
		n.put(r, child)
	}
	return n
}

// swap replaces node old by h at the edge described by at.
func (t *Trie) swap(at cursor, old, h *Node) {
	if at.parent == nil {
		assert(t.root == old, "trie: cursor without parent must point to the root")
		t.root = h
		return
	}
	at.parent.replace(at.key, h)
}

// Walk follows key from the root and returns the state reached, or nil.
func (t *Trie) Walk(key []rune) *Node {
	n := t.root
	for _, r := range key {
		if n = n.Next(r); n == nil {
			return nil
		}
	}
	return n
}

// Compact shrinks all nodes to their final size and freezes the trie.
// Calling Compact more than once has no further effect.
func (t *Trie) Compact() {
	if t.frozen {
		return
	}
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n.compact()
		for _, kid := range n.kids {
			if kid != nil {
				stack = append(stack, kid)
			}
		}
	}
	t.frozen = true
}

// All iterates over all keys of the trie in ascending rune order, together
// with their handles.
func (t *Trie) All() iter.Seq2[string, []uint32] {
	return func(yield func(string, []uint32) bool) {
		prefix := make([]rune, 0, 32)
		var visit func(n *Node) bool
		visit = func(n *Node) bool {
			if n.Final() && !yield(string(prefix), n.handles) {
				return false
			}
			for _, e := range n.edges() {
				prefix = append(prefix, e.key)
				if !visit(e.node) {
					return false
				}
				prefix = prefix[:len(prefix)-1]
			}
			return true
		}
		visit(t.root)
	}
}

// --- Cursor ----------------------------------------------------------------

// Cursor walks a trie one rune at a time, starting at the root.
type Cursor struct {
	node  *Node
	depth int
}

// Cursor returns a cursor positioned at the root.
func (t *Trie) Cursor() Cursor {
	return Cursor{node: t.root}
}

// Step advances the cursor by r. It returns false if there is no
// transition for r; the cursor is dead afterwards.
func (c *Cursor) Step(r rune) bool {
	if c.node == nil {
		return false
	}
	c.node = c.node.Next(r)
	c.depth++
	return c.node != nil
}

// Depth returns the number of runes consumed so far.
func (c *Cursor) Depth() int {
	return c.depth
}

// Handles returns the handles of the current state. It is empty for
// non-final states and for dead cursors.
func (c *Cursor) Handles() []uint32 {
	if c.node == nil {
		return nil
	}
	return c.node.handles
}

// --- Statistics ------------------------------------------------------------

// Stats summarizes the shape of a trie.
type Stats struct {
	Nodes     int
	Empty     int
	Sparse    int
	Hashed    int
	Finals    int
	Handles   int
	Edges     int
	MaxFanOut int
}

// Stats counts nodes per variant, final states, handles and edges.
func (t *Trie) Stats() Stats {
	var s Stats
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.Nodes++
		switch n.variant {
		case Empty:
			s.Empty++
		case Sparse:
			s.Sparse++
		case Hashed:
			s.Hashed++
		}
		if n.Final() {
			s.Finals++
			s.Handles += len(n.handles)
		}
		s.Edges += n.Len()
		s.MaxFanOut = max(s.MaxFanOut, n.Len())
		for _, kid := range n.kids {
			if kid != nil {
				stack = append(stack, kid)
			}
		}
	}
	return s
}

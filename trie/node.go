package trie

import (
	"fmt"
	"math/bits"
	"slices"
)

// Variant is the representation a node uses for its transitions.
type Variant uint8

const (
	Empty  Variant = iota // no transitions
	Sparse                // parallel arrays, sorted by key
	Hashed                // open addressing table
)

func (v Variant) String() string {
	switch v {
	case Empty:
		return "empty"
	case Sparse:
		return "sparse"
	case Hashed:
		return "hashed"
	}
	return fmt.Sprintf("variant(%d)", uint8(v))
}

// SparseLimit is the maximum fan-out of a sparse node. Adding one more
// child promotes the node to a hashed one.
const SparseLimit = 8

// fibonacci is 2^32 divided by the golden ratio. Multiplying by it spreads
// neighbouring code points across the table.
const fibonacci = 2654435769

// minTable is the smallest hashed table capacity.
const minTable = 16

// Node is a state of the trie. A node is final iff it holds at least one
// lookup handle.
type Node struct {
	variant Variant
	shift   uint8    // hashed: 32 - log2(capacity)
	size    int32    // hashed: number of occupied slots
	keys    []rune   // sparse: sorted keys; hashed: slot keys
	kids    []*Node  // hashed: nil marks a free slot
	handles []uint32 // lookup handles, in insertion order
}

// Variant returns the representation of n.
func (n *Node) Variant() Variant {
	return n.variant
}

// Final reports whether n terminates at least one inserted key.
func (n *Node) Final() bool {
	return len(n.handles) > 0
}

// Handles returns the lookup handles of n. Callers must not modify the result.
func (n *Node) Handles() []uint32 {
	return n.handles
}

// Len returns the number of outgoing transitions.
func (n *Node) Len() int {
	if n.variant == Hashed {
		return int(n.size)
	}
	return len(n.keys)
}

// Next returns the child reached by r, or nil.
func (n *Node) Next(r rune) *Node {
	switch n.variant {
	case Sparse:
		for i, k := range n.keys {
			if k == r {
				return n.kids[i]
			}
			if k > r {
				return nil
			}
		}
	case Hashed:
		mask := len(n.keys) - 1
		for i := n.slot(r); ; i = (i + 1) & mask {
			if n.kids[i] == nil {
				return nil
			}
			if n.keys[i] == r {
				return n.kids[i]
			}
		}
	}
	return nil
}

// --- Sparse ----------------------------------------------------------------

func (n *Node) insertSorted(r rune, child *Node) {
	i, found := slices.BinarySearch(n.keys, r)
	assert(!found, "trie: duplicate transition")
	n.keys = slices.Insert(n.keys, i, r)
	n.kids = slices.Insert(n.kids, i, child)
}

// --- Hashed ----------------------------------------------------------------

func (n *Node) slot(r rune) int {
	return int((uint32(r) * fibonacci) >> n.shift)
}

// tableSize returns the capacity of a hashed table holding count entries at
// a load factor of at most 3/4.
func tableSize(count int) int {
	capacity := minTable
	for count > capacity*3/4 {
		capacity <<= 1
	}
	return capacity
}

// rehash moves all transitions of n into a fresh table of the given
// capacity, which must be a power of two.
func (n *Node) rehash(capacity int) {
	keys, kids := n.keys, n.kids
	n.keys = make([]rune, capacity)
	n.kids = make([]*Node, capacity)
	n.shift = uint8(32 - bits.TrailingZeros(uint(capacity)))
	for i, kid := range kids {
		if kid != nil {
			n.place(keys[i], kid)
		}
	}
}

func (n *Node) place(r rune, child *Node) {
	mask := len(n.keys) - 1
	for i := n.slot(r); ; i = (i + 1) & mask {
		if n.kids[i] == nil {
			n.keys[i], n.kids[i] = r, child
			return
		}
		assert(n.keys[i] != r, "trie: duplicate transition")
	}
}

func (n *Node) put(r rune, child *Node) {
	if int(n.size)+1 > len(n.keys)*3/4 {
		n.rehash(len(n.keys) * 2)
	}
	n.place(r, child)
	n.size++
}

// promote creates a hashed node with the transitions and handles of the
// sparse node n.
func (n *Node) promote() *Node {
	h := &Node{variant: Hashed, handles: n.handles}
	h.rehash(tableSize(len(n.keys) + 1))
	for i, k := range n.keys {
		h.place(k, n.kids[i])
	}
	h.size = int32(len(n.keys))
	return h
}

// replace redirects the existing transition for r to child.
func (n *Node) replace(r rune, child *Node) {
	switch n.variant {
	case Sparse:
		if i, found := slices.BinarySearch(n.keys, r); found {
			n.kids[i] = child
			return
		}
	case Hashed:
		mask := len(n.keys) - 1
		for i := n.slot(r); n.kids[i] != nil; i = (i + 1) & mask {
			if n.keys[i] == r {
				n.kids[i] = child
				return
			}
		}
	}
	panic(fmt.Sprintf("trie: no transition for %q to replace", r))
}

// ---------------------------------------------------------------------------

type edge struct {
	key  rune
	node *Node
}

// edges returns the transitions of n sorted by key.
func (n *Node) edges() []edge {
	if n.variant == Empty {
		return nil
	}
	edges := make([]edge, 0, n.Len())
	for i, kid := range n.kids {
		if kid != nil {
			edges = append(edges, edge{key: n.keys[i], node: kid})
		}
	}
	if n.variant == Hashed {
		slices.SortFunc(edges, func(a, b edge) int { return int(a.key) - int(b.key) })
	}
	return edges
}

func (n *Node) compact() {
	switch n.variant {
	case Sparse:
		n.keys = shrink(n.keys)
		n.kids = shrink(n.kids)
	case Hashed:
		if c := tableSize(int(n.size)); c < len(n.keys) {
			n.rehash(c)
		}
	}
	n.handles = shrink(n.handles)
}

// shrink returns s in a backing array of exactly its length.
func shrink[T any](s []T) []T {
	if cap(s) == len(s) {
		return s
	}
	c := make([]T, len(s))
	copy(c, s)
	return c
}

package trie

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/npillmayer/gazetteer/gazbin"
)

// Encoded form:
//
//	uvarint  node count
//	node*    pre-order, root first:
//	           byte     variant
//	           uvarint  child count
//	           (uvarint rune, uvarint child index - own index)*  ascending runes
//	bytes    roaring bitmap of final node indices
//	per final node, ascending index:
//	           uvarint  handle count
//	           uvarint* handles

// preorder lists all nodes depth first, children in ascending rune order.
func (t *Trie) preorder() []*Node {
	order := make([]*Node, 0, t.nodes)
	stack := []*Node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		order = append(order, n)
		edges := n.edges()
		for i := len(edges) - 1; i >= 0; i-- {
			stack = append(stack, edges[i].node)
		}
	}
	return order
}

// Encode writes the trie to enc.
func (t *Trie) Encode(enc *gazbin.Encoder) error {
	order := t.preorder()
	index := make(map[*Node]int, len(order))
	for i, n := range order {
		index[n] = i
	}
	finals := roaring.New()
	enc.Int(len(order))
	for i, n := range order {
		edges := n.edges()
		enc.Byte(byte(n.variant))
		enc.Int(len(edges))
		for _, e := range edges {
			enc.Uvarint(uint64(uint32(e.key)))
			enc.Int(index[e.node] - i)
		}
		if n.Final() {
			finals.Add(uint32(i))
		}
	}
	finals.RunOptimize()
	bm, err := finals.ToBytes()
	if err != nil {
		return fmt.Errorf("trie: encoding final states: %w", err)
	}
	enc.Bytes(bm)
	it := finals.Iterator()
	for it.HasNext() {
		n := order[it.Next()]
		enc.Int(len(n.handles))
		for _, h := range n.handles {
			enc.Uvarint(uint64(h))
		}
	}
	return nil
}

// Decode reads a trie written by Encode. Every handle must be less than
// handleLimit. The result is frozen.
func Decode(dec *gazbin.Decoder, handleLimit int) (*Trie, error) {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: trie: %s", gazbin.ErrCacheFormat, fmt.Sprintf(format, args...))
	}
	count := dec.Count(2)
	if err := dec.Err(); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, bad("no root node")
	}
	nodes := make([]Node, count)
	referenced := make([]bool, count)
	for i := range nodes {
		n := &nodes[i]
		v := Variant(dec.Byte())
		k := dec.Count(2)
		if err := dec.Err(); err != nil {
			return nil, err
		}
		switch {
		case v > Hashed:
			return nil, bad("node %d has unknown variant %d", i, v)
		case (v == Empty) != (k == 0):
			return nil, bad("%s node %d has %d children", v, i, k)
		case v == Sparse && k > SparseLimit:
			return nil, bad("sparse node %d has %d children", i, k)
		}
		keys := make([]rune, k)
		kids := make([]*Node, k)
		for j := range k {
			r := rune(dec.Uint32())
			d := dec.Uvarint()
			if err := dec.Err(); err != nil {
				return nil, err
			}
			if d == 0 || d >= uint64(count-i) {
				return nil, bad("node %d has invalid child offset %d", i, d)
			}
			c := uint64(i) + d
			if referenced[c] {
				return nil, bad("node %d has invalid child reference %d", i, c)
			}
			if j > 0 && r <= keys[j-1] {
				return nil, bad("node %d has unordered transitions", i)
			}
			referenced[c] = true
			keys[j], kids[j] = r, &nodes[c]
		}
		n.variant = v
		switch v {
		case Sparse:
			n.keys, n.kids = keys, kids
		case Hashed:
			n.rehash(tableSize(k))
			for j, r := range keys {
				n.place(r, kids[j])
			}
			n.size = int32(k)
		}
	}
	for i := 1; i < count; i++ {
		if !referenced[i] {
			return nil, bad("node %d is unreachable", i)
		}
	}
	bm := dec.Bytes()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	finals, err := readBitmap(bm)
	if err != nil {
		return nil, bad("final state index: %v", err)
	}
	if !finals.IsEmpty() && int(finals.Maximum()) >= count {
		return nil, bad("final state index refers to node %d", finals.Maximum())
	}
	it := finals.Iterator()
	for it.HasNext() {
		n := &nodes[it.Next()]
		k := dec.Count(1)
		if err := dec.Err(); err != nil {
			return nil, err
		}
		if k == 0 {
			return nil, bad("final state without handles")
		}
		n.handles = make([]uint32, k)
		for j := range n.handles {
			h := dec.Uint32()
			if int64(h) >= int64(handleLimit) {
				return nil, bad("handle %d out of range", h)
			}
			n.handles[j] = h
		}
	}
	if err := dec.Err(); err != nil {
		return nil, err
	}
	for i := 1; i < count; i++ {
		if nodes[i].variant == Empty && !nodes[i].Final() {
			return nil, bad("leaf node %d is not final", i)
		}
	}
	return &Trie{root: &nodes[0], frozen: true, nodes: count}, nil
}

// readBitmap unmarshals a roaring bitmap. Malformed input may make the
// roaring package panic; this is reported as an error.
func readBitmap(b []byte) (bm *roaring.Bitmap, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	bm = roaring.New()
	if err = bm.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return bm, nil
}

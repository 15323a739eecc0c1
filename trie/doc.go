/*
Package trie implements the match automaton of a gazetteer: a trie keyed by
runes, whose final states carry lookup handles.

Fan-out of trie nodes is highly skewed. Most states have a handful of
children, a few states near the root have hundreds. Nodes therefore come in
three variants, selected by occupancy:

	Empty   no transitions
	Sparse  up to SparseLimit transitions in parallel arrays sorted by key
	Hashed  an open addressing table with Fibonacci hashing

A node starts empty, becomes sparse with its first child and is promoted to
hashed when its fan-out exceeds SparseLimit. Promotion creates a new node;
the insertion walk remembers the edge it came through and swaps it in the
parent. Nodes have no parent pointers.
*/
package trie

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer writes to trace with key 'gazetteer'
func tracer() tracing.Trace {
	return tracing.Select("gazetteer")
}

func assert(condition bool, msg string) {
	if !condition {
		panic(msg)
	}
}

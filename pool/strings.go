/*
Package pool holds the interning pools of a gazetteer store.

Millions of entries share a small vocabulary of feature names, list types
and source references. Pools map every distinct string to a dense uint32
id once, and all other structures refer to strings by id only. Pools are
filled while a store is built and frozen afterwards.
*/
package pool

import (
	"fmt"

	"github.com/npillmayer/gazetteer/gazbin"
)

// Strings is an interning pool for strings. Id 0 is reserved for the
// empty string.
type Strings struct {
	frozen bool
	index  map[string]uint32 // dropped on Freeze
	byID   []string
}

// NewStrings creates an empty string pool.
func NewStrings() *Strings {
	return &Strings{
		index: map[string]uint32{"": 0},
		byID:  []string{""},
	}
}

// Intern returns the id of s, adding s to the pool if necessary.
// Interning into a frozen pool is a programming error and panics.
func (p *Strings) Intern(s string) uint32 {
	if id, ok := p.index[s]; ok {
		return id
	}
	if p.frozen {
		panic(fmt.Sprintf("pool: interning %q into frozen string pool", s))
	}
	id := uint32(len(p.byID))
	p.byID = append(p.byID, s)
	p.index[s] = id
	return id
}

// ID returns the id of s, if s has been interned. Frozen pools have
// dropped their reverse index, and calling ID on them panics.
func (p *Strings) ID(s string) (uint32, bool) {
	if p.frozen {
		panic("pool: reverse lookup in frozen string pool")
	}
	id, ok := p.index[s]
	return id, ok
}

// Lookup returns the string for id. Unknown ids yield "".
func (p *Strings) Lookup(id uint32) string {
	if int(id) >= len(p.byID) {
		return ""
	}
	return p.byID[id]
}

// Len returns the number of strings in the pool, including "".
func (p *Strings) Len() int {
	return len(p.byID)
}

// Frozen reports whether Freeze has been called.
func (p *Strings) Frozen() bool {
	return p.frozen
}

// Freeze makes the pool read-only and drops the reverse index.
func (p *Strings) Freeze() {
	if p.frozen {
		return
	}
	p.frozen = true
	p.index = nil
	p.byID = p.byID[:len(p.byID):len(p.byID)]
}

// Encode writes the pool to enc.
func (p *Strings) Encode(enc *gazbin.Encoder) {
	enc.Int(len(p.byID) - 1)
	for _, s := range p.byID[1:] {
		enc.String(s)
	}
}

// DecodeStrings reads a pool written by Encode. The result is frozen.
func DecodeStrings(dec *gazbin.Decoder) (*Strings, error) {
	n := dec.Count(1)
	p := &Strings{
		frozen: true,
		byID:   make([]string, 1, n+1),
	}
	for range n {
		p.byID = append(p.byID, dec.String())
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("string pool: %w", err)
	}
	return p, nil
}

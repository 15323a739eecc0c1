package gazetteer

import (
	"fmt"
	"strings"

	"github.com/npillmayer/gazetteer/pool"
	"github.com/npillmayer/gazetteer/trie"
)

// Handle identifies a lookup, i.e. one entry of one list, within a store.
type Handle uint32

// Store is a compiled gazetteer: a trie of normalized phrases together with
// the pools holding list and entry metadata.
//
// A store is built by a single goroutine and frozen by Compact. Frozen stores
// are immutable and may be queried concurrently.
type Store struct {
	trie    *trie.Trie
	strings *pool.Strings
	tables  *pool.Tables
	norm    *Normalizer
	pairs   []uint32 // scratch buffer for feature ids
}

// NewStore creates an empty store in building state.
func NewStore(caseSensitive bool, lang string) *Store {
	return &Store{
		trie:    trie.New(),
		strings: pool.NewStrings(),
		tables:  &pool.Tables{},
		norm:    NewNormalizer(caseSensitive, lang),
	}
}

// Normalizer returns the normalizer matching the store's case mode.
func (s *Store) Normalizer() *Normalizer {
	return s.norm
}

// CaseSensitive reports whether phrases are stored with their case preserved.
func (s *Store) CaseSensitive() bool {
	return s.norm.caseSensitive
}

// Language returns the case conversion language of the store.
func (s *Store) Language() string {
	return s.norm.lang
}

// Fingerprint identifies the build parameters of the store, see Fingerprint.
func (s *Store) Fingerprint() string {
	return Fingerprint(s.norm.caseSensitive, s.norm.lang)
}

// Frozen reports whether Compact has been called.
func (s *Store) Frozen() bool {
	return s.trie.Frozen()
}

func (s *Store) mutable() {
	assert(!s.trie.Frozen(), "gazetteer: store is frozen")
}

func (s *Store) intern(features []string) []uint32 {
	assert(len(features)%2 == 0, "gazetteer: features must be name/value pairs")
	s.pairs = s.pairs[:0]
	for _, f := range features {
		s.pairs = append(s.pairs, s.strings.Intern(f))
	}
	return s.pairs
}

// AddListInfo registers a list with its annotation type, its source reference
// and its list features, given as interleaved name/value pairs. It returns
// the list index to be used with AddLookup.
func (s *Store) AddListInfo(annotationType, source string, features []string) int {
	s.mutable()
	ids := s.intern(features)
	return s.tables.ListInfos.Add(pool.ListInfo{
		AnnotationType: s.strings.Intern(annotationType),
		Source:         s.strings.Intern(source),
		Features:       append([]uint32(nil), ids...),
	})
}

// AddLookup inserts phrase for list and returns the new handle. phrase has
// to be normalized already (see Normalizer.Forms). features holds the entry
// features as interleaved name/value pairs.
//
// Inserting the same phrase twice yields two handles for the same final
// state.
func (s *Store) AddLookup(phrase string, list int, features []string) Handle {
	s.mutable()
	assert(list >= 0 && list < s.tables.ListInfos.Len(), "gazetteer: unknown list index")
	ids := s.intern(features)
	off, n := s.tables.Features.Add(ids)
	h := s.tables.Lookups.Add(pool.Lookup{
		List:    uint32(list),
		FeatOff: off,
		FeatLen: n,
	})
	s.trie.Insert([]rune(phrase), h)
	return Handle(h)
}

// AddAlias makes an existing lookup reachable by another normalized phrase.
// No new handle is created.
func (s *Store) AddAlias(phrase string, h Handle) {
	s.mutable()
	assert(int(h) < s.tables.Lookups.Len(), "gazetteer: unknown handle")
	s.trie.Insert([]rune(phrase), uint32(h))
}

// Compact freezes the store. All backing arrays are trimmed to size and the
// reverse index of the string pool is dropped. Compact is idempotent; after
// it returns, every mutating call panics.
func (s *Store) Compact() {
	if s.trie.Frozen() {
		return
	}
	s.trie.Compact()
	s.tables.Compact()
	s.strings.Freeze()
	s.pairs = nil
}

// Stats summarizes a store.
type Stats struct {
	trie.Stats
	Strings      int
	Lists        int
	Lookups      int
	FeaturePairs int
}

// Stats counts the contents of the store.
func (s *Store) Stats() Stats {
	return Stats{
		Stats:        s.trie.Stats(),
		Strings:      s.strings.Len(),
		Lists:        s.tables.ListInfos.Len(),
		Lookups:      s.tables.Lookups.Len(),
		FeaturePairs: s.tables.Features.Len(),
	}
}

func (st Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "lists=%d lookups=%d strings=%d feature-pairs=%d",
		st.Lists, st.Lookups, st.Strings, st.FeaturePairs)
	fmt.Fprintf(&b, " nodes=%d (empty=%d sparse=%d hashed=%d) finals=%d handles=%d edges=%d max-fan-out=%d",
		st.Nodes, st.Empty, st.Sparse, st.Hashed, st.Finals, st.Handles, st.Edges, st.MaxFanOut)
	return b.String()
}

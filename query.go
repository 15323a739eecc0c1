package gazetteer

import (
	"iter"
	"strconv"
	"unicode/utf8"
)

// ListIndexFeature is the name of the pseudo-feature carrying the index of
// the list an entry has been loaded from.
const ListIndexFeature = "_listnr"

// Match is a single match of a phrase, starting at a given text position.
type Match struct {
	Length int // in runes, or in bytes for MatchString
	Handle Handle
}

// MatchesAt walks the store's trie with text[start:] and yields every match
// as a pair of match length (in runes) and handle, in ascending order of
// length. text has to be normalized (see Normalizer.Query).
//
// The store must be frozen.
func (s *Store) MatchesAt(text []rune, start int) iter.Seq2[int, Handle] {
	return func(yield func(int, Handle) bool) {
		c := s.trie.Cursor()
		for i := start; i < len(text); i++ {
			if !c.Step(text[i]) {
				return
			}
			for _, h := range c.Handles() {
				if !yield(c.Depth(), Handle(h)) {
					return
				}
			}
		}
	}
}

// AppendMatches appends all matches at text[start:] to dst, in ascending
// order of length, and returns the extended slice. It does not allocate if
// dst has sufficient capacity.
func (s *Store) AppendMatches(dst []Match, text []rune, start int) []Match {
	c := s.trie.Cursor()
	for i := start; i < len(text); i++ {
		if !c.Step(text[i]) {
			break
		}
		for _, h := range c.Handles() {
			dst = append(dst, Match{Length: c.Depth(), Handle: Handle(h)})
		}
	}
	return dst
}

// LongestAt is like AppendMatches, but appends only the matches of maximum
// length.
func (s *Store) LongestAt(dst []Match, text []rune, start int) []Match {
	c := s.trie.Cursor()
	var longest []uint32
	length := 0
	for i := start; i < len(text); i++ {
		if !c.Step(text[i]) {
			break
		}
		if hh := c.Handles(); len(hh) > 0 {
			longest, length = hh, c.Depth()
		}
	}
	for _, h := range longest {
		dst = append(dst, Match{Length: length, Handle: Handle(h)})
	}
	return dst
}

// MatchString reports all matches in normalized text starting at
// byteOffset. Match lengths are given in bytes.
func (s *Store) MatchString(text string, byteOffset int) []Match {
	var matches []Match
	c := s.trie.Cursor()
	for i := byteOffset; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size
		if !c.Step(r) {
			break
		}
		for _, h := range c.Handles() {
			matches = append(matches, Match{Length: i - byteOffset, Handle: Handle(h)})
		}
	}
	return matches
}

// Occurrence is a match located in an original, unnormalized text.
// Start and End are rune positions, End is exclusive.
type Occurrence struct {
	Start, End int
	Handle     Handle
}

// FindAll normalizes text and reports all matches starting at any rune
// position. Occurrences are ordered by start position, then by length.
func (s *Store) FindAll(text string) []Occurrence {
	t := s.norm.Query(text)
	var occs []Occurrence
	var buf []Match
	for start := range t.Runes {
		buf = s.AppendMatches(buf[:0], t.Runes, start)
		for _, m := range buf {
			from, to := t.Span(start, m.Length)
			occs = append(occs, Occurrence{Start: from, End: to, Handle: m.Handle})
		}
	}
	return occs
}

// Phrases iterates over all phrases of a frozen store in ascending rune
// order, in normalized form, together with their handles.
func (s *Store) Phrases() iter.Seq2[string, []Handle] {
	return func(yield func(string, []Handle) bool) {
		for phrase, handles := range s.trie.All() {
			hh := make([]Handle, len(handles))
			for i, h := range handles {
				hh[i] = Handle(h)
			}
			if !yield(phrase, hh) {
				return
			}
		}
	}
}

// --- Expansion -------------------------------------------------------------

// Feature is a name/value pair.
type Feature struct {
	Name, Value string
}

// Lookup is the materialized metadata of a handle.
type Lookup struct {
	AnnotationType string
	Source         string // reference to the list file
	ListIndex      int
	ListFeatures   []Feature
	EntryFeatures  []Feature
}

// Expand materializes the metadata of handle h.
func (s *Store) Expand(h Handle) Lookup {
	assert(int(h) < s.tables.Lookups.Len(), "gazetteer: unknown handle")
	target := s.tables.Lookups.At(uint32(h))
	l := Lookup{
		ListIndex:     int(target.List),
		EntryFeatures: make([]Feature, 0, target.FeatLen),
	}
	l.AnnotationType, l.Source, l.ListFeatures = s.List(l.ListIndex)
	for i := range target.FeatLen {
		name, value := s.tables.Features.Pair(target.FeatOff, i)
		l.EntryFeatures = append(l.EntryFeatures, Feature{
			Name:  s.strings.Lookup(name),
			Value: s.strings.Lookup(value),
		})
	}
	return l
}

// Features merges all features of a lookup into a map: list features first,
// then the list index as feature ListIndexFeature, then entry features.
// Later features override earlier ones of the same name.
func (l Lookup) Features() map[string]string {
	m := make(map[string]string, len(l.ListFeatures)+len(l.EntryFeatures)+1)
	for _, f := range l.ListFeatures {
		m[f.Name] = f.Value
	}
	m[ListIndexFeature] = strconv.Itoa(l.ListIndex)
	for _, f := range l.EntryFeatures {
		m[f.Name] = f.Value
	}
	return m
}

// Lists returns the number of lists in the store.
func (s *Store) Lists() int {
	return s.tables.ListInfos.Len()
}

// List returns the annotation type, source and list features of list i.
func (s *Store) List(i int) (annotationType, source string, features []Feature) {
	info := s.tables.ListInfos.At(i)
	features = make([]Feature, 0, len(info.Features)/2)
	for k := 0; k+1 < len(info.Features); k += 2 {
		features = append(features, Feature{
			Name:  s.strings.Lookup(info.Features[k]),
			Value: s.strings.Lookup(info.Features[k+1]),
		})
	}
	return s.strings.Lookup(info.AnnotationType), s.strings.Lookup(info.Source), features
}

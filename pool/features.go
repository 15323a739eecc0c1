package pool

import (
	"fmt"

	"github.com/npillmayer/gazetteer/gazbin"
)

// Features stores per-entry feature vectors as interleaved
// (nameID, valueID) pairs in one flat slice. A vector is addressed by the
// offset of its first pair and its pair count.
type Features struct {
	ids []uint32 // will grow with demand
}

// Add appends a vector of interleaved name/value ids and returns its
// offset (in pairs) and length (in pairs). Empty vectors occupy no space.
func (f *Features) Add(pairs []uint32) (off, n uint32) {
	if len(pairs)%2 != 0 {
		panic("pool: feature vector must hold name/value pairs")
	}
	if len(pairs) == 0 {
		return 0, 0
	}
	off = uint32(len(f.ids) / 2)
	f.ids = append(f.ids, pairs...)
	return off, uint32(len(pairs) / 2)
}

// Pair returns the i-th name/value id pair of the vector starting at off.
func (f *Features) Pair(off, i uint32) (name, value uint32) {
	k := 2 * (off + i)
	return f.ids[k], f.ids[k+1]
}

// Len returns the number of pairs stored.
func (f *Features) Len() int {
	return len(f.ids) / 2
}

func (f *Features) compact() {
	f.ids = shrink(f.ids)
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

// ---------------------------------------------------------------------------

// ListInfo is the metadata shared by all entries of one list file.
// All strings are ids into the store's string pool.
type ListInfo struct {
	AnnotationType uint32
	Source         uint32
	Features       []uint32 // interleaved name/value ids
}

// ListInfos is a dense array of ListInfo records.
type ListInfos struct {
	infos []ListInfo
}

// Add registers a list and returns its dense index.
func (l *ListInfos) Add(info ListInfo) int {
	l.infos = append(l.infos, info)
	return len(l.infos) - 1
}

// At returns the list at index i.
func (l *ListInfos) At(i int) ListInfo {
	return l.infos[i]
}

// Len returns the number of lists.
func (l *ListInfos) Len() int {
	return len(l.infos)
}

// ---------------------------------------------------------------------------

// Lookup is the target of a lookup handle: a list and an entry feature
// vector in the Features pool.
type Lookup struct {
	List    uint32
	FeatOff uint32
	FeatLen uint32
}

// Lookups is a dense array of lookup targets. A lookup handle is an index
// into this array.
type Lookups struct {
	entries []Lookup
}

// Add appends a lookup and returns its handle.
func (l *Lookups) Add(lookup Lookup) uint32 {
	l.entries = append(l.entries, lookup)
	return uint32(len(l.entries) - 1)
}

// At returns the lookup for handle h.
func (l *Lookups) At(h uint32) Lookup {
	return l.entries[h]
}

// Len returns the number of lookups.
func (l *Lookups) Len() int {
	return len(l.entries)
}

// ---------------------------------------------------------------------------

// Tables bundles the non-string pools of a store.
type Tables struct {
	Features  Features
	ListInfos ListInfos
	Lookups   Lookups
}

// Compact shrinks all backing arrays to their exact size.
func (t *Tables) Compact() {
	t.Features.compact()
	t.ListInfos.infos = shrink(t.ListInfos.infos)
	t.Lookups.entries = shrink(t.Lookups.entries)
}

// Encode writes list infos, feature vectors and lookups to enc, in this order.
func (t *Tables) Encode(enc *gazbin.Encoder) {
	enc.Int(len(t.ListInfos.infos))
	for _, info := range t.ListInfos.infos {
		enc.Uvarint(uint64(info.AnnotationType))
		enc.Uvarint(uint64(info.Source))
		enc.Int(len(info.Features))
		for _, id := range info.Features {
			enc.Uvarint(uint64(id))
		}
	}
	enc.Int(len(t.Features.ids))
	for _, id := range t.Features.ids {
		enc.Uvarint(uint64(id))
	}
	enc.Int(len(t.Lookups.entries))
	for _, lookup := range t.Lookups.entries {
		enc.Uvarint(uint64(lookup.List))
		enc.Uvarint(uint64(lookup.FeatOff))
		enc.Uvarint(uint64(lookup.FeatLen))
	}
}

// DecodeTables reads pools written by Encode and checks every id against
// the string pool size and the cross references between the tables.
func DecodeTables(dec *gazbin.Decoder, strings int) (*Tables, error) {
	t := &Tables{}
	bad := func(what string, args ...any) error {
		return fmt.Errorf("%w: %s", gazbin.ErrCacheFormat, fmt.Sprintf(what, args...))
	}
	nlists := dec.Count(3)
	t.ListInfos.infos = make([]ListInfo, 0, nlists)
	for range nlists {
		info := ListInfo{
			AnnotationType: dec.Uint32(),
			Source:         dec.Uint32(),
		}
		nf := dec.Count(1)
		if nf > 0 {
			info.Features = make([]uint32, nf)
			for i := range info.Features {
				info.Features[i] = dec.Uint32()
			}
		}
		t.ListInfos.infos = append(t.ListInfos.infos, info)
	}
	nids := dec.Count(1)
	t.Features.ids = make([]uint32, nids)
	for i := range t.Features.ids {
		t.Features.ids[i] = dec.Uint32()
	}
	nlookups := dec.Count(3)
	t.Lookups.entries = make([]Lookup, nlookups)
	for i := range t.Lookups.entries {
		t.Lookups.entries[i] = Lookup{
			List:    dec.Uint32(),
			FeatOff: dec.Uint32(),
			FeatLen: dec.Uint32(),
		}
	}
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("pools: %w", err)
	}
	// validate references, so that queries never index out of range
	if nids%2 != 0 {
		return nil, bad("odd feature id count %d", nids)
	}
	for _, id := range t.Features.ids {
		if int(id) >= strings {
			return nil, bad("feature string id %d out of range", id)
		}
	}
	for i, info := range t.ListInfos.infos {
		if int(info.AnnotationType) >= strings || int(info.Source) >= strings || len(info.Features)%2 != 0 {
			return nil, bad("list info %d is inconsistent", i)
		}
		for _, id := range info.Features {
			if int(id) >= strings {
				return nil, bad("list info %d: string id %d out of range", i, id)
			}
		}
	}
	for h, lookup := range t.Lookups.entries {
		if int(lookup.List) >= nlists || int(lookup.FeatOff)+int(lookup.FeatLen) > nids/2 {
			return nil, bad("lookup %d is inconsistent", h)
		}
	}
	return t, nil
}

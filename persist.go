package gazetteer

import (
	"errors"
	"fmt"
	"io"

	"github.com/npillmayer/gazetteer/gazbin"
	"github.com/npillmayer/gazetteer/pool"
	"github.com/npillmayer/gazetteer/trie"
)

// ErrNotFrozen is returned when persisting a store that has not been
// compacted.
var ErrNotFrozen = errors.New("gazetteer: store must be compacted before it is saved")

// Body layout of a store image:
//
//	byte     case sensitive (0 or 1)
//	string   case conversion language
//	         string pool
//	         list infos, feature vectors, lookups
//	         trie

func (s *Store) body() ([]byte, error) {
	if !s.Frozen() {
		return nil, ErrNotFrozen
	}
	st := s.Stats()
	enc := gazbin.NewEncoder(16*st.Nodes + 8*st.FeaturePairs + 4*st.Lookups)
	if s.norm.caseSensitive {
		enc.Byte(1)
	} else {
		enc.Byte(0)
	}
	enc.String(s.norm.lang)
	s.strings.Encode(enc)
	s.tables.Encode(enc)
	if err := s.trie.Encode(enc); err != nil {
		return nil, err
	}
	return enc.Data(), nil
}

// Encode writes the store as a complete cache image to w, compressing the
// body with codec. The store must be frozen.
func (s *Store) Encode(w io.Writer, codec gazbin.Codec) (int64, error) {
	body, err := s.body()
	if err != nil {
		return 0, err
	}
	return gazbin.Write(w, body, codec)
}

// WriteTo writes the store to w with the configured default codec.
// It implements io.WriterTo.
func (s *Store) WriteTo(w io.Writer) (int64, error) {
	return s.Encode(w, defaultCodec())
}

// Save writes the store to a cache file at path. An existing file is never
// overwritten.
func (s *Store) Save(path string, codec gazbin.Codec) error {
	body, err := s.body()
	if err != nil {
		return err
	}
	if err = gazbin.WriteFile(path, body, codec); err != nil {
		return fmt.Errorf("saving gazetteer to %s: %w", path, err)
	}
	tracer().Infof("gazetteer saved to %s (%d bytes uncompressed, codec %s)", path, len(body), codec)
	return nil
}

// ReadStore reads a store image written by WriteTo or Encode.
func ReadStore(r io.Reader) (*Store, error) {
	body, err := gazbin.Read(r)
	if err != nil {
		return nil, err
	}
	return decodeStore(body)
}

// LoadStore reads the cache file at path, which is memory mapped for
// reading.
func LoadStore(path string) (*Store, error) {
	body, err := gazbin.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeStore(body)
}

func decodeStore(body []byte) (*Store, error) {
	dec := gazbin.NewDecoder(body)
	cs := dec.Byte()
	lang := dec.String()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	if cs > 1 {
		return nil, fmt.Errorf("%w: bad case mode %d", gazbin.ErrCacheFormat, cs)
	}
	strings, err := pool.DecodeStrings(dec)
	if err != nil {
		return nil, err
	}
	tables, err := pool.DecodeTables(dec, strings.Len())
	if err != nil {
		return nil, err
	}
	t, err := trie.Decode(dec, tables.Lookups.Len())
	if err != nil {
		return nil, err
	}
	if dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", gazbin.ErrCacheFormat, dec.Remaining())
	}
	return &Store{
		trie:    t,
		strings: strings,
		tables:  tables,
		norm:    NewNormalizer(cs == 1, lang),
	}, nil
}

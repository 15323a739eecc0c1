package gazetteer

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/npillmayer/gazetteer/defconfig"
	"github.com/npillmayer/gazetteer/listfile"
)

// Names of the list features every list carries.
const (
	MajorTypeFeature = "majorType"
	MinorTypeFeature = "minorType"
	LanguageFeature  = "language"
)

// EntryReader yields gazetteer entries one-by-one, with features as
// interleaved name/value strings.
// It should return io.EOF when the stream is exhausted.
type EntryReader interface {
	Next() (phrase string, features []string, err error)
}

// Loader fills a store from entry sources, normalizing every phrase.
type Loader struct {
	store   *Store
	entries int // entries added
	skipped int // entries empty after normalization
}

// NewLoader creates a loader for store, which must not be frozen.
func NewLoader(store *Store) *Loader {
	return &Loader{store: store}
}

// Store returns the store being loaded.
func (l *Loader) Store() *Store {
	return l.store
}

// AddEntry normalizes phrase and adds it to list. In case-insensitive
// stores the phrase may be inserted in more than one form; all forms share
// one handle. It returns false if nothing was left of phrase after
// normalization.
func (l *Loader) AddEntry(list int, phrase string, features []string) bool {
	forms := l.store.norm.Forms(phrase)
	if len(forms) == 0 {
		l.skipped++
		return false
	}
	h := l.store.AddLookup(forms[0], list, features)
	for _, alt := range forms[1:] {
		l.store.AddAlias(alt, h)
	}
	l.entries++
	return true
}

// LoadEntries reads all entries from reader and adds them to list.
func (l *Loader) LoadEntries(list int, reader EntryReader) (err error) {
	var phrase string
	var features []string
	for {
		phrase, features, err = reader.Next()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		l.AddEntry(list, phrase, features)
	}
}

// LoadList registers the list described by spec and loads its entries. The
// list file reference is resolved relative to the configuration at base.
// sep is the (escaped) separator to use if spec does not set one.
func (l *Loader) LoadList(base string, spec defconfig.ListSpec, sep string) error {
	src := listfile.Resolve(base, spec.File)
	features := make([]string, 0, 6+len(spec.Extra))
	features = append(features,
		MajorTypeFeature, spec.MajorType,
		MinorTypeFeature, spec.MinorType,
		LanguageFeature, spec.Languages)
	features = append(features, spec.Extra...)
	list := l.store.AddListInfo(spec.AnnotationType, src, features)
	if spec.Separator != "" {
		sep = spec.Separator
	}
	tracer().Debugf("reading from %s, %s/%s/%s/%s", src,
		spec.MajorType, spec.MinorType, spec.Languages, spec.AnnotationType)
	r, err := listfile.Open(src)
	if err != nil {
		return fmt.Errorf("list %s: %w", src, err)
	}
	defer r.Close()
	reader := listfile.NewReader(r, src, listfile.UnescapeSeparator(sep))
	before := l.entries
	if err = l.LoadEntries(list, reader); err != nil {
		return err
	}
	tracer().Debugf("lines read from %s: %d", src, reader.Line())
	tracer().Debugf("entries added from %s: %d", src, l.entries-before)
	return nil
}

// readConfig reads and parses the configuration file at path.
func readConfig(path string) (*defconfig.Config, error) {
	if _, err := defconfig.FormatOf(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r, err := listfile.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return defconfig.Parse(r, path)
}

// buildStore compiles the lists of def into a new, frozen store. On error
// the partially built store is discarded.
func buildStore(cfg Config, def *defconfig.Config) (*Store, error) {
	var mem runtime.MemStats
	prof := profiling()
	var start time.Time
	if prof {
		runtime.ReadMemStats(&mem)
		start = time.Now()
	}
	store := NewStore(cfg.CaseSensitive, cfg.Language)
	loader := NewLoader(store)
	for _, spec := range def.Lists {
		if err := loader.LoadList(cfg.Path, spec, cfg.Separator); err != nil {
			return nil, err
		}
	}
	store.Compact()
	tracer().Infof("gazetteer loaded from list files: %d entries, %d skipped", loader.entries, loader.skipped)
	if prof {
		heap := mem.HeapAlloc
		runtime.ReadMemStats(&mem)
		tracer().Infof("gazetteer build took %s, heap grew by %d bytes", time.Since(start), int64(mem.HeapAlloc)-int64(heap))
		tracer().Infof("gazetteer stats: %s", store.Stats())
	}
	return store, nil
}

// Build compiles the gazetteer configured by cfg from its list files,
// ignoring any cache.
func Build(cfg Config) (*Store, error) {
	def, err := readConfig(cfg.Path)
	if err != nil {
		return nil, err
	}
	return buildStore(cfg, def)
}

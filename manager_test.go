package gazetteer

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/npillmayer/gazetteer/defconfig"
	"github.com/npillmayer/gazetteer/listfile"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func minimalDef(t *testing.T) (dir, def string) {
	dir = t.TempDir()
	writeFile(t, dir, "lst1.lst", "apple\nbanana\napple pie\n")
	def = writeFile(t, dir, "t.def", "lst1.lst:Type:Sub::Lookup\n")
	return
}

func TestMinimalDef(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	_, def := minimalDef(t)
	store, err := Build(Config{Path: def})
	if err != nil {
		t.Fatal(err)
	}
	text := store.Normalizer().Query("I ate apple pie.")
	mm := matches(store, text.Runes, 6)
	if len(mm) != 2 || mm[0].Length != 5 || mm[1].Length != 9 {
		t.Fatalf("expected matches of length 5 and 9, got %v", mm)
	}
	for _, m := range mm {
		f := store.Expand(m.Handle).Features()
		if f[MajorTypeFeature] != "Type" || f[MinorTypeFeature] != "Sub" {
			t.Errorf("unexpected features %v", f)
		}
		if _, ok := f[LanguageFeature]; !ok {
			t.Errorf("language feature must always be present")
		}
	}
	if l := store.Expand(mm[0].Handle); l.AnnotationType != "Lookup" ||
		l.Source != filepath.Join(filepath.Dir(def), "lst1.lst") {
		t.Errorf("unexpected list info %+v", l)
	}
}

func TestSeparatorAndFeatures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cats.lst", "cat\tcolor=black\tsize=small\n")
	writeFile(t, dir, "dogs.lst", "dog|color=brown\n")
	def := writeFile(t, dir, "animals.defyaml", `
listFiles:
  - cats.lst
  - file: dogs.lst
    majorType: animal
    featureSeparator: "|"
    legs: "4"
`)
	store, err := Build(Config{Path: def})
	if err != nil {
		t.Fatal(err)
	}
	mm := matches(store, store.Normalizer().Query("cat").Runes, 0)
	if len(mm) != 1 {
		t.Fatalf("expected one match, got %v", mm)
	}
	l := store.Expand(mm[0].Handle)
	if len(l.EntryFeatures) != 2 || l.EntryFeatures[0] != (Feature{"color", "black"}) ||
		l.EntryFeatures[1] != (Feature{"size", "small"}) {
		t.Errorf("unexpected entry features %v", l.EntryFeatures)
	}
	mm = matches(store, store.Normalizer().Query("dog").Runes, 0)
	if len(mm) != 1 {
		t.Fatalf("expected one match for dog, got %v", mm)
	}
	f := store.Expand(mm[0].Handle).Features()
	if f["color"] != "brown" || f["legs"] != "4" || f[MajorTypeFeature] != "animal" || f[ListIndexFeature] != "1" {
		t.Errorf("unexpected features %v", f)
	}
}

func TestGlobalSeparator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.lst", "cat;color=black\n")
	def := writeFile(t, dir, "x.def", "x.lst\n")
	store, err := Build(Config{Path: def, Separator: ";"})
	if err != nil {
		t.Fatal(err)
	}
	mm := matches(store, store.Normalizer().Query("cat").Runes, 0)
	if len(mm) != 1 || store.Expand(mm[0].Handle).Features()["color"] != "black" {
		t.Errorf("expected cat with color black, got %v", mm)
	}
}

func TestWhitespaceCollapse(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.lst", "new york\n")
	def := writeFile(t, dir, "x.def", "x.lst:city\n")
	store, err := Build(Config{Path: def})
	if err != nil {
		t.Fatal(err)
	}
	text := store.Normalizer().Query("new   york")
	if mm := matches(store, text.Runes, 0); len(mm) != 1 || mm[0].Length != 8 {
		t.Errorf("expected match of 'new york', got %v", mm)
	}
}

func TestGzippedList(t *testing.T) {
	dir := t.TempDir()
	lines := "apple\nbanana\tcolor=yellow\napple pie\n"
	writeFile(t, dir, "entries.lst", lines)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte(lines))
	zw.Close()
	writeFile(t, dir, "entries.lst.gz", buf.String())
	plain := writeFile(t, dir, "plain.def", "entries.lst:fruit\n")
	zipped := writeFile(t, dir, "zipped.def", "entries.lst.gz:fruit\n")
	a, err := Build(Config{Path: plain})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(Config{Path: zipped})
	if err != nil {
		t.Fatal(err)
	}
	if a.Stats().Stats != b.Stats().Stats {
		t.Errorf("stores differ: %s vs %s", a.Stats(), b.Stats())
	}
	text := "an apple pie and a banana"
	ta, tb := a.FindAll(text), b.FindAll(text)
	if len(ta) != 3 || len(ta) != len(tb) {
		t.Fatalf("expected 3 occurrences in both, got %v and %v", ta, tb)
	}
	for i := range ta {
		if ta[i] != tb[i] {
			t.Errorf("occurrence %d differs: %v vs %v", i, ta[i], tb[i])
		}
	}
}

func TestLoadErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	dir := t.TempDir()
	writeFile(t, dir, "bad.lst", "ok\nbroken\tnofeature\n")
	def := writeFile(t, dir, "bad.def", "bad.lst\n")
	_, err := Build(Config{Path: def})
	var perr *listfile.ParseError
	if !errors.As(err, &perr) || perr.Line != 2 {
		t.Errorf("expected parse error in line 2, got %v", err)
	}
	if _, err = Build(Config{Path: filepath.Join(dir, "x.txt")}); err == nil {
		t.Errorf("expected error for bad extension")
	}
	missing := writeFile(t, dir, "missing.def", "nope.lst\n")
	if _, err = Build(Config{Path: missing}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected missing list to fail, got %v", err)
	}
	m := NewManager()
	if _, err = m.Acquire(Config{Path: def}); err == nil {
		t.Errorf("expected acquire to fail")
	}
	if m.InUse(Config{Path: def}) != 0 {
		t.Errorf("failed load must not install a store")
	}
}

func TestCachePath(t *testing.T) {
	cfg := Config{Path: "/data/gaz/cities.def", CaseSensitive: true, Language: "de"}
	p, err := CachePath(cfg, nil)
	if err != nil || p != "/data/gaz/cities_c1_de.gazbin" {
		t.Errorf("unexpected cache path %q (%v)", p, err)
	}
	cfg = Config{Path: "/data/gaz/cities.defyaml"}
	p, _ = CachePath(cfg, nil)
	if p != "/data/gaz/cities_c0_en.gazbin" {
		t.Errorf("unexpected cache path %q", p)
	}
	p, _ = CachePath(cfg, &defconfig.Config{CacheDir: "cache"})
	if p != "/data/gaz/cache/cities_c0_en.gazbin" {
		t.Errorf("unexpected cache path %q", p)
	}
	p, _ = CachePath(cfg, &defconfig.Config{CacheDir: "/var/cache", CacheFile: "x.gazbin"})
	if p != "/var/cache/x.gazbin" {
		t.Errorf("unexpected cache path %q", p)
	}
	p, _ = CachePath(cfg, &defconfig.Config{CacheFile: "x.gazbin"})
	if p != "/data/gaz/x.gazbin" {
		t.Errorf("unexpected cache path %q", p)
	}
	p, _ = CachePath(Config{Path: "https://example.org/g/cities.def"}, nil)
	if p != "https://example.org/g/cities_c0_en.gazbin" {
		t.Errorf("unexpected cache path %q", p)
	}
	if _, err = CachePath(Config{Path: "cities.txt"}, nil); err == nil {
		t.Errorf("expected error for bad extension")
	}
	if Fingerprint(false, "") != "c0_en" || cfg.key() != "cs=false url=/data/gaz/cities.defyaml lang=en" {
		t.Errorf("unexpected fingerprint or key")
	}
}

func TestCacheReuse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	dir, def := minimalDef(t)
	cfg := Config{Path: def}
	cache := filepath.Join(dir, "t_c0_en.gazbin")
	first, err := NewManager().Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(cache)
	if err != nil {
		t.Fatalf("expected cache to be written: %v", err)
	}
	// change the list: a second manager must still see the cached store
	writeFile(t, dir, "lst1.lst", "cherry\n")
	second, err := NewManager().Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sameBehaviour(t, first, second, "I ate apple pie and a banana, no cherry.")
	// corrupt the cache: the store is rebuilt from the (changed) list
	image, _ := os.ReadFile(cache)
	image[len(image)/2] ^= 0xff
	if err = os.WriteFile(cache, image, 0o644); err != nil {
		t.Fatal(err)
	}
	third, err := NewManager().Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(third.FindAll("cherry")) != 1 || len(third.FindAll("apple")) != 0 {
		t.Errorf("expected store rebuilt from list files")
	}
	if after, _ := os.Stat(cache); after.Size() != info.Size() {
		t.Errorf("existing cache must not be overwritten")
	}
}

func TestCacheForOtherParameters(t *testing.T) {
	dir, def := minimalDef(t)
	m := NewManager()
	if _, err := m.Acquire(Config{Path: def}); err != nil {
		t.Fatal(err)
	}
	cs, err := m.Acquire(Config{Path: def, CaseSensitive: true})
	if err != nil {
		t.Fatal(err)
	}
	if !cs.CaseSensitive() {
		t.Errorf("expected case-sensitive store")
	}
	for _, name := range []string{"t_c0_en.gazbin", "t_c1_en.gazbin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected cache %s: %v", name, err)
		}
	}
	// a cache for other parameters at the expected place is not used
	os.Rename(filepath.Join(dir, "t_c1_en.gazbin"), filepath.Join(dir, "t_c0_de.gazbin"))
	de, err := NewManager().Acquire(Config{Path: def, Language: "de"})
	if err != nil {
		t.Fatal(err)
	}
	if de.CaseSensitive() || de.Language() != "de" {
		t.Errorf("expected store rebuilt for c0_de, got %s", de.Fingerprint())
	}
}

func TestRefcountSharing(t *testing.T) {
	_, def := minimalDef(t)
	m := NewManager()
	cfg := Config{Path: def}
	a, err := m.Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("expected shared store")
	}
	if keys := m.Loaded(); len(keys) != 1 || keys[0] != cfg.key() {
		t.Errorf("expected one loaded store %q, have %v", cfg.key(), keys)
	}
	m.Release(cfg)
	if m.InUse(cfg) != 1 {
		t.Errorf("store must stay alive after first release")
	}
	m.Release(cfg)
	if m.InUse(cfg) != 0 || len(m.Loaded()) != 0 {
		t.Errorf("registry entry must be gone after second release")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("expected double release to panic")
		}
	}()
	m.Release(cfg)
}

func TestReplaceAndEvict(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	dir, def := minimalDef(t)
	m := NewManager()
	cfg := Config{Path: def}
	old, err := m.Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "lst1.lst", "cherry\n")
	replaced, err := m.Replace(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(replaced.FindAll("cherry")) != 1 || len(old.FindAll("apple")) != 1 {
		t.Errorf("expected new store with cherry, old store unchanged")
	}
	current, err := m.Acquire(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if current != replaced || m.InUse(cfg) != 2 {
		t.Errorf("expected replaced store with unchanged reference count")
	}
	cached, err := LoadStore(filepath.Join(dir, "t_c0_en.gazbin"))
	if err != nil || len(cached.FindAll("cherry")) != 1 {
		t.Errorf("expected cache to be re-created: %v", err)
	}
	//
	if err = m.Evict(cfg); err != nil {
		t.Fatal(err)
	}
	if m.InUse(cfg) != 0 {
		t.Errorf("expected entry to be evicted")
	}
	if _, err = os.Stat(filepath.Join(dir, "t_c0_en.gazbin")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected cache file to be deleted")
	}
}

func TestRemoteConfig(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	files := map[string]string{
		"/g/t.def":     "lst1.lst:Type:Sub\n",
		"/g/lst1.lst":  "apple\napple pie\n",
		"/g/t.defyaml": "cacheDir: /nowhere\nlistFiles: [lst1.lst]\n",
	}
	var mu sync.Mutex
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r.URL.Path)
		mu.Unlock()
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	}))
	defer srv.Close()
	m := NewManager()
	store, err := m.Acquire(Config{Path: srv.URL + "/g/t.def"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.FindAll("apple pie")) != 2 {
		t.Errorf("expected remote lists to be loaded")
	}
	mu.Lock()
	tried := strings.Contains(strings.Join(requests, " "), "/g/t_c0_en.gazbin")
	mu.Unlock()
	if !tried {
		t.Errorf("expected remote cache to be tried, requests: %v", requests)
	}
	if _, err = m.Acquire(Config{Path: srv.URL + "/g/t.defyaml"}); err != nil {
		t.Fatal(err)
	}
	if err = m.Watch(context.Background(), Config{Path: srv.URL + "/g/t.def"}); !errors.Is(err, ErrRemoteConfig) {
		t.Errorf("expected remote configurations not to be watchable, got %v", err)
	}
}

func TestWatch(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "gazetteer")
	defer teardown()
	//
	dir, def := minimalDef(t)
	m := NewManager()
	cfg := Config{Path: def}
	if _, err := m.Acquire(cfg); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	replaced := make(chan *Store, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.watch(ctx, cfg, func(s *Store) {
			select {
			case replaced <- s:
			default:
			}
		})
	}()
	time.Sleep(100 * time.Millisecond) // let the watcher start
	writeFile(t, dir, "lst1.lst", "cherry\n")
	select {
	case s := <-replaced:
		if len(s.FindAll("cherry")) != 1 {
			t.Errorf("expected replaced store to contain cherry")
		}
	case <-ctx.Done():
		t.Fatalf("store has not been replaced")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected watch to end with context.Canceled, got %v", err)
	}
}

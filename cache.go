package gazetteer

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/npillmayer/gazetteer/defconfig"
	"github.com/npillmayer/gazetteer/gazbin"
	"github.com/npillmayer/gazetteer/listfile"
)

// CacheSuffix is the file name suffix of compiled gazetteers.
const CacheSuffix = ".gazbin"

// Fingerprint encodes the parameters a compiled store depends on, apart
// from its configuration, e.g. "c0_en" for a case-insensitive store with
// English case conversion.
func Fingerprint(caseSensitive bool, lang string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	cs := 0
	if caseSensitive {
		cs = 1
	}
	return fmt.Sprintf("c%d_%s", cs, lang)
}

// CachePath returns the location of the cache file for cfg. By default the
// cache is placed next to the configuration file, with the extension
// replaced by the fingerprint and CacheSuffix. def may override directory
// and file name.
func CachePath(cfg Config, def *defconfig.Config) (string, error) {
	format, err := defconfig.FormatOf(cfg.Path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", cfg.Path, err)
	}
	ext := ".def"
	if format == defconfig.DefYAML {
		ext = ".defyaml"
	}
	fp := Fingerprint(cfg.CaseSensitive, cfg.language())
	p := strings.TrimSuffix(cfg.Path, ext) + "_" + fp + CacheSuffix
	if def == nil || (def.CacheDir == "" && def.CacheFile == "") {
		return p, nil
	}
	name := path.Base(filepath.ToSlash(p))
	if def.CacheFile != "" {
		name = def.CacheFile
	}
	switch {
	case def.CacheDir == "":
		return listfile.Resolve(cfg.Path, name), nil
	case listfile.IsRemote(def.CacheDir):
		return strings.TrimSuffix(def.CacheDir, "/") + "/" + name, nil
	}
	return listfile.Resolve(cfg.Path, filepath.Join(def.CacheDir, name)), nil
}

// readCache loads a compiled store from a cache file or URL. A missing
// cache is reported as fs.ErrNotExist.
func readCache(src string) (*Store, error) {
	if p, ok := listfile.LocalPath(src); ok {
		if _, err := os.Stat(p); err != nil {
			return nil, err
		}
		return LoadStore(p)
	}
	resp, err := http.Get(src)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fs.ErrNotExist
	default:
		return nil, fmt.Errorf("%s: %s", src, resp.Status)
	}
	return ReadStore(resp.Body)
}

// loadCached returns the store in the cache at src, if there is a valid one
// matching cfg. Unusable caches are reported and yield nil.
func loadCached(cfg Config, src string) *Store {
	store, err := readCache(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		tracer().Errorf("could not load %s, loading from original files: %v", src, err)
		return nil
	}
	if fp := Fingerprint(cfg.CaseSensitive, cfg.language()); store.Fingerprint() != fp {
		tracer().Errorf("cache %s has been compiled for %s, not %s; loading from original files",
			src, store.Fingerprint(), fp)
		return nil
	}
	tracer().Infof("gazetteer loaded from %s", src)
	return store
}

// writeCache saves store to dst, if dst is a local file which does not yet
// exist. Failures are traced, as the store is usable without cache.
func writeCache(store *Store, dst string, codec gazbin.Codec) {
	p, ok := listfile.LocalPath(dst)
	if !ok {
		return
	}
	if _, err := os.Stat(p); err == nil {
		tracer().Errorf("re-created cache, but cache file %s already exists; please remove it", p)
		return
	}
	if err := store.Save(p, codec); err != nil {
		tracer().Errorf("error writing cache, not created: %v", err)
	}
}

// removeCache deletes a local cache file. Missing files are not an error.
func removeCache(dst string) error {
	p, ok := listfile.LocalPath(dst)
	if !ok {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// open loads the store for cfg from its cache or, failing that, builds it
// from the list files and writes a new cache. With rebuild set, an existing
// cache is deleted first.
func open(cfg Config, rebuild bool) (*Store, error) {
	def, err := readConfig(cfg.Path)
	if err != nil {
		return nil, err
	}
	cache, err := CachePath(cfg, def)
	if err != nil {
		return nil, err
	}
	if rebuild {
		if err = removeCache(cache); err != nil {
			tracer().Errorf("could not remove cache: %v", err)
		}
	} else if store := loadCached(cfg, cache); store != nil {
		return store, nil
	}
	store, err := buildStore(cfg, def)
	if err != nil {
		return nil, err
	}
	writeCache(store, cache, cfg.codec())
	return store, nil
}

package gazetteer

import (
	"github.com/npillmayer/gazetteer/registry"
)

// Manager shares compiled stores within a process. Stores are keyed by
// configuration path, case mode and case conversion language; every
// Acquire must be balanced by a Release with an equal Config.
type Manager struct {
	stores *registry.Registry[*Store]
}

// NewManager creates a manager. Options are passed on to the underlying
// registry, e.g. registry.WithMetrics.
func NewManager(opts ...registry.Option) *Manager {
	return &Manager{stores: registry.New[*Store](opts...)}
}

// Acquire returns the store for cfg, loading it if it is not yet in use.
// Loading reads the cache file if a valid one exists, and otherwise
// compiles the list files and tries to write a cache for the next time.
func (m *Manager) Acquire(cfg Config) (*Store, error) {
	return m.stores.Acquire(cfg.key(), func() (*Store, error) {
		return open(cfg, false)
	})
}

// Release gives up a reference to the store for cfg.
func (m *Manager) Release(cfg Config) {
	if m.stores.Release(cfg.key()) {
		tracer().Debugf("last reference to gazetteer %s released", cfg.Path)
	}
}

// Replace recompiles the store for cfg from its list files, deleting and
// re-creating its cache. If the store is in use, consumers acquiring it
// from now on get the new store; the reference count is unchanged. Holders
// of the old store may continue to use it.
func (m *Manager) Replace(cfg Config) (*Store, error) {
	store, err := open(cfg, true)
	if err != nil {
		return nil, err
	}
	if m.stores.Replace(cfg.key(), store) {
		tracer().Infof("gazetteer %s replaced", cfg.Path)
	}
	return store, nil
}

// Evict drops the store for cfg from the manager regardless of its
// references, and deletes its cache file.
func (m *Manager) Evict(cfg Config) error {
	m.stores.Evict(cfg.key())
	def, err := readConfig(cfg.Path)
	if err != nil {
		return err
	}
	cache, err := CachePath(cfg, def)
	if err != nil {
		return err
	}
	return removeCache(cache)
}

// InUse returns the number of references to the store for cfg.
func (m *Manager) InUse(cfg Config) int {
	return m.stores.RefCount(cfg.key())
}

// Loaded returns the keys of all stores currently held by the manager, in
// ascending order. A key names configuration path, case mode and language.
func (m *Manager) Loaded() []string {
	return m.stores.Keys()
}

// --- Default manager -------------------------------------------------------

var defaultManager = NewManager()

// Acquire returns the store for cfg from the default manager.
func Acquire(cfg Config) (*Store, error) {
	return defaultManager.Acquire(cfg)
}

// Release releases the store for cfg at the default manager.
func Release(cfg Config) {
	defaultManager.Release(cfg)
}

// Replace recompiles the store for cfg at the default manager.
func Replace(cfg Config) (*Store, error) {
	return defaultManager.Replace(cfg)
}

// Evict drops the store for cfg from the default manager and deletes its
// cache file.
func Evict(cfg Config) error {
	return defaultManager.Evict(cfg)
}

package gazetteer

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/npillmayer/gazetteer/listfile"
)

// settle is the time to wait after a file change before recompiling, as
// editors and copy tools tend to produce bursts of events.
const settle = 250 * time.Millisecond

// ErrRemoteConfig is returned when watching a configuration which is not
// a local file.
var ErrRemoteConfig = errors.New("gazetteer: cannot watch a remote configuration")

// Watch replaces the store for cfg whenever its configuration file or one
// of its local list files changes. It blocks until ctx is done.
// Recompilation errors are traced; the previous store stays in place then.
func (m *Manager) Watch(ctx context.Context, cfg Config) error {
	return m.watch(ctx, cfg, nil)
}

// Watch watches the sources of cfg for the default manager.
func Watch(ctx context.Context, cfg Config) error {
	return defaultManager.Watch(ctx, cfg)
}

// watch calls replaced after each successful replacement, if non-nil.
func (m *Manager) watch(ctx context.Context, cfg Config, replaced func(*Store)) error {
	conf, ok := listfile.LocalPath(cfg.Path)
	if !ok {
		return ErrRemoteConfig
	}
	watched, err := watchedFiles(cfg.Path, conf)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// watch directories, because editors replace files by renaming
	dirs := make(map[string]bool)
	for p := range watched {
		dir := filepath.Dir(p)
		if dirs[dir] {
			continue
		}
		if err = watcher.Add(dir); err != nil {
			return err
		}
		dirs[dir] = true
	}
	tracer().Debugf("watching %d files of gazetteer %s", len(watched), cfg.Path)
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			tracer().Debugf("gazetteer source %s changed", event.Name)
			timer.Reset(settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			tracer().Errorf("gazetteer watcher: %v", err)
		case <-timer.C:
			store, err := m.Replace(cfg)
			if err != nil {
				tracer().Errorf("gazetteer %s not replaced: %v", cfg.Path, err)
				continue
			}
			if replaced != nil {
				replaced(store)
			}
			if w, err := watchedFiles(cfg.Path, conf); err == nil {
				watched = w // lists may have been added
				for p := range watched {
					if dir := filepath.Dir(p); !dirs[dir] && watcher.Add(dir) == nil {
						dirs[dir] = true
					}
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchedFiles collects the local files a store is compiled from.
func watchedFiles(config, local string) (map[string]bool, error) {
	def, err := readConfig(config)
	if err != nil {
		return nil, err
	}
	files := map[string]bool{filepath.Clean(local): true}
	for _, spec := range def.Lists {
		if p, ok := listfile.LocalPath(listfile.Resolve(config, spec.File)); ok {
			files[filepath.Clean(p)] = true
		}
	}
	return files, nil
}

/*
Package registry implements a reference counted registry of shared values.

Building a gazetteer store is expensive, and many consumers in one process
use the same configuration. A Registry deduplicates values by key: the first
Acquire for a key builds the value, later ones share it. Every Acquire must
be matched by a Release; the entry is dropped with its last reference.

All operations are serialized by a single mutex, and builders run while it
is held. Building one value therefore blocks requests for any other key,
which is fine for values built rarely at startup.
*/
package registry

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type entry[T any] struct {
	value T
	refs  int
}

// Registry maps keys to reference counted values.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	metrics *metrics
}

// Option configures a Registry.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	namespace  string
}

// WithMetrics instruments the registry with Prometheus metrics, registered
// at reg under the given namespace.
func WithMetrics(reg prometheus.Registerer, namespace string) Option {
	return func(o *options) {
		o.registerer = reg
		o.namespace = namespace
	}
}

// New creates an empty registry.
func New[T any](opts ...Option) *Registry[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	r := &Registry[T]{entries: make(map[string]*entry[T])}
	if o.registerer != nil {
		r.metrics = newMetrics(o.registerer, o.namespace)
	}
	return r
}

// Acquire returns the value for key and increments its reference count.
// If there is no entry for key, build is called to create the value, which
// is then installed with a reference count of 1. Errors of build are
// returned unchanged and nothing is installed.
func (r *Registry[T]) Acquire(key string, build func() (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.refs++
		r.metrics.reused()
		return e.value, nil
	}
	start := time.Now()
	v, err := build()
	r.metrics.built(time.Since(start), err)
	if err != nil {
		var zero T
		return zero, err
	}
	r.entries[key] = &entry[T]{value: v, refs: 1}
	r.metrics.setEntries(len(r.entries))
	return v, nil
}

// Release drops a reference to the value for key. It returns true if this
// was the last reference and the entry has been removed.
//
// Releasing a key without an entry is a programming error and panics.
func (r *Registry[T]) Release(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		panic(fmt.Sprintf("registry: release of unknown key %q", key))
	}
	r.metrics.released()
	e.refs--
	if e.refs > 0 {
		return false
	}
	delete(r.entries, key)
	r.metrics.setEntries(len(r.entries))
	return true
}

// Replace overwrites the value for key, keeping its reference count. It
// returns false if there is no entry for key; nothing is installed then.
func (r *Registry[T]) Replace(key string, v T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return false
	}
	e.value = v
	r.metrics.replaced()
	return true
}

// Evict removes the entry for key regardless of its reference count.
// Consumers holding the value may continue to use it. It returns false if
// there was no entry.
func (r *Registry[T]) Evict(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	r.metrics.evicted()
	r.metrics.setEntries(len(r.entries))
	return true
}

// RefCount returns the reference count for key, 0 if there is no entry.
func (r *Registry[T]) RefCount(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Keys returns the keys of all entries in ascending order.
func (r *Registry[T]) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

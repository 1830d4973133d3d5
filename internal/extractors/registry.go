package extractors

import (
	"sort"
	"sync"

	"github.com/helixir/scientometrics-service/internal/domain"
)

// Registry resolves extractor keys to extractors.
//
// It starts from a default mapping. Providers added with AddProvider are
// consulted in registration order; the first one returning a non-empty
// mapping replaces the defaults entirely and later providers are ignored.
//
// Extractors are built once per key and reused, so every caller shares the
// same rate limiter for a provider. This type is thread-safe.
type Registry struct {
	mu        sync.RWMutex
	defaults  map[string]Factory
	providers []ExtractorProvider
	active    map[string]Factory
	instances map[string]MetricExtractor
}

// NewRegistry creates a registry with the given default mapping.
func NewRegistry(defaults map[string]Factory) *Registry {
	copied := make(map[string]Factory, len(defaults))
	for k, f := range defaults {
		copied[k] = f
	}
	return &Registry{
		defaults:  copied,
		instances: make(map[string]MetricExtractor),
	}
}

// AddProvider registers a host override. It invalidates previously resolved
// extractors.
func (r *Registry) AddProvider(p ExtractorProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	r.active = nil
	r.instances = make(map[string]MetricExtractor)
}

// Resolve returns the extractor registered under key.
// Returns a *domain.UnsupportedSourceError if the effective mapping has no
// such key.
func (r *Registry) Resolve(key string) (MetricExtractor, error) {
	r.mu.RLock()
	if ex, ok := r.instances[key]; ok {
		r.mu.RUnlock()
		return ex, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if ex, ok := r.instances[key]; ok {
		return ex, nil
	}
	factory, ok := r.mapping()[key]
	if !ok || factory == nil {
		return nil, domain.NewUnsupportedSourceError(key)
	}
	ex := factory()
	if ex == nil {
		return nil, domain.NewUnsupportedSourceError(key)
	}
	r.instances[key] = ex
	return ex, nil
}

// Keys returns the keys of the effective mapping, sorted.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.mapping()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// mapping computes the effective mapping. Callers must hold the write lock.
func (r *Registry) mapping() map[string]Factory {
	if r.active != nil {
		return r.active
	}
	r.active = r.defaults
	for _, p := range r.providers {
		if m := p.Extractors(); len(m) > 0 {
			r.active = m
			break
		}
	}
	return r.active
}

package provider

import "sync"

// Registry holds the adapters that support a connection test, keyed by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderName]TestableProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[ProviderName]TestableProvider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p TestableProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not registered.
func (r *Registry) Get(name ProviderName) TestableProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// All returns all registered providers in a stable order.
func (r *Registry) All() []TestableProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []TestableProvider
	for _, name := range AllProviderNames() {
		if p, ok := r.providers[name]; ok {
			result = append(result, p)
		}
	}
	return result
}

package detection

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages all registered detection providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]ProviderInterface
	fallback  string
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderInterface),
	}
}

// Register registers a new detection provider
func (r *Registry) Register(provider ProviderInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code := provider.Code()
	if code == "" {
		return fmt.Errorf("provider code cannot be empty")
	}

	if _, exists := r.providers[code]; exists {
		return fmt.Errorf("provider %s is already registered", code)
	}

	r.providers[code] = provider
	return nil
}

// SetDefault selects the provider used when a scan names none
func (r *Registry) SetDefault(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = code
}

// Get returns a provider by its code. An empty code returns the default
// provider, or the only one when exactly one is registered.
func (r *Registry) Get(code string) (ProviderInterface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if code == "" {
		code = r.fallback
	}
	if code == "" && len(r.providers) == 1 {
		for _, p := range r.providers {
			return p, nil
		}
	}

	provider, exists := r.providers[code]
	if !exists {
		return nil, fmt.Errorf("provider %q not found", code)
	}

	return provider, nil
}

// List returns all registered providers sorted by code
func (r *Registry) List() []ProviderInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]ProviderInterface, 0, len(r.providers))
	for _, provider := range r.providers {
		providers = append(providers, provider)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Code() < providers[j].Code() })

	return providers
}

// Has checks if a provider is registered
func (r *Registry) Has(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[code]
	return exists
}

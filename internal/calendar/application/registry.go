package application

import (
	"fmt"
	"sort"
	"sync"

	"github.com/raziel-gershoni/calbrew-sub001/internal/calendar/domain"
)

// ProviderRegistry holds the configured calendar providers by type.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[domain.ProviderType]Provider
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[domain.ProviderType]Provider)}
}

// Register adds or replaces the provider for a type.
func (r *ProviderRegistry) Register(providerType domain.ProviderType, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[providerType] = provider
}

// Get returns the provider for a type.
func (r *ProviderRegistry) Get(providerType domain.ProviderType) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("no calendar provider registered for %q", providerType)
	}
	return provider, nil
}

// Types returns the registered provider types, sorted for stable output.
func (r *ProviderRegistry) Types() []domain.ProviderType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.ProviderType, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

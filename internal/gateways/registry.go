package gateways

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured gateway clients by name
type Registry struct {
	gateways map[string]PayoutGateway
	mu       sync.RWMutex
}

// NewRegistry creates an empty gateway registry
func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]PayoutGateway),
	}
}

// Register adds or replaces a gateway client
func (r *Registry) Register(gateway PayoutGateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[gateway.Name()] = gateway
}

// Get returns the client for a gateway name
func (r *Registry) Get(name string) (PayoutGateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	gw, exists := r.gateways[name]
	if !exists {
		return nil, fmt.Errorf("gateway %s not registered", name)
	}
	return gw, nil
}

// IsRegistered reports whether a gateway client exists for name
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.gateways[name]
	return exists
}

// Names returns the registered gateway names in stable order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

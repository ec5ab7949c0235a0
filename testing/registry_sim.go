package testing

import (
	"context"
	"sync"

	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/registry"
)

// SimulatedRegistry is a MemoryRegistry with per-name failure injection.
type SimulatedRegistry struct {
	*registry.MemoryRegistry

	mu         sync.Mutex
	failures   map[string]error
	lookupFail error
}

// NewSimulatedRegistry returns an empty registry.
func NewSimulatedRegistry() *SimulatedRegistry {
	return &SimulatedRegistry{
		MemoryRegistry: registry.NewMemoryRegistry(),
		failures:       make(map[string]error),
	}
}

// FailRegistration makes registrations named name return err.
func (r *SimulatedRegistry) FailRegistration(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[name] = err
}

// Register implements interfaces.IRegistry.
func (r *SimulatedRegistry) Register(ctx context.Context, reg interfaces.Registration) error {
	r.mu.Lock()
	err := r.failures[reg.Name]
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.MemoryRegistry.Register(ctx, reg)
}

// FailLookups makes every Lookup return err until called with nil.
func (r *SimulatedRegistry) FailLookups(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookupFail = err
}

// Lookup implements interfaces.IRegistry.
func (r *SimulatedRegistry) Lookup(ctx context.Context, address string) (*interfaces.Registration, error) {
	r.mu.Lock()
	err := r.lookupFail
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.MemoryRegistry.Lookup(ctx, address)
}

var _ interfaces.IRegistry = (*SimulatedRegistry)(nil)

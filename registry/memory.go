package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/opd-ai/agentnet/interfaces"
)

// MemoryRegistry is a process-local registry.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]interfaces.Registration
	order   []string
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: make(map[string]interfaces.Registration)}
}

// Register implements interfaces.IRegistry.
func (m *MemoryRegistry) Register(ctx context.Context, reg interfaces.Registration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if reg.Address == "" {
		return fmt.Errorf("registration of %q has no address", reg.Name)
	}

	key := strings.ToLower(reg.Address)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; exists {
		return fmt.Errorf("address %s already registered", reg.Address)
	}
	m.entries[key] = reg
	m.order = append(m.order, key)
	return nil
}

// Lookup implements interfaces.IRegistry.
func (m *MemoryRegistry) Lookup(ctx context.Context, address string) (*interfaces.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	reg, ok := m.entries[strings.ToLower(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotRegistered, address)
	}
	return &reg, nil
}

// Len returns the number of registrations.
func (m *MemoryRegistry) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// All returns registrations in the order they were made.
func (m *MemoryRegistry) All() []interfaces.Registration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]interfaces.Registration, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.entries[k])
	}
	return out
}

var _ interfaces.IRegistry = (*MemoryRegistry)(nil)

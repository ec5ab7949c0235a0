package interfaces

import (
	"context"
	"errors"

	"github.com/opd-ai/agentnet/identity"
)

// ErrNotRegistered is returned by Lookup for unknown addresses.
var ErrNotRegistered = errors.New("address not registered")

// Registration is one agent entry in the registry.
type Registration struct {
	Address  string
	Name     string
	Version  string
	Metadata identity.Metadata
}

// RegistrationFor builds the registration record of an identity.
func RegistrationFor(id *identity.NodeIdentity) Registration {
	return Registration{
		Address:  id.AddressHex(),
		Name:     id.Name(),
		Version:  id.Version(),
		Metadata: id.Metadata(),
	}
}

// IRegistry is the agent registry collaborator.
type IRegistry interface {
	// Register records reg. Registering an address twice is an error.
	Register(ctx context.Context, reg Registration) error

	// Lookup returns the registration for address or ErrNotRegistered.
	Lookup(ctx context.Context, address string) (*Registration, error)
}

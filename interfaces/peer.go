package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/opd-ai/agentnet/identity"
)

// PeerInfo is what a node publishes so others can reach it.
type PeerInfo struct {
	Name      string
	Address   string
	Endpoint  string
	PublicKey [32]byte
}

// InboundMessage is a message delivered to an agent.
type InboundMessage struct {
	FromAgentID string
	ToAgentID   string
	Content     string
	ReceivedAt  time.Time
}

// MessageHandler receives inbound messages. Handlers may be called from any
// goroutine and concurrently with each other.
type MessageHandler func(InboundMessage)

// IPeerNode is a node on the peer network.
type IPeerNode interface {
	// Start binds the node to port and joins the network.
	Start(ctx context.Context, port uint16) error

	// Stop leaves the network and releases the port. A stopped node cannot
	// be restarted.
	Stop(ctx context.Context) error

	// RegisterWithContract records the node identity in the agent registry.
	RegisterWithContract(ctx context.Context) error

	// SendMessage delivers content to the node registered under address.
	SendMessage(ctx context.Context, address, content string) error

	// GetAddress returns the node's network address.
	GetAddress() string

	// Name returns the identity name.
	Name() string

	// Info returns the node's published peer information.
	Info() PeerInfo

	// OnMessage attaches a handler for inbound messages.
	OnMessage(handler MessageHandler)
}

// NodeConfig carries everything a NodeConstructor needs to build a node.
type NodeConfig struct {
	Identity        *identity.NodeIdentity
	RegistryAddress string
	RPCEndpoint     string
	ListenHost      string
	Seeds           []PeerInfo
}

// ErrMissingIdentity is returned when a NodeConfig has no identity.
var ErrMissingIdentity = errors.New("node config requires an identity")

// Validate checks the fields every constructor depends on.
func (c NodeConfig) Validate() error {
	if c.Identity == nil {
		return ErrMissingIdentity
	}
	return nil
}

// NodeConstructor builds a node from configuration without starting it.
type NodeConstructor func(cfg NodeConfig) (IPeerNode, error)

package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
)

// LifecycleConfig fixes the naming and port layout of provisioned nodes.
type LifecycleConfig struct {
	BootstrapPort   uint16
	AgentPort       uint16
	NodeVersion     string
	ListenHost      string
	RegistryAddress string
	RPCEndpoint     string
	Capabilities    []string
}

// PeerNodeHandle is a started node owned by the harness.
type PeerNodeHandle struct {
	Name     string
	Port     uint16
	Role     identity.Role
	Identity *identity.NodeIdentity
	Node     interfaces.IPeerNode
}

// NodeLifecycleManager provisions bootstrap and agent nodes and tears them down.
type NodeLifecycleManager struct {
	config   LifecycleConfig
	newNode  interfaces.NodeConstructor
	funding  *FundingGate
	messages *MessageLog
	clock    TimeProvider
	metrics  *Metrics
	logger   *logrus.Entry

	mu        sync.Mutex
	bootstrap []*PeerNodeHandle
	agents    []*PeerNodeHandle
	names     map[string]bool
	ports     map[uint16]bool
}

// NewNodeLifecycleManager creates a manager building nodes with newNode.
// Agents are funded through funding and deliver inbound messages to messages.
func NewNodeLifecycleManager(config LifecycleConfig, newNode interfaces.NodeConstructor, funding *FundingGate,
	messages *MessageLog, clock TimeProvider, metrics *Metrics,
) *NodeLifecycleManager {
	if config.Capabilities == nil {
		config.Capabilities = identity.DefaultCapabilities
	}
	return &NodeLifecycleManager{
		config:   config,
		newNode:  newNode,
		funding:  funding,
		messages: messages,
		clock:    getTimeProvider(clock),
		metrics:  metrics,
		logger:   logrus.WithField("component", "lifecycle"),
		names:    make(map[string]bool),
		ports:    make(map[uint16]bool),
	}
}

// BootstrapName returns the name of bootstrap node i.
func BootstrapName(i int) string { return fmt.Sprintf("bootstrap-%d", i) }

// AgentName returns the name of agent i.
func AgentName(i int) string { return fmt.Sprintf("test-agent-%d", i) }

// AgentCreator returns the creator label registered for agent i.
func AgentCreator(i int) string { return fmt.Sprintf("Test Framework Agent %d", i) }

// StartBootstrapNodes starts count bootstrap nodes, stopping at the first
// failure. Nodes started before the failure remain recorded for cleanup.
func (m *NodeLifecycleManager) StartBootstrapNodes(ctx context.Context, count int) error {
	return StrictSequential.Run(count, func(i int) error {
		return m.startBootstrap(ctx, i)
	})
}

func (m *NodeLifecycleManager) startBootstrap(ctx context.Context, i int) error {
	name := BootstrapName(i)
	port := m.config.BootstrapPort + uint16(i)
	if err := m.reserve(name, port); err != nil {
		return err
	}

	id, err := identity.Generate(name, m.config.NodeVersion, identity.BootstrapMetadata())
	if err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "create identity", Err: err}
	}
	node, err := m.newNode(m.nodeConfig(id, nil))
	if err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "create", Err: err}
	}
	if err := node.Start(ctx, port); err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "start", Err: err}
	}

	m.mu.Lock()
	m.bootstrap = append(m.bootstrap, &PeerNodeHandle{
		Name: name, Port: port, Role: identity.RoleBootstrap, Identity: id, Node: node,
	})
	m.mu.Unlock()
	m.metrics.incNodesStarted(string(identity.RoleBootstrap))

	m.logger.WithFields(logrus.Fields{
		"function": "StartBootstrapNodes",
		"node":     name,
		"port":     port,
		"address":  id.AddressHex(),
	}).Info("Bootstrap node started")
	return nil
}

// CreateAgents funds, registers and starts count agents, stopping at the
// first failure. Registration always precedes start.
func (m *NodeLifecycleManager) CreateAgents(ctx context.Context, count int) error {
	return StrictSequential.Run(count, func(i int) error {
		return m.createAgent(ctx, i)
	})
}

func (m *NodeLifecycleManager) createAgent(ctx context.Context, i int) error {
	name := AgentName(i)
	port := m.config.AgentPort + uint16(i)
	if err := m.reserve(name, port); err != nil {
		return err
	}
	log := m.logger.WithFields(logrus.Fields{
		"function": "CreateAgents",
		"agent":    name,
		"port":     port,
	})

	id, err := identity.Generate(name, m.config.NodeVersion,
		identity.AgentMetadata(AgentCreator(i), m.config.Capabilities))
	if err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "create identity", Err: err}
	}
	log = log.WithField("address", id.AddressHex())

	if !m.funding.EnsureFunded(ctx, id) {
		m.release(name, port)
		return &FundingFailure{Index: i, Address: id.AddressHex()}
	}

	node, err := m.newNode(m.nodeConfig(id, m.BootstrapInfos()))
	if err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "create", Err: err}
	}
	if err := node.RegisterWithContract(ctx); err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "register", Err: err}
	}
	log.Info("Agent registered with contract")

	record := m.messages.Handler(m.clock)
	node.OnMessage(func(msg interfaces.InboundMessage) {
		record(msg)
		m.metrics.incMessagesReceived()
	})

	if err := node.Start(ctx, port); err != nil {
		m.release(name, port)
		return &StartupFailure{Node: name, Op: "start", Err: err}
	}

	m.mu.Lock()
	m.agents = append(m.agents, &PeerNodeHandle{
		Name: name, Port: port, Role: identity.RoleAgent, Identity: id, Node: node,
	})
	m.mu.Unlock()
	m.metrics.incNodesStarted(string(identity.RoleAgent))

	log.Info("Agent started")
	return nil
}

func (m *NodeLifecycleManager) nodeConfig(id *identity.NodeIdentity, seeds []interfaces.PeerInfo) interfaces.NodeConfig {
	return interfaces.NodeConfig{
		Identity:        id,
		RegistryAddress: m.config.RegistryAddress,
		RPCEndpoint:     m.config.RPCEndpoint,
		ListenHost:      m.config.ListenHost,
		Seeds:           seeds,
	}
}

// reserve claims a name and port before the node is built.
func (m *NodeLifecycleManager) reserve(name string, port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.names[name] {
		return fmt.Errorf("duplicate node name %s", name)
	}
	if m.ports[port] {
		return fmt.Errorf("port %d already assigned", port)
	}
	m.names[name] = true
	m.ports[port] = true
	return nil
}

func (m *NodeLifecycleManager) release(name string, port uint16) {
	m.mu.Lock()
	delete(m.names, name)
	delete(m.ports, port)
	m.mu.Unlock()
}

// StopAll stops agents in creation order, then bootstrap nodes, and clears
// both collections. Every node gets a stop attempt; the failures are returned
// together as a *CleanupFailure.
func (m *NodeLifecycleManager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	handles := make([]*PeerNodeHandle, 0, len(m.agents)+len(m.bootstrap))
	handles = append(handles, m.agents...)
	handles = append(handles, m.bootstrap...)
	m.mu.Unlock()

	err := BestEffort.Run(len(handles), func(i int) error {
		h := handles[i]
		if err := h.Node.Stop(ctx); err != nil {
			m.metrics.incNodeStopFailures()
			m.logger.WithFields(logrus.Fields{
				"function": "StopAll",
				"node":     h.Name,
				"error":    err.Error(),
			}).Warn("Failed to stop node")
			return fmt.Errorf("stop %s: %w", h.Name, err)
		}
		m.logger.WithFields(logrus.Fields{
			"function": "StopAll",
			"node":     h.Name,
		}).Debug("Node stopped")
		return nil
	})

	m.mu.Lock()
	m.agents = nil
	m.bootstrap = nil
	m.names = make(map[string]bool)
	m.ports = make(map[uint16]bool)
	m.mu.Unlock()

	if err != nil {
		return &CleanupFailure{Err: err}
	}
	return nil
}

// Agents returns the started agents in creation order.
func (m *NodeLifecycleManager) Agents() []*PeerNodeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*PeerNodeHandle, len(m.agents))
	copy(out, m.agents)
	return out
}

// BootstrapNodes returns the started bootstrap nodes in creation order.
func (m *NodeLifecycleManager) BootstrapNodes() []*PeerNodeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*PeerNodeHandle, len(m.bootstrap))
	copy(out, m.bootstrap)
	return out
}

// BootstrapInfos returns the peer information agents use as discovery seeds.
func (m *NodeLifecycleManager) BootstrapInfos() []interfaces.PeerInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]interfaces.PeerInfo, 0, len(m.bootstrap))
	for _, h := range m.bootstrap {
		out = append(out, h.Node.Info())
	}
	return out
}

// AgentCount returns the number of started agents.
func (m *NodeLifecycleManager) AgentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents)
}

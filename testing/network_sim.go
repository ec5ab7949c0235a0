package testing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/limits"
)

// ErrPortInUse is returned when two running nodes claim the same port.
var ErrPortInUse = errors.New("port already in use")

// ErrNodeStopped is returned when a stopped node is used again.
var ErrNodeStopped = errors.New("node has been stopped")

// ErrNodeNotRunning is returned by SendMessage before Start.
var ErrNodeNotRunning = errors.New("node is not running")

// ErrPeerUnreachable is returned when no running node owns the address.
var ErrPeerUnreachable = errors.New("peer unreachable")

// DeliveryRecord is one send attempt observed by the simulated network.
type DeliveryRecord struct {
	From      string
	To        string
	Size      int
	Timestamp int64
	Delivered bool
	Reason    string
}

// SimulationStats summarizes the network state.
type SimulationStats struct {
	Nodes       int
	Running     int
	Partitioned int
	Deliveries  int
	Dropped     int
}

// SimulatedNetwork connects SimulatedPeerNodes in memory.
type SimulatedNetwork struct {
	mu          sync.RWMutex
	registry    interfaces.IRegistry
	nodes       map[string]*SimulatedPeerNode
	byAddress   map[string]*SimulatedPeerNode
	ports       map[uint16]string
	partitioned map[string]bool
	failStart   map[string]error
	failStop    map[string]error
	latency     time.Duration
	deliveryLog []DeliveryRecord
	inflight    sync.WaitGroup
}

// NewSimulatedNetwork creates an empty network whose nodes register in registry.
func NewSimulatedNetwork(registry interfaces.IRegistry) *SimulatedNetwork {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	logrus.WithFields(logrus.Fields{
		"function": "NewSimulatedNetwork",
	}).Info("Creating simulated peer network for testing")

	return &SimulatedNetwork{
		registry:    registry,
		nodes:       make(map[string]*SimulatedPeerNode),
		byAddress:   make(map[string]*SimulatedPeerNode),
		ports:       make(map[uint16]string),
		partitioned: make(map[string]bool),
		failStart:   make(map[string]error),
		failStop:    make(map[string]error),
	}
}

// NodeConstructor returns a constructor bound to this network.
func (n *SimulatedNetwork) NodeConstructor() interfaces.NodeConstructor {
	return n.NewNode
}

// NewNode builds an unstarted node. Names must be unique within the network.
func (n *SimulatedNetwork) NewNode(cfg interfaces.NodeConfig) (interfaces.IPeerNode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	name := cfg.Identity.Name()

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.nodes[name]; exists {
		return nil, fmt.Errorf("node %s already exists in simulation", name)
	}
	node := &SimulatedPeerNode{network: n, config: cfg}
	n.nodes[name] = node
	return node, nil
}

// Partition drops every message addressed to the named node without error.
func (n *SimulatedNetwork) Partition(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.partitioned[name] = true
	logrus.WithFields(logrus.Fields{
		"function": "SimulatedNetwork.Partition",
		"node":     name,
	}).Info("Node partitioned from simulated network")
}

// Heal reverses Partition.
func (n *SimulatedNetwork) Heal(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.partitioned, name)
}

// FailStart makes the named node's Start return err.
func (n *SimulatedNetwork) FailStart(name string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failStart[name] = err
}

// FailStop makes the named node's Stop return err.
func (n *SimulatedNetwork) FailStop(name string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failStop[name] = err
}

// SetLatency delays every delivery by d.
func (n *SimulatedNetwork) SetLatency(d time.Duration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latency = d
}

// Wait blocks until every accepted delivery has reached its handlers.
func (n *SimulatedNetwork) Wait() {
	n.inflight.Wait()
}

// RunningNodes returns the names of running nodes sorted by port.
func (n *SimulatedNetwork) RunningNodes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	ports := make([]int, 0, len(n.ports))
	for port := range n.ports {
		ports = append(ports, int(port))
	}
	sort.Ints(ports)

	out := make([]string, 0, len(ports))
	for _, port := range ports {
		out = append(out, n.ports[uint16(port)])
	}
	return out
}

// GetDeliveryLog returns a copy of the delivery log.
func (n *SimulatedNetwork) GetDeliveryLog() []DeliveryRecord {
	n.mu.RLock()
	defer n.mu.RUnlock()

	log := make([]DeliveryRecord, len(n.deliveryLog))
	copy(log, n.deliveryLog)
	return log
}

// ClearDeliveryLog empties the delivery log.
func (n *SimulatedNetwork) ClearDeliveryLog() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deliveryLog = make([]DeliveryRecord, 0)
}

// GetStats returns a snapshot of the network state.
func (n *SimulatedNetwork) GetStats() SimulationStats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	stats := SimulationStats{
		Nodes:       len(n.nodes),
		Running:     len(n.ports),
		Partitioned: len(n.partitioned),
		Deliveries:  len(n.deliveryLog),
	}
	for _, r := range n.deliveryLog {
		if !r.Delivered {
			stats.Dropped++
		}
	}
	return stats
}

func (n *SimulatedNetwork) start(node *SimulatedPeerNode, port uint16) error {
	name := node.Name()

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.failStart[name]; err != nil {
		return err
	}
	if owner, taken := n.ports[port]; taken {
		return fmt.Errorf("%w: %d held by %s", ErrPortInUse, port, owner)
	}
	n.ports[port] = name
	n.byAddress[strings.ToLower(node.GetAddress())] = node
	return nil
}

func (n *SimulatedNetwork) stop(node *SimulatedPeerNode, port uint16) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.failStop[node.Name()]; err != nil {
		return err
	}
	delete(n.ports, port)
	delete(n.byAddress, strings.ToLower(node.GetAddress()))
	return nil
}

func (n *SimulatedNetwork) deliver(from *SimulatedPeerNode, address, content string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	record := DeliveryRecord{
		From:      from.Name(),
		To:        address,
		Size:      len(content),
		Timestamp: time.Now().UnixNano(),
	}

	dest, ok := n.byAddress[strings.ToLower(address)]
	if !ok {
		record.Reason = "unreachable"
		n.deliveryLog = append(n.deliveryLog, record)
		return fmt.Errorf("%w: %s", ErrPeerUnreachable, address)
	}
	record.To = dest.Name()

	if n.partitioned[dest.Name()] {
		record.Reason = "partitioned"
		n.deliveryLog = append(n.deliveryLog, record)
		logrus.WithFields(logrus.Fields{
			"function": "SimulatedNetwork.deliver",
			"from":     record.From,
			"to":       record.To,
		}).Debug("Dropping message to partitioned node")
		return nil
	}

	record.Delivered = true
	n.deliveryLog = append(n.deliveryLog, record)

	msg := interfaces.InboundMessage{
		FromAgentID: from.Name(),
		ToAgentID:   dest.Name(),
		Content:     content,
	}
	latency := n.latency
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		if latency > 0 {
			time.Sleep(latency)
		}
		msg.ReceivedAt = time.Now()
		dest.dispatch(msg)
	}()
	return nil
}

// SimulatedPeerNode is an interfaces.IPeerNode living in a SimulatedNetwork.
type SimulatedPeerNode struct {
	network *SimulatedNetwork
	config  interfaces.NodeConfig

	mu         sync.RWMutex
	port       uint16
	running    bool
	stopped    bool
	registered bool
	handlers   []interfaces.MessageHandler
}

// Start implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) Start(ctx context.Context, port uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrNodeStopped
	}
	if s.running {
		return fmt.Errorf("node %s already running on port %d", s.Name(), s.port)
	}
	if err := s.network.start(s, port); err != nil {
		return fmt.Errorf("failed to start %s on port %d: %w", s.Name(), port, err)
	}
	s.port = port
	s.running = true

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedPeerNode.Start",
		"node":     s.Name(),
		"port":     port,
		"seeds":    len(s.config.Seeds),
	}).Debug("Simulated node started")
	return nil
}

// Stop implements interfaces.IPeerNode. Stopping an unstarted node is a no-op.
func (s *SimulatedPeerNode) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	if err := s.network.stop(s, s.port); err != nil {
		return fmt.Errorf("failed to stop %s: %w", s.Name(), err)
	}
	s.running = false
	s.stopped = true
	return nil
}

// RegisterWithContract implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) RegisterWithContract(ctx context.Context) error {
	if s.network.registry == nil {
		return errors.New("simulated network has no registry")
	}
	reg := interfaces.RegistrationFor(s.config.Identity)
	if err := s.network.registry.Register(ctx, reg); err != nil {
		return fmt.Errorf("failed to register %s: %w", s.Name(), err)
	}
	if _, err := s.network.registry.Lookup(ctx, reg.Address); err != nil {
		return fmt.Errorf("failed to confirm registration of %s: %w", s.Name(), err)
	}
	s.mu.Lock()
	s.registered = true
	s.mu.Unlock()
	return nil
}

// SendMessage implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) SendMessage(ctx context.Context, address, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := limits.ValidateContent([]byte(content)); err != nil {
		return err
	}

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return fmt.Errorf("%s: %w", s.Name(), ErrNodeNotRunning)
	}
	return s.network.deliver(s, address, content)
}

// GetAddress implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) GetAddress() string {
	return s.config.Identity.AddressHex()
}

// Name implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) Name() string {
	return s.config.Identity.Name()
}

// Info implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) Info() interfaces.PeerInfo {
	s.mu.RLock()
	port := s.port
	s.mu.RUnlock()
	return interfaces.PeerInfo{
		Name:      s.Name(),
		Address:   s.GetAddress(),
		Endpoint:  fmt.Sprintf("sim://%s:%d", s.Name(), port),
		PublicKey: s.config.Identity.TransportKeys().Public,
	}
}

// OnMessage implements interfaces.IPeerNode.
func (s *SimulatedPeerNode) OnMessage(handler interfaces.MessageHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// IsRegistered reports whether RegisterWithContract succeeded.
func (s *SimulatedPeerNode) IsRegistered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

// IsRunning reports whether the node is started.
func (s *SimulatedPeerNode) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *SimulatedPeerNode) dispatch(msg interfaces.InboundMessage) {
	s.mu.RLock()
	handlers := append([]interfaces.MessageHandler(nil), s.handlers...)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

var _ interfaces.IPeerNode = (*SimulatedPeerNode)(nil)

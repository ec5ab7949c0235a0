package real

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/limits"
)

var (
	// ErrNodeStopped is returned when a stopped node is used again.
	ErrNodeStopped = errors.New("node has been stopped")

	// ErrNodeNotRunning is returned by operations that need a listener.
	ErrNodeNotRunning = errors.New("node is not running")

	// ErrPeerNotFound is returned when no seed knows the destination address.
	ErrPeerNotFound = errors.New("peer not found")

	// ErrNoRegistry is returned by RegisterWithContract when none is configured.
	ErrNoRegistry = errors.New("node has no registry")

	// ErrRegistrationMismatch is returned when the registry holds another name for this address.
	ErrRegistrationMismatch = errors.New("registry entry does not match node identity")
)

// NodeOptions tunes timeouts, retries and table sizes.
type NodeOptions struct {
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	PeerTableSize  int

	// SeenMessages bounds the message IDs remembered for duplicate suppression.
	SeenMessages int

	// ConfirmRegistration reads the registry entry back after RegisterWithContract.
	ConfirmRegistration bool

	Logger *logrus.Entry
}

// DefaultNodeOptions returns the options used by the harness.
func DefaultNodeOptions() *NodeOptions {
	return &NodeOptions{
		DialTimeout:    5 * time.Second,
		RequestTimeout: 10 * time.Second,
		RetryAttempts:  3,
		RetryBackoff:   200 * time.Millisecond,
		PeerTableSize:  1024,
		SeenMessages:   4096,

		ConfirmRegistration: true,

		Logger: logrus.WithField("component", "node"),
	}
}

type nodeState int

const (
	stateCreated nodeState = iota
	stateRunning
	stateStopped
)

// Node is a TCP peer node secured with Noise IK.
type Node struct {
	config   interfaces.NodeConfig
	opts     *NodeOptions
	registry interfaces.IRegistry
	role     identity.Role
	peers    *lru.Cache
	seen     *lru.Cache
	logger   *logrus.Entry

	mu       sync.RWMutex
	state    nodeState
	listener net.Listener
	port     uint16
	endpoint string
	handlers []interfaces.MessageHandler
	conns    map[net.Conn]struct{}
	group    *errgroup.Group
	cancel   context.CancelFunc
	sleeper  Sleeper
}

// NewNode builds an unstarted node. registry may be nil for bootstrap nodes.
func NewNode(cfg interfaces.NodeConfig, registry interfaces.IRegistry, opts *NodeOptions) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultNodeOptions()
	}

	peers, err := lru.New(opts.PeerTableSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer table: %w", err)
	}
	seenSize := opts.SeenMessages
	if seenSize <= 0 {
		seenSize = DefaultNodeOptions().SeenMessages
	}
	seen, err := lru.New(seenSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create message cache: %w", err)
	}

	role := cfg.Identity.Metadata().Role
	if role == "" {
		role = identity.RoleAgent
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.WithField("component", "node")
	}

	return &Node{
		config:   cfg,
		opts:     opts,
		registry: registry,
		role:     role,
		peers:    peers,
		seen:     seen,
		logger:   logger.WithFields(logrus.Fields{"node": cfg.Identity.Name(), "role": role}),
		conns:    make(map[net.Conn]struct{}),
		sleeper:  DefaultSleeper{},
	}, nil
}

// Constructor returns an interfaces.NodeConstructor that builds Nodes with opts
// and a registry chosen per identity.
func Constructor(registryFor func(interfaces.NodeConfig) interfaces.IRegistry, opts *NodeOptions) interfaces.NodeConstructor {
	return func(cfg interfaces.NodeConfig) (interfaces.IPeerNode, error) {
		var reg interfaces.IRegistry
		if registryFor != nil && cfg.Identity != nil {
			reg = registryFor(cfg)
		}
		return NewNode(cfg, reg, opts)
	}
}

// SetSleeper sets a custom Sleeper implementation (primarily for testing).
func (n *Node) SetSleeper(s Sleeper) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sleeper = s
}

// Start implements interfaces.IPeerNode. Port 0 picks a free port.
func (n *Node) Start(ctx context.Context, port uint16) error {
	n.mu.Lock()
	switch n.state {
	case stateRunning:
		n.mu.Unlock()
		return fmt.Errorf("node %s already running on port %d", n.Name(), n.port)
	case stateStopped:
		n.mu.Unlock()
		return ErrNodeStopped
	}

	host := n.config.ListenHost
	if host == "" {
		host = "127.0.0.1"
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		n.mu.Unlock()
		return fmt.Errorf("failed to listen on port %d: %w", port, err)
	}

	bound := uint16(listener.Addr().(*net.TCPAddr).Port)
	serveCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(serveCtx)

	n.listener = listener
	n.port = bound
	n.endpoint = net.JoinHostPort(advertiseHost(host), strconv.Itoa(int(bound)))
	n.group = group
	n.cancel = cancel
	n.state = stateRunning
	n.mu.Unlock()

	group.Go(func() error { return n.acceptLoop(groupCtx, listener) })

	n.logger.WithFields(logrus.Fields{
		"function": "Start",
		"endpoint": n.endpoint,
	}).Info("Node listening")

	if n.role == identity.RoleAgent && len(n.config.Seeds) > 0 {
		if err := n.announce(ctx); err != nil {
			_ = n.Stop(context.Background())
			return err
		}
	}
	return nil
}

// Stop implements interfaces.IPeerNode. It closes the listener and open
// connections, then waits for connection goroutines until ctx is done.
func (n *Node) Stop(ctx context.Context) error {
	n.mu.Lock()
	if n.state != stateRunning {
		n.mu.Unlock()
		return nil
	}
	n.state = stateStopped
	n.cancel()
	closeErr := n.listener.Close()
	for conn := range n.conns {
		_ = conn.Close()
	}
	group := n.group
	n.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			n.logger.WithError(err).Warn("Node serve loop ended with error")
		}
	case <-ctx.Done():
		return fmt.Errorf("timed out stopping %s: %w", n.Name(), ctx.Err())
	}

	n.logger.WithField("function", "Stop").Info("Node stopped")
	if closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		return closeErr
	}
	return nil
}

// RegisterWithContract implements interfaces.IPeerNode.
func (n *Node) RegisterWithContract(ctx context.Context) error {
	if n.registry == nil {
		return ErrNoRegistry
	}
	reg := interfaces.RegistrationFor(n.config.Identity)
	if err := n.registry.Register(ctx, reg); err != nil {
		return err
	}
	if !n.opts.ConfirmRegistration {
		return nil
	}

	found, err := n.registry.Lookup(ctx, reg.Address)
	if err != nil {
		return fmt.Errorf("failed to confirm registration of %s: %w", n.Name(), err)
	}
	if found.Name != reg.Name {
		return fmt.Errorf("%w: %s registered as %q", ErrRegistrationMismatch, reg.Address, found.Name)
	}
	n.logger.WithFields(logrus.Fields{
		"function": "RegisterWithContract",
		"address":  reg.Address,
	}).Debug("Registration confirmed")
	return nil
}

// SendMessage implements interfaces.IPeerNode.
func (n *Node) SendMessage(ctx context.Context, address, content string) error {
	if err := limits.ValidateContent([]byte(content)); err != nil {
		return err
	}
	if !n.isRunning() {
		return fmt.Errorf("%s: %w", n.Name(), ErrNodeNotRunning)
	}

	req := &envelope{
		Type:    typeMessage,
		ID:      uuid.NewString(),
		From:    n.Name(),
		To:      address,
		Content: content,
	}

	n.mu.RLock()
	sleeper := n.sleeper
	n.mu.RUnlock()

	err := retry(ctx, n.opts.RetryAttempts, n.opts.RetryBackoff, sleeper, func(attempt int) error {
		peer, err := n.resolve(ctx, address)
		if err != nil {
			return err
		}
		resp, err := n.exchange(ctx, peer, req)
		if err != nil {
			n.peers.Remove(strings.ToLower(address))
			n.logger.WithFields(logrus.Fields{
				"function": "SendMessage",
				"to":       address,
				"attempt":  attempt + 1,
				"error":    err.Error(),
			}).Warn("Message delivery attempt failed")
			return err
		}
		if resp.Type != typeAck {
			return fmt.Errorf("unexpected %s reply from %s", resp.Type, peer.Name)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to deliver message to %s: %w", address, err)
	}
	return nil
}

// GetAddress implements interfaces.IPeerNode.
func (n *Node) GetAddress() string {
	return n.config.Identity.AddressHex()
}

// Name implements interfaces.IPeerNode.
func (n *Node) Name() string {
	return n.config.Identity.Name()
}

// Info implements interfaces.IPeerNode.
func (n *Node) Info() interfaces.PeerInfo {
	n.mu.RLock()
	endpoint := n.endpoint
	n.mu.RUnlock()
	return interfaces.PeerInfo{
		Name:      n.Name(),
		Address:   n.GetAddress(),
		Endpoint:  endpoint,
		PublicKey: n.config.Identity.TransportKeys().Public,
	}
}

// OnMessage implements interfaces.IPeerNode.
func (n *Node) OnMessage(handler interfaces.MessageHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Port returns the bound port, or 0 before Start.
func (n *Node) Port() uint16 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.port
}

// KnownPeers returns the number of entries in the peer table.
func (n *Node) KnownPeers() int {
	return n.peers.Len()
}

func (n *Node) isRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.state == stateRunning
}

func advertiseHost(host string) string {
	switch host {
	case "", "0.0.0.0", "::":
		return "127.0.0.1"
	}
	return host
}

var _ interfaces.IPeerNode = (*Node)(nil)

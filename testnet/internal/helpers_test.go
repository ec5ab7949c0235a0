package internal

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/agentnet/interfaces"
	sim "github.com/opd-ai/agentnet/testing"
)

const testOperator = "0x1111111111111111111111111111111111111111"

var oneEther = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

func inbound(from, to, content string) interfaces.InboundMessage {
	return interfaces.InboundMessage{FromAgentID: from, ToAgentID: to, Content: content}
}

type simEnv struct {
	network  *sim.SimulatedNetwork
	ledger   *sim.SimulatedLedger
	registry *sim.SimulatedRegistry
}

func newSimEnv() *simEnv {
	reg := sim.NewSimulatedRegistry()
	return &simEnv{
		network:  sim.NewSimulatedNetwork(reg),
		ledger:   sim.NewSimulatedLedger(testOperator, oneEther),
		registry: reg,
	}
}

// testConfig is a simulated three-agent run with quiet logging.
func testConfig() *TestConfig {
	c := DefaultTestConfig()
	c.Simulate = true
	c.SettleTimeout = 2 * time.Second
	c.OverallTimeout = 30 * time.Second
	c.LogLevel = "ERROR"
	c.VerboseOutput = false
	return c
}

func newTestHarness(t *testing.T, env *simEnv, config *TestConfig) *Harness {
	t.Helper()
	h, err := NewHarness(config, env.ledger, env.network.NodeConstructor())
	require.NoError(t, err)
	return h
}

func newTestManager(env *simEnv, metrics *Metrics) *NodeLifecycleManager {
	return NewNodeLifecycleManager(LifecycleConfig{
		BootstrapPort: BootstrapDefaultPort,
		AgentPort:     AgentDefaultPort,
		NodeVersion:   "1.0.0",
		ListenHost:    "127.0.0.1",
	}, env.network.NodeConstructor(), NewFundingGate(env.ledger, nil, metrics), NewMessageLog(), nil, metrics)
}

// counterValue sums every sample of the named counter family.
func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	args := m.Called(ctx, address)
	balance, _ := args.Get(0).(*big.Int)
	return balance, args.Error(1)
}

func (m *mockLedger) SendTransaction(ctx context.Context, req interfaces.TransferRequest) (interfaces.TxHandle, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(interfaces.TxHandle), args.Error(1)
}

func (m *mockLedger) WaitForTransactionReceipt(ctx context.Context, tx interfaces.TxHandle) (*interfaces.Receipt, error) {
	args := m.Called(ctx, tx)
	receipt, _ := args.Get(0).(*interfaces.Receipt)
	return receipt, args.Error(1)
}

// callRecorder wraps a constructor so tests can observe the order of node calls.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *callRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *callRecorder) wrap(next interfaces.NodeConstructor) interfaces.NodeConstructor {
	return func(cfg interfaces.NodeConfig) (interfaces.IPeerNode, error) {
		node, err := next(cfg)
		if err != nil {
			return nil, err
		}
		r.record("create:" + cfg.Identity.Name())
		return &recordingNode{IPeerNode: node, recorder: r, seeds: len(cfg.Seeds)}, nil
	}
}

type recordingNode struct {
	interfaces.IPeerNode
	recorder *callRecorder
	seeds    int
}

func (n *recordingNode) Start(ctx context.Context, port uint16) error {
	n.recorder.record("start:" + n.Name())
	return n.IPeerNode.Start(ctx, port)
}

func (n *recordingNode) RegisterWithContract(ctx context.Context) error {
	n.recorder.record("register:" + n.Name())
	return n.IPeerNode.RegisterWithContract(ctx)
}

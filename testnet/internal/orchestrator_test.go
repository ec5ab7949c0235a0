package internal

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHarnessStateString(t *testing.T) {
	tests := []struct {
		state    HarnessState
		expected string
	}{
		{StateCreated, "CREATED"},
		{StateInitialized, "INITIALIZED"},
		{StateNodesRunning, "NODES_RUNNING"},
		{StateAgentsRegistered, "AGENTS_REGISTERED"},
		{StateTestsComplete, "TESTS_COMPLETE"},
		{StateCleanedUp, "CLEANED_UP"},
		{HarnessState(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.String())
		})
	}
}

func TestNewHarness(t *testing.T) {
	env := newSimEnv()

	_, err := NewHarness(nil, nil, env.network.NodeConstructor())
	assert.Error(t, err)

	_, err = NewHarness(nil, env.ledger, nil)
	assert.Error(t, err)

	h, err := NewHarness(nil, env.ledger, env.network.NodeConstructor())
	require.NoError(t, err)
	assert.Equal(t, StateCreated, h.State())
	assert.NotEmpty(t, h.RunID())
	assert.NotNil(t, h.Metrics())

	other, err := NewHarness(nil, env.ledger, env.network.NodeConstructor())
	require.NoError(t, err)
	assert.NotEqual(t, h.RunID(), other.RunID())
}

func TestHarnessFullSequence(t *testing.T) {
	env := newSimEnv()
	h := newTestHarness(t, env, testConfig())
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	assert.Equal(t, StateInitialized, h.State())

	require.NoError(t, h.StartBootstrapNodes(ctx))
	assert.Equal(t, StateNodesRunning, h.State())
	assert.Equal(t, []string{"bootstrap-0", "bootstrap-1"}, env.network.RunningNodes())

	require.NoError(t, h.CreateAgents(ctx))
	assert.Equal(t, StateAgentsRegistered, h.State())
	assert.Len(t, env.network.RunningNodes(), 5)

	result, err := h.RunMessageTest(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 6, result.MessagesSent)
	assert.Equal(t, 6, result.MessagesReceived)
	assert.Equal(t, StateTestsComplete, h.State())

	summary, err := h.GenerateSummary()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalTests)
	assert.Equal(t, 1, summary.PassedTests)
	assert.True(t, summary.AllPassed())

	status := h.Status()
	assert.Equal(t, "TESTS_COMPLETE", status.State)
	assert.Equal(t, 3, status.Agents)
	assert.Equal(t, 2, status.BootstrapNodes)
	assert.Equal(t, 6, status.Messages)

	require.NoError(t, h.Cleanup(ctx))
	assert.Equal(t, StateCleanedUp, h.State())
	assert.Empty(t, env.network.RunningNodes())
	assert.Zero(t, h.Messages().Len())
	assert.Zero(t, h.Summary().TotalTests)
}

func TestHarnessRejectsOutOfOrderCalls(t *testing.T) {
	env := newSimEnv()
	h := newTestHarness(t, env, testConfig())
	ctx := context.Background()

	assert.ErrorIs(t, h.StartBootstrapNodes(ctx), ErrInvalidState)
	assert.ErrorIs(t, h.CreateAgents(ctx), ErrInvalidState)
	_, err := h.RunMessageTest(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = h.GenerateSummary()
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, h.Init(ctx))
	assert.ErrorIs(t, h.Init(ctx), ErrInvalidState)
	assert.ErrorIs(t, h.CreateAgents(ctx), ErrInvalidState)
	assert.False(t, h.Failed(), "misuse does not fail the harness")

	require.NoError(t, h.Cleanup(ctx))
	assert.ErrorIs(t, h.Cleanup(ctx), ErrInvalidState)
	assert.ErrorIs(t, h.Init(ctx), ErrInvalidState)
}

func TestHarnessFailedStepBlocksLaterSteps(t *testing.T) {
	env := newSimEnv()
	errBind := errors.New("bind failed")
	env.network.FailStart("bootstrap-1", errBind)
	h := newTestHarness(t, env, testConfig())
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	err := h.StartBootstrapNodes(ctx)
	assert.ErrorIs(t, err, errBind)
	assert.True(t, h.Failed())
	assert.Equal(t, StateInitialized, h.State())

	assert.ErrorIs(t, h.CreateAgents(ctx), ErrHarnessFailed)
	assert.ErrorIs(t, h.StartBootstrapNodes(ctx), ErrHarnessFailed, "no retry in place")
	_, err = h.GenerateSummary()
	assert.ErrorIs(t, err, ErrHarnessFailed)
	assert.Equal(t, []string{"bootstrap-0"}, env.network.RunningNodes())

	require.NoError(t, h.Cleanup(ctx))
	assert.Empty(t, env.network.RunningNodes())
	assert.Equal(t, StateCleanedUp, h.State())
}

func TestHarnessCleanupBeforeAgents(t *testing.T) {
	tests := []struct {
		name  string
		steps func(h *Harness) error
	}{
		{"never initialized", func(h *Harness) error { return nil }},
		{"initialized only", func(h *Harness) error { return h.Init(context.Background()) }},
		{"bootstrap only", func(h *Harness) error {
			if err := h.Init(context.Background()); err != nil {
				return err
			}
			return h.StartBootstrapNodes(context.Background())
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSimEnv()
			h := newTestHarness(t, env, testConfig())
			require.NoError(t, tt.steps(h))

			assert.NoError(t, h.Cleanup(context.Background()))
			assert.Equal(t, StateCleanedUp, h.State())
			assert.Empty(t, env.network.RunningNodes())
			if h.Nodes() != nil {
				assert.Empty(t, h.Nodes().Agents())
				assert.Empty(t, h.Nodes().BootstrapNodes())
			}
		})
	}
}

func TestHarnessCleanupAfterPartialAgents(t *testing.T) {
	env := newSimEnv()
	env.network.FailStart("test-agent-2", errors.New("bind failed"))
	h := newTestHarness(t, env, testConfig())
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.StartBootstrapNodes(ctx))
	require.Error(t, h.CreateAgents(ctx))
	assert.Len(t, env.network.RunningNodes(), 4)

	require.NoError(t, h.Cleanup(ctx))
	assert.Empty(t, env.network.RunningNodes())
}

func TestHarnessCleanupSwallowsStopFailures(t *testing.T) {
	env := newSimEnv()
	env.network.FailStop("bootstrap-0", errors.New("socket stuck"))
	h := newTestHarness(t, env, testConfig())
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.StartBootstrapNodes(ctx))
	require.NoError(t, h.CreateAgents(ctx))

	assert.NoError(t, h.Cleanup(ctx))
	assert.Equal(t, []string{"bootstrap-0"}, env.network.RunningNodes())
	assert.Equal(t, float64(1), counterValue(t, h.Metrics(), "agentnet_node_stop_failures_total"))
}

func TestHarnessRun(t *testing.T) {
	env := newSimEnv()
	h := newTestHarness(t, env, testConfig())

	summary, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.AllPassed())
	assert.Equal(t, 1, summary.TotalTests)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 6, summary.Results[0].MessagesReceived)

	assert.Equal(t, StateCleanedUp, h.State())
	assert.Empty(t, env.network.RunningNodes())
	assert.Equal(t, 3, env.ledger.TransactionCount())
	assert.Equal(t, float64(1), counterValue(t, h.Metrics(), "agentnet_test_results_total"))
}

func TestHarnessRunWithPartitionedAgent(t *testing.T) {
	env := newSimEnv()
	env.network.Partition("test-agent-1")
	config := testConfig()
	config.SettleTimeout = 200 * time.Millisecond
	h := newTestHarness(t, env, config)

	summary, err := h.Run(context.Background())
	require.NoError(t, err, "a failing test is data, not a harness error")
	assert.Equal(t, 1, summary.FailedTests)
	assert.False(t, summary.AllPassed())

	r := summary.Results[0]
	assert.Equal(t, 6, r.MessagesSent)
	assert.LessOrEqual(t, r.MessagesReceived, 4)
	assert.Contains(t, r.Error.Error(), "expected 6 messages, but received")
}

func TestHarnessRunFundingFailure(t *testing.T) {
	env := newSimEnv()
	env.ledger.FailBalanceReads(errors.New("rpc down"))
	h := newTestHarness(t, env, testConfig())

	summary, err := h.Run(context.Background())
	var ff *FundingFailure
	require.True(t, errors.As(err, &ff))
	assert.Equal(t, 0, ff.Index)
	assert.Zero(t, summary.TotalTests)
	assert.Empty(t, env.network.RunningNodes(), "bootstrap nodes are stopped after the failure")
	assert.Equal(t, StateCleanedUp, h.State())
}

func TestHarnessRunInvalidConfig(t *testing.T) {
	env := newSimEnv()
	config := testConfig()
	config.AgentPort = config.BootstrapPort
	h := newTestHarness(t, env, config)

	_, err := h.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overlap")
	assert.Equal(t, StateCleanedUp, h.State())
	assert.Zero(t, env.network.GetStats().Nodes)
}

func TestHarnessRunHonoursOverallTimeout(t *testing.T) {
	env := newSimEnv()
	config := testConfig()
	config.OverallTimeout = time.Nanosecond
	h := newTestHarness(t, env, config)

	_, err := h.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, env.network.RunningNodes())
}

func TestHarnessUsesTimeProvider(t *testing.T) {
	env := newSimEnv()
	h := newTestHarness(t, env, testConfig())
	start := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	h.SetTimeProvider(NewMockTimeProvider(start))
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	require.NoError(t, h.StartBootstrapNodes(ctx))
	require.NoError(t, h.CreateAgents(ctx))
	result, err := h.RunMessageTest(ctx)
	require.NoError(t, err)

	assert.Equal(t, start, result.StartTime)
	assert.Equal(t, start, result.EndTime)
	for _, msg := range h.Messages().Messages() {
		assert.Equal(t, start, msg.Timestamp)
	}

	count, sum := stepDurations(t, h.Metrics())
	assert.Equal(t, uint64(4), count, "init, bootstrap, agents and message test are timed")
	assert.Zero(t, sum, "step timing follows the injected clock")
	require.NoError(t, h.Cleanup(ctx))
}

// stepDurations returns the sample count and sum of the step histogram.
func stepDurations(t *testing.T, m *Metrics) (uint64, float64) {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	var count uint64
	var sum float64
	for _, f := range families {
		if f.GetName() != "agentnet_step_duration_seconds" {
			continue
		}
		for _, metric := range f.GetMetric() {
			count += metric.GetHistogram().GetSampleCount()
			sum += metric.GetHistogram().GetSampleSum()
		}
	}
	return count, sum
}

func TestHarnessRunWithPrefundedAgents(t *testing.T) {
	env := newSimEnv()
	ledger := &mockLedger{}
	ledger.On("GetBalance", mock.Anything, mock.Anything).Return(big.NewInt(1e15), nil)

	h, err := NewHarness(testConfig(), ledger, env.network.NodeConstructor())
	require.NoError(t, err)

	summary, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.AllPassed())
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 6, summary.Results[0].MessagesSent)
	assert.Equal(t, 6, summary.Results[0].MessagesReceived)

	ledger.AssertNumberOfCalls(t, "GetBalance", 3)
	ledger.AssertNotCalled(t, "SendTransaction", mock.Anything, mock.Anything)
	assert.Zero(t, counterValue(t, h.Metrics(), "agentnet_funding_transfers_total"))
}

func TestHarnessCleanupRestoresLogOutput(t *testing.T) {
	std := logrus.StandardLogger()
	previous := std.Out
	t.Cleanup(func() { std.SetOutput(previous) })

	env := newSimEnv()
	config := testConfig()
	config.LogFile = filepath.Join(t.TempDir(), "harness.log")
	h := newTestHarness(t, env, config)
	ctx := context.Background()

	require.NoError(t, h.Init(ctx))
	_, redirected := std.Out.(*os.File)
	assert.True(t, redirected)
	assert.NotEqual(t, previous, std.Out)

	require.NoError(t, h.Cleanup(ctx))
	assert.Equal(t, previous, std.Out, "the closed log file must not stay the logger output")
}

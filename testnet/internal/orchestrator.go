package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
)

// cleanupTimeout bounds Cleanup when Run's own deadline has already passed.
const cleanupTimeout = 30 * time.Second

// HarnessState is a position in the harness sequence.
type HarnessState int

const (
	StateCreated HarnessState = iota
	StateInitialized
	StateNodesRunning
	StateAgentsRegistered
	StateTestsComplete
	StateCleanedUp
)

// String returns a string representation of the harness state.
func (s HarnessState) String() string {
	switch s {
	case StateCreated:
		return "CREATED"
	case StateInitialized:
		return "INITIALIZED"
	case StateNodesRunning:
		return "NODES_RUNNING"
	case StateAgentsRegistered:
		return "AGENTS_REGISTERED"
	case StateTestsComplete:
		return "TESTS_COMPLETE"
	case StateCleanedUp:
		return "CLEANED_UP"
	default:
		return "UNKNOWN"
	}
}

// Harness drives one test run: Init, StartBootstrapNodes, CreateAgents,
// RunMessageTest, GenerateSummary and Cleanup, in that order. Steps must not
// be called concurrently; State, RunID and Status may be read at any time.
type Harness struct {
	config  *TestConfig
	ledger  interfaces.ILedger
	newNode interfaces.NodeConstructor
	runID   string
	clock   TimeProvider
	metrics *Metrics
	logger  *logrus.Entry

	funding   *FundingGate
	nodes     *NodeLifecycleManager
	broadcast *MessageBroadcastTest
	messages  *MessageLog
	results   *ResultAggregator
	status    *StatusServer
	logCloser io.Closer
	logOutput io.Writer

	mu        sync.Mutex
	state     HarnessState
	failed    bool
	lastError error
}

// NewHarness creates a harness using ledger for funding and newNode to build
// every peer node. A nil config selects DefaultTestConfig.
func NewHarness(config *TestConfig, ledger interfaces.ILedger, newNode interfaces.NodeConstructor) (*Harness, error) {
	if config == nil {
		config = DefaultTestConfig()
	}
	if ledger == nil {
		return nil, errors.New("harness requires a ledger")
	}
	if newNode == nil {
		return nil, errors.New("harness requires a node constructor")
	}

	runID := uuid.NewString()
	return &Harness{
		config:   config,
		ledger:   ledger,
		newNode:  newNode,
		runID:    runID,
		metrics:  NewMetrics(),
		logger:   logrus.WithFields(logrus.Fields{"component": "harness", "run_id": runID}),
		messages: NewMessageLog(),
		results:  NewResultAggregator(),
		clock:    getTimeProvider(nil),
		state:    StateCreated,
	}, nil
}

// SetTimeProvider replaces the clock used for results and message stamps.
// It must be called before Init.
func (h *Harness) SetTimeProvider(tp TimeProvider) {
	h.clock = getTimeProvider(tp)
}

// RunID returns the unique identifier of this run.
func (h *Harness) RunID() string { return h.runID }

// Metrics returns the harness collectors.
func (h *Harness) Metrics() *Metrics { return h.metrics }

// Messages returns the log of messages received by agents.
func (h *Harness) Messages() *MessageLog { return h.messages }

// Nodes returns the node manager. It is nil before Init.
func (h *Harness) Nodes() *NodeLifecycleManager { return h.nodes }

// State returns the current position in the sequence.
func (h *Harness) State() HarnessState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Failed reports whether a step has failed.
func (h *Harness) Failed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.failed
}

// begin checks that the harness is in want and has not failed.
func (h *Harness) begin(op string, want HarnessState) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateCleanedUp {
		return fmt.Errorf("%w: %s after cleanup", ErrInvalidState, op)
	}
	if h.failed {
		return fmt.Errorf("%s: %w", op, ErrHarnessFailed)
	}
	if h.state != want {
		return fmt.Errorf("%w: %s requires %s, harness is %s", ErrInvalidState, op, want, h.state)
	}
	return nil
}

// finish moves to next on success and marks the harness failed otherwise.
func (h *Harness) finish(next HarnessState, err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.failed = true
		h.lastError = err
		return err
	}
	h.state = next
	return nil
}

// executeWithStepTracking runs a step, logging and timing it.
func (h *Harness) executeWithStepTracking(stepName string, operation func() error) error {
	start := h.clock.Now()
	h.logger.WithField("step", stepName).Info("Executing step")

	err := operation()
	elapsed := h.clock.Since(start)
	h.metrics.observeStep(stepName, elapsed)

	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"step":  stepName,
			"error": err.Error(),
		}).Error("Step failed")
	} else {
		h.logger.WithFields(logrus.Fields{
			"step":     stepName,
			"duration": elapsed.Round(time.Millisecond).String(),
		}).Info("Step completed")
	}
	return err
}

// Init validates the configuration, configures logging, builds the funding
// gate and node manager, and starts the status server when configured.
func (h *Harness) Init(ctx context.Context) error {
	if err := h.begin("init", StateCreated); err != nil {
		return err
	}
	err := h.executeWithStepTracking("init", func() error {
		return h.init(ctx)
	})
	return h.finish(StateInitialized, err)
}

func (h *Harness) init(ctx context.Context) error {
	if err := h.config.Validate(); err != nil {
		return err
	}
	std := logrus.StandardLogger()
	output := std.Out
	closer, err := ConfigureLogging(std, h.config.LogLevel, h.config.LogFormat, h.config.LogFile)
	if err != nil {
		return err
	}
	h.logCloser = closer
	h.logOutput = output

	amount, err := h.config.FundingWei()
	if err != nil {
		return err
	}
	maxSize, err := h.config.MaxMessageBytes()
	if err != nil {
		return err
	}

	h.funding = NewFundingGate(h.ledger, amount, h.metrics)
	h.nodes = NewNodeLifecycleManager(LifecycleConfig{
		BootstrapPort:   h.config.BootstrapPort,
		AgentPort:       h.config.AgentPort,
		NodeVersion:     h.config.NodeVersion,
		ListenHost:      h.config.ListenHost,
		RegistryAddress: h.config.RegistryAddress,
		RPCEndpoint:     h.config.RPCURL,
	}, h.newNode, h.funding, h.messages, h.clock, h.metrics)
	h.broadcast = NewMessageBroadcastTest(h.messages, BroadcastConfig{
		SettleTimeout:    h.config.SettleTimeout,
		ParallelSends:    h.config.ParallelSends,
		MaxParallelSends: h.config.MaxParallelSends,
		SendRate:         h.config.SendRate,
		MaxMessageSize:   maxSize,
	}, h.clock, h.metrics)

	if h.config.MetricsAddress != "" {
		srv, err := NewStatusServer(h.config.MetricsAddress, h)
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		h.status = srv
		go func() {
			if err := srv.Serve(); err != nil {
				h.logger.WithError(err).Debug("Status server stopped")
			}
		}()
	}

	if h.config.VerboseOutput {
		h.logConfiguration(amount, maxSize)
	}
	return ctx.Err()
}

// StartBootstrapNodes starts the configured number of bootstrap nodes.
func (h *Harness) StartBootstrapNodes(ctx context.Context) error {
	if err := h.begin("start bootstrap nodes", StateInitialized); err != nil {
		return err
	}
	err := h.executeWithStepTracking("start bootstrap nodes", func() error {
		return h.nodes.StartBootstrapNodes(ctx, h.config.BootstrapCount)
	})
	return h.finish(StateNodesRunning, err)
}

// CreateAgents funds, registers and starts the configured number of agents.
func (h *Harness) CreateAgents(ctx context.Context) error {
	if err := h.begin("create agents", StateNodesRunning); err != nil {
		return err
	}
	err := h.executeWithStepTracking("create agents", func() error {
		return h.nodes.CreateAgents(ctx, h.config.AgentCount)
	})
	return h.finish(StateAgentsRegistered, err)
}

// RunMessageTest runs the all-pairs message test and records its result. A
// failing test is reported in the result, not as an error.
func (h *Harness) RunMessageTest(ctx context.Context) (*TestResult, error) {
	if err := h.begin("run message test", StateAgentsRegistered); err != nil {
		return nil, err
	}
	var result *TestResult
	_ = h.executeWithStepTracking("run message test", func() error {
		result = h.broadcast.Run(ctx, h.nodes.Agents())
		return result.Error
	})
	h.results.Record(result.Name, *result)
	h.metrics.recordResult(result.Success)
	return result, h.finish(StateTestsComplete, nil)
}

// GenerateSummary aggregates the recorded results.
func (h *Harness) GenerateSummary() (TestSummary, error) {
	if err := h.begin("generate summary", StateTestsComplete); err != nil {
		return TestSummary{}, err
	}
	return h.results.Summarize(), nil
}

// Cleanup stops every started node and clears collected messages and results.
// It is valid in any state except after a previous Cleanup. Stop failures
// are logged, not returned.
func (h *Harness) Cleanup(ctx context.Context) error {
	h.mu.Lock()
	if h.state == StateCleanedUp {
		h.mu.Unlock()
		return fmt.Errorf("%w: cleanup already done", ErrInvalidState)
	}
	h.mu.Unlock()

	_ = h.executeWithStepTracking("cleanup", func() error {
		if h.nodes == nil {
			return nil
		}
		err := h.nodes.StopAll(ctx)
		var cf *CleanupFailure
		if errors.As(err, &cf) {
			h.logger.WithError(cf).Warn("Cleanup warning")
		}
		return nil
	})

	h.messages.Clear()
	h.results.Reset()
	if h.status != nil {
		if err := h.status.Shutdown(ctx); err != nil {
			h.logger.WithError(err).Warn("Failed to stop status server")
		}
		h.status = nil
	}
	if h.logCloser != nil {
		if h.logOutput != nil {
			logrus.StandardLogger().SetOutput(h.logOutput)
			h.logOutput = nil
		}
		_ = h.logCloser.Close()
		h.logCloser = nil
	}

	h.mu.Lock()
	h.state = StateCleanedUp
	h.mu.Unlock()
	return nil
}

// Run executes the complete sequence under the overall timeout. The returned
// summary is computed before cleanup; the error is the first fatal step error.
func (h *Harness) Run(ctx context.Context) (TestSummary, error) {
	start := h.clock.Now()
	h.logReportHeader(start)

	runCtx, cancel := context.WithTimeout(ctx, h.config.OverallTimeout)
	defer cancel()

	err := h.runSteps(runCtx)
	summary := h.results.Summarize()
	h.generateFinalReport(summary, h.clock.Since(start), err)

	cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancelCleanup()
	if cerr := h.Cleanup(cleanupCtx); cerr != nil && err == nil {
		err = cerr
	}
	return summary, err
}

func (h *Harness) runSteps(ctx context.Context) error {
	if err := h.Init(ctx); err != nil {
		return err
	}
	if err := h.StartBootstrapNodes(ctx); err != nil {
		return err
	}
	if err := h.CreateAgents(ctx); err != nil {
		return err
	}
	if _, err := h.RunMessageTest(ctx); err != nil {
		return err
	}
	_, err := h.GenerateSummary()
	return err
}

// logConfiguration prints the effective configuration.
func (h *Harness) logConfiguration(amount *big.Int, maxSize int) {
	c := h.config
	mode := "chain"
	if c.Simulate {
		mode = "simulated"
	}
	h.logger.WithFields(logrus.Fields{
		"mode":             mode,
		"registry":         c.RegistryAddress,
		"rpc_url":          c.RPCURL,
		"bootstrap_nodes":  c.BootstrapCount,
		"bootstrap_port":   c.BootstrapPort,
		"agents":           c.AgentCount,
		"agent_port":       c.AgentPort,
		"overall_timeout":  c.OverallTimeout.String(),
		"settle_timeout":   c.SettleTimeout.String(),
		"parallel_sends":   c.ParallelSends,
		"send_rate":        c.SendRate,
		"max_message_size": humanize.IBytes(uint64(maxSize)),
		"funding_wei":      humanize.BigComma(amount),
		"metrics_addr":     c.MetricsAddress,
	}).Info("Test configuration")
}

func (h *Harness) logReportHeader(start time.Time) {
	h.logger.Info("🧪 Agent Network Integration Test Suite")
	h.logger.Info(strings.Repeat("=", 40))
	h.logger.Infof("⏰ Test execution started at %s", start.Format(time.RFC3339))
}

// generateFinalReport logs the overall status, counts, per-test details and
// the fatal error if any.
func (h *Harness) generateFinalReport(summary TestSummary, elapsed time.Duration, err error) {
	status := "PASSED"
	if err != nil || !summary.AllPassed() {
		status = "FAILED"
	}

	h.logger.Info("📊 Test Execution Summary")
	h.logger.Infof("🎯 Overall Status: %s", status)
	h.logger.Infof("⏱️  Total Execution Time: %v", elapsed.Round(time.Millisecond))
	h.logger.Infof("📈 Tests: %s total, %s passed, %s failed",
		humanize.Comma(int64(summary.TotalTests)),
		humanize.Comma(int64(summary.PassedTests)),
		humanize.Comma(int64(summary.FailedTests)))

	for _, r := range summary.Results {
		h.logger.Infof("   %s %s (%v) sent=%d received=%d",
			statusIcon(r.Success), r.Name, r.Duration().Round(time.Millisecond), r.MessagesSent, r.MessagesReceived)
		if r.Error != nil {
			h.logger.Infof("      Error: %v", r.Error)
		}
	}

	if err != nil {
		h.logger.Errorf("❌ Error Details: %v", err)
	}
	if status == "PASSED" {
		h.logger.Info("🎉 All tests completed successfully!")
	} else {
		h.logger.Warn("⚠️  Test execution completed with failures")
	}
	h.logger.Infof("🏁 Test run completed at %s", h.clock.Now().Format(time.RFC3339))
}

func statusIcon(success bool) string {
	if success {
		return "✅"
	}
	return "❌"
}

// StatusReport is the live view served on /status.
type StatusReport struct {
	RunID          string `json:"runId"`
	State          string `json:"state"`
	Failed         bool   `json:"failed"`
	Error          string `json:"error,omitempty"`
	BootstrapNodes int    `json:"bootstrapNodes"`
	Agents         int    `json:"agents"`
	Messages       int    `json:"messages"`
}

// Status returns a snapshot of the run.
func (h *Harness) Status() StatusReport {
	h.mu.Lock()
	report := StatusReport{
		RunID:  h.runID,
		State:  h.state.String(),
		Failed: h.failed,
	}
	if h.lastError != nil {
		report.Error = h.lastError.Error()
	}
	h.mu.Unlock()

	if h.nodes != nil {
		report.BootstrapNodes = len(h.nodes.BootstrapNodes())
		report.Agents = h.nodes.AgentCount()
	}
	report.Messages = h.messages.Len()
	return report
}

// Summary returns the results recorded so far.
func (h *Harness) Summary() TestSummary {
	return h.results.Summarize()
}

package internal

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/opd-ai/agentnet/limits"
)

// BroadcastConfig tunes the all-pairs message test.
type BroadcastConfig struct {
	// SettleTimeout bounds the wait for every message to arrive.
	SettleTimeout time.Duration

	// ParallelSends sends up to MaxParallelSends messages at once.
	ParallelSends    bool
	MaxParallelSends int

	// SendRate caps sends per second; zero means unlimited.
	SendRate float64

	// MaxMessageSize bounds each payload; zero means limits.MaxMessageContent.
	MaxMessageSize int
}

// DefaultBroadcastConfig returns sequential unthrottled sends with a 5s settle.
func DefaultBroadcastConfig() BroadcastConfig {
	return BroadcastConfig{
		SettleTimeout:    5 * time.Second,
		MaxParallelSends: 4,
		MaxMessageSize:   limits.MaxMessageContent,
	}
}

// MessageBroadcastTest has every agent send one message to every other agent
// and checks that all n*(n-1) of them arrive.
type MessageBroadcastTest struct {
	config   BroadcastConfig
	messages *MessageLog
	clock    TimeProvider
	metrics  *Metrics
	logger   *logrus.Entry
}

// NewMessageBroadcastTest creates a test that counts arrivals in messages.
func NewMessageBroadcastTest(messages *MessageLog, config BroadcastConfig, clock TimeProvider, metrics *Metrics) *MessageBroadcastTest {
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = limits.MaxMessageContent
	}
	if config.MaxParallelSends <= 0 {
		config.MaxParallelSends = 1
	}
	return &MessageBroadcastTest{
		config:   config,
		messages: messages,
		clock:    getTimeProvider(clock),
		metrics:  metrics,
		logger:   logrus.WithField("component", "broadcast"),
	}
}

// ExpectedMessages returns n*(n-1), the number of ordered pairs of n agents.
func ExpectedMessages(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1)
}

// MessagePayload returns the content sent from one agent to another.
func MessagePayload(from, to string) string {
	return fmt.Sprintf("Test message from %s to %s", from, to)
}

type sendPair struct {
	from *PeerNodeHandle
	to   *PeerNodeHandle
}

// pairs lists ordered pairs sender-major in agent order.
func pairs(agents []*PeerNodeHandle) []sendPair {
	out := make([]sendPair, 0, ExpectedMessages(len(agents)))
	for _, from := range agents {
		for _, to := range agents {
			if from.Name == to.Name {
				continue
			}
			out = append(out, sendPair{from: from, to: to})
		}
	}
	return out
}

// Run executes the test. Failures are reported in the result, never returned.
func (t *MessageBroadcastTest) Run(ctx context.Context, agents []*PeerNodeHandle) *TestResult {
	result := &TestResult{
		Name:      MessageTestName,
		Success:   true,
		StartTime: t.clock.Now(),
	}
	expected := ExpectedMessages(len(agents))
	log := t.logger.WithFields(logrus.Fields{
		"function": "Run",
		"agents":   len(agents),
		"expected": expected,
	})
	log.Info("Starting message broadcast test")

	var sent int64
	var err error
	if t.config.ParallelSends {
		err = t.sendParallel(ctx, pairs(agents), &sent)
	} else {
		err = t.sendSequential(ctx, pairs(agents), &sent)
	}
	result.MessagesSent = int(atomic.LoadInt64(&sent))

	if err != nil {
		result.MessagesReceived = t.messages.Len()
	} else {
		result.MessagesReceived = t.messages.WaitForCount(ctx, expected, t.config.SettleTimeout)
		if result.MessagesReceived != expected {
			err = &TestAssertionFailure{Expected: expected, Received: result.MessagesReceived}
		}
	}

	result.finish(err, t.clock.Now())
	if err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"sent":     result.MessagesSent,
			"received": result.MessagesReceived,
		}).Error("Message broadcast test failed")
	} else {
		log.WithField("received", result.MessagesReceived).Info("Message broadcast test passed")
	}
	return result
}

func (t *MessageBroadcastTest) limiter() *rate.Limiter {
	if t.config.SendRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(t.config.SendRate), 1)
}

func (t *MessageBroadcastTest) sendSequential(ctx context.Context, ps []sendPair, sent *int64) error {
	limiter := t.limiter()
	for _, p := range ps {
		if err := t.send(ctx, limiter, p); err != nil {
			return err
		}
		atomic.AddInt64(sent, 1)
	}
	return nil
}

func (t *MessageBroadcastTest) sendParallel(ctx context.Context, ps []sendPair, sent *int64) error {
	limiter := t.limiter()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.config.MaxParallelSends)
	for _, p := range ps {
		p := p
		g.Go(func() error {
			if err := t.send(gctx, limiter, p); err != nil {
				return err
			}
			atomic.AddInt64(sent, 1)
			return nil
		})
	}
	return g.Wait()
}

func (t *MessageBroadcastTest) send(ctx context.Context, limiter *rate.Limiter, p sendPair) error {
	content := MessagePayload(p.from.Name, p.to.Name)
	if err := limits.ValidateMessageSize([]byte(content), t.config.MaxMessageSize); err != nil {
		return fmt.Errorf("send from %s to %s: %w", p.from.Name, p.to.Name, err)
	}
	if limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("send from %s to %s: %w", p.from.Name, p.to.Name, err)
		}
	}
	if err := p.from.Node.SendMessage(ctx, p.to.Node.GetAddress(), content); err != nil {
		return fmt.Errorf("send from %s to %s: %w", p.from.Name, p.to.Name, err)
	}
	t.metrics.incMessagesSent()
	t.logger.WithFields(logrus.Fields{
		"function": "send",
		"from":     p.from.Name,
		"to":       p.to.Name,
	}).Debug("Message sent")
	return nil
}

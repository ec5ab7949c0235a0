package internal

import (
	"context"
	"sync"
	"time"

	"github.com/opd-ai/agentnet/interfaces"
)

// TestMessage is one inbound message observed by an agent.
type TestMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageLog collects inbound messages from every agent. Appends may come
// from any node goroutine.
type MessageLog struct {
	mu       sync.Mutex
	messages []TestMessage
	changed  chan struct{}
}

// NewMessageLog creates an empty log.
func NewMessageLog() *MessageLog {
	return &MessageLog{changed: make(chan struct{})}
}

// Append adds msg and wakes every waiter.
func (l *MessageLog) Append(msg TestMessage) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.notifyLocked()
	l.mu.Unlock()
}

// Handler returns a node message handler that appends to the log, stamping
// each message with clock.
func (l *MessageLog) Handler(clock TimeProvider) interfaces.MessageHandler {
	clock = getTimeProvider(clock)
	return func(msg interfaces.InboundMessage) {
		l.Append(TestMessage{
			From:      msg.FromAgentID,
			To:        msg.ToAgentID,
			Content:   msg.Content,
			Timestamp: clock.Now(),
		})
	}
}

// Len returns the number of messages logged.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Messages returns a copy of the log in arrival order.
func (l *MessageLog) Messages() []TestMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TestMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

// Clear drops every message.
func (l *MessageLog) Clear() {
	l.mu.Lock()
	l.messages = nil
	l.notifyLocked()
	l.mu.Unlock()
}

// WaitForCount blocks until the log holds at least want messages, timeout
// elapses or ctx is done, and returns the length at that point.
func (l *MessageLog) WaitForCount(ctx context.Context, want int, timeout time.Duration) int {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		l.mu.Lock()
		n := len(l.messages)
		changed := l.changed
		l.mu.Unlock()

		if n >= want {
			return n
		}

		select {
		case <-changed:
		case <-timer.C:
			return l.Len()
		case <-ctx.Done():
			return l.Len()
		}
	}
}

func (l *MessageLog) notifyLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

package internal

import (
	"sync"
	"time"
)

// TimeProvider abstracts the clock used to stamp test results and logged
// messages, so tests can assert exact durations.
//
//	clock := NewMockTimeProvider(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
//	harness.SetTimeProvider(clock)
//	clock.Advance(5 * time.Second)
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider implements TimeProvider using the system clock.
type DefaultTimeProvider struct{}

// NewDefaultTimeProvider creates a new DefaultTimeProvider.
func NewDefaultTimeProvider() *DefaultTimeProvider {
	return &DefaultTimeProvider{}
}

// Now returns the current system time.
func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now()
}

// Since returns the duration elapsed since t using the system clock.
func (p *DefaultTimeProvider) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockTimeProvider is a manually advanced clock. It is safe for use from the
// node goroutines that stamp inbound messages.
type MockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
}

// NewMockTimeProvider creates a MockTimeProvider starting at the specified time.
func NewMockTimeProvider(startTime time.Time) *MockTimeProvider {
	return &MockTimeProvider{currentTime: startTime}
}

// Now returns the mock's current time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// Since returns the duration since t based on the mock's current time.
func (m *MockTimeProvider) Since(t time.Time) time.Duration {
	return m.Now().Sub(t)
}

// Advance moves the mock time forward by d.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	m.currentTime = m.currentTime.Add(d)
	m.mu.Unlock()
}

// Set updates the mock time to t.
func (m *MockTimeProvider) Set(t time.Time) {
	m.mu.Lock()
	m.currentTime = t
	m.mu.Unlock()
}

var defaultTimeProvider TimeProvider = NewDefaultTimeProvider()

// getTimeProvider returns the provided TimeProvider or the default if nil.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return defaultTimeProvider
}

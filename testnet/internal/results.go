package internal

import (
	"encoding/json"
	"sync"
	"time"
)

// MessageTestName is the name the broadcast test records its result under.
const MessageTestName = "message-test"

// TestResult is the outcome of one named test. A finished result has
// EndTime >= StartTime and a non-nil Error exactly when Success is false.
type TestResult struct {
	Name             string
	Success          bool
	Error            error
	MessagesSent     int
	MessagesReceived int
	StartTime        time.Time
	EndTime          time.Time
}

// Duration returns EndTime - StartTime.
func (r TestResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Status returns PASSED or FAILED.
func (r TestResult) Status() string {
	if r.Success {
		return "PASSED"
	}
	return "FAILED"
}

// finish marks the result done at end, failing it when err is non-nil.
func (r *TestResult) finish(err error, end time.Time) {
	if err != nil {
		r.Success = false
		r.Error = err
	}
	if end.Before(r.StartTime) {
		end = r.StartTime
	}
	r.EndTime = end
}

// MarshalJSON renders the error as its message.
func (r TestResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Name             string    `json:"name"`
		Success          bool      `json:"success"`
		Error            string    `json:"error,omitempty"`
		MessagesSent     int       `json:"messagesSent"`
		MessagesReceived int       `json:"messagesReceived"`
		StartTime        time.Time `json:"startTime"`
		EndTime          time.Time `json:"endTime"`
		Duration         string    `json:"duration"`
	}{
		Name:             r.Name,
		Success:          r.Success,
		MessagesSent:     r.MessagesSent,
		MessagesReceived: r.MessagesReceived,
		StartTime:        r.StartTime,
		EndTime:          r.EndTime,
		Duration:         r.Duration().String(),
	}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// TestSummary aggregates every recorded result.
type TestSummary struct {
	TotalTests  int           `json:"totalTests"`
	PassedTests int           `json:"passedTests"`
	FailedTests int           `json:"failedTests"`
	Results     []TestResult  `json:"results"`
	Duration    time.Duration `json:"duration"`
}

// AllPassed reports whether at least one test ran and none failed.
func (s TestSummary) AllPassed() bool {
	return s.TotalTests > 0 && s.FailedTests == 0
}

// ResultAggregator records results by name, keeping first-record order.
// Recording a name again replaces its result in place.
type ResultAggregator struct {
	mu      sync.Mutex
	order   []string
	results map[string]TestResult
}

// NewResultAggregator creates an empty aggregator.
func NewResultAggregator() *ResultAggregator {
	return &ResultAggregator{results: make(map[string]TestResult)}
}

// Record stores result under name.
func (a *ResultAggregator) Record(name string, result TestResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.results[name]; !ok {
		a.order = append(a.order, name)
	}
	result.Name = name
	a.results[name] = result
}

// Summarize counts passes and failures and sums the result durations.
func (a *ResultAggregator) Summarize() TestSummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	summary := TestSummary{
		TotalTests: len(a.order),
		Results:    make([]TestResult, 0, len(a.order)),
	}
	for _, name := range a.order {
		r := a.results[name]
		if r.Success {
			summary.PassedTests++
		} else {
			summary.FailedTests++
		}
		summary.Duration += r.Duration()
		summary.Results = append(summary.Results, r)
	}
	return summary
}

// Names returns the recorded names in record order.
func (a *ResultAggregator) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.order))
	copy(out, a.order)
	return out
}

// Reset drops every result.
func (a *ResultAggregator) Reset() {
	a.mu.Lock()
	a.order = nil
	a.results = make(map[string]TestResult)
	a.mu.Unlock()
}

package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func resultWith(success bool, d time.Duration) TestResult {
	r := TestResult{Success: success, StartTime: epoch, EndTime: epoch.Add(d)}
	if !success {
		r.Error = errors.New("failed")
	}
	return r
}

func TestResultAggregatorSummarize(t *testing.T) {
	tests := []struct {
		name         string
		results      []TestResult
		wantPassed   int
		wantFailed   int
		wantDuration time.Duration
	}{
		{"empty", nil, 0, 0, 0},
		{"single pass", []TestResult{resultWith(true, time.Second)}, 1, 0, time.Second},
		{"single fail", []TestResult{resultWith(false, 2 * time.Second)}, 0, 1, 2 * time.Second},
		{
			"mixed",
			[]TestResult{resultWith(true, time.Second), resultWith(false, time.Second), resultWith(true, 3 * time.Second)},
			2, 1, 5 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewResultAggregator()
			for i, r := range tt.results {
				agg.Record(fmt.Sprintf("test-%d", i), r)
			}
			summary := agg.Summarize()

			assert.Equal(t, len(tt.results), summary.TotalTests)
			assert.Equal(t, tt.wantPassed, summary.PassedTests)
			assert.Equal(t, tt.wantFailed, summary.FailedTests)
			assert.Equal(t, summary.TotalTests, summary.PassedTests+summary.FailedTests)
			assert.Len(t, summary.Results, summary.TotalTests)
			assert.Equal(t, tt.wantDuration, summary.Duration)
		})
	}
}

func TestResultAggregatorOrderAndReplace(t *testing.T) {
	agg := NewResultAggregator()
	agg.Record("b", resultWith(true, time.Second))
	agg.Record("a", resultWith(true, time.Second))
	agg.Record("b", resultWith(false, time.Second))

	assert.Equal(t, []string{"b", "a"}, agg.Names())

	summary := agg.Summarize()
	require.Len(t, summary.Results, 2)
	assert.Equal(t, "b", summary.Results[0].Name)
	assert.False(t, summary.Results[0].Success)
	assert.Equal(t, 1, summary.FailedTests)

	agg.Reset()
	assert.Empty(t, agg.Names())
	assert.Zero(t, agg.Summarize().TotalTests)
}

func TestResultAggregatorConcurrentRecord(t *testing.T) {
	agg := NewResultAggregator()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Record(fmt.Sprintf("test-%d", i), resultWith(i%2 == 0, time.Millisecond))
		}(i)
	}
	wg.Wait()

	summary := agg.Summarize()
	assert.Equal(t, 20, summary.TotalTests)
	assert.Equal(t, 10, summary.PassedTests)
}

func TestTestResultFinish(t *testing.T) {
	r := &TestResult{Success: true, StartTime: epoch}
	r.finish(nil, epoch.Add(time.Second))
	assert.True(t, r.Success)
	assert.NoError(t, r.Error)
	assert.Equal(t, time.Second, r.Duration())

	r = &TestResult{Success: true, StartTime: epoch}
	r.finish(errors.New("boom"), epoch.Add(-time.Second))
	assert.False(t, r.Success)
	assert.EqualError(t, r.Error, "boom")
	assert.False(t, r.EndTime.Before(r.StartTime))
	assert.Equal(t, "FAILED", r.Status())
}

func TestTestResultJSON(t *testing.T) {
	r := resultWith(false, 1500*time.Millisecond)
	r.Name = MessageTestName
	r.MessagesSent = 6
	r.MessagesReceived = 4

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "message-test", decoded["name"])
	assert.Equal(t, "failed", decoded["error"])
	assert.Equal(t, float64(6), decoded["messagesSent"])
	assert.Equal(t, "1.5s", decoded["duration"])
}

func TestTestSummaryAllPassed(t *testing.T) {
	assert.False(t, TestSummary{}.AllPassed())
	assert.True(t, TestSummary{TotalTests: 1, PassedTests: 1}.AllPassed())
	assert.False(t, TestSummary{TotalTests: 2, PassedTests: 1, FailedTests: 1}.AllPassed())
}

package internal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionPolicyString(t *testing.T) {
	assert.Equal(t, "strict-sequential", StrictSequential.String())
	assert.Equal(t, "best-effort", BestEffort.String())
	assert.Equal(t, "unknown", ExecutionPolicy(9).String())
}

func TestExecutionPolicyRun(t *testing.T) {
	failing := map[int]bool{1: true, 3: true}
	step := func(visited *[]int) func(int) error {
		return func(i int) error {
			*visited = append(*visited, i)
			if failing[i] {
				return fmt.Errorf("step %d failed", i)
			}
			return nil
		}
	}

	t.Run("strict sequential stops at first failure", func(t *testing.T) {
		var visited []int
		err := StrictSequential.Run(5, step(&visited))
		require.EqualError(t, err, "step 1 failed")
		assert.Equal(t, []int{0, 1}, visited)
	})

	t.Run("best effort visits every step", func(t *testing.T) {
		var visited []int
		err := BestEffort.Run(5, step(&visited))
		require.Error(t, err)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, visited)

		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 2)
	})

	t.Run("no failures", func(t *testing.T) {
		var visited []int
		assert.NoError(t, BestEffort.Run(0, step(&visited)))
		assert.NoError(t, StrictSequential.Run(1, step(&visited)))
	})
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("port in use")

	startup := &StartupFailure{Node: "bootstrap-0", Op: "start", Err: cause}
	assert.EqualError(t, startup, "start bootstrap-0: port in use")
	assert.ErrorIs(t, startup, cause)

	funding := &FundingFailure{Index: 2, Address: "0xabc"}
	assert.EqualError(t, funding, "failed to fund agent 2 at address 0xabc")

	assertion := &TestAssertionFailure{Expected: 6, Received: 4}
	assert.EqualError(t, assertion, "expected 6 messages, but received 4")

	cleanup := &CleanupFailure{Err: cause}
	assert.ErrorIs(t, cleanup, cause)

	wrapped := fmt.Errorf("create agents: %w", funding)
	var ff *FundingFailure
	require.True(t, errors.As(wrapped, &ff))
	assert.Equal(t, 2, ff.Index)
}

package internal

import (
	"github.com/hashicorp/go-multierror"
)

// ExecutionPolicy decides how a sequence of steps reacts to failure.
type ExecutionPolicy int

const (
	// StrictSequential stops at the first failing step and returns its error.
	StrictSequential ExecutionPolicy = iota

	// BestEffort runs every step and returns all failures aggregated.
	BestEffort
)

// String returns a string representation of the policy.
func (p ExecutionPolicy) String() string {
	switch p {
	case StrictSequential:
		return "strict-sequential"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// Run calls step for i in [0,n) in order.
func (p ExecutionPolicy) Run(n int, step func(i int) error) error {
	var result *multierror.Error
	for i := 0; i < n; i++ {
		err := step(i)
		if err == nil {
			continue
		}
		if p != BestEffort {
			return err
		}
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

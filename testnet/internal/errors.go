package internal

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when a harness operation is called out of order.
	ErrInvalidState = errors.New("harness operation called in invalid state")

	// ErrHarnessFailed is returned by every step after a step has failed.
	// Only Cleanup remains callable.
	ErrHarnessFailed = errors.New("harness has failed; only cleanup is allowed")
)

// FundingFailure means an agent could not be brought to a positive balance.
type FundingFailure struct {
	Index   int
	Address string
}

func (e *FundingFailure) Error() string {
	return fmt.Sprintf("failed to fund agent %d at address %s", e.Index, e.Address)
}

// StartupFailure wraps an error from starting or registering a node.
type StartupFailure struct {
	Node string
	Op   string
	Err  error
}

func (e *StartupFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Node, e.Err)
}

func (e *StartupFailure) Unwrap() error { return e.Err }

// TestAssertionFailure reports a message count mismatch.
type TestAssertionFailure struct {
	Expected int
	Received int
}

func (e *TestAssertionFailure) Error() string {
	return fmt.Sprintf("expected %d messages, but received %d", e.Expected, e.Received)
}

// CleanupFailure aggregates the stop errors of a teardown pass.
type CleanupFailure struct {
	Err error
}

func (e *CleanupFailure) Error() string {
	return fmt.Sprintf("cleanup: %v", e.Err)
}

func (e *CleanupFailure) Unwrap() error { return e.Err }

// Package internal provides the core components of the agent network
// integration test harness.
//
// The harness provisions bootstrap relay nodes and agent nodes, makes sure
// every agent holds enough on-chain balance to register and message, drives an
// all-pairs message exchange across the agents and reports pass/fail results
// with timing.
//
// # Architecture Overview
//
//   - Harness: the run state machine (Init, StartBootstrapNodes, CreateAgents,
//     RunMessageTest, GenerateSummary, Cleanup) with guaranteed cleanup
//   - NodeLifecycleManager: builds, funds, registers, starts and stops nodes
//   - FundingGate: tops up identities with zero balance from the operator wallet
//   - MessageBroadcastTest: every agent messages every other agent, then the
//     MessageLog is waited on until n*(n-1) messages arrive or the settle
//     timeout elapses
//   - ResultAggregator: named results and the summary computed from them
//   - StatusServer: /metrics, /status and /summary over HTTP while a run is live
//
// # Running a test
//
//	env, err := factory.NewEnvironment(ctx, factory.EnvironmentConfig{Simulate: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	config := internal.DefaultTestConfig()
//	config.Simulate = true
//
//	harness, err := internal.NewHarness(config, env.Ledger, env.NewNode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := harness.Run(ctx)
//
// # State machine
//
// Steps must be called in order. An out-of-order call returns ErrInvalidState.
// A failing step marks the harness failed: every later step returns
// ErrHarnessFailed and only Cleanup remains valid. Cleanup stops every node
// that was started, whatever step the run reached.
//
// # Port Ranges
//
// Bootstrap node i listens on BootstrapPort+i (default 14221) and agent i on
// AgentPort+i (default 14230). Validate rejects overlapping ranges.
//
// # Logging
//
// The package logs through logrus entries tagged with a component field.
// ConfigureLogging applies the configured level, format and log file.
package internal

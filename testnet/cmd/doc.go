// Command agentnet-testnet runs the agent network integration test harness.
//
// # Usage
//
// Run against an in-process simulated network, ledger and registry:
//
//	go run ./testnet/cmd --simulate
//
// Run against a chain:
//
//	go run ./testnet/cmd \
//	    --rpc-url http://127.0.0.1:8545 \
//	    --registry 0x5fbdb2315678afecb367f032d93f642f64180aa3 \
//	    --funder-key $FUNDER_KEY
//
// Print the effective configuration with the funder key redacted:
//
//	go run ./testnet/cmd config --config testnet.yaml
//
// # Configuration
//
// Every flag can also be set through an AGENTNET_* environment variable
// (--agent-count becomes AGENTNET_AGENT_COUNT) or a YAML file passed with
// --config using the flag names as keys. Flags take precedence over the
// environment, which takes precedence over the file.
//
// Network layout:
//   - --bootstrap-count, --bootstrap-port: bootstrap nodes (default 2 from 14221)
//   - --agent-count, --agent-port: agents (default 3 from 14230)
//
// Message test:
//   - --settle-timeout: time allowed for every message to arrive (default 5s)
//   - --parallel-sends, --max-parallel-sends: concurrent sends
//   - --send-rate: messages per second cap
//
// Observability:
//   - --log-level, --log-format, --log-file
//   - --metrics-addr: serve /metrics, /status and /summary
//
// # Exit Codes
//
// The command exits 0 only when every step completed and every recorded test
// passed, and 1 otherwise.
package main

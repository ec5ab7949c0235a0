// Package factory assembles the collaborators a harness run needs.
//
// The harness depends only on an interfaces.ILedger and an
// interfaces.NodeConstructor. NewEnvironment picks the implementations:
//
//   - Simulate=true: an in-process SimulatedNetwork, SimulatedLedger and
//     SimulatedRegistry from package testing. No network or chain is touched.
//   - Simulate=false: a JSON-RPC ledger.Client with the funder's Wallet, and
//     real.Node peers that register through a ContractRegistry signed by each
//     agent's own key.
//
// # Usage
//
//	env, err := factory.NewEnvironment(ctx, factory.EnvironmentConfig{
//	    Simulate: true,
//	}, factory.WithSimulatedFunds(big.NewInt(1e18)))
//	if err != nil {
//	    return err
//	}
//	defer env.Close()
//
// Tests reach the simulation handles through Environment.Network and
// Environment.SimLedger to inject partitions and failures.
package factory

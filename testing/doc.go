// Package testing provides an in-process simulation of the agentnet peer
// network, ledger and registry for deterministic harness tests.
//
// # Overview
//
// The simulation mirrors the collaborators in package interfaces but keeps all
// state in memory. Nodes built by a [SimulatedNetwork] claim ports, register in
// a [SimulatedRegistry] and exchange messages through the network, which hands
// each delivery to a goroutine so convergence is asynchronous just like on a
// real network.
//
// # Usage
//
//	net := testing.NewSimulatedNetwork(testing.NewSimulatedRegistry())
//	ledger := testing.NewSimulatedLedger(operator, big.NewInt(1e18))
//
//	node, _ := net.NewNode(interfaces.NodeConfig{Identity: id})
//	_ = node.Start(ctx, 14230)
//
// # Failure Injection
//
// Tests can force the failure modes the harness must survive:
//
//   - Partition(name) silently drops every message addressed to a node;
//   - FailStart / FailStop make a node's Start or Stop return an error;
//   - SimulatedLedger.FailTransfers / FailReceipts / RevertTransfers break funding;
//   - SimulatedRegistry.FailRegistration rejects one node's registration.
//
// # Delivery Logs
//
// Every send attempt is recorded as a DeliveryRecord. Use GetDeliveryLog to
// inspect it, Wait to block until in-flight deliveries have been handed to
// their handlers, and ClearDeliveryLog between test cases.
//
// # Thread Safety
//
// All simulated types are safe for concurrent use.
package testing

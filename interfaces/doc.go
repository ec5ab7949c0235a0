// Package interfaces defines the collaborator contracts of the agentnet test
// harness.
//
// The harness never talks to a network, a chain or a registry directly. It
// drives three abstractions that can be backed either by real infrastructure
// (packages real, ledger and registry) or by the in-process simulation in
// package testing:
//
// [IPeerNode] is one node on the peer network. Bootstrap nodes relay discovery
// information; agents register on-chain and exchange messages:
//
//	node, err := construct(interfaces.NodeConfig{Identity: id, Seeds: seeds})
//	if err != nil {
//	    return err
//	}
//	node.OnMessage(func(m interfaces.InboundMessage) {
//	    log.Printf("%s -> %s: %s", m.FromAgentID, m.ToAgentID, m.Content)
//	})
//	if err := node.Start(ctx, 14230); err != nil {
//	    return err
//	}
//
// [ILedger] reads balances and submits value transfers, and [IRegistry] records
// agent registrations keyed by address.
//
// A [NodeConstructor] builds nodes from a [NodeConfig]; the factory package
// chooses the constructor for the active environment.
package interfaces

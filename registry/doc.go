// Package registry implements interfaces.IRegistry.
//
// [ContractRegistry] records agents in an on-chain registry contract by
// submitting registerAgent(name, version, metadata) from the agent's own wallet.
// [MemoryRegistry] keeps registrations in process for simulated runs.
package registry

// Package real provides the network-backed peer node used outside simulation.
//
// # Architecture
//
// A [Node] listens on TCP and speaks one request per connection. Every
// connection is secured with a Noise IK handshake: the dialer already knows the
// responder's static Curve25519 key from discovery, so both sides are
// authenticated before the first envelope is read.
//
//	┌──────────────┐  announce   ┌──────────────┐
//	│    agent     │────────────▶│  bootstrap   │
//	│  (LRU cache) │◀────────────│ (LRU table)  │
//	└──────┬───────┘ lookup/peer └──────────────┘
//	       │ message / ack
//	       ▼
//	┌──────────────┐
//	│    agent     │
//	└──────────────┘
//
// Bootstrap nodes only keep a bounded table of announced peers and answer
// lookups. Agents announce themselves to their seeds when they start, resolve
// destination addresses through a local cache or the seeds, and expect an ack
// for every message they send.
//
// # Wire Format
//
// Frames are a 4-byte big-endian length followed by the Noise ciphertext of a
// JSON envelope:
//
//	{"type":"message","from":"test-agent-0","to":"0x…","content":"hello"}
//
// # Usage
//
//	node, err := real.NewNode(cfg, registry, real.DefaultNodeOptions())
//	if err != nil {
//	    return err
//	}
//	if err := node.Start(ctx, 14230); err != nil {
//	    return err
//	}
//	defer node.Stop(ctx)
//
// A stopped node cannot be restarted; build a new one instead.
package real

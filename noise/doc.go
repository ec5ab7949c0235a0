// Package noise provides the Noise Protocol Framework secure channel used
// between agentnet peer nodes.
//
// Nodes authenticate with the IK pattern: the dialing node already knows the
// listener's static Curve25519 key, learned from a bootstrap node lookup or from
// its seed list, and the listener learns the dialer's static key from the first
// handshake message. The cipher suite is 25519 / ChaChaPoly / SHA256.
//
// # Handshake
//
// IKHandshake drives the two-message exchange:
//
//	initiator, _ := noise.NewIKHandshake(myPriv, peerPub, noise.Initiator)
//	msg1, _, _ := initiator.WriteMessage(nil, nil)
//	// ... send msg1, receive msg2 ...
//	_, done, _ := initiator.ReadMessage(msg2)
//
// # Secure Connections
//
// SecureConn wraps a net.Conn, runs the handshake and then exchanges
// length-prefixed encrypted frames:
//
//	sc, err := noise.Dial(ctx, conn, myKeys, peerPub)
//	if err != nil {
//	    return err
//	}
//	defer sc.Close()
//	err = sc.WriteFrame(payload)
//
// Frames are capped at limits.MaxFrameSize; oversized frames are rejected
// before any allocation.
package noise

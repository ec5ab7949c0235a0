// Package crypto holds the transport key material used by agentnet peer nodes.
//
// Every node carries two keys: a secp256k1 signing key for its on-chain identity
// (see the identity package) and a Curve25519 transport key defined here. The
// transport key is the static key of the Noise IK handshake, so a peer that has
// discovered another node's public transport key can open an authenticated,
// encrypted channel to it.
//
// Example:
//
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Transport key:", keys.PublicHex())
//	defer crypto.WipeKeyPair(keys)
package crypto

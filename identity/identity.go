// Package identity defines the NodeIdentity carried by every agentnet node.
//
// An identity pairs a secp256k1 signing key, whose Ethereum-style address is the
// node's on-chain identity and its address on the peer network, with a
// Curve25519 transport key used for the Noise secure channel. Identities are
// immutable once generated and owned by exactly one node.
package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/opd-ai/agentnet/crypto"
)

// NodeIdentity is the keys, name, version and metadata of one node.
type NodeIdentity struct {
	name      string
	version   string
	signing   *secp256k1.KeyPair
	transport *crypto.KeyPair
	metadata  Metadata
}

// Generate creates a fresh identity with new signing and transport keys.
func Generate(name, version string, metadata Metadata) (*NodeIdentity, error) {
	if name == "" {
		return nil, errors.New("identity name cannot be empty")
	}

	signing, err := secp256k1.GenerateSecp256k1KeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key for %s: %w", name, err)
	}

	transport, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate transport key for %s: %w", name, err)
	}

	return &NodeIdentity{
		name:      name,
		version:   version,
		signing:   signing,
		transport: transport,
		metadata:  metadata.clone(),
	}, nil
}

// ParseSigningKey decodes a hex secp256k1 private key, with or without 0x prefix.
func ParseSigningKey(s string) (*secp256k1.KeyPair, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key encoding: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	return secp256k1.KeyPairFromBytes(raw), nil
}

// Name returns the human-readable node name.
func (id *NodeIdentity) Name() string { return id.name }

// Version returns the node software version string.
func (id *NodeIdentity) Version() string { return id.version }

// Address returns the on-chain address of the signing key.
func (id *NodeIdentity) Address() ethtypes.Address0xHex { return id.signing.Address }

// AddressHex returns Address as a 0x-prefixed string.
func (id *NodeIdentity) AddressHex() string { return id.signing.Address.String() }

// SigningKey returns the secp256k1 key used for on-chain transactions.
func (id *NodeIdentity) SigningKey() *secp256k1.KeyPair { return id.signing }

// TransportKeys returns the Curve25519 key pair for the secure channel.
func (id *NodeIdentity) TransportKeys() *crypto.KeyPair { return id.transport }

// Metadata returns a copy of the identity metadata.
func (id *NodeIdentity) Metadata() Metadata { return id.metadata.clone() }

// String implements fmt.Stringer without exposing key material.
func (id *NodeIdentity) String() string {
	return fmt.Sprintf("%s(%s)", id.name, id.AddressHex())
}

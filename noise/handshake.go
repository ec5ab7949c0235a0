package noise

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/opd-ai/agentnet/crypto"
)

var (
	// ErrHandshakeNotComplete indicates handshake is still in progress
	ErrHandshakeNotComplete = errors.New("handshake not complete")
	// ErrHandshakeComplete indicates handshake is already complete
	ErrHandshakeComplete = errors.New("handshake already complete")
)

// HandshakeRole defines whether we're initiating or responding to handshake
type HandshakeRole uint8

const (
	// Initiator starts the handshake (knows peer's static key)
	Initiator HandshakeRole = iota
	// Responder responds to handshake initiation
	Responder
)

// String returns a readable role name.
func (r HandshakeRole) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// IKHandshake implements the Noise IK pattern.
type IKHandshake struct {
	role       HandshakeRole
	state      *noise.HandshakeState
	sendCipher *noise.CipherState
	recvCipher *noise.CipherState
	complete   bool
}

// NewIKHandshake creates a new IK pattern handshake.
// staticPrivKey is our long-term private key (32 bytes).
// peerPubKey is the peer's long-term public key (32 bytes, nil for responder).
func NewIKHandshake(staticPrivKey, peerPubKey []byte, role HandshakeRole) (*IKHandshake, error) {
	if len(staticPrivKey) != crypto.KeyLength {
		return nil, fmt.Errorf("static private key must be %d bytes, got %d", crypto.KeyLength, len(staticPrivKey))
	}

	if role == Initiator && len(peerPubKey) != crypto.KeyLength {
		return nil, fmt.Errorf("initiator requires peer public key (%d bytes), got %d", crypto.KeyLength, len(peerPubKey))
	}

	var privateKeyArray [crypto.KeyLength]byte
	copy(privateKeyArray[:], staticPrivKey)
	keyPair, err := crypto.FromSecretKey(privateKeyArray)
	crypto.ZeroBytes(privateKeyArray[:])
	if err != nil {
		return nil, fmt.Errorf("failed to derive keypair: %w", err)
	}

	staticKey := noise.DHKey{
		Private: make([]byte, crypto.KeyLength),
		Public:  make([]byte, crypto.KeyLength),
	}
	copy(staticKey.Private, keyPair.Private[:])
	copy(staticKey.Public, keyPair.Public[:])
	crypto.ZeroBytes(keyPair.Private[:])

	config := noise.Config{
		CipherSuite:   cipherSuite,
		Random:        rand.Reader,
		Pattern:       noise.HandshakeIK,
		Initiator:     role == Initiator,
		StaticKeypair: staticKey,
	}
	if role == Initiator {
		config.PeerStatic = make([]byte, crypto.KeyLength)
		copy(config.PeerStatic, peerPubKey)
	}

	state, err := noise.NewHandshakeState(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}

	return &IKHandshake{role: role, state: state}, nil
}

// WriteMessage produces the next outgoing handshake message.
// The initiator calls it with a nil receivedMessage to create message one (-> e, es, s, ss).
// The responder passes message one and gets back message two (<- e, ee, se),
// which completes the handshake on its side.
func (ik *IKHandshake) WriteMessage(payload, receivedMessage []byte) ([]byte, bool, error) {
	if ik.complete {
		return nil, false, ErrHandshakeComplete
	}

	if ik.role == Initiator {
		message, _, _, err := ik.state.WriteMessage(nil, payload)
		if err != nil {
			return nil, false, fmt.Errorf("initiator write failed: %w", err)
		}
		return message, false, nil
	}

	if receivedMessage == nil {
		return nil, false, errors.New("responder requires received message")
	}
	if _, _, _, err := ik.state.ReadMessage(nil, receivedMessage); err != nil {
		return nil, false, fmt.Errorf("responder read failed: %w", err)
	}

	message, initToResp, respToInit, err := ik.state.WriteMessage(nil, payload)
	if err != nil {
		return nil, false, fmt.Errorf("responder write failed: %w", err)
	}

	ik.sendCipher = respToInit
	ik.recvCipher = initToResp
	ik.complete = true
	return message, true, nil
}

// ReadMessage processes the responder's reply. Only the initiator reads.
func (ik *IKHandshake) ReadMessage(message []byte) ([]byte, bool, error) {
	if ik.complete {
		return nil, false, ErrHandshakeComplete
	}
	if ik.role != Initiator {
		return nil, false, errors.New("only initiator can read response messages")
	}

	payload, initToResp, respToInit, err := ik.state.ReadMessage(nil, message)
	if err != nil {
		return nil, false, fmt.Errorf("initiator read response failed: %w", err)
	}

	ik.sendCipher = initToResp
	ik.recvCipher = respToInit
	ik.complete = true
	return payload, true, nil
}

// IsComplete returns true if handshake is finished and cipher states are available.
func (ik *IKHandshake) IsComplete() bool {
	return ik.complete
}

// GetCipherStates returns the send and receive cipher states after a successful handshake.
func (ik *IKHandshake) GetCipherStates() (*noise.CipherState, *noise.CipherState, error) {
	if !ik.complete {
		return nil, nil, ErrHandshakeNotComplete
	}
	if ik.sendCipher == nil || ik.recvCipher == nil {
		return nil, nil, errors.New("cipher states not available")
	}
	return ik.sendCipher, ik.recvCipher, nil
}

// GetRemoteStaticKey returns a copy of the peer's static public key.
func (ik *IKHandshake) GetRemoteStaticKey() ([]byte, error) {
	if !ik.complete {
		return nil, ErrHandshakeNotComplete
	}

	remoteKey := ik.state.PeerStatic()
	if len(remoteKey) == 0 {
		return nil, errors.New("remote static key not available")
	}

	key := make([]byte, len(remoteKey))
	copy(key, remoteKey)
	return key, nil
}

// Role returns the handshake role.
func (ik *IKHandshake) Role() HandshakeRole {
	return ik.role
}

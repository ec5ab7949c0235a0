package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyLength is the size in bytes of transport public and private keys.
const KeyLength = 32

// ErrInvalidSecretKey is returned when a secret key cannot be used.
var ErrInvalidSecretKey = errors.New("invalid secret key")

// KeyPair represents a Curve25519 key pair used for node transport security.
type KeyPair struct {
	Public  [KeyLength]byte
	Private [KeyLength]byte
}

// GenerateKeyPair creates a new random Curve25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	publicKey, privateKey, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate transport key: %w", err)
	}

	return &KeyPair{
		Public:  *publicKey,
		Private: *privateKey,
	}, nil
}

// FromSecretKey rebuilds a key pair from an existing private key.
func FromSecretKey(secretKey [KeyLength]byte) (*KeyPair, error) {
	if isZeroKey(secretKey) {
		return nil, fmt.Errorf("%w: all zeros", ErrInvalidSecretKey)
	}

	public, err := curve25519.X25519(secretKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecretKey, err)
	}

	kp := &KeyPair{Private: secretKey}
	copy(kp.Public[:], public)
	return kp, nil
}

// PublicHex returns the public key as lowercase hex.
func (kp *KeyPair) PublicHex() string {
	return hex.EncodeToString(kp.Public[:])
}

// ParsePublicKey decodes a hex encoded transport public key.
func ParsePublicKey(s string) ([KeyLength]byte, error) {
	var key [KeyLength]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(raw) != KeyLength {
		return key, fmt.Errorf("public key must be %d bytes, got %d", KeyLength, len(raw))
	}
	copy(key[:], raw)
	if isZeroKey(key) {
		return key, errors.New("public key is all zeros")
	}
	return key, nil
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key [KeyLength]byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}

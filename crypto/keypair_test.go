package crypto

import (
	"bytes"
	"testing"
)

func TestGenerateKeyPair(t *testing.T) {
	keyPair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	if isZeroKey(keyPair.Public) {
		t.Error("GenerateKeyPair() returned zero public key")
	}
	if isZeroKey(keyPair.Private) {
		t.Error("GenerateKeyPair() returned zero private key")
	}

	keyPair2, _ := GenerateKeyPair()
	if bytes.Equal(keyPair.Public[:], keyPair2.Public[:]) {
		t.Error("Multiple GenerateKeyPair() calls produced identical public keys")
	}
}

func TestFromSecretKeyDerivesPublicKey(t *testing.T) {
	generated, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	rebuilt, err := FromSecretKey(generated.Private)
	if err != nil {
		t.Fatalf("FromSecretKey() error: %v", err)
	}

	if rebuilt.Public != generated.Public {
		t.Errorf("FromSecretKey() public = %x, want %x", rebuilt.Public, generated.Public)
	}
}

func TestFromSecretKeyRejectsZeroKey(t *testing.T) {
	if _, err := FromSecretKey([KeyLength]byte{}); err == nil {
		t.Error("FromSecretKey() accepted an all-zero key")
	}
}

func TestParsePublicKey(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid key", kp.PublicHex(), false},
		{"not hex", "zz", true},
		{"short key", "abcd", true},
		{"zero key", string(bytes.Repeat([]byte("0"), KeyLength*2)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := ParsePublicKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePublicKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && key != kp.Public {
				t.Errorf("ParsePublicKey() = %x, want %x", key, kp.Public)
			}
		})
	}
}

func TestWipeKeyPair(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair() error: %v", err)
	}

	if err := WipeKeyPair(kp); err != nil {
		t.Fatalf("WipeKeyPair() error: %v", err)
	}
	if !isZeroKey(kp.Private) {
		t.Error("WipeKeyPair() left private key material behind")
	}

	if err := WipeKeyPair(nil); err == nil {
		t.Error("WipeKeyPair(nil) should fail")
	}
	if err := SecureWipe(nil); err == nil {
		t.Error("SecureWipe(nil) should fail")
	}
}

package limits

import (
	"bytes"
	"errors"
	"testing"
)

func TestLimitHierarchy(t *testing.T) {
	if MaxMessageContent >= MaxEnvelope {
		t.Errorf("MaxMessageContent (%d) should be below MaxEnvelope (%d)", MaxMessageContent, MaxEnvelope)
	}
	if MaxFrameSize != MaxEnvelope+EncryptionOverhead {
		t.Errorf("MaxFrameSize = %d, want %d", MaxFrameSize, MaxEnvelope+EncryptionOverhead)
	}
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
		wantErr error
	}{
		{"empty", nil, ErrMessageEmpty},
		{"one byte", []byte("x"), nil},
		{"at limit", bytes.Repeat([]byte("a"), MaxMessageContent), nil},
		{"over limit", bytes.Repeat([]byte("a"), MaxMessageContent+1), ErrMessageTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContent(tt.content)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("ValidateContent() unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateContent() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateFrame(t *testing.T) {
	if err := ValidateFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("ValidateFrame(nil) = %v, want ErrMessageEmpty", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize)); err != nil {
		t.Errorf("ValidateFrame(max) = %v, want nil", err)
	}
	if err := ValidateFrame(make([]byte, MaxFrameSize+1)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ValidateFrame(max+1) = %v, want ErrMessageTooLarge", err)
	}
}

func TestValidateMessageSize(t *testing.T) {
	if err := ValidateMessageSize([]byte("abc"), 3); err != nil {
		t.Errorf("ValidateMessageSize() at limit = %v", err)
	}
	if err := ValidateMessageSize([]byte("abcd"), 3); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("ValidateMessageSize() over limit = %v", err)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"1KiB", 1024, false},
		{"4096", 4096, false},
		{"2 kB", 2000, false},
		{"0", 0, true},
		{"1MiB", 0, true},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

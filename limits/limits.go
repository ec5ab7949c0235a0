package limits

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

const (
	// MaxMessageContent is the largest message body a node sends or accepts.
	MaxMessageContent = 4096

	// MaxEnvelope is the largest serialized envelope, content plus routing fields.
	MaxEnvelope = MaxMessageContent + 1024

	// EncryptionOverhead is the ChaCha20-Poly1305 tag added to each transport message.
	EncryptionOverhead = 16

	// MaxFrameSize is the largest frame body accepted from the wire.
	MaxFrameSize = MaxEnvelope + EncryptionOverhead

	// FrameHeaderSize is the length prefix in front of every frame.
	FrameHeaderSize = 4
)

var (
	// ErrMessageEmpty indicates an empty message was provided
	ErrMessageEmpty = errors.New("empty message")

	// ErrMessageTooLarge indicates message exceeds maximum size
	ErrMessageTooLarge = errors.New("message too large")
)

// ValidateMessageSize validates a message against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateMessageSize(message []byte, maxSize int) error {
	if len(message) == 0 {
		return ErrMessageEmpty
	}
	if len(message) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrMessageTooLarge, len(message), maxSize)
	}
	return nil
}

// ValidateContent validates a message body against MaxMessageContent.
func ValidateContent(content []byte) error {
	if len(content) == 0 {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageContent {
		return fmt.Errorf("%w: content size %d exceeds limit %d", ErrMessageTooLarge, len(content), MaxMessageContent)
	}
	return nil
}

// ValidateFrame validates an encrypted frame body against MaxFrameSize.
func ValidateFrame(frame []byte) error {
	if len(frame) == 0 {
		return ErrMessageEmpty
	}
	if len(frame) > MaxFrameSize {
		return fmt.Errorf("%w: frame size %d exceeds limit %d", ErrMessageTooLarge, len(frame), MaxFrameSize)
	}
	return nil
}

// ParseSize parses a human-readable size such as "4KiB" and checks it is
// within (0, MaxMessageContent].
func ParseSize(s string) (int, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("invalid size %q: must be positive", s)
	}
	if n > MaxMessageContent {
		return 0, fmt.Errorf("%w: %s exceeds limit %s", ErrMessageTooLarge,
			humanize.IBytes(n), humanize.IBytes(MaxMessageContent))
	}
	return int(n), nil
}

// Package limits provides centralized size limits for agentnet peer traffic.
//
// # Size Hierarchy
//
//   - MaxMessageContent (4096 bytes): the largest message body a node will send
//     or accept. Test payloads are far below it; the cap keeps a misbehaving peer
//     from pushing arbitrary data through the inbound-message callbacks.
//
//   - MaxEnvelope: the JSON envelope around a message, which adds sender and
//     receiver names and addressing fields.
//
//   - MaxFrameSize: the largest encrypted frame on the wire. Every frame is a
//     4-byte big-endian length followed by a Noise transport message, which adds
//     the 16-byte ChaCha20-Poly1305 tag.
//
// # Validation
//
// Validation functions return ErrMessageEmpty or a wrapped ErrMessageTooLarge so
// callers can use errors.Is:
//
//	if err := limits.ValidateContent([]byte(content)); err != nil {
//	    return fmt.Errorf("refusing to send: %w", err)
//	}
//
// ParseSize converts human-readable configuration values ("4KiB", "1 MB") into
// byte counts, clamped by the caller against MaxFrameSize.
package limits

package noise

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/flynn/noise"
	"github.com/opd-ai/agentnet/crypto"
	"github.com/opd-ai/agentnet/limits"
)

// SecureConn is a net.Conn that has completed an IK handshake and exchanges
// length-prefixed encrypted frames. It is not safe for concurrent writers.
type SecureConn struct {
	conn   net.Conn
	send   *noise.CipherState
	recv   *noise.CipherState
	remote [crypto.KeyLength]byte
}

// Dial runs the initiator side of the handshake over an established connection.
func Dial(ctx context.Context, conn net.Conn, local *crypto.KeyPair, peerPublic [crypto.KeyLength]byte) (*SecureConn, error) {
	hs, err := NewIKHandshake(local.Private[:], peerPublic[:], Initiator)
	if err != nil {
		return nil, err
	}

	restore := applyDeadline(ctx, conn)
	defer restore()

	msg1, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, msg1); err != nil {
		return nil, fmt.Errorf("failed to send handshake: %w", err)
	}

	msg2, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake response: %w", err)
	}
	if _, _, err := hs.ReadMessage(msg2); err != nil {
		return nil, err
	}

	return newSecureConn(conn, hs)
}

// Accept runs the responder side of the handshake over an accepted connection.
func Accept(ctx context.Context, conn net.Conn, local *crypto.KeyPair) (*SecureConn, error) {
	hs, err := NewIKHandshake(local.Private[:], nil, Responder)
	if err != nil {
		return nil, err
	}

	restore := applyDeadline(ctx, conn)
	defer restore()

	msg1, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to read handshake: %w", err)
	}
	msg2, _, err := hs.WriteMessage(nil, msg1)
	if err != nil {
		return nil, err
	}
	if err := writeFrame(conn, msg2); err != nil {
		return nil, fmt.Errorf("failed to send handshake response: %w", err)
	}

	return newSecureConn(conn, hs)
}

func newSecureConn(conn net.Conn, hs *IKHandshake) (*SecureConn, error) {
	send, recv, err := hs.GetCipherStates()
	if err != nil {
		return nil, err
	}
	remote, err := hs.GetRemoteStaticKey()
	if err != nil {
		return nil, err
	}

	sc := &SecureConn{conn: conn, send: send, recv: recv}
	copy(sc.remote[:], remote)
	return sc, nil
}

// WriteFrame encrypts and sends one frame.
func (sc *SecureConn) WriteFrame(plaintext []byte) error {
	ciphertext, err := sc.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return fmt.Errorf("encrypt failed: %w", err)
	}
	return writeFrame(sc.conn, ciphertext)
}

// ReadFrame receives and decrypts one frame.
func (sc *SecureConn) ReadFrame() ([]byte, error) {
	ciphertext, err := readFrame(sc.conn)
	if err != nil {
		return nil, err
	}
	plaintext, err := sc.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt failed: %w", err)
	}
	return plaintext, nil
}

// RemoteStatic returns the authenticated static key of the peer.
func (sc *SecureConn) RemoteStatic() [crypto.KeyLength]byte {
	return sc.remote
}

// SetDeadline forwards to the underlying connection.
func (sc *SecureConn) SetDeadline(t time.Time) error {
	return sc.conn.SetDeadline(t)
}

// Close closes the underlying connection.
func (sc *SecureConn) Close() error {
	return sc.conn.Close()
}

func writeFrame(w io.Writer, body []byte) error {
	if err := limits.ValidateFrame(body); err != nil {
		return err
	}
	buf := make([]byte, limits.FrameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[limits.FrameHeaderSize:], body)
	_, err := w.Write(buf)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [limits.FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return nil, limits.ErrMessageEmpty
	}
	if size > limits.MaxFrameSize {
		return nil, fmt.Errorf("%w: frame size %d", limits.ErrMessageTooLarge, size)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// applyDeadline bounds the handshake by the context deadline, if any.
func applyDeadline(ctx context.Context, conn net.Conn) func() {
	deadline, ok := ctx.Deadline()
	if !ok {
		return func() {}
	}
	_ = conn.SetDeadline(deadline)
	return func() { _ = conn.SetDeadline(time.Time{}) }
}

package real

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/limits"
	"github.com/opd-ai/agentnet/noise"
)

func (n *Node) acceptLoop(ctx context.Context, listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if !n.track(conn) {
			_ = conn.Close()
			return nil
		}
		n.group.Go(func() error {
			defer n.untrack(conn)
			n.handleConn(ctx, conn)
			return nil
		})
	}
}

func (n *Node) track(conn net.Conn) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state != stateRunning {
		return false
	}
	n.conns[conn] = struct{}{}
	return true
}

func (n *Node) untrack(conn net.Conn) {
	n.mu.Lock()
	delete(n.conns, conn)
	n.mu.Unlock()
	_ = conn.Close()
}

func (n *Node) handleConn(ctx context.Context, conn net.Conn) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.RequestTimeout)
	defer cancel()

	sc, err := noise.Accept(ctx, conn, n.config.Identity.TransportKeys())
	if err != nil {
		n.logger.WithFields(logrus.Fields{
			"function": "handleConn",
			"remote":   conn.RemoteAddr().String(),
			"error":    err.Error(),
		}).Debug("Handshake failed")
		return
	}
	deadline, _ := ctx.Deadline()
	_ = sc.SetDeadline(deadline)

	frame, err := sc.ReadFrame()
	if err != nil {
		return
	}
	req, err := decodeEnvelope(frame)
	var resp *envelope
	var deliver *interfaces.InboundMessage
	if err != nil {
		resp = errorEnvelope("%v", err)
	} else {
		resp, deliver = n.handleEnvelope(req, sc.RemoteStatic())
	}

	if b, err := encodeEnvelope(resp); err == nil {
		_ = sc.WriteFrame(b)
	}

	if deliver != nil {
		n.dispatch(*deliver)
	}
}

func (n *Node) handleEnvelope(req *envelope, remote [32]byte) (*envelope, *interfaces.InboundMessage) {
	switch req.Type {
	case typeAnnounce:
		if n.role != identity.RoleBootstrap {
			return errorEnvelope("agents do not accept announcements"), nil
		}
		peer, err := fromWire(req.Peer)
		if err != nil {
			return errorEnvelope("%v", err), nil
		}
		if peer.PublicKey != remote {
			return errorEnvelope("announced key does not match channel key"), nil
		}
		n.peers.Add(strings.ToLower(peer.Address), peer)
		n.logger.WithFields(logrus.Fields{
			"function": "handleEnvelope",
			"peer":     peer.Name,
			"address":  peer.Address,
			"endpoint": peer.Endpoint,
		}).Debug("Peer announced")
		return &envelope{Type: typeAck}, nil

	case typeLookup:
		if n.role != identity.RoleBootstrap {
			return errorEnvelope("agents do not answer lookups"), nil
		}
		v, ok := n.peers.Get(strings.ToLower(req.Address))
		if !ok {
			return errorEnvelope("%s: %s", ErrPeerNotFound, req.Address), nil
		}
		return &envelope{Type: typePeer, Peer: toWire(v.(interfaces.PeerInfo))}, nil

	case typeMessage:
		if n.role != identity.RoleAgent {
			return errorEnvelope("bootstrap nodes do not accept messages"), nil
		}
		if !strings.EqualFold(req.To, n.GetAddress()) {
			return errorEnvelope("message for %s delivered to %s", req.To, n.GetAddress()), nil
		}
		if err := limits.ValidateContent([]byte(req.Content)); err != nil {
			return errorEnvelope("%v", err), nil
		}
		if req.ID != "" {
			if seen, _ := n.seen.ContainsOrAdd(req.ID, struct{}{}); seen {
				n.logger.WithFields(logrus.Fields{
					"function": "handleEnvelope",
					"from":     req.From,
					"id":       req.ID,
				}).Debug("Duplicate message acknowledged")
				return &envelope{Type: typeAck}, nil
			}
		}
		return &envelope{Type: typeAck}, &interfaces.InboundMessage{
			FromAgentID: req.From,
			ToAgentID:   n.Name(),
			Content:     req.Content,
			ReceivedAt:  time.Now(),
		}
	}
	return errorEnvelope("unsupported envelope type %q", req.Type), nil
}

func (n *Node) dispatch(msg interfaces.InboundMessage) {
	n.mu.RLock()
	handlers := append([]interfaces.MessageHandler(nil), n.handlers...)
	n.mu.RUnlock()

	for _, h := range handlers {
		h(msg)
	}
}

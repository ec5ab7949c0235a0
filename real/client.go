package real

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/noise"
)

// exchange dials peer, sends req and returns the reply. Error replies are
// converted to errors.
func (n *Node) exchange(ctx context.Context, peer interfaces.PeerInfo, req *envelope) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, n.opts.RequestTimeout)
	defer cancel()

	dialer := net.Dialer{Timeout: n.opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", peer.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s at %s: %w", peer.Name, peer.Endpoint, err)
	}
	defer conn.Close()

	sc, err := noise.Dial(ctx, conn, n.config.Identity.TransportKeys(), peer.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("handshake with %s failed: %w", peer.Name, err)
	}
	deadline, _ := ctx.Deadline()
	_ = sc.SetDeadline(deadline)

	b, err := encodeEnvelope(req)
	if err != nil {
		return nil, err
	}
	if err := sc.WriteFrame(b); err != nil {
		return nil, fmt.Errorf("failed to send %s to %s: %w", req.Type, peer.Name, err)
	}

	frame, err := sc.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("no reply from %s: %w", peer.Name, err)
	}
	resp, err := decodeEnvelope(frame)
	if err != nil {
		return nil, err
	}
	if resp.Type == typeError {
		return nil, fmt.Errorf("%s rejected %s: %s", peer.Name, req.Type, resp.Error)
	}
	return resp, nil
}

// announce publishes this node to every seed. It fails only if no seed
// accepted the announcement.
func (n *Node) announce(ctx context.Context) error {
	req := &envelope{Type: typeAnnounce, Peer: toWire(n.Info())}

	var result *multierror.Error
	for _, seed := range n.config.Seeds {
		if _, err := n.exchange(ctx, seed, req); err != nil {
			result = multierror.Append(result, err)
			n.logger.WithFields(logrus.Fields{
				"function": "announce",
				"seed":     seed.Name,
				"error":    err.Error(),
			}).Warn("Seed rejected announcement")
		}
	}
	failed := 0
	if result != nil {
		failed = len(result.Errors)
	}
	if failed == len(n.config.Seeds) {
		return fmt.Errorf("no seed accepted announcement of %s: %w", n.Name(), result.ErrorOrNil())
	}

	n.logger.WithFields(logrus.Fields{
		"function": "announce",
		"seeds":    len(n.config.Seeds) - failed,
	}).Debug("Announced to seeds")
	return nil
}

// resolve finds the peer owning address, consulting the cache before the seeds.
func (n *Node) resolve(ctx context.Context, address string) (interfaces.PeerInfo, error) {
	key := strings.ToLower(address)
	if v, ok := n.peers.Get(key); ok {
		return v.(interfaces.PeerInfo), nil
	}

	req := &envelope{Type: typeLookup, Address: address}
	for _, seed := range n.config.Seeds {
		resp, err := n.exchange(ctx, seed, req)
		if err != nil || resp.Type != typePeer {
			continue
		}
		peer, err := fromWire(resp.Peer)
		if err != nil || !strings.EqualFold(peer.Address, address) {
			continue
		}
		n.peers.Add(key, peer)
		return peer, nil
	}
	return interfaces.PeerInfo{}, fmt.Errorf("%w: %s", ErrPeerNotFound, address)
}

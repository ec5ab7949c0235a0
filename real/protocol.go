package real

import (
	"encoding/json"
	"fmt"

	"github.com/opd-ai/agentnet/crypto"
	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/limits"
)

type envelopeType string

const (
	typeAnnounce envelopeType = "announce"
	typeLookup   envelopeType = "lookup"
	typePeer     envelopeType = "peer"
	typeMessage  envelopeType = "message"
	typeAck      envelopeType = "ack"
	typeError    envelopeType = "error"
)

type wirePeer struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	Endpoint  string `json:"endpoint"`
	PublicKey string `json:"publicKey"`
}

type envelope struct {
	Type    envelopeType `json:"type"`
	Peer    *wirePeer    `json:"peer,omitempty"`
	Address string       `json:"address,omitempty"`
	ID      string       `json:"id,omitempty"`
	From    string       `json:"from,omitempty"`
	To      string       `json:"to,omitempty"`
	Content string       `json:"content,omitempty"`
	Error   string       `json:"error,omitempty"`
}

func toWire(p interfaces.PeerInfo) *wirePeer {
	kp := crypto.KeyPair{Public: p.PublicKey}
	return &wirePeer{
		Name:      p.Name,
		Address:   p.Address,
		Endpoint:  p.Endpoint,
		PublicKey: kp.PublicHex(),
	}
}

func fromWire(w *wirePeer) (interfaces.PeerInfo, error) {
	if w == nil {
		return interfaces.PeerInfo{}, fmt.Errorf("envelope carries no peer")
	}
	if w.Address == "" || w.Endpoint == "" {
		return interfaces.PeerInfo{}, fmt.Errorf("peer %q is missing address or endpoint", w.Name)
	}
	key, err := crypto.ParsePublicKey(w.PublicKey)
	if err != nil {
		return interfaces.PeerInfo{}, fmt.Errorf("peer %q: %w", w.Name, err)
	}
	return interfaces.PeerInfo{
		Name:      w.Name,
		Address:   w.Address,
		Endpoint:  w.Endpoint,
		PublicKey: key,
	}, nil
}

func encodeEnvelope(e *envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if err := limits.ValidateMessageSize(b, limits.MaxEnvelope); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeEnvelope(b []byte) (*envelope, error) {
	if err := limits.ValidateMessageSize(b, limits.MaxEnvelope); err != nil {
		return nil, err
	}
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("envelope has no type")
	}
	return &e, nil
}

func errorEnvelope(format string, args ...interface{}) *envelope {
	return &envelope{Type: typeError, Error: fmt.Sprintf(format, args...)}
}

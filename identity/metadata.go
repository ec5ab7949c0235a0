package identity

import (
	"encoding/json"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// Role distinguishes relay-only bootstrap nodes from agents.
type Role string

const (
	RoleBootstrap Role = "bootstrap"
	RoleAgent     Role = "agent"
)

// DefaultCapabilities is the topic set declared by test agents.
var DefaultCapabilities = []string{"market_sentiment", "financial_news", "market_trends"}

// Metadata is the fixed description a node publishes about itself.
type Metadata struct {
	Role         Role
	Capabilities []string
	Creator      string
	TokenAddress *ethtypes.Address0xHex
}

// BootstrapMetadata describes a relay node: no declared capabilities.
func BootstrapMetadata() Metadata {
	return Metadata{Role: RoleBootstrap}
}

// AgentMetadata describes an agent with the given creator label and topics.
func AgentMetadata(creator string, capabilities []string) Metadata {
	m := Metadata{Role: RoleAgent, Creator: creator}
	m.Capabilities = append([]string(nil), capabilities...)
	return m
}

// CanProcess reports whether the node declared the topic.
func (m Metadata) CanProcess(topic string) bool {
	for _, c := range m.Capabilities {
		if c == topic {
			return true
		}
	}
	return false
}

type capabilitiesJSON struct {
	CanProcess []string `json:"canProcess"`
}

type metadataJSON struct {
	Creators     string                 `json:"creators,omitempty"`
	TokenAddress *ethtypes.Address0xHex `json:"tokenAddress"`
	Capabilities *capabilitiesJSON      `json:"capabilities,omitempty"`
}

// MarshalJSON renders the registry form of the metadata.
func (m Metadata) MarshalJSON() ([]byte, error) {
	out := metadataJSON{
		Creators:     m.Creator,
		TokenAddress: m.TokenAddress,
	}
	if m.Role == RoleAgent {
		caps := m.Capabilities
		if caps == nil {
			caps = []string{}
		}
		out.Capabilities = &capabilitiesJSON{CanProcess: caps}
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the registry form; a capabilities block marks an agent.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var in metadataJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Metadata{Role: RoleBootstrap, Creator: in.Creators, TokenAddress: in.TokenAddress}
	if in.Capabilities != nil {
		m.Role = RoleAgent
		m.Capabilities = append([]string(nil), in.Capabilities.CanProcess...)
	}
	return nil
}

func (m Metadata) clone() Metadata {
	c := m
	if m.Capabilities != nil {
		c.Capabilities = append([]string(nil), m.Capabilities...)
	}
	if m.TokenAddress != nil {
		addr := *m.TokenAddress
		c.TokenAddress = &addr
	}
	return c
}

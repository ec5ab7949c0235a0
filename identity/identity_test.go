package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctIdentities(t *testing.T) {
	a, err := Generate("test-agent-0", "1.0.0", AgentMetadata("Test Framework Agent 0", DefaultCapabilities))
	require.NoError(t, err)
	b, err := Generate("test-agent-1", "1.0.0", AgentMetadata("Test Framework Agent 1", DefaultCapabilities))
	require.NoError(t, err)

	assert.NotEqual(t, a.AddressHex(), b.AddressHex())
	assert.NotEqual(t, a.TransportKeys().Public, b.TransportKeys().Public)
	assert.True(t, strings.HasPrefix(a.AddressHex(), "0x"))
	assert.Equal(t, "test-agent-0", a.Name())
	assert.Equal(t, "1.0.0", a.Version())
	assert.Contains(t, a.String(), a.AddressHex())
}

func TestGenerateRequiresName(t *testing.T) {
	_, err := Generate("", "1.0.0", BootstrapMetadata())
	assert.Error(t, err)
}

func TestMetadataIsCopied(t *testing.T) {
	caps := []string{"a", "b"}
	id, err := Generate("n", "1", AgentMetadata("c", caps))
	require.NoError(t, err)

	caps[0] = "mutated"
	md := id.Metadata()
	assert.Equal(t, []string{"a", "b"}, md.Capabilities)

	md.Capabilities[1] = "mutated"
	assert.Equal(t, []string{"a", "b"}, id.Metadata().Capabilities)
}

func TestParseSigningKey(t *testing.T) {
	id, err := Generate("funder", "1", BootstrapMetadata())
	require.NoError(t, err)

	keyHex := "0x" + strings.Repeat("11", 32)
	kp, err := ParseSigningKey(keyHex)
	require.NoError(t, err)
	again, err := ParseSigningKey(strings.TrimPrefix(keyHex, "0x"))
	require.NoError(t, err)
	assert.Equal(t, kp.Address, again.Address)
	assert.NotEqual(t, id.Address(), kp.Address)

	_, err = ParseSigningKey("0x1234")
	assert.Error(t, err)
	_, err = ParseSigningKey("not-hex")
	assert.Error(t, err)
}

func TestMetadataJSON(t *testing.T) {
	tests := []struct {
		name string
		md   Metadata
		want string
	}{
		{
			name: "bootstrap has no capabilities",
			md:   BootstrapMetadata(),
			want: `{"tokenAddress":null}`,
		},
		{
			name: "agent declares topics and creator",
			md:   AgentMetadata("Test Framework Agent 2", DefaultCapabilities),
			want: `{"creators":"Test Framework Agent 2","tokenAddress":null,"capabilities":{"canProcess":["market_sentiment","financial_news","market_trends"]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.md)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			var parsed Metadata
			require.NoError(t, json.Unmarshal(b, &parsed))
			assert.Equal(t, tt.md.Role, parsed.Role)
			assert.Equal(t, tt.md.Creator, parsed.Creator)
			assert.Equal(t, len(tt.md.Capabilities), len(parsed.Capabilities))
		})
	}
}

func TestMetadataTokenAddress(t *testing.T) {
	md := AgentMetadata("c", nil)
	md.TokenAddress = ethtypes.MustNewAddress("0x1f9090aae28b8a3dceadf281b0f12828e676c326")

	b, err := json.Marshal(md)
	require.NoError(t, err)
	assert.Contains(t, string(b), "0x1f9090aae28b8a3dceadf281b0f12828e676c326")
	assert.Contains(t, string(b), `"canProcess":[]`)
	assert.False(t, md.CanProcess("financial_news"))
	assert.True(t, AgentMetadata("c", DefaultCapabilities).CanProcess("financial_news"))
}

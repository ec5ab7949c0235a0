package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTestConfig(t *testing.T) {
	config := DefaultTestConfig()
	require.NotNil(t, config)

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"BootstrapCount", config.BootstrapCount, 2},
		{"AgentCount", config.AgentCount, 3},
		{"BootstrapPort", config.BootstrapPort, BootstrapDefaultPort},
		{"AgentPort", config.AgentPort, AgentDefaultPort},
		{"ListenHost", config.ListenHost, "127.0.0.1"},
		{"NodeVersion", config.NodeVersion, "1.0.0"},
		{"OverallTimeout", config.OverallTimeout, 5 * time.Minute},
		{"SettleTimeout", config.SettleTimeout, 5 * time.Second},
		{"ParallelSends", config.ParallelSends, false},
		{"MaxMessageSize", config.MaxMessageSize, "4KiB"},
		{"FundingAmount", config.FundingAmount, "1000000000000000"},
		{"LogLevel", config.LogLevel, "INFO"},
		{"LogFile", config.LogFile, ""},
		{"VerboseOutput", config.VerboseOutput, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestTestConfigValidate(t *testing.T) {
	chain := func(c *TestConfig) {
		c.Simulate = false
		c.RegistryAddress = "0x5fbdb2315678afecb367f032d93f642f64180aa3"
		c.RPCURL = "http://127.0.0.1:8545"
		c.FunderKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	}

	tests := []struct {
		name    string
		mutate  func(c *TestConfig)
		wantErr string
	}{
		{"simulated defaults", func(c *TestConfig) {}, ""},
		{"chain settings complete", chain, ""},
		{"chain without registry", func(c *TestConfig) { chain(c); c.RegistryAddress = "" }, "RegistryAddress"},
		{"chain without rpc url", func(c *TestConfig) { chain(c); c.RPCURL = "" }, "RPCURL"},
		{"chain without funder key", func(c *TestConfig) { chain(c); c.FunderKey = "" }, "FunderKey"},
		{"malformed registry", func(c *TestConfig) { chain(c); c.RegistryAddress = "registry" }, "RegistryAddress"},
		{"malformed rpc url", func(c *TestConfig) { chain(c); c.RPCURL = "not a url" }, "RPCURL"},
		{"negative agents", func(c *TestConfig) { c.AgentCount = -1 }, "AgentCount"},
		{"privileged port", func(c *TestConfig) { c.BootstrapPort = 80 }, "BootstrapPort"},
		{"zero settle timeout", func(c *TestConfig) { c.SettleTimeout = 0 }, "SettleTimeout"},
		{"unknown log level", func(c *TestConfig) { c.LogLevel = "TRACE" }, "LogLevel"},
		{"unknown log format", func(c *TestConfig) { c.LogFormat = "xml" }, "LogFormat"},
		{"bad metrics address", func(c *TestConfig) { c.MetricsAddress = "nope" }, "MetricsAddress"},
		{"overlapping ports", func(c *TestConfig) { c.AgentPort = c.BootstrapPort + 1 }, "overlap"},
		{"agent range past max port", func(c *TestConfig) { c.AgentPort = 65534 }, "agent ports"},
		{"oversized messages", func(c *TestConfig) { c.MaxMessageSize = "1MiB" }, "max message size"},
		{"unparseable message size", func(c *TestConfig) { c.MaxMessageSize = "lots" }, "max message size"},
		{"zero funding", func(c *TestConfig) { c.FundingAmount = "0" }, "funding amount"},
		{"no agents skips agent ports", func(c *TestConfig) { c.AgentCount = 0; c.AgentPort = c.BootstrapPort }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultTestConfig()
			config.Simulate = true
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTestConfigNormalize(t *testing.T) {
	config := DefaultTestConfig()
	config.Simulate = true
	config.LogLevel = " debug "
	config.LogFormat = "JSON"

	require.NoError(t, config.Validate())
	assert.Equal(t, "DEBUG", config.LogLevel)
	assert.Equal(t, "json", config.LogFormat)
}

func TestTestConfigParsers(t *testing.T) {
	config := DefaultTestConfig()
	config.MaxMessageSize = "1KiB"
	config.FundingAmount = "2500"

	size, err := config.MaxMessageBytes()
	require.NoError(t, err)
	assert.Equal(t, 1024, size)

	wei, err := config.FundingWei()
	require.NoError(t, err)
	assert.Equal(t, int64(2500), wei.Int64())
}

func TestTestConfigRedacted(t *testing.T) {
	config := DefaultTestConfig()
	config.FunderKey = "secret"

	redacted := config.Redacted()
	assert.Equal(t, "<redacted>", redacted.FunderKey)
	assert.Equal(t, "secret", config.FunderKey)

	config.FunderKey = ""
	assert.Empty(t, config.Redacted().FunderKey)
}

func TestValidateNilConfig(t *testing.T) {
	var config *TestConfig
	assert.Error(t, config.Validate())
}

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/agentnet/testnet/internal"
)

// execute runs the CLI with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// effectiveConfig runs the config subcommand and decodes its YAML.
func effectiveConfig(t *testing.T, args ...string) map[string]interface{} {
	t.Helper()
	out, err := execute(t, append([]string{"config"}, args...)...)
	require.NoError(t, err, out)

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	return decoded
}

func TestConfigCommandDefaults(t *testing.T) {
	config := effectiveConfig(t, "--simulate")

	tests := []struct {
		key      string
		expected interface{}
	}{
		{"simulate", true},
		{"bootstrap-count", 2},
		{"agent-count", 3},
		{"bootstrap-port", 14221},
		{"agent-port", 14230},
		{"settle-timeout", "5s"},
		{"overall-timeout", "5m0s"},
		{"max-message-size", "4KiB"},
		{"log-level", "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, config[tt.key])
		})
	}
}

func TestConfigCommandRedactsFunderKey(t *testing.T) {
	out, err := execute(t, "config", "--simulate", "--funder-key", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Contains(t, out, "funder-key: <redacted>")
	assert.NotContains(t, out, "ac0974bec39a")
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("AGENTNET_SIMULATE", "true")
	t.Setenv("AGENTNET_AGENT_COUNT", "5")
	t.Setenv("AGENTNET_SETTLE_TIMEOUT", "750ms")

	config := effectiveConfig(t)
	assert.Equal(t, true, config["simulate"])
	assert.Equal(t, 5, config["agent-count"])
	assert.Equal(t, "750ms", config["settle-timeout"])
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "testnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
simulate: true
agent-count: 4
log-format: json
parallel-sends: true
`), 0o600))

	config := effectiveConfig(t, "--config", path)
	assert.Equal(t, 4, config["agent-count"])
	assert.Equal(t, "json", config["log-format"])
	assert.Equal(t, true, config["parallel-sends"])

	// Flags win over the file.
	config = effectiveConfig(t, "--config", path, "--agent-count", "2")
	assert.Equal(t, 2, config["agent-count"])
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{"chain mode without endpoints", []string{"config"}, "RPCURL"},
		{"overlapping ports", []string{"config", "--simulate", "--agent-port", "14222"}, "overlap"},
		{"bad log level", []string{"config", "--simulate", "--log-level", "LOUD"}, "LogLevel"},
		{"missing config file", []string{"config", "--config", "/nonexistent/testnet.yaml"}, "failed to read config file"},
		{"bad duration", []string{"config", "--simulate", "--settle-timeout", "soon"}, "invalid argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestRunSimulated(t *testing.T) {
	out, err := execute(t,
		"--simulate",
		"--settle-timeout", "2s",
		"--log-level", "ERROR",
		"--verbose=false",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Test suite completed successfully")
	assert.Contains(t, out, "1 tests, 1 passed, 0 failed")
}

func TestRunSimulatedParallel(t *testing.T) {
	out, err := execute(t,
		"--simulate",
		"--agent-count", "4",
		"--parallel-sends",
		"--send-rate", "500",
		"--log-level", "ERROR",
		"--verbose=false",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 passed")
}

func TestRunReportsSetupFailure(t *testing.T) {
	_, err := execute(t,
		"--rpc-url", "http://127.0.0.1:1",
		"--registry", "0x5fbdb2315678afecb367f032d93f642f64180aa3",
		"--funder-key", "not-hex",
		"--log-level", "ERROR",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to set up environment")
	assert.Equal(t, 1, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errTestsFailed))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name     string
		summary  internal.TestSummary
		err      error
		contains string
	}{
		{"passed", internal.TestSummary{TotalTests: 1, PassedTests: 1, Duration: time.Second}, nil, "completed successfully"},
		{"failed test", internal.TestSummary{TotalTests: 1, FailedTests: 1}, nil, "completed with failures"},
		{"fatal error", internal.TestSummary{}, errors.New("funding failed"), "Test execution failed: funding failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printSummary(&buf, tt.summary, tt.err)
			assert.Contains(t, buf.String(), tt.contains)
		})
	}
}

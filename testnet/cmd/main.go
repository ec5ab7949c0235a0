// Package main provides the command-line interface for the agent network
// integration test harness.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/agentnet/factory"
	"github.com/opd-ai/agentnet/testnet/internal"
)

// envPrefix prefixes every environment variable the CLI reads, e.g.
// AGENTNET_FUNDER_KEY or AGENTNET_AGENT_COUNT.
const envPrefix = "AGENTNET"

// errTestsFailed is returned when the run finished but a test failed.
var errTestsFailed = errors.New("test suite completed with failures")

// newRootCommand builds the CLI. Flags, AGENTNET_* variables and the optional
// YAML file all feed v, in that order of precedence.
func newRootCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:   "agentnet-testnet",
		Short: "Agent network integration test suite",
		Long: `Provisions bootstrap and agent nodes, funds and registers every agent,
runs an all-pairs message exchange and reports the results.`,
		Example: `  # Run against an in-process simulated network and ledger
  agentnet-testnet --simulate

  # Run against a chain
  agentnet-testnet --rpc-url http://127.0.0.1:8545 --registry 0x5fbd... --funder-key $KEY

  # Show the effective configuration
  agentnet-testnet config --config testnet.yaml`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfigFile(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(v)
			if err != nil {
				return err
			}
			summary, err := runHarness(cmd.Context(), config)
			printSummary(cmd.OutOrStdout(), summary, err)
			if err != nil {
				return err
			}
			if !summary.AllPassed() {
				return errTestsFailed
			}
			return nil
		},
	}

	addFlags(root)
	_ = v.BindPFlags(root.PersistentFlags())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(newConfigCommand(v))
	return root
}

// addFlags registers one persistent flag per TestConfig key, defaulting to
// DefaultTestConfig.
func addFlags(cmd *cobra.Command) {
	d := internal.DefaultTestConfig()
	f := cmd.PersistentFlags()

	f.String("config", "", "YAML configuration file")

	// Collaborators
	f.Bool("simulate", d.Simulate, "Use an in-process simulated network, ledger and registry")
	f.String("registry", d.RegistryAddress, "Agent registry contract address")
	f.String("rpc-url", d.RPCURL, "JSON-RPC endpoint of the chain")
	f.String("funder-key", d.FunderKey, "Hex private key of the funding wallet")

	// Network layout
	f.Int("bootstrap-count", d.BootstrapCount, "Number of bootstrap nodes")
	f.Int("agent-count", d.AgentCount, "Number of agents")
	f.Uint16("bootstrap-port", d.BootstrapPort, "Port of the first bootstrap node")
	f.Uint16("agent-port", d.AgentPort, "Port of the first agent")
	f.String("listen-host", d.ListenHost, "Interface nodes listen on")
	f.String("node-version", d.NodeVersion, "Version registered for every node")

	// Timeouts
	f.Duration("overall-timeout", d.OverallTimeout, "Overall test timeout")
	f.Duration("settle-timeout", d.SettleTimeout, "Time allowed for every message to arrive")
	f.Duration("receipt-poll-interval", d.ReceiptPollInterval, "Interval between receipt polls")

	// Message test
	f.Float64("send-rate", d.SendRate, "Maximum messages per second (0 for unlimited)")
	f.Bool("parallel-sends", d.ParallelSends, "Send messages concurrently")
	f.Int("max-parallel-sends", d.MaxParallelSends, "Concurrent sends when --parallel-sends is set")
	f.String("max-message-size", d.MaxMessageSize, "Largest test payload, e.g. 1KiB")
	f.String("funding-amount", d.FundingAmount, "Wei sent to each agent with no balance")

	// Logging
	f.String("log-level", d.LogLevel, "Log level (DEBUG, INFO, WARN, ERROR)")
	f.String("log-format", d.LogFormat, "Log format (text, json)")
	f.String("log-file", d.LogFile, "Log file path (default: stderr)")
	f.Bool("verbose", d.VerboseOutput, "Log the effective configuration")

	f.String("metrics-addr", d.MetricsAddress, "Serve /metrics, /status and /summary on this address")
}

func newConfigCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig(v)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(config.Redacted())
			if err != nil {
				return fmt.Errorf("failed to render configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func readConfigFile(v *viper.Viper) error {
	path := v.GetString("config")
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// loadConfig decodes and validates the merged configuration.
func loadConfig(v *viper.Viper) (*internal.TestConfig, error) {
	config := internal.DefaultTestConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// runHarness builds the collaborators and runs one full harness sequence.
func runHarness(ctx context.Context, config *internal.TestConfig) (internal.TestSummary, error) {
	env, err := factory.NewEnvironment(ctx, factory.EnvironmentConfig{
		Simulate:            config.Simulate,
		RPCEndpoint:         config.RPCURL,
		FunderKey:           config.FunderKey,
		RegistryAddress:     config.RegistryAddress,
		ReceiptPollInterval: config.ReceiptPollInterval,
	})
	if err != nil {
		return internal.TestSummary{}, fmt.Errorf("failed to set up environment: %w", err)
	}
	defer env.Close()

	harness, err := internal.NewHarness(config, env.Ledger, env.NewNode)
	if err != nil {
		return internal.TestSummary{}, err
	}
	return harness.Run(ctx)
}

func printSummary(w io.Writer, summary internal.TestSummary, err error) {
	switch {
	case err != nil:
		fmt.Fprintf(w, "\n❌ Test execution failed: %v\n", err)
	case !summary.AllPassed():
		fmt.Fprintln(w, "\n❌ Test suite completed with failures")
	default:
		fmt.Fprintln(w, "\n🎉 Test suite completed successfully!")
	}
	fmt.Fprintf(w, "\n📊 Summary: %d tests, %d passed, %d failed (test time: %v)\n",
		summary.TotalTests, summary.PassedTests, summary.FailedTests, summary.Duration)
}

// exitCode is 0 only when the run completed and every recorded test passed.
func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCommand(viper.New()).ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}

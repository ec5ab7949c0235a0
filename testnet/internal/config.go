package internal

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/opd-ai/agentnet/limits"
)

// TestConfig holds configuration for a harness run. The mapstructure keys are
// the CLI flag names so viper can bind flags, environment and YAML uniformly.
type TestConfig struct {
	// Collaborators
	Simulate        bool   `mapstructure:"simulate" yaml:"simulate"`
	RegistryAddress string `mapstructure:"registry" yaml:"registry" validate:"omitempty,eth_addr"`
	RPCURL          string `mapstructure:"rpc-url" yaml:"rpc-url" validate:"omitempty,url"`
	FunderKey       string `mapstructure:"funder-key" yaml:"funder-key"`

	// Network layout
	BootstrapCount int    `mapstructure:"bootstrap-count" yaml:"bootstrap-count" validate:"gte=0,lte=64"`
	AgentCount     int    `mapstructure:"agent-count" yaml:"agent-count" validate:"gte=0,lte=256"`
	BootstrapPort  uint16 `mapstructure:"bootstrap-port" yaml:"bootstrap-port" validate:"gte=1024"`
	AgentPort      uint16 `mapstructure:"agent-port" yaml:"agent-port" validate:"gte=1024"`
	ListenHost     string `mapstructure:"listen-host" yaml:"listen-host" validate:"required,ip"`
	NodeVersion    string `mapstructure:"node-version" yaml:"node-version" validate:"required"`

	// Timeouts
	OverallTimeout      time.Duration `mapstructure:"overall-timeout" yaml:"overall-timeout" validate:"gt=0"`
	SettleTimeout       time.Duration `mapstructure:"settle-timeout" yaml:"settle-timeout" validate:"gt=0"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt-poll-interval" yaml:"receipt-poll-interval" validate:"gt=0"`

	// Message test
	SendRate         float64 `mapstructure:"send-rate" yaml:"send-rate" validate:"gte=0"`
	ParallelSends    bool    `mapstructure:"parallel-sends" yaml:"parallel-sends"`
	MaxParallelSends int     `mapstructure:"max-parallel-sends" yaml:"max-parallel-sends" validate:"gte=1"`
	MaxMessageSize   string  `mapstructure:"max-message-size" yaml:"max-message-size" validate:"required"`

	// Funding amount in wei, decimal.
	FundingAmount string `mapstructure:"funding-amount" yaml:"funding-amount" validate:"required,numeric"`

	// Logging
	LogLevel      string `mapstructure:"log-level" yaml:"log-level" validate:"oneof=DEBUG INFO WARN ERROR"`
	LogFormat     string `mapstructure:"log-format" yaml:"log-format" validate:"oneof=text json"`
	LogFile       string `mapstructure:"log-file" yaml:"log-file"`
	VerboseOutput bool   `mapstructure:"verbose" yaml:"verbose"`

	// Status server; empty disables it.
	MetricsAddress string `mapstructure:"metrics-addr" yaml:"metrics-addr" validate:"omitempty,hostname_port"`
}

// DefaultTestConfig returns a default configuration for the test suite.
func DefaultTestConfig() *TestConfig {
	return &TestConfig{
		BootstrapCount:      2,
		AgentCount:          3,
		BootstrapPort:       BootstrapDefaultPort,
		AgentPort:           AgentDefaultPort,
		ListenHost:          "127.0.0.1",
		NodeVersion:         "1.0.0",
		OverallTimeout:      5 * time.Minute,
		SettleTimeout:       5 * time.Second,
		ReceiptPollInterval: 500 * time.Millisecond,
		MaxParallelSends:    4,
		MaxMessageSize:      "4KiB",
		FundingAmount:       DefaultFundingAmount.String(),
		LogLevel:            "INFO",
		LogFormat:           "text",
		VerboseOutput:       true,
	}
}

var configValidator = func() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateCollaborators, TestConfig{})
	return v
}()

// validateCollaborators requires the chain settings unless the run is simulated.
func validateCollaborators(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(TestConfig)
	if cfg.Simulate {
		return
	}
	if cfg.RegistryAddress == "" {
		sl.ReportError(cfg.RegistryAddress, "RegistryAddress", "RegistryAddress", "required_unless_simulate", "")
	}
	if cfg.RPCURL == "" {
		sl.ReportError(cfg.RPCURL, "RPCURL", "RPCURL", "required_unless_simulate", "")
	}
	if cfg.FunderKey == "" {
		sl.ReportError(cfg.FunderKey, "FunderKey", "FunderKey", "required_unless_simulate", "")
	}
}

// Normalize upper-cases the log level and lower-cases the log format.
func (c *TestConfig) Normalize() {
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate checks field constraints and the port layout.
func (c *TestConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("test configuration is nil")
	}
	c.Normalize()
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid test configuration: %w", err)
	}

	var bootstrap, agents *PortRange
	if c.BootstrapCount > 0 {
		r, err := NewPortRange(c.BootstrapPort, c.BootstrapCount)
		if err != nil {
			return fmt.Errorf("bootstrap ports: %w", err)
		}
		bootstrap = &r
	}
	if c.AgentCount > 0 {
		r, err := NewPortRange(c.AgentPort, c.AgentCount)
		if err != nil {
			return fmt.Errorf("agent ports: %w", err)
		}
		agents = &r
	}
	if bootstrap != nil && agents != nil && bootstrap.Overlaps(*agents) {
		return fmt.Errorf("bootstrap ports %s overlap agent ports %s", bootstrap, agents)
	}

	if _, err := c.MaxMessageBytes(); err != nil {
		return err
	}
	if _, err := c.FundingWei(); err != nil {
		return err
	}
	return nil
}

// MaxMessageBytes parses MaxMessageSize. The result never exceeds
// limits.MaxMessageContent.
func (c *TestConfig) MaxMessageBytes() (int, error) {
	n, err := limits.ParseSize(c.MaxMessageSize)
	if err != nil {
		return 0, fmt.Errorf("max message size: %w", err)
	}
	return n, nil
}

// FundingWei parses FundingAmount.
func (c *TestConfig) FundingWei() (*big.Int, error) {
	v, ok := new(big.Int).SetString(c.FundingAmount, 10)
	if !ok || v.Sign() <= 0 {
		return nil, fmt.Errorf("funding amount must be a positive integer in wei, got %q", c.FundingAmount)
	}
	return v, nil
}

// Redacted returns a copy safe to print.
func (c *TestConfig) Redacted() *TestConfig {
	out := *c
	if out.FunderKey != "" {
		out.FunderKey = "<redacted>"
	}
	return &out
}

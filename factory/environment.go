package factory

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/ledger"
	"github.com/opd-ai/agentnet/real"
	"github.com/opd-ai/agentnet/registry"
	sim "github.com/opd-ai/agentnet/testing"
)

// DefaultSimulatedFunds is the operator balance of a simulated ledger: 1 ETH.
var DefaultSimulatedFunds = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// EnvironmentConfig selects and configures the collaborators.
type EnvironmentConfig struct {
	Simulate            bool
	RPCEndpoint         string
	FunderKey           string
	RegistryAddress     string
	ReceiptPollInterval time.Duration
}

// Option customizes NewEnvironment.
type Option func(*options)

type options struct {
	simulatedFunds *big.Int
	latency        time.Duration
	nodeOptions    *real.NodeOptions
}

// WithSimulatedFunds sets the operator balance of a simulated ledger.
func WithSimulatedFunds(wei *big.Int) Option {
	return func(o *options) { o.simulatedFunds = wei }
}

// WithSimulatedLatency delays every simulated delivery by d.
func WithSimulatedLatency(d time.Duration) Option {
	return func(o *options) { o.latency = d }
}

// WithNodeOptions overrides the options of real nodes.
func WithNodeOptions(opts *real.NodeOptions) Option {
	return func(o *options) { o.nodeOptions = opts }
}

// Environment is the set of collaborators for one harness run.
type Environment struct {
	Ledger    interfaces.ILedger
	NewNode   interfaces.NodeConstructor
	Simulated bool

	// Set only in simulated environments.
	Network   *sim.SimulatedNetwork
	SimLedger *sim.SimulatedLedger
	Registry  *sim.SimulatedRegistry

	closers []func() error
}

// Close releases resources held by the environment.
func (e *Environment) Close() error {
	var result *multierror.Error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	e.closers = nil
	return result.ErrorOrNil()
}

// NewEnvironment builds simulated or real collaborators from cfg.
func NewEnvironment(ctx context.Context, cfg EnvironmentConfig, opts ...Option) (*Environment, error) {
	o := &options{simulatedFunds: DefaultSimulatedFunds}
	for _, opt := range opts {
		opt(o)
	}

	logrus.WithFields(logrus.Fields{
		"function": "NewEnvironment",
		"simulate": cfg.Simulate,
		"rpc_url":  cfg.RPCEndpoint,
		"registry": cfg.RegistryAddress,
	}).Info("Creating harness environment")

	if cfg.Simulate {
		return newSimulatedEnvironment(cfg, o)
	}
	return newRealEnvironment(ctx, cfg, o)
}

func newSimulatedEnvironment(cfg EnvironmentConfig, o *options) (*Environment, error) {
	operator, err := operatorKey(cfg.FunderKey)
	if err != nil {
		return nil, err
	}

	reg := sim.NewSimulatedRegistry()
	network := sim.NewSimulatedNetwork(reg)
	network.SetLatency(o.latency)
	simLedger := sim.NewSimulatedLedger(operator.Address.String(), o.simulatedFunds)

	return &Environment{
		Ledger:    simLedger,
		NewNode:   network.NodeConstructor(),
		Simulated: true,
		Network:   network,
		SimLedger: simLedger,
		Registry:  reg,
		closers: []func() error{func() error {
			network.Wait()
			return nil
		}},
	}, nil
}

func newRealEnvironment(ctx context.Context, cfg EnvironmentConfig, o *options) (*Environment, error) {
	switch {
	case cfg.RPCEndpoint == "":
		return nil, fmt.Errorf("RPC endpoint is required for a real environment")
	case cfg.FunderKey == "":
		return nil, fmt.Errorf("funder key is required for a real environment")
	case cfg.RegistryAddress == "":
		return nil, fmt.Errorf("registry address is required for a real environment")
	}

	funder, err := identity.ParseSigningKey(cfg.FunderKey)
	if err != nil {
		return nil, fmt.Errorf("invalid funder key: %w", err)
	}

	conf := ledger.DefaultConfig(cfg.RPCEndpoint)
	if cfg.ReceiptPollInterval > 0 {
		conf.ReceiptPollInterval = cfg.ReceiptPollInterval
	}
	client, err := ledger.NewClient(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger: %w", err)
	}

	registryFor := func(nc interfaces.NodeConfig) interfaces.IRegistry {
		address := nc.RegistryAddress
		if address == "" {
			address = cfg.RegistryAddress
		}
		return registry.NewContractRegistry(ledger.NewWallet(client, nc.Identity.SigningKey()), address)
	}

	return &Environment{
		Ledger:  ledger.NewWallet(client, funder),
		NewNode: real.Constructor(registryFor, o.nodeOptions),
	}, nil
}

func operatorKey(hexKey string) (*secp256k1.KeyPair, error) {
	if hexKey != "" {
		key, err := identity.ParseSigningKey(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid funder key: %w", err)
		}
		return key, nil
	}
	return secp256k1.GenerateSecp256k1KeyPair()
}

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/firefly-signer/pkg/abi"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
	"github.com/opd-ai/agentnet/ledger"
)

var registryABI = abi.ABI{
	// function registerAgent(string name, string version, string metadata) public
	{
		Type: abi.Function,
		Name: "registerAgent",
		Inputs: abi.ParameterArray{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "metadata", Type: "string"},
		},
	},
	// function getAgent(address agent) public view returns (string name, string version, string metadata)
	{
		Type: abi.Function,
		Name: "getAgent",
		Inputs: abi.ParameterArray{
			{Name: "agent", Type: "address"},
		},
		Outputs: abi.ParameterArray{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "metadata", Type: "string"},
		},
	},
}

var (
	registerAgentABI = registryABI.Functions()["registerAgent"]
	getAgentABI      = registryABI.Functions()["getAgent"]
)

// ErrWrongSender is returned when a registration names another account.
var ErrWrongSender = errors.New("registration address does not match the submitting wallet")

type agentRecord struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Metadata string `json:"metadata"`
}

// ContractRegistry registers one agent through a registry contract.
type ContractRegistry struct {
	wallet   *ledger.Wallet
	contract string
}

// NewContractRegistry binds the registry contract at address to wallet.
func NewContractRegistry(wallet *ledger.Wallet, address string) *ContractRegistry {
	return &ContractRegistry{wallet: wallet, contract: address}
}

// EncodeRegistration returns the registerAgent call data for reg.
func EncodeRegistration(ctx context.Context, reg interfaces.Registration) ([]byte, error) {
	metadata, err := json.Marshal(reg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize metadata for %s: %w", reg.Name, err)
	}
	params, err := json.Marshal(agentRecord{
		Name:     reg.Name,
		Version:  reg.Version,
		Metadata: string(metadata),
	})
	if err != nil {
		return nil, err
	}
	return registerAgentABI.EncodeCallDataJSONCtx(ctx, params)
}

// Register implements interfaces.IRegistry. It waits for the transaction to be
// mined and fails if it reverted.
func (r *ContractRegistry) Register(ctx context.Context, reg interfaces.Registration) error {
	if reg.Address != r.wallet.Address() {
		return fmt.Errorf("%w: %s != %s", ErrWrongSender, reg.Address, r.wallet.Address())
	}

	callData, err := EncodeRegistration(ctx, reg)
	if err != nil {
		return fmt.Errorf("failed to encode registration for %s: %w", reg.Name, err)
	}

	tx, err := r.wallet.Submit(ctx, r.contract, nil, callData)
	if err != nil {
		return fmt.Errorf("failed to submit registration for %s: %w", reg.Name, err)
	}

	receipt, err := r.wallet.WaitForTransactionReceipt(ctx, tx)
	if err != nil {
		return fmt.Errorf("registration of %s not confirmed: %w", reg.Name, err)
	}
	if !receipt.Succeeded() {
		return fmt.Errorf("registration of %s reverted in tx %s", reg.Name, tx)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Register",
		"name":     reg.Name,
		"address":  reg.Address,
		"contract": r.contract,
		"tx":       tx,
	}).Info("Agent registered on chain")
	return nil
}

// Lookup implements interfaces.IRegistry with a getAgent call.
func (r *ContractRegistry) Lookup(ctx context.Context, address string) (*interfaces.Registration, error) {
	params, _ := json.Marshal(map[string]string{"agent": address})
	callData, err := getAgentABI.EncodeCallDataJSONCtx(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup of %s: %w", address, err)
	}

	out, err := r.wallet.Client().Call(ctx, r.contract, callData)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotRegistered, address)
	}

	record, err := decodeAgentRecord(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry entry for %s: %w", address, err)
	}
	if record.Name == "" {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrNotRegistered, address)
	}

	var md identity.Metadata
	if err := json.Unmarshal([]byte(record.Metadata), &md); err != nil {
		return nil, fmt.Errorf("invalid metadata for %s: %w", address, err)
	}
	return &interfaces.Registration{
		Address:  address,
		Name:     record.Name,
		Version:  record.Version,
		Metadata: md,
	}, nil
}

func decodeAgentRecord(ctx context.Context, data []byte) (*agentRecord, error) {
	cv, err := getAgentABI.Outputs.DecodeABIDataCtx(ctx, data, 0)
	if err != nil {
		return nil, err
	}
	b, err := abi.NewSerializer().
		SetFormattingMode(abi.FormatAsObjects).
		SerializeJSONCtx(ctx, cv)
	if err != nil {
		return nil, err
	}
	var record agentRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

var _ interfaces.IRegistry = (*ContractRegistry)(nil)

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/rpcbackend"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
)

// ErrEmptyURL is returned when no RPC endpoint is configured.
var ErrEmptyURL = errors.New("ledger RPC URL cannot be empty")

// Config controls the JSON-RPC client.
type Config struct {
	URL                 string
	RequestTimeout      time.Duration
	ReceiptPollInterval time.Duration
	GasEstimateFactor   float64
}

// DefaultConfig returns the client defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:                 url,
		RequestTimeout:      30 * time.Second,
		ReceiptPollInterval: 500 * time.Millisecond,
		GasEstimateFactor:   1.5,
	}
}

// Client issues JSON-RPC calls against one chain.
type Client struct {
	rpc     rpcbackend.RPC
	chainID int64
	conf    Config
}

// NewClient connects to conf.URL over HTTP and reads the chain ID.
func NewClient(ctx context.Context, conf Config) (*Client, error) {
	if conf.URL == "" {
		return nil, ErrEmptyURL
	}
	httpClient := resty.New().
		SetBaseURL(conf.URL).
		SetTimeout(conf.RequestTimeout)
	return WrapRPC(ctx, rpcbackend.NewRPCClient(httpClient), conf)
}

// WrapRPC builds a Client over an existing RPC backend.
func WrapRPC(ctx context.Context, rpc rpcbackend.RPC, conf Config) (*Client, error) {
	if conf.ReceiptPollInterval <= 0 {
		conf.ReceiptPollInterval = DefaultConfig(conf.URL).ReceiptPollInterval
	}
	if conf.GasEstimateFactor < 1.0 {
		conf.GasEstimateFactor = 1.0
	}

	c := &Client{rpc: rpc, conf: conf}
	var chainID ethtypes.HexUint64
	if rpcErr := c.rpc.CallRPC(ctx, &chainID, "eth_chainId"); rpcErr != nil {
		return nil, fmt.Errorf("eth_chainId failed: %w", rpcErr.Error())
	}
	c.chainID = int64(chainID.Uint64())

	logrus.WithFields(logrus.Fields{
		"function": "WrapRPC",
		"url":      conf.URL,
		"chain_id": c.chainID,
	}).Debug("Connected to ledger")
	return c, nil
}

// ChainID returns the chain ID read at construction.
func (c *Client) ChainID() int64 { return c.chainID }

// GetBalance returns the latest balance of address in wei.
func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &balance, "eth_getBalance", address, "latest"); rpcErr != nil {
		return nil, fmt.Errorf("eth_getBalance(%s) failed: %w", address, rpcErr.Error())
	}
	return balance.BigInt(), nil
}

// PendingNonce returns the next nonce for address including mempool transactions.
func (c *Client) PendingNonce(ctx context.Context, address string) (uint64, error) {
	var count ethtypes.HexUint64
	if rpcErr := c.rpc.CallRPC(ctx, &count, "eth_getTransactionCount", address, "pending"); rpcErr != nil {
		return 0, fmt.Errorf("eth_getTransactionCount(%s) failed: %w", address, rpcErr.Error())
	}
	return count.Uint64(), nil
}

// GasPrice returns the node's suggested legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var price ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &price, "eth_gasPrice"); rpcErr != nil {
		return nil, fmt.Errorf("eth_gasPrice failed: %w", rpcErr.Error())
	}
	return price.BigInt(), nil
}

// EstimateGas returns the gas estimate for tx scaled by GasEstimateFactor.
func (c *Client) EstimateGas(ctx context.Context, tx *ethsigner.Transaction) (*big.Int, error) {
	var estimate ethtypes.HexInteger
	if rpcErr := c.rpc.CallRPC(ctx, &estimate, "eth_estimateGas", tx); rpcErr != nil {
		return nil, fmt.Errorf("eth_estimateGas failed: %w", rpcErr.Error())
	}
	factored := new(big.Float).SetInt(estimate.BigInt())
	factored.Mul(factored, big.NewFloat(c.conf.GasEstimateFactor))
	limit, _ := factored.Int(nil)
	return limit, nil
}

// SendRawTransaction submits a signed transaction and returns its hash.
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (interfaces.TxHandle, error) {
	var hash ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &hash, "eth_sendRawTransaction", ethtypes.HexBytes0xPrefix(raw)); rpcErr != nil {
		return "", fmt.Errorf("eth_sendRawTransaction failed: %w", rpcErr.Error())
	}
	return interfaces.TxHandle(hash.String()), nil
}

// Call executes a read-only contract call against the latest block.
func (c *Client) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	toAddr, err := ethtypes.NewAddress(to)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address %q: %w", to, err)
	}
	tx := &ethsigner.Transaction{To: toAddr, Data: ethtypes.HexBytes0xPrefix(data)}

	var result ethtypes.HexBytes0xPrefix
	if rpcErr := c.rpc.CallRPC(ctx, &result, "eth_call", tx, "latest"); rpcErr != nil {
		return nil, fmt.Errorf("eth_call(%s) failed: %w", to, rpcErr.Error())
	}
	return result, nil
}

type txReceiptJSONRPC struct {
	TransactionHash ethtypes.HexBytes0xPrefix `json:"transactionHash"`
	BlockNumber     *ethtypes.HexInteger      `json:"blockNumber"`
	Status          *ethtypes.HexInteger      `json:"status"`
}

// TransactionReceipt returns the receipt of tx, or nil if it is not mined yet.
func (c *Client) TransactionReceipt(ctx context.Context, tx interfaces.TxHandle) (*interfaces.Receipt, error) {
	var receipt *txReceiptJSONRPC
	if rpcErr := c.rpc.CallRPC(ctx, &receipt, "eth_getTransactionReceipt", string(tx)); rpcErr != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt(%s) failed: %w", tx, rpcErr.Error())
	}
	if receipt == nil {
		return nil, nil
	}

	out := &interfaces.Receipt{TxHash: tx, Status: interfaces.ReceiptFailed}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.BigInt().Uint64()
	}
	if receipt.Status != nil && receipt.Status.BigInt().Sign() > 0 {
		out.Status = interfaces.ReceiptSuccess
	}
	return out, nil
}

// WaitForReceipt polls until tx has a receipt or ctx is done.
func (c *Client) WaitForReceipt(ctx context.Context, tx interfaces.TxHandle) (*interfaces.Receipt, error) {
	ticker := time.NewTicker(c.conf.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, tx)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			logrus.WithFields(logrus.Fields{
				"function": "WaitForReceipt",
				"tx":       tx,
				"block":    receipt.BlockNumber,
				"status":   receipt.Status.String(),
			}).Debug("Transaction mined")
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt of %s: %w", tx, ctx.Err())
		case <-ticker.C:
		}
	}
}

func jsonAddress(address string) json.RawMessage {
	b, _ := json.Marshal(address)
	return b
}

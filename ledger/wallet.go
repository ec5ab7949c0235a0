package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hyperledger/firefly-signer/pkg/ethsigner"
	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
	"github.com/hyperledger/firefly-signer/pkg/secp256k1"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
)

// Wallet signs and submits transactions from a single key.
type Wallet struct {
	client *Client
	key    *secp256k1.KeyPair
}

// NewWallet binds key to client.
func NewWallet(client *Client, key *secp256k1.KeyPair) *Wallet {
	return &Wallet{client: client, key: key}
}

// Address returns the wallet's account address.
func (w *Wallet) Address() string {
	return w.key.Address.String()
}

// Client returns the underlying JSON-RPC client.
func (w *Wallet) Client() *Client { return w.client }

// GetBalance implements interfaces.ILedger.
func (w *Wallet) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return w.client.GetBalance(ctx, address)
}

// SendTransaction implements interfaces.ILedger by transferring req.Value to req.To.
func (w *Wallet) SendTransaction(ctx context.Context, req interfaces.TransferRequest) (interfaces.TxHandle, error) {
	if req.Value == nil || req.Value.Sign() <= 0 {
		return "", fmt.Errorf("transfer to %s requires a positive value", req.To)
	}
	return w.Submit(ctx, req.To, req.Value, nil)
}

// WaitForTransactionReceipt implements interfaces.ILedger.
func (w *Wallet) WaitForTransactionReceipt(ctx context.Context, tx interfaces.TxHandle) (*interfaces.Receipt, error) {
	return w.client.WaitForReceipt(ctx, tx)
}

// Submit signs and sends a transaction to `to` carrying value and call data.
// Nonce, gas price and gas limit are filled from the node.
func (w *Wallet) Submit(ctx context.Context, to string, value *big.Int, data []byte) (interfaces.TxHandle, error) {
	toAddr, err := ethtypes.NewAddress(to)
	if err != nil {
		return "", fmt.Errorf("invalid destination address %q: %w", to, err)
	}

	from := w.Address()
	tx := &ethsigner.Transaction{
		From: jsonAddress(from),
		To:   toAddr,
		Data: ethtypes.HexBytes0xPrefix(data),
	}
	if value != nil {
		tx.Value = ethtypes.NewHexInteger(value)
	}

	nonce, err := w.client.PendingNonce(ctx, from)
	if err != nil {
		return "", err
	}
	tx.Nonce = ethtypes.NewHexInteger(new(big.Int).SetUint64(nonce))

	gasPrice, err := w.client.GasPrice(ctx)
	if err != nil {
		return "", err
	}
	tx.GasPrice = ethtypes.NewHexInteger(gasPrice)

	gasLimit, err := w.client.EstimateGas(ctx, tx)
	if err != nil {
		return "", err
	}
	tx.GasLimit = ethtypes.NewHexInteger(gasLimit)

	raw, err := tx.SignLegacyEIP155(w.key, w.client.ChainID())
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction from %s: %w", from, err)
	}

	hash, err := w.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return "", err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Submit",
		"from":     from,
		"to":       to,
		"nonce":    nonce,
		"tx":       hash,
	}).Debug("Transaction submitted")
	return hash, nil
}

var _ interfaces.ILedger = (*Wallet)(nil)

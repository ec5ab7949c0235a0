package testing

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/interfaces"
)

// ErrInsufficientFunds is returned when the operator cannot cover a transfer.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrUnknownTransaction is returned for receipts of transactions never sent.
var ErrUnknownTransaction = errors.New("unknown transaction")

type simulatedTx struct {
	req      interfaces.TransferRequest
	reverted bool
	block    uint64
}

// SimulatedLedger is an in-memory interfaces.ILedger. Transfers come from a
// single operator account and are applied when submitted.
type SimulatedLedger struct {
	mu sync.Mutex

	operator     string
	balances     map[string]*big.Int
	txs          map[interfaces.TxHandle]*simulatedTx
	order        []interfaces.TxHandle
	balanceErr   error
	transferErr  error
	receiptErr   error
	revert       bool
	balanceReads int
}

// NewSimulatedLedger creates a ledger where operator holds balance wei.
func NewSimulatedLedger(operator string, balance *big.Int) *SimulatedLedger {
	logrus.Warn("SIMULATION FUNCTION - NOT A REAL OPERATION")
	l := &SimulatedLedger{
		operator: strings.ToLower(operator),
		balances: make(map[string]*big.Int),
		txs:      make(map[interfaces.TxHandle]*simulatedTx),
	}
	if balance != nil {
		l.balances[l.operator] = new(big.Int).Set(balance)
	}
	return l
}

// Operator returns the funding account address.
func (l *SimulatedLedger) Operator() string { return l.operator }

// SetBalance overrides the balance of address.
func (l *SimulatedLedger) SetBalance(address string, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[strings.ToLower(address)] = new(big.Int).Set(wei)
}

// FailBalanceReads makes GetBalance return err; nil restores it.
func (l *SimulatedLedger) FailBalanceReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceErr = err
}

// FailTransfers makes SendTransaction return err; nil restores it.
func (l *SimulatedLedger) FailTransfers(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transferErr = err
}

// FailReceipts makes WaitForTransactionReceipt return err; nil restores it.
func (l *SimulatedLedger) FailReceipts(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.receiptErr = err
}

// RevertTransfers makes later transfers mine with a failed status and no effect.
func (l *SimulatedLedger) RevertTransfers(revert bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revert = revert
}

// TransactionCount returns the number of submitted transactions.
func (l *SimulatedLedger) TransactionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// BalanceReads returns the number of GetBalance calls.
func (l *SimulatedLedger) BalanceReads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceReads
}

// Transfers returns submitted transfers in order.
func (l *SimulatedLedger) Transfers() []interfaces.TransferRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]interfaces.TransferRequest, 0, len(l.order))
	for _, h := range l.order {
		out = append(out, l.txs[h].req)
	}
	return out
}

// GetBalance implements interfaces.ILedger.
func (l *SimulatedLedger) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceReads++
	if l.balanceErr != nil {
		return nil, l.balanceErr
	}
	if b, ok := l.balances[strings.ToLower(address)]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

// SendTransaction implements interfaces.ILedger.
func (l *SimulatedLedger) SendTransaction(ctx context.Context, req interfaces.TransferRequest) (interfaces.TxHandle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Value == nil || req.Value.Sign() <= 0 {
		return "", fmt.Errorf("transfer to %s requires a positive value", req.To)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transferErr != nil {
		return "", l.transferErr
	}

	operatorBalance := l.balances[l.operator]
	if operatorBalance == nil || operatorBalance.Cmp(req.Value) < 0 {
		return "", fmt.Errorf("%w: operator %s cannot send %s", ErrInsufficientFunds, l.operator, req.Value)
	}

	handle := interfaces.TxHandle(fmt.Sprintf("0x%064x", len(l.order)+1))
	tx := &simulatedTx{
		req:      interfaces.TransferRequest{To: req.To, Value: new(big.Int).Set(req.Value)},
		reverted: l.revert,
		block:    uint64(len(l.order) + 1),
	}
	l.txs[handle] = tx
	l.order = append(l.order, handle)

	if !tx.reverted {
		to := strings.ToLower(req.To)
		operatorBalance.Sub(operatorBalance, req.Value)
		if l.balances[to] == nil {
			l.balances[to] = new(big.Int)
		}
		l.balances[to].Add(l.balances[to], req.Value)
	}

	logrus.WithFields(logrus.Fields{
		"function": "SimulatedLedger.SendTransaction",
		"to":       req.To,
		"value":    req.Value.String(),
		"tx":       handle,
		"reverted": tx.reverted,
	}).Debug("Simulated transfer submitted")
	return handle, nil
}

// WaitForTransactionReceipt implements interfaces.ILedger.
func (l *SimulatedLedger) WaitForTransactionReceipt(ctx context.Context, handle interfaces.TxHandle) (*interfaces.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.receiptErr != nil {
		return nil, l.receiptErr
	}
	tx, ok := l.txs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, handle)
	}
	status := interfaces.ReceiptSuccess
	if tx.reverted {
		status = interfaces.ReceiptFailed
	}
	return &interfaces.Receipt{TxHash: handle, BlockNumber: tx.block, Status: status}, nil
}

var _ interfaces.ILedger = (*SimulatedLedger)(nil)

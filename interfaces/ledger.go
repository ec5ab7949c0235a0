package interfaces

import (
	"context"
	"math/big"
)

// TransferRequest is a value transfer from the ledger's operator account.
type TransferRequest struct {
	To    string
	Value *big.Int
}

// TxHandle identifies a submitted transaction.
type TxHandle string

// ReceiptStatus is the execution outcome recorded on chain.
type ReceiptStatus int

const (
	ReceiptFailed ReceiptStatus = iota
	ReceiptSuccess
)

// String returns a readable receipt status.
func (s ReceiptStatus) String() string {
	if s == ReceiptSuccess {
		return "success"
	}
	return "failed"
}

// Receipt confirms a transaction was included.
type Receipt struct {
	TxHash      TxHandle
	BlockNumber uint64
	Status      ReceiptStatus
}

// Succeeded reports whether the transaction executed successfully.
func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptSuccess
}

// ILedger is the on-chain account collaborator.
type ILedger interface {
	// GetBalance returns the balance of address in wei.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// SendTransaction submits a transfer and returns without waiting for it.
	SendTransaction(ctx context.Context, req TransferRequest) (TxHandle, error)

	// WaitForTransactionReceipt blocks until the transaction is included or
	// ctx is done.
	WaitForTransactionReceipt(ctx context.Context, tx TxHandle) (*Receipt, error)
}

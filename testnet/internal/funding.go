package internal

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/agentnet/identity"
	"github.com/opd-ai/agentnet/interfaces"
)

// DefaultFundingAmount is 0.001 ETH in wei, enough to register and message.
var DefaultFundingAmount = big.NewInt(1_000_000_000_000_000)

// FundingGate tops up identities that hold no balance. It is the only
// component of the harness that spends funds.
type FundingGate struct {
	ledger  interfaces.ILedger
	amount  *big.Int
	metrics *Metrics
	logger  *logrus.Entry
}

// NewFundingGate creates a gate that transfers amount from the ledger's
// operator account. A nil amount selects DefaultFundingAmount.
func NewFundingGate(ledger interfaces.ILedger, amount *big.Int, metrics *Metrics) *FundingGate {
	if amount == nil {
		amount = DefaultFundingAmount
	}
	return &FundingGate{
		ledger:  ledger,
		amount:  new(big.Int).Set(amount),
		metrics: metrics,
		logger:  logrus.WithField("component", "funding"),
	}
}

// Amount returns the transfer size in wei.
func (g *FundingGate) Amount() *big.Int {
	return new(big.Int).Set(g.amount)
}

// EnsureFunded makes sure id holds a positive balance. Identities that already
// hold funds are left alone. It reports false when the balance read, the
// transfer or its confirmation fails; it never returns an error.
func (g *FundingGate) EnsureFunded(ctx context.Context, id *identity.NodeIdentity) bool {
	address := id.AddressHex()
	log := g.logger.WithFields(logrus.Fields{
		"function": "EnsureFunded",
		"address":  address,
	})

	balance, err := g.ledger.GetBalance(ctx, address)
	if err != nil {
		log.WithError(err).Error("Failed to read balance")
		g.metrics.incFundingFailures()
		return false
	}
	if balance.Sign() > 0 {
		log.WithField("balance", balance.String()).Debug("Identity already funded")
		return true
	}

	log.WithField("amount", g.amount.String()).Info("Funding agent from funder wallet")
	tx, err := g.ledger.SendTransaction(ctx, interfaces.TransferRequest{
		To:    address,
		Value: new(big.Int).Set(g.amount),
	})
	if err != nil {
		log.WithError(err).Error("Failed to fund agent")
		g.metrics.incFundingFailures()
		return false
	}

	receipt, err := g.ledger.WaitForTransactionReceipt(ctx, tx)
	if err != nil {
		log.WithError(err).WithField("tx", string(tx)).Error("Failed to confirm funding transfer")
		g.metrics.incFundingFailures()
		return false
	}
	if !receipt.Succeeded() {
		log.WithField("tx", string(tx)).Error("Funding transfer failed on chain")
		g.metrics.incFundingFailures()
		return false
	}

	g.metrics.incFundingTransfers()
	log.WithFields(logrus.Fields{
		"tx":    string(tx),
		"block": receipt.BlockNumber,
	}).Info("Successfully funded agent")
	return true
}

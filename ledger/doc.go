// Package ledger talks to an EVM chain over JSON-RPC.
//
// [Client] wraps a firefly-signer rpcbackend over HTTP and exposes the handful
// of calls the harness needs: balances, nonces, gas, raw transaction submission
// and receipt polling. [Wallet] binds a Client to one secp256k1 key, signs
// legacy EIP-155 transactions locally and implements interfaces.ILedger:
//
//	client, err := ledger.NewClient(ctx, ledger.DefaultConfig("http://localhost:8545"))
//	if err != nil {
//	    return err
//	}
//	wallet := ledger.NewWallet(client, funderKey)
//	tx, err := wallet.SendTransaction(ctx, interfaces.TransferRequest{To: addr, Value: amount})
package ledger

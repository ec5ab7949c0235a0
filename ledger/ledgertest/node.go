// Package ledgertest provides an in-memory JSON-RPC chain endpoint for tests.
package ledgertest

import (
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/hyperledger/firefly-signer/pkg/ethtypes"
)

// ChainID is the chain ID the node reports.
const ChainID = 1337

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

type callArgs struct {
	To   string                    `json:"to"`
	Data ethtypes.HexBytes0xPrefix `json:"data"`
}

// CallHandler answers eth_call for the contract at to.
type CallHandler func(to string, data []byte) []byte

// Node answers the subset of eth_* methods the ledger client uses. Balances
// are not debited by submitted transactions.
type Node struct {
	mu sync.Mutex

	balances      map[string]*big.Int
	nonce         uint64
	gasPrice      *big.Int
	gasEstimate   *big.Int
	receiptDelay  int
	receiptFailed bool
	failures      map[string]bool
	calls         map[string]int
	submitted     []ethtypes.HexBytes0xPrefix
	onCall        CallHandler
}

// NewNode returns a node with empty balances and mined-immediately receipts.
func NewNode() *Node {
	return &Node{
		balances:    map[string]*big.Int{},
		gasPrice:    big.NewInt(1_000_000_000),
		gasEstimate: big.NewInt(21000),
		failures:    map[string]bool{},
		calls:       map[string]int{},
	}
}

// Start serves the node over HTTP. Callers close the returned server.
func (n *Node) Start() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(n.serveHTTP))
}

// SetBalance sets the balance of address in wei.
func (n *Node) SetBalance(address string, wei *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[strings.ToLower(address)] = new(big.Int).Set(wei)
}

// SetReceiptDelay makes the first polls of eth_getTransactionReceipt return null.
func (n *Node) SetReceiptDelay(polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptDelay = polls
}

// SetReceiptFailed makes every receipt report a reverted transaction.
func (n *Node) SetReceiptFailed(failed bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.receiptFailed = failed
}

// Fail makes method return a JSON-RPC error.
func (n *Node) Fail(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = true
}

// OnCall installs the eth_call handler.
func (n *Node) OnCall(h CallHandler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onCall = h
}

// CallCount returns how many times method was invoked.
func (n *Node) CallCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Submitted returns the raw transactions received so far.
func (n *Node) Submitted() []ethtypes.HexBytes0xPrefix {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]ethtypes.HexBytes0xPrefix(nil), n.submitted...)
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if n.failures[req.Method] {
		resp.Error = &rpcErrorBody{Code: -32000, Message: req.Method + " unavailable"}
	} else {
		resp.Result = n.handle(req)
	}
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) handle(req rpcRequest) interface{} {
	param := func(i int) string {
		if i >= len(req.Params) {
			return ""
		}
		var s string
		_ = json.Unmarshal(req.Params[i], &s)
		return s
	}

	switch req.Method {
	case "eth_chainId":
		return ethtypes.HexUint64(ChainID)
	case "eth_getBalance":
		if b, ok := n.balances[strings.ToLower(param(0))]; ok {
			return ethtypes.NewHexInteger(b)
		}
		return ethtypes.NewHexInteger64(0)
	case "eth_getTransactionCount":
		return ethtypes.HexUint64(n.nonce)
	case "eth_gasPrice":
		return ethtypes.NewHexInteger(n.gasPrice)
	case "eth_estimateGas":
		return ethtypes.NewHexInteger(n.gasEstimate)
	case "eth_sendRawTransaction":
		raw, _ := ethtypes.NewHexBytes0xPrefix(param(0))
		n.submitted = append(n.submitted, raw)
		n.nonce++
		hash := make(ethtypes.HexBytes0xPrefix, 32)
		hash[0] = 0xab
		hash[31] = byte(len(n.submitted))
		return hash
	case "eth_getTransactionReceipt":
		if n.calls[req.Method] <= n.receiptDelay {
			return nil
		}
		status := ethtypes.NewHexInteger64(1)
		if n.receiptFailed {
			status = ethtypes.NewHexInteger64(0)
		}
		return map[string]interface{}{
			"transactionHash": param(0),
			"blockNumber":     ethtypes.NewHexInteger64(16),
			"status":          status,
		}
	case "eth_call":
		var args callArgs
		if len(req.Params) > 0 {
			_ = json.Unmarshal(req.Params[0], &args)
		}
		if n.onCall == nil {
			return ethtypes.HexBytes0xPrefix{}
		}
		return ethtypes.HexBytes0xPrefix(n.onCall(args.To, args.Data))
	}
	return nil
}

package test

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github/chapool/go-signer/internal/jsonrpc"
)

// MinedBlock is the block every accepted transaction is reported in.
const MinedBlock = 1

type minedTx struct {
	tx   *types.Transaction
	from common.Address
}

// FakeNode is a minimal JSON-RPC node on an httptest server. It tracks pending
// transaction counts and records every call it receives.
type FakeNode struct {
	server *httptest.Server

	mu           sync.Mutex
	counts       map[common.Address]uint64
	used         map[common.Address]map[uint64]bool
	sendErrors   []*jsonrpc.Error
	bodies       [][]byte
	paths        []string
	headers      []http.Header
	countQueries int
	sent         []*types.Transaction
	mined        map[common.Hash]minedTx
	onSend       func(tx *types.Transaction)
}

func NewFakeNode(t *testing.T) *FakeNode {
	t.Helper()

	n := &FakeNode{
		counts: make(map[common.Address]uint64),
		used:   make(map[common.Address]map[uint64]bool),
		mined:  make(map[common.Hash]minedTx),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.server.Close)

	return n
}

func (n *FakeNode) URL() string {
	return n.server.URL
}

// Close stops the node; later requests fail to connect.
func (n *FakeNode) Close() {
	n.server.Close()
}

func (n *FakeNode) SetTransactionCount(addr common.Address, count uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.counts[addr] = count
}

// OnSend registers fn to run for every raw transaction before it is processed.
func (n *FakeNode) OnSend(fn func(tx *types.Transaction)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onSend = fn
}

// FailSends makes the next eth_sendRawTransaction calls fail with errs, in order.
func (n *FakeNode) FailSends(errs ...*jsonrpc.Error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sendErrors = append(n.sendErrors, errs...)
}

func (n *FakeNode) Bodies() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]byte(nil), n.bodies...)
}

func (n *FakeNode) Paths() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func (n *FakeNode) Headers() []http.Header {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]http.Header(nil), n.headers...)
}

func (n *FakeNode) CountQueries() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.countQueries
}

// Sent returns every raw transaction received, including rejected ones.
func (n *FakeNode) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// SentNonces returns the nonces of Sent.
func (n *FakeNode) SentNonces() []uint64 {
	sent := n.Sent()
	out := make([]uint64, 0, len(sent))
	for _, tx := range sent {
		out = append(out, tx.Nonce())
	}
	return out
}

func (n *FakeNode) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.bodies = append(n.bodies, body)
	n.paths = append(n.paths, r.URL.Path)
	n.headers = append(n.headers, r.Header.Clone())
	n.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Fake-Node", "1")

	if jsonrpc.IsBatch(body) {
		reqs, err := jsonrpc.DecodeBatch(body)
		if err != nil {
			writeJSON(w, jsonrpc.NewErrorResponse(jsonrpc.NullID(), jsonrpc.NewError(jsonrpc.CodeParseError, "Parse error")))
			return
		}

		out := make([]jsonrpc.Response, 0, len(reqs))
		for _, req := range reqs {
			out = append(out, n.handle(req))
		}
		writeJSON(w, out)
		return
	}

	req, err := jsonrpc.DecodeRequest(body)
	if err != nil {
		writeJSON(w, jsonrpc.NewErrorResponse(jsonrpc.NullID(), jsonrpc.NewError(jsonrpc.CodeParseError, "Parse error")))
		return
	}

	writeJSON(w, n.handle(req))
}

func (n *FakeNode) handle(req jsonrpc.Request) jsonrpc.Response {
	switch req.Method {
	case "eth_chainId":
		return result(req.ID, (*hexutil.Big)(big.NewInt(ChainID)))

	case "eth_getTransactionCount":
		var addr common.Address
		if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &addr) != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "invalid address"))
		}

		n.mu.Lock()
		defer n.mu.Unlock()
		n.countQueries++
		return result(req.ID, hexutil.Uint64(n.counts[addr]))

	case "eth_sendRawTransaction":
		return n.sendRaw(req)

	case "eth_getTransactionByHash":
		return n.lookup(req, transactionJSON)

	case "eth_getTransactionReceipt":
		return n.lookup(req, receiptJSON)

	default:
		return result(req.ID, req.Method)
	}
}

func (n *FakeNode) sendRaw(req jsonrpc.Request) jsonrpc.Response {
	var encoded hexutil.Bytes
	if len(req.Params) != 1 || json.Unmarshal(req.Params[0], &encoded) != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "invalid raw transaction"))
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(encoded); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error()))
	}

	n.mu.Lock()
	onSend := n.onSend
	n.mu.Unlock()

	if onSend != nil {
		onSend(&tx)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, &tx)

	if len(n.sendErrors) > 0 {
		rpcErr := n.sendErrors[0]
		n.sendErrors = n.sendErrors[1:]
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(big.NewInt(ChainID)), &tx)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, err.Error()))
	}

	if n.used[sender] == nil {
		n.used[sender] = make(map[uint64]bool)
	}
	if n.used[sender][tx.Nonce()] {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeServerError, "already known"))
	}
	n.used[sender][tx.Nonce()] = true
	n.mined[tx.Hash()] = minedTx{tx: &tx, from: sender}

	if tx.Nonce() >= n.counts[sender] {
		n.counts[sender] = tx.Nonce() + 1
	}

	return result(req.ID, tx.Hash())
}

func (n *FakeNode) lookup(req jsonrpc.Request, render func(minedTx) (any, error)) jsonrpc.Response {
	var hash common.Hash
	if len(req.Params) == 0 || json.Unmarshal(req.Params[0], &hash) != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "invalid hash"))
	}

	n.mu.Lock()
	m, ok := n.mined[hash]
	n.mu.Unlock()

	if !ok {
		return result(req.ID, nil)
	}

	v, err := render(m)
	if err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error()))
	}

	return result(req.ID, v)
}

func blockHash() common.Hash {
	return common.BigToHash(big.NewInt(MinedBlock))
}

func transactionJSON(m minedTx) (any, error) {
	raw, err := json.Marshal(m.tx)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	fields["blockNumber"] = hexutil.Uint64(MinedBlock)
	fields["blockHash"] = blockHash()
	fields["transactionIndex"] = hexutil.Uint64(0)
	fields["from"] = m.from

	return fields, nil
}

func receiptJSON(m minedTx) (any, error) {
	return &types.Receipt{
		Type:              m.tx.Type(),
		Status:            types.ReceiptStatusSuccessful,
		CumulativeGasUsed: m.tx.Gas(),
		Logs:              []*types.Log{},
		TxHash:            m.tx.Hash(),
		GasUsed:           m.tx.Gas(),
		BlockHash:         blockHash(),
		BlockNumber:       big.NewInt(MinedBlock),
	}, nil
}

func result(id jsonrpc.ID, v any) jsonrpc.Response {
	res, err := jsonrpc.NewResult(id, v)
	if err != nil {
		return jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.CodeInternalError, err.Error()))
	}
	return res
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

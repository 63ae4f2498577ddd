package transaction_test

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/jsonrpc"
	"github/chapool/go-signer/internal/signer"
	"github/chapool/go-signer/internal/transaction"
)

var chainID = big.NewInt(1337)

func newRewriter(t *testing.T) (*transaction.Rewriter, common.Address) {
	t.Helper()

	key, err := crypto.HexToECDSA("4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	require.NoError(t, err)

	s := signer.NewKeySigner()
	addr, err := s.Add(key)
	require.NoError(t, err)

	r := transaction.NewRewriter(s, chainID, 2, nil)
	t.Cleanup(r.Stop)

	return r, addr
}

func decodeCall(t *testing.T, body string) (jsonrpc.Request, transaction.UnsignedTransaction) {
	t.Helper()

	req, err := jsonrpc.DecodeRequest([]byte(body))
	require.NoError(t, err)

	tx, err := transaction.DecodeUnsigned(req.Params)
	require.NoError(t, err)

	return req, tx
}

func rawTransaction(t *testing.T, req jsonrpc.Request) *types.Transaction {
	t.Helper()

	require.Equal(t, transaction.MethodSendRawTransaction, req.Method)
	require.Len(t, req.Params, 1)

	var encoded string
	require.NoError(t, json.Unmarshal(req.Params[0], &encoded))

	raw, err := hexutil.Decode(encoded)
	require.NoError(t, err)

	var tx types.Transaction
	require.NoError(t, tx.UnmarshalBinary(raw))

	return &tx
}

func TestDecodeUnsignedErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
	}{
		{"no params", `[]`},
		{"two params", `[{"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"},{}]`},
		{"not an object", `["0x01"]`},
		{"missing from", `[{"to":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"}]`},
		{"bad quantity", `[{"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23","value":"12"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var params []json.RawMessage
			require.NoError(t, json.Unmarshal([]byte(tt.params), &params))

			_, err := transaction.DecodeUnsigned(params)

			var rpcErr *jsonrpc.Error
			require.ErrorAs(t, err, &rpcErr)
			assert.Equal(t, jsonrpc.CodeInvalidParams, rpcErr.Code)
		})
	}
}

func TestRewriteLegacyDefaults(t *testing.T) {
	r, addr := newRewriter(t)

	req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":"abc","params":[{
		"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		"to":"0x00000000000000000000000000000000000000ff",
		"value":"0x10",
		"data":"0xdeadbeef"
	}]}`)
	require.False(t, tx.HasNonce())
	require.NoError(t, r.Prepare(tx))

	out, err := r.Rewrite(t.Context(), req, tx, 42)
	require.NoError(t, err)

	assert.Equal(t, "2.0", out.Version)
	assert.True(t, out.ID.Equal(req.ID))

	signed := rawTransaction(t, out)
	assert.Equal(t, uint8(types.LegacyTxType), signed.Type())
	assert.Equal(t, uint64(42), signed.Nonce())
	assert.Equal(t, transaction.DefaultGas, signed.Gas())
	assert.Equal(t, 0, signed.GasPrice().Sign())
	assert.Equal(t, big.NewInt(16), signed.Value())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, signed.Data())

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, addr, sender)
}

func TestRewriteDynamicFee(t *testing.T) {
	r, _ := newRewriter(t)

	req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":5,"params":[{
		"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",
		"to":"0x00000000000000000000000000000000000000ff",
		"gas":"0x5208",
		"maxFeePerGas":"0x3b9aca00",
		"maxPriorityFeePerGas":"0x1",
		"chainId":"0x539"
	}]}`)

	out, err := r.Rewrite(t.Context(), req, tx, 0)
	require.NoError(t, err)

	signed := rawTransaction(t, out)
	assert.Equal(t, uint8(types.DynamicFeeTxType), signed.Type())
	assert.Equal(t, uint64(21000), signed.Gas())
	assert.Equal(t, chainID, signed.ChainId())
	assert.Equal(t, big.NewInt(1_000_000_000), signed.GasFeeCap())
	assert.Equal(t, big.NewInt(1), signed.GasTipCap())
}

func TestRewriteEncodingFailures(t *testing.T) {
	r, _ := newRewriter(t)

	tests := []struct {
		name  string
		field string
	}{
		{"chain id mismatch", `"chainId":"0x1"`},
		{"mixed fee fields", `"gasPrice":"0x1","maxFeePerGas":"0x2","maxPriorityFeePerGas":"0x1"`},
		{"half dynamic fee", `"maxFeePerGas":"0x2"`},
		{"tip above cap", `"maxFeePerGas":"0x1","maxPriorityFeePerGas":"0x2"`},
		{"zero gas", `"gas":"0x0"`},
		{"data and input differ", `"data":"0x01","input":"0x02"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":1,"params":[{
				"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23",`+tt.field+`}]}`)

			require.ErrorIs(t, r.Prepare(tx), transaction.ErrEncodingFailure)

			_, err := r.Rewrite(t.Context(), req, tx, 1)
			require.ErrorIs(t, err, transaction.ErrEncodingFailure)
		})
	}
}

func TestRewriteSenderNotControlled(t *testing.T) {
	r, _ := newRewriter(t)

	req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":1,"params":[{
		"from":"0x00000000000000000000000000000000000000aa"
	}]}`)

	err := r.Prepare(tx)
	require.ErrorIs(t, err, transaction.ErrSigningFailure)
	require.ErrorIs(t, err, signer.ErrNotControlled)

	_, err = r.Rewrite(t.Context(), req, tx, 1)
	require.ErrorIs(t, err, transaction.ErrSigningFailure)
	require.ErrorIs(t, err, signer.ErrNotControlled)
}

func TestRewriteCancelled(t *testing.T) {
	r, _ := newRewriter(t)

	req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":1,"params":[{
		"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	}]}`)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := r.Rewrite(ctx, req, tx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRewriteAfterStop(t *testing.T) {
	r, _ := newRewriter(t)
	r.Stop()

	req, tx := decodeCall(t, `{"jsonrpc":"2.0","method":"eth_sendTransaction","id":1,"params":[{
		"from":"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"
	}]}`)

	_, err := r.Rewrite(t.Context(), req, tx, 1)
	require.ErrorIs(t, err, transaction.ErrSignerUnavailable)
}

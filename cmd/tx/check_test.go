package tx

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/test"
)

func TestCheckTransaction(t *testing.T) {
	node := test.NewFakeNode(t)
	cfg := test.Config(t, node.URL())

	key, err := crypto.HexToECDSA(test.PrivateKey)
	require.NoError(t, err)

	to := common.HexToAddress("0x000000000000000000000000000000000000dEaD")
	signed, err := types.SignNewTx(key, types.LatestSignerForChainID(big.NewInt(test.ChainID)), &types.LegacyTx{
		Nonce:    3,
		To:       &to,
		Value:    big.NewInt(42),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	require.NoError(t, err)

	client, err := ethclient.Dial(node.URL())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.SendTransaction(t.Context(), signed))

	var out strings.Builder
	require.NoError(t, runCheck(t.Context(), cfg, signed.Hash().Hex(), &out))

	assert.Contains(t, out.String(), "From: "+test.Address.Hex())
	assert.Contains(t, out.String(), "To: "+to.Hex())
	assert.Contains(t, out.String(), "Nonce: 3")
	assert.Contains(t, out.String(), "Value: 42 wei")
	assert.Contains(t, out.String(), "Block Number: 1")
	assert.Contains(t, out.String(), "Status: success")
}

func TestCheckTransactionNotFound(t *testing.T) {
	node := test.NewFakeNode(t)
	cfg := test.Config(t, node.URL())

	var out strings.Builder
	err := runCheck(t.Context(), cfg, common.Hash{1}.Hex(), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckTransactionInvalidHash(t *testing.T) {
	node := test.NewFakeNode(t)
	cfg := test.Config(t, node.URL())

	var out strings.Builder
	require.Error(t, runCheck(t.Context(), cfg, "0x1234", &out))
	assert.Empty(t, node.Bodies())
}

package transaction

import (
	"bytes"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github/chapool/go-signer/internal/jsonrpc"
)

// DefaultGas is used when a transaction does not name a gas limit.
const DefaultGas uint64 = 90000

// UnsignedTransaction is the single parameter of an eth_sendTransaction call.
type UnsignedTransaction struct {
	From                 *common.Address `json:"from"`
	To                   *common.Address `json:"to"`
	Nonce                *hexutil.Uint64 `json:"nonce"`
	Gas                  *hexutil.Uint64 `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big    `json:"value"`
	Data                 *hexutil.Bytes  `json:"data"`
	Input                *hexutil.Bytes  `json:"input"`
	ChainID              *hexutil.Big    `json:"chainId"`
}

// DecodeUnsigned decodes the parameters of an eth_sendTransaction call. Failures are
// *jsonrpc.Error values with the invalid params code.
func DecodeUnsigned(params []json.RawMessage) (UnsignedTransaction, error) {
	if len(params) != 1 {
		return UnsignedTransaction{}, invalidParams("expected exactly one transaction object")
	}

	raw := bytes.TrimSpace(params[0])
	if len(raw) == 0 || raw[0] != '{' {
		return UnsignedTransaction{}, invalidParams("transaction must be an object")
	}

	var tx UnsignedTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return UnsignedTransaction{}, invalidParams(err.Error())
	}

	if tx.From == nil {
		return UnsignedTransaction{}, invalidParams("missing value for required argument 'from'")
	}

	return tx, nil
}

func invalidParams(detail string) *jsonrpc.Error {
	return jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: "+detail)
}

// Sender is the account that has to sign the transaction.
func (u UnsignedTransaction) Sender() common.Address {
	return *u.From
}

// HasNonce reports whether the caller picked the nonce.
func (u UnsignedTransaction) HasNonce() bool {
	return u.Nonce != nil
}

func (u UnsignedTransaction) isDynamicFee() bool {
	return u.MaxFeePerGas != nil || u.MaxPriorityFeePerGas != nil
}

func (u UnsignedTransaction) payload() ([]byte, error) {
	switch {
	case u.Data != nil && u.Input != nil && !bytes.Equal(*u.Data, *u.Input):
		return nil, errors.Wrap(ErrEncodingFailure, "both data and input are set and differ")
	case u.Input != nil:
		return *u.Input, nil
	case u.Data != nil:
		return *u.Data, nil
	default:
		return nil, nil
	}
}

// validate checks every field placement that does not depend on the nonce.
func (u UnsignedTransaction) validate(chainID *big.Int) error {
	if u.GasPrice != nil && u.isDynamicFee() {
		return errors.Wrap(ErrEncodingFailure, "gasPrice and EIP-1559 fee fields are mutually exclusive")
	}

	if u.isDynamicFee() && (u.MaxFeePerGas == nil || u.MaxPriorityFeePerGas == nil) {
		return errors.Wrap(ErrEncodingFailure, "maxFeePerGas and maxPriorityFeePerGas must be set together")
	}

	if u.isDynamicFee() && u.MaxFeePerGas.ToInt().Cmp(u.MaxPriorityFeePerGas.ToInt()) < 0 {
		return errors.Wrap(ErrEncodingFailure, "maxFeePerGas is lower than maxPriorityFeePerGas")
	}

	if u.ChainID != nil && u.ChainID.ToInt().Cmp(chainID) != 0 {
		return errors.Wrapf(ErrEncodingFailure, "chainId %s does not match %s", u.ChainID.ToInt(), chainID)
	}

	if u.Gas != nil && *u.Gas == 0 {
		return errors.Wrap(ErrEncodingFailure, "gas must be positive")
	}

	if _, err := u.payload(); err != nil {
		return err
	}

	for name, v := range map[string]*hexutil.Big{
		"value":                u.Value,
		"gasPrice":             u.GasPrice,
		"maxFeePerGas":         u.MaxFeePerGas,
		"maxPriorityFeePerGas": u.MaxPriorityFeePerGas,
	} {
		if v != nil && v.ToInt().Sign() < 0 {
			return errors.Wrapf(ErrEncodingFailure, "%s must not be negative", name)
		}
	}

	return nil
}

// build returns the go-ethereum transaction for nonce. Legacy transactions are built
// unless EIP-1559 fee fields are present.
func (u UnsignedTransaction) build(nonce uint64, chainID *big.Int) (*types.Transaction, error) {
	if err := u.validate(chainID); err != nil {
		return nil, err
	}

	data, err := u.payload()
	if err != nil {
		return nil, err
	}

	gas := DefaultGas
	if u.Gas != nil {
		gas = uint64(*u.Gas)
	}

	value := new(big.Int)
	if u.Value != nil {
		value = u.Value.ToInt()
	}

	if u.isDynamicFee() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).Set(chainID),
			Nonce:     nonce,
			GasTipCap: u.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap: u.MaxFeePerGas.ToInt(),
			Gas:       gas,
			To:        u.To,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice := new(big.Int)
	if u.GasPrice != nil {
		gasPrice = u.GasPrice.ToInt()
	}

	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       u.To,
		Value:    value,
		Data:     data,
	}), nil
}

package transaction

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github/chapool/go-signer/internal/jsonrpc"
	"github/chapool/go-signer/internal/signer"
)

const (
	MethodSendTransaction    = "eth_sendTransaction"
	MethodSendRawTransaction = "eth_sendRawTransaction"
)

var (
	// ErrSigningFailure wraps signer.ErrNotControlled when the sender has no key here.
	ErrSigningFailure = errors.New("signing failure")
	// ErrEncodingFailure means a field could not be placed into the transaction envelope.
	ErrEncodingFailure = errors.New("transaction encoding failure")
	// ErrSignerUnavailable means signing could not run at all, e.g. after Stop.
	ErrSignerUnavailable = errors.New("signer unavailable")
)

// SignatureObserver is told about the result of every signing attempt.
type SignatureObserver interface {
	ObserveSignature(err error)
}

// Rewriter turns eth_sendTransaction calls into signed eth_sendRawTransaction calls.
type Rewriter struct {
	signer   signer.Signer
	chainID  *big.Int
	pool     pond.ResultPool[[]byte]
	observer SignatureObserver
	stopOnce sync.Once
}

// NewRewriter signs with s for chainID on at most workers concurrent goroutines.
func NewRewriter(s signer.Signer, chainID *big.Int, workers int, observer SignatureObserver) *Rewriter {
	return &Rewriter{
		signer:   s,
		chainID:  new(big.Int).Set(chainID),
		pool:     pond.NewResultPool[[]byte](workers),
		observer: observer,
	}
}

// Prepare validates everything about tx that can be checked before a nonce is acquired.
func (r *Rewriter) Prepare(tx UnsignedTransaction) error {
	if !r.signer.Controls(tx.Sender()) {
		return &Error{Kind: ErrSigningFailure, Err: errors.Wrap(signer.ErrNotControlled, tx.Sender().Hex())}
	}

	return tx.validate(r.chainID)
}

// Rewrite signs tx with nonce and returns the raw transaction call. Version and id of
// req are kept so the downstream response can be relayed unchanged.
func (r *Rewriter) Rewrite(ctx context.Context, req jsonrpc.Request, tx UnsignedTransaction, nonce uint64) (jsonrpc.Request, error) {
	unsigned, err := tx.build(nonce, r.chainID)
	if err != nil {
		return jsonrpc.Request{}, err
	}

	task := r.pool.SubmitErr(func() ([]byte, error) {
		return r.signer.SignTransaction(ctx, tx.Sender(), unsigned, r.chainID)
	})

	var raw []byte
	select {
	case <-ctx.Done():
		return jsonrpc.Request{}, ctx.Err()
	case <-task.Done():
		raw, err = task.Wait()
	}

	if r.observer != nil {
		r.observer.ObserveSignature(err)
	}

	if err != nil {
		switch {
		case errors.Is(err, signer.ErrNotControlled):
			return jsonrpc.Request{}, &Error{Kind: ErrSigningFailure, Err: err}
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return jsonrpc.Request{}, err
		default:
			return jsonrpc.Request{}, &Error{Kind: ErrSignerUnavailable, Err: err}
		}
	}

	param, err := json.Marshal(hexutil.Encode(raw))
	if err != nil {
		return jsonrpc.Request{}, &Error{Kind: ErrEncodingFailure, Err: err}
	}

	return jsonrpc.Request{
		Version: req.Version,
		Method:  MethodSendRawTransaction,
		Params:  []json.RawMessage{param},
		ID:      req.ID,
	}, nil
}

// Stop waits for running signatures and rejects new ones.
func (r *Rewriter) Stop() {
	r.stopOnce.Do(r.pool.StopAndWait)
}

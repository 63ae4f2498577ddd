package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/jsonrpc"
	"github/chapool/go-signer/internal/transaction"
	"github/chapool/go-signer/internal/util"
)

// Transmitter sends one attempt downstream.
type Transmitter interface {
	Send(ctx context.Context, req downstream.ForwardedRequest) downstream.Outcome
}

// NonceSource issues nonces per sending account.
type NonceSource interface {
	Acquire(ctx context.Context, addr common.Address) (uint64, error)
	Resynchronize(ctx context.Context, addr common.Address) error
}

// Rewriter signs submissions.
type Rewriter interface {
	Prepare(tx transaction.UnsignedTransaction) error
	Rewrite(ctx context.Context, req jsonrpc.Request, tx transaction.UnsignedTransaction, nonce uint64) (jsonrpc.Request, error)
}

// AccountLister lists the accounts that can sign.
type AccountLister interface {
	Accounts() []common.Address
}

// RequestObserver counts classified requests.
type RequestObserver interface {
	ObserveRequest(kind string)
}

// Inbound is the caller's request as received.
type Inbound struct {
	Path   string
	Header http.Header
	Body   []byte
}

// Reply is what the caller receives. Every Handle call produces exactly one.
type Reply struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Forwarder struct {
	transmitter Transmitter
	nonces      NonceSource
	rewriter    Rewriter
	accounts    AccountLister
	retry       *RetryController
	observer    RequestObserver
}

func NewForwarder(
	transmitter Transmitter,
	nonces NonceSource,
	rewriter Rewriter,
	accounts AccountLister,
	retry *RetryController,
	observer RequestObserver,
) *Forwarder {
	return &Forwarder{
		transmitter: transmitter,
		nonces:      nonces,
		rewriter:    rewriter,
		accounts:    accounts,
		retry:       retry,
		observer:    observer,
	}
}

// Handle classifies in and drives it to a reply.
func (f *Forwarder) Handle(ctx context.Context, in Inbound) Reply {
	call, err := Classify(in.Body)
	if err != nil {
		f.observe("rejected")

		var clientErr *ClientError
		if errors.As(err, &clientErr) {
			return f.fail(ctx, clientErr.ID, err)
		}
		return f.fail(ctx, jsonrpc.NullID(), err)
	}

	f.observe(call.Kind())

	switch c := call.(type) {
	case *Passthrough:
		out := f.transmitter.Send(ctx, downstream.ForwardedRequest{
			Path:   in.Path,
			Header: in.Header,
			Body:   c.Body,
		})
		return f.complete(ctx, c.ID, out)

	case *AccountsQuery:
		return f.listAccounts(ctx, c.Request)

	case *Submission:
		return f.submit(ctx, in, c)

	default:
		return f.fail(ctx, jsonrpc.NullID(), errors.Errorf("unhandled call %T", call))
	}
}

func (f *Forwarder) observe(kind string) {
	if f.observer != nil {
		f.observer.ObserveRequest(kind)
	}
}

func (f *Forwarder) listAccounts(ctx context.Context, req jsonrpc.Request) Reply {
	accounts := f.accounts.Accounts()
	if accounts == nil {
		accounts = []common.Address{}
	}

	res, err := jsonrpc.NewResult(req.ID, accounts)
	if err != nil {
		return f.fail(ctx, req.ID, err)
	}

	return jsonReply(ctx, http.StatusOK, res)
}

func (f *Forwarder) submit(ctx context.Context, in Inbound, c *Submission) Reply {
	logger := util.LogFromContext(ctx).With().
		Str("from", c.Transaction.Sender().Hex()).
		Str("id", c.Request.ID.String()).
		Logger()
	ctx = util.WithLogger(ctx, logger)

	if err := f.rewriter.Prepare(c.Transaction); err != nil {
		return f.fail(ctx, c.Request.ID, err)
	}

	sender := c.Transaction.Sender()

	attempt := func(ctx context.Context) (downstream.Outcome, error) {
		nonce, err := f.nonce(ctx, c.Transaction)
		if err != nil {
			return nil, err
		}

		raw, err := f.rewriter.Rewrite(ctx, c.Request, c.Transaction, nonce)
		if err != nil {
			return nil, err
		}

		body, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal raw transaction call")
		}

		logger.Debug().Uint64("nonce", nonce).Msg("Forwarding signed transaction")

		return downstream.Inspect(f.transmitter.Send(ctx, downstream.ForwardedRequest{
			Path:   in.Path,
			Header: in.Header,
			Body:   body,
		})), nil
	}

	var (
		out downstream.Outcome
		err error
	)
	if c.Transaction.HasNonce() {
		// a nonce picked by the caller is never resynchronized
		out, err = attempt(ctx)
	} else {
		out, err = f.retry.Run(ctx, attempt, func(ctx context.Context) error {
			return f.nonces.Resynchronize(ctx, sender)
		})
	}

	if err != nil {
		return f.fail(ctx, c.Request.ID, err)
	}

	return f.complete(ctx, c.Request.ID, out)
}

func (f *Forwarder) nonce(ctx context.Context, tx transaction.UnsignedTransaction) (uint64, error) {
	if tx.HasNonce() {
		return uint64(*tx.Nonce), nil
	}

	n, err := f.nonces.Acquire(ctx, tx.Sender())
	if err != nil {
		return 0, &nonceError{err: err}
	}

	return n, nil
}

// nonceError marks a failed nonce query against the downstream node.
type nonceError struct {
	err error
}

func (e *nonceError) Error() string { return "failed to acquire nonce: " + e.err.Error() }
func (e *nonceError) Unwrap() error { return e.err }

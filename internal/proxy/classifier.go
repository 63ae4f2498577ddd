package proxy

import (
	"github/chapool/go-signer/internal/jsonrpc"
	"github/chapool/go-signer/internal/transaction"
)

const MethodAccounts = "eth_accounts"

// Call is the classification of one inbound body: *Passthrough, *Submission or
// *AccountsQuery.
type Call interface {
	call()
	// Kind names the variant for logs and metrics.
	Kind() string
}

// Passthrough is forwarded with its original bytes.
type Passthrough struct {
	// ID is null for batches.
	ID   jsonrpc.ID
	Body []byte
}

// Submission is an eth_sendTransaction call that is signed here.
type Submission struct {
	Request     jsonrpc.Request
	Transaction transaction.UnsignedTransaction
}

// AccountsQuery is answered from the signer's accounts.
type AccountsQuery struct {
	Request jsonrpc.Request
}

func (*Passthrough) call()   {}
func (*Submission) call()    {}
func (*AccountsQuery) call() {}

func (*Passthrough) Kind() string   { return "passthrough" }
func (*Submission) Kind() string    { return "transaction_submission" }
func (*AccountsQuery) Kind() string { return "accounts_query" }

type classifyFunc func(req jsonrpc.Request) (Call, error)

var intercepted = map[string]classifyFunc{
	transaction.MethodSendTransaction: func(req jsonrpc.Request) (Call, error) {
		tx, err := transaction.DecodeUnsigned(req.Params)
		if err != nil {
			return nil, err
		}
		return &Submission{Request: req, Transaction: tx}, nil
	},
	MethodAccounts: func(req jsonrpc.Request) (Call, error) {
		return &AccountsQuery{Request: req}, nil
	},
}

// ClientError is a request rejected before anything was sent downstream. ID is the
// caller's id when it could be decoded.
type ClientError struct {
	ID  jsonrpc.ID
	RPC *jsonrpc.Error
}

func (e *ClientError) Error() string {
	return e.RPC.Message
}

func (e *ClientError) Unwrap() error {
	return e.RPC
}

func reject(id jsonrpc.ID, err error) *ClientError {
	rpcErr, ok := err.(*jsonrpc.Error) //nolint:errorlint // decoding errors are returned unwrapped
	if !ok {
		rpcErr = jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Invalid request")
	}
	return &ClientError{ID: id, RPC: rpcErr}
}

// Classify decodes body once and decides how it is handled. Failures are *ClientError.
func Classify(body []byte) (Call, error) {
	if jsonrpc.IsBatch(body) {
		return classifyBatch(body)
	}

	req, err := jsonrpc.DecodeRequest(body)
	if err != nil {
		return nil, reject(jsonrpc.NullID(), err)
	}

	fn, ok := intercepted[req.Method]
	if !ok {
		return &Passthrough{ID: req.ID, Body: body}, nil
	}

	call, err := fn(req)
	if err != nil {
		return nil, reject(req.ID, err)
	}

	return call, nil
}

func classifyBatch(body []byte) (Call, error) {
	reqs, err := jsonrpc.DecodeBatch(body)
	if err != nil {
		return nil, reject(jsonrpc.NullID(), err)
	}

	if len(reqs) == 0 {
		return nil, reject(jsonrpc.NullID(), jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Invalid request: empty batch"))
	}

	for _, req := range reqs {
		if _, ok := intercepted[req.Method]; ok {
			return nil, reject(jsonrpc.NullID(), jsonrpc.NewError(jsonrpc.CodeInvalidRequest,
				"Invalid request: "+req.Method+" is not supported in batch requests"))
		}
	}

	return &Passthrough{ID: jsonrpc.NullID(), Body: body}, nil
}

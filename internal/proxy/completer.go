package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/jsonrpc"
	"github/chapool/go-signer/internal/signer"
	"github/chapool/go-signer/internal/transaction"
	"github/chapool/go-signer/internal/util"
)

const (
	msgNotUnlocked       = "From address is not an unlocked account"
	msgInvalidTx         = "Invalid params: transaction could not be encoded"
	msgInternal          = "Internal error"
	msgDownstreamTimeout = "Connection to downstream node timed out"
	msgDownstreamTLS     = "Failed to establish a secure connection to the downstream node"
	msgDownstreamUnknown = "Failed to forward request to the downstream node"
)

// complete turns the terminal outcome into the caller's reply. Downstream responses,
// including node errors, are relayed verbatim.
func (f *Forwarder) complete(ctx context.Context, id jsonrpc.ID, out downstream.Outcome) Reply {
	switch o := out.(type) {
	case *downstream.Success:
		return relay(o)

	case *downstream.NodeError:
		util.LogFromContext(ctx).Debug().Int("code", o.Code).Str("message", o.Message).Msg("Downstream node returned an error")
		return relay(o.Response)

	case *downstream.TransportFailure:
		return transportFailure(ctx, id, o)

	default:
		return f.fail(ctx, id, errors.Errorf("unexpected outcome %T", out))
	}
}

func relay(s *downstream.Success) Reply {
	return Reply{
		StatusCode: s.StatusCode,
		Header:     downstream.FilterHeaders(s.Header),
		Body:       s.Body,
	}
}

func transportFailure(ctx context.Context, id jsonrpc.ID, f *downstream.TransportFailure) Reply {
	msg := msgDownstreamUnknown
	switch f.Kind {
	case downstream.FailureTimeout:
		msg = msgDownstreamTimeout
	case downstream.FailureTLS:
		msg = msgDownstreamTLS
	}

	return jsonReply(ctx, f.HTTPStatus(), jsonrpc.NewErrorResponse(id, jsonrpc.NewError(jsonrpc.CodeServerError, msg)))
}

// fail maps a local failure onto a sanitized error envelope and logs the full cause.
func (f *Forwarder) fail(ctx context.Context, id jsonrpc.ID, err error) Reply {
	logger := util.LogFromContext(ctx)

	var (
		clientErr *ClientError
		rpcErr    *jsonrpc.Error
		nonceErr  *nonceError
	)

	switch {
	case errors.As(err, &clientErr):
		logger.Debug().Err(err).Msg("Rejected invalid request")
		return errorReply(ctx, http.StatusBadRequest, id, clientErr.RPC)

	case errors.As(err, &rpcErr):
		logger.Debug().Err(err).Msg("Rejected invalid request")
		return errorReply(ctx, http.StatusBadRequest, id, rpcErr)

	case errors.Is(err, transaction.ErrSigningFailure), errors.Is(err, signer.ErrNotControlled):
		logger.Info().Err(err).Msg("Rejected transaction from an account without key")
		return errorReply(ctx, http.StatusBadRequest, id, jsonrpc.NewError(jsonrpc.CodeServerError, msgNotUnlocked))

	case errors.Is(err, transaction.ErrEncodingFailure):
		logger.Info().Err(err).Msg("Rejected transaction that could not be encoded")
		return errorReply(ctx, http.StatusBadRequest, id, jsonrpc.NewError(jsonrpc.CodeInvalidParams, msgInvalidTx))

	case errors.As(err, &nonceErr):
		logger.Warn().Err(err).Msg("Failed to acquire nonce")
		return transportFailure(ctx, id, downstream.FailureFromError(nonceErr.err))

	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Msg("Request timed out")
		return transportFailure(ctx, id, downstream.FailureFromError(err))

	default:
		logger.Error().Err(err).Msg("Failed to handle request")
		return errorReply(ctx, http.StatusInternalServerError, id, jsonrpc.NewError(jsonrpc.CodeInternalError, msgInternal))
	}
}

func errorReply(ctx context.Context, status int, id jsonrpc.ID, rpcErr *jsonrpc.Error) Reply {
	return jsonReply(ctx, status, jsonrpc.NewErrorResponse(id, rpcErr))
}

func jsonReply(ctx context.Context, status int, res jsonrpc.Response) Reply {
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	body, err := json.Marshal(res)
	if err != nil {
		util.LogFromContext(ctx).Error().Err(err).Msg("Failed to marshal response")
		return Reply{
			StatusCode: http.StatusInternalServerError,
			Header:     header,
			Body:       []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Internal error"}}`),
		}
	}

	return Reply{StatusCode: status, Header: header, Body: body}
}

package jsonrpc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type Response struct {
	Version string          `json:"jsonrpc"`
	ID      ID              `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response carrying the marshalled result.
func NewResult(id ID, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, errors.Wrap(err, "failed to marshal result")
	}

	return Response{Version: Version, ID: id, Result: raw}, nil
}

// NewErrorResponse builds the error envelope; an absent id is written as null.
func NewErrorResponse(id ID, rpcErr *Error) Response {
	return Response{Version: Version, ID: id, Error: rpcErr}
}

// DecodeResponse decodes a single JSON-RPC response body.
func DecodeResponse(data []byte) (Response, error) {
	var res Response
	if err := json.Unmarshal(data, &res); err != nil {
		return Response{}, errors.Wrap(err, "failed to decode json-rpc response")
	}

	return res, nil
}

package jsonrpc

import (
	"encoding/json"

	"github.com/pkg/errors"
)

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

var (
	ErrMissingMethod  = errors.New("field 'method' is required")
	ErrParamsNotArray = errors.New("params must be an array")
)

// Error is the error member of a JSON-RPC response. It doubles as a Go error so
// decoding and validation failures carry their code to the response writer.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

package jsonrpc

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

const Version = "2.0"

// Request is a decoded JSON-RPC call. Values are treated as immutable once decoded;
// rewriting a call produces a new Request.
type Request struct {
	Version string
	Method  string
	Params  []json.RawMessage
	ID      ID
}

type wireRequestIn struct {
	Version string          `json:"jsonrpc"`
	Method  *string         `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      ID              `json:"id"`
}

type wireRequestOut struct {
	Version string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
	ID      *ID               `json:"id,omitempty"`
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var in wireRequestIn
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	if in.Method == nil {
		return ErrMissingMethod
	}

	params, err := decodeParams(in.Params)
	if err != nil {
		return err
	}

	*r = Request{
		Version: in.Version,
		Method:  *in.Method,
		Params:  params,
		ID:      in.ID,
	}

	return nil
}

func (r Request) MarshalJSON() ([]byte, error) {
	out := wireRequestOut{
		Version: r.Version,
		Method:  r.Method,
		Params:  r.Params,
	}
	if !r.ID.IsAbsent() {
		id := r.ID
		out.ID = &id
	}

	return json.Marshal(out)
}

// IsNotification reports whether the caller expects no id-bearing reply.
func (r Request) IsNotification() bool {
	return r.ID.IsAbsent()
}

// Equal compares two requests structurally over version, method, params and id.
func (r Request) Equal(other Request) bool {
	if r.Version != other.Version || r.Method != other.Method || !r.ID.Equal(other.ID) {
		return false
	}
	if len(r.Params) != len(other.Params) {
		return false
	}
	for i := range r.Params {
		if !bytes.Equal(r.Params[i], other.Params[i]) {
			return false
		}
	}

	return true
}

// DecodeRequest decodes a single JSON-RPC call. Failures are returned as *Error
// carrying the matching JSON-RPC code.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, classifyDecodeError(err)
	}

	return req, nil
}

// IsBatch reports whether the body is a JSON array of calls.
func IsBatch(data []byte) bool {
	data = bytes.TrimLeft(data, " \t\r\n")
	return len(data) > 0 && data[0] == '['
}

// DecodeBatch decodes a JSON array of calls.
func DecodeBatch(data []byte) ([]Request, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, classifyDecodeError(err)
	}

	reqs := make([]Request, 0, len(raw))
	for _, item := range raw {
		req, err := DecodeRequest(item)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, nil
}

func decodeParams(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] != '[' {
		return nil, ErrParamsNotArray
	}

	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, errors.Wrap(ErrParamsNotArray, err.Error())
	}

	return params, nil
}

func classifyDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &syntaxErr):
		return NewError(CodeParseError, "Parse error")
	case errors.Is(err, ErrMissingMethod):
		return NewError(CodeInvalidRequest, "Invalid request: field 'method' is required")
	case errors.Is(err, ErrParamsNotArray):
		return NewError(CodeInvalidParams, "Invalid params: params must be an array")
	case errors.Is(err, ErrInvalidID):
		return NewError(CodeInvalidRequest, "Invalid request: id must be a string, a number or null")
	default:
		return NewError(CodeInvalidRequest, "Invalid request")
	}
}

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

var ErrInvalidID = errors.New("id must be a string, a number or null")

type idKind uint8

const (
	idAbsent idKind = iota
	idNull
	idString
	idNumber
)

// ID is a JSON-RPC request identifier. It is either absent (notification), null,
// a string or a number. Numbers keep their literal JSON text so they are echoed
// back without any change in precision.
type ID struct {
	kind  idKind
	value string
}

func StringID(s string) ID {
	return ID{kind: idString, value: s}
}

func NumberID(n json.Number) ID {
	return ID{kind: idNumber, value: n.String()}
}

func IntID(n int64) ID {
	return ID{kind: idNumber, value: strconv.FormatInt(n, 10)}
}

func NullID() ID {
	return ID{kind: idNull}
}

// IsAbsent reports whether the request carried no id member at all.
func (id ID) IsAbsent() bool {
	return id.kind == idAbsent
}

func (id ID) IsNull() bool {
	return id.kind == idNull
}

func (id ID) IsString() bool {
	return id.kind == idString
}

func (id ID) IsNumber() bool {
	return id.kind == idNumber
}

// Number returns the literal numeric text of a numeric id.
func (id ID) Number() (json.Number, bool) {
	if id.kind != idNumber {
		return "", false
	}
	return json.Number(id.value), true
}

// Str returns the value of a string id.
func (id ID) Str() (string, bool) {
	if id.kind != idString {
		return "", false
	}
	return id.value, true
}

func (id ID) Equal(other ID) bool {
	return id.kind == other.kind && id.value == other.value
}

// String renders the id for logging.
func (id ID) String() string {
	switch id.kind {
	case idString:
		return strconv.Quote(id.value)
	case idNumber:
		return id.value
	case idNull:
		return "null"
	default:
		return "<absent>"
	}
}

// MarshalJSON encodes absent and null ids as JSON null.
func (id ID) MarshalJSON() ([]byte, error) {
	switch id.kind {
	case idString:
		return json.Marshal(id.value)
	case idNumber:
		return []byte(id.value), nil
	default:
		return []byte("null"), nil
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidID
	}

	switch c := data[0]; {
	case c == 'n':
		if !bytes.Equal(data, []byte("null")) {
			return ErrInvalidID
		}
		*id = NullID()
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.Wrap(ErrInvalidID, err.Error())
		}
		*id = StringID(s)
	case c == '-' || (c >= '0' && c <= '9'):
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrap(ErrInvalidID, err.Error())
		}
		*id = NumberID(n)
	default:
		return ErrInvalidID
	}

	return nil
}

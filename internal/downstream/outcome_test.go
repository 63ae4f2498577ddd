package downstream_test

import (
	"context"
	"net"
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/downstream"
)

func TestFilterHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer abc")
	h.Set("Connection", "keep-alive, X-Hop")
	h.Set("X-Hop", "1")
	h.Set("Keep-Alive", "timeout=5")
	h.Set("Transfer-Encoding", "chunked")
	h.Set("Content-Length", "42")
	h.Set("Accept-Encoding", "gzip")
	h.Set("Upgrade", "h2c")

	out := downstream.FilterHeaders(h)

	assert.Equal(t, "application/json", out.Get("Content-Type"))
	assert.Equal(t, "Bearer abc", out.Get("Authorization"))
	for _, name := range []string{"Connection", "X-Hop", "Keep-Alive", "Transfer-Encoding", "Content-Length", "Accept-Encoding", "Upgrade"} {
		assert.Empty(t, out.Get(name), name)
	}

	// input untouched
	assert.Equal(t, "42", h.Get("Content-Length"))
	assert.NotNil(t, downstream.FilterHeaders(nil))
}

func TestInspect(t *testing.T) {
	success := &downstream.Success{
		StatusCode: http.StatusOK,
		Body:       []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"nonce too low"}}`),
	}

	out := downstream.Inspect(success)
	nodeErr, ok := out.(*downstream.NodeError)
	require.True(t, ok)
	assert.Equal(t, -32000, nodeErr.Code)
	assert.Equal(t, "nonce too low", nodeErr.Message)
	assert.Same(t, success, nodeErr.Response)

	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"result":"0x1"}`,
		`[{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"x"}}]`,
		`not json`,
		``,
	} {
		s := &downstream.Success{StatusCode: http.StatusOK, Body: []byte(body)}
		assert.Same(t, s, downstream.Inspect(s), body)
	}

	failure := &downstream.TransportFailure{Kind: downstream.FailureTimeout}
	assert.Same(t, failure, downstream.Inspect(failure))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestFailureFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   downstream.FailureKind
		status int
	}{
		{"deadline", errors.Wrap(context.DeadlineExceeded, "post"), downstream.FailureTimeout, http.StatusGatewayTimeout},
		{"net timeout", timeoutError{}, downstream.FailureTimeout, http.StatusGatewayTimeout},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, downstream.FailureTimeout, http.StatusGatewayTimeout},
		{"read", &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}, downstream.FailureUnknown, http.StatusInternalServerError},
		{"other", errors.New("boom"), downstream.FailureUnknown, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := downstream.FailureFromError(tt.err)
			assert.Equal(t, tt.kind, f.Kind)
			assert.Equal(t, tt.status, f.HTTPStatus())
			assert.ErrorIs(t, f, tt.err)
		})
	}
}

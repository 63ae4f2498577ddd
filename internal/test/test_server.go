package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/api/router"
	"github/chapool/go-signer/internal/config"
)

// WithTestServer runs closure against a fully wired server whose downstream node is a
// FakeNode.
func WithTestServer(t *testing.T, closure func(s *api.Server)) {
	t.Helper()

	WithTestServerAndNode(t, func(s *api.Server, _ *FakeNode) {
		t.Helper()
		closure(s)
	})
}

func WithTestServerAndNode(t *testing.T, closure func(s *api.Server, node *FakeNode)) {
	t.Helper()

	node := NewFakeNode(t)
	WithTestServerConfigurable(t, Config(t, node.URL()), func(s *api.Server) {
		t.Helper()
		closure(s, node)
	})
}

// WithTestServerConfigurable runs closure against a server built from config.
func WithTestServerConfigurable(t *testing.T, config config.Server, closure func(s *api.Server)) {
	t.Helper()

	s, err := api.InitNewServer(config)
	require.NoError(t, err, "Failed to init server")

	router.Init(s)

	closure(s)

	ctx, cancel := context.WithTimeout(context.Background(), config.Echo.GracefulShutdownTimeout)
	defer cancel()

	// echo was never started, so shutting it down reports http.ErrServerClosed at most
	_ = s.Shutdown(ctx)
}

// PerformRequest serves a request against s without a network listener. body may be
// nil, a string, a []byte or any JSON marshallable value.
func PerformRequest(t *testing.T, s *api.Server, method string, path string, body any, headers http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	case []byte:
		reader = bytes.NewBuffer(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err, "Failed to serialize request body")
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)

	if headers != nil {
		req.Header = headers.Clone()
	}
	if body != nil && req.Header.Get(echo.HeaderContentType) == "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}

	res := httptest.NewRecorder()
	s.Echo.ServeHTTP(res, req)

	return res
}

package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/test"
)

func TestGetHealthy(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, http.StatusOK, res.Result().StatusCode, res.Body.String())
		assert.Contains(t, res.Body.String(), "downstream: chain id 1337")
		assert.Contains(t, res.Body.String(), "signer: 1 accounts")
		assert.Equal(t, "no-store", res.Header().Get("Cache-Control"))
	})
}

func TestGetHealthyChainMismatch(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		s.Config.ChainID = 1

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "expected 1")
	})
}

func TestGetHealthyDownstreamUnreachable(t *testing.T) {
	test.WithTestServerAndNode(t, func(s *api.Server, node *test.FakeNode) {
		node.Close()

		res := test.PerformRequest(t, s, "GET", "/-/healthy", nil, nil)
		require.Equal(t, 521, res.Result().StatusCode)
		assert.Contains(t, res.Body.String(), "downstream: unreachable")
	})
}

package common_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/test"
)

func TestGetMetrics(t *testing.T) {
	test.WithTestServer(t, func(s *api.Server) {
		res := test.PerformRequest(t, s, http.MethodPost, "/", `{"jsonrpc":"2.0","id":1,"method":"eth_blockNumber"}`, nil)
		require.Equal(t, http.StatusOK, res.Code)

		res = test.PerformRequest(t, s, http.MethodGet, "/metrics", nil, nil)
		require.Equal(t, http.StatusOK, res.Code)

		body := res.Body.String()
		assert.Contains(t, body, `signer_gateway_requests_total{kind="passthrough"} 1`)
		assert.Contains(t, body, `signer_gateway_downstream_outcomes_total{outcome="success"} 1`)
	})
}

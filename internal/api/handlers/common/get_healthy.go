package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/util"
)

func GetHealthyRoute(s *api.Server) *echo.Route {
	return s.Router.Management.GET("/healthy", getHealthyHandler(s))
}

// Health check
// Returns an overall health status of the gateway: the server is initialized and the
// downstream node answers with the configured chain id.
func getHealthyHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.Ready() {
			return c.String(statusNotReady, "Not ready.")
		}

		ctx, cancel := context.WithTimeout(c.Request().Context(), s.Config.Management.ReadinessTimeout)
		defer cancel()

		var checks []string
		healthy := true

		chainID, err := s.Node.ChainID(ctx)
		switch {
		case err != nil:
			util.LogFromContext(ctx).Warn().Err(err).Msg("Health check of downstream node failed")
			checks = append(checks, "downstream: unreachable")
			healthy = false
		case chainID.Cmp(s.Config.ChainIDBig()) != 0:
			checks = append(checks, fmt.Sprintf("downstream: chain id %s, expected %d", chainID, s.Config.ChainID))
			healthy = false
		default:
			checks = append(checks, "downstream: chain id "+chainID.String())
		}

		checks = append(checks, fmt.Sprintf("signer: %d accounts", len(s.Signer.Accounts())))

		if !healthy {
			return c.String(statusNotReady, strings.Join(checks, "\n"))
		}

		return c.String(http.StatusOK, strings.Join(checks, "\n"))
	}
}

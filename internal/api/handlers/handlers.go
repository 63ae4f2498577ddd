package handlers

import (
	"github.com/labstack/echo/v4"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/api/handlers/common"
	"github/chapool/go-signer/internal/api/handlers/rpc"
)

func AttachAllRoutes(s *api.Server) {
	s.Router.Routes = []*echo.Route{
		common.GetHealthyRoute(s),
		common.GetReadyRoute(s),
		rpc.PostRPCRoute(s),
		rpc.PostRPCPathRoute(s),
	}

	if s.Config.Management.EnableMetrics {
		s.Router.Routes = append(s.Router.Routes, common.GetMetricsRoute(s))
	}
}

package rpc

import (
	"io"

	"github.com/labstack/echo/v4"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/proxy"
	"github/chapool/go-signer/internal/util"
)

func PostRPCRoute(s *api.Server) *echo.Route {
	return s.Router.Root.POST("/", postRPCHandler(s))
}

// PostRPCPathRoute accepts JSON-RPC on any path; the path is mapped onto the downstream node.
func PostRPCPathRoute(s *api.Server) *echo.Route {
	return s.Router.Root.POST("/*", postRPCHandler(s))
}

func postRPCHandler(s *api.Server) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		ctx := req.Context()

		body, err := io.ReadAll(req.Body)
		if err != nil {
			util.LogFromContext(ctx).Debug().Err(err).Msg("Failed to read request body")
			return err
		}

		reply := s.Forwarder.Handle(ctx, proxy.Inbound{
			Path:   req.URL.Path,
			Header: req.Header,
			Body:   body,
		})

		header := c.Response().Header()
		for name, values := range reply.Header {
			for _, v := range values {
				header.Add(name, v)
			}
		}

		contentType := reply.Header.Get(echo.HeaderContentType)
		if contentType == "" {
			contentType = echo.MIMEApplicationJSON
		}

		return c.Blob(reply.StatusCode, contentType, reply.Body)
	}
}

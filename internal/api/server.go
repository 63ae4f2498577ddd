package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dropbox/godropbox/time2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/metrics"
	"github/chapool/go-signer/internal/nonce"
	"github/chapool/go-signer/internal/proxy"
	"github/chapool/go-signer/internal/signer"
	"github/chapool/go-signer/internal/transaction"
	"github/chapool/go-signer/internal/util"
)

type Router struct {
	Routes     []*echo.Route
	Root       *echo.Group
	Management *echo.Group
}

// Server is a central struct keeping all the dependencies.
// It is initialized with wire, which handles making the new instances of the components
// in the right order. To add a new component, 3 steps are required:
// - declaring it in this struct
// - adding a provider function in providers.go
// - adding the provider's function name to the arguments of wire.Build() in wire.go
//
// Components labeled as `wire:"-"` will be skipped and have to be initialized after the InitNewServer* call.
// For more information about wire refer to https://pkg.go.dev/github.com/google/wire
type Server struct {
	// skip wire:
	// -> initialized with router.Init(s) function
	Echo   *echo.Echo `wire:"-"`
	Router *Router    `wire:"-"`

	Config      config.Server
	Metrics     *metrics.Service
	Clock       time2.Clock
	Signer      signer.Signer
	Transmitter *downstream.Transmitter
	Node        *downstream.NodeClient
	Nonces      *nonce.Sequencer
	Rewriter    *transaction.Rewriter
	Forwarder   *proxy.Forwarder
}

// newServerWithComponents is used by wire to initialize the server components.
// Components not listed here won't be handled by wire and should be initialized separately.
// Components which shouldn't be handled must be labeled `wire:"-"` in Server struct.
func newServerWithComponents(
	cfg config.Server,
	metrics *metrics.Service,
	clock time2.Clock,
	signer signer.Signer,
	transmitter *downstream.Transmitter,
	node *downstream.NodeClient,
	nonces *nonce.Sequencer,
	rewriter *transaction.Rewriter,
	forwarder *proxy.Forwarder,
) *Server {
	return &Server{
		Config:      cfg,
		Metrics:     metrics,
		Clock:       clock,
		Signer:      signer,
		Transmitter: transmitter,
		Node:        node,
		Nonces:      nonces,
		Rewriter:    rewriter,
		Forwarder:   forwarder,
	}
}

func NewServer(config config.Server) *Server {
	s := &Server{
		Config: config,
	}

	return s
}

func (s *Server) Ready() bool {
	if err := util.IsStructInitialized(s); err != nil {
		log.Debug().Err(err).Msg("Server is not fully initialized")
		return false
	}

	return true
}

func (s *Server) Start() error {
	if !s.Ready() {
		return errors.New("server is not ready")
	}

	if err := s.Echo.Start(s.Config.Echo.ListenAddress); err != nil {
		return fmt.Errorf("failed to start echo server: %w", err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) []error {
	log.Warn().Msg("Shutting down server")

	var errs []error

	if s.Echo != nil {
		log.Debug().Msg("Shutting down echo server")

		if err := s.Echo.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Failed to shutdown echo server")
			errs = append(errs, err)
		}
	}

	if s.Rewriter != nil {
		log.Debug().Msg("Stopping signing workers")
		s.Rewriter.Stop()
	}

	if s.Node != nil {
		s.Node.Close()
	}

	if s.Transmitter != nil {
		s.Transmitter.Close()
	}

	return errs
}

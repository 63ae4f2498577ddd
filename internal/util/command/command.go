package command

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/config"
	"go.uber.org/multierr"
)

const (
	shortHelpSuffix = " (subcommands)"
)

// NewSubcommandGroup returns a command that only groups subcommands and prints its
// help when called on its own.
func NewSubcommandGroup(use string, subcommands ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: use + shortHelpSuffix,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	cmd.AddCommand(subcommands...)

	return cmd
}

// SetupLogger configures the global zerolog logger from cfg.
func SetupLogger(cfg config.LoggerServer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(cfg.Level)

	if cfg.PrettyPrintConsole {
		log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
		}))
	}
}

// WithServer builds a fully wired server from cfg, runs f with it and shuts the server
// down afterwards. The error of f and all shutdown errors are combined.
func WithServer(ctx context.Context, cfg config.Server, f func(ctx context.Context, s *api.Server) error) (err error) {
	SetupLogger(cfg.Logger)

	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	s, err := api.InitNewServer(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to initialize server")
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Echo.GracefulShutdownTimeout)
		defer cancel()

		err = multierr.Combine(append([]error{err}, s.Shutdown(shutdownCtx)...)...)
	}()

	return f(ctx, s)
}

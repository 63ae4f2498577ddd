package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/api/router"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/util/command"
)

const (
	listenFlag       = "listen"
	downstreamFlag   = "downstream"
	chainIDFlag      = "chain-id"
	retryBudgetFlag  = "retry-budget"
	keystoreFlag     = "keystore"
	passwordFileFlag = "password-file"
	privateKeyFlag   = "private-key-file"
	mnemonicFlag     = "mnemonic-file"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Starts the server",
		Long: `Starts the signing gateway

Flags override the matching environment variables.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.NewViper()
			if err := bindFlags(cmd, v); err != nil {
				return err
			}

			return runServer(cmd.Context(), config.FromViper(v))
		},
	}

	cmd.Flags().String(listenFlag, "", "listen address (SERVER_ECHO_LISTEN_ADDRESS)")
	cmd.Flags().String(downstreamFlag, "", "downstream node url (DOWNSTREAM_URL)")
	cmd.Flags().Int64(chainIDFlag, 0, "chain id transactions are signed for (CHAIN_ID)")
	cmd.Flags().Uint(retryBudgetFlag, 0, "retries after a nonce conflict (NONCE_RETRY_BUDGET)")
	cmd.Flags().String(keystoreFlag, "", "encrypted keystore v3 file (SIGNER_KEYSTORE_FILE)")
	cmd.Flags().String(passwordFileFlag, "", "keystore password file (SIGNER_PASSWORD_FILE)")
	cmd.Flags().String(privateKeyFlag, "", "hex private key file (SIGNER_PRIVATE_KEY_FILE)")
	cmd.Flags().String(mnemonicFlag, "", "BIP-39 mnemonic file (SIGNER_MNEMONIC_FILE)")

	return cmd
}

// bindFlags binds only flags given on the command line so unset flags never shadow the
// environment.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	keys := map[string]string{
		listenFlag:       config.KeyEchoListenAddress,
		downstreamFlag:   config.KeyDownstreamURL,
		chainIDFlag:      config.KeyChainID,
		retryBudgetFlag:  config.KeyNonceRetryBudget,
		keystoreFlag:     config.KeySignerKeystoreFile,
		passwordFileFlag: config.KeySignerPasswordFile,
		privateKeyFlag:   config.KeySignerPrivateKeyFile,
		mnemonicFlag:     config.KeySignerMnemonicFile,
	}

	for flag, key := range keys {
		if !cmd.Flags().Changed(flag) {
			continue
		}
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context, cfg config.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return command.WithServer(ctx, cfg, func(ctx context.Context, s *api.Server) error {
		router.Init(s)

		go func() {
			if err := s.Start(); err != nil {
				if errors.Is(err, http.ErrServerClosed) {
					log.Info().Msg("Server closed")
				} else {
					log.Fatal().Err(err).Msg("Failed to start server")
				}
			}
		}()

		log.Info().
			Str("listen", cfg.Echo.ListenAddress).
			Str("downstream", cfg.Downstream.URL).
			Int64("chain_id", cfg.ChainID).
			Int("accounts", len(s.Signer.Accounts())).
			Msg("Signing gateway started")

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		<-ctx.Done()

		log.Info().Dur("timeout", cfg.Echo.GracefulShutdownTimeout).Msg("Received shutdown signal")

		return nil
	})
}

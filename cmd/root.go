package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/cmd/env"
	"github/chapool/go-signer/cmd/keys"
	"github/chapool/go-signer/cmd/probe"
	"github/chapool/go-signer/cmd/server"
	"github/chapool/go-signer/cmd/tx"
	"github/chapool/go-signer/internal/config"
)

const dotEnvFlag = "env-file"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Version: config.GetFormattedBuildArgs(),
	Use:     "app",
	Short:   config.ModuleName,
	Long: fmt.Sprintf(`%v

A JSON-RPC gateway that signs eth_sendTransaction calls with locally held keys
and forwards everything else to an Ethereum node.
Requires configuration through ENV.`, config.ModuleName),
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		paths, err := cmd.Flags().GetStringSlice(dotEnvFlag)
		if err != nil {
			return err
		}

		return config.LoadDotEnv(paths...)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.PersistentFlags().StringSlice(dotEnvFlag, []string{".env"}, "dotenv files loaded before reading the environment (missing files are skipped)")

	// attach the subcommands
	rootCmd.AddCommand(
		env.New(),
		keys.New(),
		probe.New(),
		server.New(),
		tx.New(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute root command")
		os.Exit(1)
	}
}

package probe

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/config"
)

func newLiveness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveness",
		Short: "Runs liveness probes",
		Long: `This command runs liveness probes: the configuration is valid and every configured
key file is readable. Exits non-zero on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			return runLiveness(config.DefaultServiceConfigFromEnv(), verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func runLiveness(cfg config.Server, verbose bool) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration probe failed")
	}

	for _, path := range []string{
		cfg.Signer.KeystoreFile,
		cfg.Signer.PasswordFile,
		cfg.Signer.PrivateKeyFile,
		cfg.Signer.MnemonicFile,
	} {
		if path == "" {
			continue
		}

		f, err := os.Open(path)
		if err != nil {
			return errors.Wrapf(err, "key file probe failed for %s", path)
		}
		_ = f.Close()

		if verbose {
			fmt.Printf("Key file %s is readable.\n", path)
		}
	}

	if verbose {
		fmt.Println("Liveness probes succeeded.")
	}

	return nil
}

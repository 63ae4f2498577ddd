package probe

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/config"
)

func newReadiness() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readiness",
		Short: "Runs readiness probes",
		Long: `This command runs readiness probes: the downstream node is reachable and serves
the configured chain id. Exits non-zero on failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			verbose, err := cmd.Flags().GetBool(verboseFlag)
			if err != nil {
				return err
			}

			return runReadiness(cmd.Context(), config.DefaultServiceConfigFromEnv(), verbose)
		},
	}

	cmd.Flags().BoolP(verboseFlag, "v", false, "Show verbose output.")

	return cmd
}

func runReadiness(ctx context.Context, cfg config.Server, verbose bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Management.ReadinessTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.Downstream.URL)
	if err != nil {
		return errors.Wrap(err, "downstream probe failed")
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "downstream probe failed")
	}

	if chainID.Cmp(cfg.ChainIDBig()) != 0 {
		return errors.Errorf("downstream serves chain id %s, expected %d", chainID, cfg.ChainID)
	}

	if verbose {
		fmt.Printf("Downstream node %s serves chain id %s.\n", cfg.Downstream.URL, chainID)
		fmt.Println("Readiness probes succeeded.")
	}

	return nil
}

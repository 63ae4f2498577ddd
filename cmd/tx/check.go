package tx

import (
	"context"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/config"
)

const hashFlag = "hash"

var ErrPending = errors.New("transaction is still pending")

func newCheck() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Looks up a transaction on the downstream node",
		Long: `Fetches a transaction and its receipt from DOWNSTREAM_URL and prints
sender, recipient, nonce, block and execution status.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hash, err := cmd.Flags().GetString(hashFlag)
			if err != nil {
				return err
			}

			return runCheck(cmd.Context(), config.DefaultServiceConfigFromEnv(), hash, cmd.OutOrStdout())
		},
	}

	cmd.Flags().String(hashFlag, "", "transaction hash to check")
	_ = cmd.MarkFlagRequired(hashFlag)

	return cmd
}

func runCheck(ctx context.Context, cfg config.Server, hash string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(common.FromHex(hash)) != common.HashLength {
		return errors.Errorf("invalid transaction hash %q", hash)
	}
	txHash := common.HexToHash(hash)

	client, err := ethclient.DialContext(ctx, cfg.Downstream.URL)
	if err != nil {
		return errors.Wrap(err, "failed to connect to downstream")
	}
	defer client.Close()

	tx, isPending, err := client.TransactionByHash(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return errors.Errorf("transaction %s not found", txHash.Hex())
	}
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	if isPending {
		return ErrPending
	}

	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return errors.Wrap(err, "failed to get receipt")
	}

	fmt.Fprintf(out, "Transaction Hash: %s\n", txHash.Hex())
	fmt.Fprintf(out, "Chain ID: %d\n", cfg.ChainID)

	from, err := types.Sender(types.LatestSignerForChainID(cfg.ChainIDBig()), tx)
	if err != nil {
		fmt.Fprintf(out, "From: unknown (%v)\n", err)
	} else {
		fmt.Fprintf(out, "From: %s\n", from.Hex())
	}

	if to := tx.To(); to != nil {
		fmt.Fprintf(out, "To: %s\n", to.Hex())
	} else {
		fmt.Fprintln(out, "To: contract creation")
	}

	fmt.Fprintf(out, "Nonce: %d\n", tx.Nonce())
	fmt.Fprintf(out, "Value: %s wei\n", tx.Value())
	fmt.Fprintf(out, "Block Number: %s\n", receipt.BlockNumber)
	fmt.Fprintf(out, "Gas Used: %d\n", receipt.GasUsed)

	if receipt.Status == types.ReceiptStatusSuccessful {
		fmt.Fprintln(out, "Status: success")
	} else {
		fmt.Fprintln(out, "Status: failed")
	}

	return nil
}

package tx

import (
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("tx",
		newCheck(),
	)
}

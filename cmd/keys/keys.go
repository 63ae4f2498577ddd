package keys

import (
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/util/command"
)

func New() *cobra.Command {
	return command.NewSubcommandGroup("keys",
		newNew(),
	)
}

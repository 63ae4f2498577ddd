package keys

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github/chapool/go-signer/internal/signer"
	"github/chapool/go-signer/internal/util"
)

const (
	passwordFileFlag = "password-file"
	lightFlag        = "light"
)

func newNew() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new <path>",
		Short: "Creates an encrypted keystore file",
		Long: `Generates a new private key and writes it as an encrypted keystore v3 file.

The password is read from --password-file or asked for on the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passwordFile, err := cmd.Flags().GetString(passwordFileFlag)
			if err != nil {
				return err
			}

			light, err := cmd.Flags().GetBool(lightFlag)
			if err != nil {
				return err
			}

			password, err := readPassword(passwordFile)
			if err != nil {
				return err
			}

			addr, err := signer.NewKeyFile(args[0], password, light)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created %s for address %s\n", args[0], addr.Hex())

			return nil
		},
	}

	cmd.Flags().String(passwordFileFlag, "", "file containing the keystore password")
	cmd.Flags().Bool(lightFlag, false, "use light scrypt parameters (faster, weaker; for tests only)")

	return cmd
}

func readPassword(passwordFile string) (string, error) {
	if passwordFile != "" {
		return util.ReadSecretFile(passwordFile)
	}

	password, err := util.PromptPassword("Password: ")
	if err != nil {
		return "", err
	}

	repeat, err := util.PromptPassword("Repeat password: ")
	if err != nil {
		return "", err
	}

	if password != repeat {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}

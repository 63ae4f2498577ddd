package test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/config"
)

const (
	// PrivateKey is a well known development key; never fund it.
	PrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	ChainID    = 1337
)

var Address = common.HexToAddress("0x2c7536E3605D9C16a7a3D7b1898e529396a65c23")

// Config returns a server config pointing at downstreamURL and signing with PrivateKey.
func Config(t *testing.T, downstreamURL string) config.Server {
	t.Helper()

	keyFile := filepath.Join(t.TempDir(), "signer.key")
	require.NoError(t, os.WriteFile(keyFile, []byte(PrivateKey), 0o600))

	cfg := config.DefaultServiceConfigFromEnv()
	cfg.ChainID = ChainID
	cfg.Logger.PrettyPrintConsole = false
	cfg.Downstream.URL = downstreamURL
	cfg.Downstream.Timeout = 2 * time.Second
	cfg.Signer = config.Signer{
		PrivateKeyFile: keyFile,
		HDAccounts:     1,
		Workers:        2,
	}

	return cfg
}

package config_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/config"
)

func TestPrintServiceEnv(t *testing.T) {
	config := config.DefaultServiceConfigFromEnv()
	_, err := json.MarshalIndent(config, "", "  ")

	if err != nil {
		t.Fatal(err)
	}
}

func TestServiceConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("CHAIN_ID", "1337")
	t.Setenv("DOWNSTREAM_URL", "https://node.example.org:8545/rpc")
	t.Setenv("DOWNSTREAM_TIMEOUT", "750ms")
	t.Setenv("LOGGER_LEVEL", "warn")
	t.Setenv("NONCE_RETRY_BUDGET", "3")
	t.Setenv("NONCE_CONFLICT_PATTERNS", "nonce too low, OldNonce ,")
	t.Setenv("NONCE_CONFLICT_CODES", "-32000,abc,-32010")

	cfg := config.DefaultServiceConfigFromEnv()

	assert.Equal(t, int64(1337), cfg.ChainID)
	assert.Equal(t, "1337", cfg.ChainIDBig().String())
	assert.Equal(t, "https://node.example.org:8545/rpc", cfg.Downstream.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Downstream.Timeout)
	assert.Equal(t, zerolog.WarnLevel, cfg.Logger.Level)
	assert.Equal(t, uint(3), cfg.Nonce.RetryBudget)
	assert.Equal(t, []string{"nonce too low", "OldNonce"}, cfg.Nonce.ConflictPatterns)
	assert.Equal(t, []int{-32000, -32010}, cfg.Nonce.ConflictCodes)
}

func TestServiceConfigDefaults(t *testing.T) {
	cfg := config.FromViper(config.NewViper())

	assert.Equal(t, ":8545", cfg.Echo.ListenAddress)
	assert.Equal(t, 5*time.Second, cfg.Downstream.Timeout)
	assert.Equal(t, uint(2), cfg.Nonce.RetryBudget)
	assert.Contains(t, cfg.Nonce.ConflictPatterns, "nonce too low")
	assert.Equal(t, 1, cfg.Signer.HDAccounts)
}

func TestServiceConfigValidate(t *testing.T) {
	valid := func() config.Server {
		cfg := config.FromViper(config.NewViper())
		cfg.ChainID = 1
		cfg.Downstream.URL = "http://localhost:8546"
		cfg.Signer.PrivateKeyFile = "/tmp/key"
		return cfg
	}

	require.NoError(t, valid().Validate())

	atLimit := valid()
	atLimit.Nonce.RetryBudget = config.MaxRetryBudget
	require.NoError(t, atLimit.Validate())

	tests := []struct {
		name   string
		mutate func(cfg *config.Server)
	}{
		{name: "missing chain id", mutate: func(cfg *config.Server) { cfg.ChainID = 0 }},
		{name: "missing downstream", mutate: func(cfg *config.Server) { cfg.Downstream.URL = "" }},
		{name: "non http downstream", mutate: func(cfg *config.Server) { cfg.Downstream.URL = "ws://localhost:8546" }},
		{name: "zero timeout", mutate: func(cfg *config.Server) { cfg.Downstream.Timeout = 0 }},
		{name: "no signer backend", mutate: func(cfg *config.Server) { cfg.Signer.PrivateKeyFile = "" }},
		{name: "no workers", mutate: func(cfg *config.Server) { cfg.Signer.Workers = 0 }},
		{name: "retry budget above limit", mutate: func(cfg *config.Server) { cfg.Nonce.RetryBudget = config.MaxRetryBudget + 1 }},
		{name: "retry budget wrapping attempts", mutate: func(cfg *config.Server) { cfg.Nonce.RetryBudget = math.MaxUint }},
		{name: "mnemonic without accounts", mutate: func(cfg *config.Server) {
			cfg.Signer.MnemonicFile = "/tmp/mnemonic"
			cfg.Signer.HDAccounts = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

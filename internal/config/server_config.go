package config

import (
	"math/big"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

type EchoServer struct {
	Debug                         bool
	ListenAddress                 string
	BodyLimit                     string
	EnableCORSMiddleware          bool
	EnableLoggerMiddleware        bool
	EnableRecoverMiddleware       bool
	EnableRequestIDMiddleware     bool
	EnableTrailingSlashMiddleware bool
	GracefulShutdownTimeout       time.Duration
}

type ManagementServer struct {
	ReadinessTimeout time.Duration
	EnableMetrics    bool
}

type LoggerServer struct {
	Level              zerolog.Level
	RequestLevel       zerolog.Level
	LogRequestBody     bool
	LogResponseBody    bool
	PrettyPrintConsole bool
}

// Downstream describes the JSON-RPC node requests are forwarded to.
type Downstream struct {
	URL                string
	PathPrefix         string
	Timeout            time.Duration
	MaxIdleConns       int
	InsecureSkipVerify bool
}

type Signer struct {
	KeystoreFile   string
	PasswordFile   string
	PrivateKeyFile string
	MnemonicFile   string
	HDAccounts     int
	Workers        int
}

// MaxRetryBudget caps the retries one submission may spend on nonce conflicts.
const MaxRetryBudget = 16

type Nonce struct {
	RetryBudget      uint
	ConflictPatterns []string
	ConflictCodes    []int
}

type Server struct {
	ChainID    int64
	Echo       EchoServer
	Management ManagementServer
	Logger     LoggerServer
	Downstream Downstream
	Signer     Signer
	Nonce      Nonce
}

// ChainIDBig returns the configured chain id as *big.Int.
func (s Server) ChainIDBig() *big.Int {
	return big.NewInt(s.ChainID)
}

// Validate checks the settings the gateway cannot start without.
func (s Server) Validate() error {
	if s.ChainID <= 0 {
		return errors.New("CHAIN_ID must be a positive integer")
	}

	if s.Downstream.URL == "" {
		return errors.New("DOWNSTREAM_URL is required")
	}

	if !strings.HasPrefix(s.Downstream.URL, "http://") && !strings.HasPrefix(s.Downstream.URL, "https://") {
		return errors.Errorf("DOWNSTREAM_URL must be an http(s) url, got %q", s.Downstream.URL)
	}

	if s.Downstream.Timeout <= 0 {
		return errors.New("DOWNSTREAM_TIMEOUT must be positive")
	}

	if s.Signer.KeystoreFile == "" && s.Signer.PrivateKeyFile == "" && s.Signer.MnemonicFile == "" {
		return errors.New("at least one of SIGNER_KEYSTORE_FILE, SIGNER_PRIVATE_KEY_FILE or SIGNER_MNEMONIC_FILE is required")
	}

	if s.Signer.MnemonicFile != "" && s.Signer.HDAccounts <= 0 {
		return errors.New("SIGNER_HD_ACCOUNTS must be positive when SIGNER_MNEMONIC_FILE is set")
	}

	if s.Signer.Workers <= 0 {
		return errors.New("SIGNER_WORKERS must be positive")
	}

	if s.Nonce.RetryBudget > MaxRetryBudget {
		return errors.Errorf("NONCE_RETRY_BUDGET must not exceed %d", MaxRetryBudget)
	}

	return nil
}

// DefaultServiceConfigFromEnv returns the server config as parsed from environment variables
// and their respective defaults defined below.
// We don't expect that ENV_VARs change while we are running our application or our tests
// (and it would be a bad thing to do anyways with parallel testing).
// Do NOT use os.Setenv / os.Unsetenv in tests utilizing DefaultServiceConfigFromEnv()!
func DefaultServiceConfigFromEnv() Server {
	return FromViper(NewViper())
}

// FromViper builds the server config from an already prepared viper instance, e.g.
// one with command line flags bound on top of the environment.
func FromViper(v *viper.Viper) Server {
	return Server{
		ChainID: v.GetInt64(KeyChainID),
		Echo: EchoServer{
			Debug:                         v.GetBool(KeyEchoDebug),
			ListenAddress:                 v.GetString(KeyEchoListenAddress),
			BodyLimit:                     v.GetString(KeyEchoBodyLimit),
			EnableCORSMiddleware:          v.GetBool(KeyEchoEnableCORSMiddleware),
			EnableLoggerMiddleware:        v.GetBool(KeyEchoEnableLoggerMiddleware),
			EnableRecoverMiddleware:       v.GetBool(KeyEchoEnableRecoverMiddleware),
			EnableRequestIDMiddleware:     v.GetBool(KeyEchoEnableRequestIDMiddleware),
			EnableTrailingSlashMiddleware: v.GetBool(KeyEchoEnableTrailingSlashMiddleware),
			GracefulShutdownTimeout:       v.GetDuration(KeyEchoGracefulShutdownTimeout),
		},
		Management: ManagementServer{
			ReadinessTimeout: v.GetDuration(KeyManagementReadinessTimeout),
			EnableMetrics:    v.GetBool(KeyManagementEnableMetrics),
		},
		Logger: LoggerServer{
			Level:              parseLevel(v.GetString(KeyLoggerLevel), zerolog.DebugLevel),
			RequestLevel:       parseLevel(v.GetString(KeyLoggerRequestLevel), zerolog.DebugLevel),
			LogRequestBody:     v.GetBool(KeyLoggerLogRequestBody),
			LogResponseBody:    v.GetBool(KeyLoggerLogResponseBody),
			PrettyPrintConsole: v.GetBool(KeyLoggerPrettyPrintConsole),
		},
		Downstream: Downstream{
			URL:                v.GetString(KeyDownstreamURL),
			PathPrefix:         v.GetString(KeyDownstreamPathPrefix),
			Timeout:            v.GetDuration(KeyDownstreamTimeout),
			MaxIdleConns:       v.GetInt(KeyDownstreamMaxIdleConns),
			InsecureSkipVerify: v.GetBool(KeyDownstreamInsecureSkipVerify),
		},
		Signer: Signer{
			KeystoreFile:   v.GetString(KeySignerKeystoreFile),
			PasswordFile:   v.GetString(KeySignerPasswordFile),
			PrivateKeyFile: v.GetString(KeySignerPrivateKeyFile),
			MnemonicFile:   v.GetString(KeySignerMnemonicFile),
			HDAccounts:     v.GetInt(KeySignerHDAccounts),
			Workers:        v.GetInt(KeySignerWorkers),
		},
		Nonce: Nonce{
			RetryBudget:      v.GetUint(KeyNonceRetryBudget),
			ConflictPatterns: splitList(v.GetString(KeyNonceConflictPatterns)),
			ConflictCodes:    parseCodes(v.GetString(KeyNonceConflictCodes)),
		},
	}
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return fallback
	}
	return level
}

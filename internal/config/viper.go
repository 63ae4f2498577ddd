package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Keys map 1:1 onto environment variables: "downstream.url" is read from DOWNSTREAM_URL.
const (
	KeyChainID = "chain.id"

	KeyEchoDebug                         = "server.echo.debug"
	KeyEchoListenAddress                 = "server.echo.listen_address"
	KeyEchoBodyLimit                     = "server.echo.body_limit"
	KeyEchoEnableCORSMiddleware          = "server.echo.enable_cors_middleware"
	KeyEchoEnableLoggerMiddleware        = "server.echo.enable_logger_middleware"
	KeyEchoEnableRecoverMiddleware       = "server.echo.enable_recover_middleware"
	KeyEchoEnableRequestIDMiddleware     = "server.echo.enable_request_id_middleware"
	KeyEchoEnableTrailingSlashMiddleware = "server.echo.enable_trailing_slash_middleware"
	KeyEchoGracefulShutdownTimeout       = "server.echo.graceful_shutdown_timeout"

	KeyManagementReadinessTimeout = "server.management.readiness_timeout"
	KeyManagementEnableMetrics    = "server.management.metrics_enabled"

	KeyLoggerLevel              = "logger.level"
	KeyLoggerRequestLevel       = "logger.request_level"
	KeyLoggerLogRequestBody     = "logger.log_request_body"
	KeyLoggerLogResponseBody    = "logger.log_response_body"
	KeyLoggerPrettyPrintConsole = "logger.pretty_print_console"

	KeyDownstreamURL                = "downstream.url"
	KeyDownstreamPathPrefix         = "downstream.path_prefix"
	KeyDownstreamTimeout            = "downstream.timeout"
	KeyDownstreamMaxIdleConns       = "downstream.max_idle_conns"
	KeyDownstreamInsecureSkipVerify = "downstream.insecure_skip_verify"

	KeySignerKeystoreFile   = "signer.keystore_file"
	KeySignerPasswordFile   = "signer.password_file"
	KeySignerPrivateKeyFile = "signer.private_key_file"
	KeySignerMnemonicFile   = "signer.mnemonic_file"
	KeySignerHDAccounts     = "signer.hd_accounts"
	KeySignerWorkers        = "signer.workers"

	KeyNonceRetryBudget      = "nonce.retry_budget"
	KeyNonceConflictPatterns = "nonce.conflict_patterns"
	KeyNonceConflictCodes    = "nonce.conflict_codes"
)

// DefaultConflictPatterns are the message fragments go-ethereum, Besu, Nethermind and
// Erigon use to reject a transaction whose nonce is already taken.
const DefaultConflictPatterns = "nonce too low,nonce has already been used,already known,known transaction,replacement transaction underpriced"

const (
	defaultDownstreamTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadinessTimeout  = 4 * time.Second
	defaultMaxIdleConns      = 64
	defaultRetryBudget       = 2
	defaultHDAccounts        = 1
	defaultSignerWorkers     = 4
)

// NewViper returns a viper instance reading every key from the environment with the
// defaults of this service applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyChainID, 0)

	v.SetDefault(KeyEchoDebug, false)
	v.SetDefault(KeyEchoListenAddress, ":8545")
	v.SetDefault(KeyEchoBodyLimit, "2M")
	v.SetDefault(KeyEchoEnableCORSMiddleware, true)
	v.SetDefault(KeyEchoEnableLoggerMiddleware, true)
	v.SetDefault(KeyEchoEnableRecoverMiddleware, true)
	v.SetDefault(KeyEchoEnableRequestIDMiddleware, true)
	v.SetDefault(KeyEchoEnableTrailingSlashMiddleware, true)
	v.SetDefault(KeyEchoGracefulShutdownTimeout, defaultShutdownTimeout)

	v.SetDefault(KeyManagementReadinessTimeout, defaultReadinessTimeout)
	v.SetDefault(KeyManagementEnableMetrics, true)

	v.SetDefault(KeyLoggerLevel, "info")
	v.SetDefault(KeyLoggerRequestLevel, "info")
	v.SetDefault(KeyLoggerLogRequestBody, false)
	v.SetDefault(KeyLoggerLogResponseBody, false)
	v.SetDefault(KeyLoggerPrettyPrintConsole, false)

	v.SetDefault(KeyDownstreamURL, "http://127.0.0.1:8546")
	v.SetDefault(KeyDownstreamPathPrefix, "")
	v.SetDefault(KeyDownstreamTimeout, defaultDownstreamTimeout)
	v.SetDefault(KeyDownstreamMaxIdleConns, defaultMaxIdleConns)
	v.SetDefault(KeyDownstreamInsecureSkipVerify, false)

	v.SetDefault(KeySignerKeystoreFile, "")
	v.SetDefault(KeySignerPasswordFile, "")
	v.SetDefault(KeySignerPrivateKeyFile, "")
	v.SetDefault(KeySignerMnemonicFile, "")
	v.SetDefault(KeySignerHDAccounts, defaultHDAccounts)
	v.SetDefault(KeySignerWorkers, defaultSignerWorkers)

	v.SetDefault(KeyNonceRetryBudget, defaultRetryBudget)
	v.SetDefault(KeyNonceConflictPatterns, DefaultConflictPatterns)
	v.SetDefault(KeyNonceConflictCodes, "")

	return v
}

// LoadDotEnv loads variables from the given .env files into the process environment.
// Missing files are skipped; variables already set in the environment win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return errors.Wrapf(err, "failed to stat %s", path)
		}

		if err := gotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load %s", path)
		}
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseCodes(s string) []int {
	var out []int
	for _, part := range splitList(s) {
		code, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, code)
	}
	return out
}

package api

import (
	"context"

	"github.com/dropbox/godropbox/time2"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/metrics"
	"github/chapool/go-signer/internal/nonce"
	"github/chapool/go-signer/internal/proxy"
	"github/chapool/go-signer/internal/signer"
	"github/chapool/go-signer/internal/transaction"
	"github/chapool/go-signer/internal/util"
)

// PROVIDERS - define here only providers that for various reasons (e.g. cyclic dependency) can't live in their corresponding packages
// or for wrapping providers that only accept sub-configs to prevent the requirement for defining providers for sub-configs.
// https://github.com/google/wire/blob/main/docs/guide.md#defining-providers

// NewSigner unlocks every configured key. Passwords without a password file are read
// from the terminal.
func NewSigner(cfg config.Server) (*signer.KeySigner, error) {
	return signer.Load(cfg.Signer, util.PromptPassword)
}

func NewClock() time2.Clock {
	return time2.DefaultClock
}

func NewTransmitter(cfg config.Server, m *metrics.Service, clock time2.Clock) (*downstream.Transmitter, error) {
	return downstream.NewTransmitter(cfg.Downstream, m, clock)
}

// NewNodeClient shares the transmitter's connection pool.
func NewNodeClient(cfg config.Server, transmitter *downstream.Transmitter) (*downstream.NodeClient, error) {
	return downstream.DialNode(context.Background(), cfg.Downstream.URL, transmitter.HTTPClient(), cfg.Downstream.Timeout)
}

func NewSequencer(node *downstream.NodeClient, m *metrics.Service) *nonce.Sequencer {
	return nonce.NewSequencer(node, m)
}

func NewRewriter(cfg config.Server, s signer.Signer, m *metrics.Service) *transaction.Rewriter {
	return transaction.NewRewriter(s, cfg.ChainIDBig(), cfg.Signer.Workers, m)
}

func NewRetryController(cfg config.Server, m *metrics.Service) *proxy.RetryController {
	return &proxy.RetryController{
		Budget:   cfg.Nonce.RetryBudget,
		Matcher:  proxy.NewPatternMatcher(cfg.Nonce.ConflictPatterns, cfg.Nonce.ConflictCodes),
		Observer: m,
	}
}

func NewForwarder(
	transmitter *downstream.Transmitter,
	nonces *nonce.Sequencer,
	rewriter *transaction.Rewriter,
	s signer.Signer,
	retry *proxy.RetryController,
	m *metrics.Service,
) *proxy.Forwarder {
	return proxy.NewForwarder(transmitter, nonces, rewriter, s, retry, m)
}

//go:build wireinject

package api

import (
	"github.com/google/wire"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/metrics"
	"github/chapool/go-signer/internal/signer"
)

// INJECTORS - https://github.com/google/wire/blob/main/docs/guide.md#injectors

// serviceSet groups the default set of providers that are required for initing a server
var serviceSet = wire.NewSet(
	newServerWithComponents,
	metrics.New,
	NewClock,
	signerSet,
	NewTransmitter,
	NewNodeClient,
	NewSequencer,
	NewRewriter,
	NewRetryController,
	NewForwarder,
)

var signerSet = wire.NewSet(
	NewSigner,
	wire.Bind(new(signer.Signer), new(*signer.KeySigner)),
)

// InitNewServer returns a new Server instance.
func InitNewServer(
	_ config.Server,
) (*Server, error) {
	wire.Build(serviceSet)
	return new(Server), nil
}

// InitNewServerWithSigner returns a new Server instance signing with the given signer.
// All the other components are initialized via go wire according to the configuration.
func InitNewServerWithSigner(
	_ config.Server,
	_ signer.Signer,
) (*Server, error) {
	wire.Build(
		newServerWithComponents,
		metrics.New,
		NewClock,
		NewTransmitter,
		NewNodeClient,
		NewSequencer,
		NewRewriter,
		NewRetryController,
		NewForwarder,
	)
	return new(Server), nil
}

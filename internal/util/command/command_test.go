package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/api"
	"github/chapool/go-signer/internal/test"
	"github/chapool/go-signer/internal/util/command"
)

func TestWithServer(t *testing.T) {
	node := test.NewFakeNode(t)
	cfg := test.Config(t, node.URL())

	var testError = errors.New("test error")

	resultErr := command.WithServer(t.Context(), cfg, func(ctx context.Context, s *api.Server) error {
		chainID, err := s.Node.ChainID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(test.ChainID), chainID.Int64())

		return testError
	})

	assert.ErrorIs(t, resultErr, testError)
}

func TestWithServerInvalidConfig(t *testing.T) {
	node := test.NewFakeNode(t)
	cfg := test.Config(t, node.URL())
	cfg.ChainID = 0

	called := false
	err := command.WithServer(t.Context(), cfg, func(context.Context, *api.Server) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.False(t, called)
}

func TestNewSubcommandGroup(t *testing.T) {
	cmd := command.NewSubcommandGroup("probe", &cobra.Command{Use: "liveness"}, &cobra.Command{Use: "readiness"})

	assert.Equal(t, "probe", cmd.Use)
	assert.Len(t, cmd.Commands(), 2)
}

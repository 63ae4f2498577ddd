package proxy_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github/chapool/go-signer/internal/config"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/proxy"
)

type retryCounter struct {
	n int
}

func (r *retryCounter) ObserveNonceRetry() { r.n++ }

func conflict(msg string) *downstream.NodeError {
	return &downstream.NodeError{Code: -32000, Message: msg, Response: &downstream.Success{StatusCode: 200}}
}

func newController(budget uint) (*proxy.RetryController, *retryCounter) {
	counter := &retryCounter{}
	cfg := config.DefaultServiceConfigFromEnv()

	return &proxy.RetryController{
		Budget:   budget,
		Matcher:  proxy.NewPatternMatcher(cfg.Nonce.ConflictPatterns, nil),
		Observer: counter,
	}, counter
}

func TestPatternMatcher(t *testing.T) {
	m := proxy.NewPatternMatcher([]string{"Nonce too low", " already known "}, []int{-32010})

	assert.True(t, m.Matches(conflict("nonce too low: next nonce 5, tx nonce 3")))
	assert.True(t, m.Matches(conflict("ALREADY KNOWN")))
	assert.True(t, m.Matches(&downstream.NodeError{Code: -32010, Message: "whatever"}))
	assert.False(t, m.Matches(conflict("insufficient funds for gas * price + value")))
	assert.False(t, m.Matches(nil))
}

func TestRetryControllerRetriesConflicts(t *testing.T) {
	rc, counter := newController(2)

	var calls, resyncs int
	out, err := rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
		calls++
		if calls == 1 {
			return conflict("nonce too low"), nil
		}
		return &downstream.Success{StatusCode: 200}, nil
	}, func(context.Context) error {
		resyncs++
		return nil
	})

	require.NoError(t, err)
	assert.IsType(t, &downstream.Success{}, out)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, resyncs)
	assert.Equal(t, 1, counter.n)
}

func TestRetryControllerBudgetExhausted(t *testing.T) {
	rc, _ := newController(2)

	var calls, resyncs int
	out, err := rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
		calls++
		return conflict("replacement transaction underpriced"), nil
	}, func(context.Context) error {
		resyncs++
		return nil
	})

	require.NoError(t, err)
	nodeErr, ok := out.(*downstream.NodeError)
	require.True(t, ok)
	assert.Equal(t, "replacement transaction underpriced", nodeErr.Message)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, resyncs)
}

func TestRetryControllerZeroBudget(t *testing.T) {
	rc, _ := newController(0)

	calls := 0
	out, err := rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
		calls++
		return conflict("nonce too low"), nil
	}, func(context.Context) error {
		t.Fatal("resync without retry")
		return nil
	})

	require.NoError(t, err)
	assert.IsType(t, &downstream.NodeError{}, out)
	assert.Equal(t, 1, calls)
}

func TestRetryControllerDoesNotRetryOtherOutcomes(t *testing.T) {
	outcomes := []downstream.Outcome{
		conflict("insufficient funds"),
		&downstream.TransportFailure{Kind: downstream.FailureTimeout},
		&downstream.Success{StatusCode: 200},
	}

	for _, o := range outcomes {
		rc, counter := newController(3)

		calls := 0
		out, err := rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
			calls++
			return o, nil
		}, func(context.Context) error { return nil })

		require.NoError(t, err)
		assert.Same(t, o, out)
		assert.Equal(t, 1, calls)
		assert.Zero(t, counter.n)
	}
}

func TestRetryControllerStopsOnErrors(t *testing.T) {
	rc, _ := newController(3)
	boom := errors.New("boom")

	_, err := rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
		return nil, boom
	}, func(context.Context) error { return nil })
	require.ErrorIs(t, err, boom)

	calls := 0
	_, err = rc.Run(t.Context(), func(context.Context) (downstream.Outcome, error) {
		calls++
		return conflict("nonce too low"), nil
	}, func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

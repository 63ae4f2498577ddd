package proxy

import (
	"context"
	"strings"

	"github.com/avast/retry-go/v4"
	"github/chapool/go-signer/internal/downstream"
	"github/chapool/go-signer/internal/util"
)

// ConflictMatcher recognizes node errors that mean the nonce was already taken.
type ConflictMatcher interface {
	Matches(err *downstream.NodeError) bool
}

// PatternMatcher matches node error codes exactly and messages by case insensitive
// substring.
type PatternMatcher struct {
	patterns []string
	codes    map[int]struct{}
}

func NewPatternMatcher(patterns []string, codes []int) PatternMatcher {
	m := PatternMatcher{codes: make(map[int]struct{}, len(codes))}
	for _, p := range patterns {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			m.patterns = append(m.patterns, p)
		}
	}
	for _, c := range codes {
		m.codes[c] = struct{}{}
	}
	return m
}

func (m PatternMatcher) Matches(err *downstream.NodeError) bool {
	if err == nil {
		return false
	}

	if _, ok := m.codes[err.Code]; ok {
		return true
	}

	msg := strings.ToLower(err.Message)
	for _, p := range m.patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// Attempt performs one acquire, sign and send cycle. An error ends the retry loop.
type Attempt func(ctx context.Context) (downstream.Outcome, error)

// RetryObserver is told about every retry caused by a nonce conflict.
type RetryObserver interface {
	ObserveNonceRetry()
}

// RetryController re-drives an attempt after nonce conflicts, at most Budget times.
type RetryController struct {
	Budget   uint
	Matcher  ConflictMatcher
	Observer RetryObserver
}

// Run calls attempt until it yields an outcome that is not a nonce conflict or the
// budget is spent. resync runs before every retry. When the budget is exhausted the
// last conflicting NodeError is returned as outcome.
func (rc *RetryController) Run(ctx context.Context, attempt Attempt, resync func(ctx context.Context) error) (downstream.Outcome, error) {
	logger := util.LogFromContext(ctx)

	var (
		last  downstream.Outcome
		fatal error
		tries uint
	)

	err := retry.Do(
		func() error {
			if tries > 0 {
				if rc.Observer != nil {
					rc.Observer.ObserveNonceRetry()
				}
				if err := resync(ctx); err != nil {
					fatal = err
					return retry.Unrecoverable(err)
				}
			}
			tries++

			out, err := attempt(ctx)
			if err != nil {
				fatal = err
				return retry.Unrecoverable(err)
			}
			last = out

			if nodeErr, ok := out.(*downstream.NodeError); ok && rc.Matcher.Matches(nodeErr) {
				return nodeErr
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(rc.Budget+1),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Msg("Nonce conflict reported by downstream node")
		}),
	)

	switch {
	case fatal != nil:
		return nil, fatal
	case last != nil:
		if err != nil {
			if _, ok := last.(*downstream.NodeError); ok {
				logger.Warn().Uint("attempts", tries).Msg("Retry budget for nonce conflicts exhausted")
			}
		}
		return last, nil
	default:
		return nil, err
	}
}

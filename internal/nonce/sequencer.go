package nonce

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CountFetcher returns the pending transaction count of an account.
type CountFetcher interface {
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
}

// QueryObserver is notified about every count query issued on a cache miss.
type QueryObserver interface {
	ObserveNonceQuery(err error)
}

// slot serializes nonce issuance for one address. lock is a one element semaphore so
// waiting for it can be abandoned when the caller's context ends.
type slot struct {
	lock   chan struct{}
	next   uint64
	cached bool
}

// Sequencer hands out strictly increasing nonces per address. Slots are created on first
// use and never removed.
type Sequencer struct {
	fetcher  CountFetcher
	observer QueryObserver
	logger   zerolog.Logger

	mu    sync.Mutex
	slots map[common.Address]*slot
}

func NewSequencer(fetcher CountFetcher, observer QueryObserver) *Sequencer {
	return &Sequencer{
		fetcher:  fetcher,
		observer: observer,
		logger:   log.With().Str("component", "nonce").Logger(),
		slots:    make(map[common.Address]*slot),
	}
}

func (s *Sequencer) slotFor(addr common.Address) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[addr]
	if !ok {
		sl = &slot{lock: make(chan struct{}, 1)}
		s.slots[addr] = sl
	}

	return sl
}

func (sl *slot) acquire(ctx context.Context) error {
	select {
	case sl.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (sl *slot) release() {
	<-sl.lock
}

// Acquire returns the next nonce for addr. On a cache miss the count is fetched while
// the address lock is held, so concurrent callers for the same address wait for it and
// then continue from the cached value.
func (s *Sequencer) Acquire(ctx context.Context, addr common.Address) (uint64, error) {
	sl := s.slotFor(addr)

	if err := sl.acquire(ctx); err != nil {
		return 0, err
	}
	defer sl.release()

	if sl.cached {
		n := sl.next
		sl.next++
		return n, nil
	}

	count, err := s.fetcher.PendingNonceAt(ctx, addr)
	if s.observer != nil {
		s.observer.ObserveNonceQuery(err)
	}
	if err != nil {
		return 0, err
	}

	sl.next = count + 1
	sl.cached = true

	s.logger.Debug().Str("address", addr.Hex()).Uint64("count", count).Msg("Fetched transaction count")

	return count, nil
}

// Resynchronize drops the cached nonce of addr; the next Acquire queries the node again.
func (s *Sequencer) Resynchronize(ctx context.Context, addr common.Address) error {
	sl := s.slotFor(addr)

	if err := sl.acquire(ctx); err != nil {
		return err
	}
	defer sl.release()

	sl.cached = false
	s.logger.Debug().Str("address", addr.Hex()).Msg("Dropped cached nonce")

	return nil
}

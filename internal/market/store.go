package market

import (
	"context"
	"log/slog"
	"sync"
)

// Fetcher is the outbound market data source.
type Fetcher interface {
	Fetch(ctx context.Context) (*Snapshot, error)
}

// SnapshotCache persists the latest snapshot across restarts so a failed
// startup fetch can still serve slightly stale prices.
type SnapshotCache interface {
	Get(ctx context.Context) (*Snapshot, error)
	Set(ctx context.Context, snap *Snapshot) error
}

// Store owns the latest snapshot. It is refreshed once at startup and
// after that only on an explicit Refresh call; while no snapshot is held
// the service runs degraded and valuations fall back to cost basis.
type Store struct {
	mu      sync.RWMutex
	latest  *Snapshot
	lastErr error

	fetcher Fetcher
	cache   SnapshotCache
	log     *slog.Logger
}

func NewStore(fetcher Fetcher, cache SnapshotCache, log *slog.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		cache:   cache,
		log:     log,
	}
}

// Refresh fetches a fresh snapshot. On failure the previous snapshot (or,
// when there is none, a cached one) is kept and the error is retained for
// Err until the next successful refresh.
func (s *Store) Refresh(ctx context.Context) error {
	snap, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.log.Error("market refresh failed", "error", err)

		s.mu.Lock()
		s.lastErr = err
		degraded := s.latest == nil
		s.mu.Unlock()

		if degraded && s.cache != nil {
			if cached, cacheErr := s.cache.Get(ctx); cacheErr == nil && cached != nil {
				s.log.Info("serving cached market snapshot", "quotes", len(cached.Quotes))
				s.mu.Lock()
				s.latest = cached
				s.mu.Unlock()
			}
		}
		return err
	}

	s.mu.Lock()
	s.latest = snap
	s.lastErr = nil
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			s.log.Warn("failed to cache market snapshot", "error", err)
		}
	}
	return nil
}

// Latest returns the current snapshot, nil while degraded.
func (s *Store) Latest() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Err returns the error from the most recent failed refresh, nil after a
// successful one.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/repository"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

// Synchronizer keeps the profile cache in step with the ledger. It never
// writes through: every cache update follows an authoritative read, and is
// stamped before that read so a refresh that started earlier than the last
// published one is discarded.
type Synchronizer struct {
	gw       ledger.Gateway
	store    repository.Store
	pageSize uint64
	logger   logger.Logger
}

// NewSynchronizer creates a synchronizer. pageSize is clamped to
// [1, ledger.MaxPageSize].
func NewSynchronizer(gw ledger.Gateway, store repository.Store, pageSize int, l logger.Logger) *Synchronizer {
	if pageSize <= 0 || pageSize > ledger.MaxPageSize {
		pageSize = ledger.MaxPageSize
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Synchronizer{gw: gw, store: store, pageSize: uint64(pageSize), logger: l}
}

// RefreshStats replaces the cached counters. On failure the prior counters
// are kept and the error is returned for logging.
func (s *Synchronizer) RefreshStats(ctx context.Context) error {
	start := time.Now()
	stamp := s.store.Stamp()
	st, err := s.gw.ReadGlobalStats(ctx)
	if err != nil {
		metrics.RecordRefresh(model.RefreshStats.String(), "error", msSince(start))
		s.logger.Warn(ctx, "stats refresh failed", logger.Error(err))
		return err
	}
	if !s.store.SetStats(ctx, st, stamp) {
		metrics.RecordRefresh(model.RefreshStats.String(), "stale", msSince(start))
		return nil
	}
	metrics.RecordRefresh(model.RefreshStats.String(), "ok", msSince(start))
	return nil
}

// RefreshBuilders reads the first page of builders and publishes it sorted
// by credibility. Any failed read aborts the page and leaves the prior
// board in place.
func (s *Synchronizer) RefreshBuilders(ctx context.Context) error {
	start := time.Now()
	stamp := s.store.Stamp()
	board, err := s.readBoard(ctx)
	if err != nil {
		metrics.RecordRefresh(model.RefreshBoard.String(), "error", msSince(start))
		s.logger.Warn(ctx, "builder refresh failed", logger.Error(err))
		return err
	}

	sort.SliceStable(board, func(i, j int) bool {
		return board[i].CredibilityScore > board[j].CredibilityScore
	})
	if !s.store.ReplaceBoard(ctx, board, stamp) {
		metrics.RecordRefresh(model.RefreshBoard.String(), "stale", msSince(start))
		s.logger.Debug(ctx, "stale builder board discarded", logger.Int("builders", len(board)))
		return nil
	}

	metrics.RecordRefresh(model.RefreshBoard.String(), "ok", msSince(start))
	s.logger.Debug(ctx, "builder board refreshed", logger.Int("builders", len(board)))
	return nil
}

func (s *Synchronizer) readBoard(ctx context.Context) ([]model.BuilderProfile, error) {
	addrs, err := s.gw.ListBuilderAddresses(ctx, 0, s.pageSize)
	if err != nil {
		return nil, err
	}

	board := make([]model.BuilderProfile, len(addrs))
	g, gctx := errgroup.WithContext(ctx)
	for i, addr := range addrs {
		g.Go(func() error {
			l, err := s.gw.ReadProfile(gctx, addr)
			if err != nil {
				return err
			}
			p, ok := l.Get()
			if !ok {
				return fmt.Errorf("%w: %s", ErrInconsistentBoard, addr.Hex())
			}
			board[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return board, nil
}

// RefreshOne re-reads one profile and replaces its cache entry. NotFound is
// a normal result and leaves the cache untouched. When a newer read of addr
// was published meanwhile, that cached profile is returned instead.
func (s *Synchronizer) RefreshOne(ctx context.Context, addr model.Address) (model.Lookup, error) {
	start := time.Now()
	stamp := s.store.Stamp()
	l, err := s.gw.ReadProfile(ctx, addr)
	if err != nil {
		metrics.RecordRefresh(model.RefreshProfile.String(), "error", msSince(start))
		s.logger.Warn(ctx, "profile refresh failed", logger.Stringer("address", addr), logger.Error(err))
		return model.NotFound(), err
	}
	if p, ok := l.Get(); ok && !s.store.Put(ctx, p, stamp) {
		metrics.RecordRefresh(model.RefreshProfile.String(), "stale", msSince(start))
		if cur, err := s.store.Get(ctx, addr); err == nil {
			return model.Found(cur), nil
		}
		return l, nil
	}
	metrics.RecordRefresh(model.RefreshProfile.String(), "ok", msSince(start))
	return l, nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}

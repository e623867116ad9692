package scenario

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/okian/vouchbase/pkg/logger"
)

// waitForBoard asks for a board refresh and polls the leaderboard until
// every registered builder is on it with its expected credibility.
func waitForBoard(ctx context.Context, config *Config, c *client, plan *Plan, out *outcome) error {
	for _, kind := range []string{"board", "stats"} {
		if err := c.refresh(ctx, kind); err != nil {
			return fmt.Errorf("failed to request %s refresh: %w", kind, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, config.Settle)
	defer cancel()
	ticker := time.NewTicker(settleInterval)
	defer ticker.Stop()

	for {
		board, err := c.leaderboard(ctx, MaxBuilders)
		if err == nil && settled(board, plan, out) {
			return nil
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNotSettled, err)
			}
			return ErrNotSettled
		case <-ticker.C:
		}
	}
}

func settled(board []Entry, plan *Plan, out *outcome) bool {
	seen := make(map[common.Address]uint64, len(board))
	for _, e := range board {
		seen[e.Wallet] = e.CredibilityScore
	}
	for _, b := range plan.Builders {
		if !out.registered[b.Wallet] {
			continue
		}
		score, ok := seen[b.Wallet]
		if !ok || score != out.credibility[b.Wallet] {
			return false
		}
	}
	return true
}

// retrieveRanks looks up every registered builder concurrently.
func retrieveRanks(ctx context.Context, config *Config, c *client, plan *Plan, out *outcome, stats *Stats) (map[common.Address]Entry, error) {
	var (
		mu    sync.Mutex
		ranks = make(map[common.Address]Entry, len(plan.Builders))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)
	for _, b := range plan.Builders {
		if !out.registered[b.Wallet] {
			continue
		}
		wallet := b.Wallet
		g.Go(func() error {
			e, err := c.rank(gctx, wallet)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				logger.Get().Warn(gctx, "rank lookup failed", logger.Stringer("wallet", wallet), logger.Error(err))
				return nil
			}
			mu.Lock()
			ranks[wallet] = e
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rank retrieval failed: %w", err)
	}

	stats.RanksRetrieved = len(ranks)
	logger.Get().Info(ctx, "rank retrieval completed", logger.Int("retrieved", len(ranks)))
	return ranks, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, c *client, stats *Stats) ([]Entry, error) {
	board, err := c.leaderboard(ctx, config.TopN)
	if err != nil {
		return nil, err
	}
	stats.LeaderboardEntries = len(board)
	logger.Get().Info(ctx, "retrieved leaderboard", logger.Int("entries", len(board)))
	return board, nil
}

package scenario

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/vouchbase/pkg/logger"
)

// expectedOrder ranks the registered builders the way the board must:
// credibility descending, ties in registration order.
func expectedOrder(plan *Plan, out *outcome) []Entry {
	order := make([]Entry, 0, len(plan.Builders))
	for _, b := range plan.Builders {
		if !out.registered[b.Wallet] {
			continue
		}
		order = append(order, Entry{Wallet: b.Wallet, Username: b.Username, CredibilityScore: out.credibility[b.Wallet]})
	}
	sort.SliceStable(order, func(i, j int) bool {
		return order[i].CredibilityScore > order[j].CredibilityScore
	})
	for i := range order {
		order[i].Rank = i + 1
	}
	return order
}

// verifyResults checks ranks and the leaderboard against what was written.
// Other builders may already be on the ledger, so only the relative order of
// this run's builders is compared.
func verifyResults(ctx context.Context, plan *Plan, out *outcome, ranks map[common.Address]Entry, board []Entry) error {
	var problems []string
	expected := expectedOrder(plan, out)

	for _, e := range expected {
		got, ok := ranks[e.Wallet]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("%s has no rank", e.Username))
		case got.CredibilityScore != e.CredibilityScore:
			problems = append(problems, fmt.Sprintf("%s credibility %d, want %d", e.Username, got.CredibilityScore, e.CredibilityScore))
		}
	}

	for i := 1; i < len(expected); i++ {
		prev, okPrev := ranks[expected[i-1].Wallet]
		cur, okCur := ranks[expected[i].Wallet]
		if okPrev && okCur && prev.Rank >= cur.Rank {
			problems = append(problems, fmt.Sprintf("%s (rank %d) should rank above %s (rank %d)",
				expected[i-1].Username, prev.Rank, expected[i].Username, cur.Rank))
		}
	}

	for i, e := range board {
		if e.Rank != i+1 {
			problems = append(problems, fmt.Sprintf("leaderboard entry %d has rank %d", i, e.Rank))
		}
		if i > 0 && e.CredibilityScore > board[i-1].CredibilityScore {
			problems = append(problems, fmt.Sprintf("leaderboard not sorted at entry %d", i))
		}
		if r, ok := ranks[e.Wallet]; ok && r.Rank != e.Rank {
			problems = append(problems, fmt.Sprintf("%s is %d on the leaderboard but %d by rank", e.Username, e.Rank, r.Rank))
		}
	}

	displayTopBuilders(ctx, expected, board)

	if len(problems) > 0 {
		return fmt.Errorf("%w: %d problems: %s", ErrVerification, len(problems), strings.Join(problems, "; "))
	}
	logger.Get().Info(ctx, "results verified", logger.Int("builders", len(expected)))
	return nil
}

func displayTopBuilders(ctx context.Context, expected, board []Entry) {
	n := min(displayTopN, len(expected))
	for _, e := range expected[:n] {
		logger.Get().Info(ctx, "expected", logger.Int("position", e.Rank), logger.String("username", e.Username),
			logger.Uint64("credibility", e.CredibilityScore))
	}
	n = min(displayTopN, len(board))
	for _, e := range board[:n] {
		logger.Get().Info(ctx, "leaderboard", logger.Int("rank", e.Rank), logger.String("username", e.Username),
			logger.Uint64("credibility", e.CredibilityScore))
	}
}

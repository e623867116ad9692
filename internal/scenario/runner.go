package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/vouchbase/pkg/logger"
)

// Run executes the complete scenario against a service whose ledger accepts
// writes from any wallet, i.e. one running with the simulated ledger.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now()}

	logger.Get().Info(ctx, "starting vouchbase scenario",
		logger.String("baseURL", config.BaseURL),
		logger.Int("builders", config.Builders),
		logger.Int("vouches", config.Vouches),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout),
		logger.Bool("verbose", config.Verbose))

	c := newClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the plan
	plan := generatePlan(ctx, config, stats)
	if config.OutputFile != "" {
		if err := savePlan(ctx, config.OutputFile, plan); err != nil {
			logger.Get().Warn(ctx, "failed to save plan", logger.Error(err))
		}
	}

	// Step 3: Register and vouch through the orchestrated write flows
	out, err := submitWrites(ctx, config, c, plan, stats)
	if err != nil {
		return stats, fmt.Errorf("write submission failed: %w", err)
	}

	// Step 4: Wait for the board to reflect every write
	if err := waitForBoard(ctx, config, c, plan, out); err != nil {
		return stats, err
	}

	// Step 5: Retrieve ranks concurrently
	ranks, err := retrieveRanks(ctx, config, c, plan, out, stats)
	if err != nil {
		return stats, err
	}

	// Step 6: Get leaderboard
	board, err := getLeaderboard(ctx, config, c, stats)
	if err != nil {
		return stats, fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(ctx, plan, out, ranks, board); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// savePlan writes the generated plan as indented JSON.
func savePlan(ctx context.Context, filename string, plan *Plan) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal plan: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	logger.Get().Info(ctx, "plan saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var writesPerSecond float64
	if stats.Duration > 0 {
		writesPerSecond = float64(stats.BuildersRegistered+stats.VouchesConfirmed) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("buildersPlanned", stats.BuildersPlanned),
		logger.Int("buildersRegistered", stats.BuildersRegistered),
		logger.Int("vouchesPlanned", stats.VouchesPlanned),
		logger.Int("vouchesConfirmed", stats.VouchesConfirmed),
		logger.Int("writesFailed", stats.WritesFailed),
		logger.Int("ranksRetrieved", stats.RanksRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("writesPerSecond", writesPerSecond))
}

package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/vouchbase/internal/scenario"
	"github.com/okian/vouchbase/pkg/logger"
)

const defaultRunTimeout = 10 * time.Minute

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		builders   = flag.Int("builders", scenario.DefaultBuilders, "Builders to register")
		vouches    = flag.Int("vouches", scenario.DefaultVouches, "Vouches to submit")
		topN       = flag.Int("top", scenario.DefaultTopN, "Leaderboard entries to fetch")
		workers    = flag.Int("workers", scenario.DefaultWorkers, "Concurrent rank lookups")
		chainID    = flag.Uint64("chain", scenario.DefaultChainID, "Chain id to report for each wallet")
		timeout    = flag.Duration("timeout", scenario.DefaultTimeout, "HTTP request timeout")
		settle     = flag.Duration("settle", scenario.DefaultSettle, "How long to wait for the board to catch up")
		outputFile = flag.String("output", "", "Output file for the generated plan")
		logFile    = flag.String("log", "", "Log file")
		logFormat  = flag.String("log-format", "text", "Log format: text or json")
		verbose    = flag.Bool("verbose", false, "Log every write")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		scenario.ShowHelp()
		return
	}

	closeLog, err := scenario.SetupLogging(*logFile, *logFormat)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closeLog()

	if *outputFile == "" {
		*outputFile = "scenario_plan_" + time.Now().Format("20060102_150405") + ".json"
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &scenario.Config{
		BaseURL:    *baseURL,
		Builders:   *builders,
		Vouches:    *vouches,
		TopN:       *topN,
		Workers:    *workers,
		ChainID:    *chainID,
		Timeout:    *timeout,
		Settle:     *settle,
		OutputFile: *outputFile,
		Verbose:    *verbose,
	}

	if _, err := scenario.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "scenario failed", logger.Error(err))
		cancel()
		closeLog()
		os.Exit(1)
	}
}

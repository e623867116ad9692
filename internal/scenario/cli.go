package scenario

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/vouchbase/pkg/logger"
)

// SetupLogging sends log output to both the console and a file. If logFile
// is empty, a timestamped filename is generated. The returned func closes
// the file.
func SetupLogging(logFile, format string) (func(), error) {
	if logFile == "" {
		logFile = "scenario_" + time.Now().Format("20060102_150405") + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithFormat(format), logger.WithWriter(io.MultiWriter(os.Stdout, file)), logger.WithCaller(false)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return func() { _ = file.Close() }, nil
}

// ShowHelp prints usage information for the scenario tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`VouchBase Scenario Tool
=======================

Registers fresh builders, vouches between them through the service's write
flows, then checks that ranks and the leaderboard match what was written.
The service must run with ledger_mode=simulated.

Usage:
  go run ./cmd/scenario [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -builders int
        Builders to register, 2..50 (default 20)
  -vouches int
        Vouches to submit (default 60)
  -top int
        Leaderboard entries to fetch (default 50)
  -workers int
        Concurrent rank lookups (default 4)
  -chain uint
        Chain id to report for each wallet (default 8453)
  -timeout duration
        HTTP request timeout (default 30s)
  -settle duration
        How long to wait for the board to catch up (default 30s)
  -output string
        Output file for the generated plan (default: scenario_plan_TIMESTAMP.json)
  -log string
        Log file (default: scenario_TIMESTAMP.log)
  -verbose
        Log every write
  -help
        Show this help message

Examples:
  go run ./cmd/scenario -builders 30 -vouches 200
  go run ./cmd/scenario -url http://localhost:8080 -verbose
`)
}

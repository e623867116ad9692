package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "VOUCHBASE_"
	envConfig = envPrefix + "CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if VOUCHBASE_CONFIG is set
//  3. env (prefix VOUCHBASE_), including a .env file in the working directory
func Load(_ context.Context) (*Config, error) {
	// A missing .env is normal; variables already set win over it.
	_ = godotenv.Load()

	base := New()
	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// VOUCHBASE_RPC_URL -> rpc_url. Keys are flat, so underscores stay.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config and caps the page size and leaderboard limit
// at one contract page. Errors wrap
// ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		return invalid("addr must not be empty")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json, got %q", c.LogFormat)
	}
	if c.ChainID == 0 {
		return invalid("chain_id must be positive")
	}

	switch c.LedgerMode {
	case LedgerModeSimulated:
		if c.SimLatencyMinMS < 0 || c.SimLatencyMaxMS < c.SimLatencyMinMS {
			return invalid("sim latency range [%d, %d] is invalid", c.SimLatencyMinMS, c.SimLatencyMaxMS)
		}
	case LedgerModeRPC:
		if c.RPCURL == "" {
			return invalid("rpc_url is required in rpc mode")
		}
		if !common.IsHexAddress(c.ContractAddress) {
			return invalid("contract_address %q is not an address", c.ContractAddress)
		}
	default:
		return invalid("ledger_mode must be %s or %s, got %q", LedgerModeRPC, LedgerModeSimulated, c.LedgerMode)
	}

	if c.PageSize <= 0 {
		return invalid("page_size must be positive")
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	if c.MaxLeaderboardLimit <= 0 {
		return invalid("max_leaderboard_limit must be positive")
	}
	if c.MaxLeaderboardLimit > MaxPageSize {
		c.MaxLeaderboardLimit = MaxPageSize
	}
	if c.RefreshQueueSize <= 0 || c.RefreshWorkers <= 0 || c.DedupeSize <= 0 {
		return invalid("refresh_queue_size, refresh_workers and dedupe_size must be positive")
	}
	if c.SyncIntervalMS < 0 || c.ChainPollIntervalMS < 0 || c.ConfirmTimeoutMS < 0 {
		return invalid("intervals and timeouts must not be negative")
	}
	return nil
}

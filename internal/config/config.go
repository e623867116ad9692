// Package config defines process configuration and how it is loaded.
package config

import (
	"time"
)

// Ledger modes.
const (
	LedgerModeRPC       = "rpc"
	LedgerModeSimulated = "simulated"
)

// MaxPageSize is the largest builder page the contract serves in one call.
const MaxPageSize = 50

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// LedgerMode selects the gateway: rpc talks to a node, simulated runs
	// the in-process ledger.
	LedgerMode string `koanf:"ledger_mode"`

	RPCURL          string `koanf:"rpc_url"`
	ContractAddress string `koanf:"contract_address"`
	// ChainID is the chain the network guard requires.
	ChainID uint64 `koanf:"chain_id"`
	// PrivateKey is the hex signing key. Without it the client is read-only.
	PrivateKey string `koanf:"private_key"`

	// PageSize is how many builders a board refresh reads, at most 50.
	PageSize int `koanf:"page_size"`
	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	SyncIntervalMS      int `koanf:"sync_interval_ms"`
	ChainPollIntervalMS int `koanf:"chain_poll_interval_ms"`
	ConfirmTimeoutMS    int `koanf:"confirm_timeout_ms"`

	RefreshQueueSize int `koanf:"refresh_queue_size"`
	RefreshWorkers   int `koanf:"refresh_workers"`
	DedupeSize       int `koanf:"dedupe_size"`

	// SimLatencyMinMS and SimLatencyMaxMS bound the simulated ledger's latency.
	SimLatencyMinMS int `koanf:"sim_latency_min_ms"`
	SimLatencyMaxMS int `koanf:"sim_latency_max_ms"`
}

// New returns a Config with defaults: simulated ledger on Base mainnet.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		LedgerMode:          LedgerModeSimulated,
		ChainID:             8453,
		PageSize:            MaxPageSize,
		MaxLeaderboardLimit: MaxPageSize,
		SyncIntervalMS:      30_000,
		ChainPollIntervalMS: 5_000,
		ConfirmTimeoutMS:    120_000,
		RefreshQueueSize:    256,
		RefreshWorkers:      2,
		DedupeSize:          1024,
		SimLatencyMinMS:     50,
		SimLatencyMaxMS:     200,
	}
}

// SyncInterval is the period of background board and stats refreshes.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}

// ChainPollInterval is the period of chain id polling in rpc mode.
func (c *Config) ChainPollInterval() time.Duration {
	return time.Duration(c.ChainPollIntervalMS) * time.Millisecond
}

// ConfirmTimeout bounds how long a write waits to be mined.
func (c *Config) ConfirmTimeout() time.Duration {
	return time.Duration(c.ConfirmTimeoutMS) * time.Millisecond
}

// SimLatency returns the simulated ledger latency range.
func (c *Config) SimLatency() (time.Duration, time.Duration) {
	return time.Duration(c.SimLatencyMinMS) * time.Millisecond, time.Duration(c.SimLatencyMaxMS) * time.Millisecond
}

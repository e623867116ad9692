package scenario

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/vouchbase/pkg/logger"
)

// outcome tracks what the ledger actually accepted.
type outcome struct {
	registered  map[common.Address]bool
	credibility map[common.Address]uint64
}

// submitWrites replays the plan through the service. The service holds one
// wallet session and one write at a time, so writes are sequential.
func submitWrites(ctx context.Context, config *Config, c *client, plan *Plan, stats *Stats) (*outcome, error) {
	out := &outcome{
		registered:  make(map[common.Address]bool, len(plan.Builders)),
		credibility: make(map[common.Address]uint64, len(plan.Builders)),
	}
	log := logger.Get().Named("writes")

	for _, b := range plan.Builders {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during registration: %w", err)
		}
		if err := c.switchWallet(ctx, b.Wallet, config.ChainID); err != nil {
			return nil, fmt.Errorf("failed to switch wallet: %w", err)
		}
		res, err := c.register(ctx, b)
		if err != nil || res.Operation.State != "confirmed" {
			stats.WritesFailed++
			log.Warn(ctx, "registration failed", logger.String("username", b.Username), logger.Error(err))
			continue
		}
		out.registered[b.Wallet] = true
		stats.BuildersRegistered++
		if config.Verbose {
			log.Info(ctx, "registered", logger.String("username", b.Username), logger.Stringer("wallet", b.Wallet))
		}
	}

	for _, v := range plan.Vouches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during vouching: %w", err)
		}
		if !out.registered[v.Builder] {
			continue
		}
		if err := c.switchWallet(ctx, v.Voucher, config.ChainID); err != nil {
			return nil, fmt.Errorf("failed to switch wallet: %w", err)
		}
		res, err := c.vouch(ctx, v)
		if err != nil || res.Operation.State != "confirmed" {
			stats.WritesFailed++
			log.Warn(ctx, "vouch failed", logger.Stringer("builder", v.Builder), logger.Int("skill", v.Skill), logger.Error(err))
			continue
		}
		out.credibility[v.Builder]++
		stats.VouchesConfirmed++
		if config.Verbose {
			log.Info(ctx, "vouched", logger.Stringer("voucher", v.Voucher), logger.Stringer("builder", v.Builder), logger.Int("skill", v.Skill))
		}
	}

	logger.Get().Info(ctx, "writes completed",
		logger.Int("registered", stats.BuildersRegistered),
		logger.Int("vouches", stats.VouchesConfirmed),
		logger.Int("failed", stats.WritesFailed))
	return out, nil
}

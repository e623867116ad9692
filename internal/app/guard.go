package service

import (
	"context"
	"math/big"
	"sync"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/fees"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

// NetworkGuard blocks ledger access while the connected chain is wrong.
type NetworkGuard struct {
	required uint64
	session  *Session
	logger   logger.Logger

	mu       sync.RWMutex
	mismatch bool
}

// NewNetworkGuard creates a guard for the required chain id.
func NewNetworkGuard(required uint64, session *Session, l logger.Logger) *NetworkGuard {
	if l == nil {
		l = logger.Nop()
	}
	return &NetworkGuard{required: required, session: session, logger: l}
}

// Required returns the chain id the guard enforces.
func (g *NetworkGuard) Required() uint64 { return g.required }

// Observe is called on every account or connection change. A connected
// wallet on another chain raises the WrongNetwork advisory; a match clears
// only that advisory.
func (g *NetworkGuard) Observe(connected bool, chainID uint64) {
	mismatch := connected && chainID != g.required

	g.mu.Lock()
	was := g.mismatch
	g.mismatch = mismatch
	g.mu.Unlock()

	metrics.UpdateNetworkMismatch(mismatch)
	if mismatch {
		g.session.Raise(failure.Network(g.required))
		if !was {
			g.logger.Warn(context.Background(), "wrong network",
				logger.Uint64("chain_id", chainID),
				logger.Uint64("required", g.required))
		}
		return
	}
	g.session.ClearNetwork()
	if was {
		g.logger.Info(context.Background(), "network restored", logger.Uint64("chain_id", chainID))
	}
}

// Check fails with WrongNetwork while the chain is mismatched.
func (g *NetworkGuard) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.mismatch {
		return failure.Network(g.required)
	}
	return nil
}

// Mismatch reports whether the guard is currently blocking.
func (g *NetworkGuard) Mismatch() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.mismatch
}

// Gate wraps gw so that every call except ChainID is refused while the
// chain is mismatched.
func (g *NetworkGuard) Gate(gw ledger.Gateway) ledger.Gateway {
	return &gatedGateway{inner: gw, guard: g}
}

type gatedGateway struct {
	inner ledger.Gateway
	guard *NetworkGuard
}

func (gg *gatedGateway) ChainID(ctx context.Context) (uint64, error) {
	return gg.inner.ChainID(ctx)
}

func (gg *gatedGateway) ReadProfile(ctx context.Context, addr model.Address) (model.Lookup, error) {
	if err := gg.guard.Check(); err != nil {
		return model.NotFound(), err
	}
	return gg.inner.ReadProfile(ctx, addr)
}

func (gg *gatedGateway) ReadSkillVouches(ctx context.Context, addr model.Address) ([]model.SkillClaim, error) {
	if err := gg.guard.Check(); err != nil {
		return nil, err
	}
	return gg.inner.ReadSkillVouches(ctx, addr)
}

func (gg *gatedGateway) ReadGlobalStats(ctx context.Context) (model.GlobalStats, error) {
	if err := gg.guard.Check(); err != nil {
		return model.GlobalStats{}, err
	}
	return gg.inner.ReadGlobalStats(ctx)
}

func (gg *gatedGateway) ListBuilderAddresses(ctx context.Context, offset, limit uint64) ([]model.Address, error) {
	if err := gg.guard.Check(); err != nil {
		return nil, err
	}
	return gg.inner.ListBuilderAddresses(ctx, offset, limit)
}

func (gg *gatedGateway) LookupUsername(ctx context.Context, username string) (model.Address, bool, error) {
	if err := gg.guard.Check(); err != nil {
		return model.Address{}, false, err
	}
	return gg.inner.LookupUsername(ctx, username)
}

func (gg *gatedGateway) HasVouched(ctx context.Context, voucher, builder model.Address, skill model.SkillID) (bool, error) {
	if err := gg.guard.Check(); err != nil {
		return false, err
	}
	return gg.inner.HasVouched(ctx, voucher, builder, skill)
}

func (gg *gatedGateway) FeeSchedule(ctx context.Context) (fees.Schedule, error) {
	if err := gg.guard.Check(); err != nil {
		return fees.Schedule{}, err
	}
	return gg.inner.FeeSchedule(ctx)
}

func (gg *gatedGateway) QuoteFee(ctx context.Context, op model.OperationKind, skillCount int) (*big.Int, error) {
	if err := gg.guard.Check(); err != nil {
		return nil, err
	}
	return gg.inner.QuoteFee(ctx, op, skillCount)
}

func (gg *gatedGateway) Submit(ctx context.Context, from model.Address, p ledger.Payload, amount *big.Int) (ledger.TxHandle, error) {
	if err := gg.guard.Check(); err != nil {
		return ledger.TxHandle{}, err
	}
	return gg.inner.Submit(ctx, from, p, amount)
}

// AwaitConfirmation is not gated: a write already broadcast settles on the
// ledger regardless of the wallet's current chain.
func (gg *gatedGateway) AwaitConfirmation(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	return gg.inner.AwaitConfirmation(ctx, h)
}

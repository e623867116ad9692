package service_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	"github.com/okian/vouchbase/internal/domain/fees"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca401")
	dave  = common.HexToAddress("0x000000000000000000000000000000000000da7e")
	erin  = common.HexToAddress("0x00000000000000000000000000000000000e4140")
)

var errRPC = errors.New("rpc unavailable")

// seed registers addr directly on the ledger.
func seed(l *memledger.Ledger, addr model.Address, name string, skills ...model.SkillID) {
	ctx := context.Background()
	fee, err := l.QuoteFee(ctx, model.OpRegister, len(skills))
	if err != nil {
		panic(err)
	}
	h, err := l.Submit(ctx, addr, ledger.RegisterPayload(name, "", "", skills), fee)
	if err != nil {
		panic(err)
	}
	if _, err := l.AwaitConfirmation(ctx, h); err != nil {
		panic(err)
	}
}

// vouch vouches directly on the ledger.
func vouch(l *memledger.Ledger, from, to model.Address, skill model.SkillID) {
	ctx := context.Background()
	fee, _ := l.QuoteFee(ctx, model.OpVouch, 0)
	h, err := l.Submit(ctx, from, ledger.VouchPayload(to, skill), fee)
	if err != nil {
		panic(err)
	}
	if _, err := l.AwaitConfirmation(ctx, h); err != nil {
		panic(err)
	}
}

// scriptedGateway wraps a gateway with hooks for the flows under test.
type scriptedGateway struct {
	ledger.Gateway

	mu          sync.Mutex
	calls       int
	hold        chan struct{} // Submit blocks until closed
	entered     chan struct{} // closed when Submit is entered
	missing     map[model.Address]bool
	failStats   bool
	failAfterOK bool // fail reads once a write confirmed
	confirmed   bool
}

func newScripted(gw ledger.Gateway) *scriptedGateway {
	return &scriptedGateway{Gateway: gw, missing: map[model.Address]bool{}}
}

func (g *scriptedGateway) count() {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
}

func (g *scriptedGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *scriptedGateway) readsFail() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failAfterOK && g.confirmed
}

func (g *scriptedGateway) ReadProfile(ctx context.Context, addr model.Address) (model.Lookup, error) {
	g.count()
	if g.readsFail() {
		return model.NotFound(), errRPC
	}
	g.mu.Lock()
	gone := g.missing[addr]
	g.mu.Unlock()
	if gone {
		return model.NotFound(), nil
	}
	return g.Gateway.ReadProfile(ctx, addr)
}

func (g *scriptedGateway) ReadGlobalStats(ctx context.Context) (model.GlobalStats, error) {
	g.count()
	g.mu.Lock()
	fail := g.failStats
	g.mu.Unlock()
	if fail || g.readsFail() {
		return model.GlobalStats{}, errRPC
	}
	return g.Gateway.ReadGlobalStats(ctx)
}

func (g *scriptedGateway) ListBuilderAddresses(ctx context.Context, offset, limit uint64) ([]model.Address, error) {
	g.count()
	if g.readsFail() {
		return nil, errRPC
	}
	return g.Gateway.ListBuilderAddresses(ctx, offset, limit)
}

func (g *scriptedGateway) FeeSchedule(ctx context.Context) (fees.Schedule, error) {
	g.count()
	return g.Gateway.FeeSchedule(ctx)
}

func (g *scriptedGateway) QuoteFee(ctx context.Context, op model.OperationKind, n int) (*big.Int, error) {
	g.count()
	return g.Gateway.QuoteFee(ctx, op, n)
}

func (g *scriptedGateway) Submit(ctx context.Context, from model.Address, p ledger.Payload, amount *big.Int) (ledger.TxHandle, error) {
	g.count()
	g.mu.Lock()
	hold, entered := g.hold, g.entered
	g.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ledger.TxHandle{}, ctx.Err()
		}
	}
	return g.Gateway.Submit(ctx, from, p, amount)
}

func (g *scriptedGateway) AwaitConfirmation(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	g.count()
	r, err := g.Gateway.AwaitConfirmation(ctx, h)
	if err == nil {
		g.mu.Lock()
		g.confirmed = true
		g.mu.Unlock()
	}
	return r, err
}

// eventually polls cond until it holds or the deadline passes.
func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/fees"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

// Backend is what EthGateway needs from a node connection.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// EthGateway talks to the deployed contract over JSON-RPC.
type EthGateway struct {
	backend  Backend
	address  common.Address
	contract *bind.BoundContract

	key     *ecdsa.PrivateKey
	signer  common.Address
	chainID *big.Int

	logger logger.Logger
}

// Option configures an EthGateway.
type Option func(*EthGateway)

// WithSigner sets the key used to sign writes and the chain id to sign for.
func WithSigner(key *ecdsa.PrivateKey, chainID uint64) Option {
	return func(g *EthGateway) {
		if key != nil {
			g.key = key
			g.signer = crypto.PubkeyToAddress(key.PublicKey)
			g.chainID = new(big.Int).SetUint64(chainID)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *EthGateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// ParsePrivateKey parses a hex key with or without a 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return ethclient.NewClient(c), nil
}

// NewEthGateway binds the contract at address on backend.
func NewEthGateway(backend Backend, address common.Address, opts ...Option) (*EthGateway, error) {
	parsed, err := ParseABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	g := &EthGateway{
		backend:  backend,
		address:  address,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Signer returns the configured signing address, if any.
func (g *EthGateway) Signer() (model.Address, bool) {
	return g.signer, g.key != nil
}

func (g *EthGateway) call(ctx context.Context, method string, args ...any) ([]any, error) {
	start := time.Now()
	var out []any
	err := g.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...)
	metrics.RecordLedgerCall(method, outcome(err), float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, classify(fmt.Errorf("%s: %w", method, err))
	}
	return out, nil
}

func (g *EthGateway) callUint(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := g.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, decodeError(method, "want 1 value, got %d", len(out))
	}
	return bigAt(method, out, 0)
}

func (g *EthGateway) ChainID(ctx context.Context) (uint64, error) {
	start := time.Now()
	id, err := g.backend.ChainID(ctx)
	metrics.RecordLedgerCall("eth_chainId", outcome(err), float64(time.Since(start).Milliseconds()))
	if err != nil {
		return 0, classify(fmt.Errorf("chain id: %w", err))
	}
	return id.Uint64(), nil
}

func (g *EthGateway) ReadProfile(ctx context.Context, addr model.Address) (model.Lookup, error) {
	probe, err := g.call(ctx, methodBuilders, addr)
	if err != nil {
		return model.NotFound(), err
	}
	if len(probe) != 9 {
		return model.NotFound(), decodeError(methodBuilders, "want 9 values, got %d", len(probe))
	}
	exists, ok := probe[8].(bool)
	if !ok {
		return model.NotFound(), decodeError(methodBuilders, "exists flag is %T", probe[8])
	}
	if !exists {
		return model.NotFound(), nil
	}

	var (
		details []any
		claims  []model.SkillClaim
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		details, err = g.call(egCtx, methodGetBuilder, addr)
		return err
	})
	eg.Go(func() error {
		var err error
		claims, err = g.ReadSkillVouches(egCtx, addr)
		return err
	})
	if err := eg.Wait(); err != nil {
		return model.NotFound(), err
	}

	p, err := decodeProfile(addr, details)
	if err != nil {
		return model.NotFound(), err
	}
	p.Skills = claims
	if err := p.Validate(); err != nil {
		return model.NotFound(), failure.Wrap(fmt.Errorf("%w: %s: %w", ErrDecode, methodGetBuilder, err))
	}
	return model.Found(p), nil
}

func (g *EthGateway) ReadSkillVouches(ctx context.Context, addr model.Address) ([]model.SkillClaim, error) {
	out, err := g.call(ctx, methodGetSkillsWithVouches, addr)
	if err != nil {
		return nil, err
	}
	if len(out) != 2 {
		return nil, decodeError(methodGetSkillsWithVouches, "want 2 values, got %d", len(out))
	}
	ids, ok := out[0].([]uint8)
	if !ok {
		return nil, decodeError(methodGetSkillsWithVouches, "skill ids are %T", out[0])
	}
	counts, ok := out[1].([]*big.Int)
	if !ok {
		return nil, decodeError(methodGetSkillsWithVouches, "vouch counts are %T", out[1])
	}
	return zipClaims(ids, counts)
}

func (g *EthGateway) ReadGlobalStats(ctx context.Context) (model.GlobalStats, error) {
	var builders, vouches, skills *big.Int
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) { builders, err = g.callUint(egCtx, methodGetBuilderCount); return })
	eg.Go(func() (err error) { vouches, err = g.callUint(egCtx, methodTotalVouches); return })
	eg.Go(func() (err error) { skills, err = g.callUint(egCtx, methodTotalSkillsClaimed); return })
	if err := eg.Wait(); err != nil {
		return model.GlobalStats{}, err
	}
	return model.GlobalStats{
		Builders:      saturate(builders),
		Vouches:       saturate(vouches),
		SkillsClaimed: saturate(skills),
	}, nil
}

func (g *EthGateway) ListBuilderAddresses(ctx context.Context, offset, limit uint64) ([]model.Address, error) {
	out, err := g.call(ctx, methodGetBuilders, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, err
	}
	if len(out) != 1 {
		return nil, decodeError(methodGetBuilders, "want 1 value, got %d", len(out))
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, decodeError(methodGetBuilders, "addresses are %T", out[0])
	}
	return addrs, nil
}

func (g *EthGateway) LookupUsername(ctx context.Context, username string) (model.Address, bool, error) {
	out, err := g.call(ctx, methodGetBuilderByUsername, username)
	if err != nil {
		return model.Address{}, false, err
	}
	if len(out) != 1 {
		return model.Address{}, false, decodeError(methodGetBuilderByUsername, "want 1 value, got %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return model.Address{}, false, decodeError(methodGetBuilderByUsername, "address is %T", out[0])
	}
	return addr, addr != (common.Address{}), nil
}

func (g *EthGateway) HasVouched(ctx context.Context, voucher, builder model.Address, skill model.SkillID) (bool, error) {
	out, err := g.call(ctx, methodCheckVouch, voucher, builder, uint8(skill))
	if err != nil {
		return false, err
	}
	if len(out) != 1 {
		return false, decodeError(methodCheckVouch, "want 1 value, got %d", len(out))
	}
	v, ok := out[0].(bool)
	if !ok {
		return false, decodeError(methodCheckVouch, "result is %T", out[0])
	}
	return v, nil
}

func (g *EthGateway) FeeSchedule(ctx context.Context) (fees.Schedule, error) {
	var s fees.Schedule
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) { s.Register, err = g.callUint(egCtx, methodRegisterFee); return })
	eg.Go(func() (err error) { s.AddSkill, err = g.callUint(egCtx, methodAddSkillFee); return })
	eg.Go(func() (err error) { s.Vouch, err = g.callUint(egCtx, methodVouchFee); return })
	if err := eg.Wait(); err != nil {
		return fees.Schedule{}, err
	}
	return s, nil
}

func (g *EthGateway) QuoteFee(ctx context.Context, op model.OperationKind, skillCount int) (*big.Int, error) {
	s, err := g.FeeSchedule(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.Quote(op, skillCount)
	if err != nil {
		return nil, failure.Wrap(err)
	}
	return v, nil
}

func (g *EthGateway) Submit(ctx context.Context, from model.Address, payload Payload, amount *big.Int) (TxHandle, error) {
	if g.key == nil {
		return TxHandle{}, failure.Wrap(ErrNoSigner)
	}
	if from != g.signer {
		return TxHandle{}, failure.Wrap(fmt.Errorf("%w: %s", ErrSignerMismatch, from.Hex()))
	}
	method, args, err := payload.method()
	if err != nil {
		return TxHandle{}, failure.Wrap(err)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(g.key, g.chainID)
	if err != nil {
		return TxHandle{}, failure.Wrap(fmt.Errorf("transactor: %w", err))
	}
	opts.Context = ctx
	if amount != nil {
		opts.Value = new(big.Int).Set(amount)
	}

	start := time.Now()
	tx, err := g.contract.Transact(opts, method, args...)
	metrics.RecordLedgerCall(method, outcome(err), float64(time.Since(start).Milliseconds()))
	if err != nil {
		return TxHandle{}, classify(fmt.Errorf("%s: %w", method, err))
	}

	g.logger.Info(ctx, "transaction submitted",
		logger.String("method", method),
		logger.Stringer("tx", tx.Hash()),
		logger.Stringer("value", opts.Value))
	return TxHandle{Hash: tx.Hash(), Kind: payload.Kind, SubmittedAt: time.Now(), tx: tx}, nil
}

func (g *EthGateway) AwaitConfirmation(ctx context.Context, h TxHandle) (Receipt, error) {
	if h.tx == nil {
		return Receipt{}, failure.Wrap(fmt.Errorf("%w: %s", ErrUnknownTx, h.Hash.Hex()))
	}
	start := time.Now()
	rcpt, err := bind.WaitMined(ctx, g.backend, h.tx)
	metrics.RecordLedgerCall("wait_mined", outcome(err), float64(time.Since(start).Milliseconds()))
	if err != nil {
		return Receipt{Hash: h.Hash}, classify(fmt.Errorf("await %s: %w", h.Hash.Hex(), err))
	}

	r := Receipt{Hash: rcpt.TxHash, Confirmed: rcpt.Status == types.ReceiptStatusSuccessful}
	if rcpt.BlockNumber != nil {
		r.BlockNumber = rcpt.BlockNumber.Uint64()
	}
	if !r.Confirmed {
		return r, failure.Rejected("", fmt.Errorf("transaction %s reverted", h.Hash.Hex()))
	}
	return r, nil
}

func decodeProfile(addr model.Address, out []any) (model.BuilderProfile, error) {
	if len(out) != 8 {
		return model.BuilderProfile{}, decodeError(methodGetBuilder, "want 8 values, got %d", len(out))
	}
	var p model.BuilderProfile
	p.Wallet = addr
	strs := []*string{&p.Username, &p.Github, &p.Twitter}
	for i, dst := range strs {
		s, ok := out[i].(string)
		if !ok {
			return model.BuilderProfile{}, decodeError(methodGetBuilder, "field %d is %T", i, out[i])
		}
		*dst = s
	}
	nums := make([]uint64, 4)
	for i := range nums {
		b, err := bigAt(methodGetBuilder, out, 3+i)
		if err != nil {
			return model.BuilderProfile{}, err
		}
		nums[i] = saturate(b)
	}
	p.RegisteredAt = int64(nums[0]) //nolint:gosec // block timestamps fit in int64
	p.CredibilityScore = nums[1]
	p.VouchesReceived = nums[2]
	p.VouchesGiven = nums[3]
	return p, nil
}

// zipClaims pairs the index-aligned id and count arrays.
func zipClaims(ids []uint8, counts []*big.Int) ([]model.SkillClaim, error) {
	if len(ids) != len(counts) {
		return nil, decodeError(methodGetSkillsWithVouches, "%d skill ids but %d counts", len(ids), len(counts))
	}
	claims := make([]model.SkillClaim, len(ids))
	for i, id := range ids {
		claims[i] = model.SkillClaim{SkillID: model.SkillID(id), Vouches: saturate(counts[i])}
	}
	return claims, nil
}

func bigAt(method string, out []any, i int) (*big.Int, error) {
	b, ok := out[i].(*big.Int)
	if !ok || b == nil {
		return nil, decodeError(method, "value %d is %T", i, out[i])
	}
	return b, nil
}

// saturate clamps a uint256 counter into uint64.
func saturate(b *big.Int) uint64 {
	if b == nil || b.Sign() < 0 {
		return 0
	}
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}

func decodeError(method, format string, args ...any) error {
	return failure.Wrap(fmt.Errorf("%w: %s: %s", ErrDecode, method, fmt.Sprintf(format, args...)))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

var _ Gateway = (*EthGateway)(nil)

// Package memledger is an in-process model of the VouchBase registry contract.
//
// It enforces the same rules the deployed contract does, so the write flows
// can be exercised end to end without a node. Writes are validated on Submit
// (like gas estimation would) and applied on AwaitConfirmation (like mining).
package memledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/fees"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/skills"
)

// Revert reasons, matching the contract's require messages.
const (
	ReasonAlreadyRegistered = "Already registered"
	ReasonUsernameTaken     = "Username taken"
	ReasonInvalidUsername   = "Username must be 3-20 characters"
	ReasonInvalidSkill      = "Invalid skill"
	ReasonDuplicateSkill    = "Skill already claimed"
	ReasonNotRegistered     = "Not registered"
	ReasonBuilderMissing    = "Builder not registered"
	ReasonSelfVouch         = "Cannot vouch for yourself"
	ReasonAlreadyVouched    = "Already vouched for this skill"
	ReasonSkillMissing      = "Builder does not have this skill"
	ReasonInsufficientFee   = "Insufficient fee"
)

// Default unit fees in wei.
var (
	DefaultRegisterFee = big.NewInt(100_000_000_000_000) // 0.0001 ETH
	DefaultAddSkillFee = big.NewInt(10_000_000_000_000)  // 0.00001 ETH
	DefaultVouchFee    = big.NewInt(10_000_000_000_000)  // 0.00001 ETH
)

type builder struct {
	profile model.BuilderProfile
}

type vouchKey struct {
	voucher common.Address
	builder common.Address
	skill   model.SkillID
}

type pendingTx struct {
	from    common.Address
	payload ledger.Payload
	value   *big.Int
}

// Transaction is a settled write as seen by the ledger.
type Transaction struct {
	Hash      common.Hash
	From      common.Address
	Kind      model.OperationKind
	Value     *big.Int
	Confirmed bool
	Reason    string
}

// Ledger is a thread-safe simulated contract.
type Ledger struct {
	mu sync.Mutex

	chainID  uint64
	schedule fees.Schedule

	builders  map[common.Address]*builder
	order     []common.Address // registration order, as getBuilders enumerates
	usernames map[string]common.Address
	vouches   map[vouchKey]struct{}

	totalVouches uint64
	totalSkills  uint64

	balances map[common.Address]*big.Int // nil entry means unlimited
	pending  map[common.Hash]pendingTx
	history  []Transaction
	nonce    uint64
	block    uint64

	declineNext bool
	readErr     error

	minLatency time.Duration
	maxLatency time.Duration
	rng        *rand.Rand
	now        func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithChainID sets the chain id the ledger reports.
func WithChainID(id uint64) Option {
	return func(l *Ledger) {
		l.chainID = id
	}
}

// WithFees sets the unit fees.
func WithFees(s fees.Schedule) Option {
	return func(l *Ledger) {
		l.schedule = copySchedule(s)
	}
}

// WithLatencyRange adds a random delay in [min, max) to every call.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(l *Ledger) {
		if minLatency >= 0 && maxLatency > minLatency {
			l.minLatency = minLatency
			l.maxLatency = maxLatency
		}
	}
}

// WithClock overrides the registration timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates an empty ledger on Base mainnet with the default fees.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		chainID: 8453,
		schedule: fees.Schedule{
			Register: DefaultRegisterFee,
			AddSkill: DefaultAddSkillFee,
			Vouch:    DefaultVouchFee,
		},
		builders:  make(map[common.Address]*builder),
		usernames: make(map[string]common.Address),
		vouches:   make(map[vouchKey]struct{}),
		balances:  make(map[common.Address]*big.Int),
		pending:   make(map[common.Hash]pendingTx),
		rng:       rand.New(rand.NewSource(42)), //nolint:gosec // simulated latency only
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetChainID changes the reported chain, e.g. to simulate a network switch.
func (l *Ledger) SetChainID(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.chainID = id
}

// SetFees replaces the unit fees. Quotes taken earlier are not updated.
func (l *Ledger) SetFees(s fees.Schedule) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.schedule = copySchedule(s)
}

// SetBalance caps what addr can spend. Addresses without a balance are unlimited.
func (l *Ledger) SetBalance(addr common.Address, wei *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Set(wei)
}

// DeclineNextSignature makes the next Submit fail as if the user rejected
// the wallet prompt.
func (l *Ledger) DeclineNextSignature() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.declineNext = true
}

// FailReads makes every read fail with err until called with nil.
func (l *Ledger) FailReads(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.readErr = err
}

// Transactions returns every settled write in order.
func (l *Ledger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Ledger) delay(ctx context.Context) error {
	if l.maxLatency <= 0 {
		return ctx.Err()
	}
	l.mu.Lock()
	d := l.minLatency + time.Duration(l.rng.Int63n(int64(l.maxLatency-l.minLatency)))
	l.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("context cancelled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// read wraps every read with latency and the injected read failure.
func (l *Ledger) read(ctx context.Context) error {
	if err := l.delay(ctx); err != nil {
		return failure.Wrap(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.readErr != nil {
		return failure.Wrap(l.readErr)
	}
	return nil
}

func (l *Ledger) ChainID(ctx context.Context) (uint64, error) {
	if err := l.delay(ctx); err != nil {
		return 0, failure.Wrap(err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chainID, nil
}

func (l *Ledger) ReadProfile(ctx context.Context, addr model.Address) (model.Lookup, error) {
	if err := l.read(ctx); err != nil {
		return model.NotFound(), err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.builders[addr]
	if !ok {
		return model.NotFound(), nil
	}
	return model.Found(b.profile.Clone()), nil
}

func (l *Ledger) ReadSkillVouches(ctx context.Context, addr model.Address) ([]model.SkillClaim, error) {
	if err := l.read(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.builders[addr]
	if !ok {
		return []model.SkillClaim{}, nil
	}
	return b.profile.Clone().Skills, nil
}

func (l *Ledger) ReadGlobalStats(ctx context.Context) (model.GlobalStats, error) {
	if err := l.read(ctx); err != nil {
		return model.GlobalStats{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return model.GlobalStats{
		Builders:      uint64(len(l.order)),
		Vouches:       l.totalVouches,
		SkillsClaimed: l.totalSkills,
	}, nil
}

func (l *Ledger) ListBuilderAddresses(ctx context.Context, offset, limit uint64) ([]model.Address, error) {
	if err := l.read(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := uint64(len(l.order))
	if offset >= n {
		return []model.Address{}, nil
	}
	end := offset + limit
	if end > n || end < offset {
		end = n
	}
	return append([]model.Address(nil), l.order[offset:end]...), nil
}

func (l *Ledger) LookupUsername(ctx context.Context, username string) (model.Address, bool, error) {
	if err := l.read(ctx); err != nil {
		return model.Address{}, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	addr, ok := l.usernames[username]
	return addr, ok, nil
}

func (l *Ledger) HasVouched(ctx context.Context, voucher, builder model.Address, skill model.SkillID) (bool, error) {
	if err := l.read(ctx); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.vouches[vouchKey{voucher: voucher, builder: builder, skill: skill}]
	return ok, nil
}

func (l *Ledger) FeeSchedule(ctx context.Context) (fees.Schedule, error) {
	if err := l.read(ctx); err != nil {
		return fees.Schedule{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return copySchedule(l.schedule), nil
}

func (l *Ledger) QuoteFee(ctx context.Context, op model.OperationKind, skillCount int) (*big.Int, error) {
	s, err := l.FeeSchedule(ctx)
	if err != nil {
		return nil, err
	}
	v, err := s.Quote(op, skillCount)
	if err != nil {
		return nil, failure.Wrap(err)
	}
	return v, nil
}

func (l *Ledger) Submit(ctx context.Context, from model.Address, payload ledger.Payload, amount *big.Int) (ledger.TxHandle, error) {
	if err := l.delay(ctx); err != nil {
		return ledger.TxHandle{}, failure.Wrap(err)
	}
	if amount == nil {
		amount = new(big.Int)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.declineNext {
		l.declineNext = false
		return ledger.TxHandle{}, failure.Cancelled(fmt.Errorf("user rejected %s", payload.Kind))
	}
	if bal, ok := l.balances[from]; ok && bal.Cmp(amount) < 0 {
		return ledger.TxHandle{}, failure.Insufficient(fmt.Errorf("insufficient funds: balance %s, value %s", bal, amount))
	}
	if reason := l.validate(from, payload, amount); reason != "" {
		return ledger.TxHandle{}, failure.Rejected(reason, fmt.Errorf("execution reverted: %s", reason))
	}

	l.nonce++
	hash := l.txHash(from)
	l.pending[hash] = pendingTx{from: from, payload: payload, value: new(big.Int).Set(amount)}
	return ledger.NewTxHandle(hash, payload.Kind), nil
}

func (l *Ledger) AwaitConfirmation(ctx context.Context, h ledger.TxHandle) (ledger.Receipt, error) {
	if err := l.delay(ctx); err != nil {
		return ledger.Receipt{Hash: h.Hash}, failure.Wrap(err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, ok := l.pending[h.Hash]
	if !ok {
		return ledger.Receipt{Hash: h.Hash}, failure.Wrap(fmt.Errorf("%w: %s", ledger.ErrUnknownTx, h.Hash.Hex()))
	}
	delete(l.pending, h.Hash)
	l.block++

	rec := Transaction{Hash: h.Hash, From: tx.from, Kind: tx.payload.Kind, Value: tx.value}
	// State may have moved since Submit; re-check as the miner would.
	if reason := l.validate(tx.from, tx.payload, tx.value); reason != "" {
		rec.Reason = reason
		l.history = append(l.history, rec)
		return ledger.Receipt{Hash: h.Hash, BlockNumber: l.block}, failure.Rejected(reason, fmt.Errorf("transaction %s reverted", h.Hash.Hex()))
	}

	l.apply(tx)
	if bal, ok := l.balances[tx.from]; ok {
		bal.Sub(bal, tx.value)
	}
	rec.Confirmed = true
	l.history = append(l.history, rec)
	return ledger.Receipt{Hash: h.Hash, BlockNumber: l.block, Confirmed: true}, nil
}

// validate returns the revert reason for a write, or "" when it would succeed.
// Must be called with l.mu held.
func (l *Ledger) validate(from common.Address, p ledger.Payload, value *big.Int) string {
	var fee *big.Int
	switch p.Kind {
	case model.OpRegister:
		if _, ok := l.builders[from]; ok {
			return ReasonAlreadyRegistered
		}
		if n := len(p.Username); n < model.MinUsernameLen || n > model.MaxUsernameLen {
			return ReasonInvalidUsername
		}
		if _, taken := l.usernames[p.Username]; taken {
			return ReasonUsernameTaken
		}
		for _, s := range p.Skills {
			if !skills.Valid(s) {
				return ReasonInvalidSkill
			}
		}
		if !skills.AllValid(p.Skills) {
			return ReasonDuplicateSkill
		}
		fee, _ = l.schedule.Quote(model.OpRegister, len(p.Skills))
	case model.OpAddSkill:
		b, ok := l.builders[from]
		if !ok {
			return ReasonNotRegistered
		}
		if !skills.Valid(p.Skill) {
			return ReasonInvalidSkill
		}
		if b.profile.HasSkill(p.Skill) {
			return ReasonDuplicateSkill
		}
		fee, _ = l.schedule.Quote(model.OpAddSkill, 1)
	case model.OpVouch:
		b, ok := l.builders[p.Builder]
		if !ok {
			return ReasonBuilderMissing
		}
		if p.Builder == from {
			return ReasonSelfVouch
		}
		if !b.profile.HasSkill(p.Skill) {
			return ReasonSkillMissing
		}
		if _, done := l.vouches[vouchKey{voucher: from, builder: p.Builder, skill: p.Skill}]; done {
			return ReasonAlreadyVouched
		}
		fee, _ = l.schedule.Quote(model.OpVouch, 0)
	default:
		return "Unsupported call"
	}
	if value.Cmp(fee) < 0 {
		return ReasonInsufficientFee
	}
	return ""
}

// apply executes a validated write. Must be called with l.mu held.
func (l *Ledger) apply(tx pendingTx) {
	p := tx.payload
	switch p.Kind {
	case model.OpRegister:
		claims := make([]model.SkillClaim, len(p.Skills))
		for i, s := range p.Skills {
			claims[i] = model.SkillClaim{SkillID: s}
		}
		l.builders[tx.from] = &builder{profile: model.BuilderProfile{
			Wallet:       tx.from,
			Username:     p.Username,
			Github:       p.Github,
			Twitter:      p.Twitter,
			RegisteredAt: l.now().Unix(),
			Skills:       claims,
		}}
		l.order = append(l.order, tx.from)
		l.usernames[p.Username] = tx.from
		l.totalSkills += uint64(len(claims))
	case model.OpAddSkill:
		b := l.builders[tx.from]
		b.profile.Skills = append(b.profile.Skills, model.SkillClaim{SkillID: p.Skill})
		l.totalSkills++
	case model.OpVouch:
		b := l.builders[p.Builder]
		for i := range b.profile.Skills {
			if b.profile.Skills[i].SkillID == p.Skill {
				b.profile.Skills[i].Vouches++
			}
		}
		b.profile.VouchesReceived++
		b.profile.CredibilityScore++
		if v, ok := l.builders[tx.from]; ok {
			v.profile.VouchesGiven++
		}
		l.vouches[vouchKey{voucher: tx.from, builder: p.Builder, skill: p.Skill}] = struct{}{}
		l.totalVouches++
	}
}

func (l *Ledger) txHash(from common.Address) common.Hash {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], l.nonce)
	return crypto.Keccak256Hash(from.Bytes(), n[:])
}

func copySchedule(s fees.Schedule) fees.Schedule {
	cp := func(v *big.Int) *big.Int {
		if v == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(v)
	}
	return fees.Schedule{Register: cp(s.Register), AddSkill: cp(s.AddSkill), Vouch: cp(s.Vouch)}
}

var _ ledger.Gateway = (*Ledger)(nil)

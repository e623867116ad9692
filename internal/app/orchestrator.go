package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

// RegisterRequest carries the registration form.
type RegisterRequest struct {
	Username string
	Github   string
	Twitter  string
	Skills   []model.SkillID
}

// Result describes a settled write.
type Result struct {
	Operation model.PendingOperation
	Fee       *big.Int
	Receipt   ledger.Receipt
	// Stale is set when the write confirmed but a follow-up refresh failed.
	Stale bool
}

// Orchestrator drives writes through Idle, FeeQuoted, Submitted and
// Confirmed or Failed. At most one write is pending at a time.
type Orchestrator struct {
	gw             ledger.Gateway
	sync           *Synchronizer
	session        *Session
	confirmTimeout time.Duration
	logger         logger.Logger

	mu      sync.Mutex
	pending *model.PendingOperation
}

// NewOrchestrator creates an orchestrator. A zero confirmTimeout waits for
// as long as ctx allows.
func NewOrchestrator(gw ledger.Gateway, s *Synchronizer, session *Session, confirmTimeout time.Duration, l logger.Logger) *Orchestrator {
	if l == nil {
		l = logger.Nop()
	}
	return &Orchestrator{gw: gw, sync: s, session: session, confirmTimeout: confirmTimeout, logger: l}
}

// Busy reports whether a write is pending.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pending != nil
}

// Pending returns a copy of the pending write.
func (o *Orchestrator) Pending() (model.PendingOperation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return model.PendingOperation{}, false
	}
	return *o.pending, true
}

// Register registers the connected wallet. On confirmation the session is
// marked registered and its profile and the global counters are re-read.
func (o *Orchestrator) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	if strings.TrimSpace(req.Username) == "" || len(req.Skills) == 0 {
		metrics.RecordOperationRejected(model.OpRegister.String(), "invalid")
		return Result{}, fmt.Errorf("%w: username and at least one skill are required", ErrInvalidRequest)
	}
	from, err := o.caller(model.OpRegister)
	if err != nil {
		return Result{}, err
	}

	payload := ledger.RegisterPayload(req.Username, req.Github, req.Twitter, req.Skills)
	res, err := o.run(ctx, from, payload, from, len(req.Skills))
	if err != nil {
		return res, err
	}

	o.session.MarkRegistered()
	var refreshErr error
	if l, err := o.sync.RefreshOne(ctx, from); err != nil {
		refreshErr = err
	} else if p, ok := l.Get(); ok {
		o.session.SetProfile(p)
	}
	if err := o.sync.RefreshStats(ctx); err != nil {
		refreshErr = errors.Join(refreshErr, err)
	}
	return o.settleRefresh(ctx, res, refreshErr), nil
}

// Vouch vouches for builder's skill. On confirmation the board, the
// counters, the builder and (when registered) the caller are re-read
// concurrently.
func (o *Orchestrator) Vouch(ctx context.Context, builder model.Address, skill model.SkillID) (Result, error) {
	from, err := o.caller(model.OpVouch)
	if err != nil {
		return Result{}, err
	}
	if from == builder {
		metrics.RecordOperationRejected(model.OpVouch.String(), "self_vouch")
		return Result{}, ErrSelfVouch
	}

	payload := ledger.VouchPayload(builder, skill)
	res, err := o.run(ctx, from, payload, builder, 0)
	if err != nil {
		return res, err
	}

	var g errgroup.Group
	g.Go(func() error { return o.sync.RefreshBuilders(ctx) })
	g.Go(func() error { return o.sync.RefreshStats(ctx) })
	g.Go(func() error {
		_, err := o.sync.RefreshOne(ctx, builder)
		return err
	})
	if o.session.Registered() {
		g.Go(func() error { return o.refreshCaller(ctx, from) })
	}
	return o.settleRefresh(ctx, res, g.Wait()), nil
}

// AddSkill claims one more skill for the connected wallet.
func (o *Orchestrator) AddSkill(ctx context.Context, skill model.SkillID) (Result, error) {
	from, err := o.caller(model.OpAddSkill)
	if err != nil {
		return Result{}, err
	}

	res, err := o.run(ctx, from, ledger.AddSkillPayload(skill), from, 0)
	if err != nil {
		return res, err
	}

	var g errgroup.Group
	g.Go(func() error { return o.refreshCaller(ctx, from) })
	g.Go(func() error { return o.sync.RefreshStats(ctx) })
	return o.settleRefresh(ctx, res, g.Wait()), nil
}

func (o *Orchestrator) refreshCaller(ctx context.Context, from model.Address) error {
	l, err := o.sync.RefreshOne(ctx, from)
	if err != nil {
		return err
	}
	if p, ok := l.Get(); ok {
		o.session.SetProfile(p)
	}
	return nil
}

func (o *Orchestrator) caller(kind model.OperationKind) (model.Address, error) {
	from, ok := o.session.Wallet()
	if !ok {
		metrics.RecordOperationRejected(kind.String(), "not_connected")
		return model.Address{}, ErrNotConnected
	}
	return from, nil
}

// run executes one write. The busy flag is held from the fee quote until
// the write settles, and released on every path.
func (o *Orchestrator) run(ctx context.Context, from model.Address, payload ledger.Payload, target model.Address, skillCount int) (Result, error) {
	kind := payload.Kind
	op := model.NewPendingOperation(kind, target, payload.Skill)
	if !o.acquire(&op) {
		metrics.RecordOperationRejected(kind.String(), "busy")
		return Result{}, ErrBusy
	}
	defer o.release()

	start := time.Now()
	log := o.logger.With(logger.String("op_id", op.ID.String()), logger.String("kind", kind.String()))
	metrics.RecordOperationStarted(kind.String())
	o.session.ClearForWrite()

	fee, err := o.gw.QuoteFee(ctx, kind, skillCount)
	if err != nil {
		return o.fail(ctx, log, start, Result{}, err)
	}
	res := Result{Fee: fee, Operation: o.advance(model.StateFeeQuoted)}
	log.Debug(ctx, "fee quoted", logger.String("fee_wei", fee.String()))

	h, err := o.gw.Submit(ctx, from, payload, fee)
	if err != nil {
		return o.fail(ctx, log, start, res, err)
	}
	res.Operation = o.advance(model.StateSubmitted)
	log.Info(ctx, "operation submitted", logger.Stringer("tx", h.Hash))

	actx := ctx
	if o.confirmTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.confirmTimeout)
		defer cancel()
	}
	receipt, err := o.gw.AwaitConfirmation(actx, h)
	res.Receipt = receipt
	if err != nil {
		return o.fail(ctx, log, start, res, err)
	}
	res.Operation = o.advance(model.StateConfirmed)

	metrics.RecordOperationSettled(kind.String(), model.StateConfirmed.String(), msSince(start))
	log.Info(ctx, "operation confirmed",
		logger.Stringer("tx", receipt.Hash),
		logger.Uint64("block", receipt.BlockNumber))
	return res, nil
}

func (o *Orchestrator) fail(ctx context.Context, log logger.Logger, start time.Time, res Result, err error) (Result, error) {
	err = failure.Wrap(err)
	res.Operation = o.advance(model.StateFailed)
	kind := failure.Classify(err)

	o.session.Raise(err)
	metrics.RecordFailure(kind.String())
	metrics.RecordOperationSettled(res.Operation.Kind.String(), model.StateFailed.String(), msSince(start))
	log.Warn(ctx, "operation failed", logger.String("failure", kind.String()), logger.Error(err))
	return res, err
}

func (o *Orchestrator) settleRefresh(ctx context.Context, res Result, err error) Result {
	if err != nil {
		res.Stale = true
		o.logger.Warn(ctx, "refresh after confirmed write failed",
			logger.String("op_id", res.Operation.ID.String()), logger.Error(err))
	}
	return res
}

func (o *Orchestrator) acquire(op *model.PendingOperation) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending != nil {
		return false
	}
	o.pending = op
	metrics.UpdateOperationBusy(true)
	return true
}

func (o *Orchestrator) advance(next model.OpState) model.PendingOperation {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending.Advance(next)
	return *o.pending
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = nil
	metrics.UpdateOperationBusy(false)
}

// Package service wires the ledger gateway, the profile cache, the refresh
// workers and the write orchestrator into the API the HTTP layer serves.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/mq/queue"
	"github.com/okian/vouchbase/internal/adapters/mq/worker"
	"github.com/okian/vouchbase/internal/adapters/repository"
	"github.com/okian/vouchbase/internal/domain/dedupe"
	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

const (
	defaultRequiredChainID = 8453
	defaultSyncInterval    = 30 * time.Second
	defaultQueueSize       = 256
	defaultWorkerCount     = 2
	defaultDedupeSize      = 1024
	defaultConfirmTimeout  = 2 * time.Minute
	stopTimeout            = 10 * time.Second
)

// Service implements the API dependencies for the vouchbase client.
type Service struct {
	mu sync.RWMutex

	// Core components
	raw     ledger.Gateway
	gw      ledger.Gateway
	store   repository.Store
	session *Session
	guard   *NetworkGuard
	sync    *Synchronizer
	orch    *Orchestrator
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool

	// Configuration
	requiredChainID   uint64
	pageSize          int
	syncInterval      time.Duration
	chainPollInterval time.Duration
	queueSize         int
	workerCount       int
	dedupeSize        int
	leaderboardLimit  int
	confirmTimeout    time.Duration
	wallet            *model.Address

	// State
	started bool
	cancel  context.CancelFunc
	loops   sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore replaces the default in-memory profile cache.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithRequiredChainID sets the chain the network guard enforces.
func WithRequiredChainID(id uint64) Option {
	return func(s *Service) {
		if id > 0 {
			s.requiredChainID = id
		}
	}
}

// WithPageSize sets how many builders a board refresh reads.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithSyncInterval sets how often board and stats refreshes are queued.
// Zero disables the ticker.
func WithSyncInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.syncInterval = d
		}
	}
}

// WithChainPollInterval enables polling the gateway's chain id and feeding
// it to the network guard.
func WithChainPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.chainPollInterval = d
		}
	}
}

// WithQueueSize sets the refresh queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithDedupeSize bounds the number of coalesced refresh keys.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLeaderboardLimit caps the limit Leaderboard accepts on the default
// cache.
func WithLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.leaderboardLimit = n
		}
	}
}

// WithConfirmTimeout bounds how long a write waits to be mined.
func WithConfirmTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.confirmTimeout = d
		}
	}
}

// WithWallet connects the given wallet when the service starts.
func WithWallet(addr model.Address) Option {
	return func(s *Service) {
		s.wallet = &addr
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service over gw. Reads are served from the cache as
// soon as New returns; background refresh starts with Start.
func New(gw ledger.Gateway, opts ...Option) *Service {
	s := &Service{
		raw:             gw,
		requiredChainID: defaultRequiredChainID,
		pageSize:        ledger.MaxPageSize,
		syncInterval:    defaultSyncInterval,
		queueSize:       defaultQueueSize,
		workerCount:     defaultWorkerCount,
		dedupeSize:      defaultDedupeSize,
		confirmTimeout:  defaultConfirmTimeout,
		logger:          logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemStore(repository.WithMaxLimit(s.leaderboardLimit))
	}
	s.session = NewSession()
	s.guard = NewNetworkGuard(s.requiredChainID, s.session, s.logger.Named("guard"))
	s.gw = s.guard.Gate(gw)
	s.sync = NewSynchronizer(s.gw, s.store, s.pageSize, s.logger.Named("sync"))
	s.orch = NewOrchestrator(s.gw, s.sync, s.session, s.confirmTimeout, s.logger.Named("orchestrator"))
	return s
}

// Start starts the refresh workers and loops, connects the configured
// wallet and queues the first board and stats refresh.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}

	s.logger.Info(ctx, "starting vouchbase service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.queue = q
	s.pool = worker.NewPool(s.workerCount, q, s, worker.WithLogger(s.logger.Named("worker")))
	s.pool.Start(runCtx)
	s.started = true
	s.mu.Unlock()

	chainID := s.requiredChainID
	if s.chainPollInterval > 0 {
		if id, err := s.raw.ChainID(ctx); err == nil {
			chainID = id
		} else {
			s.logger.Warn(ctx, "initial chain id read failed", logger.Error(err))
		}
	}
	if s.wallet != nil {
		s.Connect(ctx, *s.wallet, true, chainID)
	}

	for _, kind := range []model.RefreshKind{model.RefreshBoard, model.RefreshStats} {
		if _, err := s.RequestRefresh(ctx, model.RefreshJob{Kind: kind}); err != nil {
			s.logger.Warn(ctx, "initial refresh not queued", logger.String("kind", kind.String()), logger.Error(err))
		}
	}

	if s.syncInterval > 0 {
		s.loops.Add(1)
		go s.syncLoop(runCtx)
	}
	if s.chainPollInterval > 0 {
		s.loops.Add(1)
		go s.chainLoop(runCtx)
	}

	s.logger.Info(ctx, "vouchbase service started",
		logger.Uint64("required_chain_id", s.requiredChainID),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Duration("sync_interval", s.syncInterval))
	return nil
}

// Stop stops the loops and drains the refresh workers. A pending write is
// left to its caller's context.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	cancel, pool := s.cancel, s.pool
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping vouchbase service...")

	cancel()
	s.loops.Wait()

	sctx, done := context.WithTimeout(ctx, stopTimeout)
	defer done()
	if err := pool.Shutdown(sctx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown", logger.Error(err))
	}

	s.logger.Info(ctx, "vouchbase service stopped")
}

func (s *Service) syncLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, kind := range []model.RefreshKind{model.RefreshBoard, model.RefreshStats} {
				if _, err := s.RequestRefresh(ctx, model.RefreshJob{Kind: kind}); err != nil {
					s.logger.Debug(ctx, "periodic refresh not queued", logger.String("kind", kind.String()), logger.Error(err))
				}
			}
		}
	}
}

func (s *Service) chainLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.chainPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollChain(ctx)
		}
	}
}

// pollChain reads the gateway's chain id and reports it as a connection
// update for the current wallet.
func (s *Service) pollChain(ctx context.Context) {
	id, err := s.raw.ChainID(ctx)
	if err != nil {
		s.logger.Warn(ctx, "chain id read failed", logger.Error(err))
		return
	}
	wallet, connected := s.session.Wallet()
	s.Connect(ctx, wallet, connected, id)
}

// Refresh runs one background refresh job. It implements worker.Refresher.
func (s *Service) Refresh(ctx context.Context, j model.RefreshJob) error {
	defer s.deduper.Release(j.Key())

	switch j.Kind {
	case model.RefreshBoard:
		return s.sync.RefreshBuilders(ctx)
	case model.RefreshStats:
		return s.sync.RefreshStats(ctx)
	case model.RefreshProfile:
		_, err := s.sync.RefreshOne(ctx, j.Address)
		return err
	default:
		return ErrInvalidRequest
	}
}

// RequestRefresh queues a background refresh. It returns false without an
// error when the same job is already queued or running.
func (s *Service) RequestRefresh(ctx context.Context, j model.RefreshJob) (bool, error) {
	s.mu.RLock()
	started, q, d := s.started, s.queue, s.deduper
	s.mu.RUnlock()
	if !started {
		return false, ErrNotStarted
	}

	key := j.Key()
	if !d.Claim(key) {
		metrics.RecordQueueRejected("duplicate")
		return false, nil
	}
	if !q.Enqueue(ctx, j) {
		d.Release(key)
		return false, ErrQueueFull
	}
	return true, nil
}

// Connect records a wallet connection change. The network guard observes
// every change; a new account, or a chain that just became valid again, is
// re-probed for registration.
func (s *Service) Connect(ctx context.Context, wallet model.Address, connected bool, chainID uint64) SessionView {
	wasBlocked := s.guard.Mismatch()
	changed := s.session.Connect(wallet, connected, chainID)
	s.guard.Observe(connected, chainID)

	if connected && (changed || (wasBlocked && !s.guard.Mismatch())) {
		s.probe(ctx, wallet)
	}
	if changed {
		s.logger.Info(ctx, "wallet connection changed",
			logger.Stringer("wallet", wallet),
			logger.Bool("connected", connected),
			logger.Uint64("chain_id", chainID))
	}
	return s.SessionView()
}

// probe reads the wallet's profile; NotFound means unregistered.
func (s *Service) probe(ctx context.Context, wallet model.Address) {
	l, err := s.sync.RefreshOne(ctx, wallet)
	if err != nil {
		if !failure.Is(err, failure.WrongNetwork) {
			s.logger.Warn(ctx, "registration probe failed", logger.Stringer("wallet", wallet), logger.Error(err))
		}
		return
	}
	if p, ok := l.Get(); ok {
		s.session.SetProfile(p)
		return
	}
	s.session.MarkUnregistered()
}

// SessionView returns the session with the orchestrator's busy state.
func (s *Service) SessionView() SessionView {
	v := s.session.View()
	if op, ok := s.orch.Pending(); ok {
		v.Busy = true
		v.Pending = &op
	}
	return v
}

// DismissAdvisory clears the shown advisory.
func (s *Service) DismissAdvisory() {
	s.session.Dismiss()
}

// Leaderboard returns the top limit builders of the cached board.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]repository.Entry, error) {
	return s.store.TopN(ctx, limit)
}

// Rank returns addr's board position.
func (s *Service) Rank(ctx context.Context, addr model.Address) (repository.Entry, error) {
	return s.store.Rank(ctx, addr)
}

// Profile returns the cached profile of addr, reading it from the ledger on
// a cache miss.
func (s *Service) Profile(ctx context.Context, addr model.Address) (model.Lookup, error) {
	p, err := s.store.Get(ctx, addr)
	if err == nil {
		return model.Found(p), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.NotFound(), err
	}
	return s.sync.RefreshOne(ctx, addr)
}

// FindBuilder resolves username on the ledger and returns that builder's
// profile. An unknown username is NotFound.
func (s *Service) FindBuilder(ctx context.Context, username string) (model.Lookup, error) {
	addr, ok, err := s.gw.LookupUsername(ctx, strings.TrimSpace(username))
	if err != nil || !ok {
		return model.NotFound(), err
	}
	return s.Profile(ctx, addr)
}

// VouchedSkills returns those of ids the connected wallet already vouched
// for on builder. It is empty without a connected wallet, or when the
// wallet is the builder.
func (s *Service) VouchedSkills(ctx context.Context, builder model.Address, ids []model.SkillID) ([]model.SkillID, error) {
	voucher, ok := s.session.Wallet()
	if !ok || voucher == builder || len(ids) == 0 {
		return nil, nil
	}

	vouched := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			v, err := s.gw.HasVouched(gctx, voucher, builder, id)
			vouched[i] = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.SkillID
	for i, v := range vouched {
		if v {
			out = append(out, ids[i])
		}
	}
	return out, nil
}

// GlobalStats returns the cached counters and whether they were ever loaded.
func (s *Service) GlobalStats(ctx context.Context) (model.GlobalStats, bool) {
	return s.store.Stats(ctx)
}

// Register registers the connected wallet.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Result, error) {
	return s.orch.Register(ctx, req)
}

// Vouch vouches for builder's skill from the connected wallet.
func (s *Service) Vouch(ctx context.Context, builder model.Address, skill model.SkillID) (Result, error) {
	return s.orch.Vouch(ctx, builder, skill)
}

// AddSkill claims skill for the connected wallet.
func (s *Service) AddSkill(ctx context.Context, skill model.SkillID) (Result, error) {
	return s.orch.AddSkill(ctx, skill)
}

// GetStats returns service statistics.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":           s.started,
		"required_chain_id": s.requiredChainID,
		"network_mismatch":  s.guard.Mismatch(),
		"busy":              s.orch.Busy(),
		"board_size":        s.store.Count(ctx),
		"page_size":         s.sync.pageSize,
	}
	if s.deduper != nil {
		stats["dedupe_size"] = s.deduper.Size()
	}
	if snap := s.store.Snapshot(); snap != nil && !snap.PublishedAt.IsZero() {
		stats["board_published_at"] = snap.PublishedAt
	}
	if s.queue != nil {
		stats["queue_size"] = s.queue.Len(ctx)
	}
	if s.pool != nil {
		stats["workers"] = s.pool.Size()
	}
	return stats
}

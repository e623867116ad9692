package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/metrics"
)

const defaultMaxLimit = 50

// MemStore is the in-memory Store. Profiles sit behind a RWMutex; the board
// and stats are published as immutable snapshots so readers never block
// a refresh.
type MemStore struct {
	mu       sync.RWMutex
	profiles map[model.Address]model.BuilderProfile
	// stamps holds the stamp of the read behind each cached profile.
	stamps     map[model.Address]uint64
	boardStamp uint64
	statsStamp uint64

	seq   atomic.Uint64
	board atomic.Pointer[Snapshot]
	stats atomic.Pointer[model.GlobalStats]

	maxLimit int
}

// NewMemStore creates an empty store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		profiles: make(map[model.Address]model.BuilderProfile),
		stamps:   make(map[model.Address]uint64),
		maxLimit: defaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.board.Store(&Snapshot{RankByWallet: map[model.Address]int{}})
	return s
}

func (s *MemStore) Stamp() uint64 {
	return s.seq.Add(1)
}

func (s *MemStore) Put(_ context.Context, p model.BuilderProfile, stamp uint64) bool {
	s.mu.Lock()
	if s.stamps[p.Wallet] > stamp {
		s.mu.Unlock()
		return false
	}
	s.profiles[p.Wallet] = p.Clone()
	s.stamps[p.Wallet] = stamp
	n := len(s.profiles)
	s.mu.Unlock()
	metrics.UpdateCachedProfiles(n)
	return true
}

func (s *MemStore) Get(_ context.Context, addr model.Address) (model.BuilderProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[addr]
	if !ok {
		return model.BuilderProfile{}, ErrNotFound
	}
	return p.Clone(), nil
}

func (s *MemStore) ReplaceBoard(_ context.Context, board []model.BuilderProfile, stamp uint64) bool {
	snap := &Snapshot{
		Board:        make([]model.BuilderProfile, len(board)),
		RankByWallet: make(map[model.Address]int, len(board)),
		PublishedAt:  time.Now(),
	}
	for i, p := range board {
		snap.Board[i] = p.Clone()
		if _, dup := snap.RankByWallet[p.Wallet]; !dup {
			snap.RankByWallet[p.Wallet] = i + 1
		}
	}

	s.mu.Lock()
	if s.boardStamp > stamp {
		s.mu.Unlock()
		return false
	}
	// A member read more recently than this board only blocks it when the
	// two reads disagree.
	for _, p := range snap.Board {
		if s.stamps[p.Wallet] > stamp && !s.profiles[p.Wallet].Equal(p) {
			s.mu.Unlock()
			return false
		}
	}
	for _, p := range snap.Board {
		if s.stamps[p.Wallet] > stamp {
			continue
		}
		s.profiles[p.Wallet] = p.Clone()
		s.stamps[p.Wallet] = stamp
	}
	n := len(s.profiles)
	s.boardStamp = stamp
	s.board.Store(snap)
	s.mu.Unlock()

	metrics.UpdateBoardSize(len(snap.Board))
	metrics.UpdateCachedProfiles(n)
	return true
}

func (s *MemStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n < 1 || n > s.maxLimit {
		return nil, ErrInvalidLimit
	}
	snap := s.board.Load()
	if n > len(snap.Board) {
		n = len(snap.Board)
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = Entry{Rank: i + 1, Profile: snap.Board[i].Clone()}
	}
	return out, nil
}

func (s *MemStore) Rank(_ context.Context, addr model.Address) (Entry, error) {
	snap := s.board.Load()
	r, ok := snap.RankByWallet[addr]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return Entry{Rank: r, Profile: snap.Board[r-1].Clone()}, nil
}

func (s *MemStore) Count(_ context.Context) int {
	return len(s.board.Load().Board)
}

func (s *MemStore) SetStats(_ context.Context, st model.GlobalStats, stamp uint64) bool {
	s.mu.Lock()
	if s.statsStamp > stamp {
		s.mu.Unlock()
		return false
	}
	s.statsStamp = stamp
	s.stats.Store(&st)
	s.mu.Unlock()
	metrics.UpdateGlobalStats(st.Builders, st.Vouches, st.SkillsClaimed)
	return true
}

func (s *MemStore) Stats(_ context.Context) (model.GlobalStats, bool) {
	st := s.stats.Load()
	if st == nil {
		return model.GlobalStats{}, false
	}
	return *st, true
}

func (s *MemStore) Snapshot() *Snapshot {
	return s.board.Load()
}

var _ Store = (*MemStore)(nil)

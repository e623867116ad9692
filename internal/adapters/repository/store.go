// Package repository holds the in-memory profile cache.
package repository

import (
	"context"
	"time"

	"github.com/okian/vouchbase/internal/domain/model"
)

// Entry is a leaderboard row. Rank is the 1-based board position.
type Entry struct {
	Rank    int
	Profile model.BuilderProfile
}

// Store is the cache of ledger state. It is never written through: every
// mutation replaces whole entries after an authoritative read.
//
// Writers take a Stamp before reading from the ledger and pass it to the
// publish call. A publish whose stamp is older than the last publish of the
// same entry is dropped, so a slow read can never roll back a newer one.
type Store interface {
	// Stamp returns a new sequence number, increasing across the store.
	Stamp() uint64

	// Put replaces the cached profile for p.Wallet. It reports false when a
	// newer read of that wallet was already published.
	Put(ctx context.Context, p model.BuilderProfile, stamp uint64) bool
	// Get returns a copy of the cached profile, or ErrNotFound.
	Get(ctx context.Context, addr model.Address) (model.BuilderProfile, error)

	// ReplaceBoard publishes an already sorted board and replaces the cache
	// entry of every builder on it. The whole board is dropped, and false
	// returned, when a newer board was already published, or when a newer
	// read of a member was published and differs from the board's copy.
	ReplaceBoard(ctx context.Context, board []model.BuilderProfile, stamp uint64) bool
	// TopN returns the first n board entries.
	TopN(ctx context.Context, n int) ([]Entry, error)
	// Rank returns the board entry for addr, or ErrNotFound.
	Rank(ctx context.Context, addr model.Address) (Entry, error)
	// Count returns the board size.
	Count(ctx context.Context) int

	SetStats(ctx context.Context, s model.GlobalStats, stamp uint64) bool
	// Stats returns the cached counters and whether they were ever loaded.
	Stats(ctx context.Context) (model.GlobalStats, bool)

	// Snapshot returns the current board snapshot. Callers must not modify it.
	Snapshot() *Snapshot
}

// Snapshot is an immutable view of one published board.
type Snapshot struct {
	Board        []model.BuilderProfile
	RankByWallet map[model.Address]int
	PublishedAt  time.Time
}

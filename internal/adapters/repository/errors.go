package repository

import "errors"

// Sentinel kinds for cache errors.
var (
	ErrNotFound     = errors.New("builder not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
)

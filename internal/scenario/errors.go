package scenario

import "errors"

// Sentinel kinds for scenario failures.
var (
	ErrInvalidConfig = errors.New("invalid scenario config")
	ErrRequest       = errors.New("request failed")
	ErrNotSettled    = errors.New("leaderboard did not settle")
	ErrVerification  = errors.New("verification failed")
)

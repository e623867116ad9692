package service

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrBusy is returned when a write is requested while another is pending.
	ErrBusy = errors.New("another operation is pending")
	// ErrNotConnected is returned when a write needs a wallet and none is connected.
	ErrNotConnected = errors.New("wallet not connected")
	// ErrInvalidRequest is returned when a write request fails its input gate.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrSelfVouch is returned when the session wallet vouches for itself.
	ErrSelfVouch = errors.New("cannot vouch for own profile")
	// ErrInconsistentBoard is returned when an enumerated builder has no profile.
	ErrInconsistentBoard = errors.New("enumerated builder has no profile")
	// ErrQueueFull is returned when a refresh job could not be queued.
	ErrQueueFull = errors.New("refresh queue full")
	// ErrNotStarted is returned when the service is used before Start.
	ErrNotStarted = errors.New("service not started")
)

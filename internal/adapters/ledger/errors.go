package ledger

import "errors"

var (
	// ErrNoSigner is returned by Submit when no signing key is configured.
	ErrNoSigner = errors.New("no signing key configured")
	// ErrSignerMismatch is returned when the caller is not the configured signer.
	ErrSignerMismatch = errors.New("caller is not the configured signer")
	// ErrDecode is returned when a contract return value has an unexpected shape.
	ErrDecode = errors.New("unexpected contract return value")
	// ErrUnknownTx is returned when awaiting a handle this gateway did not issue.
	ErrUnknownTx = errors.New("unknown transaction handle")
	// ErrInvalidPayload is returned when a payload does not match its kind.
	ErrInvalidPayload = errors.New("invalid payload")
)

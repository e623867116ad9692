// Package failure is the closed taxonomy of ledger failures shown to users.
//
// Raw transport and contract errors are tagged exactly once, at the ledger
// gateway boundary, by wrapping them in *Error. Everything downstream uses
// Classify or errors.As; nothing inspects error strings after that point.
package failure

import (
	"errors"
	"fmt"
)

// Kind is a failure category.
type Kind int

const (
	// None is the classification of a nil error.
	None Kind = iota
	UserCancelled
	InsufficientFunds
	WrongNetwork
	LedgerRejected
	NotFound
	Unknown
)

// String returns the stable wire code for k.
func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case UserCancelled:
		return "user_cancelled"
	case InsufficientFunds:
		return "insufficient_funds"
	case WrongNetwork:
		return "wrong_network"
	case LedgerRejected:
		return "ledger_rejected"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// User-facing texts.
const (
	MsgUserCancelled     = "Transaction cancelled"
	MsgInsufficientFunds = "Insufficient ETH for transaction"
	MsgLedgerRejected    = "Transaction reverted"
	MsgNotFound          = "Builder not found"
	MsgUnknown           = "Something went wrong"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string // shown to the user as is
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a classified failure. An empty message falls back to the
// default text for kind.
func New(kind Kind, message string, err error) *Error {
	if message == "" {
		message = defaultMessage(kind, err)
	}
	return &Error{Kind: kind, Message: message, Err: err}
}

// Cancelled tags a declined signature.
func Cancelled(err error) *Error { return New(UserCancelled, MsgUserCancelled, err) }

// Insufficient tags a balance below the quoted amount.
func Insufficient(err error) *Error { return New(InsufficientFunds, MsgInsufficientFunds, err) }

// Rejected tags a contract-level refusal. reason is surfaced verbatim when
// non-empty.
func Rejected(reason string, err error) *Error { return New(LedgerRejected, reason, err) }

// Missing tags an absent profile where one was required.
func Missing(err error) *Error { return New(NotFound, MsgNotFound, err) }

// Network tags a chain mismatch. Only the network guard produces it.
func Network(requiredChainID uint64) *Error {
	return New(WrongNetwork, NetworkMessage(requiredChainID), nil)
}

// NetworkMessage is the advisory text for a chain mismatch.
func NetworkMessage(requiredChainID uint64) string {
	if requiredChainID == 8453 {
		return "Please switch to Base network (Chain ID: 8453)"
	}
	return fmt.Sprintf("Please switch to the required network (Chain ID: %d)", requiredChainID)
}

// Wrap tags err as Unknown unless it already carries a classification.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return err
	}
	return New(Unknown, "", err)
}

// Classify returns the kind of err. It returns None for nil and Unknown for
// anything that was never tagged.
func Classify(err error) Kind {
	if err == nil {
		return None
	}
	var fe *Error
	if errors.As(err, &fe) && fe != nil {
		return fe.Kind
	}
	return Unknown
}

// Message returns the text to show for err, or "" for nil.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) && fe != nil {
		return fe.Message
	}
	return defaultMessage(Unknown, err)
}

// Is reports whether err classifies as kind.
func Is(err error, kind Kind) bool { return Classify(err) == kind }

func defaultMessage(kind Kind, err error) string {
	switch kind {
	case UserCancelled:
		return MsgUserCancelled
	case InsufficientFunds:
		return MsgInsufficientFunds
	case LedgerRejected:
		return MsgLedgerRejected
	case NotFound:
		return MsgNotFound
	case WrongNetwork:
		return NetworkMessage(8453)
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return MsgUnknown
}

package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationKind names a ledger write.
type OperationKind int

const (
	OpRegister OperationKind = iota + 1
	OpAddSkill
	OpVouch
)

func (k OperationKind) String() string {
	switch k {
	case OpRegister:
		return "register"
	case OpAddSkill:
		return "add_skill"
	case OpVouch:
		return "vouch"
	default:
		return "unknown"
	}
}

// OpState is the position of a write in Idle -> FeeQuoted -> Submitted -> Confirmed|Failed.
type OpState int

const (
	StateIdle OpState = iota
	StateFeeQuoted
	StateSubmitted
	StateConfirmed
	StateFailed
)

func (s OpState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFeeQuoted:
		return "fee_quoted"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends an operation.
func (s OpState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// PendingOperation tracks the single in-flight write.
type PendingOperation struct {
	ID        uuid.UUID
	Kind      OperationKind
	Target    Address // vouchee for OpVouch, caller otherwise
	SkillID   SkillID // zero for OpRegister
	StartedAt time.Time
	State     OpState
}

// NewPendingOperation starts an operation in StateIdle.
func NewPendingOperation(kind OperationKind, target Address, skill SkillID) PendingOperation {
	return PendingOperation{
		ID:        uuid.New(),
		Kind:      kind,
		Target:    target,
		SkillID:   skill,
		StartedAt: time.Now(),
		State:     StateIdle,
	}
}

// Advance moves the operation to next. Only forward moves along the state
// machine are accepted; anything else returns false and leaves the state.
func (op *PendingOperation) Advance(next OpState) bool {
	ok := false
	switch op.State {
	case StateIdle:
		ok = next == StateFeeQuoted || next == StateFailed
	case StateFeeQuoted:
		ok = next == StateSubmitted || next == StateFailed
	case StateSubmitted:
		ok = next == StateConfirmed || next == StateFailed
	}
	if ok {
		op.State = next
	}
	return ok
}

// RefreshKind selects what a background refresh re-reads.
type RefreshKind int

const (
	RefreshBoard RefreshKind = iota + 1
	RefreshStats
	RefreshProfile
)

func (k RefreshKind) String() string {
	switch k {
	case RefreshBoard:
		return "board"
	case RefreshStats:
		return "stats"
	case RefreshProfile:
		return "profile"
	default:
		return "unknown"
	}
}

// ParseRefreshKind is the inverse of RefreshKind.String.
func ParseRefreshKind(s string) (RefreshKind, bool) {
	switch s {
	case "board":
		return RefreshBoard, true
	case "stats":
		return RefreshStats, true
	case "profile":
		return RefreshProfile, true
	}
	return 0, false
}

// RefreshJob is a unit of background synchronization.
type RefreshJob struct {
	Kind    RefreshKind
	Address Address // only for RefreshProfile
}

// Key identifies jobs that coalesce with each other.
func (j RefreshJob) Key() string {
	if j.Kind == RefreshProfile {
		return j.Kind.String() + ":" + j.Address.Hex()
	}
	return j.Kind.String()
}

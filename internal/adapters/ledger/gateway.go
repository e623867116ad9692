// Package ledger provides typed access to the VouchBase registry contract.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/okian/vouchbase/internal/domain/fees"
	"github.com/okian/vouchbase/internal/domain/model"
)

// MaxPageSize is the largest page requested from getBuilders.
const MaxPageSize = 50

// Gateway is the typed boundary to the contract. Every failure returned by a
// Gateway is already tagged with a failure.Kind.
type Gateway interface {
	// ChainID returns the chain the gateway is connected to.
	ChainID(ctx context.Context) (uint64, error)

	// ReadProfile probes existence first and reads details only for
	// registered wallets. NotFound is a result, not an error.
	ReadProfile(ctx context.Context, addr model.Address) (model.Lookup, error)
	ReadSkillVouches(ctx context.Context, addr model.Address) ([]model.SkillClaim, error)
	ReadGlobalStats(ctx context.Context) (model.GlobalStats, error)
	ListBuilderAddresses(ctx context.Context, offset, limit uint64) ([]model.Address, error)
	LookupUsername(ctx context.Context, username string) (model.Address, bool, error)
	HasVouched(ctx context.Context, voucher, builder model.Address, skill model.SkillID) (bool, error)

	FeeSchedule(ctx context.Context) (fees.Schedule, error)
	QuoteFee(ctx context.Context, op model.OperationKind, skillCount int) (*big.Int, error)

	// Submit sends a write from the given wallet carrying exactly amount.
	Submit(ctx context.Context, from model.Address, payload Payload, amount *big.Int) (TxHandle, error)
	// AwaitConfirmation blocks until the write is mined. A reverted write
	// returns its receipt together with a LedgerRejected failure.
	AwaitConfirmation(ctx context.Context, h TxHandle) (Receipt, error)
}

// Payload carries the arguments of one write.
type Payload struct {
	Kind     model.OperationKind
	Username string
	Github   string
	Twitter  string
	Skills   []model.SkillID // OpRegister
	Builder  model.Address   // OpVouch
	Skill    model.SkillID   // OpAddSkill, OpVouch
}

// RegisterPayload builds a registration payload.
func RegisterPayload(username, github, twitter string, skills []model.SkillID) Payload {
	return Payload{
		Kind:     model.OpRegister,
		Username: username,
		Github:   github,
		Twitter:  twitter,
		Skills:   append([]model.SkillID(nil), skills...),
	}
}

// AddSkillPayload builds an add-skill payload.
func AddSkillPayload(skill model.SkillID) Payload {
	return Payload{Kind: model.OpAddSkill, Skill: skill}
}

// VouchPayload builds a vouch payload.
func VouchPayload(builder model.Address, skill model.SkillID) Payload {
	return Payload{Kind: model.OpVouch, Builder: builder, Skill: skill}
}

// method maps the payload onto a contract call.
func (p Payload) method() (string, []any, error) {
	switch p.Kind {
	case model.OpRegister:
		ids := make([]uint8, len(p.Skills))
		for i, s := range p.Skills {
			ids[i] = uint8(s)
		}
		return methodRegister, []any{p.Username, p.Github, p.Twitter, ids}, nil
	case model.OpAddSkill:
		return methodAddSkill, []any{uint8(p.Skill)}, nil
	case model.OpVouch:
		return methodVouch, []any{p.Builder, uint8(p.Skill)}, nil
	default:
		return "", nil, fmt.Errorf("%w: kind %s", ErrInvalidPayload, p.Kind)
	}
}

// TxHandle identifies a submitted write.
type TxHandle struct {
	Hash        common.Hash
	Kind        model.OperationKind
	SubmittedAt time.Time

	tx *types.Transaction
}

// NewTxHandle builds a handle for gateways that do not sign real transactions.
func NewTxHandle(hash common.Hash, kind model.OperationKind) TxHandle {
	return TxHandle{Hash: hash, Kind: kind, SubmittedAt: time.Now()}
}

// Receipt is the settled outcome of a write.
type Receipt struct {
	Hash        common.Hash
	BlockNumber uint64
	Confirmed   bool
}

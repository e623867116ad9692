// Package fees computes the value attached to each ledger write.
package fees

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/okian/vouchbase/internal/domain/model"
)

// ErrUnknownOperation is returned when quoting an unsupported kind.
var ErrUnknownOperation = errors.New("unknown operation kind")

// Schedule holds the unit fees read from the ledger.
type Schedule struct {
	Register *big.Int
	AddSkill *big.Int
	Vouch    *big.Int
}

// Quote returns the exact value a write of kind op must carry.
//
//	Register: Register + AddSkill*skillCount
//	AddSkill: AddSkill
//	Vouch:    Vouch
//
// Nil unit fees count as zero. The result is always a fresh value.
func (s Schedule) Quote(op model.OperationKind, skillCount int) (*big.Int, error) {
	switch op {
	case model.OpRegister:
		if skillCount < 0 {
			return nil, fmt.Errorf("negative skill count %d", skillCount)
		}
		total := new(big.Int).Mul(orZero(s.AddSkill), big.NewInt(int64(skillCount)))
		return total.Add(total, orZero(s.Register)), nil
	case model.OpAddSkill:
		return new(big.Int).Set(orZero(s.AddSkill)), nil
	case model.OpVouch:
		return new(big.Int).Set(orZero(s.Vouch)), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownOperation, int(op))
	}
}

var zero = big.NewInt(0)

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return zero
	}
	return v
}

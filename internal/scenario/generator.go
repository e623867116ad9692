package scenario

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/okian/vouchbase/internal/domain/skills"
	"github.com/okian/vouchbase/pkg/logger"
)

// randInt returns a uniform value in [0, n) using crypto/rand.
func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return int(v.Int64())
}

func randomWallet() common.Address {
	var b [common.AddressLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return common.BytesToAddress(b[:])
}

// generatePlan creates fresh wallets with distinct usernames and a set of
// valid vouches between them: never a self-vouch, only for skills the
// builder claims, and never the same (voucher, builder, skill) twice.
func generatePlan(ctx context.Context, config *Config, stats *Stats) *Plan {
	runID := uuid.NewString()[:8]
	plan := &Plan{RunID: runID, Builders: make([]Builder, config.Builders)}

	for i := range plan.Builders {
		plan.Builders[i] = Builder{
			Wallet:   randomWallet(),
			Username: fmt.Sprintf("b%s%03d", runID, i),
			Skills:   randomSkills(1 + randInt(maxSkillsEach)),
		}
	}

	type key struct {
		voucher, builder common.Address
		skill            int
	}
	seen := make(map[key]struct{}, config.Vouches)
	for attempts := 0; len(plan.Vouches) < config.Vouches && attempts < config.Vouches*planAttempts; attempts++ {
		b := plan.Builders[randInt(len(plan.Builders))]
		v := plan.Builders[randInt(len(plan.Builders))]
		if v.Wallet == b.Wallet {
			continue
		}
		k := key{voucher: v.Wallet, builder: b.Wallet, skill: b.Skills[randInt(len(b.Skills))]}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		plan.Vouches = append(plan.Vouches, Vouch{Voucher: k.voucher, Builder: k.builder, Skill: k.skill})
	}

	stats.BuildersPlanned = len(plan.Builders)
	stats.VouchesPlanned = len(plan.Vouches)
	logger.Get().Info(ctx, "generated plan",
		logger.String("runID", runID),
		logger.Int("builders", len(plan.Builders)),
		logger.Int("vouches", len(plan.Vouches)))
	return plan
}

// randomSkills picks n distinct catalog ids.
func randomSkills(n int) []int {
	pool := make([]int, 0, int(skills.MaxID))
	for id := 1; id <= int(skills.MaxID); id++ {
		pool = append(pool, id)
	}
	for i := 0; i < n; i++ {
		j := i + randInt(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return append([]int(nil), pool[:n]...)
}

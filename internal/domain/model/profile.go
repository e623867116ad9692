// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Username length bounds enforced by the ledger.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 20
)

// Address identifies a wallet. common.Address is a fixed byte array, so
// comparisons never depend on the hex case a caller used.
type Address = common.Address

// ParseAddress accepts a 0x-prefixed hex address in any case.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// SkillID is a catalog skill identifier (1-25 on the current contract).
type SkillID uint8

// SkillClaim is one skill on a builder together with its vouch count.
type SkillClaim struct {
	SkillID SkillID
	Vouches uint64
}

// BuilderProfile is the last-synced snapshot of one registered builder.
type BuilderProfile struct {
	Wallet           Address
	Username         string
	Github           string
	Twitter          string
	RegisteredAt     int64 // seconds since epoch
	CredibilityScore uint64
	VouchesReceived  uint64
	VouchesGiven     uint64
	Skills           []SkillClaim // claim order
}

// Clone returns a deep copy so cache readers never share the Skills slice.
func (p BuilderProfile) Clone() BuilderProfile {
	out := p
	if p.Skills != nil {
		out.Skills = make([]SkillClaim, len(p.Skills))
		copy(out.Skills, p.Skills)
	}
	return out
}

// Equal reports whether p and o hold the same ledger state.
func (p BuilderProfile) Equal(o BuilderProfile) bool {
	return p.Wallet == o.Wallet &&
		p.Username == o.Username &&
		p.Github == o.Github &&
		p.Twitter == o.Twitter &&
		p.RegisteredAt == o.RegisteredAt &&
		p.CredibilityScore == o.CredibilityScore &&
		p.VouchesReceived == o.VouchesReceived &&
		p.VouchesGiven == o.VouchesGiven &&
		slices.Equal(p.Skills, o.Skills)
}

// Skill returns the claim for id, if the builder holds it.
func (p BuilderProfile) Skill(id SkillID) (SkillClaim, bool) {
	for _, s := range p.Skills {
		if s.SkillID == id {
			return s, true
		}
	}
	return SkillClaim{}, false
}

// HasSkill reports whether the builder claimed id.
func (p BuilderProfile) HasSkill(id SkillID) bool {
	_, ok := p.Skill(id)
	return ok
}

// Validate checks the shape invariants a well-formed profile keeps:
// a bounded username and no duplicated skill ids.
func (p BuilderProfile) Validate() error {
	if n := len(p.Username); n < MinUsernameLen || n > MaxUsernameLen {
		return fmt.Errorf("%w: username length %d", ErrInvalidProfile, n)
	}
	seen := make(map[SkillID]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		if _, dup := seen[s.SkillID]; dup {
			return fmt.Errorf("%w: duplicate skill %d", ErrInvalidProfile, s.SkillID)
		}
		seen[s.SkillID] = struct{}{}
	}
	return nil
}

// Lookup is the result of a profile probe: Found(profile) or NotFound.
type Lookup struct {
	profile BuilderProfile
	found   bool
}

// Found wraps an existing profile.
func Found(p BuilderProfile) Lookup { return Lookup{profile: p, found: true} }

// NotFound is the unregistered branch. It is a valid result, not an error.
func NotFound() Lookup { return Lookup{} }

// Get returns the profile and whether it exists.
func (l Lookup) Get() (BuilderProfile, bool) { return l.profile, l.found }

// Exists reports whether the probe found a profile.
func (l Lookup) Exists() bool { return l.found }

// GlobalStats holds the ledger-wide counters. Each counter is its own read,
// so the three values may be mutually stale.
type GlobalStats struct {
	Builders      uint64
	Vouches       uint64
	SkillsClaimed uint64
}

// Package types contains the JSON views returned by the HTTP API.
package types

import (
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/skills"
)

// Entry represents a leaderboard entry.
type Entry struct {
	Rank             int    `json:"rank"`
	Wallet           string `json:"wallet"`
	Username         string `json:"username"`
	CredibilityScore uint64 `json:"credibility_score"`
	VouchesReceived  uint64 `json:"vouches_received"`
	SkillCount       int    `json:"skill_count"`
}

// Skill is a claimed skill with its display name.
type Skill struct {
	ID      uint8  `json:"id"`
	Name    string `json:"name"`
	Vouches uint64 `json:"vouches"`
	// VouchedByViewer is set when the connected wallet already vouched.
	VouchedByViewer bool `json:"vouched_by_viewer,omitempty"`
}

// Profile is the full view of one builder.
type Profile struct {
	Wallet           string  `json:"wallet"`
	Username         string  `json:"username"`
	Github           string  `json:"github,omitempty"`
	Twitter          string  `json:"twitter,omitempty"`
	RegisteredAt     int64   `json:"registered_at"`
	CredibilityScore uint64  `json:"credibility_score"`
	VouchesReceived  uint64  `json:"vouches_received"`
	VouchesGiven     uint64  `json:"vouches_given"`
	Skills           []Skill `json:"skills"`
}

// Stats is the view of the ledger-wide counters.
type Stats struct {
	Builders      uint64 `json:"builders"`
	Vouches       uint64 `json:"vouches"`
	SkillsClaimed uint64 `json:"skills_claimed"`
}

// NewEntry builds a leaderboard entry for p at the given 1-based rank.
func NewEntry(rank int, p model.BuilderProfile) Entry {
	return Entry{
		Rank:             rank,
		Wallet:           p.Wallet.Hex(),
		Username:         p.Username,
		CredibilityScore: p.CredibilityScore,
		VouchesReceived:  p.VouchesReceived,
		SkillCount:       len(p.Skills),
	}
}

// NewProfile builds the full profile view, resolving skill names.
func NewProfile(p model.BuilderProfile) Profile {
	out := Profile{
		Wallet:           p.Wallet.Hex(),
		Username:         p.Username,
		Github:           p.Github,
		Twitter:          p.Twitter,
		RegisteredAt:     p.RegisteredAt,
		CredibilityScore: p.CredibilityScore,
		VouchesReceived:  p.VouchesReceived,
		VouchesGiven:     p.VouchesGiven,
		Skills:           make([]Skill, 0, len(p.Skills)),
	}
	for _, s := range p.Skills {
		out.Skills = append(out.Skills, Skill{ID: uint8(s.SkillID), Name: skills.Name(s.SkillID), Vouches: s.Vouches})
	}
	return out
}

// MarkVouched flags the skills the viewer already vouched for.
func (p *Profile) MarkVouched(ids []model.SkillID) {
	for _, id := range ids {
		for i := range p.Skills {
			if p.Skills[i].ID == uint8(id) {
				p.Skills[i].VouchedByViewer = true
			}
		}
	}
}

// NewStats converts the model counters.
func NewStats(s model.GlobalStats) Stats {
	return Stats{Builders: s.Builders, Vouches: s.Vouches, SkillsClaimed: s.SkillsClaimed}
}

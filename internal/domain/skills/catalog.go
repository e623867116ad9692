// Package skills holds the static skill catalog known to the contract.
package skills

import "github.com/okian/vouchbase/internal/domain/model"

// Skill is one catalog entry.
type Skill struct {
	ID   model.SkillID `json:"id"`
	Name string        `json:"name"`
}

// Category groups skills for display.
type Category struct {
	Name   string
	Skills []model.SkillID
}

// MaxID is the highest skill id the contract accepts.
const MaxID model.SkillID = 25

var names = [...]string{
	1:  "Solidity",
	2:  "Vyper",
	3:  "Rust",
	4:  "Cairo",
	5:  "React",
	6:  "Next.js",
	7:  "TypeScript",
	8:  "Vue",
	9:  "Node.js",
	10: "Python",
	11: "Go",
	12: "Foundry",
	13: "Hardhat",
	14: "Wagmi",
	15: "Viem",
	16: "Ethers.js",
	17: "UI/UX",
	18: "Figma",
	19: "Security",
	20: "DevRel",
	21: "Technical Writing",
	22: "Base",
	23: "Ethereum",
	24: "DeFi",
	25: "NFT",
}

var categories = []Category{
	{Name: "Smart Contracts", Skills: []model.SkillID{1, 2, 3, 4}},
	{Name: "Frontend", Skills: []model.SkillID{5, 6, 7, 8}},
	{Name: "Backend", Skills: []model.SkillID{9, 10, 11}},
	{Name: "Web3 Tools", Skills: []model.SkillID{12, 13, 14, 15, 16}},
	{Name: "Design", Skills: []model.SkillID{17, 18}},
	{Name: "Other", Skills: []model.SkillID{19, 20, 21}},
	{Name: "Blockchain", Skills: []model.SkillID{22, 23, 24, 25}},
}

// Valid reports whether id is in the catalog.
func Valid(id model.SkillID) bool {
	return id >= 1 && id <= MaxID
}

// Name returns the display name, or "Unknown" for ids outside the catalog.
func Name(id model.SkillID) string {
	if !Valid(id) {
		return "Unknown"
	}
	return names[id]
}

// All returns every skill in id order.
func All() []Skill {
	out := make([]Skill, 0, MaxID)
	for id := model.SkillID(1); id <= MaxID; id++ {
		out = append(out, Skill{ID: id, Name: names[id]})
	}
	return out
}

// Categories returns a copy of the display grouping.
func Categories() []Category {
	out := make([]Category, len(categories))
	for i, c := range categories {
		out[i] = Category{Name: c.Name, Skills: append([]model.SkillID(nil), c.Skills...)}
	}
	return out
}

// AllValid reports whether every id is in the catalog and none repeats.
func AllValid(ids []model.SkillID) bool {
	seen := make(map[model.SkillID]struct{}, len(ids))
	for _, id := range ids {
		if !Valid(id) {
			return false
		}
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

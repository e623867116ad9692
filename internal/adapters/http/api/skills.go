package api

import (
	"net/http"

	"github.com/okian/vouchbase/internal/domain/skills"
)

// SkillsHandler serves the static skill catalog.
type SkillsHandler struct {
	body skillsResponse
}

type categoryResponse struct {
	Name   string `json:"name"`
	Skills []int  `json:"skills"`
}

type skillsResponse struct {
	Skills     []skills.Skill     `json:"skills"`
	Categories []categoryResponse `json:"categories"`
}

// NewSkillsHandler creates a new skills handler.
func NewSkillsHandler() *SkillsHandler {
	body := skillsResponse{Skills: skills.All()}
	for _, c := range skills.Categories() {
		ids := make([]int, len(c.Skills))
		for i, id := range c.Skills {
			ids[i] = int(id)
		}
		body.Categories = append(body.Categories, categoryResponse{Name: c.Name, Skills: ids})
	}
	return &SkillsHandler{body: body}
}

// HandleGetSkills handles GET /skills.
func (h *SkillsHandler) HandleGetSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.body)
}

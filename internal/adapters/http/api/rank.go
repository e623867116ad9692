// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/vouchbase/internal/adapters/repository"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/types"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, addr model.Address) (repository.Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

type rankResponse struct {
	Rank    int           `json:"rank"`
	Profile types.Profile `json:"profile"`
}

// HandleGetRank handles GET /rank/{address} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	addr, err := parseAddress(r.URL.Path, "/rank/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	entry, err := h.deps.Rank(r.Context(), addr)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rankResponse{Rank: entry.Rank, Profile: types.NewProfile(entry.Profile)})
}

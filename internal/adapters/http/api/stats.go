// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/types"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
	GlobalStats(ctx context.Context) (model.GlobalStats, bool)
}

// StatsHandler handles stats requests.
type StatsHandler struct {
	statsProvider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(statsProvider StatsProvider) *StatsHandler {
	return &StatsHandler{statsProvider: statsProvider}
}

type statsResponse struct {
	// Ledger is nil until the counters were read once.
	Ledger  *types.Stats           `json:"ledger"`
	Service map[string]interface{} `json:"service"`
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out := statsResponse{Service: h.statsProvider.GetStats()}
	if st, ok := h.statsProvider.GlobalStats(r.Context()); ok {
		v := types.NewStats(st)
		out.Ledger = &v
	}
	writeJSON(w, http.StatusOK, out)
}

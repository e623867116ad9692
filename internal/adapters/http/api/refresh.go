package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/vouchbase/internal/domain/model"
)

// RefreshDependencies defines the interface for background refresh requests.
type RefreshDependencies interface {
	RequestRefresh(ctx context.Context, j model.RefreshJob) (bool, error)
}

// RefreshHandler queues cache refreshes.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type refreshRequest struct {
	Kind    string `json:"kind"`
	Address string `json:"address"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

func (req refreshRequest) job() (model.RefreshJob, error) {
	kind, ok := model.ParseRefreshKind(req.Kind)
	if !ok {
		return model.RefreshJob{}, fmt.Errorf("%w: unknown refresh kind %q", ErrBadRequest, req.Kind)
	}
	j := model.RefreshJob{Kind: kind}
	if kind == model.RefreshProfile {
		addr, err := model.ParseAddress(req.Address)
		if err != nil {
			return model.RefreshJob{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
		}
		j.Address = addr
	}
	return j, nil
}

// HandleRefresh handles POST /refresh. A job already queued or running is
// acknowledged as a duplicate.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req refreshRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	j, err := req.job()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	queued, err := h.deps.RequestRefresh(r.Context(), j)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if !queued {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

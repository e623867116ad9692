package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/vouchbase/internal/domain/failure"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/types"
)

// BuilderDependencies defines the interface for profile reads.
type BuilderDependencies interface {
	Profile(ctx context.Context, addr model.Address) (model.Lookup, error)
	FindBuilder(ctx context.Context, username string) (model.Lookup, error)
	VouchedSkills(ctx context.Context, builder model.Address, ids []model.SkillID) ([]model.SkillID, error)
}

// BuilderHandler serves single profiles.
type BuilderHandler struct {
	deps BuilderDependencies
}

// NewBuilderHandler creates a new builder handler.
func NewBuilderHandler(deps BuilderDependencies) *BuilderHandler {
	return &BuilderHandler{deps: deps}
}

// HandleGetBuilder handles GET /builders/{address}. An unregistered wallet
// is a 404 with the not_found code.
func (h *BuilderHandler) HandleGetBuilder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	addr, err := parseAddress(r.URL.Path, "/builders/")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	l, err := h.deps.Profile(r.Context(), addr)
	h.writeProfile(w, r, l, err)
}

// HandleFindBuilder handles GET /builders?username=.
func (h *BuilderHandler) HandleFindBuilder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: username is required", ErrBadRequest))
		return
	}
	l, err := h.deps.FindBuilder(r.Context(), username)
	h.writeProfile(w, r, l, err)
}

// writeProfile renders a lookup. The viewer's vouch flags are left out
// when they cannot be read.
func (h *BuilderHandler) writeProfile(w http.ResponseWriter, r *http.Request, l model.Lookup, err error) {
	if err != nil {
		writeFailure(w, err)
		return
	}
	p, ok := l.Get()
	if !ok {
		writeFailure(w, failure.Missing(nil))
		return
	}

	view := types.NewProfile(p)
	ids := make([]model.SkillID, len(p.Skills))
	for i, s := range p.Skills {
		ids[i] = s.SkillID
	}
	if vouched, err := h.deps.VouchedSkills(r.Context(), p.Wallet, ids); err == nil {
		view.MarkVouched(vouched)
	}
	writeJSON(w, http.StatusOK, view)
}

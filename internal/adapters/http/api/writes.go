package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/skills"
)

// WriteDependencies defines the interface for orchestrated writes.
type WriteDependencies interface {
	Register(ctx context.Context, req service.RegisterRequest) (service.Result, error)
	Vouch(ctx context.Context, builder model.Address, skill model.SkillID) (service.Result, error)
	AddSkill(ctx context.Context, skill model.SkillID) (service.Result, error)
}

// WriteHandler serves register, vouch and add-skill. Each request blocks
// until the write settles.
type WriteHandler struct {
	deps WriteDependencies
}

// NewWriteHandler creates a new write handler.
func NewWriteHandler(deps WriteDependencies) *WriteHandler {
	return &WriteHandler{deps: deps}
}

type operationResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	State   string `json:"state"`
	Target  string `json:"target"`
	SkillID uint8  `json:"skill_id,omitempty"`
}

func newOperationResponse(op model.PendingOperation) operationResponse {
	return operationResponse{
		ID:      op.ID.String(),
		Kind:    op.Kind.String(),
		State:   op.State.String(),
		Target:  op.Target.Hex(),
		SkillID: uint8(op.SkillID),
	}
}

type writeResponse struct {
	Operation operationResponse `json:"operation"`
	FeeWei    string            `json:"fee_wei"`
	TxHash    string            `json:"tx_hash"`
	Block     uint64            `json:"block"`
	Stale     bool              `json:"stale"`
}

func newWriteResponse(res service.Result) writeResponse {
	out := writeResponse{
		Operation: newOperationResponse(res.Operation),
		TxHash:    res.Receipt.Hash.Hex(),
		Block:     res.Receipt.BlockNumber,
		Stale:     res.Stale,
	}
	if res.Fee != nil {
		out.FeeWei = res.Fee.String()
	}
	return out
}

// Skill ids travel as plain ints: a []uint8 would be base64 in JSON.
type registerRequest struct {
	Username string `json:"username"`
	Github   string `json:"github"`
	Twitter  string `json:"twitter"`
	Skills   []int  `json:"skills"`
}

func (req registerRequest) skillIDs() ([]model.SkillID, error) {
	if strings.TrimSpace(req.Username) == "" {
		return nil, fmt.Errorf("%w: missing username", ErrBadRequest)
	}
	if len(req.Skills) == 0 {
		return nil, fmt.Errorf("%w: at least one skill is required", ErrBadRequest)
	}
	ids := make([]model.SkillID, len(req.Skills))
	for i, id := range req.Skills {
		if id < 1 || id > int(skills.MaxID) {
			return nil, fmt.Errorf("%w: unknown skill %d", ErrBadRequest, id)
		}
		ids[i] = model.SkillID(id)
	}
	if !skills.AllValid(ids) {
		return nil, fmt.Errorf("%w: skills must be distinct", ErrBadRequest)
	}
	return ids, nil
}

// HandleRegister handles POST /register.
func (h *WriteHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	ids, err := req.skillIDs()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	res, err := h.deps.Register(r.Context(), service.RegisterRequest{
		Username: strings.TrimSpace(req.Username),
		Github:   req.Github,
		Twitter:  req.Twitter,
		Skills:   ids,
	})
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWriteResponse(res))
}

type vouchRequest struct {
	Builder string        `json:"builder"`
	Skill   model.SkillID `json:"skill"`
}

// HandleVouch handles POST /vouch.
func (h *WriteHandler) HandleVouch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req vouchRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	builder, err := model.ParseAddress(req.Builder)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !skills.Valid(req.Skill) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown skill %d", ErrBadRequest, req.Skill))
		return
	}
	res, err := h.deps.Vouch(r.Context(), builder, req.Skill)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWriteResponse(res))
}

type addSkillRequest struct {
	Skill model.SkillID `json:"skill"`
}

// HandleAddSkill handles POST /skills/claim.
func (h *WriteHandler) HandleAddSkill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req addSkillRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !skills.Valid(req.Skill) {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: unknown skill %d", ErrBadRequest, req.Skill))
		return
	}
	res, err := h.deps.AddSkill(r.Context(), req.Skill)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newWriteResponse(res))
}

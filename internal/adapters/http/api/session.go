package api

import (
	"context"
	"net/http"
	"time"

	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/internal/domain/types"
)

// SessionDependencies defines the interface for the wallet session.
type SessionDependencies interface {
	SessionView() service.SessionView
	Connect(ctx context.Context, wallet model.Address, connected bool, chainID uint64) service.SessionView
	DismissAdvisory()
}

// SessionHandler serves the wallet session and its advisory.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type advisoryResponse struct {
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

type sessionResponse struct {
	Address    string             `json:"address,omitempty"`
	Connected  bool               `json:"connected"`
	ChainID    uint64             `json:"chain_id"`
	Registered bool               `json:"registered"`
	Profile    *types.Profile     `json:"profile,omitempty"`
	Advisory   *advisoryResponse  `json:"advisory,omitempty"`
	Busy       bool               `json:"busy"`
	Pending    *operationResponse `json:"pending,omitempty"`
}

func newSessionResponse(v service.SessionView) sessionResponse {
	out := sessionResponse{
		Connected:  v.Connected,
		ChainID:    v.ChainID,
		Registered: v.Registered,
		Busy:       v.Busy,
	}
	if v.Wallet != (model.Address{}) {
		out.Address = v.Wallet.Hex()
	}
	if v.Profile != nil {
		p := types.NewProfile(*v.Profile)
		out.Profile = &p
	}
	if v.Advisory != nil {
		out.Advisory = &advisoryResponse{Code: v.Advisory.Kind.String(), Message: v.Advisory.Message, RaisedAt: v.Advisory.RaisedAt}
	}
	if v.Pending != nil {
		op := newOperationResponse(*v.Pending)
		out.Pending = &op
	}
	return out
}

type connectRequest struct {
	Address   string `json:"address"`
	Connected bool   `json:"connected"`
	ChainID   uint64 `json:"chain_id"`
}

// HandleSession handles GET /session and POST /session. A POST reports a
// wallet connection change.
func (h *SessionHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newSessionResponse(h.deps.SessionView()))
	case http.MethodPost:
		var req connectRequest
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		var wallet model.Address
		if req.Connected || req.Address != "" {
			addr, err := model.ParseAddress(req.Address)
			if err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", err)
				return
			}
			wallet = addr
		}
		writeJSON(w, http.StatusOK, newSessionResponse(h.deps.Connect(r.Context(), wallet, req.Connected, req.ChainID)))
	default:
		http.NotFound(w, r)
	}
}

// HandleDismiss handles DELETE /session/advisory.
func (h *SessionHandler) HandleDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.NotFound(w, r)
		return
	}
	h.deps.DismissAdvisory()
	w.WriteHeader(http.StatusNoContent)
}

// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LeaderboardDependencies
	RankDependencies
	BuilderDependencies
	SessionDependencies
	WriteDependencies
	RefreshDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	builderHandler     *BuilderHandler
	skillsHandler      *SkillsHandler
	sessionHandler     *SessionHandler
	writeHandler       *WriteHandler
	refreshHandler     *RefreshHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		builderHandler:     NewBuilderHandler(deps),
		skillsHandler:      NewSkillsHandler(),
		sessionHandler:     NewSessionHandler(deps),
		writeHandler:       NewWriteHandler(deps),
		refreshHandler:     NewRefreshHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/builders", MetricsMiddleware(s.builderHandler.HandleFindBuilder, "builders_find"))
	mux.HandleFunc("/builders/", MetricsMiddleware(s.builderHandler.HandleGetBuilder, "builders"))
	mux.HandleFunc("/skills", MetricsMiddleware(s.skillsHandler.HandleGetSkills, "skills"))
	mux.HandleFunc("/skills/claim", MetricsMiddleware(s.writeHandler.HandleAddSkill, "skills_claim"))
	mux.HandleFunc("/session", MetricsMiddleware(s.sessionHandler.HandleSession, "session"))
	mux.HandleFunc("/session/advisory", MetricsMiddleware(s.sessionHandler.HandleDismiss, "session_advisory"))
	mux.HandleFunc("/register", MetricsMiddleware(s.writeHandler.HandleRegister, "register"))
	mux.HandleFunc("/vouch", MetricsMiddleware(s.writeHandler.HandleVouch, "vouch"))
	mux.HandleFunc("/refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "refresh"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// parseAddress extracts the single path segment after prefix.
func parseAddress(path, prefix string) (model.Address, error) {
	return model.ParseAddress(trimSegment(path, prefix))
}

var _ Dependencies = (*service.Service)(nil)

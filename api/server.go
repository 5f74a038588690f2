package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"

	"github.com/wricardo/mcp-training/roadtiles/game/config"
	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
	"github.com/wricardo/mcp-training/roadtiles/game/session"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
	"github.com/wricardo/mcp-training/roadtiles/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
	logger  *log.Logger
}

// NewServer creates a new API server. hub and logger may be nil.
func NewServer(gameService service.GameService, hub *websocket.Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods("DELETE")

	// Game operations
	api.HandleFunc("/sessions/{id}/state", s.handleGetGameState).Methods("GET")
	api.HandleFunc("/sessions/{id}/slide", s.handleSlide).Methods("POST")
	api.HandleFunc("/sessions/{id}/bulk-slide", s.handleBulkSlide).Methods("POST")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{id}/advance", s.handleAdvance).Methods("POST")
	api.HandleFunc("/sessions/{id}/retry", s.control(s.service.Retry)).Methods("POST")
	api.HandleFunc("/sessions/{id}/reverse", s.control(s.service.Reverse)).Methods("POST")
	api.HandleFunc("/sessions/{id}/pause", s.control(s.service.Pause)).Methods("POST")
	api.HandleFunc("/sessions/{id}/resume", s.control(s.service.Resume)).Methods("POST")
	api.HandleFunc("/sessions/{id}/speed", s.handleSpeed).Methods("POST")
	api.HandleFunc("/sessions/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/sessions/{id}/history", s.handleGetHistory).Methods("GET")

	// Presets
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs", s.handleCreateConfig).Methods("POST")
	api.HandleFunc("/configs/{name}", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleUpdateConfig).Methods("PUT")
	api.HandleFunc("/configs/{name}", s.handleDeleteConfig).Methods("DELETE")

	// Results
	api.HandleFunc("/results/{config}", s.handleListResults).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RunClock advances every running session each interval and pushes the
// sessions whose car moved or crashed to their WebSocket watchers. It
// returns when ctx is done.
func (s *Server) RunClock(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			changed, err := s.service.TickAll(ctx, now.Sub(last))
			last = now
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					s.logger.Warn("clock tick failed", "error", err)
				}
				continue
			}
			for _, id := range changed {
				state, err := s.service.GetGameState(ctx, id)
				if err != nil {
					continue
				}
				s.broadcast(id, state)
			}
		}
	}
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message, "code": status})
}

// respondServiceError maps service errors to HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	respondError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, config.ErrConfigNotFound),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, config.ErrReadOnly):
		return http.StatusForbidden
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, session.ErrInvalidSessionID),
		errors.Is(err, config.ErrInvalidConfig),
		errors.Is(err, engine.ErrInvalidPreset):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) broadcast(sessionID string, state *engine.GameState) {
	if s.hub != nil && state != nil {
		s.hub.BroadcastToSession(sessionID, state)
	}
}

func (s *Server) broadcastEvents(sessionID string, events []service.GameEvent) {
	if s.hub == nil {
		return
	}
	for _, ev := range events {
		if ev.Type == "victory" || ev.Type == "crash" {
			s.hub.BroadcastEvent(sessionID, ev.Type, ev)
		}
	}
}

// decodeBody decodes an optional JSON body into v
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfigID string `json:"config_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	info, err := s.service.CreateSession(r.Context(), req.ConfigID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort") // "created", "accessed" (default)
	order := query.Get("order") // "asc", "desc" (default)
	configID := query.Get("config")

	if sortBy != "created" {
		sortBy = "accessed"
	}
	if order != "asc" {
		order = "desc"
	}

	if configID != "" {
		filtered := sessions[:0]
		for _, sess := range sessions {
			if sess.ConfigID == configID {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}
	total := len(sessions)

	sort.Slice(sessions, func(i, j int) bool {
		ti, tj := sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.service.DeleteSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s deleted", sessionID),
	})
}

// Game Operation Handlers

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetGameState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleSlide(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Row *int `json:"row"`
		Col *int `json:"col"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Row == nil || req.Col == nil {
		respondError(w, http.StatusBadRequest, "row and col are required")
		return
	}

	result, err := s.service.Slide(r.Context(), sessionID, *req.Row, *req.Col)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState)
	s.broadcastEvents(sessionID, result.Events)
	s.logger.Debug("slide", "session", sessionID, "from", result.From, "to", result.To, "ok", result.Success)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkSlide(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Slides []engine.Position `json:"slides"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.service.BulkSlide(r.Context(), sessionID, req.Slides)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, result.GameState)
	s.broadcastEvents(sessionID, result.Events)
	s.logger.Debug("bulk slide", "session", sessionID,
		"executed", result.SlidesExecuted, "requested", result.RequestedSlides, "stop", result.StopReasonCode)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		DtMs int64 `json:"dt_ms"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if maxMs := engine.MaxTick.Milliseconds(); req.DtMs < 0 || req.DtMs > maxMs {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("dt_ms must be between 0 and %d", maxMs))
		return
	}

	result, err := s.service.Tick(r.Context(), sessionID, time.Duration(req.DtMs)*time.Millisecond)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.respondStep(w, sessionID, result)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	result, err := s.service.Advance(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.respondStep(w, sessionID, result)
}

func (s *Server) respondStep(w http.ResponseWriter, sessionID string, result *service.StepResult) {
	if len(result.Events) > 0 {
		s.broadcast(sessionID, result.GameState)
		s.broadcastEvents(sessionID, result.Events)
	}
	if result.Crash != engine.CrashNone {
		s.logger.Info("car crashed", "session", sessionID, "reason", result.Crash, "car", result.Car)
	}
	respondJSON(w, http.StatusOK, result)
}

// control wraps pause, resume, retry and reverse
func (s *Server) control(fn func(context.Context, string) (*service.ControlResult, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := mux.Vars(r)["id"]

		result, err := fn(r.Context(), sessionID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if result.Success {
			s.broadcast(sessionID, result.GameState)
		}
		respondJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Level int   `json:"level"`
		Fast  *bool `json:"fast,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := s.service.SetSpeed(r.Context(), sessionID, req.Level, req.Fast)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	state, err := s.service.Reset(r.Context(), sessionID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	s.broadcast(sessionID, state)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Game reset successfully",
		"state":   state,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	opts := service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}

	query := r.URL.Query()
	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		opts.Limit = l
	}
	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetMoveHistory(r.Context(), mux.Vars(r)["id"], opts)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// Preset Handlers

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.service.ListConfigs(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, configs)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	preset, err := s.service.LoadConfig(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preset)
}

// decodePreset reads a preset body. A body with only a name and a grid gets
// its empty cell and car start derived from the grid.
func decodePreset(r *http.Request) (*engine.Preset, error) {
	var p engine.Preset
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("invalid request body: %v", err)
	}
	if p.Car.Entering == 0 && len(p.Grid) > 0 {
		derived, err := engine.PresetFromGrid(p.Name, p.Grid)
		if err != nil {
			return nil, err
		}
		derived.Description = p.Description
		return derived, nil
	}
	return &p, nil
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	s.saveConfig(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	s.saveConfig(w, r, mux.Vars(r)["name"], http.StatusOK)
}

func (s *Server) saveConfig(w http.ResponseWriter, r *http.Request, id string, status int) {
	preset, err := decodePreset(r)
	if err != nil {
		respondServiceError(w, fmt.Errorf("%v: %w", err, service.ErrInvalidArgument))
		return
	}

	id, err = s.service.SaveConfig(r.Context(), id, preset)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, status, map[string]interface{}{
		"message":   "Preset saved successfully",
		"config_id": id,
	})
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["name"]
	if err := s.service.DeleteConfig(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Preset %s deleted", id),
	})
}

// Result Handlers

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	results, err := s.service.ListResults(r.Context(), mux.Vars(r)["config"], limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "websocket not enabled")
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session parameter required")
		return
	}

	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

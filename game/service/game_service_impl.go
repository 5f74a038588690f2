package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
)

// ErrInvalidArgument is returned for requests the engine would never accept,
// such as a speed outside 1..10 or an empty batch of slides.
var ErrInvalidArgument = errors.New("invalid argument")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	results  ResultStore
	logger   *log.Logger
	mu       sync.RWMutex
}

// Option configures the game service
type Option func(*gameServiceImpl)

// WithResultStore records every won run in rs
func WithResultStore(rs ResultStore) Option {
	return func(s *gameServiceImpl) { s.results = rs }
}

// WithLogger sets the logger used for persistence and result warnings
func WithLogger(l *log.Logger) Option {
	return func(s *gameServiceImpl) { s.logger = l }
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession creates a new game session from a preset ID. An empty ID
// selects the default preset.
func (s *gameServiceImpl) CreateSession(ctx context.Context, configID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var preset *engine.Preset
	if configID == "" {
		configID = s.configs.DefaultID()
		preset = s.configs.GetDefault()
	} else {
		var err error
		preset, err = s.configs.LoadConfig(ctx, configID)
		if err != nil {
			return nil, s.configError(ctx, configID, err)
		}
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("session created", "session", sess.ID, "config", configID)
	return s.sessionInfo(sess), nil
}

// configError adds the available preset IDs to a failed lookup
func (s *gameServiceImpl) configError(ctx context.Context, configID string, err error) error {
	configs, listErr := s.configs.ListConfigs(ctx)
	if listErr != nil || len(configs) == 0 {
		return fmt.Errorf("config '%s': %w", configID, err)
	}
	ids := make([]string, 0, len(configs))
	for _, c := range configs {
		ids = append(ids, c.ConfigID)
	}
	return fmt.Errorf("config '%s' (available: %s): %w", configID, strings.Join(ids, ", "), err)
}

func (s *gameServiceImpl) sessionInfo(sess *Session) *SessionInfo {
	name := ""
	if sess.Config != nil {
		name = sess.Config.Name
	}
	return &SessionInfo{
		ID:             sess.ID,
		ConfigID:       sess.ConfigID,
		ConfigName:     name,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		GameState:      sess.Engine.GetState().Clone(),
		GameConfig:     sess.Config,
	}
}

// getSession looks up a session and marks it accessed
func (s *gameServiceImpl) getSession(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session '%s': %w", sessionID, err)
	}
	return sess, nil
}

// commit persists a session after a mutation and records a win once
func (s *gameServiceImpl) commit(ctx context.Context, sess *Session) {
	s.recordWin(ctx, sess)
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		s.logger.Warn("failed to touch session", "session", sess.ID, "error", err)
	}
}

func (s *gameServiceImpl) recordWin(ctx context.Context, sess *Session) {
	state := sess.Engine.GetState()
	if state.Status != engine.StatusWon || sess.ResultRecorded {
		return
	}
	sess.ResultRecorded = true
	if s.results == nil {
		return
	}

	r, err := s.results.SaveResult(ctx, store.Result{
		SessionID:    sess.ID,
		ConfigID:     sess.ConfigID,
		ConfigName:   state.ConfigName,
		TilesEntered: state.TilesEntered,
		ElapsedMs:    state.Elapsed.Milliseconds(),
		TotalMoves:   state.TotalMoves,
	})
	if err != nil {
		sess.ResultRecorded = false
		s.logger.Warn("failed to record result", "session", sess.ID, "error", err)
		return
	}
	s.logger.Info("run recorded", "session", sess.ID, "config", sess.ConfigID, "run", r.RunID, "elapsed_ms", r.ElapsedMs)
}

// GetSession retrieves session information. It touches the session's
// access time, so it takes the write lock.
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)
	return s.sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("session '%s': %w", sessionID, err)
	}
	return nil
}

// Slide moves one tile into the empty cell
func (s *gameServiceImpl) Slide(ctx context.Context, sessionID string, row, col int) (*SlideResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	eng := sess.Engine
	before := eng.GetState()
	emptyBefore := before.Board.Empty
	carBefore := before.Car
	historyBefore := len(before.MoveHistory)
	wonBefore := before.Status == engine.StatusWon

	success := eng.Slide(row, col)
	state := eng.GetState()

	result := &SlideResult{
		Success:  success,
		Message:  state.Message,
		From:     engine.Position{Row: row, Col: col},
		To:       engine.Position{Row: row, Col: col},
		Events:   eventsSince(state, historyBefore, wonBefore),
		Slidable: eng.GetPossibleSlides(),
	}
	if success {
		result.To = emptyBefore
		result.CarMoved = state.Car != carBefore
	}

	s.commit(ctx, sess)
	result.GameState = state.Clone()
	return result, nil
}

// BulkSlide applies slides in order, skipping invalid ones
func (s *gameServiceImpl) BulkSlide(ctx context.Context, sessionID string, slides []engine.Position) (*BulkSlideResult, error) {
	if len(slides) == 0 {
		return nil, fmt.Errorf("no slides given: %w", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	eng := sess.Engine
	before := eng.GetState()
	historyBefore := len(before.MoveHistory)
	wonBefore := before.Status == engine.StatusWon

	result := &BulkSlideResult{
		RequestedSlides: len(slides),
		StartEmpty:      before.Board.Empty,
	}

	// Limit slides to prevent abuse
	if len(slides) > engine.MaxBulkSlides {
		result.Truncated = true
		result.Limit = engine.MaxBulkSlides
		slides = slides[:engine.MaxBulkSlides]
	}

	result.Results = eng.BulkSlide(slides)
	for i, ok := range result.Results {
		if ok {
			result.SlidesExecuted++
		} else {
			result.FailedSlides = append(result.FailedSlides, i+1)
		}
	}

	state := eng.GetState()
	result.Success = len(result.FailedSlides) == 0 && !wonBefore
	if state.Status == engine.StatusWon && !wonBefore {
		result.StopReasonCode = "victory"
	}
	result.EndEmpty = state.Board.Empty
	result.Events = eventsSince(state, historyBefore, wonBefore)
	result.Slidable = eng.GetPossibleSlides()

	s.commit(ctx, sess)
	result.GameState = state.Clone()
	return result, nil
}

// Tick advances the session clock by dt
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, dt time.Duration) (*StepResult, error) {
	if dt < 0 || dt > engine.MaxTick {
		return nil, fmt.Errorf("tick %s outside 0..%s: %w", dt, engine.MaxTick, ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.step(ctx, sess, func(e *engine.GameEngine) (engine.Outcome, bool) {
		return e.Tick(dt)
	}), nil
}

// Advance moves the car to the next tile without waiting for the clock
func (s *gameServiceImpl) Advance(ctx context.Context, sessionID string) (*StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return s.step(ctx, sess, func(e *engine.GameEngine) (engine.Outcome, bool) {
		if e.GetState().Status != engine.StatusRunning {
			return engine.Outcome{}, false
		}
		return e.Step(), true
	}), nil
}

func (s *gameServiceImpl) step(ctx context.Context, sess *Session, fn func(*engine.GameEngine) (engine.Outcome, bool)) *StepResult {
	eng := sess.Engine
	before := eng.GetState()
	historyBefore := len(before.MoveHistory)
	wonBefore := before.Status == engine.StatusWon

	out, fired := fn(eng)
	state := eng.GetState()

	result := &StepResult{
		Advanced: fired && out.Ok(),
		Car:      state.Car,
		Progress: state.Progress,
		Won:      state.Status == engine.StatusWon,
		Message:  state.Message,
		Events:   eventsSince(state, historyBefore, wonBefore),
	}
	if fired && !out.Ok() {
		result.Crash = out.Crash
		result.CrashDetail = out.Crash.Describe()
	}

	if fired {
		s.commit(ctx, sess)
	}
	result.GameState = state.Clone()
	return result
}

// TickAll advances the clock of every running session and returns the IDs
// of sessions whose car reached a new tile or crashed.
func (s *gameServiceImpl) TickAll(ctx context.Context, dt time.Duration) ([]string, error) {
	if dt <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changed []string
	for _, sess := range s.sessions.List() {
		if err := ctx.Err(); err != nil {
			return changed, err
		}
		if sess.Engine.GetState().Status != engine.StatusRunning {
			continue
		}
		if _, fired := sess.Engine.Tick(dt); !fired {
			continue
		}

		s.recordWin(ctx, sess)
		if err := s.sessions.Save(sess.ID); err != nil {
			s.logger.Warn("failed to persist session after tick", "session", sess.ID, "error", err)
		}
		changed = append(changed, sess.ID)
	}
	return changed, nil
}

// Retry restarts a crashed car where it stopped
func (s *gameServiceImpl) Retry(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(ctx, sessionID, (*engine.GameEngine).Retry)
}

// Reverse restarts a crashed car heading back along its tile
func (s *gameServiceImpl) Reverse(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(ctx, sessionID, (*engine.GameEngine).Reverse)
}

// Pause stops the session clock
func (s *gameServiceImpl) Pause(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(ctx, sessionID, (*engine.GameEngine).Pause)
}

// Resume restarts the session clock
func (s *gameServiceImpl) Resume(ctx context.Context, sessionID string) (*ControlResult, error) {
	return s.control(ctx, sessionID, (*engine.GameEngine).Resume)
}

func (s *gameServiceImpl) control(ctx context.Context, sessionID string, fn func(*engine.GameEngine) bool) (*ControlResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	success := fn(sess.Engine)
	state := sess.Engine.GetState()
	result := &ControlResult{
		Success: success,
		Status:  state.Status,
		Message: state.Message,
	}
	if !success {
		result.Message = fmt.Sprintf("Not allowed while %s", state.Status)
	} else {
		s.commit(ctx, sess)
	}
	result.GameState = state.Clone()
	return result, nil
}

// SetSpeed changes the speed level and, when fast is non-nil, fast mode
func (s *gameServiceImpl) SetSpeed(ctx context.Context, sessionID string, level int, fast *bool) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	if err := sess.Engine.SetSpeed(level); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidArgument)
	}
	if fast != nil {
		sess.Engine.SetFast(*fast)
	}

	s.commit(ctx, sess)
	return sess.Engine.GetState().Clone(), nil
}

// Reset resets a game session to initial state
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	state := sess.Engine.Reset()
	sess.ResultRecorded = false
	s.commit(ctx, sess)
	return state.Clone(), nil
}

// GetGameState retrieves the current game state
func (s *gameServiceImpl) GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	s.sessions.UpdateLastAccessed(sess.ID)
	return sess.Engine.GetState().Clone(), nil
}

// GetMoveHistory returns paginated move history
func (s *gameServiceImpl) GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetMoveHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	moves := []engine.MoveHistoryEntry{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				moves = append(moves, history[i])
			}
		} else {
			moves = append(moves, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Moves:       moves,
		TotalMoves:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available presets
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs(ctx)
}

// LoadConfig loads a specific preset
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configID string) (*engine.Preset, error) {
	p, err := s.configs.LoadConfig(ctx, configID)
	if err != nil {
		return nil, s.configError(ctx, configID, err)
	}
	return p, nil
}

// SaveConfig validates and stores a user preset, returning its ID
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configID string, preset *engine.Preset) (string, error) {
	if preset == nil {
		return "", fmt.Errorf("preset is required: %w", ErrInvalidArgument)
	}
	id, err := s.configs.SaveConfig(ctx, configID, preset)
	if err != nil {
		return "", err
	}
	s.logger.Info("preset saved", "config", id, "name", preset.Name)
	return id, nil
}

// DeleteConfig removes a user preset
func (s *gameServiceImpl) DeleteConfig(ctx context.Context, configID string) error {
	if err := s.configs.DeleteConfig(ctx, configID); err != nil {
		return err
	}
	s.logger.Info("preset deleted", "config", configID)
	return nil
}

// ListResults returns the fastest recorded runs for a preset
func (s *gameServiceImpl) ListResults(ctx context.Context, configID string, limit int) ([]store.Result, error) {
	if s.results == nil {
		return []store.Result{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.results.TopResults(ctx, configID, limit)
}

// eventsSince turns the history entries added after index from into events
func eventsSince(state *engine.GameState, from int, wonBefore bool) []GameEvent {
	var events []GameEvent
	if from < 0 || from > len(state.MoveHistory) {
		from = len(state.MoveHistory)
	}
	for _, m := range state.MoveHistory[from:] {
		events = append(events, GameEvent{
			Type:      m.Action,
			Message:   describeMove(m),
			Timestamp: time.Unix(m.Timestamp, 0),
			Position:  m.ToPosition,
		})
	}
	if state.Status == engine.StatusWon && !wonBefore {
		events = append(events, GameEvent{
			Type:      "victory",
			Message:   state.Message,
			Timestamp: time.Now(),
			Position:  state.Car.Position(),
		})
	}
	return events
}

func describeMove(m engine.MoveHistoryEntry) string {
	switch m.Action {
	case "slide":
		if !m.Success {
			return fmt.Sprintf("Tile at (%d,%d) can't slide", m.FromPosition.Row, m.FromPosition.Col)
		}
		return fmt.Sprintf("Slid tile (%d,%d) to (%d,%d)", m.FromPosition.Row, m.FromPosition.Col, m.ToPosition.Row, m.ToPosition.Col)
	case "advance":
		return fmt.Sprintf("Car entered (%d,%d) from the %s", m.ToPosition.Row, m.ToPosition.Col, m.Entering)
	case "crash":
		return fmt.Sprintf("Car crashed leaving (%d,%d)", m.FromPosition.Row, m.FromPosition.Col)
	default:
		return fmt.Sprintf("%s at (%d,%d)", m.Action, m.ToPosition.Row, m.ToPosition.Col)
	}
}

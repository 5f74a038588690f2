package service

import (
	"time"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string            `json:"id"`
	ConfigID       string            `json:"config_id"`
	ConfigName     string            `json:"config_name"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	GameState      *engine.GameState `json:"game_state"`
	GameConfig     *engine.Preset    `json:"game_config"`
}

// SlideResult contains the result of a single slide
type SlideResult struct {
	Success   bool              `json:"success"`
	GameState *engine.GameState `json:"game_state"`
	Message   string            `json:"message"`
	From      engine.Position   `json:"from"`
	To        engine.Position   `json:"to"`
	CarMoved  bool              `json:"car_moved,omitempty"`
	Events    []GameEvent       `json:"events,omitempty"`
	Slidable  []engine.Position `json:"slidable"`
}

// BulkSlideResult contains the result of several slides applied in order.
// Invalid slides are skipped; the batch stops early only on victory.
type BulkSlideResult struct {
	SlidesExecuted  int               `json:"slides_executed"`
	RequestedSlides int               `json:"requested_slides"`
	Success         bool              `json:"success"`
	Results         []bool            `json:"results"`
	FailedSlides    []int             `json:"failed_slides,omitempty"` // 1-based
	GameState       *engine.GameState `json:"game_state"`
	Events          []GameEvent       `json:"events"`
	StopReasonCode  string            `json:"stop_reason_code,omitempty"` // victory
	Truncated       bool              `json:"truncated,omitempty"`
	Limit           int               `json:"limit,omitempty"`
	StartEmpty      engine.Position   `json:"start_empty"`
	EndEmpty        engine.Position   `json:"end_empty"`
	Slidable        []engine.Position `json:"slidable"`
}

// StepResult reports what happened to the car during a tick or a forced advance
type StepResult struct {
	Advanced    bool               `json:"advanced"`
	Crash       engine.CrashReason `json:"crash,omitempty"`
	CrashDetail string             `json:"crash_detail,omitempty"`
	Car         engine.Car         `json:"car"`
	Progress    float64            `json:"progress"`
	Won         bool               `json:"won"`
	Message     string             `json:"message"`
	GameState   *engine.GameState  `json:"game_state"`
	Events      []GameEvent        `json:"events,omitempty"`
}

// ControlResult is returned by pause, resume, retry and reverse
type ControlResult struct {
	Success   bool              `json:"success"`
	Status    engine.Status     `json:"status"`
	Message   string            `json:"message"`
	GameState *engine.GameState `json:"game_state"`
}

// GameEvent represents an event that occurred during gameplay
type GameEvent struct {
	Type      string          `json:"type"` // a history action, or "victory" / "reset"
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
	Position  engine.Position `json:"position"`
}

// HistoryOptions configures move history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated move history
type HistoryResponse struct {
	Moves       []engine.MoveHistoryEntry `json:"moves"`
	TotalMoves  int                       `json:"total_moves"`
	Page        int                       `json:"page"`
	PageSize    int                       `json:"page_size"`
	TotalPages  int                       `json:"total_pages"`
	HasNext     bool                      `json:"has_next"`
	HasPrevious bool                      `json:"has_previous"`
}

// ConfigSource tells where a preset comes from
type ConfigSource string

const (
	SourceBuiltin ConfigSource = "builtin"
	SourceFile    ConfigSource = "file"
	SourceUser    ConfigSource = "user"
)

// ConfigInfo provides information about a preset
type ConfigInfo struct {
	ConfigID    string          `json:"config_id"` // The identifier to use for session creation
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Source      ConfigSource    `json:"source"`
	Editable    bool            `json:"editable"`
	Filename    string          `json:"filename,omitempty"`
	Empty       engine.Position `json:"empty"`
	Car         engine.Car      `json:"car"`
}

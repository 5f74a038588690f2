package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Board Operations
	Slide(ctx context.Context, sessionID string, row, col int) (*SlideResult, error)
	BulkSlide(ctx context.Context, sessionID string, slides []engine.Position) (*BulkSlideResult, error)

	// Car Operations
	Tick(ctx context.Context, sessionID string, dt time.Duration) (*StepResult, error)
	TickAll(ctx context.Context, dt time.Duration) ([]string, error)
	Advance(ctx context.Context, sessionID string) (*StepResult, error)
	Retry(ctx context.Context, sessionID string) (*ControlResult, error)
	Reverse(ctx context.Context, sessionID string) (*ControlResult, error)
	Pause(ctx context.Context, sessionID string) (*ControlResult, error)
	Resume(ctx context.Context, sessionID string) (*ControlResult, error)
	SetSpeed(ctx context.Context, sessionID string, level int, fast *bool) (*engine.GameState, error)
	Reset(ctx context.Context, sessionID string) (*engine.GameState, error)

	// Game State
	GetGameState(ctx context.Context, sessionID string) (*engine.GameState, error)
	GetMoveHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configID string) (*engine.Preset, error)
	SaveConfig(ctx context.Context, configID string, preset *engine.Preset) (string, error)
	DeleteConfig(ctx context.Context, configID string) error

	// Results
	ListResults(ctx context.Context, configID string, limit int) ([]store.Result, error)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, preset *engine.Preset) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, preset *engine.Preset) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// ConfigManager handles preset loading and editing
type ConfigManager interface {
	LoadConfig(ctx context.Context, id string) (*engine.Preset, error)
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	GetDefault() *engine.Preset
	DefaultID() string
	SaveConfig(ctx context.Context, id string, preset *engine.Preset) (string, error)
	DeleteConfig(ctx context.Context, id string) error
}

// ResultStore records won runs
type ResultStore interface {
	SaveResult(ctx context.Context, r store.Result) (store.Result, error)
	TopResults(ctx context.Context, configID string, limit int) ([]store.Result, error)
}

// Session represents an active game session
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.GameEngine
	Config         *engine.Preset
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// ResultRecorded is set once the session's win has been written to the result store.
	ResultRecorded bool
}

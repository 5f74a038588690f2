package session

import (
	"time"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID
	Load(id string) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions.
// The preset is stored alongside the state so a session survives the
// removal of a user preset.
type PersistedSessionData struct {
	ID             string            `json:"id"`
	ConfigID       string            `json:"config_id"`
	Config         *engine.Preset    `json:"config,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	LastAccessedAt time.Time         `json:"last_accessed_at"`
	ResultRecorded bool              `json:"result_recorded,omitempty"`
	GameState      *engine.GameState `json:"game_state"`
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
)

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager) (*FilePersistence, error) {
	// Create sessions directory if it doesn't exist
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
	}, nil
}

// Save persists a session to a JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	data := PersistedSessionData{
		ID:             session.ID,
		ConfigID:       session.ConfigID,
		Config:         session.Config,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessedAt,
		ResultRecorded: session.ResultRecorded,
		GameState:      session.Engine.GetState(),
	}

	// Marshal to JSON with indentation for readability
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	// Write via a temp file and rename into place
	filePath := fp.getFilePath(session.ID)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}

	return nil
}

// Load retrieves a session from a JSON file
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	filePath := fp.getFilePath(id)

	jsonData, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	preset := data.Config
	if preset == nil {
		if fp.configManager == nil {
			return nil, fmt.Errorf("session %s has no stored preset", id)
		}
		preset, err = fp.configManager.LoadConfig(context.Background(), data.ConfigID)
		if err != nil {
			return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigID, err)
		}
	}

	gameEngine, err := engine.NewEngine(preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create game engine: %w", err)
	}

	if data.GameState != nil {
		if err := gameEngine.SetState(data.GameState); err != nil {
			return nil, fmt.Errorf("failed to set game state: %w", err)
		}
	}

	return &service.Session{
		ID:             data.ID,
		ConfigID:       data.ConfigID,
		Engine:         gameEngine,
		Config:         gameEngine.GetConfig(),
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		ResultRecorded: data.ResultRecorded,
	}, nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}

// Package store provides SQLite persistence for user-authored presets and
// finished runs. It uses the pure-Go modernc.org/sqlite driver.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
)

// ErrNotFound is returned when a preset key does not exist
var ErrNotFound = errors.New("store: not found")

// Store manages the SQLite database connection
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// Result is a finished, won run
type Result struct {
	RunID        string    `json:"run_id"`
	SessionID    string    `json:"session_id"`
	ConfigID     string    `json:"config_id"`
	ConfigName   string    `json:"config_name"`
	TilesEntered int       `json:"tiles_entered"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	TotalMoves   int       `json:"total_moves"`
	CreatedAt    time.Time `json:"created_at"`
}

// Open creates or opens a SQLite database at the given path.
// It creates the parent directories if needed and runs migrations.
// The path ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		// Expand ~ to home directory
		if dbPath != "" && dbPath[0] == '~' {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("store: cannot expand home directory: %w", err)
			}
			dbPath = filepath.Join(home, dbPath[1:])
		}

		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: cannot create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: cannot open database: %w", err)
	}
	// a second connection to ":memory:" would see an empty database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: cannot connect to database: %w", err)
	}

	s := &Store{db: db, logger: log.New(io.Discard)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS presets (
			key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			config_id TEXT NOT NULL,
			config_name TEXT NOT NULL DEFAULT '',
			tiles_entered INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			total_moves INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_results_fastest ON results(config_id, elapsed_ms ASC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SetLogger sets the logger used to report skipped rows
func (s *Store) SetLogger(l *log.Logger) {
	s.logger = l
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SavePreset inserts or replaces a preset. A preset without a key is given a
// new one. The stored key is returned.
func (s *Store) SavePreset(ctx context.Context, p *engine.Preset) (string, error) {
	if err := engine.ValidatePreset(p); err != nil {
		return "", err
	}

	stored := p.Clone()
	if stored.Key == "" {
		stored.Key = uuid.NewString()
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("store: cannot encode preset: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO presets (key, name, description, data) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`,
		stored.Key, stored.Name, stored.Description, string(data),
	)
	if err != nil {
		return "", fmt.Errorf("store: cannot save preset: %w", err)
	}
	return stored.Key, nil
}

// GetPreset loads a preset by key
func (s *Store) GetPreset(ctx context.Context, key string) (*engine.Preset, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM presets WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: cannot query preset: %w", err)
	}
	return decodePreset(key, data)
}

// ListPresets returns every stored preset, oldest first. Rows that no
// longer decode into a valid preset are logged and skipped.
func (s *Store) ListPresets(ctx context.Context) ([]*engine.Preset, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, data FROM presets ORDER BY created_at, name")
	if err != nil {
		return nil, fmt.Errorf("store: cannot query presets: %w", err)
	}
	defer rows.Close()

	var presets []*engine.Preset
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, fmt.Errorf("store: cannot scan row: %w", err)
		}
		p, err := decodePreset(key, data)
		if err != nil {
			s.logger.Warn("skipping stored preset", "key", key, "error", err)
			continue
		}
		presets = append(presets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: row iteration error: %w", err)
	}
	return presets, nil
}

// DeletePreset removes a preset by key
func (s *Store) DeletePreset(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM presets WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("store: cannot delete preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: cannot count deleted rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// decodePreset parses a stored row. Errors wrap engine.ErrInvalidPreset.
func decodePreset(key, data string) (*engine.Preset, error) {
	var p engine.Preset
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("store: cannot decode preset %s: %w: %v", key, engine.ErrInvalidPreset, err)
	}
	if err := engine.ValidatePreset(&p); err != nil {
		return nil, fmt.Errorf("store: preset %s: %w", key, err)
	}
	p.Key = key
	return &p, nil
}

// SaveResult records a won run and returns it with its run ID and timestamp set
func (s *Store) SaveResult(ctx context.Context, r Result) (Result, error) {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO results (run_id, session_id, config_id, config_name, tiles_entered, elapsed_ms, total_moves, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.SessionID, r.ConfigID, r.ConfigName, r.TilesEntered, r.ElapsedMs, r.TotalMoves,
		r.CreatedAt.Format(time.DateTime),
	)
	if err != nil {
		return r, fmt.Errorf("store: cannot save result: %w", err)
	}
	return r, nil
}

// TopResults returns the fastest wins for a preset. Results are ordered by
// elapsed time ascending.
func (s *Store) TopResults(ctx context.Context, configID string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, session_id, config_id, config_name, tiles_entered, elapsed_ms, total_moves, created_at
		 FROM results
		 WHERE config_id = ?
		 ORDER BY elapsed_ms ASC, id ASC
		 LIMIT ?`,
		configID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: cannot query results: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var createdAt any
		if err := rows.Scan(&r.RunID, &r.SessionID, &r.ConfigID, &r.ConfigName,
			&r.TilesEntered, &r.ElapsedMs, &r.TotalMoves, &createdAt); err != nil {
			return nil, fmt.Errorf("store: cannot scan row: %w", err)
		}

		// Parse the datetime - handle both time.Time and string
		switch v := createdAt.(type) {
		case time.Time:
			r.CreatedAt = v
		case string:
			if parsed, err := time.Parse(time.DateTime, v); err == nil {
				r.CreatedAt = parsed
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: row iteration error: %w", err)
	}
	return results, nil
}

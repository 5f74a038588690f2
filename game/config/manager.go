package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
	"github.com/wricardo/mcp-training/roadtiles/game/service"
	"github.com/wricardo/mcp-training/roadtiles/game/store"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrReadOnly       = errors.New("configuration is read-only")
)

// DefaultConfigID is used when no default has been chosen
const DefaultConfigID = "level1"

var presetExtensions = []string{".yaml", ".yml", ".json"}

// PresetStore persists user-authored presets
type PresetStore interface {
	SavePreset(ctx context.Context, p *engine.Preset) (string, error)
	GetPreset(ctx context.Context, key string) (*engine.Preset, error)
	ListPresets(ctx context.Context) ([]*engine.Preset, error)
	DeletePreset(ctx context.Context, key string) error
}

// Manager resolves preset IDs across the built-in levels, preset files in the
// config directory, and the optional preset store. Built-in and file presets
// are read-only; only stored presets can be edited or removed.
type Manager struct {
	configDir string
	store     PresetStore
	logger    *log.Logger
	defaultID string
	configs   map[string]*engine.Preset
	mu        sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithStore enables user presets backed by s
func WithStore(s PresetStore) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the logger used to report skipped preset files
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a new configuration manager. configDir may be empty, in
// which case only built-in and stored presets are available.
func NewManager(configDir string, opts ...Option) (*Manager, error) {
	if configDir != "" {
		if _, err := os.Stat(configDir); os.IsNotExist(err) {
			return nil, fmt.Errorf("config directory does not exist: %s", configDir)
		}
	}

	m := &Manager{
		configDir: configDir,
		defaultID: DefaultConfigID,
		configs:   make(map[string]*engine.Preset),
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// LoadConfig loads a preset by ID. The returned preset is a copy.
func (m *Manager) LoadConfig(ctx context.Context, id string) (*engine.Preset, error) {
	if p, ok := engine.BuiltinPreset(id); ok {
		return p, nil
	}

	m.mu.RLock()
	// Check cache first
	if p, exists := m.configs[id]; exists {
		m.mu.RUnlock()
		return p.Clone(), nil
	}
	m.mu.RUnlock()

	p, err := m.loadFile(id)
	if err == nil {
		return p.Clone(), nil
	}
	if !errors.Is(err, ErrConfigNotFound) {
		return nil, err
	}

	if m.store == nil {
		return nil, ErrConfigNotFound
	}
	p, err = m.store.GetPreset(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConfigNotFound
	}
	if errors.Is(err, engine.ErrInvalidPreset) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Manager) loadFile(id string) (*engine.Preset, error) {
	if m.configDir == "" || strings.ContainsAny(id, `/\`) || id == "" {
		return nil, ErrConfigNotFound
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if p, exists := m.configs[id]; exists {
		return p, nil
	}

	for _, ext := range presetExtensions {
		path := filepath.Join(m.configDir, id+ext)
		p, err := engine.LoadPreset(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if errors.Is(err, engine.ErrInvalidPreset) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		m.configs[id] = p
		return p, nil
	}
	return nil, ErrConfigNotFound
}

// ListConfigs returns information about all available presets: built-ins
// first, then files in name order, then stored presets.
func (m *Manager) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	var configs []*service.ConfigInfo

	for _, id := range engine.BuiltinPresetIDs() {
		p, _ := engine.BuiltinPreset(id)
		configs = append(configs, info(id, p, service.SourceBuiltin, ""))
	}

	if m.configDir != "" {
		entries, err := os.ReadDir(m.configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to read config directory: %w", err)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		seen := make(map[string]bool)
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if entry.IsDir() || !isPresetExt(ext) {
				continue
			}
			id := strings.TrimSuffix(entry.Name(), ext)
			if seen[id] {
				continue
			}
			if _, builtin := engine.BuiltinPreset(id); builtin {
				m.logger.Warn("preset file shadows a built-in level and is ignored", "file", entry.Name())
				continue
			}

			p, err := m.loadFile(id)
			if err != nil {
				// Skip invalid presets
				m.logger.Warn("skipping preset file", "file", entry.Name(), "error", err)
				continue
			}
			seen[id] = true
			configs = append(configs, info(id, p, service.SourceFile, entry.Name()))
		}
	}

	if m.store != nil {
		stored, err := m.store.ListPresets(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range stored {
			configs = append(configs, info(p.Key, p, service.SourceUser, ""))
		}
	}

	return configs, nil
}

func info(id string, p *engine.Preset, source service.ConfigSource, filename string) *service.ConfigInfo {
	return &service.ConfigInfo{
		ConfigID:    id,
		Name:        p.Name,
		Description: p.Description,
		Source:      source,
		Editable:    source == service.SourceUser,
		Filename:    filename,
		Empty:       p.Empty,
		Car:         p.Car,
	}
}

func isPresetExt(ext string) bool {
	for _, e := range presetExtensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *engine.Preset {
	m.mu.RLock()
	id := m.defaultID
	m.mu.RUnlock()

	p, err := m.LoadConfig(context.Background(), id)
	if err != nil {
		p, _ = engine.BuiltinPreset(DefaultConfigID)
	}
	return p
}

// DefaultID returns the ID of the default preset
func (m *Manager) DefaultID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID
}

// SetDefault sets the default preset by ID
func (m *Manager) SetDefault(ctx context.Context, id string) error {
	if _, err := m.LoadConfig(ctx, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = id
	return nil
}

// RefreshCache drops cached preset files so they are re-read from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs = make(map[string]*engine.Preset)
}

// SaveConfig validates and stores a preset, returning its ID. With a preset
// store the preset is added (empty id) or edited (existing key, otherwise
// ErrConfigNotFound); without one it is written as <id>.yaml to the config
// directory.
func (m *Manager) SaveConfig(ctx context.Context, id string, p *engine.Preset) (string, error) {
	if err := engine.ValidatePreset(p); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if m.readOnly(id) {
		return "", fmt.Errorf("%w: %s", ErrReadOnly, id)
	}

	if m.store != nil {
		if id != "" {
			// a corrupt row may still be overwritten
			_, err := m.store.GetPreset(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return "", fmt.Errorf("%w: %s", ErrConfigNotFound, id)
			}
			if err != nil && !errors.Is(err, engine.ErrInvalidPreset) {
				return "", err
			}
		}
		stored := p.Clone()
		stored.Key = id
		return m.store.SavePreset(ctx, stored)
	}

	if m.configDir == "" || id == "" || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: saving needs a config directory and an id", ErrInvalidConfig)
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.configDir, id+".yaml"), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = p.Clone()
	m.mu.Unlock()
	return id, nil
}

// DeleteConfig removes a stored preset. Built-in and file presets cannot be removed.
func (m *Manager) DeleteConfig(ctx context.Context, id string) error {
	if m.readOnly(id) {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	if m.store == nil {
		return ErrConfigNotFound
	}
	err := m.store.DeletePreset(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrConfigNotFound
	}
	return err
}

// readOnly reports whether id names a built-in preset, or a preset file while
// a store is configured
func (m *Manager) readOnly(id string) bool {
	if _, ok := engine.BuiltinPreset(id); ok {
		return true
	}
	if m.store == nil || id == "" {
		return false
	}
	_, err := m.loadFile(id)
	return err == nil || errors.Is(err, ErrInvalidConfig)
}

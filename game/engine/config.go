package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidPreset is wrapped by every preset validation failure
var ErrInvalidPreset = errors.New("invalid preset")

// Preset is a starting layout: the tile grid, the empty slot and the car start
type Preset struct {
	// Key identifies presets owned by the preset store; built-in and file presets leave it empty.
	Key         string       `json:"key,omitempty" yaml:"key,omitempty"`
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Grid        [][]TileType `json:"grid" yaml:"grid"`
	Empty       Position     `json:"empty" yaml:"empty"`
	Car         Car          `json:"car" yaml:"car"`
}

// Clone returns a deep copy of p
func (p *Preset) Clone() *Preset {
	cp := *p
	cp.Grid = make([][]TileType, len(p.Grid))
	for i, row := range p.Grid {
		cp.Grid[i] = append([]TileType(nil), row...)
	}
	return &cp
}

// ValidatePreset checks that p can start a game: a 4x4 grid of known tiles,
// exactly one empty cell matching p.Empty, and a car that starts on a tile
// whose road accepts its entering edge.
func ValidatePreset(p *Preset) error {
	if p == nil {
		return fmt.Errorf("%w: preset is nil", ErrInvalidPreset)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}

	board, err := NewBoard(p.Grid)
	if err != nil {
		return err
	}
	if board.Empty != p.Empty {
		return fmt.Errorf("%w: empty is declared at (%d,%d) but the grid has it at (%d,%d)",
			ErrInvalidPreset, p.Empty.Row, p.Empty.Col, board.Empty.Row, board.Empty.Col)
	}

	if !InBounds(p.Car.Row, p.Car.Col) {
		return fmt.Errorf("%w: car start (%d,%d) is off the board", ErrInvalidPreset, p.Car.Row, p.Car.Col)
	}
	if !p.Car.Entering.Valid() {
		return fmt.Errorf("%w: car entering edge is required", ErrInvalidPreset)
	}
	tile := board.At(p.Car.Row, p.Car.Col)
	if tile == nil {
		return fmt.Errorf("%w: car starts on the empty cell", ErrInvalidPreset)
	}
	if !Accepts(tile.Type, p.Car.Entering) {
		return fmt.Errorf("%w: %s tile at (%d,%d) has no road on its %s edge",
			ErrInvalidPreset, tile.Type, p.Car.Row, p.Car.Col, p.Car.Entering)
	}
	return nil
}

// PresetFromGrid builds a preset from a bare grid the way the level editor
// does: the empty slot is located in the grid and the car starts at (0,0)
// entering through the first of top, left, bottom, right its tile connects.
func PresetFromGrid(name string, grid [][]TileType) (*Preset, error) {
	board, err := NewBoard(grid)
	if err != nil {
		return nil, err
	}

	entering := Top
	if t := board.At(0, 0); t != nil {
		for _, e := range []Edge{Top, Left, Bottom, Right} {
			if Accepts(t.Type, e) {
				entering = e
				break
			}
		}
	}

	p := &Preset{
		Name:  name,
		Grid:  board.Grid(),
		Empty: board.Empty,
		Car:   Car{Row: 0, Col: 0, Entering: entering},
	}
	if err := ValidatePreset(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ParsePreset decodes a preset from YAML or JSON, picked by file extension,
// and validates it.
func ParsePreset(data []byte, filename string) (*Preset, error) {
	var p Preset
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filename, err)
		}
	default:
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", filename, err)
		}
	}

	if err := ValidatePreset(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadPreset reads and validates a preset file
func LoadPreset(filename string) (*Preset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParsePreset(data, filename)
}

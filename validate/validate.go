// Package validate checks preset files and reports how a layout plays out
// before any session is created from it. It backs the validate and analyze
// commands. Each preset is checked for:
//   - YAML or JSON structure
//   - a 4x4 grid of known tile types with exactly one empty cell
//   - an empty position matching the grid
//   - a car start on a tile that accepts its entering edge
//
// Valid presets are also driven unattended (no slides) to show how far the
// car gets on its own.
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/roadtiles/game/engine"
)

// Result captures the outcome of validating a single preset.
// Errors lists what made it invalid; Info carries the summary of a valid one.
type Result struct {
	File     string    `json:"file"`
	Valid    bool      `json:"valid"`
	Errors   []string  `json:"errors,omitempty"`
	Info     []string  `json:"info,omitempty"`
	Analysis *Analysis `json:"analysis,omitempty"`
}

// Analysis describes a valid preset
type Analysis struct {
	Name       string                  `json:"name"`
	TileCounts map[engine.TileType]int `json:"tile_counts"`
	Slidable   []engine.Position       `json:"slidable"`
	Drive      engine.TraceResult      `json:"drive"`
	Exit       engine.Edge             `json:"exit"`
}

// TilesReached is the number of distinct tiles the unattended drive covers
func (a *Analysis) TilesReached() int {
	seen := map[engine.Position]bool{}
	for _, c := range a.Drive.Path {
		seen[c.Position()] = true
	}
	return len(seen)
}

// Outcome describes how the unattended drive ended
func (a *Analysis) Outcome() string {
	switch {
	case a.Drive.Won:
		return "wins without a single slide"
	case a.Drive.Looped:
		return "loops forever without slides"
	case a.Drive.Crash != engine.CrashNone:
		return "crashes: " + a.Drive.Crash.Describe()
	}
	return "stops"
}

// Analyze builds the board for p and drives the car from its start
func Analyze(p *engine.Preset) (*Analysis, error) {
	if err := engine.ValidatePreset(p); err != nil {
		return nil, err
	}
	board, err := p.Board()
	if err != nil {
		return nil, err
	}

	counts := make(map[engine.TileType]int)
	for r := 0; r < engine.GridSize; r++ {
		for c := 0; c < engine.GridSize; c++ {
			if t := board.At(r, c); t != nil {
				counts[t.Type]++
			}
		}
	}

	a := &Analysis{
		Name:       p.Name,
		TileCounts: counts,
		Slidable:   board.SlidablePositions(),
		Drive:      engine.Trace(board, p.Car),
	}
	a.Exit, _ = engine.ExitEdge(board.At(p.Car.Row, p.Car.Col).Type, p.Car.Entering)
	return a, nil
}

// Preset validates an already decoded preset under the given label
func Preset(label string, p *engine.Preset) Result {
	result := Result{File: label, Valid: true}

	a, err := Analyze(p)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Analysis = a
	result.Info = []string{
		fmt.Sprintf("✓ Name: %s", p.Name),
		fmt.Sprintf("✓ Empty slot: (%d,%d)", p.Empty.Row, p.Empty.Col),
		fmt.Sprintf("✓ Car: (%d,%d) entering %s, leaving %s", p.Car.Row, p.Car.Col, p.Car.Entering, a.Exit),
		fmt.Sprintf("✓ Unattended drive reaches %d/%d tiles and %s", a.TilesReached(), engine.TileCount, a.Outcome()),
	}
	return result
}

// File loads and validates a single preset file
func File(path string) Result {
	label := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{File: label, Errors: []string{fmt.Sprintf("Failed to read file: %v", err)}}
	}

	p, err := engine.ParsePreset(data, path)
	if err != nil {
		return Result{File: label, Errors: []string{err.Error()}}
	}
	return Preset(label, p)
}

// Dir validates every preset file in dir, sorted by name
func Dir(dir string) ([]Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, File(filepath.Join(dir, name)))
	}
	return results, nil
}

// Builtins validates the built-in presets
func Builtins() []Result {
	ids := engine.BuiltinPresetIDs()
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		p, _ := engine.BuiltinPreset(id)
		results = append(results, Preset(id, p))
	}
	return results
}

// Report writes results in a human readable form and returns the number of
// invalid presets
func Report(w io.Writer, results []Result) int {
	invalid := 0
	for _, r := range results {
		if r.Valid {
			fmt.Fprintf(w, "✅ %s\n", r.File)
			for _, line := range r.Info {
				fmt.Fprintf(w, "   %s\n", line)
			}
		} else {
			invalid++
			fmt.Fprintf(w, "❌ %s\n", r.File)
			for _, line := range r.Errors {
				fmt.Fprintf(w, "   %s\n", line)
			}
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Summary: %d/%d presets valid\n", len(results)-invalid, len(results))
	return invalid
}

// WriteAnalysis prints the tile mix, the opening slides and the unattended
// drive step by step
func WriteAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "=== %s ===\n", a.Name)

	fmt.Fprintln(w, "Tiles:")
	for _, t := range engine.TileTypes {
		if n := a.TileCounts[t]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", t, n)
		}
	}

	parts := make([]string, len(a.Slidable))
	for i, p := range a.Slidable {
		parts[i] = fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	fmt.Fprintf(w, "Opening slides: %s\n", strings.Join(parts, " "))

	fmt.Fprintln(w, "Unattended drive:")
	for i, c := range a.Drive.Path {
		fmt.Fprintf(w, "  %2d. (%d,%d) entering %s\n", i, c.Row, c.Col, c.Entering)
	}
	fmt.Fprintf(w, "Reaches %d/%d tiles and %s\n\n", a.TilesReached(), engine.TileCount, a.Outcome())
}

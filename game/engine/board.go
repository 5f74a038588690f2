package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidBoard is wrapped by every board consistency failure
var ErrInvalidBoard = errors.New("invalid board")

// Board is the 4x4 grid of tiles. A nil cell is the empty slot.
type Board struct {
	Cells [GridSize][GridSize]*Tile `json:"cells"`
	Empty Position                  `json:"empty"`
}

// NewBoard builds a fresh board from a tile grid. Every tile starts unvisited.
// The grid must be 4x4 of known tile types with exactly one empty cell.
func NewBoard(grid [][]TileType) (*Board, error) {
	if len(grid) != GridSize {
		return nil, fmt.Errorf("%w: grid must have %d rows, got %d", ErrInvalidPreset, GridSize, len(grid))
	}

	b := &Board{}
	empties := 0
	for r, row := range grid {
		if len(row) != GridSize {
			return nil, fmt.Errorf("%w: row %d must have %d cells, got %d", ErrInvalidPreset, r, GridSize, len(row))
		}
		for c, t := range row {
			if !t.Valid() {
				return nil, fmt.Errorf("%w: unknown tile type %d at (%d,%d)", ErrInvalidPreset, int(t), r, c)
			}
			if t == Empty {
				empties++
				b.Empty = Position{Row: r, Col: c}
				continue
			}
			b.Cells[r][c] = &Tile{Type: t, Row: r, Col: c}
		}
	}
	if empties != 1 {
		return nil, fmt.Errorf("%w: grid must contain exactly one empty cell, found %d", ErrInvalidPreset, empties)
	}
	return b, nil
}

// Validate checks a board that did not come from NewBoard, such as one read
// back from disk: exactly one nil cell at Empty, known tile types, and tiles
// whose Row/Col match the cell holding them.
func (b *Board) Validate() error {
	if !InBounds(b.Empty.Row, b.Empty.Col) {
		return fmt.Errorf("%w: empty slot (%d,%d) is off the board", ErrInvalidBoard, b.Empty.Row, b.Empty.Col)
	}
	empties := 0
	for r := range b.Cells {
		for c, t := range b.Cells[r] {
			if t == nil {
				empties++
				continue
			}
			if t.Type == Empty || !t.Type.Valid() {
				return fmt.Errorf("%w: unknown tile type %d at (%d,%d)", ErrInvalidBoard, int(t.Type), r, c)
			}
			if t.Row != r || t.Col != c {
				return fmt.Errorf("%w: tile at (%d,%d) claims position (%d,%d)", ErrInvalidBoard, r, c, t.Row, t.Col)
			}
		}
	}
	if empties != 1 {
		return fmt.Errorf("%w: board must contain exactly one empty cell, found %d", ErrInvalidBoard, empties)
	}
	if b.Cells[b.Empty.Row][b.Empty.Col] != nil {
		return fmt.Errorf("%w: empty slot (%d,%d) holds a tile", ErrInvalidBoard, b.Empty.Row, b.Empty.Col)
	}
	return nil
}

// InBounds reports whether (row, col) lies on the board
func InBounds(row, col int) bool {
	return row >= 0 && row < GridSize && col >= 0 && col < GridSize
}

// At returns the tile at (row, col), or nil when the cell is empty or off the board
func (b *Board) At(row, col int) *Tile {
	if !InBounds(row, col) {
		return nil
	}
	return b.Cells[row][col]
}

// Clone returns a deep copy sharing no tiles with b
func (b *Board) Clone() *Board {
	out := &Board{Empty: b.Empty}
	for r := range b.Cells {
		for c, t := range b.Cells[r] {
			if t != nil {
				cp := *t
				out.Cells[r][c] = &cp
			}
		}
	}
	return out
}

// CanSlide reports whether the tile at (row, col) may slide into the empty cell
func (b *Board) CanSlide(row, col int) bool {
	if !InBounds(row, col) || b.Cells[row][col] == nil {
		return false
	}
	if !InBounds(b.Empty.Row, b.Empty.Col) || b.Cells[b.Empty.Row][b.Empty.Col] != nil {
		return false
	}
	return ManhattanDistance(Position{Row: row, Col: col}, b.Empty) == 1
}

// TrySlide moves the tile at (row, col) into the empty cell. It returns a new
// board and true on success; b itself is never modified. Out-of-bounds,
// empty, and non-adjacent sources yield (nil, false).
func (b *Board) TrySlide(row, col int) (*Board, bool) {
	if !b.CanSlide(row, col) {
		return nil, false
	}

	next := b.Clone()
	tile := next.Cells[row][col]
	tile.Row = b.Empty.Row
	tile.Col = b.Empty.Col
	next.Cells[b.Empty.Row][b.Empty.Col] = tile
	next.Cells[row][col] = nil
	next.Empty = Position{Row: row, Col: col}
	return next, true
}

// SlidablePositions returns the cells whose tile can currently slide
func (b *Board) SlidablePositions() []Position {
	var out []Position
	for _, e := range Edges {
		dr, dc := e.Delta()
		r, c := b.Empty.Row+dr, b.Empty.Col+dc
		if b.CanSlide(r, c) {
			out = append(out, Position{Row: r, Col: c})
		}
	}
	return out
}

// Grid returns the tile types of b as a row-major grid
func (b *Board) Grid() [][]TileType {
	grid := make([][]TileType, GridSize)
	for r := range b.Cells {
		grid[r] = make([]TileType, GridSize)
		for c, t := range b.Cells[r] {
			if t != nil {
				grid[r][c] = t.Type
			}
		}
	}
	return grid
}

// CheckWin reports whether every tile on the board has been visited.
// A board without tiles is trivially won.
func CheckWin(b *Board) bool {
	if b == nil {
		return true
	}
	for r := range b.Cells {
		for _, t := range b.Cells[r] {
			if t != nil && !t.Visited {
				return false
			}
		}
	}
	return true
}

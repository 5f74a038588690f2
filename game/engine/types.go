package engine

import (
	"fmt"
	"time"
)

// Edge is one of the four sides of a tile
type Edge int

const (
	Top Edge = iota + 1
	Bottom
	Left
	Right
)

// Edges lists every valid edge in a stable order
var Edges = []Edge{Top, Bottom, Left, Right}

// Valid reports whether e is one of the four edges
func (e Edge) Valid() bool {
	return e >= Top && e <= Right
}

// Opposite returns the edge facing e across a tile boundary
func (e Edge) Opposite() Edge {
	switch e {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	case Right:
		return Left
	}
	return 0
}

// Delta returns the row and column offset of the neighbour reached through e
func (e Edge) Delta() (dRow, dCol int) {
	switch e {
	case Top:
		return -1, 0
	case Bottom:
		return 1, 0
	case Left:
		return 0, -1
	case Right:
		return 0, 1
	}
	return 0, 0
}

func (e Edge) String() string {
	switch e {
	case Top:
		return "top"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return "none"
}

// ParseEdge converts "top", "bottom", "left" or "right" to an Edge
func ParseEdge(s string) (Edge, error) {
	for _, e := range Edges {
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown edge %q", s)
}

// MarshalText encodes e by name. The zero Edge encodes as an empty string.
func (e Edge) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return []byte{}, nil
	}
	return []byte(e.String()), nil
}

func (e *Edge) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*e = 0
		return nil
	}
	parsed, err := ParseEdge(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// TileType identifies the road pattern printed on a tile. Zero is the empty cell.
type TileType int

const (
	Empty TileType = iota
	Horizontal
	Vertical
	CurveTopLeft
	CurveTopRight
	CurveBottomRight
	CurveBottomLeft
	Cross
	SCurve
	ZCurve
)

// Status is the lifecycle state of a running game
type Status string

const (
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	StatusCrashed Status = "crashed"
	StatusWon     Status = "won"
)

const (
	// GridSize is the side length of every board
	GridSize = 4
	// TileCount is the number of tiles on a well-formed board
	TileCount = GridSize*GridSize - 1

	MinSpeed     = 1
	MaxSpeed     = 10
	DefaultSpeed = 5
	FastFactor   = 5

	MaxBulkSlides       = 50
	WebSocketBufferSize = 256
)

// Position is a cell coordinate on the board
type Position struct {
	Row int `json:"row" yaml:"row"`
	Col int `json:"col" yaml:"col"`
}

// Tile is a road tile placed on the board
type Tile struct {
	Type    TileType `json:"type"`
	Row     int      `json:"row"`
	Col     int      `json:"col"`
	Visited bool     `json:"visited"`
}

// Car is the vehicle's discrete position and the edge it entered its tile through
type Car struct {
	Row      int  `json:"row" yaml:"row"`
	Col      int  `json:"col" yaml:"col"`
	Entering Edge `json:"entering" yaml:"entering"`
}

// Position returns the cell the car occupies
func (c Car) Position() Position {
	return Position{Row: c.Row, Col: c.Col}
}

// GameState represents the complete state of a single game session
type GameState struct {
	Board        *Board             `json:"board"`
	Car          Car                `json:"car"`
	Progress     float64            `json:"progress"`
	TileElapsed  time.Duration      `json:"tile_elapsed"`
	Status       Status             `json:"status"`
	CrashReason  CrashReason        `json:"crash_reason,omitempty"`
	TilesEntered int                `json:"tiles_entered"`
	TotalTiles   int                `json:"total_tiles"`
	Elapsed      time.Duration      `json:"elapsed"`
	Speed        int                `json:"speed"`
	Fast         bool               `json:"fast"`
	Message      string             `json:"message"`
	ConfigName   string             `json:"config_name"`
	MoveHistory  []MoveHistoryEntry `json:"move_history"`
	TotalMoves   int                `json:"total_moves"`

	// CurrentMoves holds the entries since the last reset; MoveHistory is cumulative.
	CurrentMoves      []MoveHistoryEntry `json:"current_moves"`
	CurrentMovesCount int                `json:"current_moves_count"`
}

// Clone returns a deep copy safe to hand to another goroutine
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	c := *gs
	if gs.Board != nil {
		c.Board = gs.Board.Clone()
	}
	c.MoveHistory = append([]MoveHistoryEntry(nil), gs.MoveHistory...)
	c.CurrentMoves = append([]MoveHistoryEntry(nil), gs.CurrentMoves...)
	return &c
}

// MoveHistoryEntry represents a single action in the game history
type MoveHistoryEntry struct {
	Action       string   `json:"action"`
	FromPosition Position `json:"from_position"`
	ToPosition   Position `json:"to_position"`
	Entering     Edge     `json:"entering,omitempty"`
	ElapsedMs    int64    `json:"elapsed_ms"`
	Timestamp    int64    `json:"timestamp"`
	Success      bool     `json:"success"`
	MoveNumber   int      `json:"move_number"`
}

package engine

import "time"

// CrashReason explains why a car could not continue. The zero value means no crash.
type CrashReason string

const (
	CrashNone        CrashReason = ""
	CrashEmptyCell   CrashReason = "empty_cell"
	CrashNoRoad      CrashReason = "no_road"
	CrashOffGrid     CrashReason = "off_grid"
	CrashNoTileAhead CrashReason = "no_tile_ahead"
	CrashDeadEnd     CrashReason = "dead_end"
)

// Describe returns a human readable explanation of the crash
func (r CrashReason) Describe() string {
	switch r {
	case CrashEmptyCell:
		return "the car is not on a tile"
	case CrashNoRoad:
		return "no road leads out of this tile from the entering edge"
	case CrashOffGrid:
		return "the road runs off the edge of the board"
	case CrashNoTileAhead:
		return "the road leads into the empty slot"
	case CrashDeadEnd:
		return "the next tile has no road on the facing edge"
	}
	return ""
}

// Outcome is the result of advancing the car by one tile. When Crash is
// CrashNone the car moves to Next.
type Outcome struct {
	Next  Car         `json:"next"`
	Crash CrashReason `json:"crash,omitempty"`
}

// Ok reports whether the car advanced without crashing
func (o Outcome) Ok() bool {
	return o.Crash == CrashNone
}

func crashed(reason CrashReason) Outcome {
	return Outcome{Crash: reason}
}

// Advance computes where the car goes when it leaves its current tile.
// It has no side effects on the board or the car. A nil board has no tile
// under the car.
func Advance(b *Board, car Car) Outcome {
	if b == nil {
		return crashed(CrashEmptyCell)
	}
	tile := b.At(car.Row, car.Col)
	if tile == nil {
		return crashed(CrashEmptyCell)
	}

	exit, ok := ExitEdge(tile.Type, car.Entering)
	if !ok {
		return crashed(CrashNoRoad)
	}

	dr, dc := exit.Delta()
	row, col := car.Row+dr, car.Col+dc
	if !InBounds(row, col) {
		return crashed(CrashOffGrid)
	}

	next := b.Cells[row][col]
	if next == nil {
		return crashed(CrashNoTileAhead)
	}

	entering := exit.Opposite()
	if !Accepts(next.Type, entering) {
		return crashed(CrashDeadEnd)
	}

	return Outcome{Next: Car{Row: row, Col: col, Entering: entering}}
}

// TraceResult summarises an unattended drive produced by Trace
type TraceResult struct {
	Path   []Car       `json:"path"`
	Crash  CrashReason `json:"crash,omitempty"`
	Won    bool        `json:"won"`
	Looped bool        `json:"looped"`
}

// Trace follows the car from start without any slides until it crashes, the
// board is fully visited, or it revisits a state. The board is not modified.
func Trace(b *Board, start Car) TraceResult {
	if b == nil {
		return TraceResult{Path: []Car{start}, Crash: CrashEmptyCell}
	}
	work := b.Clone()
	if t := work.At(start.Row, start.Col); t != nil {
		t.Visited = true
	}

	res := TraceResult{Path: []Car{start}}
	seen := map[Car]bool{start: true}
	car := start
	for {
		out := Advance(work, car)
		if !out.Ok() {
			res.Crash = out.Crash
			return res
		}
		car = out.Next
		work.Cells[car.Row][car.Col].Visited = true
		res.Path = append(res.Path, car)
		if CheckWin(work) {
			res.Won = true
			return res
		}
		if seen[car] {
			res.Looped = true
			return res
		}
		seen[car] = true
	}
}

// AddMoveToHistory adds an action to the game's move history
func (gs *GameState) AddMoveToHistory(action string, fromPos, toPos Position, success bool) {
	entry := MoveHistoryEntry{
		Action:       action,
		FromPosition: fromPos,
		ToPosition:   toPos,
		Entering:     gs.Car.Entering,
		ElapsedMs:    gs.Elapsed.Milliseconds(),
		Timestamp:    time.Now().Unix(),
		Success:      success,
		MoveNumber:   gs.TotalMoves + 1,
	}
	// Append to cumulative history (never cleared by reset) and increment total
	gs.MoveHistory = append(gs.MoveHistory, entry)
	gs.TotalMoves++

	gs.CurrentMoves = append(gs.CurrentMoves, entry)
	gs.CurrentMovesCount++
}

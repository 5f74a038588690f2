package engine

import (
	"fmt"
	"time"
)

// Engine provides the main interface for game operations
type Engine interface {
	// Game state management
	GetState() *GameState
	SetState(state *GameState) error
	Reset() *GameState
	IsGameOver() bool
	IsVictory() bool
	IsCrashed() bool
	GetCar() Car

	// Clock and car control
	Tick(dt time.Duration) (Outcome, bool)
	Step() Outcome
	Pause() bool
	Resume() bool
	Retry() bool
	Reverse() bool
	SetSpeed(level int) error
	SetFast(fast bool)
	TileDuration() time.Duration

	// Board operations
	Slide(row, col int) bool
	CanSlide(row, col int) bool
	GetPossibleSlides() []Position

	// Configuration
	GetConfig() *Preset
	SetConfig(preset *Preset) error

	// History
	GetMoveHistory() []MoveHistoryEntry
	GetLastMove() *MoveHistoryEntry
}

// GameEngine implements the Engine interface. It is the per-session context
// for one board and one car; it is not safe for concurrent use.
type GameEngine struct {
	state  *GameState
	config *Preset
}

// NewEngine creates a new game engine for the provided preset
func NewEngine(preset *Preset) (*GameEngine, error) {
	if err := ValidatePreset(preset); err != nil {
		return nil, err
	}

	state, err := InitGameStateFromPreset(preset)
	if err != nil {
		return nil, err
	}
	return &GameEngine{config: preset.Clone(), state: state}, nil
}

// InitGameStateFromPreset creates a running game with the car on its start
// tile. The start tile counts as entered and visited.
func InitGameStateFromPreset(preset *Preset) (*GameState, error) {
	board, err := preset.Board()
	if err != nil {
		return nil, err
	}

	car := preset.Car
	board.Cells[car.Row][car.Col].Visited = true
	total, _ := CountTiles(board)

	return &GameState{
		Board:             board,
		Car:               car,
		Status:            StatusRunning,
		TilesEntered:      1,
		TotalTiles:        total,
		Speed:             DefaultSpeed,
		Message:           fmt.Sprintf("%s: drive over all %d tiles", preset.Name, total),
		ConfigName:        preset.Name,
		MoveHistory:       []MoveHistoryEntry{},
		CurrentMoves:      []MoveHistoryEntry{},
		CurrentMovesCount: 0,
	}, nil
}

// GetState returns the current game state
func (e *GameEngine) GetState() *GameState {
	return e.state
}

// SetState sets the game state (used for persistence loading). The board
// must be consistent and the car must sit on a tile.
func (e *GameEngine) SetState(state *GameState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Board == nil {
		return fmt.Errorf("state has no board")
	}
	if err := state.Board.Validate(); err != nil {
		return err
	}
	car := state.Car
	if !InBounds(car.Row, car.Col) {
		return fmt.Errorf("%w: car (%d,%d) is off the board", ErrInvalidBoard, car.Row, car.Col)
	}
	if state.Board.At(car.Row, car.Col) == nil {
		return fmt.Errorf("%w: car (%d,%d) is on the empty slot", ErrInvalidBoard, car.Row, car.Col)
	}
	if !car.Entering.Valid() {
		return fmt.Errorf("%w: car has no entering edge", ErrInvalidBoard)
	}
	if state.Speed < MinSpeed || state.Speed > MaxSpeed {
		state.Speed = DefaultSpeed
	}
	e.state = state
	return nil
}

// Reset restarts the game from the preset
func (e *GameEngine) Reset() *GameState {
	// Preserve cumulative history and totals across resets
	prevHistory := e.state.MoveHistory
	prevTotal := e.state.TotalMoves
	speed, fast := e.state.Speed, e.state.Fast

	state, err := InitGameStateFromPreset(e.config)
	if err != nil {
		e.state.Message = err.Error()
		return e.state
	}
	e.state = state

	e.state.MoveHistory = prevHistory
	e.state.TotalMoves = prevTotal
	e.state.CurrentMoves = []MoveHistoryEntry{}
	e.state.CurrentMovesCount = 0
	e.state.Speed, e.state.Fast = speed, fast

	return e.state
}

// IsGameOver returns whether the game has been won. A crash can still be recovered.
func (e *GameEngine) IsGameOver() bool {
	return e.state.Status == StatusWon
}

// IsVictory returns whether every tile has been driven over
func (e *GameEngine) IsVictory() bool {
	return e.state.Status == StatusWon
}

// IsCrashed returns whether the car is stopped by a crash
func (e *GameEngine) IsCrashed() bool {
	return e.state.Status == StatusCrashed
}

// GetCar returns the car's current tile and entering edge
func (e *GameEngine) GetCar() Car {
	return e.state.Car
}

// TileDuration is how long the car takes to cross one tile at the current speed
func (e *GameEngine) TileDuration() time.Duration {
	return TileDuration(e.state.Speed, e.state.Fast)
}

// MaxTick bounds a single clock step. It is longer than the slowest tile.
const MaxTick = time.Minute

// TileDuration maps a speed level to the time needed to cross one tile:
// 0.5s plus 0.5s per level below the maximum, divided by five in fast mode.
func TileDuration(level int, fast bool) time.Duration {
	if level < MinSpeed || level > MaxSpeed {
		level = DefaultSpeed
	}
	d := 500*time.Millisecond + time.Duration(MaxSpeed-level)*500*time.Millisecond
	if fast {
		d /= FastFactor
	}
	return d
}

// Tick advances the clock by dt. When the car reaches the end of its tile a
// single advance is performed and its outcome returned with true. At most one
// tile is crossed per tick, however large dt is.
func (e *GameEngine) Tick(dt time.Duration) (Outcome, bool) {
	if e.state.Status != StatusRunning || dt <= 0 {
		return Outcome{}, false
	}

	e.state.Elapsed += dt
	e.state.TileElapsed += dt
	tile := e.TileDuration()
	if e.state.TileElapsed < tile {
		e.state.Progress = float64(e.state.TileElapsed) / float64(tile)
		return Outcome{}, false
	}

	e.state.TileElapsed, e.state.Progress = 0, 0
	return e.advance(), true
}

// Step moves the car to the end of its current tile immediately
func (e *GameEngine) Step() Outcome {
	if e.state.Status != StatusRunning {
		return Outcome{Next: e.state.Car}
	}
	e.state.TileElapsed, e.state.Progress = 0, 0
	return e.advance()
}

func (e *GameEngine) advance() Outcome {
	from := e.state.Car.Position()
	out := Advance(e.state.Board, e.state.Car)

	if !out.Ok() {
		e.state.Status = StatusCrashed
		e.state.CrashReason = out.Crash
		e.state.Message = "Crash! " + out.Crash.Describe()
		e.state.AddMoveToHistory("crash", from, from, false)
		return out
	}

	e.state.Car = out.Next
	e.state.Board.Cells[out.Next.Row][out.Next.Col].Visited = true
	e.state.TilesEntered++
	e.state.Message = fmt.Sprintf("Tiles entered: %d", e.state.TilesEntered)
	e.state.AddMoveToHistory("advance", from, out.Next.Position(), true)

	if CheckWin(e.state.Board) {
		e.state.Status = StatusWon
		e.state.Message = fmt.Sprintf("You win! All %d tiles visited in %.1fs",
			e.state.TotalTiles, e.state.Elapsed.Seconds())
	}
	return out
}

// Slide moves the tile at (row, col) into the empty cell. A car sitting on
// that tile rides along with it. Slides are refused once the game is won.
func (e *GameEngine) Slide(row, col int) bool {
	from := Position{Row: row, Col: col}
	if e.state.Status == StatusWon {
		e.state.AddMoveToHistory("slide", from, from, false)
		return false
	}

	to := e.state.Board.Empty
	next, ok := e.state.Board.TrySlide(row, col)
	if !ok {
		e.state.Message = fmt.Sprintf("Can't slide the tile at (%d,%d)", row, col)
		e.state.AddMoveToHistory("slide", from, from, false)
		return false
	}

	e.state.Board = next
	if e.state.Car.Row == row && e.state.Car.Col == col {
		e.state.Car.Row, e.state.Car.Col = to.Row, to.Col
	}
	e.state.Message = fmt.Sprintf("Slid tile (%d,%d) to (%d,%d)", row, col, to.Row, to.Col)
	e.state.AddMoveToHistory("slide", from, to, true)
	return true
}

// BulkSlide performs slides in order and returns the success of each
func (e *GameEngine) BulkSlide(positions []Position) []bool {
	results := make([]bool, 0, len(positions))
	for _, p := range positions {
		if e.IsGameOver() {
			break
		}
		results = append(results, e.Slide(p.Row, p.Col))
	}
	return results
}

// CanSlide reports whether the tile at (row, col) may slide now
func (e *GameEngine) CanSlide(row, col int) bool {
	return e.state.Status != StatusWon && e.state.Board.CanSlide(row, col)
}

// GetPossibleSlides returns every tile that can currently slide
func (e *GameEngine) GetPossibleSlides() []Position {
	if e.state.Status == StatusWon {
		return nil
	}
	return e.state.Board.SlidablePositions()
}

// Pause stops the clock without changing the board or car
func (e *GameEngine) Pause() bool {
	if e.state.Status != StatusRunning {
		return false
	}
	e.state.Status = StatusPaused
	e.state.Message = "Paused"
	pos := e.state.Car.Position()
	e.state.AddMoveToHistory("pause", pos, pos, true)
	return true
}

// Resume restarts the clock after Pause
func (e *GameEngine) Resume() bool {
	if e.state.Status != StatusPaused {
		return false
	}
	e.state.Status = StatusRunning
	e.state.Message = "Resumed"
	pos := e.state.Car.Position()
	e.state.AddMoveToHistory("resume", pos, pos, true)
	return true
}

// Retry restarts a crashed car on the same tile with the same entering edge
func (e *GameEngine) Retry() bool {
	if e.state.Status != StatusCrashed {
		return false
	}
	e.recover("retry")
	return true
}

// Reverse restarts a crashed car heading back the way it came
func (e *GameEngine) Reverse() bool {
	if e.state.Status != StatusCrashed {
		return false
	}
	if t := e.state.Board.At(e.state.Car.Row, e.state.Car.Col); t != nil {
		if exit, ok := ExitEdge(t.Type, e.state.Car.Entering); ok {
			e.state.Car.Entering = exit
		}
	}
	e.recover("reverse")
	return true
}

func (e *GameEngine) recover(action string) {
	e.state.Status = StatusRunning
	e.state.CrashReason = CrashNone
	e.state.TileElapsed, e.state.Progress = 0, 0
	e.state.Message = "Driving again"
	pos := e.state.Car.Position()
	e.state.AddMoveToHistory(action, pos, pos, true)
}

// SetSpeed sets the speed level, from MinSpeed (slowest) to MaxSpeed
func (e *GameEngine) SetSpeed(level int) error {
	if level < MinSpeed || level > MaxSpeed {
		return fmt.Errorf("speed must be between %d and %d, got %d", MinSpeed, MaxSpeed, level)
	}
	e.state.Speed = level
	return nil
}

// SetFast toggles fast mode, which crosses tiles five times quicker
func (e *GameEngine) SetFast(fast bool) {
	e.state.Fast = fast
}

// GetConfig returns the preset this game was started from
func (e *GameEngine) GetConfig() *Preset {
	return e.config
}

// SetConfig switches to a new preset and restarts the game
func (e *GameEngine) SetConfig(preset *Preset) error {
	if err := ValidatePreset(preset); err != nil {
		return err
	}
	state, err := InitGameStateFromPreset(preset)
	if err != nil {
		return err
	}
	e.config = preset.Clone()
	e.state = state
	return nil
}

// GetMoveHistory returns the complete move history
func (e *GameEngine) GetMoveHistory() []MoveHistoryEntry {
	return e.state.MoveHistory
}

// GetLastMove returns the last move made, or nil if no moves
func (e *GameEngine) GetLastMove() *MoveHistoryEntry {
	if len(e.state.MoveHistory) == 0 {
		return nil
	}
	return &e.state.MoveHistory[len(e.state.MoveHistory)-1]
}

// Package engine provides the core game logic for the Road Tiles puzzle.
//
// The engine package implements the game mechanics including:
//   - The tile catalog and the exit edge of every road pattern
//   - Sliding tiles into the single empty cell of a 4x4 board
//   - Advancing the car one tile at a time and detecting crashes
//   - Win detection once every tile has been driven over
//   - Preset validation, loading and the built-in levels
//
// Core Types:
//
// Board holds the tiles and the empty cell. Advance and CheckWin are pure
// functions over a Board; TrySlide returns a new Board and never modifies
// its receiver. GameEngine is the per-session context that owns the board,
// the car, and the clock that decides when the car crosses into the next
// tile.
//
// Usage:
//
//	preset, _ := engine.BuiltinPreset("level1")
//	gameEngine, err := engine.NewEngine(preset)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Slide a tile next to the empty cell, then let time pass
//	gameEngine.Slide(2, 1)
//	if out, advanced := gameEngine.Tick(100 * time.Millisecond); advanced && !out.Ok() {
//		gameEngine.Retry()
//	}
//
// Game Rules:
//
// The car drives on its own along the road printed on each tile. When it
// reaches a tile edge it needs a neighbouring tile whose road meets that
// edge, otherwise it crashes. The player slides tiles to build the road in
// time and wins when the car has visited all fifteen tiles.
package engine

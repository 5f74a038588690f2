package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_Level1(t *testing.T) {
	b := mustBoard(t, "level1")

	out := Advance(b, Car{Row: 0, Col: 0, Entering: Bottom})
	require.True(t, out.Ok(), "crash: %s", out.Crash)
	assert.Equal(t, Car{Row: 0, Col: 1, Entering: Left}, out.Next)

	out = Advance(b, Car{Row: 0, Col: 0, Entering: Top})
	assert.False(t, out.Ok())
	assert.Equal(t, CrashOffGrid, out.Crash)
}

func TestAdvance_FromEmptyCell(t *testing.T) {
	b := mustBoard(t, "level1")
	out := Advance(b, Car{Row: 2, Col: 2, Entering: Top})
	assert.Equal(t, CrashEmptyCell, out.Crash)
}

func TestAdvance_NilBoard(t *testing.T) {
	out := Advance(nil, Car{Row: 0, Col: 0, Entering: Top})
	assert.Equal(t, CrashEmptyCell, out.Crash)

	res := Trace(nil, Car{Row: 0, Col: 0, Entering: Top})
	assert.Equal(t, CrashEmptyCell, res.Crash)
	assert.Len(t, res.Path, 1)
	assert.False(t, res.Won)
}

func TestAdvance_NoRoadFromEnteringEdge(t *testing.T) {
	b := mustBoard(t, "level2")
	// Vertical tile entered from the side
	out := Advance(b, Car{Row: 0, Col: 3, Entering: Left})
	assert.Equal(t, CrashNoRoad, out.Crash)
}

func TestAdvance_IntoEmptyCell(t *testing.T) {
	b := mustBoard(t, "level1")
	// Z-curve above the gap pairs left with bottom
	out := Advance(b, Car{Row: 1, Col: 2, Entering: Left})
	assert.Equal(t, CrashNoTileAhead, out.Crash)
}

func TestAdvance_HorizontalIntoVertical(t *testing.T) {
	grid := [][]TileType{
		{Horizontal, Vertical, Vertical, Vertical},
		{Vertical, Vertical, Vertical, Vertical},
		{Vertical, Vertical, Vertical, Vertical},
		{Vertical, Vertical, Vertical, Empty},
	}
	b, err := NewBoard(grid)
	require.NoError(t, err)

	out := Advance(b, Car{Row: 0, Col: 0, Entering: Left})
	assert.False(t, out.Ok())
	assert.Equal(t, CrashDeadEnd, out.Crash)
}

func TestAdvance_Level2MultiStep(t *testing.T) {
	b := mustBoard(t, "level2")
	car := Car{Row: 0, Col: 3, Entering: Top}

	want := []Car{
		{Row: 1, Col: 3, Entering: Top},
		{Row: 2, Col: 3, Entering: Top},
		{Row: 2, Col: 2, Entering: Right},
		{Row: 1, Col: 2, Entering: Bottom},
	}
	for i, w := range want {
		out := Advance(b, car)
		require.True(t, out.Ok(), "step %d crashed: %s", i, out.Crash)
		assert.Equal(t, w, out.Next, "step %d", i)
		car = out.Next
	}
}

func TestAdvance_IsPure(t *testing.T) {
	b := mustBoard(t, "level1")
	before := b.Clone()
	car := Car{Row: 0, Col: 0, Entering: Bottom}

	first := Advance(b, car)
	second := Advance(b, car)
	assert.Equal(t, first, second)
	assert.Equal(t, before, b)
	assert.Equal(t, Car{Row: 0, Col: 0, Entering: Bottom}, car)
}

func TestAdvance_BuiltinStartsAreDriveable(t *testing.T) {
	for _, id := range BuiltinPresetIDs() {
		p := mustBuiltin(t, id)
		tile := mustBoard(t, id).At(p.Car.Row, p.Car.Col)
		require.NotNil(t, tile, id)
		assert.True(t, Accepts(tile.Type, p.Car.Entering), "%s: %s does not accept %s", id, tile.Type, p.Car.Entering)
	}
}

func TestTrace(t *testing.T) {
	t.Run("snake drives itself to a win", func(t *testing.T) {
		p := mustBuiltin(t, "snake")
		res := Trace(mustBoard(t, "snake"), p.Car)
		assert.True(t, res.Won)
		assert.Len(t, res.Path, TileCount)
		assert.Equal(t, Car{Row: 3, Col: 1, Entering: Right}, res.Path[len(res.Path)-1])
	})

	t.Run("level2 dead ends next to its start", func(t *testing.T) {
		p := mustBuiltin(t, "level2")
		res := Trace(mustBoard(t, "level2"), p.Car)
		assert.False(t, res.Won)
		assert.Equal(t, CrashDeadEnd, res.Crash)
		assert.Len(t, res.Path, 14)
		assert.Equal(t, Car{Row: 3, Col: 3, Entering: Left}, res.Path[13])
	})

	t.Run("circles loops", func(t *testing.T) {
		p := mustBuiltin(t, "circles")
		res := Trace(mustBoard(t, "circles"), p.Car)
		assert.True(t, res.Looped)
		assert.Len(t, res.Path, 5)
		assert.Equal(t, p.Car, res.Path[4])
	})

	t.Run("board untouched", func(t *testing.T) {
		b := mustBoard(t, "level1")
		before := b.Clone()
		res := Trace(b, Car{Row: 0, Col: 0, Entering: Bottom})
		assert.True(t, res.Looped)
		assert.Equal(t, before, b)
	})
}

func TestAddMoveToHistory(t *testing.T) {
	state, err := InitGameStateFromPreset(mustBuiltin(t, "level1"))
	require.NoError(t, err)

	state.AddMoveToHistory("slide", Position{Row: 2, Col: 1}, Position{Row: 2, Col: 2}, true)
	state.AddMoveToHistory("slide", Position{Row: 0, Col: 0}, Position{Row: 0, Col: 0}, false)

	require.Len(t, state.MoveHistory, 2)
	assert.Equal(t, 2, state.TotalMoves)
	assert.Equal(t, 2, state.CurrentMovesCount)
	assert.Equal(t, 1, state.MoveHistory[0].MoveNumber)
	assert.Equal(t, 2, state.MoveHistory[1].MoveNumber)
	assert.False(t, state.MoveHistory[1].Success)
	assert.Equal(t, Bottom, state.MoveHistory[0].Entering)
}

package engine

// Board builds a fresh, fully unvisited board from the preset's grid
func (p *Preset) Board() (*Board, error) {
	return NewBoard(p.Grid)
}

// builtinOrder is the play order of the built-in presets
var builtinOrder = []string{"level1", "level2", "level3", "snake", "circles"}

var builtinPresets = newBuiltinPresets()

func newBuiltinPresets() map[string]Preset {
	const (
		h  = Horizontal
		v  = Vertical
		tl = CurveTopLeft
		tr = CurveTopRight
		br = CurveBottomRight
		bl = CurveBottomLeft
		x  = Cross
		s  = SCurve
		z  = ZCurve
		__ = Empty
	)

	return map[string]Preset{
		"level1": {
			Name:        "Level 1",
			Description: "Crosses and double curves around a central gap",
			Grid: [][]TileType{
				{s, x, x, z},
				{x, s, z, x},
				{x, z, __, x},
				{z, x, x, s},
			},
			Empty: Position{Row: 2, Col: 2},
			Car:   Car{Row: 0, Col: 0, Entering: Bottom},
		},
		"level2": {
			Name:        "Level 2",
			Description: "Single-lane curves that punish a late slide",
			Grid: [][]TileType{
				{br, h, bl, v},
				{v, bl, v, v},
				{v, __, tr, tl},
				{tr, h, h, tl},
			},
			Empty: Position{Row: 2, Col: 1},
			Car:   Car{Row: 0, Col: 3, Entering: Top},
		},
		"level3": {
			Name:        "Level 3",
			Description: "Straights with a single S-curve junction",
			Grid: [][]TileType{
				{tl, v, v, v},
				{h, br, s, v},
				{v, h, __, s},
				{bl, tr, h, v},
			},
			Empty: Position{Row: 2, Col: 2},
			Car:   Car{Row: 0, Col: 3, Entering: Top},
		},
		"snake": {
			Name:        "Snake",
			Description: "A winding road that almost drives itself",
			Grid: [][]TileType{
				{tr, h, h, bl},
				{br, h, h, tl},
				{tr, h, h, bl},
				{__, h, h, tl},
			},
			Empty: Position{Row: 3, Col: 0},
			Car:   Car{Row: 0, Col: 0, Entering: Top},
		},
		"circles": {
			Name:        "Circles",
			Description: "Four closed loops that must be broken open",
			Grid: [][]TileType{
				{br, bl, br, bl},
				{tr, tl, tr, tl},
				{br, bl, br, bl},
				{tr, tl, tr, __},
			},
			Empty: Position{Row: 3, Col: 3},
			Car:   Car{Row: 0, Col: 0, Entering: Bottom},
		},
	}
}

// BuiltinPreset returns a copy of the named built-in preset
func BuiltinPreset(id string) (*Preset, bool) {
	p, ok := builtinPresets[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// BuiltinPresetIDs returns the IDs of the built-in presets in play order
func BuiltinPresetIDs() []string {
	return append([]string(nil), builtinOrder...)
}

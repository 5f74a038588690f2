package engine

// Connection is an unordered pair of edges joined by a road segment
type Connection [2]Edge

// tileInfo describes one catalog entry
type tileInfo struct {
	name        string
	connections []Connection
}

var catalog = map[TileType]tileInfo{
	Horizontal:       {"Horizontal", []Connection{{Left, Right}}},
	Vertical:         {"Vertical", []Connection{{Top, Bottom}}},
	CurveTopLeft:     {"Curve TL", []Connection{{Top, Left}}},
	CurveTopRight:    {"Curve TR", []Connection{{Top, Right}}},
	CurveBottomRight: {"Curve BR", []Connection{{Bottom, Right}}},
	CurveBottomLeft:  {"Curve BL", []Connection{{Bottom, Left}}},
	Cross:            {"Cross", []Connection{{Top, Bottom}, {Left, Right}}},
	SCurve:           {"S-curve", []Connection{{Top, Left}, {Bottom, Right}}},
	ZCurve:           {"Z-curve", []Connection{{Top, Right}, {Bottom, Left}}},
}

// TileTypes lists every non-empty tile type in catalog order
var TileTypes = []TileType{
	Horizontal, Vertical, CurveTopLeft, CurveTopRight, CurveBottomRight,
	CurveBottomLeft, Cross, SCurve, ZCurve,
}

// Valid reports whether t is Empty or a catalog tile
func (t TileType) Valid() bool {
	if t == Empty {
		return true
	}
	_, ok := catalog[t]
	return ok
}

func (t TileType) String() string {
	if t == Empty {
		return "Empty"
	}
	if info, ok := catalog[t]; ok {
		return info.name
	}
	return "Unknown"
}

// Connections returns the road segments printed on t. Empty and unknown types have none.
func Connections(t TileType) []Connection {
	info, ok := catalog[t]
	if !ok {
		return nil
	}
	out := make([]Connection, len(info.connections))
	copy(out, info.connections)
	return out
}

// ExitEdge returns the edge a car leaves t through after entering via entering.
// The boolean is false when no road on t touches the entering edge.
func ExitEdge(t TileType, entering Edge) (Edge, bool) {
	info, ok := catalog[t]
	if !ok {
		return 0, false
	}
	for _, c := range info.connections {
		if c[0] == entering {
			return c[1], true
		}
		if c[1] == entering {
			return c[0], true
		}
	}
	return 0, false
}

// Accepts reports whether a car can enter t through e
func Accepts(t TileType, e Edge) bool {
	_, ok := ExitEdge(t, e)
	return ok
}

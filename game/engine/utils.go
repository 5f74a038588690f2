package engine

// CountTiles returns the number of tiles on the board and how many of them have been visited
func CountTiles(b *Board) (total, visited int) {
	for r := range b.Cells {
		for _, t := range b.Cells[r] {
			if t == nil {
				continue
			}
			total++
			if t.Visited {
				visited++
			}
		}
	}
	return total, visited
}

// ManhattanDistance calculates the Manhattan distance between two positions
func ManhattanDistance(from, to Position) int {
	return abs(from.Row-to.Row) + abs(from.Col-to.Col)
}

// UnvisitedPositions lists the cells holding tiles the car has not driven over yet
func UnvisitedPositions(b *Board) []Position {
	var out []Position
	for r := range b.Cells {
		for c, t := range b.Cells[r] {
			if t != nil && !t.Visited {
				out = append(out, Position{Row: r, Col: c})
			}
		}
	}
	return out
}

// abs returns the absolute value of x
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

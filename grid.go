package main

// Grid is one match's 9x9 puzzle board. Zero means empty.
type Grid [9][9]uint8

func inRange(row, col int) bool {
	return row >= 0 && row < 9 && col >= 0 && col < 9
}

func validCellValue(value int) bool {
	return value >= 0 && value <= 9
}

// isFull reports whether every cell holds a digit.
func (g *Grid) isFull() bool {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				return false
			}
		}
	}
	return true
}

// firstEmpty returns the first empty cell in row-major order.
func (g *Grid) firstEmpty() (int, int, bool) {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				return r, c, true
			}
		}
	}
	return 0, 0, false
}

// matchesSolution reports whether the grid equals sol cell-by-cell.
func (g *Grid) matchesSolution(sol *Grid) bool {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] != sol[r][c] {
				return false
			}
		}
	}
	return true
}

// satisfiesRules reports whether every row, column, and 3x3 box of a full
// grid contains each of 1-9 exactly once. Uses a bitmask per unit; a unit
// passes iff no digit repeats, which for nine filled cells implies all nine
// digits are present.
func (g *Grid) satisfiesRules() bool {
	for r := 0; r < 9; r++ {
		m := 0
		for c := 0; c < 9; c++ {
			bit := 1 << g[r][c]
			if m&bit != 0 {
				return false
			}
			m |= bit
		}
	}
	for c := 0; c < 9; c++ {
		m := 0
		for r := 0; r < 9; r++ {
			bit := 1 << g[r][c]
			if m&bit != 0 {
				return false
			}
			m |= bit
		}
	}
	for br := 0; br < 3; br++ {
		for bc := 0; bc < 3; bc++ {
			m := 0
			for dr := 0; dr < 3; dr++ {
				for dc := 0; dc < 3; dc++ {
					bit := 1 << g[br*3+dr][bc*3+dc]
					if m&bit != 0 {
						return false
					}
					m |= bit
				}
			}
		}
	}
	return true
}

// allowed reports whether v could legally be placed at (r, c) given the
// current row, column, and box contents.
func (g *Grid) allowed(r, c int, v uint8) bool {
	for i := 0; i < 9; i++ {
		if g[r][i] == v || g[i][c] == v {
			return false
		}
	}
	br, bc := (r/3)*3, (c/3)*3
	for dr := 0; dr < 3; dr++ {
		for dc := 0; dc < 3; dc++ {
			if g[br+dr][bc+dc] == v {
				return false
			}
		}
	}
	return true
}

// candidate returns the lowest digit legal at (r, c), or 0 if the cell is
// already contradicted.
func (g *Grid) candidate(r, c int) uint8 {
	for v := uint8(1); v <= 9; v++ {
		if g.allowed(r, c, v) {
			return v
		}
	}
	return 0
}

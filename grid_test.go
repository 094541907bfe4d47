package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solvedGrid is a valid completed sudoku used as a fixture throughout the
// tests.
func solvedGrid() Grid {
	return Grid{
		{5, 3, 4, 6, 7, 8, 9, 1, 2},
		{6, 7, 2, 1, 9, 5, 3, 4, 8},
		{1, 9, 8, 3, 4, 2, 5, 6, 7},
		{8, 5, 9, 7, 6, 1, 4, 2, 3},
		{4, 2, 6, 8, 5, 3, 7, 9, 1},
		{7, 1, 3, 9, 2, 4, 8, 5, 6},
		{9, 6, 1, 5, 3, 7, 2, 8, 4},
		{2, 8, 7, 4, 1, 9, 6, 3, 5},
		{3, 4, 5, 2, 8, 6, 1, 7, 9},
	}
}

func TestGridIsFull(t *testing.T) {
	var empty Grid
	assert.False(t, empty.isFull())

	full := solvedGrid()
	assert.True(t, full.isFull())

	almost := solvedGrid()
	almost[8][8] = 0
	assert.False(t, almost.isFull())
}

func TestGridFirstEmpty(t *testing.T) {
	g := solvedGrid()
	g[0][3] = 0
	g[5][1] = 0

	r, c, ok := g.firstEmpty()
	require.True(t, ok)
	assert.Equal(t, 0, r)
	assert.Equal(t, 3, c)

	full := solvedGrid()
	_, _, ok = full.firstEmpty()
	assert.False(t, ok)
}

func TestGridMatchesSolution(t *testing.T) {
	sol := solvedGrid()
	g := solvedGrid()
	assert.True(t, g.matchesSolution(&sol))

	g[4][4] = 1
	assert.False(t, g.matchesSolution(&sol))
}

func TestGridSatisfiesRules(t *testing.T) {
	g := solvedGrid()
	assert.True(t, g.satisfiesRules())

	// Two 5s in the first row invalidate the grid regardless of the rest.
	dup := solvedGrid()
	dup[0][1] = 5
	assert.False(t, dup.satisfiesRules())

	// Column conflict only.
	colDup := solvedGrid()
	colDup[1][0] = 5
	assert.False(t, colDup.satisfiesRules())
}

func TestGridAllowedAndCandidate(t *testing.T) {
	g := solvedGrid()
	g[0][0] = 0

	assert.True(t, g.allowed(0, 0, 5))
	assert.False(t, g.allowed(0, 0, 3)) // already in row
	assert.False(t, g.allowed(0, 0, 6)) // already in column
	assert.False(t, g.allowed(0, 0, 7)) // already in box

	assert.Equal(t, uint8(5), g.candidate(0, 0))
}

func TestGridBoundsHelpers(t *testing.T) {
	assert.True(t, inRange(0, 0))
	assert.True(t, inRange(8, 8))
	assert.False(t, inRange(-1, 0))
	assert.False(t, inRange(0, 9))

	assert.True(t, validCellValue(0))
	assert.True(t, validCellValue(9))
	assert.False(t, validCellValue(10))
	assert.False(t, validCellValue(-1))
}

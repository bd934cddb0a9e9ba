package engine

import (
	rand "math/rand/v2"
	"sort"

	"github.com/ethiobingo/bingo-engine/internal/randutil"
)

// Column ranges for a standard 75-ball card.
const (
	ballsPerLetter = 15
	cardSize       = 5
	// BallCount is the size of the draw pool.
	BallCount = 75
)

var letters = [cardSize]string{"B", "I", "N", "G", "O"}

// BallLetter returns the column letter for a drawn number
// (B 1-15, I 16-30, N 31-45, G 46-60, O 61-75).
func BallLetter(number int) string {
	idx := (number - 1) / ballsPerLetter
	if idx < 0 {
		idx = 0
	}
	if idx >= cardSize {
		idx = cardSize - 1
	}
	return letters[idx]
}

// Card is one cartela's 5x5 grid. Grid is column-major: Grid[0] holds the B
// column. The centre cell is zero and always counts as marked.
type Card struct {
	Cartela int       `json:"cartela"`
	Grid    [5][5]int `json:"grid"`
}

// NewCard generates the card for a cartela within a room instance. Generation
// is deterministic per (roomID, cartelaNumber): recomputing the card for win
// evaluation yields the exact grid the player was shown.
func NewCard(roomID string, cartelaNumber int) *Card {
	rng := randutil.New(randutil.CardSeed(roomID, cartelaNumber))

	card := &Card{Cartela: cartelaNumber}
	for col := 0; col < cardSize; col++ {
		low := col*ballsPerLetter + 1
		column := pickDistinct(rng, low, low+ballsPerLetter-1, cardSize)
		copy(card.Grid[col][:], column)
	}
	card.Grid[2][2] = 0 // free centre
	return card
}

// pickDistinct draws count distinct values from [min, max] and sorts them.
func pickDistinct(rng *rand.Rand, min, max, count int) []int {
	seen := make(map[int]bool, count)
	values := make([]int, 0, count)
	for len(values) < count {
		n := min + rng.IntN(max-min+1)
		if seen[n] {
			continue
		}
		seen[n] = true
		values = append(values, n)
	}
	sort.Ints(values)
	return values
}

// marked returns whether the cell at (col, row) counts as marked given the
// called set. The free centre is always marked.
func (c *Card) marked(col, row int, called map[int]bool) bool {
	if col == 2 && row == 2 {
		return true
	}
	return called[c.Grid[col][row]]
}

// HasBingo reports whether the called set completes any row, column, the main
// diagonal or the anti-diagonal.
func (c *Card) HasBingo(called map[int]bool) bool {
	for i := 0; i < cardSize; i++ {
		rowDone, colDone := true, true
		for j := 0; j < cardSize; j++ {
			if !c.marked(j, i, called) {
				rowDone = false
			}
			if !c.marked(i, j, called) {
				colDone = false
			}
		}
		if rowDone || colDone {
			return true
		}
	}

	mainDiag, antiDiag := true, true
	for i := 0; i < cardSize; i++ {
		if !c.marked(i, i, called) {
			mainDiag = false
		}
		if !c.marked(i, cardSize-1-i, called) {
			antiDiag = false
		}
	}
	return mainDiag || antiDiag
}

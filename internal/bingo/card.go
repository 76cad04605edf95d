package bingo

import "math/rand"

const (
	// FreeCell is the sentinel value stored at the center of every card.
	FreeCell = 0

	// Size is the card grid dimension.
	Size = 5

	// MaxNumber is the highest callable number.
	MaxNumber = 75

	columnSpan = 15
)

// Card is a 5x5 bingo grid indexed [row][column]. Column c holds values in
// [15c+1, 15c+15]; the center cell is FreeCell. A Card never changes after
// generation.
type Card [Size][Size]int

// Marks mirrors a Card cell-for-cell. The center is marked from creation.
type Marks [Size][Size]bool

// NewCard generates a balanced card from the given random source. Each
// column gets 5 distinct values from its 15-value range, sorted ascending.
func NewCard(rng *rand.Rand) Card {
	var columns [Size][Size]int
	for c := 0; c < Size; c++ {
		low := c*columnSpan + 1
		picked := make(map[int]bool, Size)
		count := 0
		for count < Size {
			n := low + rng.Intn(columnSpan)
			if picked[n] {
				continue
			}
			picked[n] = true
			columns[c][count] = n
			count++
		}
		sortColumn(&columns[c])
	}

	// Transpose so the card reads [row][column].
	var card Card
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			card[r][c] = columns[c][r]
		}
	}
	card[Size/2][Size/2] = FreeCell
	return card
}

func sortColumn(col *[Size]int) {
	for i := 1; i < Size; i++ {
		for j := i; j > 0 && col[j] < col[j-1]; j-- {
			col[j], col[j-1] = col[j-1], col[j]
		}
	}
}

// NewMarks returns a mark grid with only the free cell set.
func NewMarks() Marks {
	var m Marks
	m[Size/2][Size/2] = true
	return m
}

// LineKind distinguishes winning rows from winning columns.
type LineKind string

const (
	LineRow    LineKind = "row"
	LineColumn LineKind = "column"
)

// Line identifies the first completed row or column on a winning card.
type Line struct {
	Kind  LineKind `json:"kind"`
	Index int      `json:"index"`
}

// PlayerCard pairs an immutable card with its mutable mark grid.
type PlayerCard struct {
	Card  Card
	Marks Marks
}

// NewPlayerCard generates a card and replays the already-called numbers
// onto it, so late-issued cards agree with the draw history.
func NewPlayerCard(rng *rand.Rand, called []int) *PlayerCard {
	pc := &PlayerCard{
		Card:  NewCard(rng),
		Marks: NewMarks(),
	}
	for _, n := range called {
		pc.MarkNumber(n)
	}
	return pc
}

// MarkNumber marks every cell holding n. Reports whether anything changed.
func (pc *PlayerCard) MarkNumber(n int) bool {
	changed := false
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if pc.Card[r][c] == n && !pc.Marks[r][c] {
				pc.Marks[r][c] = true
				changed = true
			}
		}
	}
	return changed
}

// ClearMarks resets the grid to the free-cell-only state.
func (pc *PlayerCard) ClearMarks() {
	pc.Marks = NewMarks()
}

// Replay clears the marks and re-applies a call history.
func (pc *PlayerCard) Replay(called []int) {
	pc.ClearMarks()
	for _, n := range called {
		pc.MarkNumber(n)
	}
}

// CheckWin reports the first completed line, rows top-to-bottom before
// columns left-to-right. Free cells count as marked.
func (pc *PlayerCard) CheckWin() (Line, bool) {
	for r := 0; r < Size; r++ {
		complete := true
		for c := 0; c < Size; c++ {
			if pc.Card[r][c] != FreeCell && !pc.Marks[r][c] {
				complete = false
				break
			}
		}
		if complete {
			return Line{Kind: LineRow, Index: r}, true
		}
	}
	for c := 0; c < Size; c++ {
		complete := true
		for r := 0; r < Size; r++ {
			if pc.Card[r][c] != FreeCell && !pc.Marks[r][c] {
				complete = false
				break
			}
		}
		if complete {
			return Line{Kind: LineColumn, Index: c}, true
		}
	}
	return Line{}, false
}

// MinMissing returns the smallest count of unmarked, non-free cells over
// every row and column. Zero means the card has already won.
func (pc *PlayerCard) MinMissing() int {
	min := Size
	for r := 0; r < Size; r++ {
		missing := 0
		for c := 0; c < Size; c++ {
			if pc.Card[r][c] != FreeCell && !pc.Marks[r][c] {
				missing++
			}
		}
		if missing < min {
			min = missing
		}
	}
	for c := 0; c < Size; c++ {
		missing := 0
		for r := 0; r < Size; r++ {
			if pc.Card[r][c] != FreeCell && !pc.Marks[r][c] {
				missing++
			}
		}
		if missing < min {
			min = missing
		}
	}
	return min
}

// Values returns every numeric cell on the card in row order.
func (pc *PlayerCard) Values() []int {
	values := make([]int, 0, Size*Size-1)
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if pc.Card[r][c] != FreeCell {
				values = append(values, pc.Card[r][c])
			}
		}
	}
	return values
}

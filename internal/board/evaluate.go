package board

// Outcome is the state of a board after evaluation.
type Outcome string

const (
	Ongoing Outcome = "ongoing"
	Win     Outcome = "win"
	Draw    Outcome = "draw"
)

// LineKind tells a client how to draw a winning line.
type LineKind string

const (
	Row      LineKind = "row"
	Column   LineKind = "column"
	Diagonal LineKind = "diagonal"
)

// Line is a winning triple.
type Line struct {
	Positions [3]int   `json:"positions"`
	Symbol    Mark     `json:"symbol"`
	Kind      LineKind `json:"type"`
}

// Result is what Evaluate reports. Symbol and Line are only set on a win.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Symbol  Mark    `json:"symbol,omitempty"`
	Line    *Line   `json:"winningLine,omitempty"`
}

// Terminal reports whether the game is over.
func (r Result) Terminal() bool {
	return r.Outcome == Win || r.Outcome == Draw
}

// lines holds every winning triple in priority order: rows, then columns, then diagonals.
var lines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Evaluate checks b for a winner or a draw. The first triple in priority order holding three
// equal non-empty marks wins; a full board without such a triple is a draw.
func Evaluate(b Board) Result {
	for _, l := range lines {
		m := b[l[0]]
		if m != Empty && m == b[l[1]] && m == b[l[2]] {
			return Result{
				Outcome: Win,
				Symbol:  m,
				Line: &Line{
					Positions: l,
					Symbol:    m,
					Kind:      ClassifyLine(l),
				},
			}
		}
	}
	if b.IsFull() {
		return Result{Outcome: Draw}
	}
	return Result{Outcome: Ongoing}
}

// ClassifyLine derives the kind of a triple from its indices alone.
func ClassifyLine(positions [3]int) LineKind {
	a, b, c := positions[0], positions[1], positions[2]
	switch {
	case a/3 == b/3 && b/3 == c/3:
		return Row
	case a%3 == b%3 && b%3 == c%3:
		return Column
	default:
		return Diagonal
	}
}

package domain

import (
	"fmt"
	"strings"
)

// Color is the content of a board cell, or the color a participant plays.
// None marks both an empty cell and a participant without a seat.
type Color uint8

const (
	None Color = iota
	Black
	White
)

func (c Color) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "none"
	}
}

// Board is a square grid of stones plus the number of moves applied to it.
// It has no notion of captures: a cell is filled at most once.
type Board struct {
	size  int
	cells []Color
	moves int
}

// NewBoard returns an all-empty board of size x size
func NewBoard(size int) (*Board, error) {
	if size <= 0 || size > MaxBoardSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBoardSize, size)
	}
	return &Board{
		size:  size,
		cells: make([]Color, size*size),
	}, nil
}

// Size returns the side length of the board
func (b *Board) Size() int {
	return b.size
}

// MoveCount returns the number of stones placed so far
func (b *Board) MoveCount() int {
	return b.moves
}

// InBounds reports whether (x, y) is on the board
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.size && y < b.size
}

// Get returns the stone at (x, y); None for empty or off-board cells
func (b *Board) Get(x, y int) Color {
	if !b.InBounds(x, y) {
		return None
	}
	return b.cells[y*b.size+x]
}

// Place puts a stone of color c at (x, y) and counts it as one move.
// The board never infers color: c must be Black or White.
func (b *Board) Place(x, y int, c Color) error {
	if !b.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d) on %dx%d", ErrOutOfBounds, x, y, b.size, b.size)
	}
	if c != Black && c != White {
		return ErrNoColor
	}
	idx := y*b.size + x
	if b.cells[idx] != None {
		return fmt.Errorf("%w: (%d,%d) holds %s", ErrOccupiedCell, x, y, b.cells[idx])
	}
	b.cells[idx] = c
	b.moves++
	return nil
}

// Stones returns every occupied point with its color, row by row
func (b *Board) Stones() map[Point]Color {
	stones := make(map[Point]Color)
	for i, c := range b.cells {
		if c != None {
			stones[Point{X: i % b.size, Y: i / b.size}] = c
		}
	}
	return stones
}

// Clone returns an independent copy of the board
func (b *Board) Clone() *Board {
	c := &Board{size: b.size, moves: b.moves, cells: make([]Color, len(b.cells))}
	copy(c.cells, b.cells)
	return c
}

// String renders the board as text: X black, O white, . empty
func (b *Board) String() string {
	var sb strings.Builder
	sb.Grow((b.size*2 + 4) * (b.size + 1))

	sb.WriteString("   ")
	for x := 0; x < b.size; x++ {
		fmt.Fprintf(&sb, "%2d", x)
	}
	sb.WriteByte('\n')

	for y := 0; y < b.size; y++ {
		fmt.Fprintf(&sb, "%2d ", y)
		for x := 0; x < b.size; x++ {
			switch b.cells[y*b.size+x] {
			case Black:
				sb.WriteString(" X")
			case White:
				sb.WriteString(" O")
			default:
				sb.WriteString(" .")
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Package board renders a game board as an SVG templ component.
package board

import (
	"strconv"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

//go:generate templ generate

const (
	CellSize  = 30
	Padding   = 20
	StoneSize = 13
	StarSize  = 3
)

// starPoints are the hoshi for the common board sizes
var starPoints = map[int][]domain.Point{
	9:  {{X: 2, Y: 2}, {X: 2, Y: 6}, {X: 4, Y: 4}, {X: 6, Y: 2}, {X: 6, Y: 6}},
	13: {{X: 3, Y: 3}, {X: 3, Y: 9}, {X: 6, Y: 6}, {X: 9, Y: 3}, {X: 9, Y: 9}},
	19: {
		{X: 3, Y: 3}, {X: 3, Y: 9}, {X: 3, Y: 15},
		{X: 9, Y: 3}, {X: 9, Y: 9}, {X: 9, Y: 15},
		{X: 15, Y: 3}, {X: 15, Y: 9}, {X: 15, Y: 15},
	},
}

// StarPoints returns the star points drawn on a board of the given size
func StarPoints(size int) []domain.Point {
	return starPoints[size]
}

// Dimension is the width and height in pixels of a rendered board
func Dimension(size int) int {
	return Padding*2 + CellSize*(size-1)
}

type gridLine struct {
	X1, Y1, X2, Y2 int
}

// gridLines returns one horizontal and one vertical line per row
func gridLines(size int) []gridLine {
	last := coord(size - 1)
	lines := make([]gridLine, 0, size*2)
	for i := 0; i < size; i++ {
		pos := coord(i)
		lines = append(lines,
			gridLine{X1: Padding, Y1: pos, X2: last, Y2: pos},
			gridLine{X1: pos, Y1: Padding, X2: pos, Y2: last},
		)
	}
	return lines
}

type stone struct {
	domain.Point
	Color domain.Color
}

// stones lists the placed stones in row-major order so output is stable
func stones(b *domain.Board) []stone {
	var out []stone
	for y := 0; y < b.Size(); y++ {
		for x := 0; x < b.Size(); x++ {
			if c := b.Get(x, y); c != domain.None {
				out = append(out, stone{Point: domain.Point{X: x, Y: y}, Color: c})
			}
		}
	}
	return out
}

// coord is the pixel position of an intersection index
func coord(i int) int {
	return Padding + i*CellSize
}

func px(v int) string {
	return strconv.Itoa(v)
}

func viewBox(size int) string {
	d := px(Dimension(size))
	return "0 0 " + d + " " + d
}

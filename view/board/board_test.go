package board

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

func render(t *testing.T, b *domain.Board) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, SVG(b).Render(context.Background(), &buf))
	return buf.String()
}

func TestSVG_Loading(t *testing.T) {
	out := render(t, nil)
	assert.Contains(t, out, "Loading board")
	assert.NotContains(t, out, "<svg")
}

func TestSVG_EmptyBoard(t *testing.T) {
	b, err := domain.NewBoard(19)
	require.NoError(t, err)

	out := render(t, b)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, `width="580"`)
	assert.Equal(t, 38, strings.Count(out, "<line "))
	assert.Equal(t, 9, strings.Count(out, `class="star"`))
	assert.Zero(t, strings.Count(out, `class="stone`))
}

func TestSVG_Stones(t *testing.T) {
	b, err := domain.NewBoard(19)
	require.NoError(t, err)
	require.NoError(t, b.Place(3, 3, domain.Black))
	require.NoError(t, b.Place(15, 3, domain.White))

	out := render(t, b)
	assert.Equal(t, 2, strings.Count(out, `class="stone`))
	assert.Contains(t, out, `class="stone black" cx="110" cy="110"`)
	assert.Contains(t, out, `class="stone white" cx="470" cy="110"`)
}

func TestSVG_SmallBoardStars(t *testing.T) {
	b, err := domain.NewBoard(9)
	require.NoError(t, err)

	out := render(t, b)
	assert.Equal(t, 5, strings.Count(out, `class="star"`))

	b, err = domain.NewBoard(7)
	require.NoError(t, err)
	assert.Zero(t, strings.Count(render(t, b), `class="star"`))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestSVG_WriteError(t *testing.T) {
	b, err := domain.NewBoard(9)
	require.NoError(t, err)

	assert.Error(t, SVG(b).Render(context.Background(), failingWriter{}))
}

func TestDimension(t *testing.T) {
	assert.Equal(t, 580, Dimension(19))
	assert.Equal(t, 280, Dimension(9))
}

func TestSVG_CancelledContext(t *testing.T) {
	b, err := domain.NewBoard(9)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	assert.ErrorIs(t, SVG(b).Render(ctx, &buf), context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestSVG_ElementsAreClosed(t *testing.T) {
	b, err := domain.NewBoard(9)
	require.NoError(t, err)
	require.NoError(t, b.Place(4, 4, domain.White))

	out := render(t, b)
	assert.True(t, strings.HasSuffix(out, "</svg>"))
	assert.Equal(t, strings.Count(out, "<circle "), strings.Count(out, "</circle>"))
	assert.Equal(t, strings.Count(out, "<line "), strings.Count(out, "</line>"))
}

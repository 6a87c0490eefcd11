package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// AttemptMove plays a stone for the current viewer at (x, y). The stone is
// placed locally as soon as the move has been handed to the connection and is
// never rolled back. Turn order is left to the server.
func (v *GameView) AttemptMove(ctx context.Context, x, y int) error {
	return v.call(ctx, func() error {
		err := v.attemptMove(x, y)
		if err != nil {
			v.log.Debug("move rejected", "x", x, "y", y, "error", err)
		}
		return err
	})
}

func (v *GameView) attemptMove(x, y int) error {
	if v.board == nil {
		return domain.ErrBoardNotReady
	}
	if !v.board.InBounds(x, y) {
		return fmt.Errorf("%w: (%d,%d)", domain.ErrOutOfBounds, x, y)
	}
	if v.board.Get(x, y) != domain.None {
		return fmt.Errorf("%w: (%d,%d)", domain.ErrOccupiedCell, x, y)
	}

	viewer := v.session.Viewer()
	if viewer == nil {
		return domain.ErrNoColor
	}
	color := ColorFor(viewer.ID, v.current())
	if color == domain.None {
		return domain.ErrNoColor
	}

	msg, err := domain.NewMoveMessage(v.current().ID, viewer.ID, x, y)
	if err != nil {
		return err
	}
	v.conn.Send(msg)

	if err := v.board.Place(x, y, color); err != nil {
		return err
	}
	p := domain.Point{X: x, Y: y}
	v.pending[p] = pendingMove{Tag: uuid.New(), PlayerID: viewer.ID, At: time.Now()}

	v.log.Debug("move played", "x", x, "y", y, "color", color, "tag", v.pending[p].Tag)
	v.changed()
	return nil
}

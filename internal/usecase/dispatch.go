package usecase

import (
	"fmt"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

// dispatch applies one inbound event and reports whether the view changed.
// Nothing an event carries can stop the loop: anything unusable is journaled.
func (v *GameView) dispatch(ev domain.Event) bool {
	switch e := ev.(type) {
	case domain.MoveEvent:
		return v.handleMove(e)

	case domain.GameUpdateEvent:
		if e.GameID != 0 && e.GameID != v.current().ID {
			v.discard(e.Type(), fmt.Sprintf("update for game %d", e.GameID))
			return false
		}
		v.game.ApplyUpdate(e.GameUpdateData)
		v.log.Info("game updated", "status", v.current().Status)
		return true

	case domain.AuthSuccessEvent:
		v.authErr = ""
		v.log.Info("authenticated", "player_id", e.PlayerID, "username", e.Username)
		// A token from the environment arrives without an identity
		if v.session.Identify(domain.Participant{ID: e.PlayerID, Username: e.Username}) {
			v.log.Info("viewer identified by server", "player_id", e.PlayerID)
		}
		return false

	case domain.AuthErrorEvent:
		v.authErr = e.Error
		v.log.Warn("authentication rejected", "error", e.Error)
		return true

	case domain.AuthenticateEvent:
		v.discard(e.Type(), "authenticate is client to server only")
		return false

	case domain.UnrecognizedEvent:
		reason := "unknown message type"
		if e.Err != nil {
			reason = e.Err.Error()
		}
		v.discard(e.Type(), reason)
		return false
	}

	v.discard("", fmt.Sprintf("unhandled event %T", ev))
	return false
}

func (v *GameView) handleMove(e domain.MoveEvent) bool {
	if e.GameID != 0 && e.GameID != v.current().ID {
		v.discard(e.Type(), fmt.Sprintf("move for game %d", e.GameID))
		return false
	}

	p := domain.Point{X: e.X, Y: e.Y}
	if pm, ok := v.pending[p]; ok {
		delete(v.pending, p)
		if pm.PlayerID == e.PlayerID {
			v.log.Debug("move confirmed", "x", e.X, "y", e.Y, "tag", pm.Tag)
			return true
		}
		v.log.Warn("move conflicts with local stone",
			"x", e.X, "y", e.Y,
			"player_id", e.PlayerID,
			"local_player_id", pm.PlayerID,
		)
		v.discard(e.Type(), fmt.Sprintf("(%d,%d) already played locally by %d", e.X, e.Y, pm.PlayerID))
		return true
	}

	if v.board == nil {
		v.discard(e.Type(), domain.ErrBoardNotReady.Error())
		return false
	}

	color := ColorFor(e.PlayerID, v.current())
	if color == domain.None {
		v.discard(e.Type(), fmt.Sprintf("player %d is not seated", e.PlayerID))
		return false
	}
	if err := v.board.Place(e.X, e.Y, color); err != nil {
		v.discard(e.Type(), err.Error())
		return false
	}
	return true
}

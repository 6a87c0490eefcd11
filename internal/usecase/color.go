package usecase

import "github.com/mmuslimabdulj/goban-live/internal/domain"

// ColorFor returns the color playerID plays in game, or domain.None when the
// player holds neither seat. Seats can change after a game starts, so callers
// must pass the snapshot that is current at the moment of the call.
func ColorFor(playerID int, game *domain.Game) domain.Color {
	if game == nil {
		return domain.None
	}
	switch {
	case game.BlackPlayerID != nil && *game.BlackPlayerID == playerID:
		return domain.Black
	case game.WhitePlayerID != nil && *game.WhitePlayerID == playerID:
		return domain.White
	}
	return domain.None
}

package usecase

import (
	"testing"

	"github.com/mmuslimabdulj/goban-live/internal/domain"
)

func TestColorFor(t *testing.T) {
	game := &domain.Game{
		ID:            1,
		BoardSize:     19,
		BlackPlayerID: domain.IntPtr(7),
		WhitePlayerID: domain.IntPtr(9),
	}

	tests := []struct {
		name     string
		playerID int
		game     *domain.Game
		want     domain.Color
	}{
		{"black seat", 7, game, domain.Black},
		{"white seat", 9, game, domain.White},
		{"spectator", 3, game, domain.None},
		{"nil game", 7, nil, domain.None},
		{"waiting game", 7, &domain.Game{ID: 2, BoardSize: 19}, domain.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ColorFor(tt.playerID, tt.game); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestColorFor_Pure(t *testing.T) {
	game := &domain.Game{BlackPlayerID: domain.IntPtr(7), WhitePlayerID: domain.IntPtr(9)}

	first := ColorFor(7, game)
	second := ColorFor(7, game)
	if first != second {
		t.Errorf("Expected same result for same snapshot, got %s then %s", first, second)
	}
}

func TestColorFor_FollowsSeatSwap(t *testing.T) {
	game := &domain.Game{ID: 1, BlackPlayerID: domain.IntPtr(7), WhitePlayerID: domain.IntPtr(9)}

	if got := ColorFor(7, game); got != domain.Black {
		t.Fatalf("Expected black before swap, got %s", got)
	}

	game.ApplyUpdate(domain.GameUpdateData{
		GameID:        1,
		Status:        domain.StatusActive,
		BlackPlayerID: domain.IntPtr(9),
		WhitePlayerID: domain.IntPtr(7),
	})

	if got := ColorFor(7, game); got != domain.White {
		t.Errorf("Expected white after swap, got %s", got)
	}
	if got := ColorFor(9, game); got != domain.Black {
		t.Errorf("Expected black after swap, got %s", got)
	}
}

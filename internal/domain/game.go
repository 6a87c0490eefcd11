package domain

import "time"

// Status is the lifecycle state of a game
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusFinished Status = "finished"
)

// Valid reports whether s is one of the known game states
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusFinished:
		return true
	}
	return false
}

// Game is the lobby's snapshot of a single game.
// Seats are nil until the game leaves the waiting state.
type Game struct {
	ID            int       `json:"id"`
	BlackPlayerID *int      `json:"black_player_id"`
	WhitePlayerID *int      `json:"white_player_id"`
	BoardSize     int       `json:"board_size"`
	Status        Status    `json:"status"`
	WinnerID      *int      `json:"winner_id"`
	CreatorID     *int      `json:"creator_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can hand snapshots out of the view loop
func (g *Game) Clone() *Game {
	if g == nil {
		return nil
	}
	c := *g
	c.BlackPlayerID = cloneID(g.BlackPlayerID)
	c.WhitePlayerID = cloneID(g.WhitePlayerID)
	c.WinnerID = cloneID(g.WinnerID)
	c.CreatorID = cloneID(g.CreatorID)
	return &c
}

// ApplyUpdate replaces the mutable fields of the snapshot from a game_update payload.
// BoardSize is never touched: the board was already built from it.
func (g *Game) ApplyUpdate(u GameUpdateData) {
	if u.Status.Valid() {
		g.Status = u.Status
	}
	g.BlackPlayerID = cloneID(u.BlackPlayerID)
	g.WhitePlayerID = cloneID(u.WhitePlayerID)

	if u.Game != nil {
		g.WinnerID = cloneID(u.Game.WinnerID)
		if !u.Game.UpdatedAt.IsZero() {
			g.UpdatedAt = u.Game.UpdatedAt
		}
	}
}

// Move is one stone placement from the game's history
type Move struct {
	ID         int       `json:"id"`
	GameID     int       `json:"game_id"`
	PlayerID   int       `json:"player_id"`
	MoveNumber int       `json:"move_number"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	CreatedAt  time.Time `json:"created_at"`
}

// Point is a board intersection
type Point struct {
	X int
	Y int
}

// IntPtr is a helper for building seat assignments
func IntPtr(v int) *int {
	return &v
}

func cloneID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

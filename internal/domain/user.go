package domain

// Participant is an authenticated viewer. A nil *Participant is an anonymous spectator.
type Participant struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Rating   int    `json:"rating"`
}

// AuthResponse is returned by the game service on login
type AuthResponse struct {
	Token  string      `json:"token"`
	Player Participant `json:"player"`
}

// LoginRequest is the body of a login call
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

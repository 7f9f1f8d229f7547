package model

// PlayerID uniquely identifies a player across the system.
// It doubles as the player's credential, so it is never shown to other players.
type PlayerID string

// Player is a participant in a single game
type Player struct {
	ID   PlayerID `json:"id"`
	Name string   `json:"name"`
	Role Role     `json:"role,omitempty"` // empty until the game starts
	Seat int      `json:"seat"`           // position in the start order
}

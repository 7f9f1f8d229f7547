package response

import (
	"github.com/mcoot/avalon/internal/model"
)

// CreateGameResponse is the response for creating a game
type CreateGameResponse struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// JoinGameResponse is the response for joining a game
type JoinGameResponse struct {
	PlayerID string `json:"player_id"`
}

// GameState is a game as seen by one player
type GameState = model.GameView

// HealthResponse is the response for the health check
type HealthResponse struct {
	Status string `json:"status"`
}

// UnsubscribeResponse reports whether a websocket subscription existed
type UnsubscribeResponse struct {
	Removed bool `json:"removed"`
}

package request

// CreateGameRequest is the request body for creating a game
type CreateGameRequest struct {
	PlayerName string `json:"player_name"`
}

// JoinGameRequest is the request body for joining a game
type JoinGameRequest struct {
	PlayerName string `json:"player_name"`
}

// Identity names the acting player. The player id is the credential for the name.
type Identity struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// StartGameRequest is the request body for starting a game
type StartGameRequest struct {
	Identity
	RoleList    []string `json:"role_list"`
	PlayerOrder []string `json:"player_order"`
}

// ProposeQuestRequest is the request body for proposing quest members
type ProposeQuestRequest struct {
	Identity
	Members []string `json:"members"`
}

// VoteRequest is the request body for proposal votes and mission results
type VoteRequest struct {
	Identity
	Vote int `json:"vote"`
}

// AssassinateRequest is the request body for the assassin's guess
type AssassinateRequest struct {
	Identity
	Target string `json:"target"`
}

// SubscribeRequest names the channel a websocket connection subscribes to
type SubscribeRequest struct {
	GameID   string `json:"game_id"`
	PlayerID string `json:"player_id"`
}

// FetchStateRequest rejoins a game by player id alone
type FetchStateRequest struct {
	PlayerID string `json:"player_id"`
}

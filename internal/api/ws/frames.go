package ws

import (
	"encoding/json"

	"github.com/mcoot/avalon/internal/api/apierr"
	"github.com/mcoot/avalon/internal/api/request"
)

// Action names accepted in request frames
const (
	ActionCreateGame      = "createGame"
	ActionJoinGame        = "joinGame"
	ActionStartGame       = "startGame"
	ActionProposeQuest    = "proposeQuest"
	ActionVoteForProposal = "voteForProposal"
	ActionVoteInQuest     = "voteInQuest"
	ActionAssassinate     = "assassinate"
	ActionSubscribe       = "subscribe"
	ActionUnsubscribe     = "unsubscribe"
	ActionFetchState      = "fetchState"
)

// EventGame is the push event carrying a projected game view
const EventGame = "game"

// Request is an action frame sent by the client
type Request struct {
	ID     int64           `json:"id"`
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args"`
}

// Ack answers exactly one Request, echoing its id
type Ack struct {
	ID     int64            `json:"id"`
	Result any              `json:"result,omitempty"`
	Error  *apierr.APIError `json:"error,omitempty"`
}

// Push is an unsolicited server event
type Push struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type gameArgs struct {
	GameID string `json:"game_id"`
}

type questArgs struct {
	QuestID string `json:"quest_id"`
}

type joinArgs struct {
	gameArgs
	request.JoinGameRequest
}

type startArgs struct {
	gameArgs
	request.StartGameRequest
}

type assassinateArgs struct {
	gameArgs
	request.AssassinateRequest
}

type proposeArgs struct {
	questArgs
	request.ProposeQuestRequest
}

type voteArgs struct {
	questArgs
	request.VoteRequest
}

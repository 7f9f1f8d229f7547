package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/avalon/internal/api/request"
	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/game"
)

// QuestHandler handles actions on a quest attempt
type QuestHandler struct {
	gameController game.ControllerInterface
}

// NewQuestHandler creates a new quest handler
func NewQuestHandler(gameController game.ControllerInterface) *QuestHandler {
	return &QuestHandler{gameController: gameController}
}

// Propose handles POST /api/v1/quests/{quest_id}/proposal
func (h *QuestHandler) Propose(w http.ResponseWriter, r *http.Request) {
	questID := model.QuestID(mux.Vars(r)["quest_id"])

	var req request.ProposeQuestRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.gameController.ProposeQuest(r.Context(), questID, model.PlayerID(req.PlayerID), req.PlayerName, req.Members)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// VoteForProposal handles POST /api/v1/quests/{quest_id}/proposal/votes
func (h *QuestHandler) VoteForProposal(w http.ResponseWriter, r *http.Request) {
	questID := model.QuestID(mux.Vars(r)["quest_id"])

	var req request.VoteRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.gameController.VoteForProposal(r.Context(), questID, model.PlayerID(req.PlayerID), req.PlayerName, req.Vote)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// VoteInQuest handles POST /api/v1/quests/{quest_id}/votes
func (h *QuestHandler) VoteInQuest(w http.ResponseWriter, r *http.Request) {
	questID := model.QuestID(mux.Vars(r)["quest_id"])

	var req request.VoteRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.gameController.VoteInQuest(r.Context(), questID, model.PlayerID(req.PlayerID), req.PlayerName, req.Vote)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/mux"

	"github.com/mcoot/avalon/internal/api/request"
	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/api/sse"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/game"
	"github.com/mcoot/avalon/internal/services/notifier"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	gameController game.ControllerInterface
	streamer       *sse.Streamer
}

// NewGameHandler creates a new game handler
func NewGameHandler(gameController game.ControllerInterface, streamer *sse.Streamer) *GameHandler {
	return &GameHandler{
		gameController: gameController,
		streamer:       streamer,
	}
}

// Create handles POST /api/v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGameRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	gameID, playerID, err := h.gameController.CreateGame(r.Context(), req.PlayerName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.CreateGameResponse{
		GameID:   string(gameID),
		PlayerID: string(playerID),
	})
}

// Join handles POST /api/v1/games/{game_id}/players
func (h *GameHandler) Join(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	var req request.JoinGameRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	playerID, err := h.gameController.JoinGame(r.Context(), gameID, req.PlayerName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.JoinGameResponse{PlayerID: string(playerID)})
}

// Start handles POST /api/v1/games/{game_id}/start
func (h *GameHandler) Start(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	var req request.StartGameRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	roles := make([]model.Role, len(req.RoleList))
	for i, role := range req.RoleList {
		roles[i] = model.Role(role)
	}

	err := h.gameController.StartGame(r.Context(), gameID, model.PlayerID(req.PlayerID), req.PlayerName, roles, req.PlayerOrder)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// Assassinate handles POST /api/v1/games/{game_id}/assassination
func (h *GameHandler) Assassinate(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	var req request.AssassinateRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	err := h.gameController.Assassinate(r.Context(), gameID, model.PlayerID(req.PlayerID), req.PlayerName, req.Target)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}

// State handles GET /api/v1/games/{game_id}/players/{player_id}.
// Responds 304 when If-None-Match carries the current view's ETag.
func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := h.gameController.GetState(r.Context(), model.GameID(vars["game_id"]), model.PlayerID(vars["player_id"]))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeView(w, r, view)
}

// FetchState handles GET /api/v1/players/{player_id}/state
func (h *GameHandler) FetchState(w http.ResponseWriter, r *http.Request) {
	view, err := h.gameController.FetchState(r.Context(), model.PlayerID(mux.Vars(r)["player_id"]))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeView(w, r, view)
}

// Events handles GET /api/v1/games/{game_id}/players/{player_id}/events
func (h *GameHandler) Events(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.streamer.Serve(w, r, notifier.Channel{
		GameID:   model.GameID(vars["game_id"]),
		PlayerID: model.PlayerID(vars["player_id"]),
	})
}

// writeView writes a view with an ETag derived from its encoding
func writeView(w http.ResponseWriter, r *http.Request, view *model.GameView) {
	body, err := json.Marshal(view)
	if err != nil {
		WriteError(w, err)
		return
	}

	etag := ETag(body)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		response.NotModified(w, etag)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// ETag returns the quoted entity tag for a response body
func ETag(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

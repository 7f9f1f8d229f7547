package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/avalon/internal/api/handler"
	"github.com/mcoot/avalon/internal/api/middleware"
	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/api/sse"
	"github.com/mcoot/avalon/internal/api/ws"
	"github.com/mcoot/avalon/internal/dependencies/random"
	"github.com/mcoot/avalon/internal/metrics"
	commonmw "github.com/mcoot/avalon/internal/middleware"
	"github.com/mcoot/avalon/internal/services/game"
	"github.com/mcoot/avalon/internal/services/notifier"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	GameController game.ControllerInterface
	Notifier       *notifier.Notifier
	Random         random.Random
	Metrics        *metrics.Metrics
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	streamer := sse.NewStreamer(cfg.Notifier, cfg.Random, cfg.Metrics, cfg.Logger)
	gameHandler := handler.NewGameHandler(cfg.GameController, streamer)
	questHandler := handler.NewQuestHandler(cfg.GameController)
	wsHandler := ws.NewHandler(cfg.GameController, cfg.Notifier, cfg.Random, cfg.Metrics, cfg.Logger)

	// Create middleware
	loggingMiddleware := commonmw.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// Root endpoints
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)

	// API subrouter
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Game routes
	api.HandleFunc("/games", gameHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/games/{game_id}/players", gameHandler.Join).Methods(http.MethodPost)
	api.HandleFunc("/games/{game_id}/start", gameHandler.Start).Methods(http.MethodPost)
	api.HandleFunc("/games/{game_id}/assassination", gameHandler.Assassinate).Methods(http.MethodPost)
	api.HandleFunc("/games/{game_id}/players/{player_id}", gameHandler.State).Methods(http.MethodGet)
	api.HandleFunc("/games/{game_id}/players/{player_id}/events", gameHandler.Events).Methods(http.MethodGet)
	api.HandleFunc("/players/{player_id}/state", gameHandler.FetchState).Methods(http.MethodGet)

	// Quest routes
	api.HandleFunc("/quests/{quest_id}/proposal", questHandler.Propose).Methods(http.MethodPost)
	api.HandleFunc("/quests/{quest_id}/proposal/votes", questHandler.VoteForProposal).Methods(http.MethodPost)
	api.HandleFunc("/quests/{quest_id}/votes", questHandler.VoteInQuest).Methods(http.MethodPost)

	// Websocket action RPC and pushes
	api.Handle("/ws", wsHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.HealthResponse{Status: "ok"})
}

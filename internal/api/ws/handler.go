// Package ws carries the action RPC and game pushes over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/avalon/internal/api/apierr"
	"github.com/mcoot/avalon/internal/api/request"
	"github.com/mcoot/avalon/internal/api/response"
	"github.com/mcoot/avalon/internal/dependencies/random"
	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/game"
	"github.com/mcoot/avalon/internal/services/notifier"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Buffer size for outgoing frames
	sendBufferSize = 64

	transport = "websocket"
)

var (
	errSendBufferFull = errors.New("websocket send buffer full")
	errConnClosed     = errors.New("websocket connection closed")
)

// Handler upgrades connections and serves action frames on them
type Handler struct {
	controller game.ControllerInterface
	notifier   *notifier.Notifier
	random     random.Random
	metrics    *metrics.Metrics
	logger     *slog.Logger
	upgrader   websocket.Upgrader
}

// NewHandler creates a new websocket Handler
func NewHandler(
	controller game.ControllerInterface,
	n *notifier.Notifier,
	rnd random.Random,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		controller: controller,
		notifier:   n,
		random:     rnd,
		metrics:    m,
		logger:     logger.With(slog.String("component", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// connection is one upgraded socket. Only writePump writes to ws.
type connection struct {
	id     string
	ws     *websocket.Conn
	send   chan outbound
	closed chan struct{}
	once   sync.Once
}

// outbound is a queued frame; view is set when the frame carries a game view
type outbound struct {
	frame []byte
	view  *model.GameView
	push  bool
}

// viewKey identifies one player's view of one game; names are unique within a game
type viewKey struct {
	game   model.GameID
	player string
}

func keyOf(view *model.GameView) viewKey {
	return viewKey{game: view.ID, player: view.MyName}
}

func (c *connection) close() {
	c.once.Do(func() { close(c.closed) })
}

// enqueue queues a frame, waiting for room unless the connection is gone
func (c *connection) enqueue(out outbound) {
	select {
	case c.send <- out:
	case <-c.closed:
	}
}

// push queues a game view without blocking the notifier
func (c *connection) push(view *model.GameView) error {
	frame, err := json.Marshal(Push{Event: EventGame, Data: view})
	if err != nil {
		return err
	}
	select {
	case c.send <- outbound{frame: frame, view: view, push: true}:
		return nil
	case <-c.closed:
		return errConnClosed
	default:
		return errSendBufferFull
	}
}

// ServeHTTP handles GET /api/v1/ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &connection{
		id:     h.random.UUID(),
		ws:     wsConn,
		send:   make(chan outbound, sendBufferSize),
		closed: make(chan struct{}),
	}

	connections := h.metrics.OpenConnections.WithLabelValues(transport)
	connections.Inc()
	connectedAt := time.Now()
	h.logger.Info("websocket connected", slog.String("subscriber", c.id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(c)
	}()

	h.readPump(r.Context(), c)

	c.close()
	<-done
	removed := h.notifier.UnsubscribeAll(c.id)
	connections.Dec()
	h.logger.Info("websocket disconnected",
		slog.String("subscriber", c.id),
		slog.Int("subscriptions_removed", removed),
		slog.Duration("connection_duration", time.Since(connectedAt)),
	)
}

func (h *Handler) readPump(ctx context.Context, c *connection) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed",
					slog.String("subscriber", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			h.ack(c, 0, nil, apierr.NewInvalidRequestError("invalid frame"))
			continue
		}
		result, err := h.dispatch(ctx, c, req)
		h.ack(c, req.ID, result, err)
	}
}

// writePump drains the send queue. A pushed view no newer than the last view already
// written for the same game and player is dropped; acks are always written.
func (h *Handler) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	written := make(map[viewKey]int64)
	for {
		select {
		case out := <-c.send:
			if out.view != nil {
				key := keyOf(out.view)
				last, seen := written[key]
				if out.push && seen && out.view.Version <= last {
					h.metrics.StalePushes.Inc()
					continue
				}
				if !seen || out.view.Version > last {
					written[key] = out.view.Version
				}
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, out.frame); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.closed:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (h *Handler) ack(c *connection, id int64, result any, err error) {
	a := Ack{ID: id, Result: result}
	if err != nil {
		_, apiErr := apierr.Convert(err)
		a.Result = nil
		a.Error = &apiErr
	}
	frame, mErr := json.Marshal(a)
	if mErr != nil {
		h.logger.Error("failed to encode ack", slog.String("error", mErr.Error()))
		return
	}
	view, _ := a.Result.(*model.GameView)
	c.enqueue(outbound{frame: frame, view: view})
}

var empty = struct{}{}

// dispatch runs one action and returns its ack result
func (h *Handler) dispatch(ctx context.Context, c *connection, req Request) (any, error) {
	switch req.Action {
	case ActionCreateGame:
		var args request.CreateGameRequest
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		gameID, playerID, err := h.controller.CreateGame(ctx, args.PlayerName)
		if err != nil {
			return nil, err
		}
		return response.CreateGameResponse{GameID: string(gameID), PlayerID: string(playerID)}, nil

	case ActionJoinGame:
		var args joinArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		playerID, err := h.controller.JoinGame(ctx, model.GameID(args.GameID), args.PlayerName)
		if err != nil {
			return nil, err
		}
		return response.JoinGameResponse{PlayerID: string(playerID)}, nil

	case ActionStartGame:
		var args startArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		roles := make([]model.Role, len(args.RoleList))
		for i, role := range args.RoleList {
			roles[i] = model.Role(role)
		}
		return empty, h.controller.StartGame(ctx, model.GameID(args.GameID), model.PlayerID(args.PlayerID), args.PlayerName, roles, args.PlayerOrder)

	case ActionProposeQuest:
		var args proposeArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return empty, h.controller.ProposeQuest(ctx, model.QuestID(args.QuestID), model.PlayerID(args.PlayerID), args.PlayerName, args.Members)

	case ActionVoteForProposal:
		var args voteArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return empty, h.controller.VoteForProposal(ctx, model.QuestID(args.QuestID), model.PlayerID(args.PlayerID), args.PlayerName, args.Vote)

	case ActionVoteInQuest:
		var args voteArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return empty, h.controller.VoteInQuest(ctx, model.QuestID(args.QuestID), model.PlayerID(args.PlayerID), args.PlayerName, args.Vote)

	case ActionAssassinate:
		var args assassinateArgs
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		return empty, h.controller.Assassinate(ctx, model.GameID(args.GameID), model.PlayerID(args.PlayerID), args.PlayerName, args.Target)

	case ActionSubscribe:
		var args request.SubscribeRequest
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		ch := notifier.Channel{GameID: model.GameID(args.GameID), PlayerID: model.PlayerID(args.PlayerID)}
		return h.notifier.Subscribe(ctx, c.id, ch, c.push)

	case ActionUnsubscribe:
		var args request.SubscribeRequest
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		ch := notifier.Channel{GameID: model.GameID(args.GameID), PlayerID: model.PlayerID(args.PlayerID)}
		return response.UnsubscribeResponse{Removed: h.notifier.Unsubscribe(c.id, ch)}, nil

	case ActionFetchState:
		// rejoin: resolve the game from the player id, then resubscribe this connection
		var args request.FetchStateRequest
		if err := decodeArgs(req, &args); err != nil {
			return nil, err
		}
		view, err := h.controller.FetchState(ctx, model.PlayerID(args.PlayerID))
		if err != nil {
			return nil, err
		}
		ch := notifier.Channel{GameID: view.ID, PlayerID: model.PlayerID(args.PlayerID)}
		return h.notifier.Subscribe(ctx, c.id, ch, c.push)

	default:
		return nil, apierr.NewUnsupportedActionError(req.Action)
	}
}

func decodeArgs(req Request, v any) error {
	if len(req.Args) == 0 {
		return apierr.NewInvalidRequestError("missing args")
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return apierr.NewInvalidRequestError("invalid args for " + req.Action)
	}
	return nil
}

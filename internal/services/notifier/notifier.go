// Package notifier fans committed game changes out to live per-player subscriptions.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/knowledge"
	"github.com/mcoot/avalon/internal/storage"
)

// ErrFeedClosed is returned by Run when the store's change feed ends before the context
var ErrFeedClosed = errors.New("change feed closed")

// Callback receives the view pushed to one subscriber. It must not block.
type Callback func(view *model.GameView) error

// Channel is one player's view of one game
type Channel struct {
	GameID   model.GameID
	PlayerID model.PlayerID
}

func (c Channel) String() string {
	return fmt.Sprintf("%s/%s", c.GameID, c.PlayerID)
}

// Notifier is the subscription registry. A subscriber holds at most one
// registration per channel; subscribing again replaces the callback.
type Notifier struct {
	storage storage.Storage
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu          sync.RWMutex
	channels    map[model.GameID]map[model.PlayerID]map[string]Callback
	subscribers map[string]map[Channel]struct{}
}

// New creates an empty Notifier
func New(storage storage.Storage, metrics *metrics.Metrics, logger *slog.Logger) *Notifier {
	return &Notifier{
		storage:     storage,
		metrics:     metrics,
		logger:      logger.With(slog.String("component", "notifier")),
		channels:    make(map[model.GameID]map[model.PlayerID]map[string]Callback),
		subscribers: make(map[string]map[Channel]struct{}),
	}
}

// Subscribe registers cb for the channel and returns the view as of registration.
// If the player cannot see the game, the channel is left as it was before the call.
func (n *Notifier) Subscribe(ctx context.Context, subscriberID string, ch Channel, cb Callback) (*model.GameView, error) {
	prev := n.add(subscriberID, ch, cb)

	game, err := n.storage.GetGame(ctx, ch.GameID)
	if err != nil {
		n.rollback(subscriberID, ch, prev)
		return nil, err
	}
	view, err := knowledge.Project(game, ch.PlayerID)
	if err != nil {
		n.rollback(subscriberID, ch, prev)
		return nil, err
	}

	n.logger.Debug("subscribed",
		slog.String("subscriber", subscriberID),
		slog.String("channel", ch.String()),
	)
	return view, nil
}

// Unsubscribe removes one registration, reporting whether it existed
func (n *Notifier) Unsubscribe(subscriberID string, ch Channel) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subscribers[subscriberID][ch]; !ok {
		return false
	}
	n.remove(subscriberID, ch)
	n.updateGauges()
	return true
}

// UnsubscribeAll removes every registration held by the subscriber and returns how many there were
func (n *Notifier) UnsubscribeAll(subscriberID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	chans := n.subscribers[subscriberID]
	count := len(chans)
	for ch := range chans {
		n.remove(subscriberID, ch)
	}
	n.updateGauges()

	if count > 0 {
		n.logger.Debug("subscriber removed",
			slog.String("subscriber", subscriberID),
			slog.Int("channels", count),
		)
	}
	return count
}

// Publish projects game for every subscribed player and invokes their callbacks.
// A failing projection or callback is logged and skipped.
func (n *Notifier) Publish(game *model.Game) {
	targets := n.snapshot(game.ID)
	for playerID, callbacks := range targets {
		view, err := knowledge.Project(game, playerID)
		if err != nil {
			n.metrics.PushFailures.Add(float64(len(callbacks)))
			n.logger.Warn("projection failed",
				slog.String("game_id", string(game.ID)),
				slog.String("player_id", string(playerID)),
				slog.String("error", err.Error()),
			)
			continue
		}
		for subscriberID, cb := range callbacks {
			n.deliver(subscriberID, Channel{GameID: game.ID, PlayerID: playerID}, cb, view)
		}
	}
}

// Run publishes every committed change until ctx is cancelled
func (n *Notifier) Run(ctx context.Context) error {
	changes, err := n.storage.Changes(ctx)
	if err != nil {
		return err
	}

	n.logger.Info("notifier started")
	for {
		select {
		case <-ctx.Done():
			n.logger.Info("notifier stopped")
			return nil
		case game, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					n.logger.Info("notifier stopped")
					return nil
				}
				return ErrFeedClosed
			}
			n.Publish(game)
		}
	}
}

// SubscriberCount returns the number of subscribers holding at least one registration
func (n *Notifier) SubscriberCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subscribers)
}

// ChannelCount returns the number of channels with at least one subscriber
func (n *Notifier) ChannelCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	count := 0
	for _, players := range n.channels {
		count += len(players)
	}
	return count
}

// add registers cb and returns the callback it replaced, if any
func (n *Notifier) add(subscriberID string, ch Channel, cb Callback) Callback {
	n.mu.Lock()
	defer n.mu.Unlock()

	players, ok := n.channels[ch.GameID]
	if !ok {
		players = make(map[model.PlayerID]map[string]Callback)
		n.channels[ch.GameID] = players
	}
	callbacks, ok := players[ch.PlayerID]
	if !ok {
		callbacks = make(map[string]Callback)
		players[ch.PlayerID] = callbacks
	}
	prev := callbacks[subscriberID]
	callbacks[subscriberID] = cb

	chans, ok := n.subscribers[subscriberID]
	if !ok {
		chans = make(map[Channel]struct{})
		n.subscribers[subscriberID] = chans
	}
	chans[ch] = struct{}{}
	n.updateGauges()
	return prev
}

// rollback undoes a failed add: a replaced callback is put back, a new registration is dropped
func (n *Notifier) rollback(subscriberID string, ch Channel, prev Callback) {
	if prev == nil {
		n.Unsubscribe(subscriberID, ch)
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if callbacks, ok := n.channels[ch.GameID][ch.PlayerID]; ok {
		if _, registered := callbacks[subscriberID]; registered {
			callbacks[subscriberID] = prev
		}
	}
}

// remove drops one registration and any bookkeeping it leaves empty. Caller holds mu.
func (n *Notifier) remove(subscriberID string, ch Channel) {
	if players, ok := n.channels[ch.GameID]; ok {
		if callbacks, ok := players[ch.PlayerID]; ok {
			delete(callbacks, subscriberID)
			if len(callbacks) == 0 {
				delete(players, ch.PlayerID)
			}
		}
		if len(players) == 0 {
			delete(n.channels, ch.GameID)
		}
	}
	if chans, ok := n.subscribers[subscriberID]; ok {
		delete(chans, ch)
		if len(chans) == 0 {
			delete(n.subscribers, subscriberID)
		}
	}
}

// snapshot copies the callbacks for a game so delivery runs without the lock
func (n *Notifier) snapshot(gameID model.GameID) map[model.PlayerID]map[string]Callback {
	n.mu.RLock()
	defer n.mu.RUnlock()

	players := n.channels[gameID]
	out := make(map[model.PlayerID]map[string]Callback, len(players))
	for playerID, callbacks := range players {
		cp := make(map[string]Callback, len(callbacks))
		for id, cb := range callbacks {
			cp[id] = cb
		}
		out[playerID] = cp
	}
	return out
}

func (n *Notifier) deliver(subscriberID string, ch Channel, cb Callback, view *model.GameView) {
	defer func() {
		if r := recover(); r != nil {
			n.metrics.PushFailures.Inc()
			n.logger.Error("subscriber callback panicked",
				slog.String("subscriber", subscriberID),
				slog.String("channel", ch.String()),
				slog.Any("panic", r),
			)
		}
	}()

	if err := cb(view); err != nil {
		n.metrics.PushFailures.Inc()
		n.logger.Warn("push failed",
			slog.String("subscriber", subscriberID),
			slog.String("channel", ch.String()),
			slog.String("error", err.Error()),
		)
		return
	}
	n.metrics.Pushes.Inc()
}

// updateGauges refreshes the subscription gauges. Caller holds mu.
func (n *Notifier) updateGauges() {
	registrations := 0
	for _, chans := range n.subscribers {
		registrations += len(chans)
	}
	channels := 0
	for _, players := range n.channels {
		channels += len(players)
	}
	n.metrics.Subscriptions.Set(float64(registrations))
	n.metrics.Channels.Set(float64(channels))
}

package memory

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
)

// Storage is an in-memory implementation of the storage interface.
// Games are kept serialized so callers never share memory with the stored record.
type Storage struct {
	mu sync.RWMutex

	games       map[model.GameID][]byte
	questIndex  map[model.QuestID]model.GameID
	playerIndex map[model.PlayerID]model.GameID

	listenersMu sync.Mutex
	listeners   map[*storage.Feed]struct{}

	logger *slog.Logger
}

// New creates a new in-memory storage instance
func New(logger *slog.Logger) *Storage {
	return &Storage{
		games:       make(map[model.GameID][]byte),
		questIndex:  make(map[model.QuestID]model.GameID),
		playerIndex: make(map[model.PlayerID]model.GameID),
		listeners:   make(map[*storage.Feed]struct{}),
		logger:      logger.With(slog.String("component", "memory_storage")),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	game.Version = 1
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, exists := s.games[game.ID]; exists {
		s.mu.Unlock()
		return model.ErrGameExists
	}
	s.games[game.ID] = data
	s.index(game)
	s.notify(data)
	s.mu.Unlock()

	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	data, ok := s.games[id]
	s.mu.RUnlock()
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return decode(data)
}

// UpdateGame holds the write lock across decode, mutate and encode, so the mutation is atomic
func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate storage.MutateFunc) (*model.Game, error) {
	s.mu.Lock()
	data, ok := s.games[id]
	if !ok {
		s.mu.Unlock()
		return nil, model.ErrGameNotFound
	}

	game, err := decode(data)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := mutate(game); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	game.Version++

	updated, err := json.Marshal(game)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.games[id] = updated
	s.index(game)
	s.notify(updated)
	s.mu.Unlock()

	return game, nil
}

func (s *Storage) GameIDForQuest(ctx context.Context, id model.QuestID) (model.GameID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gameID, ok := s.questIndex[id]
	if !ok {
		return "", model.ErrQuestNotFound
	}
	return gameID, nil
}

func (s *Storage) GameIDForPlayer(ctx context.Context, id model.PlayerID) (model.GameID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gameID, ok := s.playerIndex[id]
	if !ok {
		return "", model.ErrPlayerNotFound
	}
	return gameID, nil
}

// Changes registers a listener that receives every committed game until ctx is done
func (s *Storage) Changes(ctx context.Context) (<-chan *model.Game, error) {
	feed := storage.NewFeed()

	s.listenersMu.Lock()
	s.listeners[feed] = struct{}{}
	s.listenersMu.Unlock()

	go func() {
		<-ctx.Done()
		s.listenersMu.Lock()
		delete(s.listeners, feed)
		s.listenersMu.Unlock()
		feed.Close()
	}()

	return feed.C(), nil
}

// Close releases all change listeners
func (s *Storage) Close() error {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for feed := range s.listeners {
		delete(s.listeners, feed)
		feed.Close()
	}
	return nil
}

// index must be called with mu held
func (s *Storage) index(game *model.Game) {
	for _, p := range game.Players {
		s.playerIndex[p.ID] = game.ID
	}
	for _, q := range game.Quests {
		s.questIndex[q.ID] = game.ID
	}
}

// notify is called with mu held so listeners observe commits in order
func (s *Storage) notify(data []byte) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	for feed := range s.listeners {
		game, err := decode(data)
		if err != nil {
			s.logger.Error("failed to decode change", slog.String("error", err.Error()))
			return
		}
		feed.Publish(game)
	}
}

func decode(data []byte) (*model.Game, error) {
	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}
	return &game, nil
}

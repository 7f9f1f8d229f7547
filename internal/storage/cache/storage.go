package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
)

type entry struct {
	version int64
	data    []byte
}

// Storage wraps another backend with an LRU cache of recently read games.
// Writes always go to the backend; the cache only ever moves forward in version,
// fed by local writes and by the backend's change feed.
type Storage struct {
	next storage.Storage

	mu    sync.Mutex
	games *lru.Cache[model.GameID, entry]

	logger *slog.Logger
}

// New wraps next with a cache holding up to size games
func New(next storage.Storage, size int, logger *slog.Logger) (*Storage, error) {
	games, err := lru.New[model.GameID, entry](size)
	if err != nil {
		return nil, err
	}
	return &Storage{
		next:   next,
		games:  games,
		logger: logger.With(slog.String("component", "game_cache")),
	}, nil
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	if err := s.next.CreateGame(ctx, game); err != nil {
		return err
	}
	s.remember(game)
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.Lock()
	cached, ok := s.games.Get(id)
	s.mu.Unlock()
	if ok {
		var game model.Game
		if err := json.Unmarshal(cached.data, &game); err == nil {
			return &game, nil
		}
	}

	game, err := s.next.GetGame(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(game)
	return game, nil
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate storage.MutateFunc) (*model.Game, error) {
	game, err := s.next.UpdateGame(ctx, id, mutate)
	if err != nil {
		return nil, err
	}
	s.remember(game)
	return game, nil
}

func (s *Storage) GameIDForQuest(ctx context.Context, id model.QuestID) (model.GameID, error) {
	return s.next.GameIDForQuest(ctx, id)
}

func (s *Storage) GameIDForPlayer(ctx context.Context, id model.PlayerID) (model.GameID, error) {
	return s.next.GameIDForPlayer(ctx, id)
}

// Changes forwards the backend's feed, refreshing cached games on the way through
func (s *Storage) Changes(ctx context.Context) (<-chan *model.Game, error) {
	in, err := s.next.Changes(ctx)
	if err != nil {
		return nil, err
	}

	feed := storage.NewFeed()
	go func() {
		defer feed.Close()
		for game := range in {
			s.remember(game)
			feed.Publish(game)
		}
	}()
	return feed.C(), nil
}

func (s *Storage) Close() error {
	s.games.Purge()
	return s.next.Close()
}

// Len returns the number of cached games
func (s *Storage) Len() int {
	return s.games.Len()
}

// remember caches game unless a newer version is already held
func (s *Storage) remember(game *model.Game) {
	data, err := json.Marshal(game)
	if err != nil {
		s.logger.Warn("failed to cache game", slog.String("game_id", string(game.ID)), slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.games.Peek(game.ID); ok && cur.version >= game.Version {
		return
	}
	s.games.Add(game.ID, entry{version: game.Version, data: data})
}

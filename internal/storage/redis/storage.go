package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
// Mutations run as WATCH/MULTI/EXEC optimistic transactions on the game key,
// and the committed document is published in the same transaction.
type Storage struct {
	client *redis.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a new Redis storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, model.Infrastructure("ping redis", err)
	}

	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config, logger *slog.Logger) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "redis_storage")),
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	game.Version = 1
	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	key := gameKey(game.ID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return model.Infrastructure("check game", err)
		}
		if n > 0 {
			return model.ErrGameExists
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, game, data)
			return nil
		})
		return err
	}

	return s.watch(ctx, key, txf)
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, model.Infrastructure("get game", err)
	}
	return decode(data)
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate storage.MutateFunc) (*model.Game, error) {
	key := gameKey(id)

	var result *model.Game
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return model.Infrastructure("get game", err)
		}

		game, err := decode(data)
		if err != nil {
			return err
		}
		if err := mutate(game); err != nil {
			return err
		}
		game.Version++

		updated, err := json.Marshal(game)
		if err != nil {
			return err
		}

		// EXEC fails with TxFailedErr if the key changed since WATCH
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			s.write(ctx, pipe, game, updated)
			return nil
		})
		if err != nil {
			return err
		}

		result = game
		return nil
	}

	if err := s.watch(ctx, key, txf); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Storage) GameIDForQuest(ctx context.Context, id model.QuestID) (model.GameID, error) {
	gameID, err := s.client.Get(ctx, questIndexKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrQuestNotFound
		}
		return "", model.Infrastructure("get quest index", err)
	}
	return model.GameID(gameID), nil
}

func (s *Storage) GameIDForPlayer(ctx context.Context, id model.PlayerID) (model.GameID, error) {
	gameID, err := s.client.Get(ctx, playerIndexKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", model.ErrPlayerNotFound
		}
		return "", model.Infrastructure("get player index", err)
	}
	return model.GameID(gameID), nil
}

// Changes subscribes to the change channel. The subscription is confirmed before returning,
// so every commit after this call is delivered.
func (s *Storage) Changes(ctx context.Context) (<-chan *model.Game, error) {
	pubsub := s.client.Subscribe(ctx, changesChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, model.Infrastructure("subscribe changes", err)
	}

	feed := storage.NewFeed()
	go func() {
		defer feed.Close()
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				game, err := decode([]byte(msg.Payload))
				if err != nil {
					s.logger.Error("failed to decode change", slog.String("error", err.Error()))
					continue
				}
				feed.Publish(game)
			}
		}
	}()

	return feed.C(), nil
}

// watch runs txf under WATCH, retrying when another client commits to the key first
func (s *Storage) watch(ctx context.Context, key string, txf func(tx *redis.Tx) error) error {
	for attempt := 0; attempt < storage.MaxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug("write conflict, retrying", slog.String("key", key), slog.Int("attempt", attempt+1))
			continue
		}
		return model.Infrastructure("update game", err)
	}
	return model.ErrContention
}

// write queues the document, its index entries and the change notification
func (s *Storage) write(ctx context.Context, pipe redis.Pipeliner, game *model.Game, data []byte) {
	ttl := s.cfg.GameTTL
	pipe.Set(ctx, gameKey(game.ID), data, ttl)
	for _, p := range game.Players {
		pipe.Set(ctx, playerIndexKey(p.ID), string(game.ID), ttl)
	}
	for _, q := range game.Quests {
		pipe.Set(ctx, questIndexKey(q.ID), string(game.ID), ttl)
	}
	pipe.Publish(ctx, changesChannel, data)
}

func decode(data []byte) (*model.Game, error) {
	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, model.Infrastructure("decode game", err)
	}
	return &game, nil
}

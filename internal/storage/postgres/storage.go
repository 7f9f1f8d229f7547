package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
)

var errVersionConflict = errors.New("version conflict")

// Storage is a PostgreSQL-backed implementation of the storage interface.
// Each game is one row; updates compare-and-swap on its version column and
// NOTIFY inside the same transaction, so listeners only hear about commits.
type Storage struct {
	db     *gorm.DB
	cfg    Config
	logger *slog.Logger
}

// New opens the database, migrates the schema and returns a storage instance
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	gormLog := gormlogger.New(
		slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(gormpostgres.Open(cfg.DSN), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, model.Infrastructure("open postgres", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, model.Infrastructure("open postgres", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := autoMigrate(db); err != nil {
		return nil, model.Infrastructure("migrate postgres", err)
	}

	return &Storage{
		db:     db,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "postgres_storage")),
	}, nil
}

// Close closes the database connection pool
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) CreateGame(ctx context.Context, game *model.Game) error {
	game.Version = 1
	doc, err := json.Marshal(game)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := gameRecord{
			ID:       string(game.ID),
			Version:  1,
			Document: string(doc),
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return model.ErrGameExists
			}
			return err
		}
		return s.commit(tx, game)
	})
	return model.Infrastructure("create game", err)
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	var rec gameRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrGameNotFound
		}
		return nil, model.Infrastructure("get game", err)
	}
	return decode(rec.Document)
}

func (s *Storage) UpdateGame(ctx context.Context, id model.GameID, mutate storage.MutateFunc) (*model.Game, error) {
	for attempt := 0; attempt < storage.MaxUpdateAttempts; attempt++ {
		var result *model.Game
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var rec gameRecord
			if err := tx.First(&rec, "id = ?", string(id)).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return model.ErrGameNotFound
				}
				return err
			}

			game, err := decode(rec.Document)
			if err != nil {
				return err
			}
			if err := mutate(game); err != nil {
				return err
			}
			game.Version = rec.Version + 1

			doc, err := json.Marshal(game)
			if err != nil {
				return err
			}

			res := tx.Model(&gameRecord{}).
				Where("id = ? AND version = ?", rec.ID, rec.Version).
				Updates(map[string]interface{}{
					"version":    rec.Version + 1,
					"document":   string(doc),
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			if err := s.commit(tx, game); err != nil {
				return err
			}
			result = game
			return nil
		})

		if errors.Is(err, errVersionConflict) {
			s.logger.Debug("write conflict, retrying", slog.String("game_id", string(id)), slog.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, model.Infrastructure("update game", err)
		}
		return result, nil
	}
	return nil, model.ErrContention
}

func (s *Storage) GameIDForQuest(ctx context.Context, id model.QuestID) (model.GameID, error) {
	var rec questIndexRecord
	if err := s.db.WithContext(ctx).First(&rec, "quest_id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", model.ErrQuestNotFound
		}
		return "", model.Infrastructure("get quest index", err)
	}
	return model.GameID(rec.GameID), nil
}

func (s *Storage) GameIDForPlayer(ctx context.Context, id model.PlayerID) (model.GameID, error) {
	var rec playerIndexRecord
	if err := s.db.WithContext(ctx).First(&rec, "player_id = ?", string(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", model.ErrPlayerNotFound
		}
		return "", model.Infrastructure("get player index", err)
	}
	return model.GameID(rec.GameID), nil
}

// Changes listens for commit notifications and loads each notified game.
// A game updated twice in quick succession may be delivered at its latest version twice.
func (s *Storage) Changes(ctx context.Context) (<-chan *model.Game, error) {
	listener := pq.NewListener(s.cfg.DSN, s.cfg.ListenerMinReconnect, s.cfg.ListenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.logger.Warn("change listener event", slog.Int("event", int(ev)), slog.String("error", err.Error()))
			}
		})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		return nil, model.Infrastructure("listen changes", err)
	}

	feed := storage.NewFeed()
	go func() {
		defer feed.Close()
		defer listener.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				// nil after a reconnect; changes during the gap are lost
				if n == nil {
					continue
				}
				game, err := s.GetGame(ctx, model.GameID(n.Extra))
				if err != nil {
					s.logger.Error("failed to load changed game", slog.String("game_id", n.Extra), slog.String("error", err.Error()))
					continue
				}
				feed.Publish(game)
			}
		}
	}()

	return feed.C(), nil
}

// commit writes index rows and queues the notification inside tx
func (s *Storage) commit(tx *gorm.DB, game *model.Game) error {
	players := make([]playerIndexRecord, 0, len(game.Players))
	for _, p := range game.Players {
		players = append(players, playerIndexRecord{PlayerID: string(p.ID), GameID: string(game.ID)})
	}
	if len(players) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&players).Error; err != nil {
			return err
		}
	}

	quests := make([]questIndexRecord, 0, len(game.Quests))
	for _, q := range game.Quests {
		quests = append(quests, questIndexRecord{QuestID: string(q.ID), GameID: string(game.ID)})
	}
	if len(quests) > 0 {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&quests).Error; err != nil {
			return err
		}
	}

	return tx.Exec("SELECT pg_notify(?, ?)", notifyChannel, string(game.ID)).Error
}

func decode(doc string) (*model.Game, error) {
	var game model.Game
	if err := json.Unmarshal([]byte(doc), &game); err != nil {
		return nil, model.Infrastructure("decode game", err)
	}
	return &game, nil
}

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
	"github.com/mcoot/avalon/internal/storage/memory"
	"github.com/mcoot/avalon/internal/storage/storagetest"
	"github.com/mcoot/avalon/internal/testutil"
)

func TestStorageContract(t *testing.T) {
	suite.Run(t, &storagetest.Suite{
		NewStorage: func(t *testing.T) storage.Storage {
			s, err := New(memory.New(testutil.NopLogger()), 16, testutil.NopLogger())
			require.NoError(t, err)
			return s
		},
	})
}

type CacheSuite struct {
	suite.Suite
	backend *memory.Storage
	cache   *Storage
	ctx     context.Context
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.backend = memory.New(testutil.NopLogger())
	cache, err := New(s.backend, 2, testutil.NopLogger())
	s.Require().NoError(err)
	s.cache = cache
	s.ctx = context.Background()
}

func (s *CacheSuite) newGame(id model.GameID) *model.Game {
	return model.NewGame(id, model.PlayerID(id+"-p1"), "Alice", time.Now())
}

func (s *CacheSuite) TestRejectsNonPositiveSize() {
	_, err := New(s.backend, 0, testutil.NopLogger())
	s.Error(err)
}

func (s *CacheSuite) TestEvictsLeastRecentlyUsed() {
	for _, id := range []model.GameID{"g1", "g2", "g3"} {
		s.Require().NoError(s.cache.CreateGame(s.ctx, s.newGame(id)))
	}
	s.Equal(2, s.cache.Len())

	// evicted games are still served from the backend
	game, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(model.GameID("g1"), game.ID)
}

func (s *CacheSuite) TestServesCachedCopy() {
	s.Require().NoError(s.cache.CreateGame(s.ctx, s.newGame("g1")))

	first, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	first.Creator = "Mallory"

	second, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("Alice", second.Creator)
}

func (s *CacheSuite) TestChangeFeedRefreshesCache() {
	s.Require().NoError(s.cache.CreateGame(s.ctx, s.newGame("g1")))

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	changes, err := s.cache.Changes(ctx)
	s.Require().NoError(err)

	// a write that bypasses the cache, as another server process would
	_, err = s.backend.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return nil
	})
	s.Require().NoError(err)

	select {
	case <-changes:
	case <-time.After(time.Second):
		s.FailNow("timed out waiting for change")
	}

	game, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Len(game.Players, 2)
}

func (s *CacheSuite) TestOlderVersionDoesNotReplaceNewer() {
	s.Require().NoError(s.cache.CreateGame(s.ctx, s.newGame("g1")))
	stale, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)

	_, err = s.cache.UpdateGame(s.ctx, "g1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return nil
	})
	s.Require().NoError(err)

	s.cache.remember(stale)

	game, err := s.cache.GetGame(s.ctx, "g1")
	s.Require().NoError(err)
	s.Len(game.Players, 2)
}

// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
)

// Suite runs the storage contract against a backend built by NewStorage for each test
type Suite struct {
	suite.Suite
	NewStorage func(t *testing.T) storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *Suite) SetupTest() {
	s.Storage = s.NewStorage(s.T())
	s.Ctx = context.Background()
}

func (s *Suite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

func (s *Suite) newGame(id model.GameID) *model.Game {
	return model.NewGame(id, model.PlayerID(fmt.Sprintf("%s-creator", id)), "Alice", time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func (s *Suite) TestCreateAndGetGame() {
	err := s.Storage.CreateGame(s.Ctx, s.newGame("game-1"))
	s.Require().NoError(err)

	game, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), game.ID)
	s.Equal(int64(1), game.Version)
	s.Equal("Alice", game.Creator)
	s.Equal([]string{"Alice"}, game.PlayerNames())
}

func (s *Suite) TestCreateGameTwiceConflicts() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	err := s.Storage.CreateGame(s.Ctx, s.newGame("game-1"))
	s.ErrorIs(err, model.ErrGameExists)
	s.ErrorIs(err, model.ErrConflict)
}

func (s *Suite) TestGetGameNotFound() {
	_, err := s.Storage.GetGame(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrGameNotFound)
	s.ErrorIs(err, model.ErrNotFound)
}

func (s *Suite) TestUpdateGameAppliesMutation() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	updated, err := s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return nil
	})
	s.Require().NoError(err)
	s.Equal([]string{"Alice", "Bob"}, updated.PlayerNames())
	s.Equal(int64(2), updated.Version)

	stored, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal([]string{"Alice", "Bob"}, stored.PlayerNames())
}

func (s *Suite) TestUpdateGameRejectedMutationWritesNothing() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	_, err := s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return model.ErrDuplicateName
	})
	s.ErrorIs(err, model.ErrDuplicateName)

	stored, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Equal([]string{"Alice"}, stored.PlayerNames())
	s.Equal(int64(1), stored.Version)

	_, err = s.Storage.GameIDForPlayer(s.Ctx, "p2")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *Suite) TestUpdateGameNotFound() {
	_, err := s.Storage.UpdateGame(s.Ctx, "missing", func(g *model.Game) error { return nil })
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *Suite) TestIndexesFollowUpdates() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	gameID, err := s.Storage.GameIDForPlayer(s.Ctx, "game-1-creator")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), gameID)

	_, err = s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		g.AppendQuest(model.NewQuestAttempt("quest-1", 1, 1, "Alice", 5))
		return nil
	})
	s.Require().NoError(err)

	gameID, err = s.Storage.GameIDForQuest(s.Ctx, "quest-1")
	s.Require().NoError(err)
	s.Equal(model.GameID("game-1"), gameID)

	_, err = s.Storage.GameIDForQuest(s.Ctx, "quest-2")
	s.ErrorIs(err, model.ErrQuestNotFound)
}

func (s *Suite) TestConcurrentUpdatesAreNotLost() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
				g.Players = append(g.Players, model.Player{
					ID:   model.PlayerID(fmt.Sprintf("p%d", i)),
					Name: fmt.Sprintf("Player %d", i),
				})
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.Require().NoError(err)
	}

	stored, err := s.Storage.GetGame(s.Ctx, "game-1")
	s.Require().NoError(err)
	s.Len(stored.Players, writers+1)
	s.Equal(int64(writers+1), stored.Version)
}

func (s *Suite) TestConcurrentPreconditionAdmitsOneWriter() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
				if g.HasPlayerNamed("Bob") {
					return model.ErrDuplicateName
				}
				g.Players = append(g.Players, model.Player{ID: model.PlayerID(fmt.Sprintf("p%d", i)), Name: "Bob"})
				return nil
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.True(errors.Is(err, model.ErrDuplicateName), err)
	}
	s.Equal(1, succeeded)
}

func (s *Suite) TestChangesDeliversCommittedGames() {
	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()

	changes, err := s.Storage.Changes(ctx)
	s.Require().NoError(err)

	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))
	_, err = s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return nil
	})
	s.Require().NoError(err)

	// backends that reload on notify may skip straight to the latest version
	first := s.receive(changes)
	s.Equal(model.GameID("game-1"), first.ID)
	if len(first.Players) == 1 {
		second := s.receive(changes)
		s.Len(second.Players, 2)
	}
}

func (s *Suite) TestChangesSkipsRejectedMutations() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()
	changes, err := s.Storage.Changes(ctx)
	s.Require().NoError(err)

	_, err = s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		return model.ErrGameStarted
	})
	s.Require().Error(err)
	_, err = s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: "p2", Name: "Bob"})
		return nil
	})
	s.Require().NoError(err)

	got := s.receive(changes)
	s.Len(got.Players, 2)
}

func (s *Suite) TestLaggingConsumerReceivesLatestVersion() {
	s.Require().NoError(s.Storage.CreateGame(s.Ctx, s.newGame("game-1")))

	ctx, cancel := context.WithCancel(s.Ctx)
	defer cancel()
	changes, err := s.Storage.Changes(ctx)
	s.Require().NoError(err)

	// more commits than the feed buffers, with nobody reading
	updates := storage.ChangeBufferSize + 10
	var latest *model.Game
	for i := 0; i < updates; i++ {
		latest, err = s.Storage.UpdateGame(s.Ctx, "game-1", func(g *model.Game) error {
			g.CreatedAt = g.CreatedAt.Add(time.Second)
			return nil
		})
		s.Require().NoError(err)
	}
	s.Equal(int64(updates+1), latest.Version)

	seen := int64(0)
	s.Eventually(func() bool {
		for {
			select {
			case g, ok := <-changes:
				if !ok {
					return false
				}
				s.GreaterOrEqual(g.Version, seen)
				seen = g.Version
			default:
				return seen == latest.Version
			}
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func (s *Suite) receive(changes <-chan *model.Game) *model.Game {
	select {
	case g, ok := <-changes:
		s.Require().True(ok, "change feed closed")
		return g
	case <-time.After(5 * time.Second):
		s.FailNow("timed out waiting for change")
		return nil
	}
}

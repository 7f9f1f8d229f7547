package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/storage"
	"github.com/mcoot/avalon/internal/storage/memory"
	"github.com/mcoot/avalon/internal/testutil"
)

// recorder collects pushed views for one subscriber
type recorder struct {
	mu    sync.Mutex
	views []*model.GameView
	err   error
}

func (r *recorder) callback(view *model.GameView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, view)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

func (r *recorder) last() *model.GameView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.views) == 0 {
		return nil
	}
	return r.views[len(r.views)-1]
}

type NotifierSuite struct {
	suite.Suite
	storage  *memory.Storage
	notifier *Notifier
	ctx      context.Context
	game     *model.Game
}

func TestNotifierSuite(t *testing.T) {
	suite.Run(t, new(NotifierSuite))
}

func (s *NotifierSuite) SetupTest() {
	s.storage = memory.New(testutil.NopLogger())
	s.notifier = New(s.storage, metrics.New(), testutil.NopLogger())
	s.ctx = context.Background()

	s.game = model.NewGame("GAME01", "p-alice", "Alice", time.Now())
	s.game.Players = append(s.game.Players, model.Player{ID: "p-bob", Name: "Bob", Seat: 1})
	s.Require().NoError(s.storage.CreateGame(s.ctx, s.game))
}

func (s *NotifierSuite) channel(playerID model.PlayerID) Channel {
	return Channel{GameID: s.game.ID, PlayerID: playerID}
}

func (s *NotifierSuite) addPlayer(name string) {
	_, err := s.storage.UpdateGame(s.ctx, s.game.ID, func(g *model.Game) error {
		g.Players = append(g.Players, model.Player{ID: model.PlayerID("p-" + name), Name: name, Seat: len(g.Players)})
		return nil
	})
	s.Require().NoError(err)
}

func (s *NotifierSuite) TestSubscribeReturnsCurrentView() {
	rec := &recorder{}
	view, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), rec.callback)
	s.Require().NoError(err)

	s.Equal("Bob", view.MyName)
	s.Equal([]string{"Alice", "Bob"}, view.Players)
	s.Equal(1, s.notifier.SubscriberCount())
	s.Equal(1, s.notifier.ChannelCount())
	s.Zero(rec.count())
}

func (s *NotifierSuite) TestSubscribeUnknownPlayerIsRolledBack() {
	_, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("stranger"), (&recorder{}).callback)
	s.ErrorIs(err, model.ErrPlayerNotFound)
	s.Zero(s.notifier.SubscriberCount())
	s.Zero(s.notifier.ChannelCount())

	_, err = s.notifier.Subscribe(s.ctx, "sub-1", Channel{GameID: "NOPE00", PlayerID: "p-bob"}, (&recorder{}).callback)
	s.ErrorIs(err, model.ErrGameNotFound)
	s.Zero(s.notifier.ChannelCount())
}

func (s *NotifierSuite) TestPublishProjectsPerPlayer() {
	alice, bob := &recorder{}, &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "sub-a", s.channel("p-alice"), alice.callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "sub-b", s.channel("p-bob"), bob.callback)
	s.Require().NoError(err)

	s.notifier.Publish(s.game)

	s.Require().Equal(1, alice.count())
	s.Require().Equal(1, bob.count())
	s.Equal("Alice", alice.last().MyName)
	s.Equal("Bob", bob.last().MyName)
}

func (s *NotifierSuite) TestPublishIgnoresOtherGames() {
	rec := &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), rec.callback)
	s.Require().NoError(err)

	other := model.NewGame("GAME02", "p-bob", "Bob", time.Now())
	s.notifier.Publish(other)
	s.Zero(rec.count())
}

func (s *NotifierSuite) TestFailingSubscribersAreIsolated() {
	failing := &recorder{err: errors.New("socket closed")}
	healthy := &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "sub-fail", s.channel("p-alice"), failing.callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "sub-panic", s.channel("p-alice"), func(*model.GameView) error {
		panic("boom")
	})
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "sub-ok", s.channel("p-alice"), healthy.callback)
	s.Require().NoError(err)

	s.NotPanics(func() { s.notifier.Publish(s.game) })
	s.Equal(1, healthy.count())
	s.Equal(1, failing.count())
}

func (s *NotifierSuite) TestResubscribeReplacesCallback() {
	first, second := &recorder{}, &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), first.callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), second.callback)
	s.Require().NoError(err)

	s.notifier.Publish(s.game)
	s.Zero(first.count())
	s.Equal(1, second.count())
	s.Equal(1, s.notifier.ChannelCount())
}

// unreachableStorage fails reads once down is set
type unreachableStorage struct {
	storage.Storage
	down bool
}

func (u *unreachableStorage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	if u.down {
		return nil, fmt.Errorf("%w: connection refused", model.ErrInfrastructure)
	}
	return u.Storage.GetGame(ctx, id)
}

func (s *NotifierSuite) TestFailedResubscribeKeepsExistingRegistration() {
	store := &unreachableStorage{Storage: s.storage}
	n := New(store, metrics.New(), testutil.NopLogger())

	first, second := &recorder{}, &recorder{}
	_, err := n.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), first.callback)
	s.Require().NoError(err)

	store.down = true
	_, err = n.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), second.callback)
	s.ErrorIs(err, model.ErrInfrastructure)

	s.Equal(1, n.SubscriberCount())
	s.Equal(1, n.ChannelCount())

	n.Publish(s.game)
	s.Equal(1, first.count())
	s.Zero(second.count())
}

func (s *NotifierSuite) TestUnsubscribeCollectsEmptyChannels() {
	_, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), (&recorder{}).callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "sub-2", s.channel("p-bob"), (&recorder{}).callback)
	s.Require().NoError(err)

	s.True(s.notifier.Unsubscribe("sub-1", s.channel("p-bob")))
	s.Equal(1, s.notifier.ChannelCount())
	s.False(s.notifier.Unsubscribe("sub-1", s.channel("p-bob")))

	s.True(s.notifier.Unsubscribe("sub-2", s.channel("p-bob")))
	s.Zero(s.notifier.ChannelCount())
	s.Zero(s.notifier.SubscriberCount())
}

func (s *NotifierSuite) TestUnsubscribeAll() {
	rec := &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "conn", s.channel("p-alice"), rec.callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "conn", s.channel("p-bob"), rec.callback)
	s.Require().NoError(err)
	_, err = s.notifier.Subscribe(s.ctx, "other", s.channel("p-bob"), (&recorder{}).callback)
	s.Require().NoError(err)

	s.Equal(2, s.notifier.UnsubscribeAll("conn"))
	s.Equal(1, s.notifier.SubscriberCount())
	s.Equal(1, s.notifier.ChannelCount())

	s.notifier.Publish(s.game)
	s.Zero(rec.count())
	s.Zero(s.notifier.UnsubscribeAll("conn"))
}

func (s *NotifierSuite) TestRunPushesCommittedChanges() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.notifier.Run(ctx) }()

	rec := &recorder{}
	_, err := s.notifier.Subscribe(s.ctx, "sub-1", s.channel("p-bob"), rec.callback)
	s.Require().NoError(err)

	// the feed may attach after the first write, so keep writing until a push lands
	joined := 0
	s.Eventually(func() bool {
		if rec.count() == 0 {
			joined++
			s.addPlayer(fmt.Sprintf("Guest%d", joined))
		}
		return rec.count() > 0
	}, 5*time.Second, 20*time.Millisecond)
	s.Greater(len(rec.last().Players), 2)

	cancel()
	select {
	case err := <-done:
		s.NoError(err)
	case <-time.After(5 * time.Second):
		s.Fail("notifier did not stop")
	}
}

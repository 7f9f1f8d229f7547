package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type GameSuite struct {
	suite.Suite
	now time.Time
}

func TestGameSuite(t *testing.T) {
	suite.Run(t, new(GameSuite))
}

func (s *GameSuite) SetupTest() {
	s.now = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
}

// startedGame builds a started game with the given roles, seated and rotated in name order
func (s *GameSuite) startedGame(roles ...Role) *Game {
	g := NewGame("game-1", "p0", "P0", s.now)
	for i := 1; i < len(roles); i++ {
		g.Players = append(g.Players, Player{ID: PlayerID(fmt.Sprintf("p%d", i)), Name: fmt.Sprintf("P%d", i)})
	}
	for i := range g.Players {
		g.Players[i].Role = roles[i]
		g.Players[i].Seat = i
		g.RotationOrder = append(g.RotationOrder, g.Players[i].Name)
	}
	g.QuestSizes, _ = QuestConfiguration(len(roles))
	g.AppendQuest(NewQuestAttempt("q1", 1, 1, g.NextLeader(), len(roles)))
	return g
}

func resolve(q *QuestAttempt, approve bool, failures int) {
	q.Members = make([]string, q.Size)
	q.RemainingVotes = 0
	if approve {
		q.VoteStatus = 1
	} else {
		q.VoteStatus = -1
		return
	}
	q.RemainingResults = 0
	q.Failures = failures
}

func fivePlayerRoles() []Role {
	return []Role{RoleMerlin, RolePercival, RoleLoyalServant, RoleMorgana, RoleAssassin}
}

func (s *GameSuite) TestNewGameIsNotStarted() {
	g := NewGame("game-1", "p0", "Alice", s.now)

	s.Equal(GameStatusNotStarted, g.Status())
	s.False(g.IsStarted())
	s.Nil(g.Current())
	s.Equal([]string{"Alice"}, g.PlayerNames())
	s.Equal("Alice", g.Creator)
}

func (s *GameSuite) TestStartedGameIsInProgress() {
	g := s.startedGame(fivePlayerRoles()...)

	s.Equal(GameStatusInProgress, g.Status())
	s.Equal("P0", g.Current().Leader)
	s.Empty(g.History())
}

func (s *GameSuite) TestNextLeaderAdvancesPerAttempt() {
	g := s.startedGame(fivePlayerRoles()...)
	s.Equal("P1", g.NextLeader())

	g.AppendQuest(NewQuestAttempt("q2", 1, 2, g.NextLeader(), 5))
	s.Equal("P1", g.Current().Leader)
	s.Equal("P2", g.NextLeader())
	s.Len(g.History(), 1)
}

func (s *GameSuite) TestNextLeaderWraps() {
	g := s.startedGame(fivePlayerRoles()...)
	for i := 2; i <= 5; i++ {
		g.AppendQuest(NewQuestAttempt(QuestID(fmt.Sprintf("q%d", i)), 1, i, g.NextLeader(), 5))
	}
	s.Equal("P4", g.Current().Leader)
	s.Equal("P0", g.NextLeader())
}

func (s *GameSuite) TestFifthRejectedProposalIsEvilWin() {
	g := s.startedGame(fivePlayerRoles()...)
	g.Current().AttemptNumber = MaxAttempts
	resolve(g.Current(), false, 0)

	s.Equal(GameStatusEvilWon, g.Status())
}

func (s *GameSuite) TestEarlierRejectedProposalIsStillInProgress() {
	g := s.startedGame(fivePlayerRoles()...)
	resolve(g.Current(), false, 0)

	s.Equal(GameStatusInProgress, g.Status())
}

func (s *GameSuite) TestThreeFailedQuestsIsEvilWin() {
	g := s.startedGame(fivePlayerRoles()...)
	resolve(g.Current(), true, 1)
	for round := 2; round <= 3; round++ {
		g.AppendQuest(NewQuestAttempt(QuestID(fmt.Sprintf("q%d", round)), round, 1, g.NextLeader(), 5))
		resolve(g.Current(), true, 1)
	}

	s.Equal(GameStatusEvilWon, g.Status())
}

func (s *GameSuite) TestThreePassedQuestsWithAssassinAwaitsAssassination() {
	g := s.startedGame(fivePlayerRoles()...)
	resolve(g.Current(), true, 0)
	for round := 2; round <= 3; round++ {
		g.AppendQuest(NewQuestAttempt(QuestID(fmt.Sprintf("q%d", round)), round, 1, g.NextLeader(), 5))
		resolve(g.Current(), true, 0)
	}

	s.Equal(GameStatusAssassinating, g.Status())

	g.AssassinationTarget = "P1"
	s.Equal(GameStatusGoodWon, g.Status())

	g.AssassinationTarget = "P0"
	s.Equal(GameStatusEvilWon, g.Status())
}

func (s *GameSuite) TestThreePassedQuestsWithoutAssassinIsGoodWin() {
	g := s.startedGame(RoleMerlin, RolePercival, RoleLoyalServant, RoleMorgana, RoleMinion)
	resolve(g.Current(), true, 0)
	for round := 2; round <= 3; round++ {
		g.AppendQuest(NewQuestAttempt(QuestID(fmt.Sprintf("q%d", round)), round, 1, g.NextLeader(), 5))
		resolve(g.Current(), true, 0)
	}

	s.Equal(GameStatusGoodWon, g.Status())
}

func (s *GameSuite) TestQuestTallyIgnoresRejectedAndOpenAttempts() {
	g := s.startedGame(fivePlayerRoles()...)
	resolve(g.Current(), false, 0)
	g.AppendQuest(NewQuestAttempt("q2", 1, 2, g.NextLeader(), 5))
	resolve(g.Current(), true, 1)
	g.AppendQuest(NewQuestAttempt("q3", 2, 1, g.NextLeader(), 5))

	passed, failed := g.QuestTally()
	s.Equal(0, passed)
	s.Equal(1, failed)
}

func (s *GameSuite) TestCloneDoesNotAlias() {
	g := s.startedGame(fivePlayerRoles()...)
	c := g.Clone()

	c.Players[0].Name = "changed"
	c.Current().Members = append(c.Current().Members, "P1")
	c.Current().RemainingVotes--

	s.Equal("P0", g.Players[0].Name)
	s.Empty(g.Current().Members)
	s.Equal(5, g.Current().RemainingVotes)
}

func (s *GameSuite) TestPlayerLookups() {
	g := s.startedGame(fivePlayerRoles()...)

	p, ok := g.PlayerByID("p3")
	s.Require().True(ok)
	s.Equal("P3", p.Name)
	s.Equal(RoleMorgana, p.Role)

	_, ok = g.PlayerByName("nobody")
	s.False(ok)
	s.True(g.HasPlayerNamed("P4"))
	s.True(g.HasRole(RoleAssassin))
	s.False(g.HasRole(RoleOberon))
}

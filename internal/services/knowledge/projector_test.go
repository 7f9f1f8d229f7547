package knowledge

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/avalon/internal/model"
)

type ProjectorSuite struct {
	suite.Suite
	game *model.Game
}

func TestProjectorSuite(t *testing.T) {
	suite.Run(t, new(ProjectorSuite))
}

// SetupTest seats a 7-player game: Merlin, Percival, Servant, Morgana, Mordred, Oberon, Assassin
func (s *ProjectorSuite) SetupTest() {
	roles := []model.Role{
		model.RoleMerlin, model.RolePercival, model.RoleLoyalServant,
		model.RoleMorgana, model.RoleMordred, model.RoleOberon, model.RoleAssassin,
	}
	names := []string{"Alice", "Bob", "Cara", "Dan", "Eve", "Finn", "Gus"}

	s.game = model.NewGame("game-1", "p0", names[0], time.Now())
	for i := 1; i < len(names); i++ {
		s.game.Players = append(s.game.Players, model.Player{ID: model.PlayerID(fmt.Sprintf("p%d", i)), Name: names[i]})
	}
	for i := range s.game.Players {
		s.game.Players[i].Role = roles[i]
		s.game.Players[i].Seat = i
	}
	s.game.RotationOrder = names
	s.game.QuestSizes, _ = model.QuestConfiguration(len(names))
	s.game.AppendQuest(model.NewQuestAttempt("q1", 1, 1, "Alice", len(names)))
}

func (s *ProjectorSuite) project(id model.PlayerID) *model.GameView {
	view, err := Project(s.game, id)
	s.Require().NoError(err)
	return view
}

func (s *ProjectorSuite) names(k model.Knowledge) []string {
	out := []string{}
	for _, p := range k.Players {
		out = append(out, p.Name)
	}
	return out
}

func (s *ProjectorSuite) TestUnknownViewer() {
	_, err := Project(s.game, "nobody")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *ProjectorSuite) TestUnstartedGameHidesRoles() {
	game := model.NewGame("game-2", "p0", "Alice", time.Now())
	view, err := Project(game, "p0")
	s.Require().NoError(err)

	s.Equal(model.GameStatusNotStarted, view.Status)
	s.Empty(view.Roles)
	s.Empty(view.Knowledge.Players)
	s.Nil(view.CurrentQuest)
	s.Empty(view.QuestHistory)
	s.Empty(view.QuestConfiguration)
	s.Equal("Alice", view.MyName)
}

func (s *ProjectorSuite) TestRolesInPlayAreListed() {
	view := s.project("p2")

	s.Len(view.Roles, 7)
	s.Equal(model.AlignmentEvil, view.Roles[model.RoleOberon])
	s.Equal(model.AlignmentGood, view.Roles[model.RolePercival])
	s.Equal(model.RoleLoyalServant, view.MyRole)
	s.Equal([]int{2, 3, 3, 4, 4}, view.QuestConfiguration)
}

func (s *ProjectorSuite) TestMerlinSeesEvilExceptOberon() {
	view := s.project("p0")

	// Morgana, Mordred and the Assassin; Oberon (Finn) stays hidden
	s.Equal([]string{"Dan", "Eve", "Gus"}, s.names(view.Knowledge))
	for _, p := range view.Knowledge.Players {
		s.Equal(model.AlignmentEvil, p.Alignment)
	}
}

func (s *ProjectorSuite) TestPercivalSeesMerlinAndMorganaAsGood() {
	view := s.project("p1")

	s.Equal([]model.KnownPlayer{
		{Name: "Alice", Alignment: model.AlignmentGood},
		{Name: "Dan", Alignment: model.AlignmentGood},
	}, view.Knowledge.Players)
}

func (s *ProjectorSuite) TestLoyalServantAndOberonSeeNobody() {
	s.Empty(s.project("p2").Knowledge.Players)
	s.Empty(s.project("p5").Knowledge.Players)
}

func (s *ProjectorSuite) TestEvilSeeTeammatesButNotOberonOrThemselves() {
	view := s.project("p3")
	s.Equal([]string{"Eve", "Gus"}, s.names(view.Knowledge))

	view = s.project("p6")
	s.Equal([]string{"Dan", "Eve"}, s.names(view.Knowledge))
}

func (s *ProjectorSuite) TestMinionsSeeEachOther() {
	s.game.Players[5].Role = model.RoleMinion
	s.game.Players[6].Role = model.RoleMinion

	view := s.project("p5")
	s.Equal([]string{"Dan", "Eve", "Gus"}, s.names(view.Knowledge))
}

func (s *ProjectorSuite) TestKnowledgeRolesCarryApparentAlignment() {
	merlin := s.project("p0")
	s.Equal(map[model.Role]model.Alignment{
		model.RoleMorgana:  model.AlignmentEvil,
		model.RoleAssassin: model.AlignmentEvil,
	}, merlin.Knowledge.Roles)

	percival := s.project("p1")
	s.Equal(model.AlignmentGood, percival.Knowledge.Roles[model.RoleMorgana])
}

func (s *ProjectorSuite) TestVotesHiddenUntilAllCast() {
	q := s.game.Current()
	q.Members = []string{"Alice", "Bob"}
	q.Votes = []model.Vote{{Player: "Cara", Vote: model.VoteApprove}, {Player: "Bob", Vote: model.VoteReject}}
	q.RemainingVotes = 5
	q.VoteStatus = 0

	view := s.project("p2")
	s.Empty(view.CurrentQuest.Votes)
	s.Require().NotNil(view.CurrentQuest.MyVote)
	s.Equal(model.VoteApprove, *view.CurrentQuest.MyVote)
	s.Equal(model.QuestStatusVotingForProposal, view.CurrentQuest.Status)

	other := s.project("p0")
	s.Nil(other.CurrentQuest.MyVote)
}

func (s *ProjectorSuite) TestVotesRevealedSortedOnceComplete() {
	q := s.game.Current()
	q.Members = []string{"Alice", "Bob"}
	for _, name := range []string{"Gus", "Alice", "Eve", "Bob", "Dan", "Cara", "Finn"} {
		q.Votes = append(q.Votes, model.Vote{Player: name, Vote: model.VoteApprove})
	}
	q.RemainingVotes = 0
	q.VoteStatus = 7

	view := s.project("p2")
	s.Len(view.CurrentQuest.Votes, 7)
	s.Equal("Alice", view.CurrentQuest.Votes[0].Player)
	s.Equal("Gus", view.CurrentQuest.Votes[6].Player)
	s.Equal(model.QuestStatusVotingInQuest, view.CurrentQuest.Status)
}

func (s *ProjectorSuite) TestResultsHiddenUntilAllSubmitted() {
	q := s.game.Current()
	q.Members = []string{"Alice", "Dan"}
	q.RemainingVotes = 0
	q.VoteStatus = 3
	q.Results = []model.Vote{{Player: "Dan", Vote: model.VoteFail}}
	q.RemainingResults = 1
	q.Failures = 1

	dan := s.project("p3")
	s.Empty(dan.CurrentQuest.Results)
	s.Nil(dan.CurrentQuest.Failures)
	s.Require().NotNil(dan.CurrentQuest.MyResult)
	s.Equal(model.VoteFail, *dan.CurrentQuest.MyResult)

	q.Results = append(q.Results, model.Vote{Player: "Alice", Vote: model.VoteSuccess})
	q.RemainingResults = 0

	alice := s.project("p0")
	s.Equal([]int{-1, 1}, alice.CurrentQuest.Results)
	s.Require().NotNil(alice.CurrentQuest.Failures)
	s.Equal(1, *alice.CurrentQuest.Failures)
	s.Equal(model.QuestStatusFailed, alice.CurrentQuest.Status)
}

func (s *ProjectorSuite) TestHistoryExcludesCurrent() {
	q := s.game.Current()
	q.Members = []string{"Alice", "Bob"}
	q.RemainingVotes = 0
	q.VoteStatus = -1
	s.game.AppendQuest(model.NewQuestAttempt("q2", 1, 2, "Bob", 7))

	view := s.project("p0")
	s.Require().Len(view.QuestHistory, 1)
	s.Equal(model.QuestID("q1"), view.QuestHistory[0].ID)
	s.Equal(model.QuestStatusProposalRejected, view.QuestHistory[0].Status)
	s.Equal(model.QuestID("q2"), view.CurrentQuest.ID)
	s.Equal("Bob", view.CurrentQuest.Leader)
}

func (s *ProjectorSuite) TestProjectionDoesNotModifyGame() {
	before := s.game.Clone()
	_ = s.project("p0")
	s.Equal(before.Players, s.game.Players)
	s.Equal(before.Current().Members, s.game.Current().Members)
}

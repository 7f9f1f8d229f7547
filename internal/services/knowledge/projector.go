// Package knowledge projects a game record into what a single player is allowed to see.
package knowledge

import (
	"sort"

	"github.com/mcoot/avalon/internal/model"
)

// Project builds the view of game for the given player.
// It is pure: the game is never modified and nothing is cached.
func Project(game *model.Game, playerID model.PlayerID) (*model.GameView, error) {
	viewer, ok := game.PlayerByID(playerID)
	if !ok {
		return nil, model.ErrPlayerNotFound
	}

	view := &model.GameView{
		ID:                  game.ID,
		Version:             game.Version,
		Creator:             game.Creator,
		Players:             game.PlayerNames(),
		Roles:               map[model.Role]model.Alignment{},
		QuestConfiguration:  questConfiguration(game),
		MyName:              viewer.Name,
		MyRole:              viewer.Role,
		Knowledge:           model.Knowledge{Players: []model.KnownPlayer{}, Roles: map[model.Role]model.Alignment{}},
		QuestHistory:        []model.QuestView{},
		AssassinationTarget: game.AssassinationTarget,
		Status:              game.Status(),
	}

	current := game.Current()
	if current == nil {
		return view, nil
	}

	for _, p := range game.Players {
		view.Roles[p.Role] = p.Role.Alignment()
	}
	view.Knowledge = knowledgeOf(game, viewer)

	cv := projectQuest(current, viewer.Name, len(game.Players))
	view.CurrentQuest = &cv
	for _, q := range game.History() {
		view.QuestHistory = append(view.QuestHistory, projectQuest(q, viewer.Name, len(game.Players)))
	}

	return view, nil
}

func questConfiguration(game *model.Game) []int {
	if len(game.QuestSizes) > 0 {
		return append([]int(nil), game.QuestSizes...)
	}
	sizes, ok := model.QuestConfiguration(len(game.Players))
	if !ok {
		return []int{}
	}
	return sizes
}

// knowledgeOf lists the other players the viewer's role identifies, by apparent alignment only
func knowledgeOf(game *model.Game, viewer *model.Player) model.Knowledge {
	k := model.Knowledge{Players: []model.KnownPlayer{}, Roles: map[model.Role]model.Alignment{}}
	for _, p := range game.Players {
		if p.ID == viewer.ID {
			continue
		}
		alignment, ok := viewer.Role.Identifies(p.Role)
		if !ok {
			continue
		}
		k.Players = append(k.Players, model.KnownPlayer{Name: p.Name, Alignment: alignment})
		k.Roles[p.Role] = alignment
	}
	sort.Slice(k.Players, func(i, j int) bool { return k.Players[i].Name < k.Players[j].Name })
	return k
}

func projectQuest(q *model.QuestAttempt, viewerName string, playerCount int) model.QuestView {
	v := model.QuestView{
		ID:               q.ID,
		RoundNumber:      q.RoundNumber,
		AttemptNumber:    q.AttemptNumber,
		Size:             q.Size,
		Leader:           q.Leader,
		Members:          append([]string{}, q.Members...),
		Votes:            []model.Vote{},
		Results:          []int{},
		RemainingVotes:   q.RemainingVotes,
		RemainingResults: q.RemainingResults,
		Status:           q.Status(playerCount),
	}

	if q.ProposalDecided() {
		v.Votes = append(v.Votes, q.Votes...)
		sort.Slice(v.Votes, func(i, j int) bool { return v.Votes[i].Player < v.Votes[j].Player })
	}

	// mission results stay anonymous even once revealed
	if q.ProposalApproved() && q.RemainingResults == 0 {
		for _, r := range q.Results {
			v.Results = append(v.Results, r.Vote)
		}
		sort.Ints(v.Results)
		failures := q.Failures
		v.Failures = &failures
	}

	if vote, ok := q.VoteOf(viewerName); ok {
		v.MyVote = &vote
	}
	if result, ok := q.ResultOf(viewerName); ok {
		v.MyResult = &result
	}

	return v
}

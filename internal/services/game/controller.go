package game

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/avalon/internal/dependencies/clock"
	"github.com/mcoot/avalon/internal/dependencies/random"
	"github.com/mcoot/avalon/internal/metrics"
	"github.com/mcoot/avalon/internal/model"
	"github.com/mcoot/avalon/internal/services/knowledge"
	"github.com/mcoot/avalon/internal/storage"
)

const (
	// GameIDLength is the length of generated game codes
	GameIDLength = 6
	// GameIDAlphabet is the characters used in game codes (avoid confusing chars)
	GameIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// maxCreateAttempts bounds retries when a generated game code is already taken
	maxCreateAttempts = 10
)

// Action names used in logs and metrics
const (
	ActionCreateGame      = "createGame"
	ActionJoinGame        = "joinGame"
	ActionStartGame       = "startGame"
	ActionProposeQuest    = "proposeQuest"
	ActionVoteForProposal = "voteForProposal"
	ActionVoteInQuest     = "voteInQuest"
	ActionAssassinate     = "assassinate"
)

// Controller is the game state machine. Every transition is a single
// storage.UpdateGame call whose mutate function checks the preconditions
// against the committed record and applies the effect, so concurrent callers
// can never interleave a read and a write.
type Controller struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewController creates a new game Controller
func NewController(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	metrics *metrics.Metrics,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage: storage,
		clock:   clock,
		random:  random,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "game")),
	}
}

// CreateGame creates a game with the caller as creator and sole player
func (c *Controller) CreateGame(ctx context.Context, playerName string) (model.GameID, model.PlayerID, error) {
	started := time.Now()

	name, err := normalizeName(playerName)
	if err != nil {
		c.observe(ActionCreateGame, "", started, err)
		return "", "", err
	}

	playerID := model.PlayerID(c.random.UUID())
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		gameID := model.GameID(c.random.String(GameIDLength, GameIDAlphabet))
		game := model.NewGame(gameID, playerID, name, c.clock.Now())

		err = c.storage.CreateGame(ctx, game)
		if errors.Is(err, model.ErrGameExists) {
			continue
		}
		c.observe(ActionCreateGame, gameID, started, err)
		if err != nil {
			return "", "", err
		}

		c.logger.Info("game created",
			slog.String("game_id", string(gameID)),
			slog.String("creator", name),
		)
		return gameID, playerID, nil
	}

	c.observe(ActionCreateGame, "", started, model.ErrContention)
	return "", "", model.ErrContention
}

// JoinGame adds a player to a game that has not started yet
func (c *Controller) JoinGame(ctx context.Context, gameID model.GameID, playerName string) (model.PlayerID, error) {
	name, err := normalizeName(playerName)
	if err != nil {
		c.observe(ActionJoinGame, gameID, time.Now(), err)
		return "", err
	}

	playerID := model.PlayerID(c.random.UUID())
	err = c.mutate(ctx, ActionJoinGame, gameID, func(g *model.Game) error {
		if g.IsStarted() {
			return model.ErrGameStarted
		}
		if g.HasPlayerNamed(name) {
			return model.ErrDuplicateName
		}
		if len(g.Players) >= model.MaxPlayers {
			return model.ErrGameFull
		}
		g.Players = append(g.Players, model.Player{ID: playerID, Name: name, Seat: len(g.Players)})
		return nil
	})
	if err != nil {
		return "", err
	}

	c.logger.Info("player joined",
		slog.String("game_id", string(gameID)),
		slog.String("player", name),
	)
	return playerID, nil
}

// StartGame deals roles onto playerOrder, picks a random first leader and opens round 1.
// The role list is shuffled and paired with playerOrder by position.
func (c *Controller) StartGame(
	ctx context.Context,
	gameID model.GameID,
	playerID model.PlayerID,
	playerName string,
	roles []model.Role,
	playerOrder []string,
) error {
	if err := validateSetup(roles, playerOrder); err != nil {
		c.observe(ActionStartGame, gameID, time.Now(), err)
		return err
	}

	// Randomness is drawn up front so a retried mutation deals the same hand
	dealt := append([]model.Role(nil), roles...)
	random.Shuffle(c.random, len(dealt), func(i, j int) { dealt[i], dealt[j] = dealt[j], dealt[i] })
	leaderIdx := c.random.Intn(len(playerOrder))
	questID := model.QuestID(c.random.UUID())

	var rotation []string
	err := c.mutate(ctx, ActionStartGame, gameID, func(g *model.Game) error {
		if _, err := authenticate(g, playerID, playerName); err != nil {
			return err
		}
		if g.Creator != playerName {
			return model.ErrNotCreator
		}
		if g.IsStarted() {
			return model.ErrAlreadyStarted
		}
		if !sameNames(g.PlayerNames(), playerOrder) {
			return model.ErrPlayerOrder
		}

		for seat, name := range playerOrder {
			p, _ := g.PlayerByName(name)
			p.Role = dealt[seat]
			p.Seat = seat
		}

		rotation = append(append([]string{}, playerOrder[leaderIdx:]...), playerOrder[:leaderIdx]...)
		g.RotationOrder = rotation
		g.QuestSizes, _ = model.QuestConfiguration(len(playerOrder))
		g.AppendQuest(model.NewQuestAttempt(questID, 1, 1, g.NextLeader(), len(g.Players)))
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("game started",
		slog.String("game_id", string(gameID)),
		slog.Int("player_count", len(playerOrder)),
		slog.String("leader", rotation[0]),
	)
	return nil
}

// ProposeQuest sets the members of the current attempt; only its leader may do so, once
func (c *Controller) ProposeQuest(
	ctx context.Context,
	questID model.QuestID,
	playerID model.PlayerID,
	playerName string,
	members []string,
) error {
	gameID, err := c.gameForQuest(ctx, ActionProposeQuest, questID)
	if err != nil {
		return err
	}

	err = c.mutate(ctx, ActionProposeQuest, gameID, func(g *model.Game) error {
		q, err := currentQuest(g, playerID, playerName, questID)
		if err != nil {
			return err
		}
		if q.Leader != playerName {
			return model.ErrNotLeader
		}
		if q.IsProposed() {
			return model.ErrAlreadyProposed
		}
		if len(members) != q.Size {
			return model.ErrQuestSize
		}
		seen := make(map[string]bool, len(members))
		for _, m := range members {
			if !g.HasPlayerNamed(m) {
				return model.ErrUnknownMember
			}
			if seen[m] {
				return model.ErrDuplicateMember
			}
			seen[m] = true
		}
		q.Members = append([]string{}, members...)
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("quest proposed",
		slog.String("game_id", string(gameID)),
		slog.String("quest_id", string(questID)),
		slog.String("leader", playerName),
		slog.Any("members", members),
	)
	return nil
}

// VoteForProposal records one approve/reject vote. The last vote decides the proposal;
// a rejection before the fifth attempt opens the next attempt in the same step.
func (c *Controller) VoteForProposal(
	ctx context.Context,
	questID model.QuestID,
	playerID model.PlayerID,
	playerName string,
	vote int,
) error {
	if err := validateVote(vote); err != nil {
		c.observe(ActionVoteForProposal, "", time.Now(), err)
		return err
	}

	gameID, err := c.gameForQuest(ctx, ActionVoteForProposal, questID)
	if err != nil {
		return err
	}

	nextID := model.QuestID(c.random.UUID())
	var outcome model.QuestStatus
	err = c.mutate(ctx, ActionVoteForProposal, gameID, func(g *model.Game) error {
		q, err := currentQuest(g, playerID, playerName, questID)
		if err != nil {
			return err
		}
		if !q.IsProposed() {
			return model.ErrNotProposed
		}
		if _, voted := q.VoteOf(playerName); voted || q.RemainingVotes == 0 {
			return model.ErrAlreadyVoted
		}

		q.Votes = append(q.Votes, model.Vote{Player: playerName, Vote: vote})
		q.RemainingVotes--
		q.VoteStatus += vote
		outcome = q.Status(len(g.Players))

		if outcome == model.QuestStatusProposalRejected && q.AttemptNumber < model.MaxAttempts {
			g.AppendQuest(model.NewQuestAttempt(nextID, q.RoundNumber, q.AttemptNumber+1, g.NextLeader(), len(g.Players)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("proposal vote recorded",
		slog.String("game_id", string(gameID)),
		slog.String("quest_id", string(questID)),
		slog.String("player", playerName),
		slog.String("quest_status", string(outcome)),
	)
	return nil
}

// VoteInQuest records one mission result from a quest member. Only evil roles may fail.
// The last result closes the round and, unless the game is decided, opens the next one.
func (c *Controller) VoteInQuest(
	ctx context.Context,
	questID model.QuestID,
	playerID model.PlayerID,
	playerName string,
	vote int,
) error {
	if err := validateVote(vote); err != nil {
		c.observe(ActionVoteInQuest, "", time.Now(), err)
		return err
	}

	gameID, err := c.gameForQuest(ctx, ActionVoteInQuest, questID)
	if err != nil {
		return err
	}

	nextID := model.QuestID(c.random.UUID())
	var outcome model.QuestStatus
	err = c.mutate(ctx, ActionVoteInQuest, gameID, func(g *model.Game) error {
		q, err := currentQuest(g, playerID, playerName, questID)
		if err != nil {
			return err
		}
		if !q.ProposalApproved() {
			return model.ErrProposalNotApproved
		}
		if !q.IsMember(playerName) {
			return model.ErrNotMember
		}
		if _, submitted := q.ResultOf(playerName); submitted || q.RemainingResults == 0 {
			return model.ErrAlreadySubmitted
		}
		p, _ := g.PlayerByID(playerID)
		if vote == model.VoteFail && !p.Role.CanFailQuest() {
			return model.ErrGoodCannotFail
		}

		q.Results = append(q.Results, model.Vote{Player: playerName, Vote: vote})
		q.RemainingResults--
		if vote == model.VoteFail {
			q.Failures++
		}
		outcome = q.Status(len(g.Players))

		if q.RemainingResults == 0 && q.RoundNumber < model.RoundCount {
			passed, failed := g.QuestTally()
			if passed < model.QuestsToWin && failed < model.QuestsToWin {
				g.AppendQuest(model.NewQuestAttempt(nextID, q.RoundNumber+1, 1, g.NextLeader(), len(g.Players)))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("quest result recorded",
		slog.String("game_id", string(gameID)),
		slog.String("quest_id", string(questID)),
		slog.String("player", playerName),
		slog.String("quest_status", string(outcome)),
	)
	return nil
}

// Assassinate records the assassin's single guess at Merlin
func (c *Controller) Assassinate(
	ctx context.Context,
	gameID model.GameID,
	playerID model.PlayerID,
	playerName string,
	target string,
) error {
	var status model.GameStatus
	err := c.mutate(ctx, ActionAssassinate, gameID, func(g *model.Game) error {
		p, err := authenticate(g, playerID, playerName)
		if err != nil {
			return err
		}
		if p.Role != model.RoleAssassin {
			return model.ErrNotAssassin
		}
		if g.AssassinationTarget != "" {
			return model.ErrAlreadyAssassinated
		}
		if g.Status() != model.GameStatusAssassinating {
			return model.ErrNotAssassinating
		}
		if !g.HasPlayerNamed(target) {
			return model.ErrInvalidTarget
		}
		g.AssassinationTarget = target
		status = g.Status()
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("assassination recorded",
		slog.String("game_id", string(gameID)),
		slog.String("target", target),
		slog.String("status", string(status)),
	)
	return nil
}

// GetState returns the game as the given player sees it
func (c *Controller) GetState(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.GameView, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return knowledge.Project(game, playerID)
}

// FetchState resolves a player's game from their id alone, for rejoining after a disconnect
func (c *Controller) FetchState(ctx context.Context, playerID model.PlayerID) (*model.GameView, error) {
	gameID, err := c.storage.GameIDForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return c.GetState(ctx, gameID, playerID)
}

// mutate runs fn as one atomic storage update and records the outcome
func (c *Controller) mutate(ctx context.Context, action string, gameID model.GameID, fn storage.MutateFunc) error {
	started := time.Now()
	_, err := c.storage.UpdateGame(ctx, gameID, func(g *model.Game) error {
		if err := fn(g); err != nil {
			return err
		}
		g.UpdatedAt = c.clock.Now()
		return nil
	})
	c.observe(action, gameID, started, err)
	return err
}

func (c *Controller) gameForQuest(ctx context.Context, action string, questID model.QuestID) (model.GameID, error) {
	gameID, err := c.storage.GameIDForQuest(ctx, questID)
	if err != nil {
		c.observe(action, "", time.Now(), err)
		return "", err
	}
	return gameID, nil
}

func (c *Controller) observe(action string, gameID model.GameID, started time.Time, err error) {
	switch {
	case err == nil:
		c.metrics.ObserveAction(action, metrics.OutcomeOK, started)
	case errors.Is(err, model.ErrInfrastructure) || !model.Categorized(err):
		c.metrics.ObserveAction(action, metrics.OutcomeError, started)
		c.logger.Error("action failed",
			slog.String("action", action),
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
	default:
		c.metrics.ObserveAction(action, metrics.OutcomeRejected, started)
		c.logger.Debug("action rejected",
			slog.String("action", action),
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
	}
}

// authenticate resolves the caller, whose id acts as the credential for their name
func authenticate(g *model.Game, playerID model.PlayerID, playerName string) (*model.Player, error) {
	p, ok := g.PlayerByID(playerID)
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	if p.Name != playerName {
		return nil, model.ErrIdentityMismatch
	}
	return p, nil
}

// currentQuest checks the caller and that questID is the live attempt of a game in progress
func currentQuest(g *model.Game, playerID model.PlayerID, playerName string, questID model.QuestID) (*model.QuestAttempt, error) {
	if _, err := authenticate(g, playerID, playerName); err != nil {
		return nil, err
	}
	switch g.Status() {
	case model.GameStatusInProgress:
	case model.GameStatusNotStarted:
		return nil, model.ErrNotStarted
	default:
		return nil, model.ErrGameOver
	}
	q := g.Current()
	if q == nil || q.ID != questID {
		return nil, model.ErrQuestNotCurrent
	}
	return q, nil
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.ErrInvalidName
	}
	return name, nil
}

func validateVote(vote int) error {
	if vote != model.VoteApprove && vote != model.VoteReject {
		return model.ErrInvalidVote
	}
	return nil
}

// validateSetup checks the parts of a start request that do not depend on the stored game
func validateSetup(roles []model.Role, playerOrder []string) error {
	if _, ok := model.QuestConfiguration(len(playerOrder)); !ok {
		return model.ErrInvalidPlayerCount
	}
	if len(roles) != len(playerOrder) {
		return model.ErrRoleMismatch
	}
	for _, r := range roles {
		if !r.IsValid() {
			return model.ErrUnknownRole
		}
	}
	return nil
}

// sameNames reports whether order lists exactly the names in players, each once
func sameNames(players, order []string) bool {
	if len(players) != len(order) {
		return false
	}
	remaining := make(map[string]bool, len(players))
	for _, p := range players {
		remaining[p] = true
	}
	for _, name := range order {
		if !remaining[name] {
			return false
		}
		delete(remaining, name)
	}
	return true
}

// Interface for dependency injection
type ControllerInterface interface {
	CreateGame(ctx context.Context, playerName string) (model.GameID, model.PlayerID, error)
	JoinGame(ctx context.Context, gameID model.GameID, playerName string) (model.PlayerID, error)
	StartGame(ctx context.Context, gameID model.GameID, playerID model.PlayerID, playerName string, roles []model.Role, playerOrder []string) error
	ProposeQuest(ctx context.Context, questID model.QuestID, playerID model.PlayerID, playerName string, members []string) error
	VoteForProposal(ctx context.Context, questID model.QuestID, playerID model.PlayerID, playerName string, vote int) error
	VoteInQuest(ctx context.Context, questID model.QuestID, playerID model.PlayerID, playerName string, vote int) error
	Assassinate(ctx context.Context, gameID model.GameID, playerID model.PlayerID, playerName string, target string) error
	GetState(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (*model.GameView, error)
	FetchState(ctx context.Context, playerID model.PlayerID) (*model.GameView, error)
}

var _ ControllerInterface = (*Controller)(nil)

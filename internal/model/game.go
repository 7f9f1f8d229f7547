package model

import "time"

// GameID uniquely identifies a game
type GameID string

// GameStatus is the phase of a game, derived from its record on every read
type GameStatus string

const (
	GameStatusNotStarted    GameStatus = "NOT_STARTED"
	GameStatusInProgress    GameStatus = "IN_PROGRESS"
	GameStatusAssassinating GameStatus = "ASSASSINATING"
	GameStatusGoodWon       GameStatus = "GOOD_WON"
	GameStatusEvilWon       GameStatus = "EVIL_WON"
)

const (
	MinPlayers = 5
	MaxPlayers = 10
)

// Game is the single persistent record for one game.
// Quests is append-only; CurrentQuest references its last entry once started.
type Game struct {
	ID            GameID          `json:"id"`
	Version       int64           `json:"version"` // bumped by storage on every committed write
	Creator       string          `json:"creator"`
	Players       []Player        `json:"players"`
	RotationOrder []string        `json:"rotation_order"`
	QuestSizes    []int           `json:"quest_sizes"`
	Quests        []*QuestAttempt `json:"quests"`
	CurrentQuest  QuestID         `json:"current_quest_id,omitempty"`

	AssassinationTarget string `json:"assassination_target,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGame creates an unstarted game with the creator as its only player
func NewGame(id GameID, creatorID PlayerID, creatorName string, now time.Time) *Game {
	return &Game{
		ID:            id,
		Creator:       creatorName,
		Players:       []Player{{ID: creatorID, Name: creatorName}},
		RotationOrder: []string{},
		QuestSizes:    []int{},
		Quests:        []*QuestAttempt{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsStarted returns true once roles are dealt and the first quest exists
func (g *Game) IsStarted() bool {
	return g.CurrentQuest != ""
}

// PlayerByID looks up a player by id
func (g *Game) PlayerByID(id PlayerID) (*Player, bool) {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i], true
		}
	}
	return nil, false
}

// PlayerByName looks up a player by display name
func (g *Game) PlayerByName(name string) (*Player, bool) {
	for i := range g.Players {
		if g.Players[i].Name == name {
			return &g.Players[i], true
		}
	}
	return nil, false
}

// HasPlayerNamed returns true if a player with this name has joined
func (g *Game) HasPlayerNamed(name string) bool {
	_, ok := g.PlayerByName(name)
	return ok
}

// PlayerNames returns player names in join order
func (g *Game) PlayerNames() []string {
	names := make([]string, len(g.Players))
	for i, p := range g.Players {
		names[i] = p.Name
	}
	return names
}

// QuestByID looks up any recorded attempt
func (g *Game) QuestByID(id QuestID) (*QuestAttempt, bool) {
	for _, q := range g.Quests {
		if q.ID == id {
			return q, true
		}
	}
	return nil, false
}

// Current returns the current quest attempt, or nil before the game starts
func (g *Game) Current() *QuestAttempt {
	if !g.IsStarted() {
		return nil
	}
	q, _ := g.QuestByID(g.CurrentQuest)
	return q
}

// History returns every attempt recorded before the current one
func (g *Game) History() []*QuestAttempt {
	if len(g.Quests) == 0 {
		return nil
	}
	return g.Quests[:len(g.Quests)-1]
}

// NextLeader returns the leader for the next attempt to be appended.
// Leadership advances one seat per attempt across the whole game.
func (g *Game) NextLeader() string {
	if len(g.RotationOrder) == 0 {
		return ""
	}
	return g.RotationOrder[len(g.Quests)%len(g.RotationOrder)]
}

// AppendQuest records a new attempt and makes it current
func (g *Game) AppendQuest(q *QuestAttempt) {
	g.Quests = append(g.Quests, q)
	g.CurrentQuest = q.ID
}

// HasRole returns true if any player was dealt the role
func (g *Game) HasRole(role Role) bool {
	for _, p := range g.Players {
		if p.Role == role {
			return true
		}
	}
	return false
}

// QuestTally counts passed and failed attempts across the whole game
func (g *Game) QuestTally() (passed, failed int) {
	n := len(g.Players)
	for _, q := range g.Quests {
		switch q.Status(n) {
		case QuestStatusPassed:
			passed++
		case QuestStatusFailed:
			failed++
		}
	}
	return passed, failed
}

// Status derives the game phase from the record
func (g *Game) Status() GameStatus {
	current := g.Current()
	if current == nil {
		return GameStatusNotStarted
	}

	if current.AttemptNumber == MaxAttempts && current.Status(len(g.Players)) == QuestStatusProposalRejected {
		return GameStatusEvilWon
	}

	passed, failed := g.QuestTally()
	if failed >= QuestsToWin {
		return GameStatusEvilWon
	}

	if passed >= QuestsToWin {
		if !g.HasRole(RoleAssassin) {
			return GameStatusGoodWon
		}
		if g.AssassinationTarget == "" {
			return GameStatusAssassinating
		}
		if merlin, ok := g.playerWithRole(RoleMerlin); ok && merlin.Name == g.AssassinationTarget {
			return GameStatusEvilWon
		}
		return GameStatusGoodWon
	}

	return GameStatusInProgress
}

func (g *Game) playerWithRole(role Role) (*Player, bool) {
	for i := range g.Players {
		if g.Players[i].Role == role {
			return &g.Players[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy so callers can mutate without aliasing
func (g *Game) Clone() *Game {
	c := *g
	c.Players = cloneSlice(g.Players)
	c.RotationOrder = cloneSlice(g.RotationOrder)
	c.QuestSizes = cloneSlice(g.QuestSizes)
	c.Quests = make([]*QuestAttempt, len(g.Quests))
	for i, q := range g.Quests {
		qc := *q
		qc.Members = cloneSlice(q.Members)
		qc.Votes = cloneSlice(q.Votes)
		qc.Results = cloneSlice(q.Results)
		c.Quests[i] = &qc
	}
	return &c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

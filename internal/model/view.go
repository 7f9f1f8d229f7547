package model

// GameView is the game as one player is allowed to see it
type GameView struct {
	ID                  GameID             `json:"id"`
	Creator             string             `json:"creator"`
	Players             []string           `json:"players"`
	Roles               map[Role]Alignment `json:"roles"`
	QuestConfiguration  []int              `json:"quest_configuration"`
	MyName              string             `json:"my_name"`
	MyRole              Role               `json:"my_role,omitempty"`
	Knowledge           Knowledge          `json:"knowledge"`
	CurrentQuest        *QuestView         `json:"current_quest,omitempty"`
	QuestHistory        []QuestView        `json:"quest_history"`
	AssassinationTarget string             `json:"assassination_target,omitempty"`
	Status              GameStatus         `json:"status"`
	Version             int64              `json:"version"` // the record version this view was projected from
}

// Knowledge lists what the viewer's role reveals about the other players
type Knowledge struct {
	Players []KnownPlayer      `json:"players"`
	Roles   map[Role]Alignment `json:"roles"`
}

// KnownPlayer is another player the viewer can identify, tagged with apparent alignment only
type KnownPlayer struct {
	Name      string    `json:"name"`
	Alignment Alignment `json:"alignment"`
}

// QuestView is a quest attempt with other players' ballots hidden until counting completes
type QuestView struct {
	ID               QuestID     `json:"id"`
	RoundNumber      int         `json:"round_number"`
	AttemptNumber    int         `json:"attempt_number"`
	Size             int         `json:"size"`
	Leader           string      `json:"leader"`
	Members          []string    `json:"members"`
	Votes            []Vote      `json:"votes"`
	Results          []int       `json:"results"`
	RemainingVotes   int         `json:"remaining_votes"`
	RemainingResults int         `json:"remaining_results"`
	Failures         *int        `json:"failures,omitempty"`
	MyVote           *int        `json:"my_vote,omitempty"`
	MyResult         *int        `json:"my_result,omitempty"`
	Status           QuestStatus `json:"status"`
}

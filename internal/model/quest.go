package model

// QuestID uniquely identifies a quest attempt
type QuestID string

// QuestStatus is the phase of a single quest attempt, derived from its counters
type QuestStatus string

const (
	QuestStatusProposing         QuestStatus = "PROPOSING_QUEST"
	QuestStatusVotingForProposal QuestStatus = "VOTING_FOR_PROPOSAL"
	QuestStatusProposalRejected  QuestStatus = "PROPOSAL_REJECTED"
	QuestStatusVotingInQuest     QuestStatus = "VOTING_IN_QUEST"
	QuestStatusPassed            QuestStatus = "PASSED"
	QuestStatusFailed            QuestStatus = "FAILED"
)

const (
	// RoundCount is the number of rounds in a game
	RoundCount = 5
	// MaxAttempts is the number of proposals a round allows before evil wins
	MaxAttempts = 5
	// QuestsToWin is the number of passed or failed quests that decides the game
	QuestsToWin = 3

	VoteApprove = 1
	VoteReject  = -1
	VoteSuccess = 1
	VoteFail    = -1
)

// questConfigurations maps player count to the mission size of each round
var questConfigurations = map[int][RoundCount]int{
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

// QuestConfiguration returns the mission sizes for rounds 1-5, or false for an unsupported player count
func QuestConfiguration(playerCount int) ([]int, bool) {
	sizes, ok := questConfigurations[playerCount]
	if !ok {
		return nil, false
	}
	return sizes[:], true
}

// QuestSize returns the mission size for a round (1-indexed)
func QuestSize(playerCount, round int) int {
	sizes, ok := questConfigurations[playerCount]
	if !ok || round < 1 || round > RoundCount {
		return 0
	}
	return sizes[round-1]
}

// Vote is a single player's ballot, either on a proposal or in a mission
type Vote struct {
	Player string `json:"player"`
	Vote   int    `json:"vote"`
}

// QuestAttempt is one leader's proposal cycle within a round
type QuestAttempt struct {
	ID            QuestID  `json:"id"`
	RoundNumber   int      `json:"round_number"`
	AttemptNumber int      `json:"attempt_number"`
	Size          int      `json:"size"`
	Leader        string   `json:"leader"`
	Members       []string `json:"members"`
	Votes         []Vote   `json:"votes"`
	Results       []Vote   `json:"results"`

	RemainingVotes   int `json:"remaining_votes"`
	VoteStatus       int `json:"vote_status"` // running sum of proposal votes
	RemainingResults int `json:"remaining_results"`
	Failures         int `json:"failures"`
}

// NewQuestAttempt creates an unproposed attempt sized for the player count
func NewQuestAttempt(id QuestID, round, attempt int, leader string, playerCount int) *QuestAttempt {
	size := QuestSize(playerCount, round)
	return &QuestAttempt{
		ID:               id,
		RoundNumber:      round,
		AttemptNumber:    attempt,
		Size:             size,
		Leader:           leader,
		Members:          []string{},
		Votes:            []Vote{},
		Results:          []Vote{},
		RemainingVotes:   playerCount,
		RemainingResults: size,
	}
}

// IsProposed returns true once the leader has named the members
func (q *QuestAttempt) IsProposed() bool {
	return len(q.Members) > 0
}

// ProposalDecided returns true once every player has voted on the proposal
func (q *QuestAttempt) ProposalDecided() bool {
	return q.IsProposed() && q.RemainingVotes == 0
}

// ProposalApproved returns true if voting finished with a positive sum
func (q *QuestAttempt) ProposalApproved() bool {
	return q.ProposalDecided() && q.VoteStatus > 0
}

// IsMember returns true if the named player was proposed for this attempt
func (q *QuestAttempt) IsMember(name string) bool {
	for _, m := range q.Members {
		if m == name {
			return true
		}
	}
	return false
}

// VoteOf returns the named player's proposal vote, if cast
func (q *QuestAttempt) VoteOf(name string) (int, bool) {
	for _, v := range q.Votes {
		if v.Player == name {
			return v.Vote, true
		}
	}
	return 0, false
}

// ResultOf returns the named player's mission result, if submitted
func (q *QuestAttempt) ResultOf(name string) (int, bool) {
	for _, r := range q.Results {
		if r.Player == name {
			return r.Vote, true
		}
	}
	return 0, false
}

// FailuresToFail returns how many failing results make this attempt fail.
// Round 4 with more than 6 players needs two.
func (q *QuestAttempt) FailuresToFail(playerCount int) int {
	if q.RoundNumber == 4 && playerCount > 6 {
		return 2
	}
	return 1
}

// Status derives the attempt's phase from its counters
func (q *QuestAttempt) Status(playerCount int) QuestStatus {
	switch {
	case !q.IsProposed():
		return QuestStatusProposing
	case q.RemainingVotes > 0:
		return QuestStatusVotingForProposal
	case q.VoteStatus <= 0:
		return QuestStatusProposalRejected
	case q.RemainingResults > 0:
		return QuestStatusVotingInQuest
	case q.Failures >= q.FailuresToFail(playerCount):
		return QuestStatusFailed
	default:
		return QuestStatusPassed
	}
}

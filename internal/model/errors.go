package model

import (
	"errors"
	"fmt"
)

// Error categories. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthorization  = errors.New("authorization error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrInfrastructure = errors.New("infrastructure error")
)

// Common errors used across the application
var (
	// Lookup errors
	ErrGameNotFound   = fmt.Errorf("%w: game not found", ErrNotFound)
	ErrPlayerNotFound = fmt.Errorf("%w: player not found", ErrNotFound)
	ErrQuestNotFound  = fmt.Errorf("%w: quest not found", ErrNotFound)

	// Storage errors
	ErrGameExists = fmt.Errorf("%w: game already exists", ErrConflict)
	ErrContention = fmt.Errorf("%w: too many concurrent updates", ErrInfrastructure)

	// Input errors
	ErrInvalidName        = fmt.Errorf("%w: player name must not be empty", ErrValidation)
	ErrDuplicateName      = fmt.Errorf("%w: player name already taken", ErrValidation)
	ErrGameStarted        = fmt.Errorf("%w: game has already started, no more players can join", ErrValidation)
	ErrGameFull           = fmt.Errorf("%w: game is full", ErrValidation)
	ErrInvalidPlayerCount = fmt.Errorf("%w: unsupported number of players", ErrValidation)
	ErrRoleMismatch       = fmt.Errorf("%w: role list does not match player order", ErrValidation)
	ErrUnknownRole        = fmt.Errorf("%w: unknown role", ErrValidation)
	ErrPlayerOrder        = fmt.Errorf("%w: player order must list every player exactly once", ErrValidation)
	ErrQuestSize          = fmt.Errorf("%w: wrong number of quest members", ErrValidation)
	ErrUnknownMember      = fmt.Errorf("%w: quest member is not a player", ErrValidation)
	ErrDuplicateMember    = fmt.Errorf("%w: quest member listed twice", ErrValidation)
	ErrInvalidVote        = fmt.Errorf("%w: vote must be 1 or -1", ErrValidation)
	ErrInvalidTarget      = fmt.Errorf("%w: assassination target is not a player", ErrValidation)

	// Actor errors
	ErrIdentityMismatch = fmt.Errorf("%w: player name does not match player id", ErrAuthorization)
	ErrNotCreator       = fmt.Errorf("%w: only the creator can start the game", ErrAuthorization)
	ErrNotLeader        = fmt.Errorf("%w: only the quest leader can propose", ErrAuthorization)
	ErrNotMember        = fmt.Errorf("%w: player is not on this quest", ErrAuthorization)
	ErrGoodCannotFail   = fmt.Errorf("%w: good players cannot fail a quest", ErrAuthorization)
	ErrNotAssassin      = fmt.Errorf("%w: only the assassin can assassinate", ErrAuthorization)

	// Precondition errors
	ErrNotStarted          = fmt.Errorf("%w: game has not started", ErrConflict)
	ErrAlreadyStarted      = fmt.Errorf("%w: game has already started", ErrConflict)
	ErrGameOver            = fmt.Errorf("%w: game is not in progress", ErrConflict)
	ErrQuestNotCurrent     = fmt.Errorf("%w: quest is no longer current", ErrConflict)
	ErrAlreadyProposed     = fmt.Errorf("%w: quest has already been proposed", ErrConflict)
	ErrNotProposed         = fmt.Errorf("%w: quest has not been proposed", ErrConflict)
	ErrAlreadyVoted        = fmt.Errorf("%w: player has already voted", ErrConflict)
	ErrProposalNotApproved = fmt.Errorf("%w: proposal has not been approved", ErrConflict)
	ErrAlreadySubmitted    = fmt.Errorf("%w: player has already submitted a result", ErrConflict)
	ErrNotAssassinating    = fmt.Errorf("%w: game is not awaiting an assassination", ErrConflict)
	ErrAlreadyAssassinated = fmt.Errorf("%w: assassination already recorded", ErrConflict)
)

var categories = []error{ErrValidation, ErrAuthorization, ErrConflict, ErrNotFound, ErrInfrastructure}

// Categorized returns true if err already wraps one of the error categories
func Categorized(err error) bool {
	for _, c := range categories {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// Infrastructure wraps a backend failure so callers can treat it as retryable.
// Errors that already carry a category are returned unchanged.
func Infrastructure(op string, err error) error {
	if err == nil || Categorized(err) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrInfrastructure, op, err)
}

package storage

import (
	"context"

	"github.com/mcoot/avalon/internal/model"
)

// MaxUpdateAttempts bounds how often a backend retries a mutation that lost a write race
const MaxUpdateAttempts = 16

// ChangeBufferSize is the buffer of each change feed channel
const ChangeBufferSize = 256

// MutateFunc checks its preconditions against a private copy of the game and applies its effect in place.
// Returning an error aborts the update and nothing is written.
// It may run more than once if a concurrent writer wins the race, so it must not have side effects.
type MutateFunc func(game *model.Game) error

// Storage defines the interface for data persistence.
// Every game is a single record; UpdateGame is the only way to change one after creation.
type Storage interface {
	// CreateGame stores a new game at version 1, failing with ErrGameExists if the id is taken
	CreateGame(ctx context.Context, game *model.Game) error

	// GetGame returns the latest committed game, or ErrGameNotFound
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)

	// UpdateGame atomically applies mutate to the latest committed game, bumps its version and returns the result
	UpdateGame(ctx context.Context, id model.GameID, mutate MutateFunc) (*model.Game, error)

	// GameIDForQuest resolves the game owning a quest attempt, or ErrQuestNotFound
	GameIDForQuest(ctx context.Context, id model.QuestID) (model.GameID, error)

	// GameIDForPlayer resolves the game a player joined, or ErrPlayerNotFound
	GameIDForPlayer(ctx context.Context, id model.PlayerID) (model.GameID, error)

	// Changes streams every committed game until ctx is cancelled.
	// A slow consumer may miss intermediate versions but always receives the latest version of each game.
	Changes(ctx context.Context) (<-chan *model.Game, error)

	Close() error
}

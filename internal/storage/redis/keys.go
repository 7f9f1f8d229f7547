package redis

import (
	"fmt"

	"github.com/mcoot/avalon/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "avalon"

// changesChannel carries every committed game document
const changesChannel = keyPrefix + ":changes"

// gameKey returns the Redis key for a Game document
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// questIndexKey returns the Redis key for the quest_id -> game_id index
func questIndexKey(id model.QuestID) string {
	return fmt.Sprintf("%s:idx:quest:%s", keyPrefix, id)
}

// playerIndexKey returns the Redis key for the player_id -> game_id index
func playerIndexKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:idx:player:%s", keyPrefix, id)
}

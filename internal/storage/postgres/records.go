package postgres

import (
	"time"

	"gorm.io/gorm"
)

// notifyChannel is the LISTEN/NOTIFY channel carrying ids of committed games
const notifyChannel = "avalon_games"

// gameRecord stores one game document; Version guards compare-and-swap updates
type gameRecord struct {
	ID        string `gorm:"primaryKey"`
	Version   int64  `gorm:"not null"`
	Document  string `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gameRecord) TableName() string { return "avalon_games" }

type questIndexRecord struct {
	QuestID string `gorm:"primaryKey"`
	GameID  string `gorm:"index;not null"`
}

func (questIndexRecord) TableName() string { return "avalon_quest_index" }

type playerIndexRecord struct {
	PlayerID string `gorm:"primaryKey"`
	GameID   string `gorm:"index;not null"`
}

func (playerIndexRecord) TableName() string { return "avalon_player_index" }

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&gameRecord{},
		&questIndexRecord{},
		&playerIndexRecord{},
	)
}

package database

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// Migrate creates or updates every table the engine uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Player{},
		&models.SharedPlayer{},
		&models.Game{},
		&models.GameRole{},
		&models.SharedGame{},
		&models.SharedGameRole{},
		&models.Location{},
		&models.SharedLocation{},
		&models.Scoresheet{},
		&models.Round{},
		&models.SharedScoresheet{},
		&models.Match{},
		&models.SharedMatch{},
		&models.Team{},
		&models.MatchPlayer{},
		&models.SharedMatchPlayer{},
		&models.MatchPlayerRole{},
		&models.SharedMatchPlayerRole{},
		&models.RoundPlayer{},
		&models.ShareRequest{},
		&models.FriendSetting{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	slog.Debug("migrations completed")
	return nil
}

package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// PurgeDeletedMatches hard-deletes matches soft-deleted before cutoff that no
// recipient still holds, together with their seats, teams and forked
// scoresheet. Each match goes in its own transaction; the count of purged
// matches is returned with the joined failures.
func PurgeDeletedMatches(ctx context.Context, db *gorm.DB, cutoff time.Time) (int, error) {
	const op = "purge matches"
	db = db.WithContext(ctx)

	held := db.Model(&models.SharedMatch{}).Select("match_id")
	var ids []string
	err := db.Unscoped().Model(&models.Match{}).
		Where("deleted_at IS NOT NULL AND deleted_at < ? AND id NOT IN (?)", cutoff, held).
		Order("deleted_at, id").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, internal(op, "find purgeable matches", cutoff, err)
	}

	purged := 0
	var errs []error
	for _, id := range ids {
		err := db.Transaction(func(tx *gorm.DB) error {
			return purgeMatch(tx, op, id)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		purged++
	}
	return purged, errors.Join(errs...)
}

func purgeMatch(tx *gorm.DB, op, matchID string) error {
	var m models.Match
	if err := tx.Unscoped().Where("id = ?", matchID).First(&m).Error; err != nil {
		return dbErr(op, "match "+matchID, err)
	}

	var seats []string
	if err := tx.Model(&models.MatchPlayer{}).Where("match_id = ?", m.ID).Pluck("id", &seats).Error; err != nil {
		return internal(op, "load seats", m.ID, err)
	}
	if err := deleteSeats(tx, op, seats); err != nil {
		return err
	}
	if err := tx.Where("match_id = ?", m.ID).Delete(&models.Team{}).Error; err != nil {
		return internal(op, "delete teams", m.ID, err)
	}
	if err := tx.Where("item_type = ? AND item_id = ?", models.ItemMatch, m.ID).Delete(&models.ShareRequest{}).Error; err != nil {
		return internal(op, "delete match requests", m.ID, err)
	}

	var sheet models.Scoresheet
	err := tx.Unscoped().Where("id = ? AND type = ?", m.ScoresheetID, models.ScoresheetMatch).First(&sheet).Error
	switch {
	case err == nil:
		if err := tx.Where("scoresheet_id = ?", sheet.ID).Delete(&models.Round{}).Error; err != nil {
			return internal(op, "delete rounds", sheet.ID, err)
		}
		if err := tx.Unscoped().Delete(&models.Scoresheet{ID: sheet.ID}).Error; err != nil {
			return internal(op, "delete scoresheet", sheet.ID, err)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return internal(op, "load scoresheet", m.ScoresheetID, err)
	}

	res := tx.Unscoped().Delete(&models.Match{ID: m.ID})
	return expectRows(op, "delete match", m.ID, res)
}

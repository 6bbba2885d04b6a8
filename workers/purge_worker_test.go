package workers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"boardgame-tracker/database"
	"boardgame-tracker/models"
)

func TestRunOnceHonoursRetention(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close(db)

	sheet := models.Scoresheet{OwnerID: "alice", GameID: "g", Name: "fork", Type: models.ScoresheetMatch}
	if err := db.Create(&sheet).Error; err != nil {
		t.Fatalf("seed sheet: %v", err)
	}
	old := models.Match{OwnerID: "alice", Name: "old", GameID: "g", ScoresheetID: sheet.ID}
	fresh := models.Match{OwnerID: "alice", Name: "fresh", GameID: "g", ScoresheetID: "other"}
	for _, m := range []*models.Match{&old, &fresh} {
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("seed match: %v", err)
		}
		if err := db.Delete(m).Error; err != nil {
			t.Fatalf("soft delete: %v", err)
		}
	}
	backdated := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Unscoped().Model(&models.Match{}).Where("id = ?", old.ID).Update("deleted_at", backdated).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := NewPurgeWorker(db, time.Hour, 24*time.Hour, log)
	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}

	var left []models.Match
	db.Unscoped().Order("name").Find(&left)
	if len(left) != 1 || left[0].ID != fresh.ID {
		t.Errorf("remaining = %+v, want only the fresh match", left)
	}
	var sheets int64
	db.Unscoped().Model(&models.Scoresheet{}).Where("id = ?", sheet.ID).Count(&sheets)
	if sheets != 0 {
		t.Errorf("forked sheet survived the purge")
	}
}

func TestStartStop(t *testing.T) {
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer database.Close(db)

	w := NewPurgeWorker(db, time.Hour, time.Hour, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

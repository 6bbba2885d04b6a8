package services

import (
	"testing"
	"time"

	"boardgame-tracker/models"
)

func TestPurgeRemovesOldDeletedMatches(t *testing.T) {
	f := newFixture(t)
	g := f.game("alice", "Azul")
	sheet := f.scoresheet(g, models.WinHighestScore, models.RoundsAggregate, 2)
	a, b := f.player("alice", "A"), f.player("alice", "B")
	d := f.newMatch("alice", CreateMatchInput{
		Name:         "m",
		Game:         models.OriginalRef(g.ID),
		ScoresheetID: sheet.ID,
		Teams:        []TeamInput{{Key: "t", Name: "T"}},
		Players:      []PlayerInput{{Player: models.OriginalRef(a.ID), TeamKey: "t", RoundScores: map[int]float64{0: 1}}, seat(b, 2)},
	})
	kept := f.newMatch("alice", CreateMatchInput{Name: "kept", Game: models.OriginalRef(g.ID), ScoresheetID: sheet.ID, Players: []PlayerInput{seat(a, 1)}})

	if err := f.matches.DeleteMatch(f.ctx, "alice", d.Ref); err != nil {
		t.Fatalf("DeleteMatch: %v", err)
	}

	n, err := PurgeDeletedMatches(f.ctx, f.db, time.Now().UTC().Add(-time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("purge before retention = %d, %v; want 0", n, err)
	}

	n, err = PurgeDeletedMatches(f.ctx, f.db, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeletedMatches: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if c := f.count(&models.Match{}, "id = ?", d.MatchID); c != 0 {
		t.Errorf("match still present")
	}
	if c := f.db.Unscoped().Where("id = ?", d.MatchID).Find(&[]models.Match{}).RowsAffected; c != 0 {
		t.Errorf("match row still stored")
	}
	if c := f.count(&models.MatchPlayer{}, "match_id = ?", d.MatchID); c != 0 {
		t.Errorf("seats = %d, want 0", c)
	}
	if c := f.count(&models.Team{}, ""); c != 0 {
		t.Errorf("teams = %d, want 0", c)
	}
	if c := f.count(&models.Round{}, "scoresheet_id = ?", d.ScoresheetID); c != 0 {
		t.Errorf("forked rounds = %d, want 0", c)
	}
	if c := f.count(&models.Round{}, "scoresheet_id = ?", sheet.ID); c != 2 {
		t.Errorf("game sheet rounds = %d, want 2", c)
	}
	if c := f.count(&models.MatchPlayer{}, "match_id = ?", kept.MatchID); c != 1 {
		t.Errorf("kept match seats = %d, want 1", c)
	}
	if c := f.count(&models.RoundPlayer{}, ""); c != 1 {
		t.Errorf("round scores = %d, want only the kept match's", c)
	}
}

func TestPurgeKeepsMatchesStillShared(t *testing.T) {
	f := newFixture(t)
	f.friends("alice", "bob", autoShare, acceptAll)
	g := f.game("alice", "Azul")
	a := f.player("alice", "A")
	d := f.newMatch("alice", CreateMatchInput{Name: "m", Game: models.OriginalRef(g.ID), Players: []PlayerInput{seat(a, 1)}})
	if err := f.matches.DeleteMatch(f.ctx, "alice", d.Ref); err != nil {
		t.Fatalf("DeleteMatch: %v", err)
	}

	n, err := PurgeDeletedMatches(f.ctx, f.db, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 0 {
		t.Errorf("purged = %d, %v; want 0 while bob holds the match", n, err)
	}

	sm := f.sharedMatchOf("bob", d.MatchID)
	if err := f.sharing.RevokeMatchShare(f.ctx, "alice", sm.ID); err != nil {
		t.Fatalf("RevokeMatchShare: %v", err)
	}
	n, err = PurgeDeletedMatches(f.ctx, f.db, time.Now().UTC().Add(time.Hour))
	if err != nil || n != 1 {
		t.Errorf("purged after revoke = %d, %v; want 1", n, err)
	}
}

package services

import (
	"errors"
	"testing"

	"boardgame-tracker/models"
)

func (f *fixture) sharedPlayer(owner, recipient string, p models.Player) models.SharedPlayer {
	sp := models.SharedPlayer{OwnerID: owner, SharedWithID: recipient, PlayerID: p.ID, Permission: models.PermissionView}
	f.create(&sp)
	return sp
}

func TestLinkToExistingPlayer(t *testing.T) {
	f := newFixture(t)
	links := NewLinkService(f.db)
	sp := f.sharedPlayer("alice", "bob", f.player("alice", "Pat"))
	mine := f.player("bob", "Pat")
	other := f.player("bob", "Sam")

	got, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, &mine.ID)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	if got != mine.ID {
		t.Errorf("linked to %s, want %s", got, mine.ID)
	}

	if got, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, &mine.ID); err != nil || got != mine.ID {
		t.Errorf("relink same target = %s, %v; want %s", got, err, mine.ID)
	}
	if got, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, nil); err != nil || got != mine.ID {
		t.Errorf("link without target = %s, %v; want the existing link", got, err)
	}
	if _, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, &other.ID); !errors.Is(err, ErrConflict) {
		t.Errorf("relink elsewhere: err = %v, want conflict", err)
	}
}

func TestLinkWithoutTargetCopies(t *testing.T) {
	f := newFixture(t)
	links := NewLinkService(f.db)
	sp := f.sharedPlayer("alice", "bob", f.player("alice", "Pat"))

	id, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	var local models.Player
	if err := f.db.Where("id = ?", id).First(&local).Error; err != nil {
		t.Fatalf("local copy: %v", err)
	}
	if local.OwnerID != "bob" || local.Name != "Pat" {
		t.Errorf("copy = %+v, want bob's Pat", local)
	}
}

func TestLinkRejectsRowsOfOthers(t *testing.T) {
	f := newFixture(t)
	links := NewLinkService(f.db)
	sp := f.sharedPlayer("alice", "bob", f.player("alice", "Pat"))
	carols := f.player("carol", "Pat")

	if _, err := links.Link(f.ctx, "bob", LinkPlayer, sp.ID, &carols.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("target owned by carol: err = %v, want not found", err)
	}
	if _, err := links.Link(f.ctx, "carol", LinkPlayer, sp.ID, nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("share held by bob: err = %v, want not found", err)
	}
	if _, err := links.Link(f.ctx, "bob", LinkKind("dice"), sp.ID, nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("unknown kind: err = %v, want invalid", err)
	}
}

func TestLinkRoleLinksItsGame(t *testing.T) {
	f := newFixture(t)
	links := NewLinkService(f.db)
	g := f.game("alice", "Avalon")
	role := f.role(g, "Merlin")
	sg := models.SharedGame{OwnerID: "alice", SharedWithID: "bob", GameID: g.ID, Permission: models.PermissionView}
	f.create(&sg)
	sr := models.SharedGameRole{OwnerID: "alice", SharedWithID: "bob", GameRoleID: role.ID, SharedGameID: sg.ID, Permission: models.PermissionView}
	f.create(&sr)

	id, err := links.Link(f.ctx, "bob", LinkGameRole, sr.ID, nil)
	if err != nil {
		t.Fatalf("Link: %v", err)
	}
	var linkedGame models.SharedGame
	f.db.Where("id = ?", sg.ID).First(&linkedGame)
	if linkedGame.LinkedGameID == nil {
		t.Fatalf("shared game was not linked")
	}
	var local models.GameRole
	f.db.Where("id = ?", id).First(&local)
	if local.GameID != *linkedGame.LinkedGameID || local.OwnerID != "bob" || local.Name != "Merlin" {
		t.Errorf("local role = %+v, want Merlin in bob's copy of the game", local)
	}
}

func TestOwnerPlayingWithSharedPlayerLinksOnce(t *testing.T) {
	f := newFixture(t)
	sp := f.sharedPlayer("alice", "bob", f.player("alice", "Pat"))
	g := f.game("bob", "Azul")

	in := CreateMatchInput{Name: "m", Game: models.OriginalRef(g.ID), Players: []PlayerInput{{Player: models.SharedRef(sp.ID)}}}
	first := f.newMatch("bob", in)
	second := f.newMatch("bob", in)

	var linked models.SharedPlayer
	f.db.Where("id = ?", sp.ID).First(&linked)
	if linked.LinkedPlayerID == nil {
		t.Fatalf("shared player was not linked")
	}
	for _, d := range []*MatchDetail{first, second} {
		if got := d.Players[0].Identity.CanonicalPlayerID; got != *linked.LinkedPlayerID {
			t.Errorf("match %s seats %s, want linked player %s", d.MatchID, got, *linked.LinkedPlayerID)
		}
	}
	if n := f.count(&models.Player{}, "owner_id = ?", "bob"); n != 1 {
		t.Errorf("bob's players = %d, want 1", n)
	}
}

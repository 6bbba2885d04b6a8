package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"gorm.io/gorm"

	"boardgame-tracker/database"
	"boardgame-tracker/models"
)

// fixture wires the services over a private in-memory database.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	sharing *SharingService
	matches *MatchService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.OpenInMemory(name)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sharing := NewSharingService(db, log)
	return &fixture{
		t:       t,
		ctx:     context.Background(),
		db:      db,
		sharing: sharing,
		matches: NewMatchService(db, sharing, log),
	}
}

func (f *fixture) create(v any) {
	f.t.Helper()
	if err := f.db.Create(v).Error; err != nil {
		f.t.Fatalf("create %T: %v", v, err)
	}
}

func (f *fixture) player(owner, name string) models.Player {
	p := models.Player{OwnerID: owner, Name: name}
	f.create(&p)
	return p
}

func (f *fixture) game(owner, name string) models.Game {
	g := models.Game{OwnerID: owner, Name: name}
	f.create(&g)
	return g
}

func (f *fixture) role(g models.Game, name string) models.GameRole {
	r := models.GameRole{GameID: g.ID, OwnerID: g.OwnerID, Name: name}
	f.create(&r)
	return r
}

func (f *fixture) location(owner, name string) models.Location {
	l := models.Location{OwnerID: owner, Name: name}
	f.create(&l)
	return l
}

// scoresheet creates a game scoresheet with the given number of numeric rounds.
func (f *fixture) scoresheet(g models.Game, win models.WinCondition, rounds models.RoundsScore, n int) models.Scoresheet {
	s := models.Scoresheet{
		OwnerID:      g.OwnerID,
		GameID:       g.ID,
		Name:         "sheet",
		Type:         models.ScoresheetGame,
		WinCondition: win,
		RoundsScore:  rounds,
	}
	f.create(&s)
	for i := 0; i < n; i++ {
		r := models.Round{ScoresheetID: s.ID, Name: "round", Order: i, Type: models.RoundNumeric}
		f.create(&r)
	}
	return s
}

// friends makes a and b mutual friends. share configures a's side toward b,
// receive configures b's side toward a.
func (f *fixture) friends(a, b string, share, receive func(*models.FriendSetting)) {
	out := models.FriendSetting{UserID: a, FriendID: b}
	in := models.FriendSetting{UserID: b, FriendID: a}
	if share != nil {
		share(&out)
	}
	if receive != nil {
		receive(&in)
	}
	f.create(&out)
	f.create(&in)
}

func (f *fixture) count(model any, where string, args ...any) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		f.t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func (f *fixture) newMatch(owner string, in CreateMatchInput) *MatchDetail {
	f.t.Helper()
	res, err := f.matches.CreateMatch(f.ctx, owner, in)
	if err != nil {
		f.t.Fatalf("CreateMatch: %v", err)
	}
	return res.Match
}

func seat(p models.Player, round0 float64) PlayerInput {
	return PlayerInput{Player: models.OriginalRef(p.ID), RoundScores: map[int]float64{0: round0}}
}

// seatOf finds the detail row of a canonical player.
func seatOf(t *testing.T, d *MatchDetail, playerID string) SeatDetail {
	t.Helper()
	for _, s := range d.Players {
		if s.Identity.CanonicalPlayerID == playerID {
			return s
		}
	}
	t.Fatalf("player %s not in match %s", playerID, d.MatchID)
	return SeatDetail{}
}

func placementOf(t *testing.T, d *MatchDetail, playerID string) int {
	t.Helper()
	s := seatOf(t, d, playerID)
	if s.Placement == nil {
		t.Fatalf("player %s has no placement", playerID)
	}
	return *s.Placement
}

func f64(v float64) *float64 { return &v }

func autoShare(s *models.FriendSetting) {
	s.AutoShareMatches = true
	s.SharePlayersWithMatch = true
}

func acceptAll(s *models.FriendSetting) {
	s.AllowSharedMatches = true
	s.AllowSharedPlayers = true
	s.AutoAcceptMatches = true
	s.AutoAcceptPlayers = true
	s.AutoAcceptGames = true
	s.AutoAcceptLocations = true
}

func editable(s *models.FriendSetting) {
	autoShare(s)
	s.DefaultMatchPerm = models.PermissionEdit
}

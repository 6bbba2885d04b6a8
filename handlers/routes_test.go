package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"boardgame-tracker/database"
	"boardgame-tracker/middleware"
	"boardgame-tracker/models"
	"boardgame-tracker/services"
)

type testServer struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
}

func newTestServer(t *testing.T, gatewayToken string) *testServer {
	t.Helper()
	db, err := database.OpenInMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sharing := services.NewSharingService(db, log)
	matches := services.NewMatchService(db, sharing, log)

	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware(gatewayToken))
	SetupMatchRoutes(app, matches, services.NewResolver(db))
	SetupSharingRoutes(app, sharing, services.NewLinkService(db))
	return &testServer{t: t, app: app, db: db}
}

func (s *testServer) do(method, path, user string, body any, headers ...string) (int, []byte) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func (s *testServer) seedMatch(owner string) services.CreateMatchResult {
	s.t.Helper()
	g := models.Game{OwnerID: owner, Name: "Azul"}
	a := models.Player{OwnerID: owner, Name: "A"}
	b := models.Player{OwnerID: owner, Name: "B"}
	for _, v := range []any{&g, &a, &b} {
		if err := s.db.Create(v).Error; err != nil {
			s.t.Fatalf("seed: %v", err)
		}
	}
	body := services.CreateMatchInput{
		Name: "friday",
		Game: models.OriginalRef(g.ID),
		Players: []services.PlayerInput{
			{Player: models.OriginalRef(a.ID), RoundScores: map[int]float64{0: 12}},
			{Player: models.OriginalRef(b.ID), RoundScores: map[int]float64{0: 30}},
		},
	}
	status, raw := s.do(http.MethodPost, "/s/matches", owner, body)
	if status != http.StatusCreated {
		s.t.Fatalf("create status = %d, body %s", status, raw)
	}
	var out services.CreateMatchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		s.t.Fatalf("decode create: %v", err)
	}
	return out
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, "")
	created := s.seedMatch("alice")
	path := "/s/matches/original/" + created.Match.MatchID

	status, raw := s.do(http.MethodGet, path, "alice", nil)
	if status != http.StatusOK {
		t.Fatalf("get status = %d, body %s", status, raw)
	}

	status, raw = s.do(http.MethodPost, path+"/finish", "alice", nil)
	if status != http.StatusOK {
		t.Fatalf("finish status = %d, body %s", status, raw)
	}
	var d services.MatchDetail
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("decode finish: %v", err)
	}
	if !d.Finished {
		t.Errorf("finished = false after finish")
	}
	winners := 0
	for _, p := range d.Players {
		if p.Winner {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}

	seat := d.Players[0].Ref
	status, raw = s.do(http.MethodGet, path+"/players/original/"+seat.ID, "alice", nil)
	if status != http.StatusOK {
		t.Errorf("resolve status = %d, body %s", status, raw)
	}

	if status, _ := s.do(http.MethodDelete, path, "alice", nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", status)
	}
	if status, _ := s.do(http.MethodGet, path, "alice", nil); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", status)
	}
}

func TestErrorStatuses(t *testing.T) {
	s := newTestServer(t, "")
	created := s.seedMatch("alice")
	path := "/s/matches/original/" + created.Match.MatchID

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   any
		want   int
	}{
		{"missing user", http.MethodGet, path, "", nil, http.StatusUnauthorized},
		{"stranger", http.MethodGet, path, "mallory", nil, http.StatusNotFound},
		{"empty edit", http.MethodPut, path, "alice", map[string]any{"name": "x"}, http.StatusBadRequest},
		{"hand-set winners on ranked sheet", http.MethodPut, path + "/winners", "alice",
			map[string]any{"winners": []models.Ref{created.Match.Players[0].Ref}}, http.StatusConflict},
		{"unknown link kind", http.MethodPost, "/s/links/dice/" + uuid.NewString(), "alice", nil, http.StatusBadRequest},
		{"accept unknown request", http.MethodPost, "/s/share-requests/nope/accept", "alice", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := s.do(tt.method, tt.path, tt.user, tt.body)
			if status != tt.want {
				t.Errorf("status = %d, want %d (body %s)", status, tt.want, raw)
			}
			var body map[string]any
			if err := json.Unmarshal(raw, &body); err != nil || body["error"] == nil {
				t.Errorf("body %s has no error field", raw)
			}
		})
	}
}

func TestShareFanOutOverHTTP(t *testing.T) {
	s := newTestServer(t, "")
	for _, fs := range []models.FriendSetting{
		{UserID: "alice", FriendID: "bob", AutoShareMatches: true},
		{UserID: "bob", FriendID: "alice", AllowSharedMatches: true, AutoAcceptMatches: true},
	} {
		if err := s.db.Create(&fs).Error; err != nil {
			t.Fatalf("seed friends: %v", err)
		}
	}
	created := s.seedMatch("alice")
	if created.Sharing == nil || len(created.Sharing.Results) != 1 {
		t.Fatalf("sharing report = %+v, want one result", created.Sharing)
	}
	sharedID := created.Sharing.Results[0].SharedMatchID
	if sharedID == nil {
		t.Fatalf("match was not shared with bob")
	}

	status, raw := s.do(http.MethodPost, "/s/matches/"+created.Match.MatchID+"/share", "alice", nil)
	if status != http.StatusOK {
		t.Errorf("share status = %d, body %s", status, raw)
	}
	if status, raw := s.do(http.MethodGet, "/s/matches/shared/"+*sharedID, "bob", nil); status != http.StatusOK {
		t.Errorf("bob get status = %d, body %s", status, raw)
	}
	if status, _ := s.do(http.MethodPut, "/s/matches/shared/"+*sharedID, "bob", map[string]any{"name": "x", "players": []any{}}); status != http.StatusBadRequest {
		t.Errorf("bob invalid edit status = %d, want 400", status)
	}
	if status, _ := s.do(http.MethodDelete, "/s/shared-matches/"+*sharedID, "alice", nil); status != http.StatusNoContent {
		t.Errorf("revoke status = %d, want 204", status)
	}
	if status, _ := s.do(http.MethodGet, "/s/matches/shared/"+*sharedID, "bob", nil); status != http.StatusNotFound {
		t.Errorf("bob get after revoke status = %d, want 404", status)
	}
}

func TestGatewayToken(t *testing.T) {
	s := newTestServer(t, "secret")

	if status, _ := s.do(http.MethodGet, "/s/matches/original/x", "alice", nil); status != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", status)
	}
	if status, _ := s.do(http.MethodGet, "/s/matches/original/x", "alice", nil, "Authorization", "Bearer wrong"); status != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", status)
	}
	if status, _ := s.do(http.MethodGet, "/s/matches/original/x", "alice", nil, "Authorization", "Bearer secret"); status != http.StatusNotFound {
		t.Errorf("good token status = %d, want 404 for a missing match", status)
	}
}

package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// MatchDetail is the read model of a match as one user sees it. Refs in it
// are in that user's namespace and can be sent back unchanged in edits.
type MatchDetail struct {
	Ref          models.Ref        `json:"ref"`
	MatchID      string            `json:"match_id"`
	Source       models.SourceType `json:"source_type"`
	Permission   models.Permission `json:"permission"`
	Name         string            `json:"name"`
	Date         time.Time         `json:"date"`
	GameID       string            `json:"game_id"`
	LocationID   *string           `json:"location_id,omitempty"`
	Location     *models.Ref       `json:"location,omitempty"`
	ScoresheetID string            `json:"scoresheet_id"`
	Running      bool              `json:"running"`
	Finished     bool              `json:"finished"`
	Duration     int               `json:"duration"`
	Comment      string            `json:"comment,omitempty"`
	Teams        []TeamDetail      `json:"teams"`
	Players      []SeatDetail      `json:"players"`
}

// TeamDetail lists a team with the roles all of its members hold.
type TeamDetail struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Details string       `json:"details,omitempty"`
	Roles   []models.Ref `json:"roles"`
}

// SeatDetail is one visible seat. Roles are the seat's own roles; roles its
// whole team holds are listed on the team.
type SeatDetail struct {
	Ref         models.Ref          `json:"ref"`
	Identity    Identity            `json:"identity"`
	TeamID      *string             `json:"team_id,omitempty"`
	Roles       []models.Ref        `json:"roles"`
	Score       *float64            `json:"score,omitempty"`
	Placement   *int                `json:"placement,omitempty"`
	Winner      bool                `json:"winner"`
	RoundScores map[string]*float64 `json:"round_scores,omitempty"`
}

// GetMatch returns a match with its teams and the seats visible to the caller:
// every seat for the owner, the shared seats for a recipient.
func (s *MatchService) GetMatch(ctx context.Context, userID string, ref models.Ref) (*MatchDetail, error) {
	const op = "get match"
	tx := s.DB.WithContext(ctx)
	view, err := resolveMatch(tx, op, userID, ref)
	if err != nil {
		return nil, err
	}
	m := view.Match

	d := &MatchDetail{
		Ref:          ref,
		MatchID:      m.ID,
		Source:       view.SourceType(),
		Permission:   view.Permission,
		Name:         m.Name,
		Date:         m.Date,
		GameID:       m.GameID,
		LocationID:   m.LocationID,
		ScoresheetID: m.ScoresheetID,
		Running:      m.Running,
		Finished:     m.Finished,
		Duration:     m.Duration,
		Comment:      m.Comment,
		Teams:        []TeamDetail{},
		Players:      []SeatDetail{},
	}

	st, err := loadMatchState(tx, op, m.ID)
	if err != nil {
		return nil, err
	}
	if !view.IsOwner() {
		if err := st.restrictTo(tx, op, view.SharedMatch.ID); err != nil {
			return nil, err
		}
	}
	if d.Location, err = locationRef(tx, op, view, userID); err != nil {
		return nil, err
	}
	toCaller, err := roleTranslator(tx, op, view, userID)
	if err != nil {
		return nil, err
	}

	seatRefs := map[string]models.Ref{}
	if view.IsOwner() {
		for _, seat := range st.seats {
			seatRefs[seat.ID] = models.OriginalRef(seat.ID)
		}
	} else {
		var shared []models.SharedMatchPlayer
		if err := tx.Where("shared_match_id = ?", view.SharedMatch.ID).Find(&shared).Error; err != nil {
			return nil, internal(op, "load shared seats", view.SharedMatch.ID, err)
		}
		for _, smp := range shared {
			seatRefs[smp.MatchPlayerID] = models.SharedRef(smp.ID)
		}
	}

	var scores []models.RoundPlayer
	if len(st.seats) > 0 {
		if err := tx.Where("match_player_id IN ?", st.seatIDs()).Find(&scores).Error; err != nil {
			return nil, internal(op, "load round scores", m.ID, err)
		}
	}
	rounds := map[string]map[string]*float64{}
	for _, rp := range scores {
		if rounds[rp.MatchPlayerID] == nil {
			rounds[rp.MatchPlayerID] = map[string]*float64{}
		}
		rounds[rp.MatchPlayerID][rp.RoundID] = rp.Score
	}

	for _, seat := range st.seats {
		seatRef, visible := seatRefs[seat.ID]
		if !visible {
			continue
		}
		identity, err := resolveMatchPlayer(tx, op, view, seatRef)
		if err != nil {
			return nil, err
		}
		own := st.roles[seat.ID]
		if seat.TeamID != nil {
			own = originalRoles(own).minus(st.teamRoles(*seat.TeamID)).ids()
		}
		d.Players = append(d.Players, SeatDetail{
			Ref:         seatRef,
			Identity:    *identity,
			TeamID:      seat.TeamID,
			Roles:       toCaller(own),
			Score:       seat.Score,
			Placement:   seat.Placement,
			Winner:      seat.Winner,
			RoundScores: rounds[seat.ID],
		})
	}

	for _, id := range sortedKeys(st.teams) {
		t := st.teams[id]
		d.Teams = append(d.Teams, TeamDetail{
			ID:      t.ID,
			Name:    t.Name,
			Details: t.Details,
			Roles:   toCaller(st.teamRoles(t.ID).ids()),
		})
	}
	return d, nil
}

// locationRef names the match location in the caller's namespace. A location
// never shared with a recipient stays unnamed.
func locationRef(tx *gorm.DB, op string, view *MatchView, userID string) (*models.Ref, error) {
	m := view.Match
	if m.LocationID == nil {
		return nil, nil
	}
	if view.IsOwner() {
		ref := models.OriginalRef(*m.LocationID)
		return &ref, nil
	}
	id, ok, err := existingID(tx, &models.SharedLocation{}, "shared_with_id = ? AND owner_id = ? AND location_id = ?", userID, m.OwnerID, *m.LocationID)
	if err != nil {
		return nil, internal(op, "find shared location", *m.LocationID, err)
	}
	if !ok {
		return nil, nil
	}
	ref := models.SharedRef(id)
	return &ref, nil
}

// roleTranslator maps owner role ids to refs the caller can use: the ids
// themselves for the owner, the caller's shared role rows for a recipient.
// Roles not shared with the recipient are left out.
func roleTranslator(tx *gorm.DB, op string, view *MatchView, userID string) (func([]string) []models.Ref, error) {
	if view.IsOwner() {
		return func(ids []string) []models.Ref { return originalRoles(ids) }, nil
	}
	var shared []models.SharedGameRole
	if err := tx.Where("shared_with_id = ? AND owner_id = ?", userID, view.Match.OwnerID).Find(&shared).Error; err != nil {
		return nil, internal(op, "load shared roles", userID, err)
	}
	byRole := make(map[string]string, len(shared))
	for _, sr := range shared {
		byRole[sr.GameRoleID] = sr.ID
	}
	return func(ids []string) []models.Ref {
		out := []models.Ref{}
		for _, id := range ids {
			if sid, ok := byRole[id]; ok {
				out = append(out, models.SharedRef(sid))
			}
		}
		return out
	}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// recompute runs the placement calculator over the stored scores of a match
// and persists the outcome. Under hand-set modes only scores are written;
// placements and winners stay as the players set them.
func recompute(tx *gorm.DB, op string, m *models.Match, sheet *models.Scoresheet, finished bool) error {
	rules := RulesFor(sheet)
	seats, entries, err := loadEntries(tx, op, m.ID, sheet.ID, rules)
	if err != nil {
		return err
	}
	results := CalculatePlacements(entries, rules)

	for i, r := range results {
		fields := map[string]any{"score": r.Score}
		if rules.Ranked() {
			fields["placement"] = r.Placement
			fields["winner"] = r.Winner
		}
		res := tx.Model(&models.MatchPlayer{ID: seats[i].ID}).Updates(fields)
		if err := expectRows(op, "persist placement", r, res); err != nil {
			return err
		}
	}

	res := tx.Model(&models.Match{ID: m.ID}).Update("finished", finished)
	if err := expectRows(op, "set finished", m.ID, res); err != nil {
		return err
	}
	m.Finished = finished
	return nil
}

// loadEntries builds calculator input for a match, seats in seating order.
func loadEntries(tx *gorm.DB, op, matchID, scoresheetID string, rules ScoringRules) ([]models.MatchPlayer, []PlacementEntry, error) {
	rounds, err := loadRounds(tx, op, scoresheetID)
	if err != nil {
		return nil, nil, err
	}
	var seats []models.MatchPlayer
	if err := tx.Where("match_id = ?", matchID).Order("sort_order, id").Find(&seats).Error; err != nil {
		return nil, nil, internal(op, "load match players", matchID, err)
	}
	if len(seats) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(seats))
	for _, s := range seats {
		ids = append(ids, s.ID)
	}
	var scores []models.RoundPlayer
	if err := tx.Where("match_player_id IN ?", ids).Find(&scores).Error; err != nil {
		return nil, nil, internal(op, "load round scores", matchID, err)
	}
	byRound := map[string]map[string]*float64{}
	for _, rp := range scores {
		if byRound[rp.MatchPlayerID] == nil {
			byRound[rp.MatchPlayerID] = map[string]*float64{}
		}
		byRound[rp.MatchPlayerID][rp.RoundID] = rp.Score
	}

	entries := make([]PlacementEntry, len(seats))
	for i, s := range seats {
		e := PlacementEntry{ID: s.ID, TeamID: s.TeamID, ManualWinner: s.Winner}
		e.RoundScores = make([]*float64, len(rounds))
		for j, r := range rounds {
			e.RoundScores[j] = byRound[s.ID][r.ID]
		}
		if rules.RoundsScore == models.RoundsManual {
			e.ManualScore = s.Score
		}
		entries[i] = e
	}
	return seats, entries, nil
}

// editableMatch resolves a match the caller may write to.
func editableMatch(tx *gorm.DB, op, userID string, ref models.Ref) (*MatchView, error) {
	view, err := resolveMatch(tx, op, userID, ref)
	if err != nil {
		return nil, err
	}
	if !view.Permission.CanEdit() {
		return nil, unauthorized(op, "view-only access to match %s", ref)
	}
	return view, nil
}

// seatsFor resolves seat refs and widens each to its whole team, since team
// members share one score and one placement.
func seatsFor(tx *gorm.DB, op string, view *MatchView, refs []models.Ref) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, ref := range refs {
		id, err := resolveMatchPlayer(tx, op, view, ref)
		if err != nil {
			return nil, err
		}
		var seat models.MatchPlayer
		if err := tx.Where("id = ?", id.BaseMatchPlayerID).First(&seat).Error; err != nil {
			return nil, dbErr(op, "match player "+id.BaseMatchPlayerID, err)
		}
		if seat.TeamID == nil {
			add(seat.ID)
			continue
		}
		var mates []models.MatchPlayer
		if err := tx.Where("team_id = ?", *seat.TeamID).Order("id").Find(&mates).Error; err != nil {
			return nil, internal(op, "load team", *seat.TeamID, err)
		}
		for _, mate := range mates {
			add(mate.ID)
		}
	}
	return out, nil
}

// FinishMatch stops the clock and settles scores and, for ranked
// scoresheets, placements and winners.
func (s *MatchService) FinishMatch(ctx context.Context, userID string, ref models.Ref) (*MatchDetail, error) {
	const op = "finish match"
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := editableMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		m := view.Match
		sheet, err := loadScoresheet(tx, op, m.ScoresheetID)
		if err != nil {
			return err
		}
		if err := recompute(tx, op, &m, sheet, true); err != nil {
			return err
		}

		end := time.Now().UTC()
		fields := map[string]any{"running": false, "end_time": end}
		if m.StartTime != nil && m.Running {
			fields["duration"] = m.Duration + int(end.Sub(*m.StartTime).Seconds())
		}
		res := tx.Model(&models.Match{ID: m.ID}).Updates(fields)
		return expectRows(op, "stop match", m.ID, res)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, userID, ref)
}

// ScoreInput sets one score. With RoundID it is a round score, otherwise the
// seat's final score (used by Manual rounds scoring). Exactly one of Player
// and TeamID picks the target; a player in a team updates the whole team.
type ScoreInput struct {
	RoundID *string     `json:"round_id,omitempty"`
	Player  *models.Ref `json:"player,omitempty" validate:"required_without=TeamID,excluded_with=TeamID"`
	TeamID  *string     `json:"team_id,omitempty"`
	Score   *float64    `json:"score"`
}

// UpdateScore writes a score. On a finished ranked match placements are
// recomputed and the match stays finished.
func (s *MatchService) UpdateScore(ctx context.Context, userID string, ref models.Ref, in ScoreInput) (*MatchDetail, error) {
	const op = "update score"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := editableMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		m := view.Match

		var seats []string
		if in.Player != nil {
			seats, err = seatsFor(tx, op, view, []models.Ref{*in.Player})
			if err != nil {
				return err
			}
		} else {
			var team models.Team
			if err := tx.Where("id = ? AND match_id = ?", *in.TeamID, m.ID).First(&team).Error; err != nil {
				return dbErr(op, "team "+*in.TeamID+" in match", err)
			}
			if err := tx.Model(&models.MatchPlayer{}).Where("team_id = ?", team.ID).Order("id").Pluck("id", &seats).Error; err != nil {
				return internal(op, "load team seats", team.ID, err)
			}
		}

		if in.RoundID != nil {
			var round models.Round
			if err := tx.Where("id = ? AND scoresheet_id = ?", *in.RoundID, m.ScoresheetID).First(&round).Error; err != nil {
				return dbErr(op, "round "+*in.RoundID+" of the match scoresheet", err)
			}
			for _, id := range seats {
				if err := upsertRoundScore(tx, op, round.ID, id, in.Score); err != nil {
					return err
				}
			}
		} else if len(seats) > 0 {
			if err := tx.Model(&models.MatchPlayer{}).Where("id IN ?", seats).Update("score", in.Score).Error; err != nil {
				return internal(op, "set final score", seats, err)
			}
		}

		if !m.Finished {
			return nil
		}
		sheet, err := loadScoresheet(tx, op, m.ScoresheetID)
		if err != nil {
			return err
		}
		if !RulesFor(sheet).Ranked() {
			return nil
		}
		return recompute(tx, op, &m, sheet, true)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, userID, ref)
}

type PlacementInput struct {
	Player    models.Ref `json:"player" validate:"required"`
	Placement int        `json:"placement" validate:"min=1"`
}

type UpdatePlacementsInput struct {
	Placements []PlacementInput `json:"placements" validate:"required,min=1,dive"`
}

// UpdatePlacements overrides placements by hand, typically to break a tie.
// A seat wins exactly when it is placed first. The match counts as finished.
func (s *MatchService) UpdatePlacements(ctx context.Context, userID string, ref models.Ref, in UpdatePlacementsInput) (*MatchDetail, error) {
	const op = "update placements"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	refs := make([]models.Ref, 0, len(in.Placements))
	for _, p := range in.Placements {
		refs = append(refs, p.Player)
	}
	if dup, ok := firstDuplicate(refs); ok {
		return nil, conflict(op, "player %s placed twice", dup)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := editableMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		for _, p := range in.Placements {
			seats, err := seatsFor(tx, op, view, []models.Ref{p.Player})
			if err != nil {
				return err
			}
			placement := p.Placement
			err = tx.Model(&models.MatchPlayer{}).Where("id IN ?", seats).
				Updates(map[string]any{"placement": placement, "winner": placement == 1}).Error
			if err != nil {
				return internal(op, "set placement", seats, err)
			}
		}
		res := tx.Model(&models.Match{ID: view.Match.ID}).Updates(map[string]any{"finished": true, "running": false})
		return expectRows(op, "set finished", view.Match.ID, res)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, userID, ref)
}

type SetWinnersInput struct {
	Winners []models.Ref `json:"winners" validate:"omitempty,dive"`
}

// SetWinners marks winners by hand for Manual and cooperative scoresheets,
// where no placement is computed. Every seat not listed loses.
func (s *MatchService) SetWinners(ctx context.Context, userID string, ref models.Ref, in SetWinnersInput) (*MatchDetail, error) {
	const op = "set winners"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}
	if dup, ok := firstDuplicate(in.Winners); ok {
		return nil, conflict(op, "winner %s listed twice", dup)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := editableMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		sheet, err := loadScoresheet(tx, op, view.Match.ScoresheetID)
		if err != nil {
			return err
		}
		if RulesFor(sheet).Ranked() {
			return conflict(op, "winners follow placements under %s scoring", sheet.WinCondition)
		}
		winners, err := seatsFor(tx, op, view, in.Winners)
		if err != nil {
			return err
		}

		err = tx.Model(&models.MatchPlayer{}).Where("match_id = ?", view.Match.ID).
			Updates(map[string]any{"winner": false, "placement": nil}).Error
		if err != nil {
			return internal(op, "clear winners", view.Match.ID, err)
		}
		if len(winners) > 0 {
			if err := tx.Model(&models.MatchPlayer{}).Where("id IN ?", winners).Update("winner", true).Error; err != nil {
				return internal(op, "set winners", winners, err)
			}
		}
		res := tx.Model(&models.Match{ID: view.Match.ID}).Updates(map[string]any{"finished": true, "running": false})
		return expectRows(op, "set finished", view.Match.ID, res)
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, userID, ref)
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

package services

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"boardgame-tracker/models"
)

// TeamInput is one team in the desired state of a match. Existing teams carry
// their ID, new ones a Key that players of the same request point at.
// Roles nil keeps the roles the team's members currently share.
type TeamInput struct {
	ID      *string      `json:"id,omitempty"`
	Key     string       `json:"key,omitempty" validate:"required_without=ID"`
	Name    string       `json:"name" validate:"required"`
	Details string       `json:"details,omitempty"`
	Roles   []models.Ref `json:"roles" validate:"omitempty,dive"`
}

// PlayerInput is one seat in the desired state of a match. Player and Roles
// are in the caller's namespace. RoundScores (keyed by round order) and Score
// only seed newly inserted seats.
type PlayerInput struct {
	Player      models.Ref      `json:"player" validate:"required"`
	TeamID      *string         `json:"team_id,omitempty"`
	TeamKey     string          `json:"team_key,omitempty" validate:"excluded_with=TeamID"`
	Roles       []models.Ref    `json:"roles,omitempty" validate:"omitempty,dive"`
	Details     string          `json:"details,omitempty"`
	RoundScores map[int]float64 `json:"round_scores,omitempty"`
	Score       *float64        `json:"score,omitempty"`
}

// EditMatchInput is the full desired state of a match. A zero Date keeps the
// stored one; a nil Location clears it, unless the editor is a recipient the
// location was never shared with. Recipients only describe the seats shared
// with them; the other seats are left alone.
type EditMatchInput struct {
	Name     string        `json:"name" validate:"required"`
	Date     time.Time     `json:"date"`
	Location *models.Ref   `json:"location,omitempty"`
	Comment  string        `json:"comment,omitempty"`
	Teams    []TeamInput   `json:"teams,omitempty" validate:"omitempty,dive"`
	Players  []PlayerInput `json:"players" validate:"required,min=1,dive"`
}

// teamSlot points at an existing team or at one inserted by the same edit.
type teamSlot struct {
	id  *string
	key string
}

func (t teamSlot) sameAs(stored *string) bool {
	if t.key != "" {
		return false
	}
	if t.id == nil || stored == nil {
		return t.id == nil && stored == nil
	}
	return *t.id == *stored
}

type desiredSeat struct {
	in       PlayerInput
	playerID string
	team     teamSlot
	roles    roleSet // owner GameRole ids as original refs
}

type seatUpdate struct {
	seat        models.MatchPlayer
	team        teamSlot
	moveTeam    bool
	addRoles    []string
	removeRoles []string
}

// editPlan is the difference between the stored and the desired state.
type editPlan struct {
	newTeams     []TeamInput
	renamedTeams []models.Team
	deletedTeams []string
	inserts      []desiredSeat
	deletes      []models.MatchPlayer
	updates      []seatUpdate
}

// structural reports whether the set of competitors changed shape.
func (p *editPlan) structural() bool {
	if len(p.inserts) > 0 || len(p.deletes) > 0 {
		return true
	}
	for _, u := range p.updates {
		if u.moveTeam {
			return true
		}
	}
	return false
}

// matchState is the stored seating of one match.
type matchState struct {
	teams  map[string]models.Team
	seats  []models.MatchPlayer
	hidden []models.MatchPlayer // seats a recipient cannot see
	roles  map[string][]string  // match player id -> game role ids
}

func loadMatchState(tx *gorm.DB, op, matchID string) (*matchState, error) {
	st := &matchState{teams: map[string]models.Team{}, roles: map[string][]string{}}

	var teams []models.Team
	if err := tx.Where("match_id = ?", matchID).Order("id").Find(&teams).Error; err != nil {
		return nil, internal(op, "load teams", matchID, err)
	}
	for _, t := range teams {
		st.teams[t.ID] = t
	}

	if err := tx.Where("match_id = ?", matchID).Order("sort_order, id").Find(&st.seats).Error; err != nil {
		return nil, internal(op, "load match players", matchID, err)
	}
	if len(st.seats) == 0 {
		return st, nil
	}

	var roles []models.MatchPlayerRole
	if err := tx.Where("match_player_id IN ?", st.seatIDs()).Order("game_role_id").Find(&roles).Error; err != nil {
		return nil, internal(op, "load match player roles", matchID, err)
	}
	for _, r := range roles {
		st.roles[r.MatchPlayerID] = append(st.roles[r.MatchPlayerID], r.GameRoleID)
	}
	return st, nil
}

// restrictTo narrows the seating to the seats shared under one shared match.
// The other seats move to hidden and stay out of every diff.
func (st *matchState) restrictTo(tx *gorm.DB, op, sharedMatchID string) error {
	var shared []string
	err := tx.Model(&models.SharedMatchPlayer{}).Where("shared_match_id = ?", sharedMatchID).Pluck("match_player_id", &shared).Error
	if err != nil {
		return internal(op, "load shared seats", sharedMatchID, err)
	}
	visible := make(map[string]bool, len(shared))
	for _, id := range shared {
		visible[id] = true
	}
	var seats []models.MatchPlayer
	for _, s := range st.seats {
		if visible[s.ID] {
			seats = append(seats, s)
		} else {
			st.hidden = append(st.hidden, s)
		}
	}
	st.seats = seats
	return nil
}

func (st *matchState) hasHiddenMembers(teamID string) bool {
	for _, s := range st.hidden {
		if s.TeamID != nil && *s.TeamID == teamID {
			return true
		}
	}
	return false
}

func (st *matchState) seatIDs() []string {
	ids := make([]string, 0, len(st.seats))
	for _, s := range st.seats {
		ids = append(ids, s.ID)
	}
	return ids
}

func (st *matchState) members(teamID string) []models.MatchPlayer {
	var out []models.MatchPlayer
	for _, s := range st.seats {
		if s.TeamID != nil && *s.TeamID == teamID {
			out = append(out, s)
		}
	}
	return out
}

// teamRoles is the set of roles held by every current member of a team.
func (st *matchState) teamRoles(teamID string) roleSet {
	var sets []roleSet
	for _, s := range st.members(teamID) {
		sets = append(sets, originalRoles(st.roles[s.ID]))
	}
	return intersectAll(sets)
}

func (st *matchState) nextOrder() int {
	next := 0
	for _, seats := range [][]models.MatchPlayer{st.seats, st.hidden} {
		for _, s := range seats {
			if s.Order >= next {
				next = s.Order + 1
			}
		}
	}
	return next
}

// planEdit diffs the desired teams and players against the stored state.
// References are translated into the owner's namespace first, so a player
// reached through a share matches the seat it already holds.
func planEdit(ns namespace, st *matchState, teams []TeamInput, players []PlayerInput) (*editPlan, error) {
	op := ns.op
	plan := &editPlan{}

	submitted := map[string]bool{}
	keys := map[string]bool{}
	storedTeamRoles := map[string]roleSet{}
	newTeamRoles := map[string]roleSet{}
	for _, t := range teams {
		var explicit roleSet
		if t.Roles != nil {
			if dup, ok := firstDuplicate(t.Roles); ok {
				return nil, conflict(op, "team %q lists role %s twice", t.Name, dup)
			}
			ids, err := ns.roles(t.Roles)
			if err != nil {
				return nil, err
			}
			explicit = originalRoles(ids)
		}

		if t.ID != nil {
			stored, ok := st.teams[*t.ID]
			if !ok {
				return nil, notFound(op, "team %s in match", *t.ID)
			}
			if submitted[*t.ID] {
				return nil, conflict(op, "team %s submitted twice", *t.ID)
			}
			submitted[*t.ID] = true
			if stored.Name != t.Name || stored.Details != t.Details {
				stored.Name, stored.Details = t.Name, t.Details
				plan.renamedTeams = append(plan.renamedTeams, stored)
			}
			if t.Roles == nil {
				storedTeamRoles[stored.ID] = st.teamRoles(stored.ID)
			} else {
				storedTeamRoles[stored.ID] = explicit
			}
			continue
		}

		if keys[t.Key] {
			return nil, conflict(op, "team key %q submitted twice", t.Key)
		}
		keys[t.Key] = true
		newTeamRoles[t.Key] = explicit
		plan.newTeams = append(plan.newTeams, t)
	}

	for id := range st.teams {
		if !submitted[id] && !st.hasHiddenMembers(id) {
			plan.deletedTeams = append(plan.deletedTeams, id)
		}
	}
	sort.Strings(plan.deletedTeams)

	refs := make([]models.Ref, 0, len(players))
	for _, p := range players {
		refs = append(refs, p.Player)
	}
	if dup, ok := firstDuplicate(refs); ok {
		return nil, conflict(op, "player %s submitted twice", dup)
	}

	desired := make([]desiredSeat, 0, len(players))
	seen := map[string]models.Ref{}
	for _, p := range players {
		var slot teamSlot
		var inherited roleSet
		switch {
		case p.TeamID != nil:
			if !submitted[*p.TeamID] {
				return nil, notFound(op, "team %s in match", *p.TeamID)
			}
			slot = teamSlot{id: p.TeamID}
			inherited = storedTeamRoles[*p.TeamID]
		case p.TeamKey != "":
			if !keys[p.TeamKey] {
				return nil, notFound(op, "team key %q in request", p.TeamKey)
			}
			slot = teamSlot{key: p.TeamKey}
			inherited = newTeamRoles[p.TeamKey]
		}

		if dup, ok := firstDuplicate(p.Roles); ok {
			return nil, conflict(op, "player %s lists role %s twice", p.Player, dup)
		}

		playerID, err := ns.player(p.Player)
		if err != nil {
			return nil, err
		}
		if prev, ok := seen[playerID]; ok {
			return nil, conflict(op, "players %s and %s are the same player", prev, p.Player)
		}
		seen[playerID] = p.Player

		personal, err := ns.roles(p.Roles)
		if err != nil {
			return nil, err
		}
		desired = append(desired, desiredSeat{
			in:       p,
			playerID: playerID,
			team:     slot,
			roles:    originalRoles(personal).union(inherited),
		})
	}

	stored := make(map[string]models.MatchPlayer, len(st.seats))
	for _, s := range st.seats {
		stored[s.PlayerID] = s
	}
	hidden := make(map[string]bool, len(st.hidden))
	for _, s := range st.hidden {
		hidden[s.PlayerID] = true
	}
	kept := map[string]bool{}
	for _, d := range desired {
		seat, ok := stored[d.playerID]
		if !ok {
			if hidden[d.playerID] {
				return nil, conflict(op, "player %s already has a seat in the match", d.in.Player)
			}
			plan.inserts = append(plan.inserts, d)
			continue
		}
		kept[seat.ID] = true

		current := originalRoles(st.roles[seat.ID])
		var removed []string
		for _, id := range current.minus(d.roles).ids() {
			if ns.seesRole(id) {
				removed = append(removed, id)
			}
		}
		u := seatUpdate{
			seat:        seat,
			team:        d.team,
			moveTeam:    !d.team.sameAs(seat.TeamID),
			addRoles:    d.roles.minus(current).ids(),
			removeRoles: removed,
		}
		if u.moveTeam || len(u.addRoles) > 0 || len(u.removeRoles) > 0 {
			plan.updates = append(plan.updates, u)
		}
	}
	for _, s := range st.seats {
		if !kept[s.ID] {
			plan.deletes = append(plan.deletes, s)
		}
	}
	return plan, nil
}

// applyPlan writes an edit plan in dependency order: teams first, then seat
// inserts, deletes and updates, then team deletes, then the placement
// recompute when the competitors of a finished match changed.
func applyPlan(tx *gorm.DB, op string, m *models.Match, st *matchState, plan *editPlan) error {
	teamIDs := map[string]string{}
	for _, t := range plan.newTeams {
		team := models.Team{MatchID: m.ID, Name: t.Name, Details: t.Details}
		if err := tx.Create(&team).Error; err != nil {
			return internal(op, "insert team", t.Name, err)
		}
		teamIDs[t.Key] = team.ID
	}
	for _, t := range plan.renamedTeams {
		res := tx.Model(&models.Team{ID: t.ID}).Updates(map[string]any{"name": t.Name, "details": t.Details})
		if err := expectRows(op, "update team", t.ID, res); err != nil {
			return err
		}
	}

	slotID := func(s teamSlot) *string {
		if s.key != "" {
			id := teamIDs[s.key]
			return &id
		}
		return s.id
	}

	if len(plan.inserts) > 0 {
		rounds, err := loadRounds(tx, op, m.ScoresheetID)
		if err != nil {
			return err
		}
		order := st.nextOrder()
		for _, d := range plan.inserts {
			if err := insertSeat(tx, op, m, st, d, slotID(d.team), order, rounds); err != nil {
				return err
			}
			order++
		}
	}

	ids := make([]string, 0, len(plan.deletes))
	for _, s := range plan.deletes {
		ids = append(ids, s.ID)
	}
	if err := deleteSeats(tx, op, ids); err != nil {
		return err
	}

	for _, u := range plan.updates {
		if u.moveTeam {
			res := tx.Model(&models.MatchPlayer{ID: u.seat.ID}).Update("team_id", slotID(u.team))
			if err := expectRows(op, "move team", u.seat.ID, res); err != nil {
				return err
			}
		}
		if err := addSeatRoles(tx, op, u.seat.ID, u.addRoles); err != nil {
			return err
		}
		if err := removeSeatRoles(tx, op, u.seat.ID, u.removeRoles); err != nil {
			return err
		}
	}

	if len(plan.deletedTeams) > 0 {
		err := tx.Model(&models.MatchPlayer{}).Where("team_id IN ?", plan.deletedTeams).Update("team_id", nil).Error
		if err != nil {
			return internal(op, "clear team refs", plan.deletedTeams, err)
		}
		if err := tx.Where("id IN ?", plan.deletedTeams).Delete(&models.Team{}).Error; err != nil {
			return internal(op, "delete teams", plan.deletedTeams, err)
		}
	}

	if plan.structural() && m.Finished {
		sheet, err := loadScoresheet(tx, op, m.ScoresheetID)
		if err != nil {
			return err
		}
		if sheet.WinCondition != models.WinManual {
			if err := recompute(tx, op, m, sheet, false); err != nil {
				return err
			}
		}
	}
	return nil
}

// insertSeat adds one match player. Joining a team of a finished match copies
// the team's scores, which the team shares.
func insertSeat(tx *gorm.DB, op string, m *models.Match, st *matchState, d desiredSeat, teamID *string, order int, rounds []models.Round) error {
	seat := models.MatchPlayer{
		MatchID:  m.ID,
		PlayerID: d.playerID,
		TeamID:   teamID,
		Details:  d.in.Details,
		Order:    order,
	}

	var mate *models.MatchPlayer
	if m.Finished && teamID != nil {
		if members := st.members(*teamID); len(members) > 0 {
			mate = &members[0]
			seat.Score = copyFloat(mate.Score)
			seat.Placement = copyInt(mate.Placement)
			seat.Winner = mate.Winner
		}
	}
	if d.in.Score != nil {
		seat.Score = copyFloat(d.in.Score)
	}
	if err := tx.Create(&seat).Error; err != nil {
		return internal(op, "insert match player", d.playerID, err)
	}

	if mate != nil {
		var scores []models.RoundPlayer
		if err := tx.Where("match_player_id = ?", mate.ID).Find(&scores).Error; err != nil {
			return internal(op, "load team scores", mate.ID, err)
		}
		for _, rp := range scores {
			if err := upsertRoundScore(tx, op, rp.RoundID, seat.ID, rp.Score); err != nil {
				return err
			}
		}
	}

	byOrder := make(map[int]string, len(rounds))
	for _, r := range rounds {
		byOrder[r.Order] = r.ID
	}
	orders := make([]int, 0, len(d.in.RoundScores))
	for o := range d.in.RoundScores {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	for _, o := range orders {
		roundID, ok := byOrder[o]
		if !ok {
			return notFound(op, "round %d of the match scoresheet", o)
		}
		score := d.in.RoundScores[o]
		if err := upsertRoundScore(tx, op, roundID, seat.ID, &score); err != nil {
			return err
		}
	}

	return addSeatRoles(tx, op, seat.ID, d.roles.ids())
}

func upsertRoundScore(tx *gorm.DB, op, roundID, seatID string, score *float64) error {
	rp := models.RoundPlayer{RoundID: roundID, MatchPlayerID: seatID, Score: copyFloat(score)}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "round_id"}, {Name: "match_player_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&rp).Error
	if err != nil {
		return internal(op, "upsert round score", map[string]string{"round_id": roundID, "match_player_id": seatID}, err)
	}
	return nil
}

func addSeatRoles(tx *gorm.DB, op, seatID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	rows := make([]models.MatchPlayerRole, 0, len(roleIDs))
	for _, id := range roleIDs {
		rows = append(rows, models.MatchPlayerRole{MatchPlayerID: seatID, GameRoleID: id})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return internal(op, "insert match player roles", seatID, err)
	}
	return nil
}

// removeSeatRoles drops roles from a seat together with their mirrors on the
// seat's share rows.
func removeSeatRoles(tx *gorm.DB, op, seatID string, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	shared := tx.Model(&models.SharedMatchPlayer{}).Select("id").Where("match_player_id = ?", seatID)
	sharedRoles := tx.Model(&models.SharedGameRole{}).Select("id").Where("game_role_id IN ?", roleIDs)
	err := tx.Where("shared_match_player_id IN (?) AND shared_game_role_id IN (?)", shared, sharedRoles).
		Delete(&models.SharedMatchPlayerRole{}).Error
	if err != nil {
		return internal(op, "delete role mirrors", seatID, err)
	}
	err = tx.Where("match_player_id = ? AND game_role_id IN ?", seatID, roleIDs).Delete(&models.MatchPlayerRole{}).Error
	if err != nil {
		return internal(op, "delete match player roles", seatID, err)
	}
	return nil
}

// deleteSeats removes match players and everything hanging off them.
func deleteSeats(tx *gorm.DB, op string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	shared := tx.Model(&models.SharedMatchPlayer{}).Select("id").Where("match_player_id IN ?", ids)
	steps := []struct {
		stage string
		run   func() error
	}{
		{"delete role mirrors", func() error {
			return tx.Where("shared_match_player_id IN (?)", shared).Delete(&models.SharedMatchPlayerRole{}).Error
		}},
		{"delete shared seats", func() error {
			return tx.Where("match_player_id IN ?", ids).Delete(&models.SharedMatchPlayer{}).Error
		}},
		{"delete seat share requests", func() error {
			return tx.Where("item_type = ? AND item_id IN ?", models.ItemMatchPlayer, ids).Delete(&models.ShareRequest{}).Error
		}},
		{"delete seat roles", func() error {
			return tx.Where("match_player_id IN ?", ids).Delete(&models.MatchPlayerRole{}).Error
		}},
		{"delete round scores", func() error {
			return tx.Where("match_player_id IN ?", ids).Delete(&models.RoundPlayer{}).Error
		}},
		{"delete match players", func() error {
			return tx.Where("id IN ?", ids).Delete(&models.MatchPlayer{}).Error
		}},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return internal(op, s.stage, ids, err)
		}
	}
	return nil
}

// EditMatch replaces the teams and players of a match with the desired state
// in one transaction, then re-runs sharing for recipients the match already
// reached so new seats follow.
func (s *MatchService) EditMatch(ctx context.Context, userID string, ref models.Ref, in EditMatchInput) (*MatchDetail, error) {
	const op = "edit match"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}

	var m models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := resolveMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		if !view.Permission.CanEdit() {
			return unauthorized(op, "view-only access to match %s", ref)
		}
		m = view.Match

		ns, err := editNamespace(tx, op, userID, view)
		if err != nil {
			return err
		}
		st, err := loadMatchState(tx, op, m.ID)
		if err != nil {
			return err
		}
		if !view.IsOwner() {
			if err := st.restrictTo(tx, op, view.SharedMatch.ID); err != nil {
				return err
			}
		}
		plan, err := planEdit(ns, st, in.Teams, in.Players)
		if err != nil {
			return err
		}
		loc, err := ns.location(in.Location)
		if err != nil {
			return err
		}
		if in.Location == nil && m.LocationID != nil {
			// a recipient cannot name a location that was never shared with them
			seen, err := ns.seesLocation(*m.LocationID)
			if err != nil {
				return err
			}
			if !seen {
				loc = m.LocationID
			}
		}

		fields := map[string]any{"name": in.Name, "location_id": loc, "comment": in.Comment}
		if !in.Date.IsZero() {
			fields["date"] = in.Date
		}
		res := tx.Model(&models.Match{ID: m.ID}).Updates(fields)
		if err := expectRows(op, "update match", m.ID, res); err != nil {
			return err
		}
		return applyPlan(tx, op, &m, st, plan)
	})
	if err != nil {
		return nil, err
	}

	s.reshare(ctx, m.OwnerID, m.ID, true)
	return s.GetMatch(ctx, userID, ref)
}

package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"boardgame-tracker/models"
)

// cascade shares one match with one recipient inside a single transaction.
// Every stage either reuses a shared row the recipient already has, or
// records a share request and, when the recipient accepts automatically,
// materializes the shared row.
type cascade struct {
	tx          *gorm.DB
	op          string
	owner       string
	recipient   string
	out         models.FriendSetting // owner's settings toward the recipient
	in          models.FriendSetting // recipient's settings toward the owner
	forceAccept bool

	match          models.Match
	root           *models.ShareRequest
	sharedGame     *string
	sharedLocation *string
	sharedParent   *string
	sharedSheet    *string
	sharedMatch    *string
	sharedSeats    int
}

type cascadeStage struct {
	name string
	run  func(*cascade) error
}

var matchCascade = []cascadeStage{
	{"match request", (*cascade).requestMatch},
	{"game", (*cascade).shareGame},
	{"location", (*cascade).shareLocation},
	{"scoresheet parent", (*cascade).shareParentScoresheet},
	{"scoresheet", (*cascade).shareMatchScoresheet},
	{"match", (*cascade).shareMatch},
	{"players", (*cascade).sharePlayers},
}

func (c *cascade) run() error {
	for _, st := range matchCascade {
		if err := st.run(c); err != nil {
			var opErr *OpError
			if errors.As(err, &opErr) {
				if opErr.Stage == "" {
					opErr.Stage = st.name
				}
				return err
			}
			return internal(c.op, st.name, c.match.ID, err)
		}
	}
	return nil
}

// accepts reports whether a share of item is accepted without asking. A
// match the recipient auto-accepts takes all of its dependencies along.
func (c *cascade) accepts(item models.ItemType) bool {
	return c.forceAccept || c.in.AutoAcceptMatches || c.in.AutoAccepts(item)
}

// dependency is one shareable item and how to find or build its shared row.
type dependency struct {
	item        models.ItemType
	itemID      string
	model       any
	where       string
	args        []any
	materialize func(perm models.Permission) (string, error)
}

// share returns the recipient's shared row id for d, or nil while the share
// awaits acceptance.
func (c *cascade) share(d dependency) (*string, error) {
	if d.where != "" {
		id, ok, err := existingID(c.tx, d.model, d.where, d.args...)
		if err != nil {
			return nil, internal(c.op, "find shared "+string(d.item), d.itemID, err)
		}
		if ok {
			return &id, c.settle(d.item, d.itemID, id)
		}
	}

	req, err := c.request(d.item, d.itemID)
	if err != nil {
		return nil, err
	}
	if req.Status == models.ShareAccepted && req.SharedRowID != nil {
		id, ok, err := existingID(c.tx, d.model, "id = ?", *req.SharedRowID)
		if err != nil {
			return nil, internal(c.op, "find accepted "+string(d.item), req.ID, err)
		}
		if ok {
			return &id, nil
		}
	}

	if !c.accepts(d.item) {
		if req.Status != models.SharePending {
			err := c.tx.Model(req).Updates(map[string]any{"status": models.SharePending, "shared_row_id": nil}).Error
			if err != nil {
				return nil, internal(c.op, "reopen request", req.ID, err)
			}
		}
		return nil, nil
	}

	id, err := d.materialize(req.Permission)
	if err != nil {
		return nil, err
	}
	res := c.tx.Model(req).Updates(map[string]any{"status": models.ShareAccepted, "shared_row_id": id})
	if err := expectRows(c.op, "accept request", req.ID, res); err != nil {
		return nil, err
	}
	return &id, nil
}

// request finds the recipient's request for an item, preferring an accepted
// one, or records a new pending request under the root match request.
func (c *cascade) request(item models.ItemType, itemID string) (*models.ShareRequest, error) {
	var req models.ShareRequest
	err := c.tx.Where("owner_id = ? AND shared_with_id = ? AND item_type = ? AND item_id = ?", c.owner, c.recipient, item, itemID).
		Order("CASE WHEN status = 'accepted' THEN 0 ELSE 1 END, created_at, id").
		First(&req).Error
	if err == nil {
		return &req, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, internal(c.op, "find request", itemID, err)
	}

	req = models.ShareRequest{
		OwnerID:      c.owner,
		SharedWithID: c.recipient,
		ItemType:     item,
		ItemID:       itemID,
		Status:       models.SharePending,
		Permission:   c.out.PermissionFor(item),
	}
	if item != models.ItemMatch && c.root != nil {
		req.ParentShareID = &c.root.ID
	}
	if err := c.tx.Create(&req).Error; err != nil {
		return nil, internal(c.op, "insert request", itemID, err)
	}
	return &req, nil
}

// settle marks open requests for an item as served by an existing row.
func (c *cascade) settle(item models.ItemType, itemID, rowID string) error {
	err := c.tx.Model(&models.ShareRequest{}).
		Where("owner_id = ? AND shared_with_id = ? AND item_type = ? AND item_id = ? AND status = ?", c.owner, c.recipient, item, itemID, models.SharePending).
		Updates(map[string]any{"status": models.ShareAccepted, "shared_row_id": rowID}).Error
	if err != nil {
		return internal(c.op, "settle request", itemID, err)
	}
	return nil
}

func existingID(tx *gorm.DB, model any, where string, args ...any) (string, bool, error) {
	var ids []string
	if err := tx.Model(model).Where(where, args...).Order("id").Limit(1).Pluck("id", &ids).Error; err != nil {
		return "", false, err
	}
	if len(ids) == 0 {
		return "", false, nil
	}
	return ids[0], true, nil
}

// need fails when a predecessor the shared row points at was not produced.
func (c *cascade) need(id *string, what string, payload any) (string, error) {
	if id == nil {
		return "", internal(c.op, "materialize", payload, errors.New("missing shared "+what))
	}
	return *id, nil
}

func (c *cascade) requestMatch() error {
	req, err := c.request(models.ItemMatch, c.match.ID)
	if err != nil {
		return err
	}
	c.root = req
	return nil
}

func (c *cascade) gameDependency(gameID string) dependency {
	return dependency{
		item:   models.ItemGame,
		itemID: gameID,
		model:  &models.SharedGame{},
		where:  "shared_with_id = ? AND game_id = ?",
		args:   []any{c.recipient, gameID},
		materialize: func(perm models.Permission) (string, error) {
			row := models.SharedGame{OwnerID: c.owner, SharedWithID: c.recipient, GameID: gameID, Permission: perm}
			if err := c.tx.Create(&row).Error; err != nil {
				return "", internal(c.op, "insert shared game", gameID, err)
			}
			return row.ID, nil
		},
	}
}

func (c *cascade) locationDependency(locationID string) dependency {
	return dependency{
		item:   models.ItemLocation,
		itemID: locationID,
		model:  &models.SharedLocation{},
		where:  "shared_with_id = ? AND location_id = ?",
		args:   []any{c.recipient, locationID},
		materialize: func(perm models.Permission) (string, error) {
			row := models.SharedLocation{OwnerID: c.owner, SharedWithID: c.recipient, LocationID: locationID, Permission: perm}
			if err := c.tx.Create(&row).Error; err != nil {
				return "", internal(c.op, "insert shared location", locationID, err)
			}
			return row.ID, nil
		},
	}
}

func (c *cascade) playerDependency(playerID string) dependency {
	return dependency{
		item:   models.ItemPlayer,
		itemID: playerID,
		model:  &models.SharedPlayer{},
		where:  "shared_with_id = ? AND player_id = ?",
		args:   []any{c.recipient, playerID},
		materialize: func(perm models.Permission) (string, error) {
			row := models.SharedPlayer{OwnerID: c.owner, SharedWithID: c.recipient, PlayerID: playerID, Permission: perm}
			if err := c.tx.Create(&row).Error; err != nil {
				return "", internal(c.op, "insert shared player", playerID, err)
			}
			return row.ID, nil
		},
	}
}

func (c *cascade) scoresheetDependency(sheet *models.Scoresheet, parent *string) dependency {
	return dependency{
		item:   models.ItemScoresheet,
		itemID: sheet.ID,
		model:  &models.SharedScoresheet{},
		where:  "shared_with_id = ? AND scoresheet_id = ?",
		args:   []any{c.recipient, sheet.ID},
		materialize: func(perm models.Permission) (string, error) {
			gameID, err := c.need(c.sharedGame, "game", sheet.ID)
			if err != nil {
				return "", err
			}
			row := models.SharedScoresheet{
				OwnerID:      c.owner,
				SharedWithID: c.recipient,
				ScoresheetID: sheet.ID,
				SharedGameID: gameID,
				ParentID:     parent,
				Type:         sheet.Type,
				Permission:   perm,
			}
			if err := c.tx.Create(&row).Error; err != nil {
				return "", internal(c.op, "insert shared scoresheet", sheet.ID, err)
			}
			return row.ID, nil
		},
	}
}

func (c *cascade) shareGame() (err error) {
	c.sharedGame, err = c.share(c.gameDependency(c.match.GameID))
	return err
}

func (c *cascade) shareLocation() (err error) {
	if c.match.LocationID == nil {
		return nil
	}
	c.sharedLocation, err = c.share(c.locationDependency(*c.match.LocationID))
	return err
}

func (c *cascade) shareParentScoresheet() error {
	sheet, err := loadScoresheet(c.tx, c.op, c.match.ScoresheetID)
	if err != nil {
		return err
	}
	if sheet.ParentID == nil {
		return nil
	}
	parent, err := loadScoresheet(c.tx, c.op, *sheet.ParentID)
	if err != nil {
		return err
	}
	c.sharedParent, err = c.share(c.scoresheetDependency(parent, nil))
	return err
}

func (c *cascade) shareMatchScoresheet() error {
	sheet, err := loadScoresheet(c.tx, c.op, c.match.ScoresheetID)
	if err != nil {
		return err
	}
	c.sharedSheet, err = c.share(c.scoresheetDependency(sheet, c.sharedParent))
	return err
}

func (c *cascade) shareMatch() error {
	id, err := c.share(dependency{
		item:   models.ItemMatch,
		itemID: c.match.ID,
		model:  &models.SharedMatch{},
		where:  "shared_with_id = ? AND match_id = ?",
		args:   []any{c.recipient, c.match.ID},
		materialize: func(perm models.Permission) (string, error) {
			gameID, err := c.need(c.sharedGame, "game", c.match.ID)
			if err != nil {
				return "", err
			}
			sheetID, err := c.need(c.sharedSheet, "scoresheet", c.match.ID)
			if err != nil {
				return "", err
			}
			row := models.SharedMatch{
				OwnerID:            c.owner,
				SharedWithID:       c.recipient,
				MatchID:            c.match.ID,
				SharedGameID:       gameID,
				SharedScoresheetID: sheetID,
				SharedLocationID:   c.sharedLocation,
				Permission:         perm,
			}
			if err := c.tx.Create(&row).Error; err != nil {
				return "", internal(c.op, "insert shared match", c.match.ID, err)
			}
			return row.ID, nil
		},
	})
	if err != nil {
		return err
	}
	c.sharedMatch = id
	if id == nil {
		return nil
	}
	// the match may have moved since it was first shared
	err = c.tx.Model(&models.SharedMatch{ID: *id}).Update("shared_location_id", c.sharedLocation).Error
	if err != nil {
		return internal(c.op, "sync shared location", *id, err)
	}
	return nil
}

func (c *cascade) sharePlayers() error {
	var seats []models.MatchPlayer
	if err := c.tx.Where("match_id = ?", c.match.ID).Order("sort_order, id").Find(&seats).Error; err != nil {
		return internal(c.op, "load match players", c.match.ID, err)
	}
	withPlayers := c.out.SharePlayersWithMatch && c.in.AllowSharedPlayers

	for _, seat := range seats {
		var sharedPlayer *string
		if withPlayers {
			id, err := c.share(c.playerDependency(seat.PlayerID))
			if err != nil {
				return err
			}
			sharedPlayer = id
		}

		d := dependency{
			item:   models.ItemMatchPlayer,
			itemID: seat.ID,
			model:  &models.SharedMatchPlayer{},
			materialize: func(perm models.Permission) (string, error) {
				matchID, err := c.need(c.sharedMatch, "match", seat.ID)
				if err != nil {
					return "", err
				}
				row := models.SharedMatchPlayer{
					MatchPlayerID:  seat.ID,
					SharedMatchID:  matchID,
					OwnerID:        c.owner,
					SharedWithID:   c.recipient,
					SharedPlayerID: sharedPlayer,
					Permission:     perm,
				}
				if err := c.tx.Create(&row).Error; err != nil {
					return "", internal(c.op, "insert shared match player", seat.ID, err)
				}
				return row.ID, nil
			},
		}
		if c.sharedMatch != nil {
			d.where = "shared_match_id = ? AND match_player_id = ?"
			d.args = []any{*c.sharedMatch, seat.ID}
		}
		seatID, err := c.share(d)
		if err != nil {
			return err
		}
		if seatID == nil {
			continue
		}
		c.sharedSeats++

		if sharedPlayer != nil {
			err := c.tx.Model(&models.SharedMatchPlayer{}).
				Where("id = ? AND shared_player_id IS NULL", *seatID).
				Update("shared_player_id", *sharedPlayer).Error
			if err != nil {
				return internal(c.op, "attach shared player", *seatID, err)
			}
		}
		if err := c.mirrorRoles(*seatID, seat.ID); err != nil {
			return err
		}
	}
	return nil
}

// mirrorRoles makes a shared seat carry exactly the roles of its seat,
// sharing the game roles involved on the way.
func (c *cascade) mirrorRoles(sharedSeatID, seatID string) error {
	var roleIDs []string
	if err := c.tx.Model(&models.MatchPlayerRole{}).Where("match_player_id = ?", seatID).Order("game_role_id").Pluck("game_role_id", &roleIDs).Error; err != nil {
		return internal(c.op, "load seat roles", seatID, err)
	}

	keep := make([]string, 0, len(roleIDs))
	for _, roleID := range roleIDs {
		sharedRoleID, ok, err := existingID(c.tx, &models.SharedGameRole{}, "shared_with_id = ? AND game_role_id = ?", c.recipient, roleID)
		if err != nil {
			return internal(c.op, "find shared role", roleID, err)
		}
		if !ok {
			gameID, err := c.need(c.sharedGame, "game", roleID)
			if err != nil {
				return err
			}
			row := models.SharedGameRole{
				OwnerID:      c.owner,
				SharedWithID: c.recipient,
				GameRoleID:   roleID,
				SharedGameID: gameID,
				Permission:   c.out.PermissionFor(models.ItemGame),
			}
			if err := c.tx.Create(&row).Error; err != nil {
				return internal(c.op, "insert shared role", roleID, err)
			}
			sharedRoleID = row.ID
		}
		keep = append(keep, sharedRoleID)

		mirror := models.SharedMatchPlayerRole{SharedMatchPlayerID: sharedSeatID, SharedGameRoleID: sharedRoleID}
		if err := c.tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mirror).Error; err != nil {
			return internal(c.op, "insert role mirror", mirror, err)
		}
	}

	q := c.tx.Where("shared_match_player_id = ?", sharedSeatID)
	if len(keep) > 0 {
		q = q.Where("shared_game_role_id NOT IN ?", keep)
	}
	if err := q.Delete(&models.SharedMatchPlayerRole{}).Error; err != nil {
		return internal(c.op, "prune role mirrors", sharedSeatID, err)
	}
	return nil
}

package services

import (
	"errors"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// namespace translates references submitted by an actor into the match
// owner's id space, which is where match rows live.
//
// The owner may reference their own rows or rows shared with them; shared
// rows are linked to a local copy on first use. A recipient with edit access
// may only reference rows of the match owner, either through their share rows
// or through local rows linked to one of those.
type namespace struct {
	tx     *gorm.DB
	op     string
	actor  string
	owner  string
	gameID string

	// set for recipients only
	sharedMatchID string
	visibleRoles  map[string]bool
}

// editNamespace builds the namespace an editor of a match works in.
func editNamespace(tx *gorm.DB, op, userID string, view *MatchView) (namespace, error) {
	m := view.Match
	ns := namespace{tx: tx, op: op, actor: userID, owner: m.OwnerID, gameID: m.GameID}
	if view.IsOwner() {
		return ns, nil
	}
	ns.sharedMatchID = view.SharedMatch.ID

	var roleIDs []string
	err := tx.Model(&models.SharedGameRole{}).Where("shared_with_id = ? AND owner_id = ?", userID, m.OwnerID).Pluck("game_role_id", &roleIDs).Error
	if err != nil {
		return ns, internal(op, "load shared roles", userID, err)
	}
	ns.visibleRoles = make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		ns.visibleRoles[id] = true
	}
	return ns, nil
}

func (n namespace) actorIsOwner() bool { return n.actor == n.owner }

// seesRole reports whether the actor can name an owner role at all.
func (n namespace) seesRole(id string) bool {
	return n.visibleRoles == nil || n.visibleRoles[id]
}

// seesLocation reports whether the actor can name an owner location.
func (n namespace) seesLocation(id string) (bool, error) {
	if n.actorIsOwner() {
		return true, nil
	}
	_, ok, err := existingID(n.tx, &models.SharedLocation{}, "shared_with_id = ? AND owner_id = ? AND location_id = ?", n.actor, n.owner, id)
	if err != nil {
		return false, internal(n.op, "find shared location", id, err)
	}
	return ok, nil
}

func (n namespace) player(ref models.Ref) (string, error) {
	if n.actorIsOwner() {
		switch ref.Kind {
		case models.SourceOriginal:
			var p models.Player
			err := n.tx.Where("id = ? AND owner_id = ?", ref.ID, n.owner).First(&p).Error
			return p.ID, dbErr(n.op, "player "+ref.ID, err)
		case models.SourceShared:
			return playerLinks.resolveOrCreate(n.tx, n.op, n.owner, ref.ID, nil)
		}
		return "", notFound(n.op, "player ref %s", ref)
	}

	if ref.Kind == models.SourceShared && n.sharedMatchID != "" {
		id, ok, err := n.seatPlayer(ref.ID)
		if err != nil || ok {
			return id, err
		}
	}

	var sp models.SharedPlayer
	q := n.tx.Where("shared_with_id = ? AND owner_id = ?", n.actor, n.owner)
	switch ref.Kind {
	case models.SourceShared:
		q = q.Where("id = ?", ref.ID)
	case models.SourceOriginal:
		q = q.Where("linked_player_id = ?", ref.ID)
	default:
		return "", notFound(n.op, "player ref %s", ref)
	}
	if err := q.First(&sp).Error; err != nil {
		return "", dbErr(n.op, "player "+ref.String()+" in the owner's namespace", err)
	}
	return sp.PlayerID, nil
}

// seatPlayer resolves a recipient's shared seat of the edited match to the
// owner's player sitting there. It works whether or not the player itself was
// shared.
func (n namespace) seatPlayer(sharedSeatID string) (string, bool, error) {
	var smp models.SharedMatchPlayer
	err := n.tx.Where("id = ? AND shared_match_id = ? AND shared_with_id = ?", sharedSeatID, n.sharedMatchID, n.actor).First(&smp).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, internal(n.op, "find shared seat", sharedSeatID, err)
	}
	var mp models.MatchPlayer
	if err := n.tx.Where("id = ?", smp.MatchPlayerID).First(&mp).Error; err != nil {
		return "", false, dbErr(n.op, "match player "+smp.MatchPlayerID, err)
	}
	return mp.PlayerID, true, nil
}

func (n namespace) role(ref models.Ref) (string, error) {
	var roleID string
	if n.actorIsOwner() {
		switch ref.Kind {
		case models.SourceOriginal:
			roleID = ref.ID
		case models.SourceShared:
			id, err := roleLinks.resolveOrCreate(n.tx, n.op, n.owner, ref.ID, nil)
			if err != nil {
				return "", err
			}
			roleID = id
		default:
			return "", notFound(n.op, "role ref %s", ref)
		}
	} else {
		var sr models.SharedGameRole
		q := n.tx.Where("shared_with_id = ? AND owner_id = ?", n.actor, n.owner)
		switch ref.Kind {
		case models.SourceShared:
			q = q.Where("id = ?", ref.ID)
		case models.SourceOriginal:
			q = q.Where("linked_game_role_id = ?", ref.ID)
		default:
			return "", notFound(n.op, "role ref %s", ref)
		}
		if err := q.First(&sr).Error; err != nil {
			return "", dbErr(n.op, "role "+ref.String()+" in the owner's namespace", err)
		}
		roleID = sr.GameRoleID
	}

	var role models.GameRole
	err := n.tx.Where("id = ? AND owner_id = ? AND game_id = ?", roleID, n.owner, n.gameID).First(&role).Error
	if err != nil {
		return "", dbErr(n.op, "role "+ref.String()+" of the match's game", err)
	}
	return role.ID, nil
}

// roles translates a role set, dropping duplicates that only become visible
// after translation.
func (n namespace) roles(refs roleSet) ([]string, error) {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := n.role(ref)
		if err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func (n namespace) location(ref *models.Ref) (*string, error) {
	if ref == nil {
		return nil, nil
	}
	if n.actorIsOwner() {
		switch ref.Kind {
		case models.SourceOriginal:
			var l models.Location
			if err := n.tx.Where("id = ? AND owner_id = ?", ref.ID, n.owner).First(&l).Error; err != nil {
				return nil, dbErr(n.op, "location "+ref.ID, err)
			}
			return &l.ID, nil
		case models.SourceShared:
			id, err := locationLinks.resolveOrCreate(n.tx, n.op, n.owner, ref.ID, nil)
			if err != nil {
				return nil, err
			}
			return &id, nil
		}
		return nil, notFound(n.op, "location ref %s", ref)
	}

	var sl models.SharedLocation
	q := n.tx.Where("shared_with_id = ? AND owner_id = ?", n.actor, n.owner)
	switch ref.Kind {
	case models.SourceShared:
		q = q.Where("id = ?", ref.ID)
	case models.SourceOriginal:
		q = q.Where("linked_location_id = ?", ref.ID)
	default:
		return nil, notFound(n.op, "location ref %s", ref)
	}
	if err := q.First(&sl).Error; err != nil {
		return nil, dbErr(n.op, "location "+ref.String()+" in the owner's namespace", err)
	}
	return &sl.LocationID, nil
}

// game resolves the game a new match is played on. Only owners create
// matches, so a shared game is linked to a local copy.
func (n namespace) game(ref models.Ref) (string, error) {
	switch ref.Kind {
	case models.SourceOriginal:
		var g models.Game
		err := n.tx.Where("id = ? AND owner_id = ?", ref.ID, n.owner).First(&g).Error
		return g.ID, dbErr(n.op, "game "+ref.ID, err)
	case models.SourceShared:
		return gameLinks.resolveOrCreate(n.tx, n.op, n.owner, ref.ID, nil)
	}
	return "", notFound(n.op, "game ref %s", ref)
}

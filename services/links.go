package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// shareRow is implemented by every share table whose rows can be linked to a
// recipient-owned local copy.
type shareRow interface {
	ShareID() string
	Owner() string
	Recipient() string
	SourceRowID() string
	LinkTarget() *string
	Grant() models.Permission
	Provenance() models.Provenance
}

// linkKind describes one linkable resource: where the link column lives, how
// to check a caller-chosen local row, and how to copy the owner's row.
type linkKind[S any, PS interface {
	*S
	shareRow
}] struct {
	name       string
	linkColumn string
	ownsLocal  func(tx *gorm.DB, share PS, localID string) error
	copyLocal  func(tx *gorm.DB, share PS) (string, error)
}

// resolveOrCreate returns the local id a share row is linked to, linking it
// first when needed. With target nil a local copy is created lazily; with a
// target the share is linked to that existing row. A share links to at most
// one local row, so asking for a different target later is a conflict.
func (k linkKind[S, PS]) resolveOrCreate(tx *gorm.DB, op, userID, sharedID string, target *string) (string, error) {
	var row S
	if err := tx.Where("id = ? AND shared_with_id = ?", sharedID, userID).First(&row).Error; err != nil {
		return "", dbErr(op, "shared "+k.name+" "+sharedID, err)
	}
	share := PS(&row)

	if link := share.LinkTarget(); link != nil {
		if target != nil && *target != *link {
			return "", conflict(op, "shared %s %s is already linked to %s", k.name, sharedID, *link)
		}
		return *link, nil
	}

	var localID string
	if target != nil {
		if err := k.ownsLocal(tx, share, *target); err != nil {
			return "", err
		}
		localID = *target
	} else {
		id, err := k.copyLocal(tx, share)
		if err != nil {
			return "", err
		}
		localID = id
	}

	res := tx.Model(share).Where(k.linkColumn+" IS NULL").Update(k.linkColumn, localID)
	if err := expectRows(op, "link "+k.name, map[string]string{"shared_id": sharedID, "local_id": localID}, res); err != nil {
		return "", err
	}
	return localID, nil
}

var playerLinks = linkKind[models.SharedPlayer, *models.SharedPlayer]{
	name:       "player",
	linkColumn: "linked_player_id",
	ownsLocal: func(tx *gorm.DB, share *models.SharedPlayer, localID string) error {
		var p models.Player
		err := tx.Where("id = ? AND owner_id = ?", localID, share.SharedWithID).First(&p).Error
		return dbErr("link player", "player "+localID, err)
	},
	copyLocal: func(tx *gorm.DB, share *models.SharedPlayer) (string, error) {
		var src models.Player
		if err := tx.Where("id = ?", share.PlayerID).First(&src).Error; err != nil {
			return "", dbErr("link player", "player "+share.PlayerID, err)
		}
		local := models.Player{OwnerID: share.SharedWithID, Name: src.Name}
		if err := tx.Create(&local).Error; err != nil {
			return "", internal("link player", "create local player", share.ID, err)
		}
		return local.ID, nil
	},
}

var gameLinks = linkKind[models.SharedGame, *models.SharedGame]{
	name:       "game",
	linkColumn: "linked_game_id",
	ownsLocal: func(tx *gorm.DB, share *models.SharedGame, localID string) error {
		var g models.Game
		err := tx.Where("id = ? AND owner_id = ?", localID, share.SharedWithID).First(&g).Error
		return dbErr("link game", "game "+localID, err)
	},
	copyLocal: func(tx *gorm.DB, share *models.SharedGame) (string, error) {
		var src models.Game
		if err := tx.Where("id = ?", share.GameID).First(&src).Error; err != nil {
			return "", dbErr("link game", "game "+share.GameID, err)
		}
		local := models.Game{OwnerID: share.SharedWithID, Name: src.Name, Description: src.Description}
		if err := tx.Create(&local).Error; err != nil {
			return "", internal("link game", "create local game", share.ID, err)
		}
		return local.ID, nil
	},
}

var locationLinks = linkKind[models.SharedLocation, *models.SharedLocation]{
	name:       "location",
	linkColumn: "linked_location_id",
	ownsLocal: func(tx *gorm.DB, share *models.SharedLocation, localID string) error {
		var l models.Location
		err := tx.Where("id = ? AND owner_id = ?", localID, share.SharedWithID).First(&l).Error
		return dbErr("link location", "location "+localID, err)
	},
	copyLocal: func(tx *gorm.DB, share *models.SharedLocation) (string, error) {
		var src models.Location
		if err := tx.Where("id = ?", share.LocationID).First(&src).Error; err != nil {
			return "", dbErr("link location", "location "+share.LocationID, err)
		}
		local := models.Location{OwnerID: share.SharedWithID, Name: src.Name}
		if err := tx.Create(&local).Error; err != nil {
			return "", internal("link location", "create local location", share.ID, err)
		}
		return local.ID, nil
	},
}

// Roles live inside a game, so linking a role links its shared game first.
var roleLinks = linkKind[models.SharedGameRole, *models.SharedGameRole]{
	name:       "game role",
	linkColumn: "linked_game_role_id",
	ownsLocal: func(tx *gorm.DB, share *models.SharedGameRole, localID string) error {
		gameID, err := gameLinks.resolveOrCreate(tx, "link game role", share.SharedWithID, share.SharedGameID, nil)
		if err != nil {
			return err
		}
		var r models.GameRole
		err = tx.Where("id = ? AND owner_id = ? AND game_id = ?", localID, share.SharedWithID, gameID).First(&r).Error
		return dbErr("link game role", "game role "+localID, err)
	},
	copyLocal: func(tx *gorm.DB, share *models.SharedGameRole) (string, error) {
		gameID, err := gameLinks.resolveOrCreate(tx, "link game role", share.SharedWithID, share.SharedGameID, nil)
		if err != nil {
			return "", err
		}
		var src models.GameRole
		if err := tx.Where("id = ?", share.GameRoleID).First(&src).Error; err != nil {
			return "", dbErr("link game role", "game role "+share.GameRoleID, err)
		}
		local := models.GameRole{GameID: gameID, OwnerID: share.SharedWithID, Name: src.Name, Description: src.Description}
		if err := tx.Create(&local).Error; err != nil {
			return "", internal("link game role", "create local role", share.ID, err)
		}
		return local.ID, nil
	},
}

// LinkKind names a linkable resource on the public API.
type LinkKind string

const (
	LinkPlayer   LinkKind = "player"
	LinkGame     LinkKind = "game"
	LinkLocation LinkKind = "location"
	LinkGameRole LinkKind = "gameRole"
)

var errUnknownLinkKind = errors.New("unknown link kind")

// LinkService lets a recipient merge a shared row into their own history.
type LinkService struct {
	DB *gorm.DB
}

func NewLinkService(db *gorm.DB) *LinkService {
	return &LinkService{DB: db}
}

// Link links the caller's share row to localID, or to a fresh local copy when
// localID is nil, and returns the local id.
func (s *LinkService) Link(ctx context.Context, userID string, kind LinkKind, sharedID string, localID *string) (string, error) {
	const op = "link"
	var out string
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		switch kind {
		case LinkPlayer:
			out, err = playerLinks.resolveOrCreate(tx, op, userID, sharedID, localID)
		case LinkGame:
			out, err = gameLinks.resolveOrCreate(tx, op, userID, sharedID, localID)
		case LinkLocation:
			out, err = locationLinks.resolveOrCreate(tx, op, userID, sharedID, localID)
		case LinkGameRole:
			out, err = roleLinks.resolveOrCreate(tx, op, userID, sharedID, localID)
		default:
			err = invalid(op, errUnknownLinkKind)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

package services

import (
	"context"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

// MatchView is a match as one user sees it: owned outright, or reached through
// a share grant.
type MatchView struct {
	Match       models.Match
	SharedMatch *models.SharedMatch // nil for owners
	Permission  models.Permission
	Provenance  models.Provenance
}

func (v *MatchView) CanonicalMatchID() string     { return v.Match.ID }
func (v *MatchView) SourceType() models.SourceType { return v.Provenance.Source() }
func (v *MatchView) IsOwner() bool                 { return v.SharedMatch == nil }

// Identity is the canonical identity of one match player for one user.
type Identity struct {
	CanonicalMatchID    string            `json:"canonical_match_id"`
	BaseMatchPlayerID   string            `json:"base_match_player_id"`
	SharedMatchPlayerID *string           `json:"shared_match_player_id"`
	SharedPlayerID      *string           `json:"shared_player_id,omitempty"`
	CanonicalPlayerID   string            `json:"canonical_player_id"`
	Permission          models.Permission `json:"permission"`
	SourceType          models.SourceType `json:"source_type"`
}

// Resolver unifies owned and shared rows into one identity per user.
// It never writes.
type Resolver struct {
	DB *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{DB: db}
}

// Resolve returns the canonical identity of a match player reached through
// matchRef by userID.
func (r *Resolver) Resolve(ctx context.Context, userID string, matchRef, playerRef models.Ref) (*Identity, error) {
	tx := r.DB.WithContext(ctx)
	view, err := resolveMatch(tx, "resolve", userID, matchRef)
	if err != nil {
		return nil, err
	}
	return resolveMatchPlayer(tx, "resolve", view, playerRef)
}

// Match resolves only the match part of a reference.
func (r *Resolver) Match(ctx context.Context, userID string, matchRef models.Ref) (*MatchView, error) {
	return resolveMatch(r.DB.WithContext(ctx), "resolve match", userID, matchRef)
}

// Player resolves a player reference to the id activity should accrue to.
func (r *Resolver) Player(ctx context.Context, userID string, ref models.Ref) (string, models.Provenance, error) {
	return resolvePlayer(r.DB.WithContext(ctx), "resolve player", userID, ref)
}

func resolveMatch(tx *gorm.DB, op, userID string, ref models.Ref) (*MatchView, error) {
	switch ref.Kind {
	case models.SourceOriginal:
		var m models.Match
		if err := tx.Where("id = ? AND owner_id = ?", ref.ID, userID).First(&m).Error; err != nil {
			return nil, dbErr(op, "match "+ref.ID, err)
		}
		return &MatchView{
			Match:      m,
			Permission: models.PermissionEdit,
			Provenance: models.Original{},
		}, nil

	case models.SourceShared:
		var sm models.SharedMatch
		if err := tx.Where("id = ? AND shared_with_id = ?", ref.ID, userID).First(&sm).Error; err != nil {
			return nil, dbErr(op, "shared match "+ref.ID, err)
		}
		var m models.Match
		if err := tx.Where("id = ? AND owner_id = ?", sm.MatchID, sm.OwnerID).First(&m).Error; err != nil {
			return nil, dbErr(op, "match "+sm.MatchID, err)
		}
		return &MatchView{
			Match:       m,
			SharedMatch: &sm,
			Permission:  sm.Permission,
			Provenance:  models.Shared{OwnerID: sm.OwnerID},
		}, nil
	}
	return nil, notFound(op, "match ref %s", ref)
}

func resolveMatchPlayer(tx *gorm.DB, op string, view *MatchView, ref models.Ref) (*Identity, error) {
	id := &Identity{
		CanonicalMatchID: view.Match.ID,
		Permission:       view.Permission,
		SourceType:       view.SourceType(),
	}

	switch {
	case ref.Kind == models.SourceOriginal && view.IsOwner():
		var mp models.MatchPlayer
		if err := tx.Where("id = ? AND match_id = ?", ref.ID, view.Match.ID).First(&mp).Error; err != nil {
			return nil, dbErr(op, "match player "+ref.ID, err)
		}
		id.BaseMatchPlayerID = mp.ID
		id.CanonicalPlayerID = mp.PlayerID
		return id, nil

	case ref.Kind == models.SourceShared && !view.IsOwner():
		var smp models.SharedMatchPlayer
		if err := tx.Where("id = ? AND shared_match_id = ?", ref.ID, view.SharedMatch.ID).First(&smp).Error; err != nil {
			return nil, dbErr(op, "shared match player "+ref.ID, err)
		}
		var mp models.MatchPlayer
		if err := tx.Where("id = ? AND match_id = ?", smp.MatchPlayerID, view.Match.ID).First(&mp).Error; err != nil {
			return nil, dbErr(op, "match player "+smp.MatchPlayerID, err)
		}
		canonical, err := canonicalSharedSeat(tx, op, &smp, &mp)
		if err != nil {
			return nil, err
		}
		sid := smp.ID
		id.BaseMatchPlayerID = mp.ID
		id.SharedMatchPlayerID = &sid
		id.SharedPlayerID = copyString(smp.SharedPlayerID)
		id.CanonicalPlayerID = canonical
		return id, nil
	}
	return nil, notFound(op, "match player ref %s", ref)
}

// canonicalSharedSeat follows a shared seat to its player: the recipient's
// linked player if one exists, otherwise the owner's player.
func canonicalSharedSeat(tx *gorm.DB, op string, smp *models.SharedMatchPlayer, mp *models.MatchPlayer) (string, error) {
	if smp.SharedPlayerID == nil {
		return mp.PlayerID, nil
	}
	var sp models.SharedPlayer
	if err := tx.Where("id = ?", *smp.SharedPlayerID).First(&sp).Error; err != nil {
		return "", dbErr(op, "shared player "+*smp.SharedPlayerID, err)
	}
	return canonicalID(&sp), nil
}

// canonicalID applies the single indirection rule: a local link wins over the
// owner's row.
func canonicalID(row shareRow) string {
	if link := row.LinkTarget(); link != nil {
		return *link
	}
	return row.SourceRowID()
}

func resolvePlayer(tx *gorm.DB, op, userID string, ref models.Ref) (string, models.Provenance, error) {
	switch ref.Kind {
	case models.SourceOriginal:
		var p models.Player
		if err := tx.Where("id = ? AND owner_id = ?", ref.ID, userID).First(&p).Error; err != nil {
			return "", nil, dbErr(op, "player "+ref.ID, err)
		}
		return p.ID, models.Original{}, nil
	case models.SourceShared:
		var sp models.SharedPlayer
		if err := tx.Where("id = ? AND shared_with_id = ?", ref.ID, userID).First(&sp).Error; err != nil {
			return "", nil, dbErr(op, "shared player "+ref.ID, err)
		}
		return canonicalID(&sp), sp.Provenance(), nil
	}
	return "", nil, notFound(op, "player ref %s", ref)
}

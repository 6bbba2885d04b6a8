package models

import (
	"time"

	"gorm.io/gorm"
)

type ItemType string

const (
	ItemMatch       ItemType = "match"
	ItemMatchPlayer ItemType = "matchPlayer"
	ItemPlayer      ItemType = "player"
	ItemGame        ItemType = "game"
	ItemScoresheet  ItemType = "scoresheet"
	ItemLocation    ItemType = "location"
)

type ShareStatus string

const (
	SharePending  ShareStatus = "pending"
	ShareAccepted ShareStatus = "accepted"
)

// ShareRequest is the ledger row for exposing one item to one recipient.
// ParentShareID threads the dependent requests of one top-level share, and
// SharedRowID records the shared row produced on acceptance.
type ShareRequest struct {
	ID            string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID       string      `gorm:"not null;index:idx_share_requests_item" json:"owner_id"`
	SharedWithID  string      `gorm:"not null;index:idx_share_requests_item;index" json:"shared_with_id"`
	ItemType      ItemType    `gorm:"type:varchar(16);not null;index:idx_share_requests_item" json:"item_type"`
	ItemID        string      `gorm:"not null;index:idx_share_requests_item" json:"item_id"`
	Status        ShareStatus `gorm:"type:varchar(16);not null" json:"status"`
	Permission    Permission  `gorm:"type:varchar(8);not null" json:"permission"`
	ParentShareID *string     `gorm:"index" json:"parent_share_id,omitempty"`
	SharedRowID   *string     `json:"shared_row_id,omitempty"`
	CreatedAt     time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
}

func (r *ShareRequest) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// FriendSetting holds UserID's preferences toward FriendID. Two users are
// friends when both directions exist. The share-side flags are read from the
// owner's row, the receive-side flags from the recipient's row.
type FriendSetting struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID   string `gorm:"not null;uniqueIndex:idx_friend_settings_pair" json:"user_id"`
	FriendID string `gorm:"not null;uniqueIndex:idx_friend_settings_pair" json:"friend_id"`

	// sharing out
	AutoShareMatches      bool       `json:"auto_share_matches"`
	SharePlayersWithMatch bool       `json:"share_players_with_match"`
	DefaultMatchPerm      Permission `gorm:"type:varchar(8);not null;default:'view'" json:"default_match_permission"`
	DefaultPlayerPerm     Permission `gorm:"type:varchar(8);not null;default:'view'" json:"default_player_permission"`
	DefaultLocationPerm   Permission `gorm:"type:varchar(8);not null;default:'view'" json:"default_location_permission"`
	DefaultGamePerm       Permission `gorm:"type:varchar(8);not null;default:'view'" json:"default_game_permission"`

	// receiving
	AllowSharedMatches  bool `json:"allow_shared_matches"`
	AllowSharedPlayers  bool `json:"allow_shared_players"`
	AutoAcceptMatches   bool `json:"auto_accept_matches"`
	AutoAcceptPlayers   bool `json:"auto_accept_players"`
	AutoAcceptLocations bool `json:"auto_accept_locations"`
	AutoAcceptGames     bool `json:"auto_accept_games"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (f *FriendSetting) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}

// PermissionFor returns the default grant for an item kind.
func (f *FriendSetting) PermissionFor(item ItemType) Permission {
	var p Permission
	switch item {
	case ItemMatch, ItemMatchPlayer:
		p = f.DefaultMatchPerm
	case ItemPlayer:
		p = f.DefaultPlayerPerm
	case ItemLocation:
		p = f.DefaultLocationPerm
	case ItemGame, ItemScoresheet:
		p = f.DefaultGamePerm
	}
	if !p.Valid() {
		return PermissionView
	}
	return p
}

// AutoAccepts reports the recipient-side auto-accept flag for an item kind.
func (f *FriendSetting) AutoAccepts(item ItemType) bool {
	switch item {
	case ItemMatch, ItemMatchPlayer:
		return f.AutoAcceptMatches
	case ItemPlayer:
		return f.AutoAcceptPlayers
	case ItemLocation:
		return f.AutoAcceptLocations
	case ItemGame, ItemScoresheet:
		return f.AutoAcceptGames
	}
	return false
}

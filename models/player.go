package models

import (
	"time"

	"gorm.io/gorm"
)

// Player is a participant record owned by one user.
type Player struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID string `gorm:"index;not null" json:"owner_id"`
	Name    string `gorm:"not null" json:"name"`

	Timestamps
}

func (p *Player) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// SharedPlayer grants SharedWithID visibility into an owner's Player.
// LinkedPlayerID points at the recipient's own Player once they merge histories.
type SharedPlayer struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID        string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID   string     `gorm:"not null;uniqueIndex:idx_shared_players_recipient" json:"shared_with_id"`
	PlayerID       string     `gorm:"not null;uniqueIndex:idx_shared_players_recipient" json:"player_id"`
	LinkedPlayerID *string    `gorm:"index" json:"linked_player_id,omitempty"`
	Permission     Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedPlayer) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (s *SharedPlayer) ShareID() string        { return s.ID }
func (s *SharedPlayer) Owner() string          { return s.OwnerID }
func (s *SharedPlayer) Recipient() string      { return s.SharedWithID }
func (s *SharedPlayer) SourceRowID() string    { return s.PlayerID }
func (s *SharedPlayer) LinkTarget() *string    { return s.LinkedPlayerID }
func (s *SharedPlayer) Grant() Permission      { return s.Permission }
func (s *SharedPlayer) Provenance() Provenance { return Shared{OwnerID: s.OwnerID, LocalLinkID: s.LinkedPlayerID} }

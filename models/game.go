package models

import (
	"time"

	"gorm.io/gorm"
)

type Game struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID     string `gorm:"index;not null" json:"owner_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Timestamps
}

func (g *Game) BeforeCreate(tx *gorm.DB) error {
	assignID(&g.ID)
	return nil
}

// GameRole is a role (character, faction, seat) players can hold in a game.
type GameRole struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	GameID      string `gorm:"index;not null" json:"game_id"`
	OwnerID     string `gorm:"index;not null" json:"owner_id"`
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	Timestamps
}

func (r *GameRole) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

type SharedGame struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID string     `gorm:"not null;uniqueIndex:idx_shared_games_recipient" json:"shared_with_id"`
	GameID       string     `gorm:"not null;uniqueIndex:idx_shared_games_recipient" json:"game_id"`
	LinkedGameID *string    `gorm:"index" json:"linked_game_id,omitempty"`
	Permission   Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedGame) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (s *SharedGame) ShareID() string        { return s.ID }
func (s *SharedGame) Owner() string          { return s.OwnerID }
func (s *SharedGame) Recipient() string      { return s.SharedWithID }
func (s *SharedGame) SourceRowID() string    { return s.GameID }
func (s *SharedGame) LinkTarget() *string    { return s.LinkedGameID }
func (s *SharedGame) Grant() Permission      { return s.Permission }
func (s *SharedGame) Provenance() Provenance { return Shared{OwnerID: s.OwnerID, LocalLinkID: s.LinkedGameID} }

// SharedGameRole mirrors a GameRole into a recipient's SharedGame.
type SharedGameRole struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID          string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID     string     `gorm:"not null;uniqueIndex:idx_shared_game_roles_recipient" json:"shared_with_id"`
	GameRoleID       string     `gorm:"not null;uniqueIndex:idx_shared_game_roles_recipient" json:"game_role_id"`
	SharedGameID     string     `gorm:"index;not null" json:"shared_game_id"`
	LinkedGameRoleID *string    `gorm:"index" json:"linked_game_role_id,omitempty"`
	Permission       Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedGameRole) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (s *SharedGameRole) ShareID() string        { return s.ID }
func (s *SharedGameRole) Owner() string          { return s.OwnerID }
func (s *SharedGameRole) Recipient() string      { return s.SharedWithID }
func (s *SharedGameRole) SourceRowID() string    { return s.GameRoleID }
func (s *SharedGameRole) LinkTarget() *string    { return s.LinkedGameRoleID }
func (s *SharedGameRole) Grant() Permission      { return s.Permission }
func (s *SharedGameRole) Provenance() Provenance { return Shared{OwnerID: s.OwnerID, LocalLinkID: s.LinkedGameRoleID} }

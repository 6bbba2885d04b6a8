package models

import (
	"time"

	"gorm.io/gorm"
)

type Location struct {
	ID      string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID string `gorm:"index;not null" json:"owner_id"`
	Name    string `gorm:"not null" json:"name"`

	Timestamps
}

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

type SharedLocation struct {
	ID               string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID          string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID     string     `gorm:"not null;uniqueIndex:idx_shared_locations_recipient" json:"shared_with_id"`
	LocationID       string     `gorm:"not null;uniqueIndex:idx_shared_locations_recipient" json:"location_id"`
	LinkedLocationID *string    `gorm:"index" json:"linked_location_id,omitempty"`
	Permission       Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedLocation) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

func (s *SharedLocation) ShareID() string        { return s.ID }
func (s *SharedLocation) Owner() string          { return s.OwnerID }
func (s *SharedLocation) Recipient() string      { return s.SharedWithID }
func (s *SharedLocation) SourceRowID() string    { return s.LocationID }
func (s *SharedLocation) LinkTarget() *string    { return s.LinkedLocationID }
func (s *SharedLocation) Grant() Permission      { return s.Permission }
func (s *SharedLocation) Provenance() Provenance { return Shared{OwnerID: s.OwnerID, LocalLinkID: s.LinkedLocationID} }

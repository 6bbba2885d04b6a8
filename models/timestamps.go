package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// assignID fills an empty primary key with a fresh UUID. Keys are generated
// in Go rather than by the database so sqlite and postgres behave the same.
func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

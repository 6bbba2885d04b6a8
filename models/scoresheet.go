package models

import (
	"time"

	"gorm.io/gorm"
)

// WinCondition decides how aggregated scores turn into placements.
type WinCondition string

const (
	WinHighestScore WinCondition = "Highest Score"
	WinLowestScore  WinCondition = "Lowest Score"
	WinTargetScore  WinCondition = "Target Score"
	WinManual       WinCondition = "Manual"
)

// RoundsScore is how per-round scores fold into one match score.
type RoundsScore string

const (
	RoundsAggregate RoundsScore = "Aggregate"
	RoundsBestOf    RoundsScore = "Best Of"
	RoundsManual    RoundsScore = "Manual"
	RoundsNone      RoundsScore = "None"
)

type ScoresheetType string

const (
	ScoresheetDefault ScoresheetType = "Default"
	ScoresheetGame    ScoresheetType = "Game"
	ScoresheetMatch   ScoresheetType = "Match"
)

// Scoresheet belongs to a game, or is forked per match from a game scoresheet
// (ParentID / ForkedFromScoresheetID point at the source).
type Scoresheet struct {
	ID                     string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID                string         `gorm:"index;not null" json:"owner_id"`
	GameID                 string         `gorm:"index;not null" json:"game_id"`
	Name                   string         `json:"name"`
	Type                   ScoresheetType `gorm:"type:varchar(16);not null" json:"type"`
	ParentID               *string        `gorm:"index" json:"parent_id,omitempty"`
	ForkedFromScoresheetID *string        `json:"forked_from_scoresheet_id,omitempty"`
	WinCondition           WinCondition   `gorm:"type:varchar(16);not null" json:"win_condition"`
	RoundsScore            RoundsScore    `gorm:"type:varchar(16);not null" json:"rounds_score"`
	TargetScore            float64        `json:"target_score"`
	TargetTiebreak         WinCondition   `gorm:"type:varchar(16)" json:"target_tiebreak,omitempty"` // ranking among non-qualifiers
	IsCoop                 bool           `json:"is_coop"`

	Timestamps
}

func (s *Scoresheet) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type RoundType string

const (
	RoundNumeric  RoundType = "Numeric"
	RoundCheckbox RoundType = "Checkbox"
)

// Round is one ordered scoring column of a scoresheet.
type Round struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ScoresheetID  string    `gorm:"index;not null" json:"scoresheet_id"`
	ParentID      *string   `json:"parent_id,omitempty"` // round this one was forked from
	Name          string    `json:"name"`
	Order         int       `gorm:"column:sort_order;default:0" json:"order"`
	Type          RoundType `gorm:"type:varchar(16);not null" json:"type"`
	CheckboxScore float64   `json:"checkbox_score"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (r *Round) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// SharedScoresheet exposes a scoresheet to a recipient through their SharedGame.
// ParentID points at the shared parent when this is a per-match fork.
type SharedScoresheet struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string         `gorm:"index;not null" json:"owner_id"`
	SharedWithID string         `gorm:"not null;uniqueIndex:idx_shared_scoresheets_recipient" json:"shared_with_id"`
	ScoresheetID string         `gorm:"not null;uniqueIndex:idx_shared_scoresheets_recipient" json:"scoresheet_id"`
	SharedGameID string         `gorm:"index;not null" json:"shared_game_id"`
	ParentID     *string        `json:"parent_id,omitempty"`
	Type         ScoresheetType `gorm:"type:varchar(16);not null" json:"type"`
	Permission   Permission     `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt    time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedScoresheet) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

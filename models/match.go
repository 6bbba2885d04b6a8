package models

import (
	"time"

	"gorm.io/gorm"
)

// Match records one played session of a game. Created running, finished by an
// explicit finish or a placement recompute, and only ever soft-deleted while
// share rows still reference it.
type Match struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID      string     `gorm:"index;not null" json:"owner_id"`
	Name         string     `gorm:"not null" json:"name"`
	GameID       string     `gorm:"index;not null" json:"game_id"`
	LocationID   *string    `gorm:"index" json:"location_id,omitempty"`
	ScoresheetID string     `gorm:"index;not null" json:"scoresheet_id"`
	Date         time.Time  `json:"date"`
	Running      bool       `json:"running"`
	Finished     bool       `json:"finished"`
	Duration     int        `json:"duration"` // seconds
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Comment      string     `json:"comment,omitempty"`

	Timestamps
}

func (m *Match) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

type SharedMatch struct {
	ID                 string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerID            string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID       string     `gorm:"not null;uniqueIndex:idx_shared_matches_recipient" json:"shared_with_id"`
	MatchID            string     `gorm:"not null;uniqueIndex:idx_shared_matches_recipient" json:"match_id"`
	SharedGameID       string     `gorm:"index;not null" json:"shared_game_id"`
	SharedScoresheetID string     `gorm:"not null" json:"shared_scoresheet_id"`
	SharedLocationID   *string    `json:"shared_location_id,omitempty"`
	Permission         Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt          time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedMatch) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type Team struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID   string    `gorm:"index;not null" json:"match_id"`
	Name      string    `gorm:"not null" json:"name"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	return nil
}

// MatchPlayer is one player's seat in a match. TeamID must name a team of
// the same match.
type MatchPlayer struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchID   string    `gorm:"not null;uniqueIndex:idx_match_players_player" json:"match_id"`
	PlayerID  string    `gorm:"not null;uniqueIndex:idx_match_players_player" json:"player_id"`
	TeamID    *string   `gorm:"index" json:"team_id,omitempty"`
	Score     *float64  `json:"score,omitempty"`
	Placement *int      `json:"placement,omitempty"`
	Winner    bool      `json:"winner"`
	Details   string    `json:"details,omitempty"`
	Order     int       `gorm:"column:sort_order;default:0" json:"order"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (p *MatchPlayer) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type SharedMatchPlayer struct {
	ID             string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	MatchPlayerID  string     `gorm:"not null;uniqueIndex:idx_shared_match_players_seat" json:"match_player_id"`
	SharedMatchID  string     `gorm:"not null;uniqueIndex:idx_shared_match_players_seat" json:"shared_match_id"`
	OwnerID        string     `gorm:"index;not null" json:"owner_id"`
	SharedWithID   string     `gorm:"index;not null" json:"shared_with_id"`
	SharedPlayerID *string    `gorm:"index" json:"shared_player_id,omitempty"`
	Permission     Permission `gorm:"type:varchar(8);not null" json:"permission"`
	CreatedAt      time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (s *SharedMatchPlayer) BeforeCreate(tx *gorm.DB) error {
	assignID(&s.ID)
	return nil
}

type MatchPlayerRole struct {
	MatchPlayerID string `gorm:"primaryKey;type:varchar(36)" json:"match_player_id"`
	GameRoleID    string `gorm:"primaryKey;type:varchar(36)" json:"game_role_id"`
}

type SharedMatchPlayerRole struct {
	SharedMatchPlayerID string `gorm:"primaryKey;type:varchar(36)" json:"shared_match_player_id"`
	SharedGameRoleID    string `gorm:"primaryKey;type:varchar(36)" json:"shared_game_role_id"`
}

// RoundPlayer is one match player's score for one round.
type RoundPlayer struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	RoundID       string    `gorm:"not null;uniqueIndex:idx_round_players_seat" json:"round_id"`
	MatchPlayerID string    `gorm:"not null;uniqueIndex:idx_round_players_seat" json:"match_player_id"`
	Score         *float64  `json:"score,omitempty"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (r *RoundPlayer) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

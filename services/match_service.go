package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

type MatchService struct {
	DB      *gorm.DB
	Sharing *SharingService
	Log     *slog.Logger
}

func NewMatchService(db *gorm.DB, sharing *SharingService, log *slog.Logger) *MatchService {
	if log == nil {
		log = slog.Default()
	}
	return &MatchService{DB: db, Sharing: sharing, Log: log}
}

// CreateMatchInput describes a new match. ScoresheetID names one of the
// game's scoresheets to fork; when empty the game's default sheet is used.
type CreateMatchInput struct {
	Name         string        `json:"name" validate:"required"`
	Date         time.Time     `json:"date"`
	Game         models.Ref    `json:"game" validate:"required"`
	ScoresheetID string        `json:"scoresheet_id,omitempty"`
	Location     *models.Ref   `json:"location,omitempty"`
	Comment      string        `json:"comment,omitempty"`
	Teams        []TeamInput   `json:"teams,omitempty" validate:"omitempty,dive"`
	Players      []PlayerInput `json:"players" validate:"required,min=1,dive"`
}

type CreateMatchResult struct {
	Match   *MatchDetail  `json:"match"`
	Sharing *FanOutReport `json:"sharing,omitempty"`
}

// CreateMatch stores a running match with its own fork of the scoresheet,
// then shares it with every friend who receives auto-shared matches.
// Sharing failures are reported, never rolled back into the create.
func (s *MatchService) CreateMatch(ctx context.Context, userID string, in CreateMatchInput) (*CreateMatchResult, error) {
	const op = "create match"
	if err := validateStruct(op, in); err != nil {
		return nil, err
	}

	var m models.Match
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ns := namespace{tx: tx, op: op, actor: userID, owner: userID}
		gameID, err := ns.game(in.Game)
		if err != nil {
			return err
		}
		ns.gameID = gameID

		sheet, err := forkScoresheet(tx, op, userID, gameID, in.ScoresheetID)
		if err != nil {
			return err
		}
		loc, err := ns.location(in.Location)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		date := in.Date
		if date.IsZero() {
			date = now
		}
		m = models.Match{
			OwnerID:      userID,
			Name:         in.Name,
			GameID:       gameID,
			LocationID:   loc,
			ScoresheetID: sheet.ID,
			Date:         date,
			Running:      true,
			StartTime:    &now,
			Comment:      in.Comment,
		}
		if err := tx.Create(&m).Error; err != nil {
			return internal(op, "insert match", in.Name, err)
		}

		st := &matchState{teams: map[string]models.Team{}, roles: map[string][]string{}}
		plan, err := planEdit(ns, st, in.Teams, in.Players)
		if err != nil {
			return err
		}
		return applyPlan(tx, op, &m, st, plan)
	})
	if err != nil {
		return nil, err
	}

	report := s.reshare(ctx, userID, m.ID, false)
	detail, err := s.GetMatch(ctx, userID, models.OriginalRef(m.ID))
	if err != nil {
		return nil, err
	}
	return &CreateMatchResult{Match: detail, Sharing: report}, nil
}

// reshare runs the sharing fan-out for a match and logs what failed.
func (s *MatchService) reshare(ctx context.Context, ownerID, matchID string, onlyExisting bool) *FanOutReport {
	if s.Sharing == nil {
		return nil
	}
	report, err := s.Sharing.fanOut(ctx, ownerID, matchID, onlyExisting)
	if err != nil {
		s.Log.Warn("match sharing incomplete", "match_id", matchID, "owner_id", ownerID, "err", err)
	}
	return report
}

// forkScoresheet copies a game scoresheet and its rounds into a per-match
// sheet. Without a source id the game's default sheet is used, created on the
// fly for games that have none yet.
func forkScoresheet(tx *gorm.DB, op, ownerID, gameID, sourceID string) (*models.Scoresheet, error) {
	var src models.Scoresheet
	q := tx.Where("owner_id = ? AND game_id = ? AND type <> ?", ownerID, gameID, models.ScoresheetMatch)
	if sourceID != "" {
		if err := q.Where("id = ?", sourceID).First(&src).Error; err != nil {
			return nil, dbErr(op, "scoresheet "+sourceID+" of game "+gameID, err)
		}
	} else {
		err := q.Order("CASE WHEN type = 'Default' THEN 0 ELSE 1 END, created_at, id").First(&src).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			created, err := createDefaultScoresheet(tx, op, ownerID, gameID)
			if err != nil {
				return nil, err
			}
			src = *created
		case err != nil:
			return nil, internal(op, "find default scoresheet", gameID, err)
		}
	}

	fork := models.Scoresheet{
		OwnerID:                ownerID,
		GameID:                 gameID,
		Name:                   src.Name,
		Type:                   models.ScoresheetMatch,
		ParentID:               &src.ID,
		ForkedFromScoresheetID: &src.ID,
		WinCondition:           src.WinCondition,
		RoundsScore:            src.RoundsScore,
		TargetScore:            src.TargetScore,
		TargetTiebreak:         src.TargetTiebreak,
		IsCoop:                 src.IsCoop,
	}
	if err := tx.Create(&fork).Error; err != nil {
		return nil, internal(op, "fork scoresheet", src.ID, err)
	}

	rounds, err := loadRounds(tx, op, src.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range rounds {
		parent := r.ID
		copied := models.Round{
			ScoresheetID:  fork.ID,
			ParentID:      &parent,
			Name:          r.Name,
			Order:         r.Order,
			Type:          r.Type,
			CheckboxScore: r.CheckboxScore,
		}
		if err := tx.Create(&copied).Error; err != nil {
			return nil, internal(op, "fork round", r.ID, err)
		}
	}
	return &fork, nil
}

func createDefaultScoresheet(tx *gorm.DB, op, ownerID, gameID string) (*models.Scoresheet, error) {
	sheet := models.Scoresheet{
		OwnerID:      ownerID,
		GameID:       gameID,
		Name:         "Default",
		Type:         models.ScoresheetDefault,
		WinCondition: models.WinHighestScore,
		RoundsScore:  models.RoundsAggregate,
	}
	if err := tx.Create(&sheet).Error; err != nil {
		return nil, internal(op, "create default scoresheet", gameID, err)
	}
	round := models.Round{ScoresheetID: sheet.ID, Name: "Round 1", Type: models.RoundNumeric}
	if err := tx.Create(&round).Error; err != nil {
		return nil, internal(op, "create default round", sheet.ID, err)
	}
	return &sheet, nil
}

func loadRounds(tx *gorm.DB, op, scoresheetID string) ([]models.Round, error) {
	var rounds []models.Round
	if err := tx.Where("scoresheet_id = ?", scoresheetID).Order("sort_order, id").Find(&rounds).Error; err != nil {
		return nil, internal(op, "load rounds", scoresheetID, err)
	}
	return rounds, nil
}

func loadScoresheet(tx *gorm.DB, op, id string) (*models.Scoresheet, error) {
	var sheet models.Scoresheet
	if err := tx.Unscoped().Where("id = ?", id).First(&sheet).Error; err != nil {
		return nil, dbErr(op, "scoresheet "+id, err)
	}
	return &sheet, nil
}

// DeleteMatch soft-deletes a match. Only the owner may delete; recipients
// drop a shared match by having it revoked.
func (s *MatchService) DeleteMatch(ctx context.Context, userID string, ref models.Ref) error {
	const op = "delete match"
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		view, err := resolveMatch(tx, op, userID, ref)
		if err != nil {
			return err
		}
		if !view.IsOwner() {
			return unauthorized(op, "only the owner can delete match %s", ref)
		}
		res := tx.Delete(&models.Match{ID: view.Match.ID})
		return expectRows(op, "soft delete match", view.Match.ID, res)
	})
}

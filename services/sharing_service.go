package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"boardgame-tracker/models"
)

type SharingService struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func NewSharingService(db *gorm.DB, log *slog.Logger) *SharingService {
	if log == nil {
		log = slog.Default()
	}
	return &SharingService{DB: db, Log: log}
}

// FanOutResult is the outcome of sharing one match with one friend.
type FanOutResult struct {
	FriendID      string             `json:"friend_id"`
	RequestID     string             `json:"request_id,omitempty"`
	Status        models.ShareStatus `json:"status,omitempty"`
	SharedMatchID *string            `json:"shared_match_id,omitempty"`
	SharedSeats   int                `json:"shared_seats"`
	Skipped       string             `json:"skipped,omitempty"`
	Error         string             `json:"error,omitempty"`
}

type FanOutReport struct {
	MatchID string         `json:"match_id"`
	Results []FanOutResult `json:"results"`
}

// Failed lists the friends the match could not be shared with.
func (r *FanOutReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Error != "" {
			out = append(out, res.FriendID)
		}
	}
	return out
}

// TriggerShareFanOut shares a match the caller owns with every friend set up
// to receive it. Each friend is handled in its own transaction: one failing
// friend is reported and does not undo the others.
func (s *SharingService) TriggerShareFanOut(ctx context.Context, userID, matchID string) (*FanOutReport, error) {
	return s.fanOut(ctx, userID, matchID, false)
}

// fanOut with onlyExisting limits the run to recipients the match was already
// shared with, which is how edits propagate without undoing revocations.
func (s *SharingService) fanOut(ctx context.Context, ownerID, matchID string, onlyExisting bool) (*FanOutReport, error) {
	const op = "share match"
	db := s.DB.WithContext(ctx)

	var m models.Match
	if err := db.Where("id = ? AND owner_id = ?", matchID, ownerID).First(&m).Error; err != nil {
		return nil, dbErr(op, "match "+matchID, err)
	}

	var outs []models.FriendSetting
	if err := db.Where("user_id = ? AND auto_share_matches = ?", ownerID, true).Order("friend_id").Find(&outs).Error; err != nil {
		return nil, internal(op, "load friends", ownerID, err)
	}

	report := &FanOutReport{MatchID: m.ID, Results: []FanOutResult{}}
	var errs []error
	for _, out := range outs {
		res := FanOutResult{FriendID: out.FriendID}

		var in models.FriendSetting
		err := db.Where("user_id = ? AND friend_id = ?", out.FriendID, ownerID).First(&in).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			res.Skipped = "not a mutual friend"
		case err != nil:
			res.Error = err.Error()
		case !in.AllowSharedMatches:
			res.Skipped = "does not accept shared matches"
		}
		if res.Skipped == "" && res.Error == "" && onlyExisting {
			var n int64
			err := db.Model(&models.ShareRequest{}).
				Where("owner_id = ? AND shared_with_id = ? AND item_type = ? AND item_id = ?", ownerID, out.FriendID, models.ItemMatch, m.ID).
				Count(&n).Error
			if err != nil {
				res.Error = err.Error()
			} else if n == 0 {
				res.Skipped = "not shared"
			}
		}
		if res.Skipped != "" || res.Error != "" {
			if res.Error != "" {
				errs = append(errs, fmt.Errorf("friend %s: %s", out.FriendID, res.Error))
			}
			report.Results = append(report.Results, res)
			continue
		}

		var done *cascade
		err = db.Transaction(func(tx *gorm.DB) error {
			c := &cascade{
				tx:        tx,
				op:        op,
				owner:     ownerID,
				recipient: out.FriendID,
				out:       out,
				in:        in,
				match:     m,
			}
			if err := c.run(); err != nil {
				return err
			}
			done = c
			return nil
		})
		if err != nil {
			s.Log.Error("share match with friend failed", "match_id", m.ID, "friend_id", out.FriendID, "err", err)
			res.Error = err.Error()
			errs = append(errs, fmt.Errorf("friend %s: %w", out.FriendID, err))
		} else {
			res.RequestID = done.root.ID
			res.Status = models.SharePending
			if done.sharedMatch != nil {
				res.Status = models.ShareAccepted
			}
			res.SharedMatchID = done.sharedMatch
			res.SharedSeats = done.sharedSeats
			s.Log.Info("match shared", "match_id", m.ID, "friend_id", out.FriendID, "status", res.Status, "seats", res.SharedSeats)
		}
		report.Results = append(report.Results, res)
	}
	return report, errors.Join(errs...)
}

// loadFriendship returns both directions of a friendship.
func loadFriendship(tx *gorm.DB, op, ownerID, recipientID string) (out, in models.FriendSetting, err error) {
	if err = tx.Where("user_id = ? AND friend_id = ?", ownerID, recipientID).First(&out).Error; err != nil {
		return out, in, dbErr(op, "friendship "+ownerID+" -> "+recipientID, err)
	}
	if err = tx.Where("user_id = ? AND friend_id = ?", recipientID, ownerID).First(&in).Error; err != nil {
		return out, in, dbErr(op, "friendship "+recipientID+" -> "+ownerID, err)
	}
	return out, in, nil
}

// AcceptShareRequest accepts a request addressed to the caller. Accepting any
// request of a match share accepts the whole match with its dependencies.
func (s *SharingService) AcceptShareRequest(ctx context.Context, userID, requestID string) (*models.ShareRequest, error) {
	const op = "accept share"
	var accepted models.ShareRequest
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ShareRequest
		if err := tx.Where("id = ? AND shared_with_id = ?", requestID, userID).First(&req).Error; err != nil {
			return dbErr(op, "share request "+requestID, err)
		}
		if req.ParentShareID != nil {
			var parent models.ShareRequest
			if err := tx.Where("id = ? AND shared_with_id = ?", *req.ParentShareID, userID).First(&parent).Error; err != nil {
				return dbErr(op, "parent share request "+*req.ParentShareID, err)
			}
			req = parent
		}

		out, in, err := loadFriendship(tx, op, req.OwnerID, userID)
		if err != nil {
			return err
		}
		c := &cascade{
			tx:          tx,
			op:          op,
			owner:       req.OwnerID,
			recipient:   userID,
			out:         out,
			in:          in,
			forceAccept: true,
		}

		switch req.ItemType {
		case models.ItemMatch:
			if err := tx.Where("id = ? AND owner_id = ?", req.ItemID, req.OwnerID).First(&c.match).Error; err != nil {
				return dbErr(op, "match "+req.ItemID, err)
			}
			if err := c.run(); err != nil {
				return err
			}
		case models.ItemGame:
			_, err = c.share(c.gameDependency(req.ItemID))
		case models.ItemLocation:
			_, err = c.share(c.locationDependency(req.ItemID))
		case models.ItemPlayer:
			_, err = c.share(c.playerDependency(req.ItemID))
		default:
			err = conflict(op, "%s requests are accepted through their match", req.ItemType)
		}
		if err != nil {
			return err
		}
		return tx.Where("id = ?", req.ID).First(&accepted).Error
	})
	if err != nil {
		return nil, err
	}
	s.Log.Info("share accepted", "request_id", accepted.ID, "item_type", accepted.ItemType, "user_id", userID)
	return &accepted, nil
}

// RejectShareRequest drops a pending request and the pending requests hanging
// off it. Accepted shares are revoked by their owner instead.
func (s *SharingService) RejectShareRequest(ctx context.Context, userID, requestID string) error {
	const op = "reject share"
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var req models.ShareRequest
		if err := tx.Where("id = ? AND shared_with_id = ?", requestID, userID).First(&req).Error; err != nil {
			return dbErr(op, "share request "+requestID, err)
		}
		if req.Status != models.SharePending {
			return conflict(op, "share request %s is already %s", req.ID, req.Status)
		}
		err := tx.Where("parent_share_id = ? AND status = ?", req.ID, models.SharePending).Delete(&models.ShareRequest{}).Error
		if err != nil {
			return internal(op, "delete child requests", req.ID, err)
		}
		res := tx.Delete(&models.ShareRequest{ID: req.ID})
		return expectRows(op, "delete request", req.ID, res)
	})
}

// RevokeMatchShare withdraws a match from one recipient: the shared match,
// its shared seats with their roles, and the requests of the match share.
// Games, players and locations shared along stay with the recipient.
func (s *SharingService) RevokeMatchShare(ctx context.Context, userID, sharedMatchID string) error {
	const op = "revoke match share"
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sm models.SharedMatch
		if err := tx.Where("id = ? AND owner_id = ?", sharedMatchID, userID).First(&sm).Error; err != nil {
			return dbErr(op, "shared match "+sharedMatchID, err)
		}

		seats := tx.Model(&models.SharedMatchPlayer{}).Select("id").Where("shared_match_id = ?", sm.ID)
		if err := tx.Where("shared_match_player_id IN (?)", seats).Delete(&models.SharedMatchPlayerRole{}).Error; err != nil {
			return internal(op, "delete role mirrors", sm.ID, err)
		}
		if err := tx.Where("shared_match_id = ?", sm.ID).Delete(&models.SharedMatchPlayer{}).Error; err != nil {
			return internal(op, "delete shared seats", sm.ID, err)
		}

		roots := tx.Model(&models.ShareRequest{}).Select("id").
			Where("owner_id = ? AND shared_with_id = ? AND item_type = ? AND item_id = ?", sm.OwnerID, sm.SharedWithID, models.ItemMatch, sm.MatchID)
		err := tx.Where("parent_share_id IN (?) AND item_type = ?", roots, models.ItemMatchPlayer).Delete(&models.ShareRequest{}).Error
		if err != nil {
			return internal(op, "delete seat requests", sm.ID, err)
		}
		err = tx.Where("owner_id = ? AND shared_with_id = ? AND item_type = ? AND item_id = ?", sm.OwnerID, sm.SharedWithID, models.ItemMatch, sm.MatchID).
			Delete(&models.ShareRequest{}).Error
		if err != nil {
			return internal(op, "delete match request", sm.ID, err)
		}

		res := tx.Delete(&models.SharedMatch{ID: sm.ID})
		if err := expectRows(op, "delete shared match", sm.ID, res); err != nil {
			return err
		}
		s.Log.Info("match share revoked", "shared_match_id", sm.ID, "recipient", sm.SharedWithID)
		return nil
	})
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Participant
// model: dialog membership, per-user read state, and archive flags.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// AddParticipant inserts a membership row. Adding a user who is already a
// member of the dialog returns ErrDuplicate.
func AddParticipant(ctx context.Context, db *gorm.DB, p *domain.Participant) error {
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetParticipant fetches the membership row for (dialogID, userID), or
// ErrNotFound if the user is not a member.
func GetParticipant(ctx context.Context, db *gorm.DB, dialogID, userID string) (*domain.Participant, error) {
	var p domain.Participant
	err := db.WithContext(ctx).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ParticipantExists reports whether userID is a member of dialogID.
func ParticipantExists(ctx context.Context, db *gorm.DB, dialogID, userID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Count(&n).Error
	return n > 0, err
}

// ListParticipants returns all members of a dialog ordered by join time.
func ListParticipants(ctx context.Context, db *gorm.DB, dialogID string) ([]domain.Participant, error) {
	var out []domain.Participant
	err := db.WithContext(ctx).
		Where("dialog_id = ?", dialogID).
		Order("joined_at asc").
		Find(&out).Error
	return out, err
}

// CountParticipants returns the number of members in a dialog.
func CountParticipants(ctx context.Context, db *gorm.DB, dialogID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ?", dialogID).
		Count(&n).Error
	return n, err
}

// RemoveParticipant deletes the membership row, or ErrNotFound if the user
// was not a member.
func RemoveParticipant(ctx context.Context, db *gorm.DB, dialogID, userID string) error {
	res := db.WithContext(ctx).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Delete(&domain.Participant{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementUnreadExcept bumps unread_count for every member of the dialog
// except senderID. Called after a new message is persisted.
func IncrementUnreadExcept(ctx context.Context, db *gorm.DB, dialogID, senderID string) error {
	return db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ? AND user_id <> ?", dialogID, senderID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + 1")).Error
}

// MarkRead resets unread_count to zero and records the last read message.
// Returns ErrNotFound if the user is not a member.
func MarkRead(ctx context.Context, db *gorm.DB, dialogID, userID string, lastMessageID *string) error {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Updates(map[string]any{
			"unread_count":         0,
			"last_read_message_id": lastMessageID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetArchived flips the caller's per-user archive flag. Returns ErrNotFound
// if the user is not a member.
func SetArchived(ctx context.Context, db *gorm.DB, dialogID, userID string, archived bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Update("is_archived", archived)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetNotificationsEnabled toggles the missed-message pipeline for one member.
func SetNotificationsEnabled(ctx context.Context, db *gorm.DB, dialogID, userID string, enabled bool) error {
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id = ? AND user_id = ?", dialogID, userID).
		Update("notifications_enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ArchiveDialogs sets is_archived for every member of every listed dialog.
// Used by the inactivity sweep; a no-op for an empty list.
func ArchiveDialogs(ctx context.Context, db *gorm.DB, dialogIDs []string) (int64, error) {
	if len(dialogIDs) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("dialog_id IN ? AND is_archived = ?", dialogIDs, false).
		Update("is_archived", true)
	return res.RowsAffected, res.Error
}

// ListDialogIDsForUser returns the IDs of all dialogs userID belongs to.
func ListDialogIDsForUser(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Where("user_id = ?", userID).
		Pluck("dialog_id", &ids).Error
	return ids, err
}

// ListPeerUserIDs returns the distinct user IDs sharing at least one of the
// given dialogs, excluding userID itself. Used for presence fan-out.
func ListPeerUserIDs(ctx context.Context, db *gorm.DB, dialogIDs []string, userID string) ([]string, error) {
	if len(dialogIDs) == 0 {
		return nil, nil
	}
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Participant{}).
		Distinct("user_id").
		Where("dialog_id IN ? AND user_id <> ?", dialogIDs, userID).
		Pluck("user_id", &ids).Error
	return ids, err
}

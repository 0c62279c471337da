// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the before-cursor pagination used by the history endpoint.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// CreateMessage inserts a message row.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID scoped to its dialog, or ErrNotFound.
func GetMessage(ctx context.Context, db *gorm.DB, dialogID, id string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("dialog_id = ? AND id = ?", dialogID, id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessagesPage returns up to limit messages of a dialog, newest first.
// When before is non-nil only messages sent strictly earlier are returned,
// which implements cursor pagination keyed on sent_at. Callers wanting an
// exact has-more signal request limit+1 and trim.
func ListMessagesPage(ctx context.Context, db *gorm.DB, dialogID string, before *time.Time, limit int) ([]domain.Message, error) {
	q := db.WithContext(ctx).
		Where("dialog_id = ?", dialogID)
	if before != nil {
		q = q.Where("sent_at < ?", *before)
	}
	var out []domain.Message
	err := q.Order("sent_at desc").Limit(limit).Find(&out).Error
	return out, err
}

// CountMessages returns the number of messages in a dialog.
func CountMessages(ctx context.Context, db *gorm.DB, dialogID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("dialog_id = ?", dialogID).
		Count(&n).Error
	return n, err
}

// UpdateMessageContent replaces the content of a message and stamps edited_at.
// Returns ErrNotFound if the message does not exist in the dialog.
func UpdateMessageContent(ctx context.Context, db *gorm.DB, dialogID, id, content string, editedAt time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("dialog_id = ? AND id = ?", dialogID, id).
		Updates(map[string]any{
			"content":   content,
			"edited_at": editedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteMessage removes a message, or ErrNotFound if it does not exist.
func DeleteMessage(ctx context.Context, db *gorm.DB, dialogID, id string) error {
	res := db.WithContext(ctx).
		Where("dialog_id = ? AND id = ?", dialogID, id).
		Delete(&domain.Message{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Dialog model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a dialog is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - Creating a dialog for an (object_type, object_id) pair that already
//     has one returns ErrDuplicate.
//   - On other DB errors (connectivity issues, etc.), the raw gorm error
//     is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.DialogService) which enforces membership rules, emits
// realtime events, and triggers webhooks.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDialog inserts a new Dialog row. Each (object_type, object_id) pair
// may have at most one dialog; a second insert returns ErrDuplicate.
func CreateDialog(ctx context.Context, db *gorm.DB, d *domain.Dialog) error {
	if err := db.WithContext(ctx).Create(d).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetDialog fetches a single dialog by its ID, or ErrNotFound if missing.
func GetDialog(ctx context.Context, db *gorm.DB, id string) (*domain.Dialog, error) {
	var d domain.Dialog
	err := db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// FindDialogByObject fetches the dialog bound to (objectType, objectID),
// or ErrNotFound if none exists.
func FindDialogByObject(ctx context.Context, db *gorm.DB, objectType, objectID string) (*domain.Dialog, error) {
	var d domain.Dialog
	err := db.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", objectType, objectID).
		First(&d).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DialogListFilter narrows ListParticipatingDialogs. Search matches the
// dialog title (substring, case-insensitive via SQLite LIKE). Archived, when
// non-nil, filters on the caller's per-user archive flag.
type DialogListFilter struct {
	Search   string
	Archived *bool
}

// ListParticipatingDialogs returns the dialogs userID is a member of, most
// recently active first, with optional title search and archive filtering.
func ListParticipatingDialogs(ctx context.Context, db *gorm.DB, userID string, f DialogListFilter) ([]domain.Dialog, error) {
	q := db.WithContext(ctx).
		Model(&domain.Dialog{}).
		Joins("JOIN participants ON participants.dialog_id = dialogs.id").
		Where("participants.user_id = ?", userID)
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("dialogs.title LIKE ?", "%"+s+"%")
	}
	if f.Archived != nil {
		q = q.Where("participants.is_archived = ?", *f.Archived)
	}
	var out []domain.Dialog
	err := q.Order("dialogs.last_message_at desc").Find(&out).Error
	return out, err
}

// TouchDialog advances the dialog's last_message_at watermark. Missing
// dialogs return ErrNotFound.
func TouchDialog(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Dialog{}).
		Where("id = ?", id).
		Update("last_message_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindInactiveDialogIDs returns IDs of dialogs whose last message is older
// than cutoff. Used by the auto-archive sweep.
func FindInactiveDialogIDs(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Dialog{}).
		Where("last_message_at < ?", cutoff).
		Pluck("id", &ids).Error
	return ids, err
}

// DeleteDialog removes a dialog; participants and messages cascade.
// Returns ErrNotFound if the dialog does not exist.
func DeleteDialog(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Dialog{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

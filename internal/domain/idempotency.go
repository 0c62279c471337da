package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (user_id, dialog_id, key). It enables safe retries for message
// POSTs by returning the originally produced response without re-executing
// side effects (broadcast, webhook, notification enqueue).
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_dialog_key,priority:1"`
	DialogID  string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_dialog_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_dialog_key,priority:3"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Dialog HTTP handlers.
//
// This file exposes the participant-facing dialog endpoints:
//   - GET  /dialogs                      (list the caller's dialogs)
//   - GET  /dialogs/:id                  (fetch one dialog)
//   - POST /dialogs/:id/join             (join)
//   - POST /dialogs/:id/leave            (leave)
//   - POST /dialogs/:id/archive          (archive for the caller)
//   - POST /dialogs/:id/unarchive        (unarchive for the caller)
//   - PUT  /dialogs/:id/notifications    (toggle missed-message notifications)
//   - GET  /dialogs/:id/participants     (members with live presence)
package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/http/middleware"
	"github.com/dialoghub/dialog-backend/internal/services"
)

// Handlers groups the HTTP endpoints for dialogs and messages.
type Handlers struct {
	dialogs  *services.DialogService
	messages *services.MessageService

	// db backs the idempotency records for the message POST.
	db *gorm.DB
	// idempotencyTTL bounds how long a stored Idempotency-Key stays valid.
	idempotencyTTL time.Duration
}

// New constructs the handler set bound to the given services.
func New(dialogSvc *services.DialogService, msgSvc *services.MessageService, db *gorm.DB, idempotencyTTL time.Duration) *Handlers {
	return &Handlers{
		dialogs:        dialogSvc,
		messages:       msgSvc,
		db:             db,
		idempotencyTTL: idempotencyTTL,
	}
}

// userID resolves the caller identity or fails the request with 401.
func userID(c *gin.Context) (string, bool) {
	uid, present := middleware.UserID(c)
	if !present {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "X-User-ID header is required")
		return "", false
	}
	return uid, true
}

// JoinDialogRequest is the JSON payload for joining a dialog. The profile
// snapshot is denormalized onto the membership row.
type JoinDialogRequest struct {
	DisplayName string `json:"display_name"`
	Company     string `json:"company"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

// SetNotificationsRequest toggles missed-message notifications.
type SetNotificationsRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// ListDialogsResponse wraps the caller's dialog listing.
type ListDialogsResponse struct {
	Dialogs []domain.Dialog `json:"dialogs"`
}

// ParticipantsResponse wraps a presence-annotated member listing.
type ParticipantsResponse struct {
	Participants []services.ParticipantPresence `json:"participants"`
}

// ListDialogs returns the caller's dialogs ordered by recent activity.
// Supported query parameters: search (title substring) and archived
// (true|false; absent means both).
func (h *Handlers) ListDialogs(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}

	var archived *bool
	if raw := c.Query("archived"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "archived must be true or false")
			return
		}
		archived = &v
	}

	dialogs, err := h.dialogs.ListParticipating(c.Request.Context(), uid, strings.TrimSpace(c.Query("search")), archived)
	if err != nil {
		failService(c, err)
		return
	}
	if dialogs == nil {
		dialogs = []domain.Dialog{}
	}
	ok(c, http.StatusOK, ListDialogsResponse{Dialogs: dialogs})
}

// GetDialog returns one dialog the caller participates in.
func (h *Handlers) GetDialog(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	d, err := h.dialogs.Get(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// JoinDialog adds the caller to the dialog. The body is optional; when
// present it carries the caller's profile snapshot.
func (h *Handlers) JoinDialog(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var req JoinDialogRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}

	p, err := h.dialogs.Join(c.Request.Context(), c.Param("id"), services.ParticipantInput{
		UserID: uid,
		Profile: domain.Profile{
			DisplayName: strings.TrimSpace(req.DisplayName),
			Company:     req.Company,
			Email:       req.Email,
			Phone:       req.Phone,
		},
	})
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// LeaveDialog removes the caller from the dialog.
func (h *Handlers) LeaveDialog(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.dialogs.Leave(c.Request.Context(), c.Param("id"), uid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ArchiveDialog hides the dialog from the caller's default listing.
func (h *Handlers) ArchiveDialog(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.dialogs.Archive(c.Request.Context(), c.Param("id"), uid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// UnarchiveDialog restores the dialog in the caller's default listing.
func (h *Handlers) UnarchiveDialog(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.dialogs.Unarchive(c.Request.Context(), c.Param("id"), uid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// SetNotifications toggles the caller's missed-message notifications for
// this dialog.
func (h *Handlers) SetNotifications(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var req SetNotificationsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "enabled (bool) is required")
		return
	}
	if err := h.dialogs.SetNotifications(c.Request.Context(), c.Param("id"), uid, *req.Enabled); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// ListParticipants returns the dialog's members annotated with presence.
func (h *Handlers) ListParticipants(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	members, err := h.dialogs.Participants(c.Request.Context(), c.Param("id"), uid)
	if err != nil {
		failService(c, err)
		return
	}
	if members == nil {
		members = []services.ParticipantPresence{}
	}
	ok(c, http.StatusOK, ParticipantsResponse{Participants: members})
}

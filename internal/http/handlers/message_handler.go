// Message HTTP handlers.
//
// This file exposes the message endpoints:
//   - GET    /dialogs/:id/messages              (history, cursor-paginated)
//   - POST   /dialogs/:id/messages              (send, idempotent via header)
//   - GET    /dialogs/:id/messages/:message_id  (fetch one)
//   - PUT    /dialogs/:id/messages/:message_id  (edit own message)
//   - DELETE /dialogs/:id/messages/:message_id  (delete own message)
//   - POST   /dialogs/:id/read                  (mark the dialog read)
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/http/middleware"
	"github.com/dialoghub/dialog-backend/internal/repo"
)

// SendMessageRequest is the JSON payload for posting a message.
type SendMessageRequest struct {
	Content   string  `json:"content" binding:"required"`
	ReplyToID *string `json:"reply_to_id"`
}

// EditMessageRequest is the JSON payload for editing a message.
type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ListMessagesResponse is a page of history, newest first. HasMore is exact:
// clients page with before=<sent_at of the last item> until it turns false.
type ListMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// ListMessages returns a history page. Query parameters: before (RFC 3339
// timestamp cursor) and limit (clamped by the service to [1, 100]).
func (h *Handlers) ListMessages(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "before must be an RFC 3339 timestamp")
			return
		}
		before = &t
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	msgs, hasMore, err := h.messages.List(c.Request.Context(), c.Param("id"), uid, before, limit)
	if err != nil {
		failService(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	ok(c, http.StatusOK, ListMessagesResponse{Messages: msgs, HasMore: hasMore})
}

// SendMessage posts a message to the dialog. When the request carries an
// Idempotency-Key that matches a stored record, the original message is
// returned and no side effects run again.
func (h *Handlers) SendMessage(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	dialogID := c.Param("id")

	// Replay: serve the previously persisted result.
	if middleware.IsReplay(c) {
		if key, present := middleware.GetIdempotencyKey(c); present && h.replayMessage(c, uid, dialogID, key) {
			return
		}
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content is required")
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), dialogID, uid, req.Content, req.ReplyToID)
	if err != nil {
		failService(c, err)
		return
	}

	// Record the key after the commit so a crash between the two at worst
	// loses the replay record, never the message.
	if key, present := middleware.GetIdempotencyKey(c); present {
		_, err := repo.CreateIdempotency(c.Request.Context(), h.db, uid, dialogID, key, msg.ID, http.StatusCreated, h.idempotencyTTL)
		if err != nil && !errors.Is(err, repo.ErrDuplicate) {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency record")
		}
	}

	ok(c, http.StatusCreated, msg)
}

// replayMessage serves the stored result for a replayed Idempotency-Key.
// It reports false when the record or message is gone, in which case the
// caller processes the request normally.
func (h *Handlers) replayMessage(c *gin.Context, uid, dialogID, key string) bool {
	rec, err := repo.GetIdempotency(c.Request.Context(), h.db, uid, dialogID, key, time.Now().UTC())
	if err != nil {
		return false
	}
	msg, err := repo.GetMessage(c.Request.Context(), h.db, dialogID, rec.MessageID)
	if err != nil {
		return false
	}
	ok(c, rec.Status, msg)
	return true
}

// GetMessage returns a single message from a dialog the caller belongs to.
func (h *Handlers) GetMessage(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	msg, err := h.messages.Get(c.Request.Context(), c.Param("id"), uid, c.Param("message_id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, msg)
}

// EditMessage replaces the content of the caller's own message.
func (h *Handlers) EditMessage(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content is required")
		return
	}
	msg, err := h.messages.Edit(c.Request.Context(), c.Param("id"), c.Param("message_id"), uid, req.Content)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, msg)
}

// DeleteMessage removes the caller's own message.
func (h *Handlers) DeleteMessage(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), c.Param("id"), c.Param("message_id"), uid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// MarkRead resets the caller's unread counter for the dialog.
func (h *Handlers) MarkRead(c *gin.Context) {
	uid, authed := userID(c)
	if !authed {
		return
	}
	if err := h.messages.MarkRead(c.Request.Context(), c.Param("id"), uid); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

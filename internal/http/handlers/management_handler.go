// Management HTTP handlers.
//
// The management surface is how the host system provisions dialogs. It is
// guarded by the admin-token middleware and skips membership checks:
//   - POST   /management/dialogs                           (create + seed members)
//   - GET    /management/dialogs/:id                       (fetch by ID)
//   - GET    /management/dialogs?object_type=..&object_id=.. (resolve by object)
//   - DELETE /management/dialogs/:id                       (delete, cascades)
//   - POST   /management/dialogs/:id/participants          (add a member)
//   - DELETE /management/dialogs/:id/participants/:user_id (remove a member)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/services"
)

// CreateDialogRequest is the management payload for provisioning a dialog.
type CreateDialogRequest struct {
	ObjectID     string               `json:"object_id" binding:"required"`
	ObjectType   string               `json:"object_type" binding:"required"`
	Title        string               `json:"title"`
	ObjectURL    string               `json:"object_url"`
	CreatedBy    *string              `json:"created_by"`
	Participants []AddParticipantBody `json:"participants"`
}

// AddParticipantBody is one member in a management request.
type AddParticipantBody struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Company     string `json:"company"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
}

func (b AddParticipantBody) input() services.ParticipantInput {
	return services.ParticipantInput{
		UserID: b.UserID,
		Profile: domain.Profile{
			DisplayName: strings.TrimSpace(b.DisplayName),
			Company:     b.Company,
			Email:       b.Email,
			Phone:       b.Phone,
		},
	}
}

// CreateDialog provisions a dialog bound to a business object.
func (h *Handlers) CreateDialog(c *gin.Context) {
	var req CreateDialogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "object_id and object_type are required")
		return
	}

	in := services.CreateDialogInput{
		ObjectID:   req.ObjectID,
		ObjectType: req.ObjectType,
		Title:      req.Title,
		ObjectURL:  req.ObjectURL,
		CreatedBy:  req.CreatedBy,
	}
	for _, p := range req.Participants {
		if strings.TrimSpace(p.UserID) == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "participant user_id must not be empty")
			return
		}
		in.Participants = append(in.Participants, p.input())
	}

	d, err := h.dialogs.Create(c.Request.Context(), in)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, d)
}

// GetManagedDialog fetches a dialog by ID without a membership check.
func (h *Handlers) GetManagedDialog(c *gin.Context) {
	d, err := h.dialogs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// ResolveDialog looks up the dialog bound to a business object via the
// object_type and object_id query parameters.
func (h *Handlers) ResolveDialog(c *gin.Context) {
	objectType := strings.TrimSpace(c.Query("object_type"))
	objectID := strings.TrimSpace(c.Query("object_id"))
	if objectType == "" || objectID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "object_type and object_id are required")
		return
	}
	d, err := h.dialogs.GetByObject(c.Request.Context(), objectType, objectID)
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// DeleteDialog removes a dialog entirely; messages and memberships cascade.
func (h *Handlers) DeleteDialog(c *gin.Context) {
	if err := h.dialogs.Delete(c.Request.Context(), c.Param("id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

// AddParticipant adds a member on behalf of the host system.
func (h *Handlers) AddParticipant(c *gin.Context) {
	var req AddParticipantBody
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.UserID) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}
	p, err := h.dialogs.AddParticipant(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		failService(c, err)
		return
	}
	ok(c, http.StatusCreated, p)
}

// RemoveParticipant removes a member on behalf of the host system.
func (h *Handlers) RemoveParticipant(c *gin.Context) {
	if err := h.dialogs.RemoveParticipant(c.Request.Context(), c.Param("id"), c.Param("user_id")); err != nil {
		failService(c, err)
		return
	}
	noContent(c)
}

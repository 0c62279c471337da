// HTTP-layer error codes shared by all endpoints. Codes are lowercase
// snake_case and stable: clients branch on them programmatically, while the
// accompanying message is free to change.

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dialoghub/dialog-backend/internal/services"
)

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeEmptyContent     = "empty_content"
	ErrCodeContentTooLong   = "content_too_long"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// failService maps service-layer sentinel errors onto HTTP status codes and
// the stable error taxonomy. Unknown errors become opaque 500s.
func failService(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDialogNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "dialog not found")
	case errors.Is(err, services.ErrMessageNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "message not found")
	case errors.Is(err, services.ErrNotParticipant):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "not a participant of this dialog")
	case errors.Is(err, services.ErrAlreadyParticipant):
		fail(c, http.StatusConflict, ErrCodeConflict, "already a participant of this dialog")
	case errors.Is(err, services.ErrDialogExists):
		fail(c, http.StatusConflict, ErrCodeConflict, "a dialog already exists for this object")
	case errors.Is(err, services.ErrNotMessageOwner):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "only the author may modify a message")
	case errors.Is(err, services.ErrSystemMessage):
		fail(c, http.StatusForbidden, ErrCodeForbidden, "system messages are immutable")
	case errors.Is(err, services.ErrEmptyContent):
		fail(c, http.StatusBadRequest, ErrCodeEmptyContent, "message content must not be empty")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeContentTooLong, "message content exceeds the maximum length")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

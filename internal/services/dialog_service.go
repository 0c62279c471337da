// Dialog lifecycle service.
//
// This file implements the DialogService, which manages the lifecycle of
// dialogs and their memberships: creation bound to a business object,
// joining and leaving with system messages and webhooks, per-user archive
// state, and the presence-annotated participant listing.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/presence"
	"github.com/dialoghub/dialog-backend/internal/realtime"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/webhook"
)

// CreateDialogInput describes a new dialog and its initial members.
type CreateDialogInput struct {
	ObjectID     string             `json:"object_id"`
	ObjectType   string             `json:"object_type"`
	Title        string             `json:"title"`
	ObjectURL    string             `json:"object_url"`
	CreatedBy    *string            `json:"created_by"`
	Participants []ParticipantInput `json:"participants"`
}

// ParticipantInput is one initial or joining member with their profile
// snapshot from the host system.
type ParticipantInput struct {
	UserID  string         `json:"user_id"`
	Profile domain.Profile `json:"profile"`
}

// ParticipantPresence is a membership row annotated with live presence.
type ParticipantPresence struct {
	domain.Participant
	Online bool `json:"online"`
}

// DialogService provides dialog-level operations: creation, discovery,
// membership changes, and archive state.
type DialogService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Broadcaster pushes realtime frames.
	Broadcaster *realtime.Broadcaster
	// Webhooks receives outbound events.
	Webhooks webhook.Sender
	// Presence annotates participant listings with online status.
	Presence *presence.Tracker

	log zerolog.Logger
}

// NewDialogService constructs a DialogService.
func NewDialogService(db *gorm.DB, bc *realtime.Broadcaster, wh webhook.Sender, pt *presence.Tracker, log zerolog.Logger) *DialogService {
	return &DialogService{
		DB:          db,
		Broadcaster: bc,
		Webhooks:    wh,
		Presence:    pt,
		log:         log.With().Str("component", "dialog_service").Logger(),
	}
}

// Create binds a new dialog to a business object and seeds its initial
// members. The creator (when listed) joins as "creator", everyone else as
// "participant". A system message records the creation.
func (s *DialogService) Create(ctx context.Context, in CreateDialogInput) (*domain.Dialog, error) {
	if strings.TrimSpace(in.ObjectID) == "" || strings.TrimSpace(in.ObjectType) == "" {
		return nil, errors.New("object_id and object_type are required")
	}

	d := domain.NewDialog(in.ObjectID, in.ObjectType, strings.TrimSpace(in.Title), in.ObjectURL, in.CreatedBy)
	sys := domain.NewSystemMessage(d.ID, "Dialog created")

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateDialog(ctx, tx, d); err != nil {
			return err
		}
		for _, pi := range in.Participants {
			joinedAs := domain.JoinedAsParticipant
			if in.CreatedBy != nil && pi.UserID == *in.CreatedBy {
				joinedAs = domain.JoinedAsCreator
			}
			p := domain.NewParticipant(d.ID, pi.UserID, joinedAs, pi.Profile)
			if err := repo.AddParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		return repo.CreateMessage(ctx, tx, sys)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrDialogExists
	}
	if err != nil {
		return nil, err
	}

	s.Broadcaster.MessageNew(sys)
	return d, nil
}

// Get fetches a dialog, enforcing membership.
func (s *DialogService) Get(ctx context.Context, dialogID, userID string) (*domain.Dialog, error) {
	if err := s.requireMember(ctx, dialogID, userID); err != nil {
		return nil, err
	}
	return repo.GetDialog(ctx, s.DB, dialogID)
}

// GetByID fetches a dialog without a membership check (management API).
func (s *DialogService) GetByID(ctx context.Context, dialogID string) (*domain.Dialog, error) {
	d, err := repo.GetDialog(ctx, s.DB, dialogID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDialogNotFound
	}
	return d, err
}

// GetByObject resolves the dialog bound to a business object. Intended for
// the management API; no membership check.
func (s *DialogService) GetByObject(ctx context.Context, objectType, objectID string) (*domain.Dialog, error) {
	d, err := repo.FindDialogByObject(ctx, s.DB, objectType, objectID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrDialogNotFound
	}
	return d, err
}

// ListParticipating returns the caller's dialogs, most recently active
// first, with optional title search and archive filtering.
func (s *DialogService) ListParticipating(ctx context.Context, userID, search string, archived *bool) ([]domain.Dialog, error) {
	return repo.ListParticipatingDialogs(ctx, s.DB, userID, repo.DialogListFilter{
		Search:   search,
		Archived: archived,
	})
}

// Join adds a user to a dialog, records a system message, and announces the
// membership over WebSocket and webhook.
func (s *DialogService) Join(ctx context.Context, dialogID string, in ParticipantInput) (*domain.Participant, error) {
	if _, err := repo.GetDialog(ctx, s.DB, dialogID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDialogNotFound
		}
		return nil, err
	}

	p := domain.NewParticipant(dialogID, in.UserID, domain.JoinedAsJoined, in.Profile)
	name := in.Profile.DisplayName
	if name == "" {
		name = in.UserID
	}
	sys := domain.NewSystemMessage(dialogID, name+" joined the dialog")

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AddParticipant(ctx, tx, p); err != nil {
			return err
		}
		if err := repo.CreateMessage(ctx, tx, sys); err != nil {
			return err
		}
		return repo.TouchDialog(ctx, tx, dialogID, sys.SentAt)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrAlreadyParticipant
	}
	if err != nil {
		return nil, err
	}

	s.Broadcaster.MessageNew(sys)
	s.Broadcaster.ParticipantJoined(dialogID, in.UserID, in.Profile.DisplayName)
	s.Webhooks.Enqueue(webhook.NewEvent(webhook.EventParticipantJoined, webhook.ParticipantPayload{
		DialogID:    dialogID,
		UserID:      in.UserID,
		DisplayName: in.Profile.DisplayName,
	}))
	return p, nil
}

// Leave removes a user from a dialog with a system message and the matching
// announcements.
func (s *DialogService) Leave(ctx context.Context, dialogID, userID string) error {
	p, err := repo.GetParticipant(ctx, s.DB, dialogID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotParticipant
	}
	if err != nil {
		return err
	}

	name := p.DisplayName
	if name == "" {
		name = userID
	}
	sys := domain.NewSystemMessage(dialogID, name+" left the dialog")

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.RemoveParticipant(ctx, tx, dialogID, userID); err != nil {
			return err
		}
		if err := repo.CreateMessage(ctx, tx, sys); err != nil {
			return err
		}
		return repo.TouchDialog(ctx, tx, dialogID, sys.SentAt)
	})
	if err != nil {
		return err
	}

	s.Broadcaster.MessageNew(sys)
	s.Broadcaster.ParticipantLeft(dialogID, userID)
	s.Webhooks.Enqueue(webhook.NewEvent(webhook.EventParticipantLeft, webhook.ParticipantPayload{
		DialogID: dialogID,
		UserID:   userID,
	}))
	return nil
}

// Archive hides the dialog from the caller's default listing. Other members
// are unaffected; the acting user gets a targeted WS event.
func (s *DialogService) Archive(ctx context.Context, dialogID, userID string) error {
	if err := s.setArchived(ctx, dialogID, userID, true); err != nil {
		return err
	}
	s.Broadcaster.DialogArchived(userID, dialogID)
	return nil
}

// Unarchive restores the dialog in the caller's default listing.
func (s *DialogService) Unarchive(ctx context.Context, dialogID, userID string) error {
	if err := s.setArchived(ctx, dialogID, userID, false); err != nil {
		return err
	}
	s.Broadcaster.DialogUnarchived(userID, dialogID)
	return nil
}

func (s *DialogService) setArchived(ctx context.Context, dialogID, userID string, archived bool) error {
	err := repo.SetArchived(ctx, s.DB, dialogID, userID, archived)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotParticipant
	}
	return err
}

// SetNotifications toggles the caller's missed-message notifications.
func (s *DialogService) SetNotifications(ctx context.Context, dialogID, userID string, enabled bool) error {
	err := repo.SetNotificationsEnabled(ctx, s.DB, dialogID, userID, enabled)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotParticipant
	}
	return err
}

// Participants lists the dialog's members annotated with live presence,
// enforcing membership of the caller.
func (s *DialogService) Participants(ctx context.Context, dialogID, userID string) ([]ParticipantPresence, error) {
	if err := s.requireMember(ctx, dialogID, userID); err != nil {
		return nil, err
	}
	members, err := repo.ListParticipants(ctx, s.DB, dialogID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	online := s.Presence.GetOnline(ctx, ids)

	out := make([]ParticipantPresence, len(members))
	for i, m := range members {
		out[i] = ParticipantPresence{Participant: m, Online: online[m.UserID]}
	}
	return out, nil
}

// AddParticipant is the management-side variant of Join: no membership
// announcement beyond the system message and events, but the member joins
// as "participant".
func (s *DialogService) AddParticipant(ctx context.Context, dialogID string, in ParticipantInput) (*domain.Participant, error) {
	if _, err := repo.GetDialog(ctx, s.DB, dialogID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrDialogNotFound
		}
		return nil, err
	}
	p := domain.NewParticipant(dialogID, in.UserID, domain.JoinedAsParticipant, in.Profile)
	if err := repo.AddParticipant(ctx, s.DB, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrAlreadyParticipant
		}
		return nil, err
	}
	s.Broadcaster.ParticipantJoined(dialogID, in.UserID, in.Profile.DisplayName)
	s.Webhooks.Enqueue(webhook.NewEvent(webhook.EventParticipantJoined, webhook.ParticipantPayload{
		DialogID:    dialogID,
		UserID:      in.UserID,
		DisplayName: in.Profile.DisplayName,
	}))
	return p, nil
}

// RemoveParticipant is the management-side removal of a member.
func (s *DialogService) RemoveParticipant(ctx context.Context, dialogID, userID string) error {
	err := repo.RemoveParticipant(ctx, s.DB, dialogID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotParticipant
	}
	if err != nil {
		return err
	}
	s.Broadcaster.ParticipantLeft(dialogID, userID)
	s.Webhooks.Enqueue(webhook.NewEvent(webhook.EventParticipantLeft, webhook.ParticipantPayload{
		DialogID: dialogID,
		UserID:   userID,
	}))
	return nil
}

// Delete removes a dialog entirely (management API). Messages and
// memberships cascade.
func (s *DialogService) Delete(ctx context.Context, dialogID string) error {
	err := repo.DeleteDialog(ctx, s.DB, dialogID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrDialogNotFound
	}
	return err
}

// requireMember maps membership failures to service errors.
func (s *DialogService) requireMember(ctx context.Context, dialogID, userID string) error {
	ok, err := repo.ParticipantExists(ctx, s.DB, dialogID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := repo.GetDialog(ctx, s.DB, dialogID); errors.Is(err, repo.ErrNotFound) {
		return ErrDialogNotFound
	}
	return ErrNotParticipant
}

package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/webhook"
)

func TestDialogCreate_SeedsMembersAndSystemMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "creator", "member")

	p, err := repo.GetParticipant(ctx, e.db, d.ID, "creator")
	if err != nil || p.JoinedAs != domain.JoinedAsCreator {
		t.Fatalf("creator membership: p=%+v err=%v", p, err)
	}
	p, err = repo.GetParticipant(ctx, e.db, d.ID, "member")
	if err != nil || p.JoinedAs != domain.JoinedAsParticipant {
		t.Fatalf("member membership: p=%+v err=%v", p, err)
	}

	msgs, err := repo.ListMessagesPage(ctx, e.db, d.ID, nil, 10)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one system message, got %d err=%v", len(msgs), err)
	}
	if msgs[0].Type != domain.MessageTypeSystem || msgs[0].SenderID != nil {
		t.Fatalf("system message malformed: %+v", msgs[0])
	}
}

func TestDialogCreate_DuplicateObjectBinding(t *testing.T) {
	e := newEnv(t)
	in := CreateDialogInput{ObjectID: "o1", ObjectType: "tender"}
	if _, err := e.dialogs.Create(context.Background(), in); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := e.dialogs.Create(context.Background(), in); !errors.Is(err, ErrDialogExists) {
		t.Fatalf("expected ErrDialogExists, got %v", err)
	}
}

func TestDialogCreate_RequiresObjectFields(t *testing.T) {
	e := newEnv(t)
	if _, err := e.dialogs.Create(context.Background(), CreateDialogInput{ObjectType: "tender"}); err == nil {
		t.Fatalf("expected validation error for missing object_id")
	}
}

func TestDialogGet_MembershipEnforced(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1")

	if _, err := e.dialogs.Get(ctx, d.ID, "u1"); err != nil {
		t.Fatalf("member get: %v", err)
	}
	if _, err := e.dialogs.Get(ctx, d.ID, "outsider"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
	if _, err := e.dialogs.Get(ctx, "missing", "u1"); !errors.Is(err, ErrDialogNotFound) {
		t.Fatalf("expected ErrDialogNotFound, got %v", err)
	}
}

func TestDialogJoinAndLeave_EventsAndSystemMessages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1")

	_, err := e.dialogs.Join(ctx, d.ID, ParticipantInput{
		UserID:  "u2",
		Profile: domain.Profile{DisplayName: "User Two"},
	})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Second join is rejected.
	if _, err := e.dialogs.Join(ctx, d.ID, ParticipantInput{UserID: "u2"}); !errors.Is(err, ErrAlreadyParticipant) {
		t.Fatalf("expected ErrAlreadyParticipant, got %v", err)
	}
	if _, err := e.dialogs.Join(ctx, "missing", ParticipantInput{UserID: "u3"}); !errors.Is(err, ErrDialogNotFound) {
		t.Fatalf("expected ErrDialogNotFound, got %v", err)
	}

	joined := e.webhooks.byType(webhook.EventParticipantJoined)
	if len(joined) != 1 {
		t.Fatalf("expected one participant.joined webhook, got %d", len(joined))
	}
	pl := joined[0].Payload.(webhook.ParticipantPayload)
	if pl.UserID != "u2" || pl.DialogID != d.ID {
		t.Fatalf("joined payload: %+v", pl)
	}

	if err := e.dialogs.Leave(ctx, d.ID, "u2"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := e.dialogs.Leave(ctx, d.ID, "u2"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant on second leave, got %v", err)
	}
	if len(e.webhooks.byType(webhook.EventParticipantLeft)) != 1 {
		t.Fatalf("expected one participant.left webhook")
	}

	// Creation + join + leave system messages.
	msgs, _ := repo.ListMessagesPage(ctx, e.db, d.ID, nil, 10)
	if len(msgs) != 3 {
		t.Fatalf("expected 3 system messages, got %d", len(msgs))
	}
}

func TestDialogArchiveUnarchive_PerUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1", "u2")

	if err := e.dialogs.Archive(ctx, d.ID, "u1"); err != nil {
		t.Fatalf("archive: %v", err)
	}
	p, _ := repo.GetParticipant(ctx, e.db, d.ID, "u1")
	if !p.IsArchived {
		t.Fatalf("u1 should be archived")
	}
	p, _ = repo.GetParticipant(ctx, e.db, d.ID, "u2")
	if p.IsArchived {
		t.Fatalf("u2 must be unaffected")
	}

	if err := e.dialogs.Unarchive(ctx, d.ID, "u1"); err != nil {
		t.Fatalf("unarchive: %v", err)
	}
	p, _ = repo.GetParticipant(ctx, e.db, d.ID, "u1")
	if p.IsArchived {
		t.Fatalf("u1 should be unarchived")
	}

	if err := e.dialogs.Archive(ctx, d.ID, "outsider"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestDialogParticipants_PresenceAnnotated(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1", "u2")

	if err := e.tracker.Refresh(ctx, "u2"); err != nil {
		t.Fatalf("mark u2 online: %v", err)
	}

	members, err := e.dialogs.Participants(ctx, d.ID, "u1")
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	byID := map[string]bool{}
	for _, m := range members {
		byID[m.UserID] = m.Online
	}
	if byID["u2"] != true || byID["u1"] != false {
		t.Fatalf("presence annotation wrong: %+v", byID)
	}

	if _, err := e.dialogs.Participants(ctx, d.ID, "outsider"); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestDialogManagement_AddRemoveDelete(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1")

	if _, err := e.dialogs.AddParticipant(ctx, d.ID, ParticipantInput{UserID: "u2"}); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if _, err := e.dialogs.AddParticipant(ctx, d.ID, ParticipantInput{UserID: "u2"}); !errors.Is(err, ErrAlreadyParticipant) {
		t.Fatalf("expected ErrAlreadyParticipant, got %v", err)
	}
	if err := e.dialogs.RemoveParticipant(ctx, d.ID, "u2"); err != nil {
		t.Fatalf("remove participant: %v", err)
	}

	if err := e.dialogs.Delete(ctx, d.ID); err != nil {
		t.Fatalf("delete dialog: %v", err)
	}
	if err := e.dialogs.Delete(ctx, d.ID); !errors.Is(err, ErrDialogNotFound) {
		t.Fatalf("expected ErrDialogNotFound, got %v", err)
	}
}

func TestDialogGetByObject(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	in := CreateDialogInput{ObjectID: "o9", ObjectType: "order"}
	created, err := e.dialogs.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	d, err := e.dialogs.GetByObject(ctx, "order", "o9")
	if err != nil || d.ID != created.ID {
		t.Fatalf("get by object: d=%+v err=%v", d, err)
	}
	if _, err := e.dialogs.GetByObject(ctx, "order", "nope"); !errors.Is(err, ErrDialogNotFound) {
		t.Fatalf("expected ErrDialogNotFound, got %v", err)
	}
}

func TestDialogSetNotifications(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	d := e.mustCreateDialog(t, "u1")

	if err := e.dialogs.SetNotifications(ctx, d.ID, "u1", false); err != nil {
		t.Fatalf("disable: %v", err)
	}
	p, _ := repo.GetParticipant(ctx, e.db, d.ID, "u1")
	if p.NotificationsEnabled {
		t.Fatalf("notifications should be off")
	}
	if err := e.dialogs.SetNotifications(ctx, d.ID, "outsider", true); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

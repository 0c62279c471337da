package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/dialoghub/dialog-backend/internal/cache"
	"github.com/dialoghub/dialog-backend/internal/config"
	"github.com/dialoghub/dialog-backend/internal/domain"
	"github.com/dialoghub/dialog-backend/internal/notify"
	"github.com/dialoghub/dialog-backend/internal/presence"
	"github.com/dialoghub/dialog-backend/internal/realtime"
	"github.com/dialoghub/dialog-backend/internal/webhook"
)

// fakeSender records webhook events enqueued by the services.
type fakeSender struct {
	mu     sync.Mutex
	events []webhook.Event
}

func (f *fakeSender) Enqueue(ev webhook.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSender) Close() {}

func (f *fakeSender) byType(typ string) []webhook.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []webhook.Event
	for _, ev := range f.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// env wires real components around a temp sqlite database.
type env struct {
	db       *gorm.DB
	reg      *realtime.Registry
	webhooks *fakeSender
	tracker  *presence.Tracker
	dialogs  *DialogService
	messages *MessageService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Dialog{}, &domain.Participant{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	log := zerolog.Nop()
	c := cache.NewMemory()
	reg := realtime.NewRegistry(32, log)
	bc := realtime.NewBroadcaster(reg, log)
	tracker := presence.NewTracker(c, db, bc, time.Minute, log)
	wh := &fakeSender{}
	scheduler := notify.NewScheduler(db, c, wh, config.NotifyConfig{
		Delay:     5 * time.Millisecond,
		QueueSize: 32,
	}, log)
	t.Cleanup(scheduler.Close)

	return &env{
		db:       db,
		reg:      reg,
		webhooks: wh,
		tracker:  tracker,
		dialogs:  NewDialogService(db, bc, wh, tracker, log),
		messages: NewMessageService(db, bc, wh, scheduler, log),
	}
}

// mustCreateDialog seeds a dialog with the given members (first one is the
// creator).
func (e *env) mustCreateDialog(t *testing.T, users ...string) *domain.Dialog {
	t.Helper()
	in := CreateDialogInput{
		ObjectID:   fmt.Sprintf("obj-%d", time.Now().UnixNano()),
		ObjectType: "tender",
		Title:      "Tender discussion",
	}
	if len(users) > 0 {
		in.CreatedBy = &users[0]
	}
	for _, u := range users {
		in.Participants = append(in.Participants, ParticipantInput{
			UserID:  u,
			Profile: domain.Profile{DisplayName: "User " + u},
		})
	}
	d, err := e.dialogs.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create dialog: %v", err)
	}
	return d
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

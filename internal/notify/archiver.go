package notify

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/config"
	"github.com/dialoghub/dialog-backend/internal/repo"
)

// Archiver periodically archives dialogs with no message activity for the
// configured duration. Archiving applies to every participant; the dialog
// and its history remain intact and any member can unarchive it again.
type Archiver struct {
	db   *gorm.DB
	cfg  config.ArchiveConfig
	cron *cron.Cron
	log  zerolog.Logger
}

// NewArchiver builds the sweep without starting it.
func NewArchiver(db *gorm.DB, cfg config.ArchiveConfig, log zerolog.Logger) *Archiver {
	return &Archiver{
		db:   db,
		cfg:  cfg,
		cron: cron.New(),
		log:  log.With().Str("component", "archiver").Logger(),
	}
}

// Start schedules the sweep per the configured cron spec.
func (a *Archiver) Start() error {
	if _, err := a.cron.AddFunc(a.cfg.Schedule, func() {
		if _, err := a.Sweep(context.Background()); err != nil {
			a.log.Error().Err(err).Msg("archive sweep failed")
		}
	}); err != nil {
		return err
	}
	a.cron.Start()
	a.log.Info().Str("schedule", a.cfg.Schedule).Dur("after", a.cfg.After).Msg("archive sweep scheduled")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (a *Archiver) Stop() {
	<-a.cron.Stop().Done()
}

// Sweep archives all dialogs whose last message is older than the cutoff
// and returns the number of participant rows flipped.
func (a *Archiver) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-a.cfg.After)
	ids, err := repo.FindInactiveDialogIDs(ctx, a.db, cutoff)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := repo.ArchiveDialogs(ctx, a.db, ids)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info().Int("dialogs", len(ids)).Int64("participants", n).Msg("inactive dialogs archived")
	}
	return n, nil
}

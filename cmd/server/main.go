// Command server runs the dialog backend: HTTP API, WebSocket endpoint,
// webhook dispatcher, notification scheduler, and the auto-archive sweep.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/dialoghub/dialog-backend/internal/cache"
	"github.com/dialoghub/dialog-backend/internal/config"
	httpapi "github.com/dialoghub/dialog-backend/internal/http"
	"github.com/dialoghub/dialog-backend/internal/notify"
	"github.com/dialoghub/dialog-backend/internal/observability"
	"github.com/dialoghub/dialog-backend/internal/presence"
	"github.com/dialoghub/dialog-backend/internal/realtime"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/services"
	"github.com/dialoghub/dialog-backend/internal/webhook"
	"github.com/dialoghub/dialog-backend/internal/ws"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin")
		}
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate schema")
	}

	// Redis when configured, otherwise the in-process cache. The in-memory
	// fallback is only correct for a single replica.
	var store cache.Cache
	var redisClose func() error
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		store = rc
		redisClose = rc.Close
		log.Info().Msg("presence/debounce cache: redis")
	} else {
		store = cache.NewMemory()
		log.Info().Msg("presence/debounce cache: in-memory (single replica only)")
	}

	logger := log.Logger
	reg := realtime.NewRegistry(cfg.WSSendBuffer, logger)
	bc := realtime.NewBroadcaster(reg, logger)
	tracker := presence.NewTracker(store, db, bc, cfg.PresenceTTL, logger)

	var sender webhook.Sender = webhook.Noop{}
	if cfg.WebhookEnabled() {
		sender = webhook.NewHTTPSender(cfg.Webhook, logger)
		log.Info().Str("url", cfg.Webhook.URL).Msg("webhook delivery enabled")
	} else {
		log.Info().Msg("webhook delivery disabled")
	}

	scheduler := notify.NewScheduler(db, store, sender, cfg.Notify, logger)

	archiver := notify.NewArchiver(db, cfg.Archive, logger)
	if cfg.Archive.Enabled {
		if err := archiver.Start(); err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.Archive.Schedule).Msg("start archiver")
		}
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Dialogs:  services.NewDialogService(db, bc, sender, tracker, logger),
		Messages: services.NewMessageService(db, bc, sender, scheduler, logger),
		WS:       ws.NewHandler(reg, bc, tracker, logger),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown")
		}

		// Drain background workers after the listener stops accepting.
		if cfg.Archive.Enabled {
			archiver.Stop()
		}
		scheduler.Close()
		sender.Close()
		if redisClose != nil {
			_ = redisClose()
		}
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("bye")
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

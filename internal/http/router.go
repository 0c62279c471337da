// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes the cross-cutting concerns:
// tracing, correlation IDs, logging, panic recovery, metrics, idempotency,
// rate limiting, and CORS.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Identity: lift X-User-ID into the context
//  4. Logger: structured access logs
//  5. Recovery: capture panics after the logger
//  6. Body size limiter
//  7. Metrics
//  8. Idempotency validator (before the rate limiter so replays bypass it)
//  9. Rate limiter (per user/IP)
//  10. CORS and response compression
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/dialoghub/dialog-backend/internal/config"
	"github.com/dialoghub/dialog-backend/internal/http/handlers"
	"github.com/dialoghub/dialog-backend/internal/http/middleware"
	"github.com/dialoghub/dialog-backend/internal/repo"
	"github.com/dialoghub/dialog-backend/internal/services"
	"github.com/dialoghub/dialog-backend/internal/ws"
)

// Deps carries the constructed application components into the router.
type Deps struct {
	DB       *gorm.DB
	Dialogs  *services.DialogService
	Messages *services.MessageService
	WS       *ws.Handler
}

// RegisterRoutes attaches all middleware and endpoints to the Gin engine:
// health and metrics at the root, the WebSocket endpoint at /ws, and the
// versioned API (participant routes plus the admin-guarded management
// surface) under cfg.APIBasePath.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Identity())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, dialogID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, d.DB, userID, dialogID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	// The WebSocket upgrade must not pass through the gzip writer.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness and readiness
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/health/ready", func(c *gin.Context) {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Realtime endpoint; identity comes from the user_id query parameter
	// because browsers cannot set headers on WebSocket dials.
	r.GET("/ws", d.WS.Serve)

	h := handlers.New(d.Dialogs, d.Messages, d.DB, cfg.IdempotencyTTL)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/dialogs", h.ListDialogs)
		api.GET("/dialogs/:id", h.GetDialog)
		api.POST("/dialogs/:id/join", h.JoinDialog)
		api.POST("/dialogs/:id/leave", h.LeaveDialog)
		api.POST("/dialogs/:id/archive", h.ArchiveDialog)
		api.POST("/dialogs/:id/unarchive", h.UnarchiveDialog)
		api.POST("/dialogs/:id/read", h.MarkRead)
		api.PUT("/dialogs/:id/notifications", h.SetNotifications)
		api.GET("/dialogs/:id/participants", h.ListParticipants)

		api.GET("/dialogs/:id/messages", h.ListMessages)
		api.POST("/dialogs/:id/messages", h.SendMessage)
		api.GET("/dialogs/:id/messages/:message_id", h.GetMessage)
		api.PUT("/dialogs/:id/messages/:message_id", h.EditMessage)
		api.DELETE("/dialogs/:id/messages/:message_id", h.DeleteMessage)
	}

	mgmt := api.Group("/management", middleware.AdminToken(cfg.AdminToken))
	{
		mgmt.POST("/dialogs", h.CreateDialog)
		mgmt.GET("/dialogs", h.ResolveDialog)
		mgmt.GET("/dialogs/:id", h.GetManagedDialog)
		mgmt.DELETE("/dialogs/:id", h.DeleteDialog)
		mgmt.POST("/dialogs/:id/participants", h.AddParticipant)
		mgmt.DELETE("/dialogs/:id/participants/:user_id", h.RemoveParticipant)
	}
}

// corsMiddleware returns the CORS posture: allow-all when no origins are
// configured, otherwise an explicit allowlist.
func corsMiddleware(origins []string) gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			middleware.HeaderUserID, middleware.HeaderAdminToken, middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// AllowCredentials must stay false with AllowAllOrigins.
		return cors.New(base)
	}
	base.AllowOrigins = origins
	base.AllowCredentials = true
	return cors.New(base)
}

// limitBody caps the request body for all endpoints via http.MaxBytesReader.
// Oversized bodies error on the first downstream read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

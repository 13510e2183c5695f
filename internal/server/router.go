// Package server wires the HTTP surface: the webhook intake, the health
// endpoint, and the operator-only reconciliation trigger.
package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"membersync/internal/reconcile"
	"membersync/internal/webhook"
)

// Pinger is the liveness surface of a backing store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Reconciler runs one reconciliation sweep on demand.
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Report, error)
}

// Options carries the handlers and guards the router mounts. RedisPinger
// and Reconciler may be nil; OperatorToken empty disables the reconcile
// route entirely.
type Options struct {
	Webhook       *webhook.Handler
	Mirror        *MirrorHandler
	DB            Pinger
	RedisPinger   Pinger
	Reconciler    Reconciler
	OperatorToken string
	Logger        *zap.Logger
}

// NewRouter builds the gin engine with all routes mounted.
func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/webhooks/workos", opts.Webhook.Handle)
	r.GET("/healthz", healthHandler(opts.DB, opts.RedisPinger))

	if opts.Mirror != nil {
		r.GET("/organizations/:id", opts.Mirror.GetOrganization)
		r.GET("/organizations/:id/memberships", opts.Mirror.ListMemberships)
	}

	if opts.Reconciler != nil && opts.OperatorToken != "" {
		r.POST("/internal/reconcile", operatorGuard(opts.OperatorToken), reconcileHandler(opts.Reconciler, opts.Logger))
	}

	return r
}

// healthHandler reports readiness: the database must answer a ping; Redis is
// checked too when configured. Cache failure degrades the mirror to
// best-effort invalidation, but we still surface it here so operators see it.
func healthHandler(db, redis Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
		}
		if redis != nil {
			if err := redis.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "cache": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// operatorGuard requires the X-Operator-Token header to match the configured
// token. Constant-time compare; token presence is checked at mount time.
func operatorGuard(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Operator-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// reconcileHandler runs a sweep synchronously and returns the report. Runs
// can be long on large tenants; the caller's request context bounds it.
func reconcileHandler(job Reconciler, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := job.Run(c.Request.Context())
		if err != nil {
			logger.Error("reconciliation run failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "reconciliation failed"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// Package server exposes the read-only health/status/opportunities/metrics
// HTTP surface described in SPEC_FULL's ambient stack, following the
// gin-gonic router GoPolymarket-polygate's cmd/server/main.go wires up.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polyarb/arbengine/internal/domain"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// StatusProvider reports the orchestrator's running state for the /status
// endpoint.
type StatusProvider interface {
	CurrentExposureUSD() float64
}

// OpportunityProvider serves recently detected opportunities for the
// /opportunities endpoint, backed by the optional Postgres mirror.
type OpportunityProvider interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error)
}

// Server is the headless read-only HTTP API for the arbitrage engine.
type Server struct {
	httpServer *http.Server
	router     http.Handler
	logger     *slog.Logger
}

// NewServer builds the gin router and registers every route. opps may be
// nil when no Postgres mirror is configured, in which case /opportunities
// returns an empty list.
func NewServer(cfg Config, status StatusProvider, opps OpportunityProvider, startedAt time.Time, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"uptime_seconds":        time.Since(startedAt).Seconds(),
			"current_exposure_usd": status.CurrentExposureUSD(),
		})
	})

	r.GET("/opportunities", func(c *gin.Context) {
		if opps == nil {
			c.JSON(http.StatusOK, gin.H{"opportunities": []domain.Opportunity{}})
			return
		}
		list, err := opps.ListRecent(c.Request.Context(), 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"opportunities": list})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		router: r,
		logger: logger.With(slog.String("component", "server")),
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// corsMiddleware allows the configured origins (or all, if none given) for
// GET requests against the read-only API, following the teacher's
// corsMiddleware helper.
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			allowed := len(allowedOrigins) == 0
			for _, o := range allowedOrigins {
				if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
					allowed = true
					break
				}
			}
			if allowed {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Content-Type")
				c.Header("Access-Control-Max-Age", "86400")
			}
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

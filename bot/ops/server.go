// Package ops exposes a small operational HTTP surface next to the bot:
// liveness and a few runtime counters.
package ops

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/pasindu8/telegrambot/bot/files"
	"github.com/pasindu8/telegrambot/core/buildinfo"
	"github.com/pasindu8/telegrambot/core/logger"
)

// Config holds the ops listener settings. An empty Listen disables the server.
type Config struct {
	Listen string `yaml:"listen" envconfig:"OPS_LISTEN"`
}

// Enabled reports whether the ops server should run.
func (c Config) Enabled() bool {
	return c.Listen != ""
}

// Deps are the collaborators the handlers read from. Nil fields degrade to
// partial responses rather than errors.
type Deps struct {
	DB       *sqlx.DB
	Exchange *files.Exchange
}

// Server runs the ops HTTP listener.
type Server struct {
	httpServer *http.Server
	startedAt  time.Time
}

// NewRouter builds the gin engine serving the ops endpoints.
func NewRouter(deps Deps, startedAt time.Time) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unreachable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats := gin.H{
			"version":        buildinfo.Version,
			"uptime_seconds": int64(time.Since(startedAt).Seconds()),
		}
		if deps.Exchange != nil {
			if n, err := deps.Exchange.Count(c.Request.Context()); err == nil {
				stats["stored_files"] = n
			}
		}
		c.JSON(http.StatusOK, stats)
	})

	return r
}

// NewServer builds an ops Server. Returns nil when the listener is disabled.
func NewServer(cfg Config, deps Deps) *Server {
	if !cfg.Enabled() {
		return nil
	}
	startedAt := time.Now()
	return &Server{
		startedAt: startedAt,
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           NewRouter(deps, startedAt),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start runs the listener in the background. Safe to call on a nil Server.
func (s *Server) Start() {
	if s == nil {
		return
	}
	go func() {
		logger.Info(context.Background(), "ops", "listen", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(context.Background(), "ops", "stopped", slog.String("err", err.Error()))
		}
	}()
}

// Stop shuts the listener down gracefully. Safe to call on a nil Server.
func (s *Server) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "ops", "shutdown", slog.String("err", err.Error()))
	}
}

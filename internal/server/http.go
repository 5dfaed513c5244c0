package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reversi-cards/reversi-server-go/internal/config"
	"github.com/reversi-cards/reversi-server-go/internal/match"
	"github.com/reversi-cards/reversi-server-go/internal/store"
)

// NewRouter serves health, match views and match streams.
func NewRouter(matches *match.Manager, hub *Hub, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"matches": len(matches.List()),
			"active":  matches.ActiveCount(),
		})
	})
	r.GET("/matches/:id", GetMatchHandler(matches))
	r.GET("/matches/:id/stream", hub.HandleStream)
	return r
}

// NewHTTPServer wraps the router in an http.Server configured from cfg.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	// No WriteTimeout: it would cut WebSocket streams. The hub bounds each
	// frame write with cfg.WriteTimeout instead.
	return &http.Server{
		Addr:              cfg.Address,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
}

// GetMatchHandler returns the snapshot of a match, resuming it from the
// store when it is not hosted.
func GetMatchHandler(matches *match.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		m, ok := matches.Get(id)
		if !ok {
			var err error
			m, err = matches.Resume(c.Request.Context(), id)
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": match.ErrNotFound.Error()})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}
		snap, err := m.Snapshot()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

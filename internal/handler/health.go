package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"predictions/internal/db"
	"predictions/internal/repository"
)

type HealthHandler struct {
	DB     *db.DB
	Repo   repository.Repository
	Stream string

	// MaxLag is how stale the cursor may be before /readyz degrades.
	MaxLag time.Duration
}

func (h *HealthHandler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)
	r.GET("/readyz", h.ready)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) ready(c *gin.Context) {
	if h.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_missing"})
		return
	}
	if err := db.Ping(h.DB); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db_unreachable"})
		return
	}

	resp := gin.H{"status": "ready"}
	if h.Repo != nil && h.Stream != "" {
		cursor, err := h.Repo.GetCursor(c.Request.Context(), h.Stream)
		if err == nil && cursor != nil {
			resp["cursor_version"] = cursor.LastVersion
			if cursor.LastSuccessAt != nil {
				lag := time.Since(*cursor.LastSuccessAt)
				resp["cursor_lag_seconds"] = int64(lag.Seconds())
				if h.MaxLag > 0 && lag > h.MaxLag {
					resp["status"] = "stale"
				}
			}
		}
	}
	c.JSON(http.StatusOK, resp)
}

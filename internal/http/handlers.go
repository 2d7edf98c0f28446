/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rickybien/performance-dashboard/internal/config"
	"github.com/rickybien/performance-dashboard/internal/repo"
)

type service interface {
	RunPipeline(ctx context.Context) error
	LatestDashboard(ctx context.Context) ([]byte, bool)
	GetLastRun(ctx context.Context) (*repo.LastRun, error)
}

type Handlers struct {
	cfg config.Config
	log zerolog.Logger
	svc service
}

func NewHandlers(cfg config.Config, log zerolog.Logger, svc service) *Handlers {
	return &Handlers{cfg: cfg, log: log, svc: svc}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Dashboard serves the latest published document verbatim. A missing or
// malformed document is a 503; the payload is never inspected or repaired.
func (h *Handlers) Dashboard(c *gin.Context) {
	payload, ok := h.svc.LatestDashboard(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data unavailable"})
		return
	}
	c.Data(http.StatusOK, "application/json", payload)
}

func (h *Handlers) LastRun(c *gin.Context) {
	lr, err := h.svc.GetLastRun(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, lr)
}

func (h *Handlers) RunNow(c *gin.Context) {
	// detach from the request context so the run survives the response
	go func() {
		if err := h.svc.RunPipeline(context.Background()); err != nil {
			h.log.Error().Err(err).Msg("manual pipeline run failed")
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

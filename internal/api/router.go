package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/config"
)

func NewRouter(logger *logrus.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Ingestion gateway
		api.POST("/measurements", h.IngestMeasurement)
		api.POST("/measurements/batch", h.IngestBatch)

		// Operator surface
		api.GET("/pipeline/failures", h.ListFailures)
		api.POST("/pipeline/sweep-offline", h.TriggerOfflineSweep)

		// Dashboard live alerts
		api.GET("/alerts/ws", h.AlertSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

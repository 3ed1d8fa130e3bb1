package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
	"ingestion-service/internal/notifier"
	"ingestion-service/internal/worker"
)

// Enqueuer is the durable queue handoff the gateway depends on. The gateway
// never touches the database; an accepted request only means the job is
// durably queued.
type Enqueuer interface {
	Enqueue(ctx context.Context, job models.IngestionJob) error
}

// Sweeper is the offline-sensor sweep entry point the scheduler calls.
type Sweeper interface {
	SweepOfflineSensors(ctx context.Context) (int, error)
}

type Handler struct {
	queue    Enqueuer
	failures *worker.FailureLog
	sweeper  Sweeper
	hub      *notifier.Hub
	logger   *logrus.Logger
}

func NewHandler(queue Enqueuer, failures *worker.FailureLog, sweeper Sweeper, hub *notifier.Hub, logger *logrus.Logger) *Handler {
	return &Handler{queue: queue, failures: failures, sweeper: sweeper, hub: hub, logger: logger}
}

type singleReadingRequest struct {
	SensorID   string           `json:"sensorId" binding:"required"`
	Value      models.FlexValue `json:"value" binding:"required"`
	Unit       string           `json:"unit"`
	ObservedAt *time.Time       `json:"observedAt"`
}

func (r singleReadingRequest) job(batch bool) models.IngestionJob {
	return models.IngestionJob{
		SensorID:   r.SensorID,
		Value:      r.Value,
		Unit:       r.Unit,
		ObservedAt: r.ObservedAt,
		Batch:      batch,
	}
}

// IngestMeasurement accepts one reading and queues it. Responds 202: the
// write is pending, not committed.
func (h *Handler) IngestMeasurement(c *gin.Context) {
	var req singleReadingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), req.job(false)); err != nil {
		h.logger.Errorf("Enqueue failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion temporarily unavailable"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":    "pending",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type batchRequest struct {
	Readings []singleReadingRequest `json:"readings" binding:"required,min=1,dive"`
}

// IngestBatch queues one job per reading. Each job later fails or retries
// independently; partial processing failures are not reported here.
func (h *Handler) IngestBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, reading := range req.Readings {
		if err := h.queue.Enqueue(c.Request.Context(), reading.job(true)); err != nil {
			h.logger.Errorf("Enqueue failed: %v", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingestion temporarily unavailable"})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"queued": true,
		"count":  len(req.Readings),
	})
}

// ListFailures exposes the bounded log of permanently-failed jobs.
func (h *Handler) ListFailures(c *gin.Context) {
	entries := h.failures.Snapshot()
	c.JSON(http.StatusOK, gin.H{"failures": entries, "count": len(entries)})
}

// TriggerOfflineSweep is the scheduler-facing entry point for the
// offline-sensor sweep.
func (h *Handler) TriggerOfflineSweep(c *gin.Context) {
	created, err := h.sweeper.SweepOfflineSensors(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Offline sweep failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AlertSocket upgrades a dashboard session and registers it for live alert
// push.
func (h *Handler) AlertSocket(c *gin.Context) {
	userID, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || userID < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("Websocket upgrade failed: %v", err)
		return
	}

	h.hub.AddConnection(userID, conn)
	go func() {
		defer func() {
			h.hub.RemoveConnection(userID, conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

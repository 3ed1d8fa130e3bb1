package threshold

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ingestion-service/internal/models"
)

// SweepOfflineSensors raises a warning for every active sensor that has not
// reported within the staleness window and has no unresolved offline alert
// inside the cool-down. The external scheduler calls this periodically.
// Returns the number of alerts created.
func (e *Engine) SweepOfflineSensors(ctx context.Context) (int, error) {
	now := e.now()

	sensors, err := e.store.FindStaleSensors(ctx, now.Add(-e.opts.OfflineStale))
	if err != nil {
		return 0, fmt.Errorf("stale sensor query failed: %w", err)
	}

	created := 0
	for _, sensor := range sensors {
		dup, err := e.store.HasRecentUnresolvedAlert(ctx, sensor.ID, models.CategoryOfflineSensor, "", now.Add(-e.opts.OfflineCooldown))
		if err != nil {
			e.logger.WithField("sensor_id", sensor.ID).Errorf("offline cooldown check failed: %v", err)
			continue
		}
		if dup {
			continue
		}

		alert := models.Alert{
			ID:        uuid.NewString(),
			UserID:    sensor.OwnerID,
			SensorID:  &sensor.ID,
			Category:  models.CategoryOfflineSensor,
			Severity:  models.SeverityWarning,
			Title:     "Capteur silencieux",
			Message:   fmt.Sprintf("Le capteur %s (%s) n'a transmis aucune mesure récemment", sensor.ID, sensor.Type),
			Status:    models.AlertNew,
			CreatedAt: now,
		}
		if sensor.ParcelID != "" {
			parcelID := sensor.ParcelID
			alert.ParcelID = &parcelID
		}

		if err := e.store.CreateAlert(ctx, alert); err != nil {
			e.logger.WithField("sensor_id", sensor.ID).Errorf("offline alert creation failed: %v", err)
			continue
		}
		e.dispatch(ctx, alert)
		created++
	}
	return created, nil
}

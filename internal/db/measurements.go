package db

import (
	"context"
	"fmt"

	"ingestion-service/internal/models"
)

// CreateMeasurement appends one reading. Measurements are never updated or
// deleted here; corrections arrive as newer rows.
func (d *DB) CreateMeasurement(ctx context.Context, m models.Measurement) error {
	query := `
    INSERT INTO measurements (sensor_id, value, unit, timestamp)
    VALUES ($1, $2, $3, $4)`

	_, err := d.Pool.Exec(ctx, query, m.SensorID, m.Value, m.Unit, m.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert measurement for sensor %s: %w", m.SensorID, err)
	}
	return nil
}

package db

import (
	"context"
	"fmt"
	"time"

	"ingestion-service/internal/models"
)

// FindActiveSensorsWithLatestMeasurement returns every active sensor of a
// parcel together with its single most recent measurement, if one exists.
// This is the read the health aggregator recomputes from, so it always
// reflects latest-per-sensor regardless of job delivery order.
func (d *DB) FindActiveSensorsWithLatestMeasurement(ctx context.Context, parcelID string) ([]models.SensorReading, error) {
	query := `
    SELECT s.id, s.type, s.status, s.station_id, s.threshold_min, s.threshold_max, s.created_at,
           COALESCE(s.parcel_id, st.parcel_id, '') AS parcel_id,
           COALESCE(p.user_id, 0) AS owner_id,
           m.id, m.value, m.unit, m.timestamp
    FROM sensors s
    LEFT JOIN stations st ON st.id = s.station_id
    LEFT JOIN parcels p ON p.id = COALESCE(s.parcel_id, st.parcel_id)
    LEFT JOIN LATERAL (
        SELECT id, value, unit, timestamp
        FROM measurements
        WHERE sensor_id = s.id
        ORDER BY timestamp DESC
        LIMIT 1
    ) m ON true
    WHERE COALESCE(s.parcel_id, st.parcel_id) = $1 AND s.status = $2`

	rows, err := d.Pool.Query(ctx, query, parcelID, models.SensorActive)
	if err != nil {
		return nil, fmt.Errorf("failed to list sensors for parcel %s: %w", parcelID, err)
	}
	defer rows.Close()

	var list []models.SensorReading
	for rows.Next() {
		var r models.SensorReading
		var mID *int64
		var mValue, mUnit *string
		var mTimestamp *time.Time
		err := rows.Scan(
			&r.Sensor.ID,
			&r.Sensor.Type,
			&r.Sensor.Status,
			&r.Sensor.StationID,
			&r.Sensor.ThresholdMin,
			&r.Sensor.ThresholdMax,
			&r.Sensor.CreatedAt,
			&r.Sensor.ParcelID,
			&r.Sensor.OwnerID,
			&mID,
			&mValue,
			&mUnit,
			&mTimestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sensor reading: %w", err)
		}
		if mID != nil && mValue != nil {
			r.Latest = &models.Measurement{
				ID:       *mID,
				SensorID: r.Sensor.ID,
				Value:    *mValue,
			}
			if mUnit != nil {
				r.Latest.Unit = *mUnit
			}
			if mTimestamp != nil {
				r.Latest.Timestamp = *mTimestamp
			}
		}
		list = append(list, r)
	}
	return list, rows.Err()
}

// UpdateParcelHealth overwrites the derived health classification.
func (d *DB) UpdateParcelHealth(ctx context.Context, parcelID string, health models.HealthLevel) error {
	query := `UPDATE parcels SET health = $1, health_updated_at = NOW() WHERE id = $2`

	result, err := d.Pool.Exec(ctx, query, health.String(), parcelID)
	if err != nil {
		return fmt.Errorf("failed to update health for parcel %s: %w", parcelID, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("no parcel updated for id %s", parcelID)
	}
	return nil
}

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ingestion-service/internal/models"
)

// FindSensorByID fetches a sensor with its parcel and owner resolved, either
// through a direct parcel reference or through the owning station.
func (d *DB) FindSensorByID(ctx context.Context, id string) (models.Sensor, error) {
	query := `
    SELECT s.id, s.type, s.status, s.station_id, s.threshold_min, s.threshold_max, s.created_at,
           COALESCE(s.parcel_id, st.parcel_id, '') AS parcel_id,
           COALESCE(p.user_id, 0) AS owner_id
    FROM sensors s
    LEFT JOIN stations st ON st.id = s.station_id
    LEFT JOIN parcels p ON p.id = COALESCE(s.parcel_id, st.parcel_id)
    WHERE s.id = $1`

	var sensor models.Sensor
	err := d.Pool.QueryRow(ctx, query, id).Scan(
		&sensor.ID,
		&sensor.Type,
		&sensor.Status,
		&sensor.StationID,
		&sensor.ThresholdMin,
		&sensor.ThresholdMax,
		&sensor.CreatedAt,
		&sensor.ParcelID,
		&sensor.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Sensor{}, fmt.Errorf("sensor %s: %w", id, ErrNotFound)
		}
		return models.Sensor{}, fmt.Errorf("failed to get sensor %s: %w", id, err)
	}
	return sensor, nil
}

// FindStationByDeviceCode resolves an MQTT device code to its station.
func (d *DB) FindStationByDeviceCode(ctx context.Context, code string) (models.Station, error) {
	query := `
    SELECT st.id, st.device_code, st.parcel_id, COALESCE(p.user_id, 0) AS owner_id
    FROM stations st
    LEFT JOIN parcels p ON p.id = st.parcel_id
    WHERE st.device_code = $1`

	var station models.Station
	err := d.Pool.QueryRow(ctx, query, code).Scan(
		&station.ID,
		&station.DeviceCode,
		&station.ParcelID,
		&station.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Station{}, fmt.Errorf("station %s: %w", code, ErrNotFound)
		}
		return models.Station{}, fmt.Errorf("failed to get station %s: %w", code, err)
	}
	return station, nil
}

// FindSensorByStationAndType locates the sensor of a given type under a
// station, used when fanning out a multi-channel device message.
func (d *DB) FindSensorByStationAndType(ctx context.Context, stationID string, t models.SensorType) (models.Sensor, error) {
	query := `
    SELECT s.id, s.type, s.status, s.station_id, s.threshold_min, s.threshold_max, s.created_at,
           COALESCE(s.parcel_id, st.parcel_id, '') AS parcel_id,
           COALESCE(p.user_id, 0) AS owner_id
    FROM sensors s
    JOIN stations st ON st.id = s.station_id
    LEFT JOIN parcels p ON p.id = COALESCE(s.parcel_id, st.parcel_id)
    WHERE s.station_id = $1 AND s.type = $2
    LIMIT 1`

	var sensor models.Sensor
	err := d.Pool.QueryRow(ctx, query, stationID, t).Scan(
		&sensor.ID,
		&sensor.Type,
		&sensor.Status,
		&sensor.StationID,
		&sensor.ThresholdMin,
		&sensor.ThresholdMax,
		&sensor.CreatedAt,
		&sensor.ParcelID,
		&sensor.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Sensor{}, fmt.Errorf("sensor type %s on station %s: %w", t, stationID, ErrNotFound)
		}
		return models.Sensor{}, fmt.Errorf("failed to get sensor by station/type: %w", err)
	}
	return sensor, nil
}

// FindStaleSensors returns active sensors whose most recent measurement, or
// provisioning time when they have never reported, is older than cutoff.
func (d *DB) FindStaleSensors(ctx context.Context, cutoff time.Time) ([]models.Sensor, error) {
	query := `
    SELECT s.id, s.type, s.status, s.station_id, s.threshold_min, s.threshold_max, s.created_at,
           COALESCE(s.parcel_id, st.parcel_id, '') AS parcel_id,
           COALESCE(p.user_id, 0) AS owner_id
    FROM sensors s
    LEFT JOIN stations st ON st.id = s.station_id
    LEFT JOIN parcels p ON p.id = COALESCE(s.parcel_id, st.parcel_id)
    WHERE s.status = $1
      AND COALESCE(
            (SELECT MAX(m.timestamp) FROM measurements m WHERE m.sensor_id = s.id),
            s.created_at
          ) < $2`

	rows, err := d.Pool.Query(ctx, query, models.SensorActive, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale sensors: %w", err)
	}
	defer rows.Close()

	var list []models.Sensor
	for rows.Next() {
		var sensor models.Sensor
		err := rows.Scan(
			&sensor.ID,
			&sensor.Type,
			&sensor.Status,
			&sensor.StationID,
			&sensor.ThresholdMin,
			&sensor.ThresholdMax,
			&sensor.CreatedAt,
			&sensor.ParcelID,
			&sensor.OwnerID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale sensor: %w", err)
		}
		list = append(list, sensor)
	}
	return list, rows.Err()
}

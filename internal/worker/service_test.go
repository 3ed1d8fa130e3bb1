package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestion-service/internal/db"
	"ingestion-service/internal/models"
)

type fakeStore struct {
	sensors      map[string]models.Sensor
	stations     map[string]models.Station
	measurements []models.Measurement
	insertErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sensors:  make(map[string]models.Sensor),
		stations: make(map[string]models.Station),
	}
}

func (f *fakeStore) FindSensorByID(_ context.Context, id string) (models.Sensor, error) {
	sensor, ok := f.sensors[id]
	if !ok {
		return models.Sensor{}, fmt.Errorf("sensor %s: %w", id, db.ErrNotFound)
	}
	return sensor, nil
}

func (f *fakeStore) FindStationByDeviceCode(_ context.Context, code string) (models.Station, error) {
	station, ok := f.stations[code]
	if !ok {
		return models.Station{}, fmt.Errorf("station %s: %w", code, db.ErrNotFound)
	}
	return station, nil
}

func (f *fakeStore) FindSensorByStationAndType(_ context.Context, stationID string, t models.SensorType) (models.Sensor, error) {
	for _, sensor := range f.sensors {
		if sensor.StationID != nil && *sensor.StationID == stationID && sensor.Type == t {
			return sensor, nil
		}
	}
	return models.Sensor{}, fmt.Errorf("sensor type %s on station %s: %w", t, stationID, db.ErrNotFound)
}

func (f *fakeStore) CreateMeasurement(_ context.Context, m models.Measurement) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.measurements = append(f.measurements, m)
	return nil
}

type fakeAlerter struct {
	evaluated []string // sensor IDs
	err       error
}

func (f *fakeAlerter) Evaluate(_ context.Context, sensor models.Sensor, _ string) error {
	f.evaluated = append(f.evaluated, sensor.ID)
	return f.err
}

type fakeHealth struct {
	recomputed []string // parcel IDs
	err        error
}

func (f *fakeHealth) Recompute(_ context.Context, parcelID string) error {
	f.recomputed = append(f.recomputed, parcelID)
	return f.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestPool(store *fakeStore, alerter *fakeAlerter, health *fakeHealth) (*Pool, *FailureLog) {
	failures := NewFailureLog(10)
	pool := NewPool(store, alerter, health, failures, Options{
		PoolSize:    1,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
	}, quietLogger())
	return pool, failures
}

func activeSensor(id, parcelID string) models.Sensor {
	return models.Sensor{
		ID:       id,
		Type:     models.SensorHumiditeSol,
		Status:   models.SensorActive,
		ParcelID: parcelID,
		OwnerID:  1,
	}
}

func TestHandleSingleReading(t *testing.T) {
	store := newFakeStore()
	store.sensors["s1"] = activeSensor("s1", "p1")
	alerter := &fakeAlerter{}
	health := &fakeHealth{}
	pool, _ := newTestPool(store, alerter, health)

	before := time.Now()
	outcome, err := pool.handle(context.Background(), models.IngestionJob{
		SensorID: "s1",
		Value:    "42.5",
		Unit:     "%",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	require.Len(t, store.measurements, 1)
	m := store.measurements[0]
	assert.Equal(t, "s1", m.SensorID)
	assert.Equal(t, "42.5", m.Value)
	assert.Equal(t, "%", m.Unit)
	assert.False(t, m.Timestamp.Before(before))

	assert.Equal(t, []string{"s1"}, alerter.evaluated)
	assert.Equal(t, []string{"p1"}, health.recomputed)
}

func TestHandleSingleReadingObservedAt(t *testing.T) {
	store := newFakeStore()
	store.sensors["s1"] = activeSensor("s1", "p1")
	pool, _ := newTestPool(store, &fakeAlerter{}, &fakeHealth{})

	observed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	_, err := pool.handle(context.Background(), models.IngestionJob{
		SensorID:   "s1",
		Value:      "10",
		ObservedAt: &observed,
	})
	require.NoError(t, err)
	assert.Equal(t, observed, store.measurements[0].Timestamp)
}

func TestInactiveSensorIgnored(t *testing.T) {
	store := newFakeStore()
	sensor := activeSensor("s1", "p1")
	sensor.Status = models.SensorInactive
	store.sensors["s1"] = sensor
	alerter := &fakeAlerter{}
	health := &fakeHealth{}
	pool, _ := newTestPool(store, alerter, health)

	outcome, err := pool.handle(context.Background(), models.IngestionJob{SensorID: "s1", Value: "42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, store.measurements)
	assert.Empty(t, alerter.evaluated)
	assert.Empty(t, health.recomputed)
}

func TestMaintenanceSensorStillAccepts(t *testing.T) {
	store := newFakeStore()
	sensor := activeSensor("s1", "p1")
	sensor.Status = models.SensorMaintenance
	store.sensors["s1"] = sensor
	pool, _ := newTestPool(store, &fakeAlerter{}, &fakeHealth{})

	outcome, err := pool.handle(context.Background(), models.IngestionJob{SensorID: "s1", Value: "42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Len(t, store.measurements, 1)
}

func TestUnknownSensorIsRetryable(t *testing.T) {
	store := newFakeStore()
	pool, _ := newTestPool(store, &fakeAlerter{}, &fakeHealth{})

	_, err := pool.handle(context.Background(), models.IngestionJob{SensorID: "ghost", Value: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, db.ErrNotFound))
}

func TestBatchJobSkipsAlerting(t *testing.T) {
	store := newFakeStore()
	store.sensors["s1"] = activeSensor("s1", "p1")
	alerter := &fakeAlerter{}
	health := &fakeHealth{}
	pool, _ := newTestPool(store, alerter, health)

	outcome, err := pool.handle(context.Background(), models.IngestionJob{
		SensorID: "s1",
		Value:    "5",
		Batch:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	// Bulk imports still persist and still recompute health, but never alert.
	assert.Len(t, store.measurements, 1)
	assert.Empty(t, alerter.evaluated)
	assert.Equal(t, []string{"p1"}, health.recomputed)
}

func TestEnrichmentFailuresDoNotFailJob(t *testing.T) {
	store := newFakeStore()
	store.sensors["s1"] = activeSensor("s1", "p1")
	alerter := &fakeAlerter{err: errors.New("alerting down")}
	health := &fakeHealth{err: errors.New("health down")}
	pool, _ := newTestPool(store, alerter, health)

	outcome, err := pool.handle(context.Background(), models.IngestionJob{SensorID: "s1", Value: "42"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Len(t, store.measurements, 1)
}

func TestUnknownDeviceIgnored(t *testing.T) {
	store := newFakeStore()
	alerter := &fakeAlerter{}
	pool, _ := newTestPool(store, alerter, &fakeHealth{})

	outcome, err := pool.handle(context.Background(), models.IngestionJob{
		DeviceCode: "STA-X",
		Values:     map[string]models.FlexValue{"soil_moisture": "10"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, store.measurements)
}

func TestDeviceReadingFansOutChannels(t *testing.T) {
	store := newFakeStore()
	stationID := "st1"
	store.stations["STA-1"] = models.Station{ID: stationID, DeviceCode: "STA-1", ParcelID: "p1", OwnerID: 1}
	soil := activeSensor("soil-1", "p1")
	soil.StationID = &stationID
	temp := activeSensor("temp-1", "p1")
	temp.Type = models.SensorTemperature
	temp.StationID = &stationID
	store.sensors["soil-1"] = soil
	store.sensors["temp-1"] = temp

	alerter := &fakeAlerter{}
	health := &fakeHealth{}
	pool, _ := newTestPool(store, alerter, health)

	outcome, err := pool.handle(context.Background(), models.IngestionJob{
		DeviceCode: "STA-1",
		Values: map[string]models.FlexValue{
			"soil_moisture": "40",
			"temperature":   "21.5",
			"wind_speed":    "3", // unmapped channel, skipped
		},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)

	assert.Len(t, store.measurements, 2)
	assert.Len(t, alerter.evaluated, 2)
	// One recompute per device message, not per channel.
	assert.Equal(t, []string{"p1"}, health.recomputed)
}

func TestUnknownJobShapeIgnored(t *testing.T) {
	pool, _ := newTestPool(newFakeStore(), &fakeAlerter{}, &fakeHealth{})

	outcome, err := pool.handle(context.Background(), models.IngestionJob{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
}

func TestExhaustedRetriesLandInFailureLog(t *testing.T) {
	store := newFakeStore()
	store.sensors["s1"] = activeSensor("s1", "p1")
	store.insertErr = errors.New("db unavailable")
	pool, failures := newTestPool(store, &fakeAlerter{}, &fakeHealth{})

	acked := false
	pool.process(Task{
		Job: models.IngestionJob{SensorID: "s1", Value: "1"},
		Ack: func(context.Context) error {
			acked = true
			return nil
		},
	})

	entries := failures.Snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Contains(t, entries[0].Error, "db unavailable")
	// The message is still acknowledged; exhausted jobs are not redelivered.
	assert.True(t, acked)
}

func TestIgnoredJobsAreNotRecordedAsFailures(t *testing.T) {
	store := newFakeStore()
	pool, failures := newTestPool(store, &fakeAlerter{}, &fakeHealth{})

	acked := false
	pool.process(Task{
		Job: models.IngestionJob{
			DeviceCode: "STA-X",
			Values:     map[string]models.FlexValue{"soil_moisture": "10"},
		},
		Ack: func(context.Context) error {
			acked = true
			return nil
		},
	})

	assert.Empty(t, failures.Snapshot())
	assert.True(t, acked)
}

func TestFailureLogBounded(t *testing.T) {
	log := NewFailureLog(3)
	for i := 0; i < 5; i++ {
		log.Record(FailureEntry{Error: fmt.Sprintf("err-%d", i)})
	}
	entries := log.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "err-2", entries[0].Error)
	assert.Equal(t, "err-4", entries[2].Error)
}

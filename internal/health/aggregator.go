package health

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
	"ingestion-service/internal/threshold"
)

// Store is the parcel state the aggregator reads and writes.
type Store interface {
	FindActiveSensorsWithLatestMeasurement(ctx context.Context, parcelID string) ([]models.SensorReading, error)
	UpdateParcelHealth(ctx context.Context, parcelID string, health models.HealthLevel) error
}

// Aggregator recomputes a parcel's derived health classification from the
// latest reading of every active sensor. Always a full recompute from stored
// state, never an incremental patch, so out-of-order job delivery cannot
// produce drift.
type Aggregator struct {
	store  Store
	tables threshold.Tables
	logger *logrus.Logger
}

func NewAggregator(store Store, tables threshold.Tables, logger *logrus.Logger) *Aggregator {
	return &Aggregator{store: store, tables: tables, logger: logger}
}

// Recompute classifies every active sensor's latest value, folds the results
// with the worst-of rule, and overwrites the parcel's health. Zero active
// sensors (or zero usable readings) leave the parcel OPTIMAL.
func (a *Aggregator) Recompute(ctx context.Context, parcelID string) error {
	readings, err := a.store.FindActiveSensorsWithLatestMeasurement(ctx, parcelID)
	if err != nil {
		return fmt.Errorf("failed to load sensors for parcel %s: %w", parcelID, err)
	}

	result := models.HealthOptimal
	for _, r := range readings {
		if r.Latest == nil {
			continue
		}
		level, ok := a.classify(r.Sensor, r.Latest.Value)
		if !ok {
			continue
		}
		result = models.WorstOf(result, level)
	}

	if err := a.store.UpdateParcelHealth(ctx, parcelID, result); err != nil {
		return fmt.Errorf("failed to persist health for parcel %s: %w", parcelID, err)
	}
	a.logger.WithFields(logrus.Fields{"parcel_id": parcelID, "health": result.String()}).
		Debug("parcel health recomputed")
	return nil
}

// classify maps one sensor's latest value onto the health scale. The second
// return is false when the sensor contributes nothing (unparseable value with
// no fallback, or no band available for its type).
func (a *Aggregator) classify(sensor models.Sensor, raw string) (models.HealthLevel, bool) {
	if sensor.Type == models.SensorNPK {
		return a.classifyComposite(sensor, raw)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		a.logger.WithField("sensor_id", sensor.ID).Warn("non-numeric latest value, sensor skipped")
		return 0, false
	}

	if sensor.ThresholdMin != nil && sensor.ThresholdMax != nil {
		return threshold.DerivedBounds(*sensor.ThresholdMin, *sensor.ThresholdMax).Classify(v), true
	}
	if bounds, ok := a.tables.Sensor[sensor.Type]; ok {
		return bounds.Classify(v), true
	}
	return 0, false
}

func (a *Aggregator) classifyComposite(sensor models.Sensor, raw string) (models.HealthLevel, bool) {
	comp, ok := threshold.ParseComposite(raw)
	if !ok {
		// Legacy fallback: a scalar NPK value is classified as nitrogen.
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			a.logger.WithField("sensor_id", sensor.ID).Warn("unusable NPK payload, sensor skipped")
			return 0, false
		}
		comp = map[string]float64{"nitrogen": v}
	}

	result := models.HealthOptimal
	contributed := false
	for element, v := range comp {
		bounds, ok := a.tables.Nutrient[element]
		if !ok {
			continue
		}
		result = models.WorstOf(result, bounds.Classify(v))
		contributed = true
	}
	return result, contributed
}

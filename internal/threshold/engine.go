package threshold

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ingestion-service/internal/models"
)

// Store is the alert persistence the engine needs.
type Store interface {
	CreateAlert(ctx context.Context, alert models.Alert) error
	HasRecentUnresolvedAlert(ctx context.Context, sensorID string, category models.AlertCategory, severity models.AlertSeverity, since time.Time) (bool, error)
	MarkAlertDelivery(ctx context.Context, alertID string, res models.DeliveryResult) error
	FindStaleSensors(ctx context.Context, cutoff time.Time) ([]models.Sensor, error)
}

// Dispatcher fans a created alert out to the user's channels. Implementations
// must not fail past this contract; channel errors show up as false flags.
type Dispatcher interface {
	Deliver(ctx context.Context, userID int, alert models.Alert) models.DeliveryResult
}

// Options are the engine's tunables. Zero values fall back to the stock
// windows.
type Options struct {
	DedupWindow     time.Duration
	OfflineStale    time.Duration
	OfflineCooldown time.Duration
	NotifyTimeout   time.Duration
}

// Engine evaluates sensor values against threshold bands and creates
// deduplicated alerts.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	tables     Tables
	opts       Options
	logger     *logrus.Logger
	now        func() time.Time
}

func NewEngine(store Store, dispatcher Dispatcher, tables Tables, opts Options, logger *logrus.Logger) *Engine {
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = time.Hour
	}
	if opts.OfflineStale <= 0 {
		opts.OfflineStale = 30 * time.Minute
	}
	if opts.OfflineCooldown <= 0 {
		opts.OfflineCooldown = 2 * time.Hour
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		tables:     tables,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

type breach struct {
	severity models.AlertSeverity
	element  string // empty for scalar sensors, nutrient name for NPK
	value    float64
}

// Evaluate checks one reading against the sensor's bands and raises alerts
// for every breach that survives deduplication.
func (e *Engine) Evaluate(ctx context.Context, sensor models.Sensor, raw string) error {
	for _, br := range e.breaches(sensor, raw) {
		if err := e.raise(ctx, sensor, br); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) breaches(sensor models.Sensor, raw string) []breach {
	if sensor.Type == models.SensorNPK {
		return e.compositeBreaches(sensor, raw)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"sensor_id": sensor.ID, "value": raw}).
			Warn("non-numeric value for scalar sensor, skipping evaluation")
		return nil
	}

	bounds, ok := e.boundsFor(sensor)
	if !ok {
		return nil
	}
	if sev, breached := bounds.Severity(v); breached {
		return []breach{{severity: sev, value: v}}
	}
	return nil
}

func (e *Engine) compositeBreaches(sensor models.Sensor, raw string) []breach {
	comp, ok := ParseComposite(raw)
	if !ok {
		// Legacy fallback: an unparseable NPK payload is read as a bare
		// nitrogen value. Kept for compatibility with stored data.
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			e.logger.WithField("sensor_id", sensor.ID).Warn("unusable NPK payload, skipping evaluation")
			return nil
		}
		comp = map[string]float64{"nitrogen": v}
	}

	var out []breach
	for element, v := range comp {
		bounds, ok := e.tables.Nutrient[element]
		if !ok {
			continue
		}
		if sev, breached := bounds.Severity(v); breached {
			out = append(out, breach{severity: sev, element: element, value: v})
		}
	}
	return out
}

// boundsFor prefers the sensor's explicit min/max, deriving critical bands
// from them, and falls back to the type's default table entry.
func (e *Engine) boundsFor(sensor models.Sensor) (Bounds, bool) {
	if sensor.ThresholdMin != nil && sensor.ThresholdMax != nil {
		return DerivedBounds(*sensor.ThresholdMin, *sensor.ThresholdMax), true
	}
	bounds, ok := e.tables.Sensor[sensor.Type]
	return bounds, ok
}

func (e *Engine) raise(ctx context.Context, sensor models.Sensor, br breach) error {
	now := e.now()

	dup, err := e.store.HasRecentUnresolvedAlert(ctx, sensor.ID, models.CategorySensorThreshold, br.severity, now.Add(-e.opts.DedupWindow))
	if err != nil {
		return fmt.Errorf("dedup check failed: %w", err)
	}
	if dup {
		e.logger.WithFields(logrus.Fields{"sensor_id": sensor.ID, "severity": br.severity}).
			Debug("alert suppressed by deduplication window")
		return nil
	}

	alert := models.Alert{
		ID:        uuid.NewString(),
		UserID:    sensor.OwnerID,
		SensorID:  &sensor.ID,
		Category:  models.CategorySensorThreshold,
		Severity:  br.severity,
		Title:     breachTitle(br.severity),
		Message:   breachMessage(sensor, br),
		Status:    models.AlertNew,
		CreatedAt: now,
	}
	if sensor.ParcelID != "" {
		parcelID := sensor.ParcelID
		alert.ParcelID = &parcelID
	}

	if err := e.store.CreateAlert(ctx, alert); err != nil {
		return fmt.Errorf("create alert failed: %w", err)
	}

	e.dispatch(ctx, alert)
	return nil
}

// dispatch delivers an alert with a bounded timeout and records the
// per-channel outcome. Delivery failures never roll back the alert.
func (e *Engine) dispatch(ctx context.Context, alert models.Alert) {
	dctx, cancel := context.WithTimeout(ctx, e.opts.NotifyTimeout)
	defer cancel()

	res := e.dispatcher.Deliver(dctx, alert.UserID, alert)
	if err := e.store.MarkAlertDelivery(ctx, alert.ID, res); err != nil {
		e.logger.WithField("alert_id", alert.ID).Errorf("failed to record delivery flags: %v", err)
	}
	e.logger.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"severity": alert.Severity,
		"email":    res.Email,
		"telegram": res.Telegram,
		"ws":       res.Websocket,
	}).Info("alert dispatched")
}

func breachTitle(sev models.AlertSeverity) string {
	if sev == models.SeverityCritical {
		return "Seuil critique dépassé"
	}
	return "Seuil d'alerte atteint"
}

func breachMessage(sensor models.Sensor, br breach) string {
	if br.element != "" {
		return fmt.Sprintf("Le capteur %s (NPK) a relevé %s = %.2f", sensor.ID, br.element, br.value)
	}
	return fmt.Sprintf("Le capteur %s (%s) a relevé %.2f", sensor.ID, sensor.Type, br.value)
}

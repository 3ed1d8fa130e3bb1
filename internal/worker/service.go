package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ingestion-service/internal/db"
	"ingestion-service/internal/models"
	"ingestion-service/internal/threshold"
)

// Outcome is the terminal state of one job.
type Outcome int

const (
	// OutcomeProcessed means the reading was persisted.
	OutcomeProcessed Outcome = iota
	// OutcomeIgnored means the job was dropped by policy (deactivated
	// sensor, unknown device). Not an error, never retried.
	OutcomeIgnored
)

// Store is the repository surface the worker writes through.
type Store interface {
	FindSensorByID(ctx context.Context, id string) (models.Sensor, error)
	FindStationByDeviceCode(ctx context.Context, code string) (models.Station, error)
	FindSensorByStationAndType(ctx context.Context, stationID string, t models.SensorType) (models.Sensor, error)
	CreateMeasurement(ctx context.Context, m models.Measurement) error
}

// Alerter evaluates a persisted reading for threshold breaches.
type Alerter interface {
	Evaluate(ctx context.Context, sensor models.Sensor, raw string) error
}

// HealthUpdater recomputes a parcel's derived health.
type HealthUpdater interface {
	Recompute(ctx context.Context, parcelID string) error
}

// Task is one dequeued job plus the callback that acknowledges the message
// once the job reaches a terminal outcome.
type Task struct {
	Job models.IngestionJob
	Ack func(ctx context.Context) error
}

// Options are the pool's tunables.
type Options struct {
	PoolSize    int
	MaxAttempts int
	BaseDelay   time.Duration
}

// Pool is the bounded measurement worker pool: the single write path that
// turns an accepted job into durable state and triggers derived computation.
type Pool struct {
	store    Store
	alerter  Alerter
	health   HealthUpdater
	failures *FailureLog
	logger   *logrus.Logger
	opts     Options

	tasks  chan Task
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewPool(store Store, alerter Alerter, health HealthUpdater, failures *FailureLog, opts Options, logger *logrus.Logger) *Pool {
	if opts.PoolSize <= 0 {
		opts.PoolSize = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 500 * time.Millisecond
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		store:    store,
		alerter:  alerter,
		health:   health,
		failures: failures,
		logger:   logger,
		opts:     opts,
		tasks:    make(chan Task),
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Start launches the worker pool.
func (p *Pool) Start() {
	for i := 0; i < p.opts.PoolSize; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Infof("measurement workers started (pool size %d)", p.opts.PoolSize)
}

// Stop cancels the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

// Submit hands a task to the pool. Blocks while all workers are busy, which
// is the backpressure the consumer relies on.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case p.tasks <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			p.logger.Infof("worker %d stopped", id)
			return
		case task := <-p.tasks:
			p.process(task)
		}
	}
}

// process drives one job to a terminal outcome: retry with backoff on
// failure, record exhausted jobs in the failure log, then acknowledge the
// queue message so it is not redelivered.
func (p *Pool) process(task Task) {
	var outcome Outcome
	attempts := 0
	err := retryWithBackoff(p.ctx, p.logger, p.opts.MaxAttempts, p.opts.BaseDelay, func() error {
		attempts++
		var handleErr error
		outcome, handleErr = p.handle(p.ctx, task.Job)
		return handleErr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown mid-job: leave the message unacknowledged so the
			// queue redelivers it.
			return
		}
		p.failures.Record(FailureEntry{
			Job:      task.Job,
			Error:    err.Error(),
			Attempts: attempts,
			FailedAt: p.now(),
		})
		p.logger.WithField("job_kind", int(task.Job.Kind())).Errorf("job permanently failed: %v", err)
	} else if outcome == OutcomeIgnored {
		p.logger.WithField("job_kind", int(task.Job.Kind())).Debug("job ignored by policy")
	}

	if task.Ack != nil {
		if ackErr := task.Ack(p.ctx); ackErr != nil {
			p.logger.Errorf("failed to acknowledge job: %v", ackErr)
		}
	}
}

// handle dispatches on the job shape. Returned errors are retryable;
// OutcomeIgnored is a terminal success.
func (p *Pool) handle(ctx context.Context, job models.IngestionJob) (Outcome, error) {
	switch job.Kind() {
	case models.JobSingleReading:
		return p.handleSingle(ctx, job)
	case models.JobDeviceReading:
		return p.handleDevice(ctx, job)
	default:
		// Malformed payloads cannot improve with retries.
		p.logger.Warn("job with unknown shape ignored")
		return OutcomeIgnored, nil
	}
}

func (p *Pool) handleSingle(ctx context.Context, job models.IngestionJob) (Outcome, error) {
	sensor, err := p.store.FindSensorByID(ctx, job.SensorID)
	if err != nil {
		// Unknown sensor stays retryable: it may be mid-provisioning.
		return 0, fmt.Errorf("resolve sensor: %w", err)
	}
	if !sensor.Status.Accepting() {
		p.logger.WithField("sensor_id", sensor.ID).Debug("reading for deactivated sensor discarded")
		return OutcomeIgnored, nil
	}

	if err := p.persist(ctx, sensor, job, string(job.Value), job.Unit); err != nil {
		return 0, err
	}
	p.recomputeHealth(ctx, sensor.ParcelID)
	return OutcomeProcessed, nil
}

func (p *Pool) handleDevice(ctx context.Context, job models.IngestionJob) (Outcome, error) {
	station, err := p.store.FindStationByDeviceCode(ctx, job.DeviceCode)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			// An unknown device will not become known within the retry
			// window; drop the message.
			p.logger.WithField("device_code", job.DeviceCode).Warn("reading from unknown device ignored")
			return OutcomeIgnored, nil
		}
		return 0, fmt.Errorf("resolve station: %w", err)
	}

	persisted := 0
	for channel, value := range job.Values {
		sensorType, ok := threshold.ChannelType(channel)
		if !ok {
			p.logger.WithField("channel", channel).Warn("unmapped device channel skipped")
			continue
		}
		sensor, err := p.store.FindSensorByStationAndType(ctx, station.ID, sensorType)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				p.logger.WithFields(logrus.Fields{
					"station_id": station.ID,
					"channel":    channel,
				}).Warn("no sensor for device channel, skipped")
				continue
			}
			return 0, fmt.Errorf("resolve sensor for channel %s: %w", channel, err)
		}
		if !sensor.Status.Accepting() {
			continue
		}
		if err := p.persist(ctx, sensor, job, string(value), unitForType(sensorType)); err != nil {
			return 0, err
		}
		persisted++
	}

	if persisted > 0 {
		// One recompute per device message, after all channels.
		p.recomputeHealth(ctx, station.ParcelID)
	}
	return OutcomeProcessed, nil
}

// persist writes the measurement and runs best-effort alerting. The insert
// is the durability-critical step; an alerting failure is logged and never
// fails the job.
func (p *Pool) persist(ctx context.Context, sensor models.Sensor, job models.IngestionJob, value, unit string) error {
	m := models.Measurement{
		SensorID:  sensor.ID,
		Value:     value,
		Unit:      unit,
		Timestamp: job.Timestamp(p.now()),
	}
	if err := p.store.CreateMeasurement(ctx, m); err != nil {
		return err
	}

	if !job.Batch {
		if err := p.alerter.Evaluate(ctx, sensor, value); err != nil {
			p.logger.WithField("sensor_id", sensor.ID).Errorf("threshold evaluation failed: %v", err)
		}
	}
	return nil
}

func (p *Pool) recomputeHealth(ctx context.Context, parcelID string) {
	if parcelID == "" {
		return
	}
	if err := p.health.Recompute(ctx, parcelID); err != nil {
		p.logger.WithField("parcel_id", parcelID).Errorf("health recompute failed: %v", err)
	}
}

// unitForType supplies the default display unit for device channels, which
// do not carry one on the wire.
func unitForType(t models.SensorType) string {
	switch t {
	case models.SensorTemperature:
		return "°C"
	case models.SensorHumiditeSol, models.SensorHumiditeAir, models.SensorNiveauEau:
		return "%"
	case models.SensorPH:
		return "pH"
	case models.SensorNPK:
		return "mg/kg"
	default:
		return ""
	}
}

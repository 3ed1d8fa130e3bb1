package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingestion-service/internal/config"
	"ingestion-service/internal/models"
	"ingestion-service/internal/notifier"
	"ingestion-service/internal/worker"
)

type fakeQueue struct {
	jobs []models.IngestionJob
	err  error
}

func (f *fakeQueue) Enqueue(_ context.Context, job models.IngestionJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeSweeper struct {
	created int
	err     error
}

func (f *fakeSweeper) SweepOfflineSensors(_ context.Context) (int, error) {
	return f.created, f.err
}

func newTestRouter(queue *fakeQueue, sweeper *fakeSweeper) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := config.Config{}
	cfg.API.BasePath = "/api/v0"

	h := NewHandler(queue, worker.NewFailureLog(10), sweeper, notifier.NewHub(logger), logger)
	return NewRouter(logger, cfg, h)
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngestMeasurementAccepted(t *testing.T) {
	queue := &fakeQueue{}
	r := newTestRouter(queue, &fakeSweeper{})

	w := doRequest(r, http.MethodPost, "/api/v0/measurements", `{"sensorId":"s1","value":42.5,"unit":"%"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"pending"`)
	assert.Contains(t, w.Body.String(), "timestamp")

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "s1", queue.jobs[0].SensorID)
	assert.Equal(t, models.FlexValue("42.5"), queue.jobs[0].Value)
	assert.False(t, queue.jobs[0].Batch)
}

func TestIngestMeasurementRejectsMissingSensorID(t *testing.T) {
	queue := &fakeQueue{}
	r := newTestRouter(queue, &fakeSweeper{})

	w := doRequest(r, http.MethodPost, "/api/v0/measurements", `{"value":42.5}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, queue.jobs)
}

func TestIngestMeasurementQueueUnavailable(t *testing.T) {
	queue := &fakeQueue{err: errors.New("broker down")}
	r := newTestRouter(queue, &fakeSweeper{})

	w := doRequest(r, http.MethodPost, "/api/v0/measurements", `{"sensorId":"s1","value":1}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestIngestBatchQueuesEachReading(t *testing.T) {
	queue := &fakeQueue{}
	r := newTestRouter(queue, &fakeSweeper{})

	body := `{"readings":[{"sensorId":"s1","value":1},{"sensorId":"s2","value":"2"}]}`
	w := doRequest(r, http.MethodPost, "/api/v0/measurements/batch", body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"queued":true`)

	require.Len(t, queue.jobs, 2)
	for _, job := range queue.jobs {
		assert.True(t, job.Batch)
	}
}

func TestIngestBatchRejectsEmptyList(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{})

	w := doRequest(r, http.MethodPost, "/api/v0/measurements/batch", `{"readings":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFailures(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{})

	w := doRequest(r, http.MethodGet, "/api/v0/pipeline/failures", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestTriggerOfflineSweep(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{created: 2})

	w := doRequest(r, http.MethodPost, "/api/v0/pipeline/sweep-offline", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"created":2`)
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter(&fakeQueue{}, &fakeSweeper{})

	w := doRequest(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
